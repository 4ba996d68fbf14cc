package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"coursetable/internal/components/telemetry"
	"coursetable/internal/curriculum"
	"coursetable/internal/equivalence"
	"coursetable/internal/listing"
	"coursetable/internal/offerings"
	"coursetable/internal/render"
	"coursetable/internal/scrapers/tree"
	"coursetable/internal/snapshot"
	"coursetable/internal/term"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeCrawler struct {
	records []tree.Record
	err     error
	urls    []string
}

func (c *fakeCrawler) Crawl(ctx context.Context, url string) ([]tree.Record, error) {
	c.urls = append(c.urls, url)
	return c.records, c.err
}

type fakeFetcher struct {
	terms   map[term.ID][]offerings.Offering
	failOn  term.ID
	fetched []term.ID
}

func (f *fakeFetcher) FetchTerm(ctx context.Context, id term.ID, curriculumIDs []string) ([]offerings.Offering, error) {
	f.fetched = append(f.fetched, id)
	if id == f.failOn {
		return nil, fmt.Errorf("fetch %s: service unavailable", id.Name())
	}
	return f.terms[id], nil
}

// identityLookup relates every course only to itself.
type identityLookup struct{}

func (identityLookup) SameCourses(ctx context.Context, id int64) ([]int64, error) {
	return []int64{id}, nil
}

func offer(id int64, t int, title string) offerings.Offering {
	return offerings.Offering{
		ID:         id,
		Term:       term.MustNew(t),
		TermName:   term.MustNew(t).Name(),
		CourseType: "VO",
		Title:      title,
	}
}

func resolved(o offerings.Offering) offerings.Offering {
	o.ClusterID = o.ID
	return o
}

func testCurriculum(t *testing.T) curriculum.Curriculum {
	cur, err := curriculum.Defaults()["master-informatics"].Resolve("master-informatics", t.TempDir())
	require.NoError(t, err)
	return cur
}

func newPipeline(crawler *fakeCrawler, fetcher *fakeFetcher) Pipeline {
	tel := telemetry.NewRecorder()
	if crawler == nil {
		crawler = &fakeCrawler{}
	}
	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}
	return New(crawler, fetcher, equivalence.NewResolver(identityLookup{}, 2, tel), tel)
}

func loadCourses(t *testing.T, cur curriculum.Curriculum) []offerings.Offering {
	snap, err := offerings.LoadSnapshot(cur.OfferingsFile)
	require.NoError(t, err)
	return snap.Courses
}

func TestCrawlTree(t *testing.T) {
	cur := testCurriculum(t)
	name := "Databases"
	crawler := &fakeCrawler{records: []tree.Record{{
		URLs:      []string{"https://example.com/course/1"},
		RuleNodes: map[int]*string{10: &name},
	}}}
	p := newPipeline(crawler, nil)

	records, err := p.CrawlTree(context.Background(), cur)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, []string{cur.TreeURL}, crawler.urls)

	var stored []tree.Record
	found, err := snapshot.Load(cur.TreeFile, &stored)
	require.NoError(t, err)
	require.True(t, found)
	diff := cmp.Diff(crawler.records, stored)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestCrawlTreeFailureKeepsSnapshot(t *testing.T) {
	cur := testCurriculum(t)
	require.NoError(t, snapshot.Save(cur.TreeFile, []tree.Record{{URLs: []string{"old"}}}))
	before, err := os.ReadFile(cur.TreeFile)
	require.NoError(t, err)

	crawler := &fakeCrawler{err: tree.ErrTreeCrawlTimeout}
	_, err = newPipeline(crawler, nil).CrawlTree(context.Background(), cur)
	require.ErrorIs(t, err, tree.ErrTreeCrawlTimeout)

	after, err := os.ReadFile(cur.TreeFile)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestUpdateOfferingsFromEmpty(t *testing.T) {
	cur := testCurriculum(t)
	fetcher := &fakeFetcher{terms: map[term.ID][]offerings.Offering{
		term.MustNew(199): {offer(2, 199, "Compilers")},
		term.MustNew(200): {offer(3, 200, "Databases"), offer(1, 200, "Algorithms")},
	}}

	result, err := newPipeline(nil, fetcher).UpdateOfferings(context.Background(), cur, term.MustNew(199), term.MustNew(200))
	require.NoError(t, err)
	require.Equal(t, []term.ID{term.MustNew(200), term.MustNew(199)}, fetcher.fetched)
	require.Equal(t, 2, result.Completed)
	require.Equal(t, 3, result.Total)

	expected := []offerings.Offering{
		resolved(offer(2, 199, "Compilers")),
		resolved(offer(1, 200, "Algorithms")),
		resolved(offer(3, 200, "Databases")),
	}
	diff := cmp.Diff(expected, loadCourses(t, cur))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestUpdateOfferingsIsIncremental(t *testing.T) {
	cur := testCurriculum(t)
	existing := offerings.Snapshot{Courses: []offerings.Offering{
		resolved(offer(1, 198, "Algorithms")),
		resolved(offer(2, 200, "Stale")),
	}}
	require.NoError(t, offerings.SaveSnapshot(cur.OfferingsFile, existing))

	fetcher := &fakeFetcher{terms: map[term.ID][]offerings.Offering{
		term.MustNew(199): {offer(4, 199, "Compilers")},
		term.MustNew(200): {offer(3, 200, "Databases")},
	}}
	_, err := newPipeline(nil, fetcher).UpdateOfferings(context.Background(), cur, term.MustNew(198), term.MustNew(200))
	require.NoError(t, err)
	require.Equal(t, []term.ID{term.MustNew(200), term.MustNew(199)}, fetcher.fetched)

	expected := []offerings.Offering{
		resolved(offer(1, 198, "Algorithms")),
		resolved(offer(4, 199, "Compilers")),
		resolved(offer(3, 200, "Databases")),
	}
	diff := cmp.Diff(expected, loadCourses(t, cur))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestUpdateOfferingsPersistsCompletedTerms(t *testing.T) {
	cur := testCurriculum(t)
	fetcher := &fakeFetcher{
		terms: map[term.ID][]offerings.Offering{
			term.MustNew(198): {offer(1, 198, "Algorithms")},
			term.MustNew(200): {offer(3, 200, "Databases")},
		},
		failOn: term.MustNew(199),
	}
	p := newPipeline(nil, fetcher)

	result, err := p.UpdateOfferings(context.Background(), cur, term.MustNew(198), term.MustNew(200))
	require.Error(t, err)
	require.Equal(t, 1, result.Completed)
	require.Equal(t, []term.ID{term.MustNew(200), term.MustNew(199)}, fetcher.fetched)
	require.Equal(t, []offerings.Offering{resolved(offer(3, 200, "Databases"))}, loadCourses(t, cur))

	// a second run only fetches what is still missing besides the newest term
	fetcher.failOn = 0
	fetcher.fetched = nil
	_, err = p.UpdateOfferings(context.Background(), cur, term.MustNew(198), term.MustNew(200))
	require.NoError(t, err)
	require.Equal(t, []term.ID{term.MustNew(200), term.MustNew(199), term.MustNew(198)}, fetcher.fetched)
	require.Len(t, loadCourses(t, cur), 2)
}

func TestUpdateOfferingsFailedNewestTermKeepsOldRows(t *testing.T) {
	cur := testCurriculum(t)
	existing := offerings.Snapshot{Courses: []offerings.Offering{
		resolved(offer(1, 199, "Algorithms")),
		resolved(offer(2, 200, "Databases")),
	}}
	require.NoError(t, offerings.SaveSnapshot(cur.OfferingsFile, existing))

	fetcher := &fakeFetcher{failOn: term.MustNew(200)}
	result, err := newPipeline(nil, fetcher).UpdateOfferings(context.Background(), cur, term.MustNew(199), term.MustNew(200))
	require.Error(t, err)
	require.Zero(t, result.Completed)

	diff := cmp.Diff(existing.Courses, loadCourses(t, cur))
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestUpdateOfferingsRejectsReversedRange(t *testing.T) {
	cur := testCurriculum(t)
	fetcher := &fakeFetcher{}
	_, err := newPipeline(nil, fetcher).UpdateOfferings(context.Background(), cur, term.MustNew(200), term.MustNew(198))
	require.Error(t, err)
	require.Empty(t, fetcher.fetched)
	_, err = os.Stat(cur.OfferingsFile)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestRenderRequiresSnapshots(t *testing.T) {
	cur := testCurriculum(t)
	p := newPipeline(nil, nil)
	opts := listing.Options{Term: term.MustNew(200)}

	err := p.Render(context.Background(), cur, opts, render.FORMAT_TEXT, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrMissingSnapshot)
	require.ErrorContains(t, err, filepath.Base(cur.TreeFile))

	require.NoError(t, snapshot.Save(cur.TreeFile, []tree.Record{}))
	err = p.Render(context.Background(), cur, opts, render.FORMAT_TEXT, &bytes.Buffer{})
	require.ErrorIs(t, err, ErrMissingSnapshot)
	require.ErrorContains(t, err, filepath.Base(cur.OfferingsFile))
}

func TestRender(t *testing.T) {
	cur := testCurriculum(t)
	module := "[IN0008] Fundamentals of Databases"
	credits := 6.0
	top := "Elective Modules Informatics"
	area := "Databases"
	records := []tree.Record{{
		URLs:       []string{"https://campus.tum.de/tumonline/ee/ui/ca2/app/desktop/#/pages/slc.tm.cp/course/3"},
		Credits:    &credits,
		ModuleName: &module,
		RuleNodes:  map[int]*string{10: &top, 30: &area},
	}}
	require.NoError(t, snapshot.Save(cur.TreeFile, records))
	require.NoError(t, offerings.SaveSnapshot(cur.OfferingsFile, offerings.Snapshot{
		Courses: []offerings.Offering{resolved(offer(3, 200, "Fundamentals of Databases"))},
	}))

	var out bytes.Buffer
	err := newPipeline(nil, nil).Render(context.Background(), cur, listing.Options{Term: term.MustNew(200)}, render.FORMAT_TEXT, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Elective Modules in Master Informatics - offered in SS24")
	require.Contains(t, out.String(), "Fundamentals of Databases")
	require.Contains(t, out.String(), "IN0008")
}

func TestRefresh(t *testing.T) {
	cur := testCurriculum(t)
	module := "[IN0008] Fundamentals of Databases"
	top := "Elective Modules Informatics"
	area := "Databases"
	crawler := &fakeCrawler{records: []tree.Record{{
		URLs:       []string{"https://example.com/course/3"},
		ModuleName: &module,
		RuleNodes:  map[int]*string{10: &top, 30: &area},
	}}}
	fetcher := &fakeFetcher{terms: map[term.ID][]offerings.Offering{
		term.MustNew(199): {offer(2, 199, "Fundamentals of Databases")},
		term.MustNew(200): {offer(3, 200, "Fundamentals of Databases")},
	}}
	p := newPipeline(crawler, fetcher)
	outDir := filepath.Join(t.TempDir(), "out")

	opts := RefreshOptions{
		Current:       term.MustNew(200),
		PreviousTerms: 1,
		OutputDir:     outDir,
		Formats:       []render.Format{render.FORMAT_HTML, render.FORMAT_TEXT},
	}
	require.NoError(t, p.Refresh(context.Background(), cur, opts))
	require.Len(t, crawler.urls, 1)
	require.Equal(t, []term.ID{term.MustNew(200), term.MustNew(199)}, fetcher.fetched)

	for _, name := range []string{"master-informatics.html", "master-informatics-all.html", "master-informatics.txt", "master-informatics-all.txt"} {
		contents, err := os.ReadFile(filepath.Join(outDir, name))
		require.NoError(t, err, name)
		require.Contains(t, string(contents), "Fundamentals of Databases", name)
	}

	// the tree snapshot exists now, a second run does not crawl again
	fetcher.fetched = nil
	require.NoError(t, p.Refresh(context.Background(), cur, opts))
	require.Len(t, crawler.urls, 1)
	require.Equal(t, []term.ID{term.MustNew(200)}, fetcher.fetched)
}

func TestRefreshWindowOutOfRange(t *testing.T) {
	cur := testCurriculum(t)
	err := newPipeline(nil, nil).Refresh(context.Background(), cur, RefreshOptions{
		Current:       term.MustNew(term.MinID),
		PreviousTerms: 1,
	})
	require.ErrorIs(t, err, term.ErrInvalidTermID)
}
