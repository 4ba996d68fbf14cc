// Package pipeline runs the crawl, update and render steps for a curriculum and owns the order
// in which their snapshots are read and written.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/curriculum"
	"coursetable/internal/equivalence"
	"coursetable/internal/listing"
	"coursetable/internal/offerings"
	"coursetable/internal/render"
	"coursetable/internal/scrapers/tree"
	"coursetable/internal/snapshot"
	"coursetable/internal/term"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_pipeline_crawl  = "pipeline.crawl"
	report_pipeline_update = "pipeline.update"
	report_pipeline_save   = "pipeline.save"
	report_pipeline_output = "pipeline.output"
)

// ErrMissingSnapshot is returned when rendering before the snapshots were created.
var ErrMissingSnapshot = errors.New("snapshot does not exist")

type TreeCrawler interface {
	Crawl(ctx context.Context, url string) ([]tree.Record, error)
}

type TermFetcher interface {
	FetchTerm(ctx context.Context, id term.ID, curriculumIDs []string) ([]offerings.Offering, error)
}

type ClusterResolver interface {
	Resolve(ctx context.Context, terms [][]offerings.Offering, known equivalence.Clusters) ([][]offerings.Offering, equivalence.Clusters, error)
}

type Pipeline struct {
	crawler  TreeCrawler
	fetcher  TermFetcher
	resolver ClusterResolver
	tracer   trace.Tracer
	tel      telemetry.API
}

func New(crawler TreeCrawler, fetcher TermFetcher, resolver ClusterResolver, tel telemetry.API) Pipeline {
	assert.NotNil(crawler)
	assert.NotNil(fetcher)
	assert.NotNil(resolver)
	assert.NotNil(tel)

	return Pipeline{
		crawler:  crawler,
		fetcher:  fetcher,
		resolver: resolver,
		tracer:   telemetry.Tracer("coursetable/pipeline"),
		tel:      telemetry.NewScopedAPI("pipeline", tel),
	}
}

// CrawlTree crawls the curriculum tree and replaces the tree snapshot. The snapshot is left
// untouched when the crawl fails.
func (p Pipeline) CrawlTree(ctx context.Context, cur curriculum.Curriculum) ([]tree.Record, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.CrawlTree")
	defer span.End()
	span.SetAttributes(attribute.String("curriculum", cur.Key))

	records, err := p.crawler.Crawl(ctx, cur.TreeURL)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		p.tel.ReportBroken(report_pipeline_crawl, err, cur.Key)
		return nil, fmt.Errorf("crawl %s: %w", cur.Key, err)
	}

	if records == nil {
		records = []tree.Record{}
	}
	err = snapshot.Save(cur.TreeFile, records)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_save, err, cur.TreeFile)
		return nil, err
	}
	p.tel.ReportDebug("tree snapshot written", cur.TreeFile, len(records))
	return records, nil
}

type UpdateResult struct {
	// Fetched lists the planned terms, newest first.
	Fetched []term.ID
	// Completed is the number of leading Fetched terms that were written.
	Completed int
	Total     int
}

// UpdateOfferings extends the offerings snapshot with the terms of [from, to] it lacks and
// always replaces the term to. Terms are fetched and resolved from the newest to the oldest.
// When a term fails the terms before it are still written and the error is returned, running
// the update again picks up where it stopped.
func (p Pipeline) UpdateOfferings(ctx context.Context, cur curriculum.Curriculum, from, to term.ID) (UpdateResult, error) {
	if from > to {
		return UpdateResult{}, fmt.Errorf("first term %s is after last term %s", from.Name(), to.Name())
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.UpdateOfferings")
	defer span.End()
	span.SetAttributes(
		attribute.String("curriculum", cur.Key),
		attribute.Int("from", from.Int()),
		attribute.Int("to", to.Int()),
	)

	existing, err := offerings.LoadSnapshot(cur.OfferingsFile)
	if err != nil {
		return UpdateResult{}, err
	}
	fetch, keep := offerings.Plan(existing, from, to)
	var replaced []offerings.Offering
	for _, o := range existing.Courses {
		if o.Term == to {
			replaced = append(replaced, o)
		}
	}

	var fetched [][]offerings.Offering
	var runErr error
	for _, id := range fetch {
		offs, err := p.fetcher.FetchTerm(ctx, id, cur.CurriculumIDs)
		if err != nil {
			runErr = err
			break
		}
		p.tel.ReportDebug("fetched term", id.Name(), len(offs))
		fetched = append(fetched, offs)
	}

	resolved, _, err := p.resolver.Resolve(ctx, fetched, equivalence.SeedClusters(keep))
	if err != nil && runErr == nil {
		runErr = err
	}

	out := offerings.Snapshot{Courses: keep}
	for _, offs := range resolved {
		out.Courses = append(out.Courses, offs...)
	}
	if len(resolved) == 0 {
		out.Courses = append(out.Courses, replaced...)
	}

	err = offerings.SaveSnapshot(cur.OfferingsFile, out)
	if err != nil {
		p.tel.ReportBroken(report_pipeline_save, err, cur.OfferingsFile)
		return UpdateResult{}, errors.Join(runErr, err)
	}

	result := UpdateResult{
		Fetched:   fetch,
		Completed: len(resolved),
		Total:     len(out.Courses),
	}
	if runErr != nil {
		span.SetStatus(codes.Error, runErr.Error())
		p.tel.ReportBroken(report_pipeline_update, runErr, cur.Key, result.Completed, len(fetch))
		return result, fmt.Errorf("update %s: %w", cur.Key, runErr)
	}
	return result, nil
}

// Assemble loads both snapshots of cur and builds its listing.
func (p Pipeline) Assemble(cur curriculum.Curriculum, opts listing.Options) (listing.Listing, error) {
	err := opts.Validate()
	if err != nil {
		return listing.Listing{}, err
	}

	var records []tree.Record
	found, err := snapshot.Load(cur.TreeFile, &records)
	if err != nil {
		return listing.Listing{}, err
	}
	if !found {
		return listing.Listing{}, fmt.Errorf("%w: %s (crawl the tree first)", ErrMissingSnapshot, cur.TreeFile)
	}

	var snap offerings.Snapshot
	found, err = snapshot.Load(cur.OfferingsFile, &snap)
	if err != nil {
		return listing.Listing{}, err
	}
	if !found {
		return listing.Listing{}, fmt.Errorf("%w: %s (update offerings first)", ErrMissingSnapshot, cur.OfferingsFile)
	}

	return listing.Assemble(snap.Courses, records, cur, opts, p.tel), nil
}

// Render assembles the listing of cur and writes it to w.
func (p Pipeline) Render(ctx context.Context, cur curriculum.Curriculum, opts listing.Options, format render.Format, w io.Writer) error {
	_, span := p.tracer.Start(ctx, "pipeline.Render")
	defer span.End()

	l, err := p.Assemble(cur, opts)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return render.Write(w, format, l)
}

type RefreshOptions struct {
	Current term.ID
	// PreviousTerms is the number of terms before Current that are fetched when missing.
	PreviousTerms int
	OutputDir     string
	Formats       []render.Format
	// CrawlTree crawls the tree even when a snapshot exists.
	CrawlTree bool
}

// Refresh brings the snapshots of cur up to date and writes two listings per format into
// opts.OutputDir, one for the current term and one spanning the whole window.
func (p Pipeline) Refresh(ctx context.Context, cur curriculum.Curriculum, opts RefreshOptions) error {
	from, err := opts.Current.Add(-opts.PreviousTerms)
	if err != nil {
		return fmt.Errorf("window of %d terms before %s: %w", opts.PreviousTerms, opts.Current.Name(), err)
	}

	crawl := opts.CrawlTree
	if !crawl {
		_, err = os.Stat(cur.TreeFile)
		crawl = errors.Is(err, os.ErrNotExist)
	}
	if crawl {
		_, err = p.CrawlTree(ctx, cur)
		if err != nil {
			return err
		}
	}

	_, err = p.UpdateOfferings(ctx, cur, from, opts.Current)
	if err != nil {
		return err
	}

	err = os.MkdirAll(opts.OutputDir, 0755)
	if err != nil {
		return err
	}
	for _, format := range opts.Formats {
		outputs := []struct {
			name string
			opts listing.Options
		}{
			{name: cur.Key, opts: listing.Options{Term: opts.Current}},
			{name: cur.Key + "-all", opts: listing.Options{Term: opts.Current, From: &from}},
		}
		for _, out := range outputs {
			path := filepath.Join(opts.OutputDir, out.name+format.Extension())
			err = p.renderFile(ctx, cur, out.opts, format, path)
			if err != nil {
				p.tel.ReportBroken(report_pipeline_output, err, path)
				return err
			}
			p.tel.ReportDebug("listing written", path)
		}
	}
	return nil
}

func (p Pipeline) renderFile(ctx context.Context, cur curriculum.Curriculum, opts listing.Options, format render.Format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = p.Render(ctx, cur, opts, format, f)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
