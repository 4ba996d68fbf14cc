package offerings

import (
	"context"
	"fmt"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/scrapers/catalog"
	"coursetable/internal/term"

	"golang.org/x/sync/errgroup"
)

const (
	report_fetch_term      = "fetch.term"
	report_fetch_ceiling   = "fetch.page-ceiling"
	report_fetch_offerings = "fetch.offerings"
)

// AllowedCourseTypes are the course kinds listed, lectures (VO) and integrated lectures (VI).
var AllowedCourseTypes = map[string]bool{
	"VO": true,
	"VI": true,
}

// CourseLister is the catalog api used by Fetcher, implemented by *catalog.Client.
type CourseLister interface {
	Courses(ctx context.Context, filter catalog.Filter, skip, top int) ([]catalog.CourseDTO, error)
}

type FetchConfig struct {
	PageSize int `json:"page_size"`
	// MaxPages is the number of pages requested for every curriculum id regardless of how many
	// courses exist, trailing empty pages are discarded.
	MaxPages int `json:"max_pages"`
}

func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		PageSize: 100,
		MaxPages: 15,
	}
}

type Fetcher struct {
	lister CourseLister
	config FetchConfig
	tel    telemetry.API
}

func NewFetcher(lister CourseLister, config FetchConfig, tel telemetry.API) Fetcher {
	assert.NotNil(lister)
	assert.NotNil(tel)
	assert.Positive("page size", config.PageSize)
	assert.Positive("max pages", config.MaxPages)

	return Fetcher{
		lister: lister,
		config: config,
		tel:    telemetry.NewScopedAPI("offerings", tel),
	}
}

// FetchTerm returns the allowed offerings of every curriculum id in the given term. The pages of
// all curriculum ids are requested at once. A course listed under several curriculum ids is kept
// once, under the first id (in the order given) that lists it.
func (f Fetcher) FetchTerm(ctx context.Context, id term.ID, curriculumIDs []string) ([]Offering, error) {
	results := make([][]catalog.CourseDTO, len(curriculumIDs))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, curriculumID := range curriculumIDs {
		i, curriculumID := i, curriculumID
		group.Go(func() error {
			dtos, err := f.fetchAllPages(groupCtx, catalog.Filter{
				TermID:              id.Int(),
				CurriculumVersionID: curriculumID,
			})
			if err != nil {
				f.tel.ReportBroken(report_fetch_term, err, id.Name(), curriculumID)
				return fmt.Errorf("fetch %s (curriculum %s): %w", id.Name(), curriculumID, err)
			}
			results[i] = dtos
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{}
	var out []Offering
	for _, dtos := range results {
		for _, dto := range dtos {
			if !AllowedCourseTypes[dto.CourseType.Key] || seen[dto.ID] {
				continue
			}
			seen[dto.ID] = true
			out = append(out, Offering{
				ID:         dto.ID,
				Term:       id,
				TermName:   id.Name(),
				CourseType: dto.CourseType.Key,
				Title:      dto.EnglishTitle(),
			})
		}
	}

	f.tel.ReportCount(report_fetch_offerings, int64(len(out)))
	return out, nil
}

func (f Fetcher) fetchAllPages(ctx context.Context, filter catalog.Filter) ([]catalog.CourseDTO, error) {
	pages := make([][]catalog.CourseDTO, f.config.MaxPages)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := range pages {
		i := i
		group.Go(func() error {
			page, err := f.lister.Courses(groupCtx, filter, i*f.config.PageSize, f.config.PageSize)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			pages[i] = page
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}

	if len(pages[len(pages)-1]) > 0 {
		f.tel.ReportWarning(
			report_fetch_ceiling,
			fmt.Errorf(
				"last of %d pages is not empty, courses beyond %d are missing",
				f.config.MaxPages,
				f.config.MaxPages*f.config.PageSize,
			),
			filter.TermID,
			filter.CurriculumVersionID,
		)
	}

	var out []catalog.CourseDTO
	for _, page := range pages {
		out = append(out, page...)
	}
	return out, nil
}
