package tree

import (
	"context"
	"errors"
	"fmt"

	"coursetable/internal/components/assert"
	"coursetable/internal/components/telemetry"

	"golang.org/x/sync/errgroup"
)

const (
	report_crawl_open          = "crawl.open"
	report_crawl_page          = "crawl.page"
	report_crawl_previous_year = "crawl.previous-year"
	report_crawl_records       = "crawl.records"
	report_crawl_close         = "crawl.close"
)

// ErrTreeCrawlTimeout is returned (wrapped) when the tree UI does not finish loading in time.
var ErrTreeCrawlTimeout = errors.New("tree crawl: timed out waiting for page to load")

// Session drives a single stateful view of the curriculum tree. A session is used by one
// goroutine only.
type Session interface {
	Open(ctx context.Context, url string) error
	PageCount(ctx context.Context) (int, error)
	// GoToPage navigates to the zero-based page index.
	GoToPage(ctx context.Context, page int) error
	// The Expand* methods click every currently collapsed node of their kind and return how
	// many were clicked.
	ExpandRuleNodes(ctx context.Context) (int, error)
	ExpandModuleNodes(ctx context.Context) (int, error)
	ExpandOfferNodes(ctx context.Context) (int, error)
	// EmptyOfferTables returns the number of offering tables reporting no entries for the
	// selected year.
	EmptyOfferTables(ctx context.Context) (int, error)
	// ShowPreviousYear triggers the "previous year" control of every empty offering table.
	ShowPreviousYear(ctx context.Context) error
	WaitUntilLoaded(ctx context.Context) error
	Rows(ctx context.Context) ([]Row, error)
	Close() error
}

type SessionFactory func(ctx context.Context) (Session, error)

type Options struct {
	// Workers is the number of independent sessions, each handles the pages whose index modulo
	// Workers equals its own index.
	Workers int `json:"workers"`
	// PreviousYearAttempts bounds how often empty offering tables are asked for the previous
	// year on a single page.
	PreviousYearAttempts int `json:"previous_year_attempts"`
	// MaxExpandRounds bounds each expansion loop in case a node never stays expanded.
	MaxExpandRounds int `json:"max_expand_rounds"`
}

func DefaultOptions() Options {
	return Options{
		Workers:              1,
		PreviousYearAttempts: 20,
		MaxExpandRounds:      50,
	}
}

type Crawler struct {
	newSession SessionFactory
	options    Options
	tel        telemetry.API
}

func NewCrawler(newSession SessionFactory, options Options, tel telemetry.API) Crawler {
	assert.NotNil(newSession)
	assert.NotNil(tel)
	assert.Positive("workers", options.Workers)
	if options.MaxExpandRounds <= 0 {
		options.MaxExpandRounds = DefaultOptions().MaxExpandRounds
	}
	return Crawler{
		newSession: newSession,
		options:    options,
		tel:        telemetry.NewScopedAPI("tree", tel),
	}
}

type workerResult struct {
	pageCount int
	pages     map[int]PageResult
}

// Crawl returns every course record of the tree at url in document order. Nothing is returned
// unless every page was scanned.
func (c Crawler) Crawl(ctx context.Context, url string) ([]Record, error) {
	results := make([]workerResult, c.options.Workers)

	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < c.options.Workers; w++ {
		w := w
		group.Go(func() error {
			res, err := c.crawlWorker(groupCtx, url, w)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			results[w] = res
			return nil
		})
	}
	err := group.Wait()
	if err != nil {
		return nil, err
	}

	pageCount := results[0].pageCount
	pages := make([]PageResult, pageCount)
	seen := make([]bool, pageCount)
	for w, res := range results {
		if res.pageCount != pageCount {
			return nil, fmt.Errorf(
				"worker %d saw %d pages, worker 0 saw %d",
				w, res.pageCount, pageCount,
			)
		}
		for page, result := range res.pages {
			pages[page] = result
			seen[page] = true
		}
	}
	for page, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("page %d was never scanned", page)
		}
	}

	records := MergePages(pages)
	c.tel.ReportCount(report_crawl_records, int64(len(records)))
	return records, nil
}

func (c Crawler) crawlWorker(ctx context.Context, url string, worker int) (workerResult, error) {
	session, err := c.newSession(ctx)
	if err != nil {
		c.tel.ReportBroken(report_crawl_open, err, worker)
		return workerResult{}, err
	}
	defer func() {
		err := session.Close()
		if err != nil {
			c.tel.ReportWarning(report_crawl_close, err, worker)
		}
	}()

	err = session.Open(ctx, url)
	if err != nil {
		c.tel.ReportBroken(report_crawl_open, err, url)
		return workerResult{}, fmt.Errorf("open %s: %w", url, err)
	}
	err = session.WaitUntilLoaded(ctx)
	if err != nil {
		return workerResult{}, err
	}

	pageCount, err := session.PageCount(ctx)
	if err != nil {
		return workerResult{}, fmt.Errorf("page count: %w", err)
	}

	res := workerResult{
		pageCount: pageCount,
		pages:     map[int]PageResult{},
	}
	for page := worker; page < pageCount; page += c.options.Workers {
		result, err := c.crawlPage(ctx, session, page)
		if err != nil {
			c.tel.ReportBroken(report_crawl_page, err, page)
			return workerResult{}, fmt.Errorf("page %d: %w", page, err)
		}
		c.tel.ReportDebug("scanned tree page", page, len(result.Records))
		res.pages[page] = result
	}
	return res, nil
}

func (c Crawler) crawlPage(ctx context.Context, session Session, page int) (PageResult, error) {
	err := session.GoToPage(ctx, page)
	if err != nil {
		return PageResult{}, fmt.Errorf("go to page: %w", err)
	}
	err = session.WaitUntilLoaded(ctx)
	if err != nil {
		return PageResult{}, err
	}

	expansions := []struct {
		name   string
		expand func(context.Context) (int, error)
	}{
		{"rule nodes", session.ExpandRuleNodes},
		{"module nodes", session.ExpandModuleNodes},
		{"offer nodes", session.ExpandOfferNodes},
	}
	for _, e := range expansions {
		err = c.expandAll(ctx, session, e.expand)
		if err != nil {
			return PageResult{}, fmt.Errorf("expand %s: %w", e.name, err)
		}
	}

	err = c.showPreviousYears(ctx, session, page)
	if err != nil {
		return PageResult{}, err
	}

	rows, err := session.Rows(ctx)
	if err != nil {
		return PageResult{}, fmt.Errorf("read rows: %w", err)
	}
	return ScanPage(rows), nil
}

func (c Crawler) expandAll(ctx context.Context, session Session, expand func(context.Context) (int, error)) error {
	for round := 0; round < c.options.MaxExpandRounds; round++ {
		clicked, err := expand(ctx)
		if err != nil {
			return err
		}
		if clicked == 0 {
			return nil
		}
		err = session.WaitUntilLoaded(ctx)
		if err != nil {
			return err
		}
	}
	return fmt.Errorf("nodes still collapsed after %d rounds", c.options.MaxExpandRounds)
}

func (c Crawler) showPreviousYears(ctx context.Context, session Session, page int) error {
	for attempt := 0; attempt < c.options.PreviousYearAttempts; attempt++ {
		empty, err := session.EmptyOfferTables(ctx)
		if err != nil {
			return fmt.Errorf("count empty offer tables: %w", err)
		}
		if empty == 0 {
			return nil
		}
		err = session.ShowPreviousYear(ctx)
		if err != nil {
			return fmt.Errorf("show previous year: %w", err)
		}
		err = session.WaitUntilLoaded(ctx)
		if err != nil {
			return err
		}
	}

	empty, err := session.EmptyOfferTables(ctx)
	if err != nil {
		return fmt.Errorf("count empty offer tables: %w", err)
	}
	if empty > 0 {
		c.tel.ReportWarning(
			report_crawl_previous_year,
			fmt.Errorf("%d offering tables still empty after %d attempts", empty, c.options.PreviousYearAttempts),
			page,
		)
	}
	return nil
}
