package commands

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"coursetable/internal/browser"
	"coursetable/internal/components/chrono"
	"coursetable/internal/components/telemetry"
	"coursetable/internal/config"
	"coursetable/internal/equivalence"
	"coursetable/internal/offerings"
	"coursetable/internal/pipeline"
	"coursetable/internal/scrapers/catalog"
	"coursetable/internal/scrapers/tree"
	"coursetable/internal/term"
	"coursetable/pkg/serviceutil"
)

type app struct {
	cfg      config.Config
	tel      telemetry.API
	clock    chrono.TimeAPI
	pipeline pipeline.Pipeline
	shutdown func(context.Context) error
}

// newApp reads the config and wires the pipeline, it exits the process on failure.
func newApp(ctx context.Context, tweak func(*config.Config)) app {
	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if tweak != nil {
		tweak(&cfg)
	}

	location, err := chrono.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		serviceutil.Fatal("failed to load timezone", err)
	}

	shutdown, err := telemetry.SetupTracing(ctx, "coursetable", cfg.Telemetry)
	if err != nil {
		serviceutil.Fatal("failed to setup tracing", err)
	}

	tel := telemetry.SlogAPI{}
	client, err := catalog.NewClient(cfg.Catalog.Client, tel)
	if err != nil {
		serviceutil.Fatal("failed to create catalog client", err)
	}
	crawler := tree.NewCrawler(browser.NewSessionFactory(cfg.Tree.Browser, tel), cfg.Tree.Crawl, tel)
	fetcher := offerings.NewFetcher(client, cfg.Catalog.Fetch, tel)
	resolver := equivalence.NewResolver(client, cfg.Catalog.LookupConcurrency, tel)

	return app{
		cfg:      cfg,
		tel:      tel,
		clock:    chrono.NewStandardTime(location),
		pipeline: pipeline.New(crawler, fetcher, resolver, tel),
		shutdown: shutdown,
	}
}

func (a app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	err := a.shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush traces", "err", err)
	}
}

// parseTerm accepts both term names like "WS24/25" and numeric ids.
func parseTerm(s string) (term.ID, error) {
	v, err := strconv.Atoi(s)
	if err == nil {
		return term.New(v)
	}
	return term.Parse(s)
}

// termFlag parses s, an empty value is the term the current date falls in.
func termFlag(s string, clock chrono.TimeAPI) (term.ID, error) {
	if s == "" {
		return term.ForDate(clock.Now())
	}
	return parseTerm(s)
}
