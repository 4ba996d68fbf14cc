package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"coursetable/internal/curriculum"
	"coursetable/internal/pipeline"
	"coursetable/internal/render"
	"coursetable/internal/term"
	"coursetable/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	runTerm  *string
	runCrawl *bool
)

func init() {
	runTerm = runCmd.Flags().String("term", "", "The current term, defaults to the term of today.")
	runCrawl = runCmd.Flags().Bool("crawl", false, "Crawl the curriculum trees even if snapshots exist.")
	rootCmd.AddCommand(runCmd)
}

func (a app) curricula(keys []string) ([]curriculum.Curriculum, error) {
	if len(keys) == 0 {
		return a.cfg.ScheduledCurricula()
	}
	out := make([]curriculum.Curriculum, len(keys))
	for i, key := range keys {
		cur, err := a.cfg.Curriculum(key)
		if err != nil {
			return nil, err
		}
		out[i] = cur
	}
	return out, nil
}

// refresh runs every curriculum even if one of them fails, the errors are joined.
func (a app) refresh(ctx context.Context, curricula []curriculum.Curriculum, current term.ID, crawl bool) error {
	formats := make([]render.Format, len(a.cfg.Schedule.Formats))
	for i, name := range a.cfg.Schedule.Formats {
		format, err := render.ParseFormat(name)
		if err != nil {
			return err
		}
		formats[i] = format
	}
	opts := pipeline.RefreshOptions{
		Current:       current,
		PreviousTerms: a.cfg.Schedule.PreviousTerms,
		OutputDir:     a.cfg.Schedule.OutputDir,
		Formats:       formats,
		CrawlTree:     crawl || a.cfg.Schedule.CrawlTree,
	}

	var errs []error
	for _, cur := range curricula {
		start := time.Now()
		err := a.pipeline.Refresh(ctx, cur, opts)
		if err != nil {
			slog.Error("failed to refresh curriculum", "curriculum", cur.Key, "err", err)
			errs = append(errs, err)
			continue
		}
		slog.Info(
			"refreshed curriculum",
			"curriculum", cur.Key,
			"term", current.Name(),
			"seconds", time.Since(start).Seconds(),
		)
	}
	return errors.Join(errs...)
}

var runCmd = &cobra.Command{
	Use:   "run [curriculum...] [--term <term>] [--crawl]",
	Short: "Updates the snapshots and writes the listings of the configured curricula once.",
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp(cmd.Context(), nil)
		defer a.close()

		current, err := termFlag(*runTerm, a.clock)
		if err != nil {
			serviceutil.Fatal("failed to parse --term", err)
		}

		curricula, err := a.curricula(args)
		if err != nil {
			serviceutil.Fatal("failed to resolve curricula", err)
		}
		err = a.refresh(cmd.Context(), curricula, current, *runCrawl)
		if err != nil {
			a.close()
			serviceutil.Fatal("run failed", err)
		}
	},
}
