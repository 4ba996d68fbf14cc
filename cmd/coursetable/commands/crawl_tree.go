package commands

import (
	"log/slog"
	"time"

	"coursetable/internal/config"
	"coursetable/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	crawlShowBrowser *bool
	crawlWorkers     *int
)

func init() {
	crawlShowBrowser = crawlTreeCmd.Flags().Bool("show-browser", false, "Run the browser with a visible window.")
	crawlWorkers = crawlTreeCmd.Flags().Int("workers", 0, "The number of browser sessions, overrides the config.")
	rootCmd.AddCommand(crawlTreeCmd)
}

var crawlTreeCmd = &cobra.Command{
	Use:   "crawl-tree <curriculum>... [--show-browser] [--workers <n>]",
	Short: "Crawls the curriculum trees and replaces their tree snapshots.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp(cmd.Context(), func(cfg *config.Config) {
			if *crawlShowBrowser {
				cfg.Tree.Browser.Headless = false
			}
			if *crawlWorkers > 0 {
				cfg.Tree.Crawl.Workers = *crawlWorkers
			}
		})
		defer a.close()

		for _, key := range args {
			cur, err := a.cfg.Curriculum(key)
			if err != nil {
				serviceutil.Fatal("failed to resolve curriculum", err)
			}

			start := time.Now()
			records, err := a.pipeline.CrawlTree(cmd.Context(), cur)
			if err != nil {
				serviceutil.Fatal("failed to crawl tree", err)
			}
			slog.Info(
				"crawled tree",
				"curriculum", key,
				"records", len(records),
				"seconds", time.Since(start).Seconds(),
			)
		}
	},
}
