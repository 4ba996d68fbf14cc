package commands

import (
	"log/slog"

	"coursetable/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	updateFrom *string
	updateTo   *string
)

func init() {
	updateFrom = updateCmd.Flags().String("from", "", "The oldest term to fetch, defaults to --to.")
	updateTo = updateCmd.Flags().String("to", "", "The newest term to fetch, defaults to the current term.")
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update <curriculum>... [--from <term>] [--to <term>]",
	Short: "Fetches the offerings of the missing terms (and always the newest) into the offerings snapshots.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp(cmd.Context(), nil)
		defer a.close()

		to, err := termFlag(*updateTo, a.clock)
		if err != nil {
			serviceutil.Fatal("failed to parse --to", err)
		}
		from := to
		if *updateFrom != "" {
			from, err = parseTerm(*updateFrom)
			if err != nil {
				serviceutil.Fatal("failed to parse --from", err)
			}
		}

		for _, key := range args {
			cur, err := a.cfg.Curriculum(key)
			if err != nil {
				serviceutil.Fatal("failed to resolve curriculum", err)
			}
			result, err := a.pipeline.UpdateOfferings(cmd.Context(), cur, from, to)
			if err != nil {
				a.close()
				serviceutil.Fatal("failed to update offerings, run again to continue", err)
			}
			slog.Info(
				"updated offerings",
				"curriculum", key,
				"terms", len(result.Fetched),
				"offerings", result.Total,
			)
		}
	},
}
