package commands

import (
	"log/slog"

	"coursetable/internal/components/chrono"
	"coursetable/internal/term"
	"coursetable/pkg/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs the configured curricula on the configured cron schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := newApp(ctx, nil)
		defer a.close()

		location, err := chrono.LoadLocation(a.cfg.Schedule.Timezone)
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}
		curricula, err := a.cfg.ScheduledCurricula()
		if err != nil {
			serviceutil.Fatal("failed to resolve curricula", err)
		}

		cron := chrono.NewStandardCron(location, a.tel)
		err = cron.Cron(a.cfg.Schedule.Cron, func() {
			current, err := term.ForDate(a.clock.Now())
			if err != nil {
				a.tel.ReportBroken("schedule.term", err)
				return
			}
			err = a.refresh(ctx, curricula, current, false)
			if err != nil {
				a.tel.ReportBroken("schedule.refresh", err, current.Name())
			}
		})
		if err != nil {
			serviceutil.Fatal("invalid cron spec", err)
		}
		slog.Info(
			"scheduled runs",
			"cron", a.cfg.Schedule.Cron,
			"timezone", location.String(),
			"curricula", len(curricula),
		)

		<-ctx.Done()
		slog.Info("waiting for running jobs")
		cron.Stop()
	},
}
