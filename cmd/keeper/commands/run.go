package commands

import (
	"context"
	"log/slog"
	"time"

	"activity-keeper/internal/components/chrono"
	"activity-keeper/lib/serviceutil"
	libtelemetry "activity-keeper/lib/telemetry"

	"github.com/spf13/cobra"
)

var noStartup *bool

func init() {
	noStartup = runCmd.Flags().Bool("no-startup", false, "Skip the startup availability check and its email.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--no-startup]",
	Short: "Runs the keeper until interrupted: login, logout and monitoring on their schedules.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := serviceutil.SignalContext()
		defer cancel()

		app, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer app.Close()

		service, err := app.service()
		if err != nil {
			return err
		}
		if app.cfg.Site.Password == "" {
			slog.Warn("no site password configured, scheduled logins will fail")
		}

		if exporters.Enabled() {
			libtelemetry.InstrumentPerfStats(ctx)
		}

		if !*noStartup {
			service.Startup(ctx)
		}

		cron := chrono.NewStandardCron(app.tel, app.clock.Location())
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), service.JobTimeout()+5*time.Second)
			defer cancel()
			if err := cron.Stop(stopCtx); err != nil {
				slog.Warn("jobs still running at shutdown", "err", err)
			}
		}()

		err = service.Start(ctx, cron)
		if err != nil {
			return err
		}
		schedules := service.Schedules()
		slog.Info(
			"keeper started",
			"timezone", app.clock.Location().String(),
			"login", schedules.Login,
			"logout", schedules.Logout,
			"monitor", schedules.Monitor,
		)

		if app.cfg.Status.Port > 0 {
			err = serviceutil.ServeHttp(ctx, app.cfg.Status.Port, service.Handler())
			if err != nil {
				return err
			}
		} else {
			<-ctx.Done()
		}

		slog.Info("shutting down")
		return nil
	},
}
