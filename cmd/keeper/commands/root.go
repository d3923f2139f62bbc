package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"activity-keeper/lib/serviceutil"
	libtelemetry "activity-keeper/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool

	exporters libtelemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "keeper logs into the activity site on a schedule and watches that it stays up.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(*verbose)

		var err error
		exporters, err = libtelemetry.SetupFromEnv(cmd.Context(), "keeper")
		if err != nil {
			serviceutil.Fatal("failed to set up telemetry", err)
		}
	},
	SilenceUsage: true,
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the json5 config file, a .local variant overrides it.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level and dump http traffic to .dev/resty.")
}

func Execute() {
	ExecuteContext(context.Background())
}

// flushTelemetry is swapped in tests.
var flushTelemetry = func() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := exporters.Shutdown(ctx); err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

// execute runs the command line and flushes telemetry whether or not the
// command failed.
func execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	flushTelemetry()
	return err
}

func ExecuteContext(ctx context.Context) {
	if err := execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
