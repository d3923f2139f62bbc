package commands

import (
	"activity-keeper/internal/components/chrono"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scheduleCount *int

func init() {
	scheduleCount = scheduleCmd.Flags().IntP("count", "n", 3, "The amount of upcoming runs to show per job.")
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [-n <count>]",
	Short: "Shows when each job will run next, in the configured timezone.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cmd.Context(), *configPath)
		if err != nil {
			return err
		}
		clock, err := chrono.NewStandardTime(cfg.Timezone)
		if err != nil {
			return err
		}
		schedules := cfg.Schedules.WithDefaults()

		t := newTable()
		t.AppendHeader(table.Row{"Job", "Schedule", "Next run"})
		jobs := []struct{ name, spec string }{
			{"login", schedules.Login},
			{"logout", schedules.Logout},
			{"monitor", schedules.Monitor},
		}
		now := clock.Now()
		for _, job := range jobs {
			runs, err := chrono.NextRuns(job.spec, now, *scheduleCount)
			if err != nil {
				return err
			}
			for i, at := range runs {
				name, spec := job.name, job.spec
				if i > 0 {
					name, spec = "", ""
				}
				t.AppendRow(table.Row{name, spec, at.Format("Mon, 02 Jan 2006 15:04 MST")})
			}
			t.AppendSeparator()
		}
		t.Render()
		return nil
	},
}
