package commands

import (
	"fmt"
	"time"

	"activity-keeper/internal/components/chrono"
	"activity-keeper/lib/journal"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit *int
	historyKind  *string
	historyPrune *string
)

func init() {
	historyLimit = historyCmd.Flags().IntP("limit", "n", 20, "The amount of runs to show.")
	historyKind = historyCmd.Flags().String("kind", "", "Only show runs of this kind (login, logout or check).")
	historyPrune = historyCmd.Flags().String("prune", "", "Delete runs older than this duration (e.g. 720h) before listing.")
	rootCmd.AddCommand(historyCmd)
}

func parseKind(value string) (journal.Kind, error) {
	switch kind := journal.Kind(value); kind {
	case "", journal.KindLogin, journal.KindLogout, journal.KindCheck:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown kind %q", value)
	}
}

var historyCmd = &cobra.Command{
	Use:   "history [-n <limit>] [--kind <kind>] [--prune <age>]",
	Short: "Shows the most recent runs recorded in the journal.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := parseKind(*historyKind)
		if err != nil {
			return err
		}
		maxAge, err := parseDuration("prune", *historyPrune)
		if err != nil {
			return err
		}

		cfg, err := LoadConfig(ctx, *configPath)
		if err != nil {
			return err
		}
		if !cfg.Journal.Enabled() {
			return fmt.Errorf("no journal configured, set journal.file or journal.url")
		}
		clock, err := chrono.NewStandardTime(cfg.Timezone)
		if err != nil {
			return err
		}

		database, store, err := openJournal(ctx, cfg.Journal)
		if err != nil {
			return err
		}
		defer database.Close()

		if maxAge > 0 {
			n, err := store.Prune(ctx, clock.Now().Add(-maxAge))
			if err != nil {
				return err
			}
			fmt.Printf("pruned %d runs\n", n)
		}

		runs, err := store.List(ctx, kind, *historyLimit, clock.Location())
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Started", "Kind", "Result", "Duration", "Error"})
		for _, run := range runs {
			result := "ok"
			if !run.Ok {
				result = "failed"
			}
			t.AppendRow(table.Row{
				run.StartedAt.Format(time.DateTime + " MST"),
				run.Kind,
				result,
				run.Duration.Round(time.Millisecond),
				run.Error,
			})
		}
		t.Render()
		return nil
	},
}
