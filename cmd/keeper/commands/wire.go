package commands

import (
	"context"
	"database/sql"
	"log/slog"
	"os"

	"activity-keeper/internal/components/chrono"
	"activity-keeper/internal/components/telemetry"
	"activity-keeper/lib/activity"
	"activity-keeper/lib/journal"
	"activity-keeper/lib/notify"
	"activity-keeper/lib/restyutil"
	"activity-keeper/services/keeper"

	"github.com/jedib0t/go-pretty/v6/table"
)

// app is everything a command needs, built from Config.
type app struct {
	cfg      Config
	tel      telemetry.API
	clock    chrono.StandardTime
	client   *activity.Client
	notifier notify.Notifier
	database *sql.DB
	store    *journal.Store
}

func (a *app) Close() {
	if a.database != nil {
		a.database.Close()
	}
}

func newNotifier(cfg EmailConfig, quiet bool) (notify.Notifier, error) {
	if quiet || cfg.Disabled {
		return notify.LogNotifier{}, nil
	}
	return notify.NewSmtpNotifier(notify.SmtpConfig{
		Server:   cfg.Server,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		To:       cfg.To,
	})
}

func newClient(cfg SiteConfig, tel telemetry.API) (*activity.Client, error) {
	timeout, err := parseDuration("site.timeout", cfg.Timeout)
	if err != nil {
		return nil, err
	}

	opts := activity.ClientOptions{
		BaseUrl:       cfg.BaseUrl,
		ActivityPath:  cfg.ActivityPath,
		LoginPath:     cfg.LoginPath,
		LogoutPath:    cfg.LogoutPath,
		TokenField:    cfg.TokenField,
		PasswordField: cfg.PasswordField,
		Timeout:       timeout,
	}
	if *verbose {
		out, err := restyutil.NewFilesystemOutput(".dev/resty/activity")
		if err != nil {
			slog.Warn("http dumps disabled", "err", err)
		} else {
			opts.Dump = out
		}
	}
	return activity.NewClient(opts, tel)
}

func openJournal(ctx context.Context, cfg journal.Config) (*sql.DB, *journal.Store, error) {
	if !cfg.Enabled() {
		return nil, nil, nil
	}
	database, err := journal.OpenDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	store := journal.NewStore(database)
	return database, &store, nil
}

// newApp loads the config and builds the site client, notifier and journal.
func newApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := LoadConfig(ctx, *configPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg: cfg,
		tel: telemetry.SlogAPI{},
	}
	a.clock, err = chrono.NewStandardTime(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	a.client, err = newClient(cfg.Site, a.tel)
	if err != nil {
		return nil, err
	}
	a.notifier, err = newNotifier(cfg.Email, quiet)
	if err != nil {
		return nil, err
	}
	a.database, a.store, err = openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) service() (*keeper.Service, error) {
	jobTimeout, err := parseDuration("job_timeout", a.cfg.JobTimeout)
	if err != nil {
		return nil, err
	}

	var runs keeper.Journal
	if a.store != nil {
		runs = a.store
	}
	return keeper.NewService(a.client, a.notifier, runs, a.clock, a.tel, keeper.Options{
		Password:   a.cfg.Site.Password,
		Schedules:  a.cfg.Schedules,
		JobTimeout: jobTimeout,
	}), nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
