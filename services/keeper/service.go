package keeper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"activity-keeper/internal/components/chrono"
	"activity-keeper/internal/components/telemetry"
	"activity-keeper/lib/journal"
	"activity-keeper/lib/notify"
	libtelemetry "activity-keeper/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_service_login   = "service.login"
	report_service_logout  = "service.logout"
	report_service_check   = "service.check"
	report_service_notify  = "service.notify"
	report_service_journal = "service.journal"

	report_failed_checks = "service.failed_checks"
)

var meter = libtelemetry.Meter("activity-keeper/services/keeper")

// Site is the activity site as the keeper sees it.
type Site interface {
	Ping(ctx context.Context) error
	Login(ctx context.Context, password string) error
	Logout(ctx context.Context) error
}

// Journal records finished runs.
type Journal interface {
	Record(ctx context.Context, run journal.Run) error
}

const (
	DefaultLoginSchedule   = "30 9 * * 1-6"
	DefaultLogoutSchedule  = "30 18 * * 1-6"
	DefaultMonitorSchedule = "*/30 * * * *"
	DefaultJobTimeout      = 2 * time.Minute
)

type Schedules struct {
	Login   string `json:"login"`
	Logout  string `json:"logout"`
	Monitor string `json:"monitor"`
}

func (s Schedules) WithDefaults() Schedules {
	if s.Login == "" {
		s.Login = DefaultLoginSchedule
	}
	if s.Logout == "" {
		s.Logout = DefaultLogoutSchedule
	}
	if s.Monitor == "" {
		s.Monitor = DefaultMonitorSchedule
	}
	return s
}

// Validate checks every schedule parses.
func (s Schedules) Validate() error {
	s = s.WithDefaults()
	for name, spec := range map[string]string{"login": s.Login, "logout": s.Logout, "monitor": s.Monitor} {
		if err := chrono.ValidateSpec(spec); err != nil {
			return fmt.Errorf("%s schedule: %w", name, err)
		}
	}
	return nil
}

type Options struct {
	// Password is the access code posted with the login form.
	Password  string
	Schedules Schedules
	// JobTimeout bounds a single login, logout or check once it holds the
	// site.
	JobTimeout time.Duration
}

type Service struct {
	site     Site
	notifier notify.Notifier
	journal  Journal
	clock    chrono.TimeAPI
	tel      telemetry.API
	opts     Options

	jobCounter metric.Int64Counter

	// site holds one cookie jar, so operations on it must not interleave.
	// A job holds the single slot of siteSlot while it uses the site.
	siteSlot chan struct{}

	mu     sync.Mutex
	status Status
	// failedChecks counts consecutive failed checks.
	failedChecks int64
}

// NewService wires the keeper, journal may be nil.
func NewService(site Site, notifier notify.Notifier, journal Journal, clock chrono.TimeAPI, tel telemetry.API, opts Options) *Service {
	opts.Schedules = opts.Schedules.WithDefaults()
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}

	jobCounter, err := meter.Int64Counter(
		"keeper.jobs",
		metric.WithDescription("Finished keeper jobs by kind and outcome."),
	)
	if err != nil {
		tel.ReportWarning("service.metrics", err)
	}

	return &Service{
		site:       site,
		notifier:   notifier,
		journal:    journal,
		clock:      clock,
		tel:        telemetry.NewScopedAPI("keeper", tel),
		opts:       opts,
		jobCounter: jobCounter,
		siteSlot:   make(chan struct{}, 1),
	}
}

// Schedules returns the schedules the service registers, defaults filled in.
func (s *Service) Schedules() Schedules {
	return s.opts.Schedules
}

// JobTimeout bounds a single job once it holds the site.
func (s *Service) JobTimeout() time.Duration {
	return s.opts.JobTimeout
}

func (s *Service) notify(ctx context.Context, msg notify.Message) {
	// a failed notification never fails the job that produced it
	err := s.notifier.Notify(ctx, msg)
	if err != nil {
		s.tel.ReportWarning(report_service_notify, err, msg.Subject)
	}
}

// acquireSite waits for exclusive use of the site until ctx is done.
func (s *Service) acquireSite(ctx context.Context) error {
	select {
	case s.siteSlot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for the site: %w", ctx.Err())
	}
}

func (s *Service) releaseSite() {
	<-s.siteSlot
}

// runJob runs fn with exclusive access to the site and records the outcome.
// JobTimeout starts once the site is acquired, time spent queued behind
// another job does not count against it.
func (s *Service) runJob(ctx context.Context, kind journal.Kind, fn func(ctx context.Context) error) (startedAt time.Time, err error) {
	startedAt = s.clock.Now()
	begin := time.Now()

	err = s.acquireSite(ctx)
	if err == nil {
		jobCtx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
		err = fn(jobCtx)
		cancel()
		s.releaseSite()
	}

	run := journal.Run{
		Kind:      kind,
		StartedAt: startedAt,
		Duration:  time.Since(begin),
		Ok:        err == nil,
	}
	if err != nil {
		run.Error = err.Error()
	}

	if s.jobCounter != nil {
		s.jobCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.Bool("ok", err == nil),
		))
	}
	if s.journal != nil {
		// the job context may already be spent, the record should still land
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if jerr := s.journal.Record(recordCtx, run); jerr != nil {
			s.tel.ReportWarning(report_service_journal, jerr)
		}
	}
	return startedAt, err
}

func formatWhen(t time.Time) string {
	return t.Format("15:04 MST on Mon, 02 Jan 2006")
}

// Login performs the login flow and emails the outcome.
func (s *Service) Login(ctx context.Context) error {
	s.tel.ReportDebug("attempting to login")

	at, err := s.runJob(ctx, journal.KindLogin, func(ctx context.Context) error {
		return s.site.Login(ctx, s.opts.Password)
	})
	s.recordOutcome(&s.status.LastLogin, at, err)

	if err != nil {
		s.tel.ReportBroken(report_service_login, err)
		s.notify(ctx, notify.Message{
			Subject: "❌ Login Failed",
			Text:    fmt.Sprintf("The script failed to log in at %s.\n\nError: %s", formatWhen(at), err.Error()),
		})
		return err
	}

	s.tel.ReportDebug("login successful")
	s.notify(ctx, notify.Message{
		Subject: "✅ Successful Login",
		Text:    fmt.Sprintf("The automated script has successfully logged in at %s.", formatWhen(at)),
	})
	return nil
}

// Logout performs the logout flow and emails the outcome.
func (s *Service) Logout(ctx context.Context) error {
	s.tel.ReportDebug("attempting to logout")

	at, err := s.runJob(ctx, journal.KindLogout, func(ctx context.Context) error {
		return s.site.Logout(ctx)
	})
	s.recordOutcome(&s.status.LastLogout, at, err)

	if err != nil {
		s.tel.ReportBroken(report_service_logout, err)
		s.notify(ctx, notify.Message{
			Subject: "❌ Logout Failed",
			Text:    fmt.Sprintf("The script failed to log out at %s.\n\nError: %s", formatWhen(at), err.Error()),
		})
		return err
	}

	s.tel.ReportDebug("logout successful")
	s.notify(ctx, notify.Message{
		Subject: "👋 Successful Logout",
		Text:    fmt.Sprintf("The automated script has successfully logged out at %s.", formatWhen(at)),
	})
	return nil
}

// probe pings the site and folds the result into the availability state,
// it returns the previous availability and when the site went down.
func (s *Service) probe(ctx context.Context) (up bool, previous Availability, downSince time.Time, at time.Time, err error) {
	at, err = s.runJob(ctx, journal.KindCheck, func(ctx context.Context) error {
		return s.site.Ping(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	previous = s.status.Availability
	if s.status.DownSince != nil {
		downSince = *s.status.DownSince
	}
	s.status.LastCheck = &Outcome{At: at, Ok: err == nil}
	if err != nil {
		s.status.LastCheck.Error = err.Error()
		s.status.Availability = Down
		if previous != Down {
			since := at
			s.status.DownSince = &since
		}
		s.failedChecks++
	} else {
		s.status.Availability = Up
		s.status.DownSince = nil
		s.failedChecks = 0
	}
	s.tel.ReportCount(report_failed_checks, s.failedChecks)
	return err == nil, previous, downSince, at, err
}

// Startup runs the first availability check and reports it unconditionally.
func (s *Service) Startup(ctx context.Context) bool {
	up, _, _, at, err := s.probe(ctx)
	if up {
		s.notify(ctx, notify.Message{
			Subject: "✅ Website is Live",
			Text:    fmt.Sprintf("The monitoring service has started at %s and the website is accessible.", formatWhen(at)),
		})
		return true
	}

	s.tel.ReportBroken(report_service_check, err)
	s.notify(ctx, notify.Message{
		Subject: "🔥 URGENT: Website is DOWN on startup!",
		Text:    fmt.Sprintf("The monitoring service started at %s, but the website is not accessible.\n\nError: %s", formatWhen(at), err.Error()),
	})
	return false
}

// Check is the periodic availability check. Every failed check alerts,
// a check that succeeds after failures announces the recovery.
func (s *Service) Check(ctx context.Context) bool {
	s.tel.ReportDebug("checking website status")

	up, previous, downSince, at, err := s.probe(ctx)
	if !up {
		s.tel.ReportBroken(report_service_check, err)
		s.notify(ctx, notify.Message{
			Subject: "🔥 URGENT: Website is DOWN!",
			Text:    fmt.Sprintf("The scheduled check at %s failed. The website is not accessible.\n\nError: %s", formatWhen(at), err.Error()),
		})
		return false
	}

	if previous == Down {
		s.notify(ctx, notify.Message{
			Subject: "✅ Website is back online",
			Text: fmt.Sprintf(
				"The check at %s succeeded. The website was unreachable for %s.",
				formatWhen(at), at.Sub(downSince).Round(time.Minute),
			),
		})
	}
	return true
}

// Start registers the login, logout and monitor jobs. Jobs run with ctx
// and are skipped once it is done.
func (s *Service) Start(ctx context.Context, cron chrono.CronAPI) error {
	if err := s.opts.Schedules.Validate(); err != nil {
		return err
	}

	guard := func(job func(ctx context.Context)) func() {
		return func() {
			if ctx.Err() != nil {
				return
			}
			job(ctx)
		}
	}

	jobs := []struct {
		spec string
		job  func(ctx context.Context)
	}{
		{s.opts.Schedules.Login, func(ctx context.Context) { s.Login(ctx) }},
		{s.opts.Schedules.Logout, func(ctx context.Context) { s.Logout(ctx) }},
		{s.opts.Schedules.Monitor, func(ctx context.Context) { s.Check(ctx) }},
	}
	for _, j := range jobs {
		err := cron.Cron(j.spec, guard(j.job))
		if err != nil {
			return err
		}
	}
	return nil
}
