// Package journal keeps a history of every job the keeper ran.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"activity-keeper/lib/journal/db"

	"github.com/mazen160/go-random"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Kind string

const (
	KindLogin  Kind = "login"
	KindLogout Kind = "logout"
	KindCheck  Kind = "check"
)

// Run is one execution of a job.
type Run struct {
	ID        string
	Kind      Kind
	StartedAt time.Time
	Duration  time.Duration
	Ok        bool
	// Error is empty when Ok.
	Error string
}

// Config selects the database, a remote libsql Url takes precedence over File.
type Config struct {
	File      string `json:"file"`
	Url       string `json:"url"`
	AuthToken string `json:"auth_token" env:"JOURNAL_AUTH_TOKEN"`
}

func (c Config) Enabled() bool {
	return c.File != "" || c.Url != ""
}

func wrapOpenDB(err error) error {
	return fmt.Errorf("open journal: %w", err)
}

// OpenDB opens the configured database and creates the schema if needed.
func OpenDB(ctx context.Context, config Config) (*sql.DB, error) {
	var database *sql.DB
	var err error

	switch {
	case config.Url != "":
		values := url.Values{}
		if config.AuthToken != "" {
			values.Add("authToken", config.AuthToken)
		}
		dsn := config.Url
		if len(values) > 0 {
			dsn += "?" + values.Encode()
		}
		database, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
	case config.File != "":
		if config.File != ":memory:" {
			err = os.MkdirAll(filepath.Dir(config.File), 0o755)
			if err != nil {
				return nil, wrapOpenDB(err)
			}
		}
		database, err = sql.Open("sqlite", config.File)
		if err != nil {
			return nil, wrapOpenDB(err)
		}
		// sqlite only allows one writer, and an in memory database only
		// lives as long as its single connection
		database.SetMaxOpenConns(1)
		if config.File != ":memory:" {
			_, err = database.ExecContext(ctx, "PRAGMA journal_mode=WAL")
			if err != nil {
				database.Close()
				return nil, wrapOpenDB(err)
			}
		}
	default:
		return nil, wrapOpenDB(fmt.Errorf("neither file nor url was specified"))
	}

	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return nil, wrapOpenDB(fmt.Errorf("apply schema: %w", err))
	}
	return database, nil
}

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// NewID returns a random identifier for a run.
func NewID() (string, error) {
	return random.String(12)
}

// Record stores run, an empty ID is filled in.
func (s Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		id, err := NewID()
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
		run.ID = id
	}

	var ok int64
	if run.Ok {
		ok = 1
	}
	err := s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:         run.ID,
		Kind:       string(run.Kind),
		Startedat:  run.StartedAt.UnixMilli(),
		Durationms: run.Duration.Milliseconds(),
		Ok:         ok,
		Error:      run.Error,
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

func fromRow(row db.Run, location *time.Location) Run {
	return Run{
		ID:        row.ID,
		Kind:      Kind(row.Kind),
		StartedAt: time.UnixMilli(row.Startedat).In(location),
		Duration:  time.Duration(row.Durationms) * time.Millisecond,
		Ok:        row.Ok != 0,
		Error:     row.Error,
	}
}

// List returns the most recent runs first, an empty kind lists every kind.
// Times are converted into location.
func (s Store) List(ctx context.Context, kind Kind, limit int, location *time.Location) ([]Run, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	var rows []db.Run
	var err error
	if kind == "" {
		rows, err = s.qry.ListRuns(ctx, int64(limit))
	} else {
		rows, err = s.qry.ListRunsOfKind(ctx, db.ListRunsOfKindParams{
			Kind:  string(kind),
			Limit: int64(limit),
		})
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]Run, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r, location)
	}
	return out, nil
}

// Last returns the most recent run of kind, found is false if there is none.
func (s Store) Last(ctx context.Context, kind Kind, location *time.Location) (run Run, found bool, err error) {
	row, err := s.qry.LastRunOfKind(ctx, string(kind))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("last run: %w", err)
	}
	return fromRow(row, location), true, nil
}

// Prune deletes runs started before cutoff.
func (s Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.qry.DeleteRunsBefore(ctx, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return n, nil
}
