// Package history records update checks in a local SQLite database so the
// demo screen and the HTTP surface can show what happened across launches.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver, WAL-friendly

	apperrors "updatekit/internal/errors"
)

// DefaultFileName is the database file created under the updatekit directory.
const DefaultFileName = "history.db"

// DefaultLimit bounds Recent when callers pass a non-positive limit.
const DefaultLimit = 20

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Outcome summarizes how a check ended.
type Outcome string

const (
	OutcomeUpdateFound Outcome = "update_found"
	OutcomeNoUpdate    Outcome = "no_update"
	OutcomeFailed      Outcome = "failed"
)

// Entry is one recorded check.
type Entry struct {
	ID         string    `json:"id" yaml:"id"`
	Kind       string    `json:"kind" yaml:"kind"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
	Display    string    `json:"display,omitempty" yaml:"display,omitempty"`
	Build      string    `json:"build,omitempty" yaml:"build,omitempty"`
	Error      string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Duration is how long the check took.
func (e Entry) Duration() time.Duration {
	if e.FinishedAt.Before(e.StartedAt) {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	display     TEXT NOT NULL DEFAULT '',
	build       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS checks_started_at ON checks (started_at);
`

// Store is a check history database. Its methods are safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "open history", fmt.Errorf("empty database path"))
	}
	//nolint:gosec // G301: User data directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(trimmed), 0755); err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "create history directory", err)
	}

	db, err := sql.Open("sqlite", buildDSN(trimmed))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "open sqlite db", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "ping sqlite db", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "apply history schema", err)
	}
	return &Store{db: db, path: trimmed}, nil
}

// buildDSN creates a read-write WAL DSN for the given path.
func buildDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(3000)")
	q.Add("_pragma", "journal_mode(WAL)")
	u.RawQuery = q.Encode()
	return u.String()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Record inserts e, assigning an ID when it has none, and returns the stored entry.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = e.FinishedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checks (id, kind, started_at, finished_at, outcome, display, build, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.Kind,
		formatTime(e.StartedAt), formatTime(e.FinishedAt),
		string(e.Outcome), e.Display, e.Build, e.Error,
	)
	if err != nil {
		return e, apperrors.New(apperrors.CodeHistoryFailed, "insert check", err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, started_at, finished_at, outcome, display, build, error
		FROM checks
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "query checks", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished string
			outcome           string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &started, &finished, &outcome, &e.Display, &e.Build, &e.Error); err != nil {
			return nil, apperrors.New(apperrors.CodeHistoryFailed, "scan check", err)
		}
		e.StartedAt = parseTime(started)
		e.FinishedAt = parseTime(finished)
		e.Outcome = Outcome(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.New(apperrors.CodeHistoryFailed, "iterate checks", err)
	}
	return entries, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
