package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	// pq is the PostgreSQL driver
	_ "github.com/lib/pq"
	// sqlite is the embedded driver used for single-node deployments and tests
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a job or result row does not exist.
var ErrNotFound = errors.New("not found")

// Store persists evaluation jobs and their per-utterance results.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the database and creates the schema when it is missing.
// driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dataSourceName string) (*Store, error) {
	switch driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// one writer at a time; sqlite serializes writes anyway
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	idColumn := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		idColumn = "BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS evaluation_jobs (
			id ` + idColumn + `,
			job_name TEXT NOT NULL DEFAULT '',
			job_type TEXT NOT NULL,
			status TEXT NOT NULL,
			normalization TEXT NOT NULL DEFAULT 'none',
			char_granularity TEXT NOT NULL DEFAULT 'char',
			utterances INTEGER NOT NULL DEFAULT 0,
			scored INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			report_object TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			started_at BIGINT,
			completed_at BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS asr_evaluation_results (
			id ` + idColumn + `,
			job_id BIGINT NOT NULL REFERENCES evaluation_jobs(id) ON DELETE CASCADE,
			utterance_index INTEGER NOT NULL,
			utterance_key TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			reference_text TEXT NOT NULL,
			recognized_text TEXT,
			word_counts TEXT NOT NULL DEFAULT '',
			char_counts TEXT NOT NULL DEFAULT '',
			wer_numerator INTEGER NOT NULL DEFAULT 0,
			wer_denominator INTEGER NOT NULL DEFAULT 0,
			wer_undefined INTEGER NOT NULL DEFAULT 0,
			cer_numerator INTEGER NOT NULL DEFAULT 0,
			cer_denominator INTEGER NOT NULL DEFAULT 0,
			cer_undefined INTEGER NOT NULL DEFAULT 0,
			classification TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS asr_evaluation_results_job_idx ON asr_evaluation_results (job_id, utterance_index)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
