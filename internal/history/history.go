// Package history persists run lifecycle rows in Postgres. The store is
// optional: when no DSN is configured there is no store and the pipeline
// runs without one. A nil *Store is safe to call.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"

	"repolens/internal/config"
)

// Run is one recorded analysis run.
type Run struct {
	RunID      string    `json:"run_id"`
	Repo       string    `json:"repo"`
	Ref        string    `json:"ref,omitempty"`
	Status     string    `json:"status"`
	Warnings   int       `json:"warnings"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

type Store struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	recentCache *lru.Cache[int, []Run]
}

// New opens a Postgres-backed store and verifies the connection.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	cache, err := lru.New[int, []Run](8)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, recentCache: cache}, nil
}

// NewFromEnv opens the store when the config carries a DSN and returns nil
// otherwise. An unreachable database downgrades to no store rather than a
// startup failure.
func NewFromEnv(cfg config.HistoryConfig) *Store {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil
	}
	s, err := New(dsn)
	if err != nil {
		logrus.Warnf("history: postgres unavailable, runs will not be recorded: %v", err)
		return nil
	}
	return s
}

func (s *Store) ensureSchema() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.Exec(`
CREATE TABLE IF NOT EXISTS analysis_runs (
  run_id TEXT PRIMARY KEY,
  repo TEXT NOT NULL DEFAULT '',
  ref TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'running',
  warnings INT NOT NULL DEFAULT 0,
  duration_ms BIGINT NOT NULL DEFAULT 0,
  started_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
  finished_at TIMESTAMP WITH TIME ZONE
);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_started_at ON analysis_runs (started_at);
`)
	})
	return s.schemaErr
}

// StartRun records the beginning of a run with status "running".
func (s *Store) StartRun(ctx context.Context, runID, repo, ref string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO analysis_runs (run_id, repo, ref, status, started_at)
VALUES ($1, $2, $3, 'running', NOW())
ON CONFLICT (run_id) DO NOTHING`,
		runID, strings.TrimSpace(repo), strings.TrimSpace(ref))
	if err == nil && s.recentCache != nil {
		s.recentCache.Purge()
	}
	return err
}

// FinishRun stamps the terminal status, warning count, and duration.
func (s *Store) FinishRun(ctx context.Context, runID, status string, warnings int, took time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.ensureSchema(); err != nil {
		return err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: empty run id")
	}
	_, err := s.db.ExecContext(ctx, `
UPDATE analysis_runs
SET status = $2, warnings = $3, duration_ms = $4, finished_at = NOW()
WHERE run_id = $1`,
		runID, status, warnings, took.Milliseconds())
	if err == nil && s.recentCache != nil {
		s.recentCache.Purge()
	}
	return err
}

// Recent returns the newest runs, most recent first. Reads are served from
// a small LRU that writes invalidate.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if s.recentCache != nil {
		if cached, ok := s.recentCache.Get(limit); ok {
			return cached, nil
		}
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, repo, ref, status, warnings, duration_ms, started_at, finished_at
FROM analysis_runs
ORDER BY started_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Run, 0, limit)
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.RunID, &r.Repo, &r.Ref, &r.Status, &r.Warnings, &r.DurationMS, &r.StartedAt, &finished); err != nil {
			continue
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		out = append(out, r)
	}
	if s.recentCache != nil {
		s.recentCache.Add(limit, out)
	}
	return out, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
