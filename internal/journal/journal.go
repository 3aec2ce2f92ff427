// Package journal records runs, completion exchanges and cycle outcomes in a
// local SQLite database so a run can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"specforge/internal/completion"
	"specforge/internal/types"
)

// Run is one session over a specification file.
type Run struct {
	ID        string
	Title     string
	Language  string
	Features  []string
	StartedAt time.Time
	Cycles    int
}

// Cycle is the recorded outcome of one generation cycle.
type Cycle struct {
	RunID        string
	Cycle        int
	Features     []string
	States       []string
	Outcome      string
	Completions  int
	ParseRetries int
	BuildRepairs int
	Files        int
	BuildCommand string
	Error        string
	Duration     time.Duration
	FinishedAt   time.Time
}

// Journal is a SQLite backed history store. It implements
// completion.TraceStore.
type Journal struct {
	db     *sql.DB
	dbPath string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ completion.TraceStore = (*Journal)(nil)

// Open creates or opens the journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps PRAGMAs in effect.
	db.SetMaxOpenConns(1)

	j := &Journal{db: db, dbPath: path, logger: logger}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("Journal opened", zap.String("path", path))
	return j, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

func (j *Journal) initSchema() error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		language TEXT NOT NULL,
		features_json TEXT NOT NULL,
		started_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		request_json TEXT NOT NULL,
		response TEXT NOT NULL,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_run ON exchanges(run_id, cycle);

	CREATE TABLE IF NOT EXISTS cycles (
		run_id TEXT NOT NULL,
		cycle INTEGER NOT NULL,
		features_json TEXT NOT NULL,
		states TEXT NOT NULL,
		outcome TEXT NOT NULL,
		completions INTEGER NOT NULL,
		parse_retries INTEGER NOT NULL,
		build_repairs INTEGER NOT NULL,
		files INTEGER NOT NULL,
		build_command TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		PRIMARY KEY (run_id, cycle)
	);
	`
	_, err := j.db.Exec(schema)
	return err
}

// =============================================================================
// WRITES
// =============================================================================

// StartRun records a new run for spec and returns its ID.
func (j *Journal) StartRun(ctx context.Context, spec types.Specification) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	id := uuid.NewString()
	features, err := json.Marshal(nonNil(spec.Features))
	if err != nil {
		return "", fmt.Errorf("failed to encode features: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO runs (id, title, language, features_json, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, spec.Title, spec.Language, string(features), time.Now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordExchange stores one completion exchange.
func (j *Journal) RecordExchange(ctx context.Context, ex completion.Exchange) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	request, err := json.Marshal(ex.Request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	ts := ex.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, run_id, cycle, provider, model, request_json, response, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), ex.RunID, ex.Cycle, ex.Provider, ex.Model, string(request),
		ex.Response, nullString(ex.Error), ex.Duration.Milliseconds(), ts.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record exchange: %w", err)
	}
	return nil
}

// RecordCycle stores or replaces the outcome of a cycle.
func (j *Journal) RecordCycle(ctx context.Context, c Cycle) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	features, err := json.Marshal(nonNil(c.Features))
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO cycles (run_id, cycle, features_json, states, outcome, completions,
			parse_retries, build_repairs, files, build_command, error, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, cycle) DO UPDATE SET
			features_json = excluded.features_json,
			states = excluded.states,
			outcome = excluded.outcome,
			completions = excluded.completions,
			parse_retries = excluded.parse_retries,
			build_repairs = excluded.build_repairs,
			files = excluded.files,
			build_command = excluded.build_command,
			error = excluded.error,
			duration_ms = excluded.duration_ms,
			finished_at = excluded.finished_at
	`, c.RunID, c.Cycle, string(features), strings.Join(c.States, ","), c.Outcome,
		c.Completions, c.ParseRetries, c.BuildRepairs, c.Files,
		nullString(c.BuildCommand), nullString(c.Error), c.Duration.Milliseconds(), finished.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record cycle: %w", err)
	}
	return nil
}

// =============================================================================
// READS
// =============================================================================

// Runs returns the most recent runs, newest first. limit <= 0 means all.
func (j *Journal) Runs(ctx context.Context, limit int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	query := `
		SELECT r.id, r.title, r.language, r.features_json, r.started_at,
			(SELECT COUNT(*) FROM cycles c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var features string
		var started int64
		if err := rows.Scan(&r.ID, &r.Title, &r.Language, &features, &started, &r.Cycles); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
			j.logger.Warn("Corrupt features column", zap.String("run_id", r.ID), zap.Error(err))
		}
		r.StartedAt = time.Unix(0, started)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Cycles returns the cycles of a run in order.
func (j *Journal) Cycles(ctx context.Context, runID string) ([]Cycle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, cycle, features_json, states, outcome, completions, parse_retries,
			build_repairs, files, build_command, error, duration_ms, finished_at
		FROM cycles WHERE run_id = ?
		ORDER BY cycle ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []Cycle
	for rows.Next() {
		var c Cycle
		var features, states string
		var buildCommand, errText sql.NullString
		var durationMS, finished int64
		if err := rows.Scan(&c.RunID, &c.Cycle, &features, &states, &c.Outcome, &c.Completions,
			&c.ParseRetries, &c.BuildRepairs, &c.Files, &buildCommand, &errText, &durationMS, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &c.Features); err != nil {
			j.logger.Warn("Corrupt features column", zap.String("run_id", c.RunID), zap.Error(err))
		}
		if states != "" {
			c.States = strings.Split(states, ",")
		}
		c.BuildCommand = buildCommand.String
		c.Error = errText.String
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.FinishedAt = time.Unix(0, finished)
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Exchanges returns the completion exchanges of a run in the order they were made.
func (j *Journal) Exchanges(ctx context.Context, runID string) ([]completion.Exchange, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, cycle, provider, model, request_json, response, error, duration_ms, created_at
		FROM exchanges WHERE run_id = ?
		ORDER BY created_at ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer rows.Close()

	var out []completion.Exchange
	for rows.Next() {
		var ex completion.Exchange
		var request string
		var errText sql.NullString
		var durationMS, created int64
		if err := rows.Scan(&ex.RunID, &ex.Cycle, &ex.Provider, &ex.Model, &request,
			&ex.Response, &errText, &durationMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		if err := json.Unmarshal([]byte(request), &ex.Request); err != nil {
			j.logger.Warn("Corrupt request column", zap.String("run_id", ex.RunID), zap.Error(err))
		}
		ex.Error = errText.String
		ex.Duration = time.Duration(durationMS) * time.Millisecond
		ex.Timestamp = time.Unix(0, created)
		out = append(out, ex)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
