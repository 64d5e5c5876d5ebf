package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLite stores runs in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates a tracking database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening tracking database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			experiment TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('RUNNING', 'FINISHED', 'FAILED')),
			started_at INTEGER NOT NULL,
			ended_at INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_runs_experiment ON runs(experiment, status);

		CREATE TABLE IF NOT EXISTS params (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (run_id, key)
		);

		CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL REFERENCES runs(id),
			key TEXT NOT NULL,
			value REAL NOT NULL,
			step INTEGER NOT NULL,
			logged_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_metrics_run ON metrics(run_id, key, step);

		CREATE TABLE IF NOT EXISTS artifacts (
			run_id TEXT NOT NULL REFERENCES runs(id),
			name TEXT NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (run_id, name)
		);
	`
	_, err := db.Exec(schema)
	return err
}

// StartRun implements Tracker.
func (s *SQLite) StartRun(ctx context.Context, experiment, name string) (*Run, error) {
	run := &Run{
		ID:         uuid.New().String(),
		Experiment: experiment,
		Name:       name,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, experiment, name, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Experiment, run.Name, string(run.Status), run.StartedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// LogParams implements Tracker. Existing keys are overwritten.
func (s *SQLite) LogParams(ctx context.Context, runID string, params map[string]string) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO params (run_id, key, value) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing params insert: %w", err)
	}
	defer stmt.Close()

	for k, v := range params {
		if _, err := stmt.ExecContext(ctx, runID, k, v); err != nil {
			return fmt.Errorf("inserting param %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// LogMetric implements Tracker.
func (s *SQLite) LogMetric(ctx context.Context, runID, key string, value float64, step int) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metrics (run_id, key, value, step, logged_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, key, value, step, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting metric %s: %w", key, err)
	}
	return nil
}

// LogArtifact implements Tracker. An artifact with the same name is replaced.
func (s *SQLite) LogArtifact(ctx context.Context, runID, name string, data []byte) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO artifacts (run_id, name, data) VALUES (?, ?, ?)`, runID, name, data)
	if err != nil {
		return fmt.Errorf("inserting artifact %s: %w", name, err)
	}
	return nil
}

// EndRun implements Tracker.
func (s *SQLite) EndRun(ctx context.Context, runID string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, ended_at = ? WHERE id = ?`,
		string(status), time.Now().UTC().UnixMilli(), runID)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// FindRun implements Tracker.
func (s *SQLite) FindRun(ctx context.Context, experiment string, params map[string]string) (*Run, error) {
	runs, err := s.queryRuns(ctx, `
		SELECT id, experiment, name, status, started_at, ended_at
		FROM runs
		WHERE experiment = ? AND status = ?
		ORDER BY ended_at DESC, started_at DESC
	`, experiment, string(StatusFinished))
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if ParamsMatch(params, runs[i].Params) {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// ListRuns implements Tracker. An empty experiment lists every run.
func (s *SQLite) ListRuns(ctx context.Context, experiment string) ([]Run, error) {
	if experiment == "" {
		return s.queryRuns(ctx, `
			SELECT id, experiment, name, status, started_at, ended_at
			FROM runs
			ORDER BY started_at, id
		`)
	}
	return s.queryRuns(ctx, `
		SELECT id, experiment, name, status, started_at, ended_at
		FROM runs
		WHERE experiment = ?
		ORDER BY started_at, id
	`, experiment)
}

// Metrics returns the metrics of a run ordered by key and step.
func (s *SQLite) Metrics(ctx context.Context, runID string) ([]Metric, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, step, logged_at
		FROM metrics
		WHERE run_id = ?
		ORDER BY key, step, rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	var metrics []Metric
	for rows.Next() {
		var m Metric
		var at int64
		if err := rows.Scan(&m.Key, &m.Value, &m.Step, &at); err != nil {
			return nil, err
		}
		m.At = time.UnixMilli(at).UTC()
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

// Artifact returns the named artifact of a run, or nil if it does not exist.
func (s *SQLite) Artifact(ctx context.Context, runID, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM artifacts WHERE run_id = ? AND name = ?`, runID, name).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *SQLite) requireRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE id = ?`, runID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s not found", runID)
	}
	return err
}

func (s *SQLite) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var status string
		var started int64
		var ended sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Experiment, &r.Name, &status, &started, &ended); err != nil {
			rows.Close()
			return nil, err
		}
		r.Status = Status(status)
		r.StartedAt = time.UnixMilli(started).UTC()
		if ended.Valid {
			t := time.UnixMilli(ended.Int64).UTC()
			r.EndedAt = &t
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Single connection: the params query must wait until rows is closed.
	for i := range runs {
		params, err := s.params(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Params = params
	}
	return runs, nil
}

func (s *SQLite) params(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM params WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying params: %w", err)
	}
	defer rows.Close()

	params := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		params[k] = v
	}
	return params, rows.Err()
}
