package results

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the status of a single phase of a sweep
type RunStatus string

const (
	RunStatusPending RunStatus = "pending"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
	RunStatusSkipped RunStatus = "skipped"
)

// Sweep represents one driver invocation: a warm-up plus a QPS sequence.
type Sweep struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	BaseURL   string    `json:"base_url"`
	OutputKey string    `json:"output_key"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SweepRun represents a single phase within a sweep: the warm-up or one
// measured QPS run.
type SweepRun struct {
	ID      string    `json:"id"`
	SweepID string    `json:"sweep_id"`
	Phase   string    `json:"phase"` // "warmup" or "run"
	QPS     string    `json:"qps"`
	Output  string    `json:"output_file,omitempty"`
	Status  RunStatus `json:"status"`

	// Failure info
	FailureReason string `json:"failure_reason,omitempty"`

	// Summary metrics, filled in on success when the artifact parses
	TotalRequests int     `json:"total_requests,omitempty"`
	Throughput    float64 `json:"throughput_qps,omitempty"`
	AvgTTFT       float64 `json:"avg_ttft,omitempty"`
	P95TTFT       float64 `json:"p95_ttft,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Store provides persistence for sweep history.
type Store struct {
	db *sql.DB
}

// NewStore creates a new sweep store.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate sweep tables: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			model TEXT NOT NULL,
			base_url TEXT NOT NULL,
			output_key TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS sweep_runs (
			id TEXT PRIMARY KEY,
			sweep_id TEXT NOT NULL,
			phase TEXT NOT NULL,
			qps TEXT NOT NULL,
			output_file TEXT,
			status TEXT NOT NULL DEFAULT 'pending',

			failure_reason TEXT,

			total_requests INTEGER,
			throughput_qps REAL,
			avg_ttft REAL,
			p95_ttft REAL,

			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME,
			completed_at DATETIME,

			FOREIGN KEY (sweep_id) REFERENCES sweeps(id)
		);

		CREATE INDEX IF NOT EXISTS idx_sweep_runs_sweep_id ON sweep_runs(sweep_id);
		CREATE INDEX IF NOT EXISTS idx_sweep_runs_status ON sweep_runs(status);
		CREATE INDEX IF NOT EXISTS idx_sweeps_created_at ON sweeps(created_at);
	`)
	return err
}

// CreateSweep inserts a new sweep record.
func (s *Store) CreateSweep(ctx context.Context, sweep *Sweep) error {
	if sweep.ID == "" {
		sweep.ID = "sweep-" + uuid.New().String()[:8]
	}
	if sweep.CreatedAt.IsZero() {
		sweep.CreatedAt = time.Now()
	}
	if sweep.Status == "" {
		sweep.Status = RunStatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweeps (id, model, base_url, output_key, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sweep.ID, sweep.Model, sweep.BaseURL, sweep.OutputKey, sweep.Status, sweep.CreatedAt)
	return err
}

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, run *SweepRun) error {
	if run.ID == "" {
		run.ID = "run-" + uuid.New().String()[:8]
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunStatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sweep_runs (id, sweep_id, phase, qps, output_file, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SweepID, run.Phase, run.QPS, run.Output, run.Status, run.CreatedAt)
	return err
}

// MarkSweepStatus updates a sweep's status, stamping completion for terminal
// states.
func (s *Store) MarkSweepStatus(ctx context.Context, id string, status RunStatus) error {
	var completedAt any
	switch status {
	case RunStatusSuccess, RunStatusFailed, RunStatusSkipped:
		completedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweeps SET status = ?, completed_at = ? WHERE id = ?
	`, status, completedAt, id)
	return err
}

// MarkRunRunning marks a run as started.
func (s *Store) MarkRunRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweep_runs SET status = 'running', started_at = ? WHERE id = ?
	`, time.Now(), id)
	return err
}

// MarkRunSuccess marks a run as successful, recording summary metrics.
func (s *Store) MarkRunSuccess(ctx context.Context, id string, summary RunSummary) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweep_runs SET
			status = 'success', total_requests = ?, throughput_qps = ?,
			avg_ttft = ?, p95_ttft = ?, completed_at = ?
		WHERE id = ?
	`, summary.TotalRequests, summary.Throughput, summary.AvgTTFT, summary.P95TTFT, time.Now(), id)
	return err
}

// MarkRunFailed marks a run as failed.
func (s *Store) MarkRunFailed(ctx context.Context, id, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweep_runs SET status = 'failed', failure_reason = ?, completed_at = ? WHERE id = ?
	`, reason, time.Now(), id)
	return err
}

// MarkRunSkipped marks a run as skipped (sweep interrupted before it ran).
func (s *Store) MarkRunSkipped(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sweep_runs SET status = 'skipped', completed_at = ? WHERE id = ?
	`, time.Now(), id)
	return err
}

// GetSweep retrieves a sweep by ID, or nil when absent.
func (s *Store) GetSweep(ctx context.Context, id string) (*Sweep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, model, base_url, output_key, status, created_at, completed_at
		FROM sweeps WHERE id = ?
	`, id)

	var sw Sweep
	var completedAt sql.NullTime
	err := row.Scan(&sw.ID, &sw.Model, &sw.BaseURL, &sw.OutputKey, &sw.Status, &sw.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		sw.CompletedAt = &completedAt.Time
	}
	return &sw, nil
}

// ListRecentSweeps returns the most recent sweeps.
func (s *Store) ListRecentSweeps(ctx context.Context, limit int) ([]*Sweep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, model, base_url, output_key, status, created_at, completed_at
		FROM sweeps
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sweeps []*Sweep
	for rows.Next() {
		var sw Sweep
		var completedAt sql.NullTime
		if err := rows.Scan(&sw.ID, &sw.Model, &sw.BaseURL, &sw.OutputKey, &sw.Status, &sw.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			sw.CompletedAt = &completedAt.Time
		}
		sweeps = append(sweeps, &sw)
	}
	return sweeps, rows.Err()
}

// ListRuns returns all runs for a sweep, in creation order.
func (s *Store) ListRuns(ctx context.Context, sweepID string) ([]*SweepRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sweep_id, phase, qps, output_file, status, failure_reason,
			total_requests, throughput_qps, avg_ttft, p95_ttft,
			created_at, started_at, completed_at
		FROM sweep_runs
		WHERE sweep_id = ?
		ORDER BY created_at ASC, id ASC
	`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*SweepRun
	for rows.Next() {
		var r SweepRun
		var output, failureReason sql.NullString
		var totalRequests sql.NullInt64
		var throughput, avgTTFT, p95TTFT sql.NullFloat64
		var startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&r.ID, &r.SweepID, &r.Phase, &r.QPS, &output, &r.Status, &failureReason,
			&totalRequests, &throughput, &avgTTFT, &p95TTFT,
			&r.CreatedAt, &startedAt, &completedAt,
		)
		if err != nil {
			return nil, err
		}

		r.Output = output.String
		r.FailureReason = failureReason.String
		r.TotalRequests = int(totalRequests.Int64)
		r.Throughput = throughput.Float64
		r.AvgTTFT = avgTTFT.Float64
		r.P95TTFT = p95TTFT.Float64
		if startedAt.Valid {
			r.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}

		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// GetRunSummary returns a per-status count of a sweep's runs.
func (s *Store) GetRunSummary(ctx context.Context, sweepID string) (map[RunStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM sweep_runs
		WHERE sweep_id = ?
		GROUP BY status
	`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := make(map[RunStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		summary[RunStatus(status)] = count
	}
	return summary, rows.Err()
}
