package rundb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status of a render run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrRunNotFound is returned for unknown run IDs.
var ErrRunNotFound = errors.New("run not found")

// DefaultListLimit is used when ListRuns is given a non-positive limit.
const DefaultListLimit = 20

// RunRecord is one row of render history.
type RunRecord struct {
	RunID      string
	Version    string
	InputPath  string
	OutputPath string
	DecayRate  float64
	FrameRate  int
	MedianBlur int
	FrameWidth int
	Workers    int

	Status          Status
	Events          int64
	Activations     int64
	Frames          int
	MaxReorderDepth int
	DurationMS      int64
	Error           string
	StartedAt       time.Time
	FinishedAt      *time.Time // nil while running
}

// RunResult is the outcome recorded by FinishRun.
type RunResult struct {
	Events          int64
	Activations     int64
	Frames          int
	MaxReorderDepth int
	Duration        time.Duration
	Err             error // non-nil marks the run failed
}

// StartRun inserts a running row for rec's parameters and returns its new
// run ID. Result fields of rec are ignored.
func (db *DB) StartRun(rec RunRecord) (string, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO render_runs (
			run_id, version, input_path, output_path, decay_rate, frame_rate,
			median_blur, frame_width, workers, status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.Version, rec.InputPath, rec.OutputPath, rec.DecayRate, rec.FrameRate,
		rec.MedianBlur, rec.FrameWidth, rec.Workers, StatusRunning, db.clock.Now().UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of a run.
func (db *DB) FinishRun(id string, res RunResult) error {
	status, msg := StatusCompleted, ""
	if res.Err != nil {
		status, msg = StatusFailed, res.Err.Error()
	}
	r, err := db.Exec(`
		UPDATE render_runs SET
			status = ?, events = ?, activations = ?, frames = ?,
			max_reorder_depth = ?, duration_ms = ?, error = ?, finished_at = ?
		WHERE run_id = ?`,
		status, res.Events, res.Activations, res.Frames,
		res.MaxReorderDepth, res.Duration.Milliseconds(), msg, db.clock.Now().UnixMilli(),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	n, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

const selectRuns = `
	SELECT run_id, version, input_path, output_path, decay_rate, frame_rate,
	       median_blur, frame_width, workers, status, events, activations,
	       frames, max_reorder_depth, duration_ms, error, started_at, finished_at
	FROM render_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (RunRecord, error) {
	var rec RunRecord
	var started int64
	var finished sql.NullInt64
	err := s.Scan(
		&rec.RunID, &rec.Version, &rec.InputPath, &rec.OutputPath, &rec.DecayRate, &rec.FrameRate,
		&rec.MedianBlur, &rec.FrameWidth, &rec.Workers, &rec.Status, &rec.Events, &rec.Activations,
		&rec.Frames, &rec.MaxReorderDepth, &rec.DurationMS, &rec.Error, &started, &finished,
	)
	if err != nil {
		return RunRecord{}, err
	}
	rec.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		t := time.UnixMilli(finished.Int64).UTC()
		rec.FinishedAt = &t
	}
	return rec, nil
}

// GetRun returns one run.
func (db *DB) GetRun(id string) (*RunRecord, error) {
	rec, err := scanRun(db.QueryRow(selectRuns+` WHERE run_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := db.Query(selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}
