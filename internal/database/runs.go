package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kamilpajak/quorum/pkg/models"
)

// RepairRun is a stored repair run with its iteration history.
type RepairRun struct {
	ID             uuid.UUID
	BugDescription string
	MaxIterations  int
	Success        *bool // nil while the run is in flight
	Iterations     int
	FailureReason  string
	StartedAt      time.Time
	FinishedAt     *time.Time
	History        []models.IterationRecord
}

const runColumns = `id, bug_description, max_iterations, success, iterations, failure_reason, started_at, finished_at`

// CreateRun records the start of a repair run. The signature matches the
// repair loop's store interface so *DB plugs in directly.
func (db *DB) CreateRun(ctx context.Context, runID, bugDescription string, maxIterations int) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO repair_runs (id, bug_description, max_iterations)
		 VALUES ($1, $2, $3)`,
		id, bugDescription, maxIterations,
	)
	return err
}

// AppendIteration stores one iteration record. Records are append-only;
// re-inserting an index is a conflict, never an update.
func (db *DB) AppendIteration(ctx context.Context, runID string, rec models.IterationRecord) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal iteration record: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO repair_iterations (run_id, idx, record)
		 VALUES ($1, $2, $3)`,
		id, rec.Index, recJSON,
	)
	return err
}

// FinishRun records the final outcome of a repair run.
func (db *DB) FinishRun(ctx context.Context, runID string, result *models.RepairRunResult) error {
	id, err := uuid.Parse(runID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", runID, err)
	}

	_, err = db.pool.Exec(ctx,
		`UPDATE repair_runs
		 SET success = $2, iterations = $3, failure_reason = $4, finished_at = now()
		 WHERE id = $1`,
		id, result.Success, result.Iterations, result.FailureReason,
	)
	return err
}

// GetRun retrieves a run with its full iteration history, or nil when no
// such run exists.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*RepairRun, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM repair_runs WHERE id = $1`,
		id,
	)

	var run RepairRun
	err := row.Scan(
		&run.ID, &run.BugDescription, &run.MaxIterations, &run.Success,
		&run.Iterations, &run.FailureReason, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx,
		`SELECT record FROM repair_iterations WHERE run_id = $1 ORDER BY idx`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var recJSON []byte
		if err := rows.Scan(&recJSON); err != nil {
			return nil, err
		}
		var rec models.IterationRecord
		if err := json.Unmarshal(recJSON, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal iteration record: %w", err)
		}
		run.History = append(run.History, rec)
	}
	return &run, rows.Err()
}

// ListRuns returns recent runs without their histories, newest first.
func (db *DB) ListRuns(ctx context.Context, limit, offset int) ([]RepairRun, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM repair_runs
		 ORDER BY started_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RepairRun
	for rows.Next() {
		var run RepairRun
		if err := rows.Scan(
			&run.ID, &run.BugDescription, &run.MaxIterations, &run.Success,
			&run.Iterations, &run.FailureReason, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteOldRuns deletes finished runs older than the given time.
func (db *DB) DeleteOldRuns(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM repair_runs WHERE finished_at IS NOT NULL AND started_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
