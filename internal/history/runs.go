package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StartRun records a run in the "running" state.
func (s *SQLiteStore) StartRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, target, status, failed_cmd, exit_code, started_at)
		VALUES (?, ?, ?, -1, 0, ?)
	`, run.ID, run.Target, StatusRunning, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun moves a run to its terminal state, recording failure context
// when the run failed.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, failed_task = ?, failed_cmd = ?, exit_code = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.FailedTask, run.FailedCmd, run.ExitCode, run.FinishedAt.UTC(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// SaveTaskResult records one task's outcome within a run.
func (s *SQLiteStore) SaveTaskResult(ctx context.Context, rec *TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_tasks (run_id, position, name, status, duration_ms)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, position) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			duration_ms = excluded.duration_ms
	`, rec.RunID, rec.Position, rec.Name, rec.Status, rec.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to save task result: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, status, COALESCE(failed_task, ''), failed_cmd, exit_code, started_at, COALESCE(finished_at, started_at)
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.Target, &run.Status, &run.FailedTask, &run.FailedCmd, &run.ExitCode, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// GetRun returns a single run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target, status, COALESCE(failed_task, ''), failed_cmd, exit_code, started_at, COALESCE(finished_at, started_at)
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.Target, &run.Status, &run.FailedTask, &run.FailedCmd, &run.ExitCode, &run.StartedAt, &run.FinishedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return run, nil
}

// GetRunTasks returns the task outcomes of a run in plan order.
func (s *SQLiteStore) GetRunTasks(ctx context.Context, runID string) ([]*TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, position, name, status, duration_ms
		FROM run_tasks
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run tasks: %w", err)
	}
	defer rows.Close()

	var records []*TaskRecord
	for rows.Next() {
		rec := &TaskRecord{}
		var durationMS int64
		if err := rows.Scan(&rec.RunID, &rec.Position, &rec.Name, &rec.Status, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan task record: %w", err)
		}
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task records: %w", err)
	}
	return records, nil
}
