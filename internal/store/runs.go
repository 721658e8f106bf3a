package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardops/simcore/internal/simerrors"
)

// CreateRun inserts a pending run row for scenarioID. The runner picks it
// up off the message bus and transitions it forward; StartRun in the
// runner package is the only caller.
func (s *Store) CreateRun(ctx context.Context, scenarioID uuid.UUID) (*Run, error) {
	run := &Run{
		ID:         uuid.New(),
		ScenarioID: scenarioID,
		Status:     RunPending,
		Progress:   0,
		CreatedAt:  time.Now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO simulation_runs (id, scenario_id, status, progress, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.ScenarioID, run.Status, run.Progress, run.CreatedAt,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "create run", err)
	}
	return run, nil
}

func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var r Run
	var metrics, timeseries, bottlenecks sql.NullString
	var errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx,
		`SELECT id, scenario_id, status, progress, started_at, completed_at,
		        metrics, timeseries, bottlenecks, error_message, created_at
		 FROM simulation_runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.ScenarioID, &r.Status, &r.Progress, &startedAt, &completedAt,
		&metrics, &timeseries, &bottlenecks, &errMsg, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, simerrors.New(simerrors.NotFound, fmt.Sprintf("run %s", id))
	}
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "get run", err)
	}

	if startedAt.Valid {
		r.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Time
	}
	if metrics.Valid {
		r.Metrics = json.RawMessage(metrics.String)
	}
	if timeseries.Valid {
		r.TimeSeries = json.RawMessage(timeseries.String)
	}
	if bottlenecks.Valid {
		r.Bottlenecks = json.RawMessage(bottlenecks.String)
	}
	r.ErrorMessage = errMsg.String
	return &r, nil
}

// ListRunsByScenario returns runs newest-first for a scenario.
func (s *Store) ListRunsByScenario(ctx context.Context, scenarioID uuid.UUID) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scenario_id, status, progress, started_at, completed_at, error_message, created_at
		 FROM simulation_runs WHERE scenario_id = $1 ORDER BY created_at DESC`,
		scenarioID,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "list runs", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var startedAt, completedAt sql.NullTime
		var errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.ScenarioID, &r.Status, &r.Progress, &startedAt, &completedAt, &errMsg, &r.CreatedAt); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan run", err)
		}
		if startedAt.Valid {
			r.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			r.CompletedAt = &completedAt.Time
		}
		r.ErrorMessage = errMsg.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestCompletedResult returns the most recently completed run for a
// scenario, used by GET /scenarios/{id}/results.
func (s *Store) LatestCompletedResult(ctx context.Context, scenarioID uuid.UUID) (*Run, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM simulation_runs WHERE scenario_id = $1 AND status = $2 ORDER BY completed_at DESC LIMIT 1`,
		scenarioID, RunCompleted,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, simerrors.New(simerrors.NotFound, fmt.Sprintf("no completed run for scenario %s", scenarioID))
	}
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "latest completed result", err)
	}
	return s.GetRun(ctx, id)
}

// MarkRunning transitions a pending run to running and stamps started_at.
// It only applies if the row is still pending, so a racing cancel can't
// be clobbered back to running.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE simulation_runs SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`,
		RunRunning, time.Now(), id, RunPending,
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "mark run running", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return simerrors.New(simerrors.StateViolation, fmt.Sprintf("run %s is no longer pending", id))
	}
	return nil
}

// UpdateProgress writes the latest percent-complete figure. It is a
// best-effort, non-transactional write: the runner calls this frequently
// off a buffered channel and a missed update is harmless.
func (s *Store) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE simulation_runs SET progress = $1 WHERE id = $2 AND status = $3`,
		progress, id, RunRunning,
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "update run progress", err)
	}
	return nil
}

// CompleteRun writes the final result and marks the run completed.
func (s *Store) CompleteRun(ctx context.Context, id uuid.UUID, metrics, timeseries, bottlenecks json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE simulation_runs
		 SET status = $1, progress = 100, completed_at = $2, metrics = $3, timeseries = $4, bottlenecks = $5
		 WHERE id = $6`,
		RunCompleted, time.Now(), []byte(metrics), []byte(timeseries), []byte(bottlenecks), id,
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "complete run", err)
	}
	return nil
}

// FailRun marks a run failed with an explanatory message. Called both for
// engine faults and for the missing-run/missing-scenario hard failure
// path, so every run reaches a terminal status.
func (s *Store) FailRun(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE simulation_runs SET status = $1, completed_at = $2, error_message = $3 WHERE id = $4`,
		RunFailed, time.Now(), message, id,
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "fail run", err)
	}
	return nil
}

// RequestCancel is the advisory, best-effort cancel DELETE /simulation/{job_id}
// performs. It only succeeds against a non-terminal run; the engine itself
// is never interrupted mid-event, so the worker finds the terminal status
// when the engine returns and discards the run's result.
func (s *Store) RequestCancel(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE simulation_runs SET status = $1, completed_at = $2, error_message = $3
		 WHERE id = $4 AND status IN ($5, $6)`,
		RunFailed, time.Now(), "cancelled by request", id, RunPending, RunRunning,
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "cancel run", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return simerrors.New(simerrors.StateViolation, fmt.Sprintf("run %s is already terminal", id))
	}
	return nil
}
