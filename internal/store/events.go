package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardops/simcore/internal/simerrors"
)

// AppendEvents inserts a batch of event rows in one transaction. The
// engine's result is translated into this shape by the runner once a run
// completes (or, for the demo dataset, by the data generator), never
// written event-by-event from inside the engine loop itself.
func (s *Store) AppendEvents(ctx context.Context, events []EventRecord) error {
	if len(events) == 0 {
		return nil
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO events (patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		)
		if err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "prepare event insert", err)
		}
		defer stmt.Close()

		for _, e := range events {
			var data interface{}
			if len(e.Data) > 0 {
				data = []byte(e.Data)
			}
			if _, err := stmt.ExecContext(ctx, e.PatientID, e.EventType, e.Timestamp, e.UnitID, e.BedID, e.NurseID, data, e.Notes, e.ScenarioID); err != nil {
				return simerrors.Wrap(simerrors.StorageFault, "insert event", err)
			}
		}
		return nil
	})
}

// QueryEvents applies filter, always ordered by timestamp then id so
// replay and trace reads get a stable, deterministic order even when two
// events share a timestamp.
func (s *Store) QueryEvents(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UnitID != nil {
		clauses = append(clauses, "unit_id = "+arg(*filter.UnitID))
	}
	if filter.PatientID != nil {
		clauses = append(clauses, "patient_id = "+arg(*filter.PatientID))
	}
	if filter.EventType != "" {
		clauses = append(clauses, "event_type = "+arg(filter.EventType))
	}
	if filter.StartTime != nil {
		clauses = append(clauses, "timestamp >= "+arg(*filter.StartTime))
	}
	if filter.EndTime != nil {
		clauses = append(clauses, "timestamp <= "+arg(*filter.EndTime))
	}

	query := `SELECT id, patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp, id"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += " LIMIT " + arg(limit)
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "query events", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// QueryWindow reads events for unitID with timestamp in (from, to], the
// exact window the replay streamer advances by one tick at a time.
func (s *Store) QueryWindow(ctx context.Context, unitID int, from, to time.Time) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id
		 FROM events WHERE unit_id = $1 AND timestamp > $2 AND timestamp <= $3
		 ORDER BY timestamp, id`,
		unitID, from, to,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "query event window", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// EventsForPatient returns the full ordered event log for one patient,
// the backbone of PatientTrace.
func (s *Store) EventsForPatient(ctx context.Context, patientID int) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id
		 FROM events WHERE patient_id = $1 ORDER BY timestamp, id`,
		patientID,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "events for patient", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// RecentBedAssignments returns the most recent bed_assignment events
// across all units, used by the KPI snapshot's average-wait figure.
func (s *Store) RecentBedAssignments(ctx context.Context, limit int) ([]EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id
		 FROM events WHERE event_type = 'bed_assignment' ORDER BY timestamp DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "recent bed assignments", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// BedAssignmentsInWindow supports SummarizeBottlenecks.
func (s *Store) BedAssignmentsInWindow(ctx context.Context, start, end time.Time, scenarioID *uuid.UUID) ([]EventRecord, error) {
	if scenarioID != nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id
			 FROM events WHERE event_type = 'bed_assignment' AND timestamp >= $1 AND timestamp <= $2 AND scenario_id = $3
			 ORDER BY timestamp, id`,
			start, end, *scenarioID,
		)
		if err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "bed assignments in window", err)
		}
		defer rows.Close()
		return scanEvents(rows)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data, notes, scenario_id
		 FROM events WHERE event_type = 'bed_assignment' AND timestamp >= $1 AND timestamp <= $2
		 ORDER BY timestamp, id`,
		start, end,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "bed assignments in window", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]EventRecord, error) {
	var out []EventRecord
	for rows.Next() {
		var e EventRecord
		var data sql.NullString
		var notes sql.NullString
		if err := rows.Scan(&e.ID, &e.PatientID, &e.EventType, &e.Timestamp, &e.UnitID, &e.BedID, &e.NurseID, &data, &notes, &e.ScenarioID); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan event", err)
		}
		if data.Valid {
			e.Data = json.RawMessage(data.String)
		}
		e.Notes = notes.String
		out = append(out, e)
	}
	return out, rows.Err()
}
