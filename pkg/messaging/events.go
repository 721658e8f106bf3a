package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subjects used for job dispatch and event fan-out. SimulationRun is
// consumed by the runner's worker pool via a queue group so horizontally
// scaled workers share the load without double-processing a run.
const (
	SubjectSimulationRun = "simulation.run"
	SubjectUnitEvents    = "events." // suffixed with unit id, e.g. "events.icu-1"
)

// Persisted event kinds recognized by the replay and read-query layers.
// These are the literal strings stored in events.event_type, not the
// internal scheduling kinds the simulation engine dispatches on.
const (
	EventTypeArrival          = "arrival"
	EventTypeTriage           = "triage"
	EventTypeAdmissionRequest = "admission_request"
	EventTypeBedAssignment    = "bed_assignment"
	EventTypeTransfer         = "transfer"
	EventTypeImagingRequest   = "imaging_request"
	EventTypeImagingStart     = "imaging_start"
	EventTypeImagingEnd       = "imaging_end"
	EventTypeConsultRequest   = "consult_request"
	EventTypeConsultStart     = "consult_start"
	EventTypeConsultEnd       = "consult_end"
	EventTypeCleaningStart    = "cleaning_start"
	EventTypeCleaningEnd      = "cleaning_end"
	EventTypeDischarge        = "discharge"
	EventTypeEscalation       = "escalation"
	EventTypeNurseAssignment  = "nurse_assignment"
	EventTypeTransportRequest = "transport_request"
	EventTypeTransportStart   = "transport_start"
	EventTypeTransportEnd     = "transport_end"
)

// Event is an envelope for unit event fan-out on SubjectUnitEvents. No
// code in this module publishes on that subject; persisted events are
// read from the events table.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	AggregateID uuid.UUID       `json:"aggregate_id"` // run id the event belongs to
	Timestamp   time.Time       `json:"timestamp"`
	Version     int             `json:"version"`
	Data        json.RawMessage `json:"data"`
	Metadata    EventMetadata   `json:"metadata"`
}

// EventMetadata carries request/run correlation, not patient identity.
type EventMetadata struct {
	CorrelationID string `json:"correlation_id"`
	CausationID   string `json:"causation_id,omitempty"`
	ScenarioID    string `json:"scenario_id,omitempty"`
	Source        string `json:"source"`
}

// SimulationRunJob is the payload published on SubjectSimulationRun to
// dispatch a run onto the worker pool.
type SimulationRunJob struct {
	RunID      uuid.UUID `json:"run_id"`
	ScenarioID uuid.UUID `json:"scenario_id"`
	Seed       int64     `json:"seed"`
}

// UnitEventPayload mirrors one row of the events table; nothing in this
// module publishes it. PatientID/BedID/NurseID are 0 when not applicable to
// the event kind.
type UnitEventPayload struct {
	EventType string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	PatientID int                    `json:"patient_id,omitempty"`
	BedID     int                    `json:"bed_id,omitempty"`
	NurseID   int                    `json:"nurse_id,omitempty"`
	UnitID    string                 `json:"unit_id,omitempty"`
	ScenarioID string                `json:"scenario_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// RunStatusEvent is published once, on "simulation.run.status", when a
// worker completes a run. Failures and progress ticks are not published;
// the gateway's run-progress WebSocket handler polls storage.
type RunStatusEvent struct {
	RunID       uuid.UUID  `json:"run_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// NewEvent builds an Event envelope around data, marshaling it to the
// raw Data field.
func NewEvent(eventType string, aggregateID uuid.UUID, data interface{}, metadata EventMetadata) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:          uuid.New(),
		Type:        eventType,
		AggregateID: aggregateID,
		Timestamp:   time.Now(),
		Version:     1,
		Data:        dataBytes,
		Metadata:    metadata,
	}, nil
}

// ParseEventData unmarshals an event's Data field into T.
func ParseEventData[T any](event *Event) (*T, error) {
	var data T
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// EventStore is an event-sourcing interface (append-only, read by
// aggregate version). internal/store does not implement it.
type EventStore interface {
	Append(ctx interface{}, aggregateID uuid.UUID, events []Event, expectedVersion int) error
	Load(ctx interface{}, aggregateID uuid.UUID) ([]Event, error)
	LoadFrom(ctx interface{}, aggregateID uuid.UUID, fromVersion int) ([]Event, error)
}

// EventBus is a publish/subscribe interface over Event envelopes. Client
// does not satisfy it: its Publish takes a context, subject and payload.
type EventBus interface {
	Publish(ctx interface{}, event Event) error
	Subscribe(eventType string, handler func(Event) error) error
}

// Snapshot represents a point-in-time aggregate snapshot. Nothing in this
// module creates one or writes state_snapshots rows.
type Snapshot struct {
	AggregateID uuid.UUID       `json:"aggregate_id"`
	Version     int             `json:"version"`
	State       json.RawMessage `json:"state"`
	Timestamp   time.Time       `json:"timestamp"`
}
