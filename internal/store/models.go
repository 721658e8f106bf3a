package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Unit, Bed, Nurse and Patient mirror the schema-completeness tables the
// read API serves from. Identity follows the original small-integer
// scheme; only scenarios and runs get uuid identity, since those are the
// entities created by this implementation's own API rather than seeded
// demo data.

type Unit struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Floor    int    `json:"floor"`
	Capacity int    `json:"capacity"`
	UnitType string `json:"unit_type"`
}

type Bed struct {
	ID                int     `json:"id"`
	UnitID            int     `json:"unit_id"`
	BedNumber         string  `json:"bed_number"`
	BedType           string  `json:"bed_type"` // standard, isolation
	Status            string  `json:"status"`   // empty, occupied, cleaning, blocked
	CurrentPatientID  *int    `json:"current_patient_id,omitempty"`
	AvailableAt       *time.Time `json:"available_at,omitempty"`
}

// BedWithPatient is the joined read-view the /units/{id}/beds route serves.
type BedWithPatient struct {
	Bed
	PatientName           *string `json:"patient_name,omitempty"`
	PatientAcuity         *string `json:"patient_acuity,omitempty"`
	PatientChiefComplaint *string `json:"patient_chief_complaint,omitempty"`
}

type Nurse struct {
	ID          int    `json:"id"`
	UnitID      int    `json:"unit_id"`
	Name        string `json:"name"`
	EmployeeID  string `json:"employee_id"`
	Specialty   string `json:"specialty,omitempty"`
	MaxPatients int    `json:"max_patients"`
}

// NurseWithAssignments is the /nurses read-view.
type NurseWithAssignments struct {
	Nurse
	AssignedPatientCount int   `json:"assigned_patient_count"`
	AssignedPatients     []int `json:"assigned_patients"`
}

type Patient struct {
	ID               int        `json:"id"`
	MRN              string     `json:"mrn"`
	Name             string     `json:"name"`
	Age              int        `json:"age"`
	Gender           string     `json:"gender"`
	Acuity           string     `json:"acuity"`
	ChiefComplaint   string     `json:"chief_complaint,omitempty"`
	ArrivalTime      time.Time  `json:"arrival_time"`
	DischargeTime    *time.Time `json:"discharge_time,omitempty"`
	CurrentUnitID    *int       `json:"current_unit_id,omitempty"`
	CurrentBedID     *int       `json:"current_bed_id,omitempty"`
	IsIsolation      bool       `json:"is_isolation"`
	RequiresImaging  bool       `json:"requires_imaging"`
	RequiresConsult  bool       `json:"requires_consult"`
}

// PatientSummary is the trimmed /patients list-view shape.
type PatientSummary struct {
	ID             int       `json:"id"`
	MRN            string    `json:"mrn"`
	Name           string    `json:"name"`
	Acuity         string    `json:"acuity"`
	ChiefComplaint string    `json:"chief_complaint,omitempty"`
	ArrivalTime    time.Time `json:"arrival_time"`
	CurrentBed     *string   `json:"current_bed,omitempty"`
}

// EventRecord is one row of the persisted event log.
type EventRecord struct {
	ID         int64           `json:"id"`
	PatientID  *int            `json:"patient_id,omitempty"`
	EventType  string          `json:"event_type"`
	Timestamp  time.Time       `json:"timestamp"`
	UnitID     *int            `json:"unit_id,omitempty"`
	BedID      *int            `json:"bed_id,omitempty"`
	NurseID    *int            `json:"nurse_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	ScenarioID *uuid.UUID      `json:"scenario_id,omitempty"`
}

// EventFilter narrows a /events query. Zero values mean "no filter" for
// that field; Limit is clamped to a sane maximum by the caller.
type EventFilter struct {
	UnitID    *int
	PatientID *int
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Scenario is a persisted run configuration. Parameters round-trips
// through decimal.Decimal at the JSON boundary (see scenarios.go) so the
// numeric fields survive a Postgres NUMERIC column without the float
// drift a plain float64 JSON column would invite.
type Scenario struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
	IsBaseline  bool      `json:"is_baseline"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunStatus enumerates the simulation_runs lifecycle states.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is a persisted simulation_runs row.
type Run struct {
	ID           uuid.UUID       `json:"id"`
	ScenarioID   uuid.UUID       `json:"scenario_id"`
	Status       RunStatus       `json:"status"`
	Progress     int             `json:"progress"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Metrics      json.RawMessage `json:"metrics,omitempty"`
	TimeSeries   json.RawMessage `json:"timeseries,omitempty"`
	Bottlenecks  json.RawMessage `json:"bottlenecks,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
