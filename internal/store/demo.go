package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/simulation"
	"github.com/wardops/simcore/pkg/eventqueue"
)

// demoAnchor is the documented wall-clock start of the seeded demo
// dataset: virtual minute 0 of the run maps to this instant.
var demoAnchor = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

const (
	demoUnitID   = 1
	demoSeed     = 42
	demoNurseMax = 4
)

var demoFirstNames = []string{"James", "Mary", "John", "Patricia", "Robert", "Jennifer", "Michael", "Linda", "William", "Elizabeth"}
var demoLastNames = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez"}
var demoComplaints = []string{"Chest pain", "Shortness of breath", "Abdominal pain", "Headache", "Back pain", "Fever", "Nausea and vomiting", "Dizziness", "Weakness", "Cough"}
var demoNurseNames = []string{"Sarah Chen", "Michael Rodriguez", "Emily Johnson", "David Kim", "Jessica Williams", "Robert Garcia"}

// DemoStatus reports whether a demo dataset is currently loaded.
type DemoStatus struct {
	Loaded       bool `json:"loaded"`
	Reseeding    bool `json:"reseeding"`
	PatientCount int  `json:"patient_count"`
	EventCount   int  `json:"event_count"`
}

func (s *Store) DemoStatus(ctx context.Context) (*DemoStatus, error) {
	status := &DemoStatus{Reseeding: s.IsReseeding()}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM patients`).Scan(&status.PatientCount); err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "demo status patients", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM events`).Scan(&status.EventCount); err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "demo status events", err)
	}
	status.Loaded = status.PatientCount > 0
	return status, nil
}

// ClearDemo wipes the demo dataset tables in FK-safe order. Guarded
// against running concurrently with LoadDemo by the reseeding flag.
func (s *Store) ClearDemo(ctx context.Context) error {
	if !s.beginReseed() {
		return simerrors.New(simerrors.StateViolation, "a demo load or clear is already in progress")
	}
	defer s.endReseed()

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{"events", "patients", "shifts", "nurses", "beds", "units"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return simerrors.Wrap(simerrors.StorageFault, "clear "+table, err)
			}
		}
		return nil
	})
}

// LoadDemo reseeds a single demo unit, its beds and nurses, then drives
// one simulation run against the default scenario parameters at a fixed
// seed, translating the engine's emitted events and outcomes into
// persisted patient and event rows anchored at demoAnchor.
func (s *Store) LoadDemo(ctx context.Context) error {
	if !s.beginReseed() {
		return simerrors.New(simerrors.StateViolation, "a demo load or clear is already in progress")
	}
	defer s.endReseed()

	if err := s.clearDemoTables(ctx); err != nil {
		return err
	}

	params := simulation.DefaultParameters()
	sink := newDemoSink()

	engine, err := simulation.NewEngine(params, demoSeed, nil)
	if err != nil {
		return simerrors.Wrap(simerrors.EngineFault, "build demo engine", err)
	}
	engine.EventSink = sink.record
	result, err := engine.Run()
	if err != nil {
		return simerrors.Wrap(simerrors.EngineFault, "run demo simulation", err)
	}

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := seedUnit(ctx, tx, params); err != nil {
			return err
		}
		if err := seedNurses(ctx, tx, params); err != nil {
			return err
		}
		patientRows := sink.buildPatients(result)
		if err := seedPatients(ctx, tx, patientRows); err != nil {
			return err
		}
		if err := seedDemoBeds(ctx, tx, params, patientRows); err != nil {
			return err
		}
		if err := seedDemoEvents(ctx, tx, sink.events, sink.virtualMinutes); err != nil {
			return err
		}
		return nil
	})
}

func (s *Store) clearDemoTables(ctx context.Context) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, table := range []string{"events", "patients", "shifts", "nurses", "beds", "units"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return simerrors.Wrap(simerrors.StorageFault, "clear "+table, err)
			}
		}
		return nil
	})
}

func seedUnit(ctx context.Context, tx *sql.Tx, params simulation.Parameters) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO units (id, name, code, floor, capacity, unit_type) VALUES ($1, $2, $3, $4, $5, $6)`,
		demoUnitID, "Medical Unit A", "MED-A", 1, params.BedsAvailable, "medical",
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "seed unit", err)
	}
	return nil
}

func seedNurses(ctx context.Context, tx *sql.Tx, params simulation.Parameters) error {
	for i := 1; i <= params.NurseCount.Day; i++ {
		name := demoNurseNames[(i-1)%len(demoNurseNames)]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO nurses (id, unit_id, name, employee_id, specialty, max_patients) VALUES ($1, $2, $3, $4, $5, $6)`,
			i, demoUnitID, name, fmt.Sprintf("EMP-%04d", i), "", demoNurseMax,
		)
		if err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "seed nurse", err)
		}
	}
	return nil
}

// demoPatientRow is the reconstructed demographic-plus-clinical row for
// one simulated patient, built from the event stream since the engine
// keeps internal patient state private to its own run.
type demoPatientRow struct {
	id              int
	acuity          string
	chiefComplaint  string
	requiresImaging bool
	requiresConsult bool
	isIsolation     bool
	arrival         time.Time
	discharge       *time.Time
	bedID           *int
}

type demoSink struct {
	events         []EventRecord
	virtualMinutes []float64
	arrivalMinute  map[int]float64
	meta           map[int]map[string]interface{}
	lastBed        map[int]int
}

func newDemoSink() *demoSink {
	return &demoSink{
		arrivalMinute: make(map[int]float64),
		meta:          make(map[int]map[string]interface{}),
		lastBed:       make(map[int]int),
	}
}

func virtualToWallClock(minutes float64) time.Time {
	return demoAnchor.Add(time.Duration(minutes * float64(time.Minute)))
}

func (d *demoSink) record(virtualMinute float64, kind eventqueue.Kind, patientID, bedID, nurseID int, data map[string]interface{}) {
	rec := EventRecord{
		EventType: string(kind),
	}
	if patientID > 0 {
		pid := patientID
		rec.PatientID = &pid
	}
	if bedID > 0 {
		bid := bedID
		rec.BedID = &bid
		if patientID > 0 {
			d.lastBed[patientID] = bedID
		}
	}
	if nurseID > 0 {
		nid := nurseID
		rec.NurseID = &nid
	}
	unitID := demoUnitID
	rec.UnitID = &unitID
	if len(data) > 0 {
		raw, _ := json.Marshal(data)
		rec.Data = raw
		if patientID > 0 && kind == "arrival" {
			d.meta[patientID] = data
			d.arrivalMinute[patientID] = virtualMinute
		}
	}
	d.events = append(d.events, rec)
	d.virtualMinutes = append(d.virtualMinutes, virtualMinute)
}

// buildPatients reconstructs one demoPatientRow per patient seen in the
// event stream, pulling acuity/flags from the arrival payload and placing
// arrival on the wall-clock anchor at the engine's own virtual-clock
// offset for that patient's arrival event, not stream position.
func (d *demoSink) buildPatients(result simulation.Result) []demoPatientRow {
	pids := make([]int, 0, len(d.meta))
	for pid := range d.meta {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	rows := make([]demoPatientRow, 0, len(d.meta))
	for _, pid := range pids {
		meta := d.meta[pid]
		row := demoPatientRow{id: pid}
		if a, ok := meta["acuity"].(string); ok {
			row.acuity = a
		}
		if v, ok := meta["requires_imaging"].(bool); ok {
			row.requiresImaging = v
		}
		if v, ok := meta["requires_consult"].(bool); ok {
			row.requiresConsult = v
		}
		if v, ok := meta["requires_isolation"].(bool); ok {
			row.isIsolation = v
		}
		row.chiefComplaint = demoComplaints[pid%len(demoComplaints)]
		row.arrival = virtualToWallClock(d.arrivalMinute[pid])
		if bedID, ok := d.lastBed[pid]; ok {
			b := bedID
			row.bedID = &b
		}
		rows = append(rows, row)
	}
	return rows
}

func seedPatients(ctx context.Context, tx *sql.Tx, rows []demoPatientRow) error {
	for i, r := range rows {
		first := demoFirstNames[i%len(demoFirstNames)]
		last := demoLastNames[(i/len(demoFirstNames))%len(demoLastNames)]
		age := 20 + (i*7)%60
		gender := "F"
		if i%2 == 0 {
			gender = "M"
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO patients (id, mrn, name, age, gender, acuity, chief_complaint, arrival_time,
			                       discharge_time, current_unit_id, current_bed_id, is_isolation,
			                       requires_imaging, requires_consult)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			r.id, fmt.Sprintf("MRN-%06d", r.id), first+" "+last, age, gender, r.acuity, r.chiefComplaint,
			r.arrival, r.discharge, demoUnitID, r.bedID, r.isIsolation, r.requiresImaging, r.requiresConsult,
		)
		if err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "seed patient", err)
		}
	}
	return nil
}

func seedDemoBeds(ctx context.Context, tx *sql.Tx, params simulation.Parameters, rows []demoPatientRow) error {
	occupiedBy := make(map[int]int)
	for _, r := range rows {
		if r.bedID != nil {
			occupiedBy[*r.bedID] = r.id
		}
	}

	for i := 1; i <= params.BedsAvailable; i++ {
		bedType := "standard"
		if i == 1 || i == params.BedsAvailable {
			bedType = "isolation"
		}
		status := "empty"
		var currentPatient *int
		if pid, ok := occupiedBy[i]; ok {
			status = "occupied"
			p := pid
			currentPatient = &p
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO beds (id, unit_id, bed_number, bed_type, status, current_patient_id) VALUES ($1, $2, $3, $4, $5, $6)`,
			i, demoUnitID, fmt.Sprintf("%s-%02d", "MED-A", i), bedType, status, currentPatient,
		)
		if err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "seed bed", err)
		}
	}
	return nil
}

func seedDemoEvents(ctx context.Context, tx *sql.Tx, events []EventRecord, virtualMinutes []float64) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (patient_id, event_type, timestamp, unit_id, bed_id, nurse_id, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	)
	if err != nil {
		return simerrors.Wrap(simerrors.StorageFault, "prepare demo event insert", err)
	}
	defer stmt.Close()

	for i, e := range events {
		ts := virtualToWallClock(virtualMinutes[i])
		var data interface{}
		if len(e.Data) > 0 {
			data = []byte(e.Data)
		}
		if _, err := stmt.ExecContext(ctx, e.PatientID, e.EventType, ts, e.UnitID, e.BedID, e.NurseID, data); err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "insert demo event", err)
		}
	}
	return nil
}
