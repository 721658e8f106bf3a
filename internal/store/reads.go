package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wardops/simcore/internal/simerrors"
)

func jsonUnmarshalInts(raw []byte, out *[]int) error {
	return json.Unmarshal(raw, out)
}

func (s *Store) ListUnits(ctx context.Context) ([]Unit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, code, floor, capacity, unit_type FROM units ORDER BY id`)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "list units", err)
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Name, &u.Code, &u.Floor, &u.Capacity, &u.UnitType); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan unit", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) GetUnit(ctx context.Context, id int) (*Unit, error) {
	var u Unit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, floor, capacity, unit_type FROM units WHERE id = $1`, id,
	).Scan(&u.ID, &u.Name, &u.Code, &u.Floor, &u.Capacity, &u.UnitType)
	if err == sql.ErrNoRows {
		return nil, simerrors.New(simerrors.NotFound, fmt.Sprintf("unit %d", id))
	}
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "get unit", err)
	}
	return &u, nil
}

// UnitBeds returns every bed in a unit joined with the current occupant's
// name/acuity/chief complaint, matching the BedWithPatient read-view.
func (s *Store) UnitBeds(ctx context.Context, unitID int) ([]BedWithPatient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.unit_id, b.bed_number, b.bed_type, b.status, b.current_patient_id, b.available_at,
		        p.name, p.acuity, p.chief_complaint
		 FROM beds b
		 LEFT JOIN patients p ON p.id = b.current_patient_id
		 WHERE b.unit_id = $1
		 ORDER BY b.bed_number`,
		unitID,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "unit beds", err)
	}
	defer rows.Close()

	var out []BedWithPatient
	for rows.Next() {
		var b BedWithPatient
		var name, acuity, complaint sql.NullString
		if err := rows.Scan(&b.ID, &b.UnitID, &b.BedNumber, &b.BedType, &b.Status, &b.CurrentPatientID, &b.AvailableAt,
			&name, &acuity, &complaint); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan bed", err)
		}
		if name.Valid {
			b.PatientName = &name.String
		}
		if acuity.Valid {
			b.PatientAcuity = &acuity.String
		}
		if complaint.Valid {
			b.PatientChiefComplaint = &complaint.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListPatients serves the /patients filter set: optional unit scope and
// active-only (not yet discharged), newest arrival first.
func (s *Store) ListPatients(ctx context.Context, unitID *int, activeOnly bool, limit, offset int) ([]PatientSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var clauses []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if unitID != nil {
		clauses = append(clauses, "current_unit_id = "+arg(*unitID))
	}
	if activeOnly {
		clauses = append(clauses, "discharge_time IS NULL")
	}

	query := `SELECT id, mrn, name, acuity, chief_complaint, arrival_time, current_bed_id FROM patients`
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY arrival_time DESC LIMIT " + arg(limit) + " OFFSET " + arg(offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "list patients", err)
	}
	defer rows.Close()

	var out []PatientSummary
	for rows.Next() {
		var p PatientSummary
		var complaint sql.NullString
		var bedID sql.NullInt64
		if err := rows.Scan(&p.ID, &p.MRN, &p.Name, &p.Acuity, &complaint, &p.ArrivalTime, &bedID); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan patient summary", err)
		}
		p.ChiefComplaint = complaint.String
		if bedID.Valid {
			var bedNumber string
			if err := s.db.QueryRowContext(ctx, `SELECT bed_number FROM beds WHERE id = $1`, bedID.Int64).Scan(&bedNumber); err == nil {
				p.CurrentBed = &bedNumber
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPatient(ctx context.Context, id int) (*Patient, error) {
	var p Patient
	var complaint sql.NullString
	var discharge sql.NullTime
	var unitID, bedID sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, mrn, name, age, gender, acuity, chief_complaint, arrival_time, discharge_time,
		        current_unit_id, current_bed_id, is_isolation, requires_imaging, requires_consult
		 FROM patients WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.MRN, &p.Name, &p.Age, &p.Gender, &p.Acuity, &complaint, &p.ArrivalTime, &discharge,
		&unitID, &bedID, &p.IsIsolation, &p.RequiresImaging, &p.RequiresConsult)
	if err == sql.ErrNoRows {
		return nil, simerrors.New(simerrors.NotFound, fmt.Sprintf("patient %d", id))
	}
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "get patient", err)
	}
	p.ChiefComplaint = complaint.String
	if discharge.Valid {
		p.DischargeTime = &discharge.Time
	}
	if unitID.Valid {
		v := int(unitID.Int64)
		p.CurrentUnitID = &v
	}
	if bedID.Valid {
		v := int(bedID.Int64)
		p.CurrentBedID = &v
	}
	return &p, nil
}

// ListNurses serves /nurses, joining each nurse's most recent shift for
// its assigned-patient list.
func (s *Store) ListNurses(ctx context.Context, unitID *int) ([]NurseWithAssignments, error) {
	query := `SELECT n.id, n.unit_id, n.name, n.employee_id, n.specialty, n.max_patients FROM nurses n`
	var args []interface{}
	if unitID != nil {
		query += ` WHERE n.unit_id = $1`
		args = append(args, *unitID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "list nurses", err)
	}
	defer rows.Close()

	var out []NurseWithAssignments
	for rows.Next() {
		var n NurseWithAssignments
		var specialty sql.NullString
		if err := rows.Scan(&n.ID, &n.UnitID, &n.Name, &n.EmployeeID, &specialty, &n.MaxPatients); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan nurse", err)
		}
		n.Specialty = specialty.String

		var assigned []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT assigned_patients FROM shifts WHERE nurse_id = $1 ORDER BY start_time DESC LIMIT 1`,
			n.ID,
		).Scan(&assigned)
		if err == nil && len(assigned) > 0 {
			_ = jsonUnmarshalInts(assigned, &n.AssignedPatients)
		}
		n.AssignedPatientCount = len(n.AssignedPatients)
		out = append(out, n)
	}
	return out, rows.Err()
}

// BedOccupancyCounts returns total and occupied bed counts for a unit, the
// core of both QueryState and the KPI occupancy figure.
func (s *Store) BedOccupancyCounts(ctx context.Context, unitID int) (total, occupied int, err error) {
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM beds WHERE unit_id = $1`, unitID).Scan(&total); err != nil {
		return 0, 0, simerrors.Wrap(simerrors.StorageFault, "count beds", err)
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM beds WHERE unit_id = $1 AND status = 'occupied'`, unitID,
	).Scan(&occupied); err != nil {
		return 0, 0, simerrors.Wrap(simerrors.StorageFault, "count occupied beds", err)
	}
	return total, occupied, nil
}

// WaitingPatientCount counts patients with no bed and not discharged, the
// ED-waiting queue length.
func (s *Store) WaitingPatientCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM patients WHERE current_bed_id IS NULL AND discharge_time IS NULL`,
	).Scan(&count)
	if err != nil {
		return 0, simerrors.Wrap(simerrors.StorageFault, "waiting patient count", err)
	}
	return count, nil
}

// AverageLengthOfStayHours averages discharge_time - arrival_time over
// every discharged patient.
func (s *Store) AverageLengthOfStayHours(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT avg(EXTRACT(EPOCH FROM (discharge_time - arrival_time)) / 3600.0)
		 FROM patients WHERE discharge_time IS NOT NULL`,
	).Scan(&avg)
	if err != nil {
		return 0, simerrors.Wrap(simerrors.StorageFault, "average length of stay", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// NurseCount returns the number of nurses staffed to a unit.
func (s *Store) NurseCount(ctx context.Context, unitID int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM nurses WHERE unit_id = $1`, unitID).Scan(&count)
	if err != nil {
		return 0, simerrors.Wrap(simerrors.StorageFault, "nurse count", err)
	}
	return count, nil
}
