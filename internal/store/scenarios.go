package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/simulation"
)

// decimalParameters mirrors simulation.Parameters but carries its bounded
// ratio fields as decimal.Decimal, so marshaling into and out of a
// Postgres NUMERIC column never round-trips through a lossy float64 JSON
// number. AcuityMix and NurseCount are plain structs; their fields are
// proportions/counts that the engine already validates to tight
// tolerances, so only the scaling factors get the decimal treatment.
type decimalParameters struct {
	ArrivalMultiplier decimal.Decimal           `json:"arrival_multiplier"`
	AcuityMix         simulation.AcuityMix      `json:"acuity_mix"`
	BedsAvailable     int                       `json:"beds_available"`
	NurseCount        simulation.NurseShiftCounts `json:"nurse_count"`
	ImagingCapacity   decimal.Decimal           `json:"imaging_capacity"`
	TransportCapacity decimal.Decimal           `json:"transport_capacity"`
	ConsultCapacity   decimal.Decimal           `json:"consult_capacity"`
}

func toDecimalParameters(p simulation.Parameters) decimalParameters {
	return decimalParameters{
		ArrivalMultiplier: decimal.NewFromFloat(p.ArrivalMultiplier),
		AcuityMix:         p.AcuityMix,
		BedsAvailable:     p.BedsAvailable,
		NurseCount:        p.NurseCount,
		ImagingCapacity:   decimal.NewFromFloat(p.ImagingCapacity),
		TransportCapacity: decimal.NewFromFloat(p.TransportCapacity),
		ConsultCapacity:   decimal.NewFromFloat(p.ConsultCapacity),
	}
}

func (d decimalParameters) toParameters() simulation.Parameters {
	arrival, _ := d.ArrivalMultiplier.Float64()
	imaging, _ := d.ImagingCapacity.Float64()
	transport, _ := d.TransportCapacity.Float64()
	consult, _ := d.ConsultCapacity.Float64()
	return simulation.Parameters{
		ArrivalMultiplier: arrival,
		AcuityMix:         d.AcuityMix,
		BedsAvailable:     d.BedsAvailable,
		NurseCount:        d.NurseCount,
		ImagingCapacity:   imaging,
		TransportCapacity: transport,
		ConsultCapacity:   consult,
	}
}

// MarshalParameters encodes scenario parameters for storage, routing the
// numeric fields through decimal.Decimal first.
func MarshalParameters(p simulation.Parameters) (json.RawMessage, error) {
	b, err := json.Marshal(toDecimalParameters(p))
	if err != nil {
		return nil, fmt.Errorf("marshal scenario parameters: %w", err)
	}
	return b, nil
}

// UnmarshalParameters decodes a stored parameters blob back into
// simulation.Parameters.
func UnmarshalParameters(raw json.RawMessage) (simulation.Parameters, error) {
	var d decimalParameters
	if err := json.Unmarshal(raw, &d); err != nil {
		return simulation.Parameters{}, fmt.Errorf("unmarshal scenario parameters: %w", err)
	}
	return d.toParameters(), nil
}

// CreateScenario inserts a new scenario row. isBaseline must be false for
// every caller except the one-time seed of the protected baseline
// scenario; the API never lets a client set it directly.
func (s *Store) CreateScenario(ctx context.Context, name, description string, params simulation.Parameters, isBaseline bool) (*Scenario, error) {
	if err := params.Validate(); err != nil {
		return nil, simerrors.Wrap(simerrors.InvalidParameter, "scenario parameters", err)
	}
	raw, err := MarshalParameters(params)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "encode parameters", err)
	}

	sc := &Scenario{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Parameters:  raw,
		IsBaseline:  isBaseline,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, name, description, parameters, is_baseline, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sc.ID, sc.Name, sc.Description, []byte(sc.Parameters), sc.IsBaseline, sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "create scenario", err)
	}
	return sc, nil
}

func (s *Store) GetScenario(ctx context.Context, id uuid.UUID) (*Scenario, error) {
	var sc Scenario
	var params []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, parameters, is_baseline, created_at, updated_at
		 FROM scenarios WHERE id = $1`,
		id,
	).Scan(&sc.ID, &sc.Name, &sc.Description, &params, &sc.IsBaseline, &sc.CreatedAt, &sc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, simerrors.New(simerrors.NotFound, fmt.Sprintf("scenario %s", id))
	}
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "get scenario", err)
	}
	sc.Parameters = params
	return &sc, nil
}

func (s *Store) ListScenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, parameters, is_baseline, created_at, updated_at
		 FROM scenarios ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "list scenarios", err)
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		var sc Scenario
		var params []byte
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.Description, &params, &sc.IsBaseline, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, simerrors.Wrap(simerrors.StorageFault, "scan scenario", err)
		}
		sc.Parameters = params
		out = append(out, sc)
	}
	return out, rows.Err()
}

// UpdateScenario replaces name/description/parameters. The baseline flag
// is immutable once set; it is never accepted from this call.
func (s *Store) UpdateScenario(ctx context.Context, id uuid.UUID, name, description string, params simulation.Parameters) (*Scenario, error) {
	if err := params.Validate(); err != nil {
		return nil, simerrors.Wrap(simerrors.InvalidParameter, "scenario parameters", err)
	}
	raw, err := MarshalParameters(params)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "encode parameters", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE scenarios SET name = $1, description = $2, parameters = $3, updated_at = $4 WHERE id = $5`,
		name, description, []byte(raw), now, id,
	)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "update scenario", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return nil, simerrors.New(simerrors.NotFound, fmt.Sprintf("scenario %s", id))
	}
	return s.GetScenario(ctx, id)
}

// DeleteScenario refuses to delete the baseline scenario; every other
// scenario deletes its associated events via the schema's cascading FK.
func (s *Store) DeleteScenario(ctx context.Context, id uuid.UUID) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var isBaseline bool
		err := tx.QueryRowContext(ctx, `SELECT is_baseline FROM scenarios WHERE id = $1 FOR UPDATE`, id).Scan(&isBaseline)
		if err == sql.ErrNoRows {
			return simerrors.New(simerrors.NotFound, fmt.Sprintf("scenario %s", id))
		}
		if err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "lock scenario", err)
		}
		if isBaseline {
			return simerrors.New(simerrors.StateViolation, "the baseline scenario cannot be deleted")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM scenarios WHERE id = $1`, id); err != nil {
			return simerrors.Wrap(simerrors.StorageFault, "delete scenario", err)
		}
		return nil
	})
}
