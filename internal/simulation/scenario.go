package simulation

import (
	"fmt"
	"math"
)

// Acuity is a patient's categorical severity. It drives the length-of-stay
// distribution and the probability of an isolation-bed request.
type Acuity string

const (
	AcuityLow      Acuity = "low"
	AcuityMedium   Acuity = "medium"
	AcuityHigh     Acuity = "high"
	AcuityCritical Acuity = "critical"
)

// AcuityMix gives the arrival probability of each acuity level. The four
// probabilities must sum to 1 (within floating point tolerance).
type AcuityMix struct {
	Low      float64 `json:"low"`
	Medium   float64 `json:"medium"`
	High     float64 `json:"high"`
	Critical float64 `json:"critical"`
}

func (m AcuityMix) labelsAndWeights() ([]Acuity, []float64) {
	return []Acuity{AcuityLow, AcuityMedium, AcuityHigh, AcuityCritical},
		[]float64{m.Low, m.Medium, m.High, m.Critical}
}

func (m AcuityMix) sum() float64 {
	return m.Low + m.Medium + m.High + m.Critical
}

// NurseShiftCounts gives the staffed nurse count per shift. Only Day is
// consulted by the engine; Evening and Night are carried for schema
// completeness (shift handoffs are outside the simulated horizon).
type NurseShiftCounts struct {
	Day      int `json:"day"`
	Evening  int `json:"evening"`
	Night    int `json:"night"`
}

// Parameters is the immutable input to one simulation run.
type Parameters struct {
	ArrivalMultiplier float64          `json:"arrival_multiplier"`
	AcuityMix         AcuityMix        `json:"acuity_mix"`
	BedsAvailable     int              `json:"beds_available"`
	NurseCount        NurseShiftCounts `json:"nurse_count"`
	ImagingCapacity   float64          `json:"imaging_capacity"`
	TransportCapacity float64          `json:"transport_capacity"`
	ConsultCapacity   float64          `json:"consult_capacity"`
}

// DefaultParameters returns the baseline scenario used as the protected,
// non-deletable scenario row and as the reference point for the scenario
// monotonicity property.
func DefaultParameters() Parameters {
	return Parameters{
		ArrivalMultiplier: 1.0,
		AcuityMix:         AcuityMix{Low: 0.3, Medium: 0.5, High: 0.15, Critical: 0.05},
		BedsAvailable:     24,
		NurseCount:        NurseShiftCounts{Day: 6, Evening: 6, Night: 4},
		ImagingCapacity:   1.0,
		TransportCapacity: 1.0,
		ConsultCapacity:   1.0,
	}
}

// Validate checks every field against the domain ranges the engine assumes.
// It returns a plain error identifying the first violation found; callers
// classify it (internal/store wraps it as an invalid-parameter error).
func (p Parameters) Validate() error {
	if p.ArrivalMultiplier < 0.5 || p.ArrivalMultiplier > 3.0 {
		return fmt.Errorf("arrival_multiplier %.3f out of range [0.5, 3.0]", p.ArrivalMultiplier)
	}
	if p.BedsAvailable < 1 || p.BedsAvailable > 100 {
		return fmt.Errorf("beds_available %d out of range [1, 100]", p.BedsAvailable)
	}
	if p.NurseCount.Day < 1 {
		return fmt.Errorf("nurse_count.day must be at least 1, got %d", p.NurseCount.Day)
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"imaging_capacity", p.ImagingCapacity},
		{"transport_capacity", p.TransportCapacity},
		{"consult_capacity", p.ConsultCapacity},
	} {
		if c.v < 0.2 || c.v > 5.0 {
			return fmt.Errorf("%s %.3f out of range [0.2, 5.0]", c.name, c.v)
		}
	}
	if math.Abs(p.AcuityMix.sum()-1.0) > 1e-6 {
		return fmt.Errorf("acuity_mix probabilities sum to %.6f, expected 1.0", p.AcuityMix.sum())
	}
	return nil
}

// imagingSlots, transportSlots and consultSlots convert a capacity factor
// into a concrete number of concurrent slots: floor(2 * capacity).
func (p Parameters) imagingSlots() int   { return int(math.Floor(2 * p.ImagingCapacity)) }
func (p Parameters) transportSlots() int { return int(math.Floor(2 * p.TransportCapacity)) }
func (p Parameters) consultSlots() int   { return int(math.Floor(2 * p.ConsultCapacity)) }

// arrivalRatePerHour returns the baseline 12.5 arrivals/hour scaled by the
// configured multiplier.
func (p Parameters) arrivalRatePerHour() float64 {
	return 12.5 * p.ArrivalMultiplier
}

// isolationProbability returns the probability that an arriving patient of
// the given acuity requests an isolation bed. Acuity-weighted: critical and
// high acuity patients are far more likely to need isolation precautions
// than low/medium. The distilled source never modeled this signal at all;
// this derivation resolves that gap (see DESIGN.md).
func isolationProbability(a Acuity) float64 {
	switch a {
	case AcuityCritical:
		return 0.35
	case AcuityHigh:
		return 0.15
	default:
		return 0.03
	}
}
