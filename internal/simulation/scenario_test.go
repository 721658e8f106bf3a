package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParametersValidate(t *testing.T) {
	t.Run("should pass validation as shipped", func(t *testing.T) {
		assert.NoError(t, DefaultParameters().Validate())
	})
}

func TestParametersValidateRanges(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(p *Parameters)
		wantErr bool
	}{
		{"arrival multiplier too low", func(p *Parameters) { p.ArrivalMultiplier = 0.1 }, true},
		{"arrival multiplier too high", func(p *Parameters) { p.ArrivalMultiplier = 4.0 }, true},
		{"beds below one", func(p *Parameters) { p.BedsAvailable = 0 }, true},
		{"beds above one hundred", func(p *Parameters) { p.BedsAvailable = 500 }, true},
		{"zero day nurses", func(p *Parameters) { p.NurseCount.Day = 0 }, true},
		{"imaging capacity too low", func(p *Parameters) { p.ImagingCapacity = 0.05 }, true},
		{"imaging capacity too high", func(p *Parameters) { p.ImagingCapacity = 9.0 }, true},
		{"acuity mix not normalized", func(p *Parameters) { p.AcuityMix = AcuityMix{Low: 0.9, Medium: 0.9} }, true},
	}

	for _, tc := range cases {
		t.Run("should reject "+tc.name, func(t *testing.T) {
			p := DefaultParameters()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlotDerivation(t *testing.T) {
	t.Run("should floor the doubled capacity factor into a slot count", func(t *testing.T) {
		p := DefaultParameters()
		p.ImagingCapacity = 1.4
		p.TransportCapacity = 0.2
		p.ConsultCapacity = 2.5

		assert.Equal(t, 2, p.imagingSlots())
		assert.Equal(t, 0, p.transportSlots())
		assert.Equal(t, 5, p.consultSlots())
	})
}

func TestArrivalRate(t *testing.T) {
	t.Run("should scale the baseline rate by the arrival multiplier", func(t *testing.T) {
		p := DefaultParameters()
		p.ArrivalMultiplier = 2.0
		assert.InDelta(t, 25.0, p.arrivalRatePerHour(), 1e-9)
	})
}

func TestIsolationProbability(t *testing.T) {
	t.Run("should rank critical above high above the rest", func(t *testing.T) {
		critical := isolationProbability(AcuityCritical)
		high := isolationProbability(AcuityHigh)
		low := isolationProbability(AcuityLow)
		medium := isolationProbability(AcuityMedium)

		assert.Greater(t, critical, high)
		assert.Greater(t, high, low)
		assert.Equal(t, low, medium)
	})
}
