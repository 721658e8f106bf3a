package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wardops/simcore/internal/simulation"
)

func TestAverageMetrics(t *testing.T) {
	t.Run("should average per-seed metrics across the fan-out", func(t *testing.T) {
		results := []SeedSummary{
			{Seed: 1, Metrics: simulation.Metrics{TotalPatients: 280, AvgWaitTimeMinutes: 40, SLABreaches: 10, PeakOccupancy: 90}},
			{Seed: 2, Metrics: simulation.Metrics{TotalPatients: 300, AvgWaitTimeMinutes: 60, SLABreaches: 20, PeakOccupancy: 95}},
		}

		avg := averageMetrics(results)

		assert.Equal(t, 290, avg.TotalPatients)
		assert.Equal(t, 50.0, avg.AvgWaitTimeMinutes)
		assert.Equal(t, 15, avg.SLABreaches)
		assert.Equal(t, 92.5, avg.PeakOccupancy)
	})

	t.Run("should return the zero value for an empty result set", func(t *testing.T) {
		avg := averageMetrics(nil)
		assert.Equal(t, simulation.Metrics{}, avg)
	})
}
