package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedian(t *testing.T) {
	t.Run("should return the middle value for an odd-length slice", func(t *testing.T) {
		assert.Equal(t, 3.0, median([]float64{1, 2, 3, 4, 5}))
	})

	t.Run("should average the two middle values for an even-length slice", func(t *testing.T) {
		assert.Equal(t, 2.5, median([]float64{1, 2, 3, 4}))
	})

	t.Run("should return zero for an empty slice", func(t *testing.T) {
		assert.Equal(t, 0.0, median(nil))
	})
}

func TestAggregateEmptyRun(t *testing.T) {
	t.Run("should return zeroed metrics when nothing happened", func(t *testing.T) {
		result := aggregate(nil, nil, nil)
		assert.Equal(t, 0, result.Metrics.TotalPatients)
		assert.Equal(t, 0.0, result.Metrics.AvgWaitTimeMinutes)
		assert.Empty(t, result.Bottlenecks)
	})
}

func TestAggregateSLABreaches(t *testing.T) {
	t.Run("should count only waits over the sixty minute threshold", func(t *testing.T) {
		outcomes := []PatientOutcome{
			{PatientID: 1, WaitTime: 30, LOS: 200, Discharged: true},
			{PatientID: 2, WaitTime: 90, LOS: 200, Discharged: true},
			{PatientID: 3, WaitTime: 61, LOS: 200, Discharged: true},
		}
		result := aggregate(outcomes, nil, nil)
		assert.Equal(t, 2, result.Metrics.SLABreaches)
		assert.Equal(t, 3, result.Metrics.TotalPatients)
	})
}

func TestRankBottlenecksOrdering(t *testing.T) {
	t.Run("should rank the most frequent constraint first", func(t *testing.T) {
		q1, q2 := 3, 1
		log := []BottleneckRecord{
			{Constraint: ConstraintBedAvailability, PatientID: 1, QueueLength: &q1},
			{Constraint: ConstraintBedAvailability, PatientID: 2, QueueLength: &q1},
			{Constraint: ConstraintImagingCapacity, PatientID: 3, QueueLength: &q2},
		}
		ranked := rankBottlenecks(log, 10)
		require.Len(t, ranked, 2)
		assert.Equal(t, ConstraintBedAvailability, ranked[0].Constraint)
		assert.Equal(t, 2, ranked[0].Occurrences)
		assert.InDelta(t, 0.2, ranked[0].ImpactScore, 1e-9)
		assert.InDelta(t, 3.0, ranked[0].AvgQueue, 1e-9)
	})

	t.Run("should cap the ranking at five entries", func(t *testing.T) {
		constraints := []Constraint{
			ConstraintBedAvailability, ConstraintNurseStaffing, ConstraintImagingCapacity,
			ConstraintTransportCapacity, ConstraintConsultCapacity, "unmodeled_constraint",
		}
		var log []BottleneckRecord
		for i, c := range constraints {
			log = append(log, BottleneckRecord{Constraint: c, PatientID: i})
		}
		ranked := rankBottlenecks(log, 1)
		assert.Len(t, ranked, 5)
	})

	t.Run("should break equal impact scores by constraint name for determinism", func(t *testing.T) {
		log := []BottleneckRecord{
			{Constraint: ConstraintNurseStaffing, PatientID: 1},
			{Constraint: ConstraintBedAvailability, PatientID: 2},
		}
		ranked := rankBottlenecks(log, 10)
		require.Len(t, ranked, 2)
		assert.Equal(t, ConstraintBedAvailability, ranked[0].Constraint)
	})
}
