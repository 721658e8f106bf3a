package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardops/simcore/pkg/eventqueue"
)

func runScenario(t *testing.T, params Parameters, seed int64) Result {
	t.Helper()
	e, err := NewEngine(params, seed, nil)
	require.NoError(t, err)
	result, err := e.Run()
	require.NoError(t, err)
	return result
}

func TestEngineDeterminism(t *testing.T) {
	t.Run("should produce identical results for two runs with the same seed", func(t *testing.T) {
		params := DefaultParameters()
		first := runScenario(t, params, 42)
		second := runScenario(t, params, 42)

		assert.Equal(t, first.Metrics, second.Metrics)
		assert.Equal(t, first.TimeSeries, second.TimeSeries)
		assert.Equal(t, first.Bottlenecks, second.Bottlenecks)
	})

	t.Run("should diverge for two runs with different seeds", func(t *testing.T) {
		params := DefaultParameters()
		first := runScenario(t, params, 42)
		second := runScenario(t, params, 43)

		assert.NotEqual(t, first.Metrics.TotalPatients, second.Metrics.TotalPatients,
			"different seeds drawing different inter-arrival times should almost never produce the same patient count")
	})
}

func TestEngineTimeSeriesMonotonicity(t *testing.T) {
	t.Run("should sample every 15 minutes with a strictly increasing time field", func(t *testing.T) {
		result := runScenario(t, DefaultParameters(), 42)
		require.NotEmpty(t, result.TimeSeries)

		assert.Equal(t, 0.0, result.TimeSeries[0].Time)
		assert.Equal(t, 1440.0, result.TimeSeries[len(result.TimeSeries)-1].Time)

		for i := 1; i < len(result.TimeSeries); i++ {
			prev := result.TimeSeries[i-1].Time
			cur := result.TimeSeries[i].Time
			assert.Equal(t, 15.0, cur-prev, "consecutive samples must be exactly 15 minutes apart")
		}
	})

	t.Run("should never report negative queue lengths or occupancy", func(t *testing.T) {
		result := runScenario(t, DefaultParameters(), 7)
		for _, pt := range result.TimeSeries {
			assert.GreaterOrEqual(t, pt.Occupancy, 0.0)
			assert.GreaterOrEqual(t, pt.BedQueue, 0)
			assert.GreaterOrEqual(t, pt.ImagingQueue, 0)
			assert.GreaterOrEqual(t, pt.ConsultQueue, 0)
			assert.LessOrEqual(t, pt.Occupancy, 100.0)
		}
	})
}

func TestEngineBedConservation(t *testing.T) {
	t.Run("should leave every bed in exactly one of occupied, cleaning or idle at horizon end", func(t *testing.T) {
		params := DefaultParameters()
		e, err := NewEngine(params, 42, nil)
		require.NoError(t, err)
		_, err = e.Run()
		require.NoError(t, err)

		for _, b := range e.beds.Beds() {
			states := 0
			if b.Occupied {
				states++
			}
			if b.Cleaning {
				states++
			}
			if states == 0 {
				states = 1 // idle counts as the third state
			}
			assert.LessOrEqual(t, states, 1, "bed %d must not be both occupied and cleaning", b.ID)
		}
	})

	t.Run("should never exceed the configured bed count", func(t *testing.T) {
		params := DefaultParameters()
		params.BedsAvailable = 5
		e, err := NewEngine(params, 42, nil)
		require.NoError(t, err)
		_, err = e.Run()
		require.NoError(t, err)
		assert.Len(t, e.beds.Beds(), 5)
	})
}

func TestEngineNurseCapacity(t *testing.T) {
	t.Run("should never assign a nurse beyond its max patient count", func(t *testing.T) {
		params := DefaultParameters()
		params.NurseCount.Day = 2
		e, err := NewEngine(params, 42, nil)
		require.NoError(t, err)
		_, err = e.Run()
		require.NoError(t, err)

		for _, n := range e.nurses.nurses {
			assert.LessOrEqual(t, len(n.Assigned), n.MaxPatients)
		}
	})
}

func TestEngineBedWaitFIFO(t *testing.T) {
	t.Run("should seat waiting patients in the order their triage completed", func(t *testing.T) {
		params := DefaultParameters()
		params.BedsAvailable = 1
		params.ArrivalMultiplier = 3.0

		var triageOrder, bedOrder []int
		e, err := NewEngine(params, 11, nil)
		require.NoError(t, err)
		e.EventSink = func(virtualMinute float64, kind eventqueue.Kind, patientID, bedID, nurseID int, data map[string]interface{}) {
			switch kind {
			case "triage":
				triageOrder = append(triageOrder, patientID)
			case "bed_assignment":
				bedOrder = append(bedOrder, patientID)
			}
		}
		_, err = e.Run()
		require.NoError(t, err)

		// Not every triaged patient is guaranteed a bed within the horizon, but
		// whichever prefix does get seated must exactly match triage order:
		// a single bed serializes admission through one FIFO queue.
		require.LessOrEqual(t, len(bedOrder), len(triageOrder))
		assert.Equal(t, triageOrder[:len(bedOrder)], bedOrder,
			"a single-bed pool must seat patients strictly in the order their triage finished")
	})
}

func TestEngineValidatesParameters(t *testing.T) {
	t.Run("should reject an arrival multiplier outside the allowed range", func(t *testing.T) {
		params := DefaultParameters()
		params.ArrivalMultiplier = 10.0
		_, err := NewEngine(params, 1, nil)
		assert.Error(t, err)
	})

	t.Run("should reject an acuity mix that does not sum to 1", func(t *testing.T) {
		params := DefaultParameters()
		params.AcuityMix = AcuityMix{Low: 0.5, Medium: 0.5, High: 0.5, Critical: 0.5}
		_, err := NewEngine(params, 1, nil)
		assert.Error(t, err)
	})

	t.Run("should reject zero beds", func(t *testing.T) {
		params := DefaultParameters()
		params.BedsAvailable = 0
		_, err := NewEngine(params, 1, nil)
		assert.Error(t, err)
	})
}

func TestEngineBottleneckRanking(t *testing.T) {
	t.Run("should rank bottlenecks by descending impact score with at most five entries", func(t *testing.T) {
		params := DefaultParameters()
		params.BedsAvailable = 2
		params.ArrivalMultiplier = 3.0
		result := runScenario(t, params, 99)

		require.LessOrEqual(t, len(result.Bottlenecks), 5)
		for i := 1; i < len(result.Bottlenecks); i++ {
			assert.GreaterOrEqual(t, result.Bottlenecks[i-1].ImpactScore, result.Bottlenecks[i].ImpactScore)
		}
	})
}

func TestEngineScenarioMonotonicity(t *testing.T) {
	t.Run("should show higher average wait time as arrivals scale up against fixed capacity", func(t *testing.T) {
		light := DefaultParameters()
		light.ArrivalMultiplier = 0.5

		heavy := DefaultParameters()
		heavy.ArrivalMultiplier = 2.5

		lightResult := runScenario(t, light, 42)
		heavyResult := runScenario(t, heavy, 42)

		assert.GreaterOrEqual(t, heavyResult.Metrics.AvgWaitTimeMinutes, lightResult.Metrics.AvgWaitTimeMinutes)
	})
}

func TestEnginePatientOutcomesAreConsistent(t *testing.T) {
	t.Run("should never report a wait time or length of stay below zero", func(t *testing.T) {
		result := runScenario(t, DefaultParameters(), 42)
		assert.GreaterOrEqual(t, result.Metrics.AvgWaitTimeMinutes, 0.0)
		assert.GreaterOrEqual(t, result.Metrics.AvgLOSMinutes, 0.0)
		assert.GreaterOrEqual(t, result.Metrics.MedianWaitTimeMinutes, 0.0)
	})

	t.Run("should count at least as many total patients as discharged patients", func(t *testing.T) {
		e, err := NewEngine(DefaultParameters(), 42, nil)
		require.NoError(t, err)
		discharged := 0
		e.EventSink = func(_ float64, kind eventqueue.Kind, _ int, _ int, _ int, _ map[string]interface{}) {
			if kind == kindDischarge {
				discharged++
			}
		}
		result, err := e.Run()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.Metrics.TotalPatients, discharged)
	})
}
