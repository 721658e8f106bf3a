package simulation

import "sort"

// Metrics is the summary bundle computed once a run's event queue has
// drained.
type Metrics struct {
	TotalPatients        int     `json:"total_patients"`
	AvgWaitTimeMinutes   float64 `json:"avg_wait_time_minutes"`
	MedianWaitTimeMinutes float64 `json:"median_wait_time_minutes"`
	MaxWaitTimeMinutes   float64 `json:"max_wait_time_minutes"`
	AvgLOSMinutes        float64 `json:"avg_los_minutes"`
	SLABreaches          int     `json:"sla_breaches"`
	AvgOccupancy         float64 `json:"avg_occupancy"`
	PeakOccupancy        float64 `json:"peak_occupancy"`
	AvgNurseLoad         float64 `json:"avg_nurse_load"`
}

// RankedBottleneck is one entry of the top-5 constraint ranking returned to
// callers.
type RankedBottleneck struct {
	Constraint  Constraint `json:"constraint"`
	Occurrences int        `json:"occurrences"`
	ImpactScore float64    `json:"impact_score"`
	AvgQueue    float64    `json:"avg_queue"`
	Description string     `json:"description"`
}

var bottleneckDescriptions = map[Constraint]string{
	ConstraintBedAvailability:   "Patients are waiting for beds to become available",
	ConstraintNurseStaffing:     "Nursing staff is at or above target patient ratios",
	ConstraintImagingCapacity:   "Imaging requests are queueing for scanner capacity",
	ConstraintTransportCapacity: "Transport requests are queueing for transport capacity",
	ConstraintConsultCapacity:   "Consult requests are queueing for specialist availability",
}

// aggregate folds patient outcomes, the sampled time series, and the
// bottleneck log into the final Result bundle.
func aggregate(outcomes []PatientOutcome, series []TimeSeriesPoint, log []BottleneckRecord) Result {
	m := Metrics{TotalPatients: len(outcomes)}

	if len(outcomes) > 0 {
		waits := make([]float64, 0, len(outcomes))
		var sumWait, sumLOS float64
		for _, o := range outcomes {
			waits = append(waits, o.WaitTime)
			sumWait += o.WaitTime
			if o.Discharged {
				sumLOS += o.LOS
			}
			if o.WaitTime > 60 {
				m.SLABreaches++
			}
		}
		sort.Float64s(waits)
		m.AvgWaitTimeMinutes = sumWait / float64(len(outcomes))
		m.MedianWaitTimeMinutes = median(waits)
		m.MaxWaitTimeMinutes = waits[len(waits)-1]

		dischargedCount := 0
		for _, o := range outcomes {
			if o.Discharged {
				dischargedCount++
			}
		}
		if dischargedCount > 0 {
			m.AvgLOSMinutes = sumLOS / float64(dischargedCount)
		}
	}

	if len(series) > 0 {
		var sumOcc, sumLoad, peak float64
		for _, pt := range series {
			sumOcc += pt.Occupancy
			sumLoad += pt.NurseLoad
			if pt.Occupancy > peak {
				peak = pt.Occupancy
			}
		}
		m.AvgOccupancy = sumOcc / float64(len(series))
		m.PeakOccupancy = peak
		m.AvgNurseLoad = sumLoad / float64(len(series))
	}

	bottlenecks := rankBottlenecks(log, len(outcomes))

	return Result{Metrics: m, TimeSeries: series, Bottlenecks: bottlenecks}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func rankBottlenecks(log []BottleneckRecord, totalPatients int) []RankedBottleneck {
	type agg struct {
		count      int
		queueSum   float64
		queueCount int
	}
	byConstraint := make(map[Constraint]*agg)
	for _, rec := range log {
		a, ok := byConstraint[rec.Constraint]
		if !ok {
			a = &agg{}
			byConstraint[rec.Constraint] = a
		}
		a.count++
		if rec.QueueLength != nil {
			a.queueSum += float64(*rec.QueueLength)
			a.queueCount++
		}
	}

	denom := totalPatients
	if denom < 1 {
		denom = 1
	}

	ranked := make([]RankedBottleneck, 0, len(byConstraint))
	for c, a := range byConstraint {
		var avgQueue float64
		if a.queueCount > 0 {
			avgQueue = a.queueSum / float64(a.queueCount)
		}
		ranked = append(ranked, RankedBottleneck{
			Constraint:  c,
			Occurrences: a.count,
			ImpactScore: float64(a.count) / float64(denom),
			AvgQueue:    avgQueue,
			Description: bottleneckDescriptions[c],
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].ImpactScore != ranked[j].ImpactScore {
			return ranked[i].ImpactScore > ranked[j].ImpactScore
		}
		// deterministic tie-break when impact scores are equal
		return ranked[i].Constraint < ranked[j].Constraint
	})

	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	return ranked
}
