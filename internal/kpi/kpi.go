// Package kpi serves the read-mostly point-in-time queries: live unit
// state, a patient's full journey with derived timings, bottleneck
// summaries over a window, and the dashboard KPI snapshot. The snapshot
// is the one hot path worth caching, since dashboards poll it on a
// short interval.
package kpi

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/store"
)

const snapshotTTL = 5 * time.Second

// Reader answers the read API's point-in-time queries against the
// persistence layer, fronting the KPI snapshot with a two-tier
// in-process-then-Redis cache: check the local map first, fall back to
// Redis, and only hit storage on a full miss.
type Reader struct {
	store *store.Store
	redis *redis.Client

	cacheMu sync.RWMutex
	cache   map[int]cachedSnapshot
}

type cachedSnapshot struct {
	snapshot  KPISnapshot
	expiresAt time.Time
}

// NewReader builds a Reader. redisClient may be nil, in which case the
// snapshot cache runs in-process only (useful for a single-replica
// deployment or a test that doesn't want a Redis dependency).
func NewReader(st *store.Store, redisClient *redis.Client) *Reader {
	return &Reader{
		store: st,
		redis: redisClient,
		cache: make(map[int]cachedSnapshot),
	}
}

// UnitState is QueryState's response shape.
type UnitState struct {
	UnitID          int     `json:"unit_id"`
	Timestamp       time.Time `json:"timestamp"`
	TotalBeds       int     `json:"total_beds"`
	OccupiedBeds    int     `json:"occupied_beds"`
	OccupancyPct    float64 `json:"occupancy_percent"`
	WaitingPatients int     `json:"waiting_patients"`
	NurseCount      int     `json:"nurse_count"`
	PatientsPerNurse float64 `json:"patients_per_nurse"`
}

// QueryState is a purely-a-read-view snapshot of one unit's occupancy and
// staffing at the instant it's called; it does not itself depend on ts,
// since the persisted state is always current, but it is stamped onto
// the response so a caller replaying historical queries can label them.
func (r *Reader) QueryState(ctx context.Context, unitID int, ts time.Time) (*UnitState, error) {
	total, occupied, err := r.store.BedOccupancyCounts(ctx, unitID)
	if err != nil {
		return nil, err
	}
	waiting, err := r.store.WaitingPatientCount(ctx)
	if err != nil {
		return nil, err
	}
	nurses, err := r.store.NurseCount(ctx, unitID)
	if err != nil {
		return nil, err
	}

	state := &UnitState{
		UnitID:          unitID,
		Timestamp:       ts,
		TotalBeds:       total,
		OccupiedBeds:    occupied,
		WaitingPatients: waiting,
		NurseCount:      nurses,
	}
	if total > 0 {
		state.OccupancyPct = round1(float64(occupied) / float64(total) * 100)
	}
	if nurses > 0 {
		state.PatientsPerNurse = round2(float64(occupied) / float64(nurses))
	}
	return state, nil
}

// PatientJourney is PatientTrace's response shape.
type PatientJourney struct {
	Patient *store.Patient    `json:"patient"`
	Events  []store.EventRecord `json:"events"`
	Metrics JourneyMetrics    `json:"metrics"`
}

// JourneyMetrics are the derived timings the original implementation
// computes per patient, counting nurse_assignment events as handoffs.
type JourneyMetrics struct {
	TotalEvents         int     `json:"total_events"`
	TotalTimeMinutes    float64 `json:"total_time_minutes"`
	WaitForBedMinutes   float64 `json:"wait_for_bed_minutes"`
	ImagingTimeMinutes  float64 `json:"imaging_time_minutes"`
	Handoffs            int     `json:"handoffs"`
}

// PatientTrace returns one patient's full event log plus derived journey
// metrics.
func (r *Reader) PatientTrace(ctx context.Context, patientID int) (*PatientJourney, error) {
	patient, err := r.store.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	events, err := r.store.EventsForPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return &PatientJourney{
		Patient: patient,
		Events:  events,
		Metrics: computeJourneyMetrics(patient, events),
	}, nil
}

func computeJourneyMetrics(patient *store.Patient, events []store.EventRecord) JourneyMetrics {
	metrics := JourneyMetrics{TotalEvents: len(events)}

	var arrival *time.Time
	var imagingStart *time.Time

	for _, e := range events {
		switch e.EventType {
		case "arrival":
			t := e.Timestamp
			arrival = &t
		case "bed_assignment":
			if arrival != nil {
				metrics.WaitForBedMinutes = round1(e.Timestamp.Sub(*arrival).Minutes())
			}
		case "imaging_start":
			t := e.Timestamp
			imagingStart = &t
		case "imaging_end":
			if imagingStart != nil {
				metrics.ImagingTimeMinutes = round1(e.Timestamp.Sub(*imagingStart).Minutes())
				imagingStart = nil
			}
		case "nurse_assignment":
			metrics.Handoffs++
		}
	}

	if arrival != nil {
		end := *arrival
		if patient.DischargeTime != nil {
			end = *patient.DischargeTime
		} else if len(events) > 0 {
			end = events[len(events)-1].Timestamp
		}
		metrics.TotalTimeMinutes = round1(end.Sub(*arrival).Minutes())
	}

	return metrics
}

// Bottleneck is one ranked entry in a SummarizeBottlenecks response. Its
// fields describe persisted bed-assignment waits and differ from the
// per-run internal/simulation.RankedBottleneck.
type Bottleneck struct {
	Constraint      string  `json:"constraint"`
	OccurrenceCount int     `json:"occurrence_count"`
	AvgWaitMinutes  float64 `json:"avg_wait_minutes"`
	SLABreaches     int     `json:"sla_breaches"`
}

// slaBreachMinutes is the wait threshold above which a bed assignment
// counts as an SLA breach, matching the original implementation's fixed
// 60 minute cutoff.
const slaBreachMinutes = 60.0

// nurseRatioTarget is the fixed heuristic patients-per-nurse ratio; it's a
// heuristic rather than a learned or configured figure, same as the
// original. SummarizeBottlenecks does not use it.
const nurseRatioTarget = 4.0

// SummarizeBottlenecks analyzes bed_assignment events in [start, end],
// scoped to scenarioID when given, and returns a single ranked
// "bed_availability" entry (nil when the window has no assignments). It
// reports no nurse-ratio entry.
func (r *Reader) SummarizeBottlenecks(ctx context.Context, start, end time.Time, scenarioID *uuid.UUID) ([]Bottleneck, error) {
	events, err := r.store.BedAssignmentsInWindow(ctx, start, end, scenarioID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	var total float64
	var breaches int
	for _, e := range events {
		wait := waitMinutesFromData(e.Data)
		total += wait
		if wait > slaBreachMinutes {
			breaches++
		}
	}

	return []Bottleneck{{
		Constraint:      "bed_availability",
		OccurrenceCount: len(events),
		AvgWaitMinutes:  round1(total / float64(len(events))),
		SLABreaches:     breaches,
	}}, nil
}

func waitMinutesFromData(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var payload struct {
		WaitMinutes float64 `json:"wait_minutes"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0
	}
	return payload.WaitMinutes
}

// KPISnapshot is the dashboard's polled summary for one unit.
type KPISnapshot struct {
	UnitID                   int       `json:"unit_id"`
	OccupancyPercent         float64   `json:"occupancy_percent"`
	AverageLOSHours          float64   `json:"average_los_hours"`
	AverageTimeToBedMinutes  float64   `json:"average_time_to_bed_minutes"`
	SLABreaches              int       `json:"sla_breaches"`
	EDWaitingCount           int       `json:"ed_waiting_count"`
	NurseLoadAverage         float64   `json:"nurse_load_average"`
	ComputedAt               time.Time `json:"computed_at"`
}

// KPISnapshot serves /metrics/kpi, checking the in-process cache then
// Redis before recomputing from storage. A miss at every tier recomputes
// and writes back to both tiers with the same snapshotTTL.
func (r *Reader) KPISnapshot(ctx context.Context, unitID int) (*KPISnapshot, error) {
	if snap, ok := r.fromLocalCache(unitID); ok {
		return snap, nil
	}
	if r.redis != nil {
		if snap, ok := r.fromRedis(ctx, unitID); ok {
			r.storeLocalCache(unitID, snap)
			return snap, nil
		}
	}

	snap, err := r.computeSnapshot(ctx, unitID)
	if err != nil {
		return nil, err
	}

	r.storeLocalCache(unitID, snap)
	if r.redis != nil {
		r.storeRedis(ctx, unitID, snap)
	}
	return snap, nil
}

func (r *Reader) fromLocalCache(unitID int) (*KPISnapshot, bool) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	entry, ok := r.cache[unitID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	snap := entry.snapshot
	return &snap, true
}

func (r *Reader) storeLocalCache(unitID int, snap *KPISnapshot) {
	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()
	r.cache[unitID] = cachedSnapshot{snapshot: *snap, expiresAt: time.Now().Add(snapshotTTL)}
}

func (r *Reader) fromRedis(ctx context.Context, unitID int) (*KPISnapshot, bool) {
	raw, err := r.redis.Get(ctx, redisKey(unitID)).Result()
	if err != nil {
		return nil, false
	}
	var snap KPISnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (r *Reader) storeRedis(ctx context.Context, unitID int, snap *KPISnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	r.redis.Set(ctx, redisKey(unitID), raw, snapshotTTL)
}

func redisKey(unitID int) string {
	return "kpi:snapshot:unit:" + strconv.Itoa(unitID)
}

func (r *Reader) computeSnapshot(ctx context.Context, unitID int) (*KPISnapshot, error) {
	total, occupied, err := r.store.BedOccupancyCounts(ctx, unitID)
	if err != nil {
		return nil, simerrors.Wrap(simerrors.StorageFault, "kpi occupancy", err)
	}
	los, err := r.store.AverageLengthOfStayHours(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := r.store.RecentBedAssignments(ctx, 50)
	if err != nil {
		return nil, err
	}
	waiting, err := r.store.WaitingPatientCount(ctx)
	if err != nil {
		return nil, err
	}
	nurses, err := r.store.NurseCount(ctx, unitID)
	if err != nil {
		return nil, err
	}

	avgWait, breaches := averageWaitAndBreaches(recent)

	snap := &KPISnapshot{
		UnitID:                  unitID,
		AverageLOSHours:         round1(los),
		AverageTimeToBedMinutes: round1(avgWait),
		SLABreaches:             breaches,
		EDWaitingCount:          waiting,
		ComputedAt:              time.Now(),
	}
	if total > 0 {
		snap.OccupancyPercent = round1(float64(occupied) / float64(total) * 100)
	}
	if nurses > 0 {
		snap.NurseLoadAverage = round2(float64(occupied) / float64(nurses))
	}
	return snap, nil
}

// averageWaitAndBreaches mirrors the original implementation's fallback
// of a flat 30 minute wait when no bed-assignment data is available yet,
// rather than reporting a misleading zero.
func averageWaitAndBreaches(events []store.EventRecord) (avg float64, breaches int) {
	if len(events) == 0 {
		return 30, 0
	}
	var total float64
	for _, e := range events {
		w := waitMinutesFromData(e.Data)
		total += w
		if w > slaBreachMinutes {
			breaches++
		}
	}
	return total / float64(len(events)), breaches
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
