// Package simulation implements the discrete-event simulation core: a
// seeded random source, a min-heap event queue, typed resource pools for
// beds/nurses/imaging/transport/consult, and the engine that drives them
// through a 24-hour horizon. The engine is single-threaded and cooperative
// over its own virtual clock — one event handler always runs to completion
// before the next is popped — which is what makes a (scenario, seed) pair
// reproduce byte-identical results.
package simulation

import (
	"fmt"

	"github.com/wardops/simcore/pkg/eventqueue"
)

const (
	horizonMinutes = 1440.0
	sampleInterval = 15.0
	defaultNurseMaxPatients = 4
)

const (
	kindArrival       eventqueue.Kind = "arrival"
	kindTriageEnd     eventqueue.Kind = "triage_end"
	kindImagingReq    eventqueue.Kind = "imaging_request"
	kindImagingEnd    eventqueue.Kind = "imaging_end"
	kindConsultReq    eventqueue.Kind = "consult_request"
	kindConsultEnd    eventqueue.Kind = "consult_end"
	kindDischarge     eventqueue.Kind = "discharge"
	kindCleaningEnd   eventqueue.Kind = "cleaning_end"
	kindSample        eventqueue.Kind = "sample"
)

// arrivalDraft holds the attributes drawn for one pre-generated arrival,
// before a Patient record exists for it.
type arrivalDraft struct {
	time              float64
	acuity            Acuity
	requiresImaging   bool
	requiresConsult   bool
	requiresIsolation bool
}

// ProgressFunc is invoked with the integer percent of the horizon completed
// (0-100). It is called synchronously from the engine's loop, so
// implementations must return quickly — see internal/runner for how the
// job runner keeps this near-instant by handing the value to a buffered
// channel instead of persisting inline.
type ProgressFunc func(pct int)

// Engine owns one run's entities and queue for its entire lifetime.
// External code never reaches into engine-internal state; a Run only
// returns the final Result bundle.
type Engine struct {
	params Parameters
	rand   *Random
	queue  *eventqueue.Queue

	beds      *BedPool
	nurses    *NursePool
	imaging   *SlotPool
	transport *SlotPool
	consult   *SlotPool

	patients      map[int]*Patient
	nextPatientID int

	now             float64
	lastProgressPct int
	progress        ProgressFunc

	series      []TimeSeriesPoint
	bottlenecks []BottleneckRecord
	outcomes    []PatientOutcome

	// EventSink, if set, receives a copy of every dispatched event in the
	// shape the persistence layer and replay streamer expect, tagged with
	// the virtual-clock minute it fired at. It is how the job runner turns
	// a run into a durable, replayable event log anchored to real
	// simulated time rather than emission order.
	EventSink func(virtualMinute float64, kind eventqueue.Kind, patientID int, bedID int, nurseID int, data map[string]interface{})
}

// NewEngine validates params and builds an engine ready to Run.
func NewEngine(params Parameters, seed int64, progress ProgressFunc) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario parameters: %w", err)
	}
	e := &Engine{
		params:    params,
		rand:      NewRandom(seed),
		queue:     eventqueue.New(),
		beds:      NewBedPool(params.BedsAvailable),
		nurses:    NewNursePool(params.NurseCount.Day, defaultNurseMaxPatients),
		imaging:   NewSlotPool(params.imagingSlots()),
		transport: NewSlotPool(params.transportSlots()),
		consult:   NewSlotPool(params.consultSlots()),
		patients:  make(map[int]*Patient),
		progress:  progress,
	}
	return e, nil
}

// Run drains the event queue to completion and returns the aggregated
// result. It is the engine's only public entry point besides NewEngine.
func (e *Engine) Run() (Result, error) {
	e.scheduleSamples()
	e.generateArrivals()

	for {
		ev, ok := e.queue.Next()
		if !ok {
			break
		}
		e.now = ev.Time
		e.dispatch(ev)
		e.reportProgress()
	}

	return aggregate(e.outcomes, e.series, e.bottlenecks), nil
}

// scheduleSamples schedules one metrics-sampling event every 15 virtual
// minutes across the whole horizon, independent of any other event. This
// is what guarantees the sampled time series' strictly-increasing,
// fixed-step property regardless of how sparse or bursty the rest of the
// event stream is.
func (e *Engine) scheduleSamples() {
	for t := 0.0; t <= horizonMinutes; t += sampleInterval {
		e.queue.Schedule(t, kindSample, 0, nil)
	}
}

func (e *Engine) dispatch(ev *eventqueue.Event) {
	switch ev.Kind {
	case kindArrival:
		e.handleArrival(ev.Payload.(arrivalDraft))
	case kindTriageEnd:
		e.handleTriageEnd(e.patients[ev.EntityID])
	case kindImagingReq:
		e.handleImagingRequest(e.patients[ev.EntityID])
	case kindImagingEnd:
		e.handleImagingEnd(e.patients[ev.EntityID])
	case kindConsultReq:
		e.handleConsultRequest(e.patients[ev.EntityID])
	case kindConsultEnd:
		e.handleConsultEnd(e.patients[ev.EntityID])
	case kindDischarge:
		e.handleDischarge(e.patients[ev.EntityID])
	case kindCleaningEnd:
		e.handleCleaningEnd(ev.EntityID)
	case kindSample:
		e.sample()
	}
}

// generateArrivals pre-draws every arrival for [0, 24h) up front, per the
// engine's initialization contract: inter-arrival times are exponential,
// and each arrival's acuity/imaging/consult/isolation attributes are drawn
// at generation time, not at dispatch time.
func (e *Engine) generateArrivals() {
	meanInterArrival := 60.0 / e.params.arrivalRatePerHour()
	labels, weights := e.params.AcuityMix.labelsAndWeights()

	t := 0.0
	for {
		t += e.rand.Exp(meanInterArrival)
		if t >= horizonMinutes {
			break
		}
		acuity := Choice(e.rand, labels, weights)
		draft := arrivalDraft{
			time:              t,
			acuity:            acuity,
			requiresImaging:   e.rand.Bernoulli(0.4),
			requiresConsult:   e.rand.Bernoulli(0.25),
			requiresIsolation: e.rand.Bernoulli(isolationProbability(acuity)),
		}
		e.queue.Schedule(t, kindArrival, 0, draft)
	}
}

func (e *Engine) handleArrival(draft arrivalDraft) {
	e.nextPatientID++
	p := &Patient{
		ID:                e.nextPatientID,
		Acuity:            draft.acuity,
		ArrivalTime:       draft.time,
		RequiresImaging:   draft.requiresImaging,
		RequiresConsult:   draft.requiresConsult,
		RequiresIsolation: draft.requiresIsolation,
	}
	e.patients[p.ID] = p
	e.emit(kindArrival, p.ID, 0, 0, map[string]interface{}{
		"acuity":             string(p.Acuity),
		"requires_imaging":   p.RequiresImaging,
		"requires_consult":   p.RequiresConsult,
		"requires_isolation": p.RequiresIsolation,
	})

	triageEnd := e.now + float64(e.rand.IntRange(5, 15))
	e.queue.Schedule(triageEnd, kindTriageEnd, p.ID, nil)
}

func (e *Engine) handleTriageEnd(p *Patient) {
	setOnce(&p.TriageEnd, e.now)
	e.emit("triage", p.ID, 0, 0, nil)

	if bedID, ok := e.beds.FindAvailable(e.now, p.RequiresIsolation); ok {
		e.admit(p, bedID, e.now)
	} else {
		e.beds.Enqueue(p.ID)
		e.logBottleneck(ConstraintBedAvailability, p.ID, e.beds.WaitLen())
	}

	if p.RequiresConsult {
		consultAt := e.now + float64(e.rand.IntRange(10, 30))
		e.queue.Schedule(consultAt, kindConsultReq, p.ID, nil)
	}
}

// admit runs the admission sequence: occupy the bed, assign a nurse,
// schedule imaging if required, and schedule the eventual discharge. It is
// invoked synchronously both from handleTriageEnd (immediate bed match)
// and from handleCleaningEnd (a bed freed up for the head of the wait
// FIFO), always at the current virtual time.
func (e *Engine) admit(p *Patient, bedID int, t float64) {
	e.beds.Occupy(bedID, p.ID)
	p.BedID = bedID
	setOnce(&p.BedAssigned, t)
	e.emit("bed_assignment", p.ID, bedID, 0, map[string]interface{}{
		"wait_minutes": t - p.ArrivalTime,
	})

	if nurseID, ok := e.nurses.Assign(p.ID); ok {
		p.NurseID = nurseID
		e.emit("nurse_assignment", p.ID, bedID, nurseID, nil)
	} else {
		e.logBottleneckNoQueue(ConstraintNurseStaffing, p.ID)
	}

	if p.RequiresImaging {
		imagingAt := t + float64(e.rand.IntRange(15, 45))
		e.queue.Schedule(imagingAt, kindImagingReq, p.ID, nil)
	}

	los := lengthOfStay(e.rand, p.Acuity)
	dischargeAt := t + los
	if dischargeAt < horizonMinutes {
		e.queue.Schedule(dischargeAt, kindDischarge, p.ID, nil)
	}
}

func (e *Engine) handleImagingRequest(p *Patient) {
	e.emit(kindImagingReq, p.ID, p.BedID, 0, nil)
	if e.imaging.Acquire() {
		setOnce(&p.ImagingStart, e.now)
		e.scheduleImagingEnd(p)
	} else {
		e.imaging.Enqueue(p.ID)
		e.logBottleneck(ConstraintImagingCapacity, p.ID, e.imaging.QueueLen())
	}
}

func (e *Engine) scheduleImagingEnd(p *Patient) {
	e.emit("imaging_start", p.ID, p.BedID, 0, nil)
	endAt := e.now + float64(e.rand.IntRange(20, 60))
	e.queue.Schedule(endAt, kindImagingEnd, p.ID, nil)
}

func (e *Engine) handleImagingEnd(p *Patient) {
	setOnce(&p.ImagingEnd, e.now)
	e.emit(kindImagingEnd, p.ID, p.BedID, 0, nil)

	if nextID, ok := e.imaging.Release(); ok {
		next := e.patients[nextID]
		setOnce(&next.ImagingStart, e.now)
		e.emit("imaging_start", next.ID, next.BedID, 0, nil)
		endAt := e.now + float64(e.rand.IntRange(20, 60))
		e.queue.Schedule(endAt, kindImagingEnd, next.ID, nil)
	}
}

func (e *Engine) handleConsultRequest(p *Patient) {
	e.emit(kindConsultReq, p.ID, p.BedID, 0, nil)
	if e.consult.Acquire() {
		e.beginConsult(p)
	} else {
		e.consult.Enqueue(p.ID)
		e.logBottleneck(ConstraintConsultCapacity, p.ID, e.consult.QueueLen())
	}
}

func (e *Engine) beginConsult(p *Patient) {
	setOnce(&p.ConsultStart, e.now)
	e.emit("consult_start", p.ID, p.BedID, 0, nil)
	endAt := e.now + float64(e.rand.IntRange(15, 45))
	e.queue.Schedule(endAt, kindConsultEnd, p.ID, nil)
}

func (e *Engine) handleConsultEnd(p *Patient) {
	setOnce(&p.ConsultEnd, e.now)
	e.emit(kindConsultEnd, p.ID, p.BedID, 0, nil)

	if nextID, ok := e.consult.Release(); ok {
		next := e.patients[nextID]
		setOnce(&next.ConsultStart, e.now)
		e.emit("consult_start", next.ID, next.BedID, 0, nil)
		endAt := e.now + float64(e.rand.IntRange(15, 45))
		e.queue.Schedule(endAt, kindConsultEnd, next.ID, nil)
	}
}

func (e *Engine) handleDischarge(p *Patient) {
	if p.NurseID != 0 {
		e.nurses.Release(p.NurseID, p.ID)
	}
	setOnce(&p.Discharge, e.now)
	e.emit(kindDischarge, p.ID, p.BedID, 0, nil)

	bedID := p.BedID
	cleaningEnd := e.now + float64(e.rand.IntRange(15, 30))
	e.beds.StartCleaning(bedID, cleaningEnd)
	e.emit("cleaning_start", p.ID, bedID, 0, nil)
	e.queue.Schedule(cleaningEnd, kindCleaningEnd, bedID, nil)

	outcome := PatientOutcome{
		PatientID:  p.ID,
		WaitTime:   *p.BedAssigned - p.ArrivalTime,
		LOS:        *p.Discharge - p.ArrivalTime,
		Discharged: true,
	}
	if p.ImagingStart != nil && p.BedAssigned != nil {
		delay := *p.ImagingStart - *p.BedAssigned
		outcome.ImagingDelay = &delay
	}
	e.outcomes = append(e.outcomes, outcome)
}

func (e *Engine) handleCleaningEnd(bedID int) {
	e.beds.FinishCleaning(bedID, e.now)
	e.emit(kindCleaningEnd, 0, bedID, 0, nil)

	if nextID, ok := e.beds.Dequeue(); ok {
		e.admit(e.patients[nextID], bedID, e.now)
	}
}

func (e *Engine) logBottleneck(c Constraint, patientID, queueLen int) {
	q := queueLen
	e.bottlenecks = append(e.bottlenecks, BottleneckRecord{
		Time:        e.now,
		Constraint:  c,
		PatientID:   patientID,
		QueueLength: &q,
		Description: bottleneckDescriptions[c],
	})
}

func (e *Engine) logBottleneckNoQueue(c Constraint, patientID int) {
	e.bottlenecks = append(e.bottlenecks, BottleneckRecord{
		Time:        e.now,
		Constraint:  c,
		PatientID:   patientID,
		Description: bottleneckDescriptions[c],
	})
}

func (e *Engine) sample() {
	occupied, total := e.beds.Occupancy()
	var occPct float64
	if total > 0 {
		occPct = 100 * float64(occupied) / float64(total)
	}
	e.series = append(e.series, TimeSeriesPoint{
		Time:         e.now,
		Occupancy:    occPct,
		BedQueue:     e.beds.WaitLen(),
		ImagingQueue: e.imaging.QueueLen(),
		ConsultQueue: e.consult.QueueLen(),
		NurseLoad:    e.nurses.MeanLoad(),
	})
}

func (e *Engine) reportProgress() {
	if e.progress == nil {
		return
	}
	pct := int(100 * e.now / horizonMinutes)
	if pct > 100 {
		pct = 100
	}
	if pct > e.lastProgressPct {
		e.lastProgressPct = pct
		e.progress(pct)
	}
}

func (e *Engine) emit(kind eventqueue.Kind, patientID, bedID, nurseID int, data map[string]interface{}) {
	if e.EventSink == nil {
		return
	}
	e.EventSink(e.now, kind, patientID, bedID, nurseID, data)
}

// lengthOfStay draws a length-of-stay in minutes from the acuity-keyed
// integer-range table.
func lengthOfStay(r *Random, a Acuity) float64 {
	switch a {
	case AcuityLow:
		return float64(r.IntRange(120, 360))
	case AcuityMedium:
		return float64(r.IntRange(240, 720))
	case AcuityHigh:
		return float64(r.IntRange(480, 1440))
	case AcuityCritical:
		return float64(r.IntRange(720, 2880))
	default:
		return float64(r.IntRange(120, 360))
	}
}
