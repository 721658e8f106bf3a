package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/simulation"
	"github.com/wardops/simcore/internal/store"
	"github.com/wardops/simcore/pkg/eventqueue"
	"github.com/wardops/simcore/pkg/messaging"
)

const maxConcurrentRuns = 4

// Work subscribes to the simulation run subject as part of the runner's
// queue group, so N runner processes sharing that group split the job
// stream instead of each running every job. It returns once the
// subscription is established; cancelling ctx does not tear the
// subscription down by itself (the caller is expected to Close the bus on
// shutdown), but it does stop in-flight jobs from being marked running.
func (r *Runner) Work(ctx context.Context) error {
	sem := make(chan struct{}, maxConcurrentRuns)

	err := r.bus.QueueSubscribe(messaging.SubjectSimulationRun, r.queue, func(msg *nats.Msg) {
		var job messaging.SimulationRunJob
		if err := json.Unmarshal(msg.Data, &job); err != nil {
			log.Printf("runner: malformed job payload: %v", err)
			return
		}

		sem <- struct{}{}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					log.Printf("runner: recovered panic processing run %s: %v", job.RunID, p)
					_ = r.store.FailRun(context.Background(), job.RunID, fmt.Sprintf("engine panic: %v", p))
				}
			}()
			r.processRun(ctx, job)
		}()
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", messaging.SubjectSimulationRun, err)
	}
	return nil
}

// processRun loads the run and scenario, drives the engine, and persists
// the outcome. A run that exceeds runTimeout is marked failed with a
// timeout detail; the engine goroutine itself is not interrupted
// mid-event, since internal/simulation.Engine.Run is synchronous and
// offers no cancellation hook, so it is left to finish in the background
// and its result is simply discarded.
func (r *Runner) processRun(parent context.Context, job messaging.SimulationRunJob) {
	ctx, cancel := context.WithTimeout(parent, r.runTimeout)
	defer cancel()

	run, scenario, err := r.loadRunAndScenario(ctx, job.RunID, job.ScenarioID)
	if err != nil {
		_ = r.store.FailRun(context.Background(), job.RunID, err.Error())
		return
	}

	if err := r.breakers.Execute(ctx, "storage", func() error { return r.store.MarkRunning(ctx, run.ID) }); err != nil {
		log.Printf("runner: run %s could not transition to running: %v", run.ID, err)
		return
	}

	params, err := store.UnmarshalParameters(scenario.Parameters)
	if err != nil {
		_ = r.store.FailRun(context.Background(), run.ID, fmt.Sprintf("decode scenario parameters: %v", err))
		return
	}

	type outcome struct {
		result simulation.Result
		sink   *runSink
		err    error
	}
	done := make(chan outcome, 1)
	progress := make(chan int, 8)

	go func() {
		defer close(progress)
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: simerrors.New(simerrors.EngineFault, fmt.Sprintf("engine panic: %v", p))}
			}
		}()

		sink := newRunSink(job.ScenarioID)
		engine, buildErr := simulation.NewEngine(params, job.Seed, func(pct int) {
			select {
			case progress <- pct:
			default:
			}
		})
		if buildErr != nil {
			done <- outcome{err: simerrors.Wrap(simerrors.EngineFault, "build engine", buildErr)}
			return
		}
		engine.EventSink = sink.record

		result, runErr := engine.Run()
		if runErr != nil {
			done <- outcome{err: simerrors.Wrap(simerrors.EngineFault, "run simulation", runErr)}
			return
		}
		done <- outcome{result: result, sink: sink}
	}()

	go r.drainProgress(run.ID, progress)

	select {
	case <-ctx.Done():
		_ = r.store.FailRun(context.Background(), run.ID, "run exceeded its time budget")
	case out := <-done:
		if out.err != nil {
			_ = r.store.FailRun(context.Background(), run.ID, out.err.Error())
			return
		}
		r.finishRun(context.Background(), run.ID, out.result, out.sink, run.StartedAt)
	}
}

// drainProgress persists each percent-complete tick as it arrives. Writes
// are best-effort: UpdateProgress only applies while the run is still
// running, so a tick that loses the race with completion or failure is
// silently dropped.
func (r *Runner) drainProgress(runID uuid.UUID, progress <-chan int) {
	ctx := context.Background()
	for pct := range progress {
		pct := pct
		_ = r.breakers.Execute(ctx, "storage", func() error {
			return r.store.UpdateProgress(ctx, runID, pct)
		})
	}
}

func (r *Runner) finishRun(ctx context.Context, runID uuid.UUID, result simulation.Result, sink *runSink, startedAt *time.Time) {
	if current, err := r.store.GetRun(ctx, runID); err == nil && current.Status != store.RunRunning {
		log.Printf("runner: run %s is %s; discarding its result", runID, current.Status)
		return
	}

	anchor := time.Now()
	if startedAt != nil {
		anchor = *startedAt
	}
	records := sink.buildEvents(anchor)

	if err := r.store.AppendEvents(ctx, records); err != nil {
		log.Printf("runner: persist events for run %s failed: %v", runID, err)
	}

	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		_ = r.store.FailRun(ctx, runID, fmt.Sprintf("encode metrics: %v", err))
		return
	}
	timeseries, err := json.Marshal(result.TimeSeries)
	if err != nil {
		_ = r.store.FailRun(ctx, runID, fmt.Sprintf("encode timeseries: %v", err))
		return
	}
	bottlenecks, err := json.Marshal(result.Bottlenecks)
	if err != nil {
		_ = r.store.FailRun(ctx, runID, fmt.Sprintf("encode bottlenecks: %v", err))
		return
	}

	if err := r.breakers.Execute(ctx, "storage", func() error {
		return r.store.CompleteRun(ctx, runID, metrics, timeseries, bottlenecks)
	}); err != nil {
		log.Printf("runner: complete run %s failed: %v", runID, err)
		return
	}

	status := messaging.RunStatusEvent{RunID: runID, Status: string(store.RunCompleted), Progress: 100}
	_ = r.bus.Publish(ctx, messaging.SubjectSimulationRun+".status", status)
}

// loadRunAndScenario fetches both the run and its scenario; either being
// missing is a hard failure for the job, since there is nothing left to
// simulate.
func (r *Runner) loadRunAndScenario(ctx context.Context, runID, scenarioID uuid.UUID) (*store.Run, *store.Scenario, error) {
	var run *store.Run
	if err := r.breakers.Execute(ctx, "storage", func() error {
		var e error
		run, e = r.store.GetRun(ctx, runID)
		return e
	}); err != nil {
		return nil, nil, err
	}

	var scenario *store.Scenario
	if err := r.breakers.Execute(ctx, "storage", func() error {
		var e error
		scenario, e = r.store.GetScenario(ctx, scenarioID)
		return e
	}); err != nil {
		return nil, nil, err
	}

	return run, scenario, nil
}

// runSink accumulates events emitted during a single run, tagging each
// with the owning scenario so the read API can scope a trace to one run's
// data even when multiple scenarios share a unit. virtualMinutes holds
// each event's simulated-clock offset in lockstep with events, since
// store.EventRecord itself carries only the resolved wall-clock
// Timestamp, not the virtual offset it was derived from.
type runSink struct {
	scenarioID     uuid.UUID
	events         []store.EventRecord
	virtualMinutes []float64
}

func newRunSink(scenarioID uuid.UUID) *runSink {
	return &runSink{scenarioID: scenarioID}
}

func (s *runSink) record(virtualMinute float64, kind eventqueue.Kind, patientID, bedID, nurseID int, data map[string]interface{}) {
	rec := store.EventRecord{EventType: string(kind), ScenarioID: &s.scenarioID}
	if patientID > 0 {
		pid := patientID
		rec.PatientID = &pid
	}
	if bedID > 0 {
		bid := bedID
		rec.BedID = &bid
	}
	if nurseID > 0 {
		nid := nurseID
		rec.NurseID = &nid
	}
	if len(data) > 0 {
		raw, _ := json.Marshal(data)
		rec.Data = raw
	}
	s.events = append(s.events, rec)
	s.virtualMinutes = append(s.virtualMinutes, virtualMinute)
}

// buildEvents stamps each recorded event with the wall-clock timestamp its
// virtual-clock offset maps to: anchor plus the simulated minutes elapsed
// since the run started, not emission order. Two events the engine fired
// at the same virtual minute persist with the same timestamp.
func (s *runSink) buildEvents(anchor time.Time) []store.EventRecord {
	out := make([]store.EventRecord, len(s.events))
	for i, e := range s.events {
		e.Timestamp = anchor.Add(time.Duration(s.virtualMinutes[i] * float64(time.Minute)))
		out[i] = e
	}
	return out
}
