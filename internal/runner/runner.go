// Package runner dispatches simulation runs onto the message bus and owns
// the worker pool that actually drives internal/simulation.Engine to
// completion, translating its result into persisted rows.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wardops/simcore/internal/simerrors"
	"github.com/wardops/simcore/internal/store"
	"github.com/wardops/simcore/pkg/circuit"
	"github.com/wardops/simcore/pkg/messaging"
)

const defaultSeed = 42

// Runner owns the job queue and the worker pool draining it. One Runner is
// shared by the API process (to call StartRun/RequestCancel) and by
// whichever process runs Work (the gateway itself, or a standalone worker
// binary queue-subscribed to the same subject).
type Runner struct {
	store    *store.Store
	bus      *messaging.Client
	breakers *circuit.BreakerGroup

	runTimeout time.Duration
	queue      string

	wg sync.WaitGroup
}

// Option configures a Runner at construction.
type Option func(*Runner)

// WithRunTimeout overrides the default 300 second wall-clock bound placed
// on a single run.
func WithRunTimeout(d time.Duration) Option {
	return func(r *Runner) { r.runTimeout = d }
}

// WithQueueGroup overrides the NATS queue group name workers join, so
// multiple runner processes share the same job stream instead of each
// receiving every job.
func WithQueueGroup(name string) Option {
	return func(r *Runner) { r.queue = name }
}

func New(st *store.Store, bus *messaging.Client, opts ...Option) *Runner {
	r := &Runner{
		store: st,
		bus:   bus,
		breakers: circuit.NewBreakerGroup(circuit.Config{
			MaxFailures: 5,
			Timeout:     10 * time.Second,
			HalfOpenMax: 2,
		}),
		runTimeout: 300 * time.Second,
		queue:      "runner-workers",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartRun creates a pending run row and publishes a job for a worker to
// pick up. seed comes from the caller (the gateway passes the optional seed
// query parameter of POST /simulation/run); a non-positive seed falls back
// to the fixed default so a bare StartRun call stays reproducible.
func (r *Runner) StartRun(ctx context.Context, scenarioID uuid.UUID, seed int64) (*store.Run, error) {
	if seed <= 0 {
		seed = defaultSeed
	}

	run, err := r.store.CreateRun(ctx, scenarioID)
	if err != nil {
		return nil, err
	}

	job := messaging.SimulationRunJob{
		RunID:      run.ID,
		ScenarioID: scenarioID,
		Seed:       seed,
	}

	err = r.breakers.Execute(ctx, "bus-publish", func() error {
		return r.bus.Publish(ctx, messaging.SubjectSimulationRun, job)
	})
	if err != nil {
		// The run row exists but nobody will ever pick it up; fail it
		// immediately rather than leaving a pending run that can never
		// progress.
		_ = r.store.FailRun(ctx, run.ID, fmt.Sprintf("dispatch failed: %v", err))
		return nil, simerrors.Wrap(simerrors.TransportFault, "dispatch simulation run", err)
	}

	return run, nil
}

// RequestCancel marks a run cancelled. The worker currently executing it
// (if any) is not interrupted mid-event; its progress writes stop applying,
// and when the engine returns it finds the terminal status and discards the
// result instead of persisting events or metrics.
func (r *Runner) RequestCancel(ctx context.Context, runID uuid.UUID) error {
	return r.store.RequestCancel(ctx, runID)
}

// Wait blocks until every in-flight processRun goroutine started by Work
// has returned, or until ctx is done, whichever comes first. cmd/server
// calls this during graceful shutdown after cancelling the context Work
// was started with.
func (r *Runner) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}
