package sim

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kerbside/parking-sim/sim/trace"
)

// Engine wires the Registry, the arrival loop and the snapshot tick into one run.
type Engine struct {
	registry   *Registry
	arrivals   *ArrivalScheduler
	snapshots  *SnapshotPublisher
	startupRNG *rand.Rand
	trace      *trace.SimulationTrace

	// RandomizeOnStartup assigns every sensor a 50/50 initial status.
	RandomizeOnStartup bool
}

// NewEngine creates an Engine over already constructed components.
func NewEngine(registry *Registry, arrivals *ArrivalScheduler, snapshots *SnapshotPublisher, rng *PartitionedRNG, st *trace.SimulationTrace) *Engine {
	return &Engine{
		registry:           registry,
		arrivals:           arrivals,
		snapshots:          snapshots,
		startupRNG:         rng.ForSubsystem(SubsystemStartup),
		trace:              st,
		RandomizeOnStartup: true,
	}
}

// Registry returns the engine's sensor registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Trace returns the engine's trace (nil when tracing is off).
func (e *Engine) Trace() *trace.SimulationTrace { return e.trace }

// Run prepares the initial state, writes one snapshot, then runs the arrival
// loop and the snapshot tick concurrently until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	present := e.prepare(ctx)
	logrus.Infof("Starting simulation with %d sensors (%d present)", e.registry.Len(), present)

	e.snapshots.PublishOnce(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.snapshots.Run(gctx) })
	g.Go(func() error { return e.arrivals.Run(gctx) })
	return g.Wait()
}

// prepare applies the startup status and arms a vacancy for every sensor
// that starts Present, so no car is parked forever.
func (e *Engine) prepare(ctx context.Context) int {
	var present []int
	if e.RandomizeOnStartup {
		present = e.registry.Randomize(e.startupRNG, time.Now())
	} else {
		for _, s := range e.registry.Snapshot() {
			if s.StatusDescription == StatusPresent {
				present = append(present, s.KerbsideID)
			}
		}
	}
	for _, id := range present {
		e.arrivals.ScheduleVacancy(ctx, id)
	}
	return len(present)
}
