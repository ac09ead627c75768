package sim

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbside/parking-sim/sim/internal/testutil"
	"github.com/kerbside/parking-sim/sim/trace"
)

type engineFixture struct {
	engine   *Engine
	registry *Registry
	arrivals *ArrivalScheduler
	store    *memStore
	emitter  *recordingEmitter
}

func newEngineFixture(t *testing.T, timing TimingConfig) engineFixture {
	t.Helper()
	sensors, err := DecodeSensors(bytes.NewReader(testutil.LoadSensorFixture(t)), epoch)
	require.NoError(t, err)
	r, err := NewRegistry(sensors)
	require.NoError(t, err)

	rng := NewPartitionedRNG(NewSimulationKey(7))
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelTransitions})
	em := &recordingEmitter{}
	store := newMemStore()
	arrivals := NewArrivalScheduler(r, em, timing, rng, st)
	snapshots := NewSnapshotPublisher(r, store, nil, NewSnapshotConfig(true, false, "parking_sensor", 0), timing, st)
	t.Cleanup(func() { arrivals.Abandon() })
	return engineFixture{
		engine:   NewEngine(r, arrivals, snapshots, rng, st),
		registry: r,
		arrivals: arrivals,
		store:    store,
		emitter:  em,
	}
}

func TestEngine_Prepare_KeepsFileStatusAndSchedulesPresent(t *testing.T) {
	// GIVEN the fixture where only 4102 starts Present and randomization is off
	f := newEngineFixture(t, msTiming(5, 10000, 20000, 1000))
	f.engine.RandomizeOnStartup = false

	// WHEN the engine prepares its initial state
	n := f.engine.prepare(context.Background())

	// THEN 4102 is the single sensor with a pending vacancy
	assert.Equal(t, 1, n)
	pending := f.arrivals.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, 4102, pending[0].SensorID)
}

func TestEngine_Prepare_RandomizeSchedulesEveryPresentSensor(t *testing.T) {
	f := newEngineFixture(t, msTiming(5, 10000, 20000, 1000))

	n := f.engine.prepare(context.Background())

	assert.Equal(t, 4-len(f.registry.Available()), n)
	assert.Len(t, f.arrivals.Pending(), n)
}

func TestEngine_Run_WritesInitialSnapshotAndStopsOnCancel(t *testing.T) {
	// GIVEN a long snapshot interval so only the initial snapshot can appear
	f := newEngineFixture(t, msTiming(5, 2, 6, 100000))

	// WHEN the engine runs briefly
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := f.engine.Run(ctx)

	// THEN the initial snapshot was written before any tick and the run ended cleanly
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.Writes())
	assert.NotEmpty(t, f.emitter.Records())
	assert.Empty(t, f.arrivals.Pending())
	summary := trace.Summarize(f.engine.Trace())
	assert.Equal(t, 1, summary.Snapshots)
	assert.Greater(t, summary.Arrivals, 0)
}
