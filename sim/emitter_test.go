package sim

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbside/parking-sim/sim/internal/testutil"
	"github.com/kerbside/parking-sim/sim/trace"
)

func testRecord(id int) SensorRecord {
	zone := 7000 + id
	return SensorRecord{
		KerbsideID:        id,
		Location:          Location{Lat: -37.81, Lon: 144.96},
		ZoneNumber:        &zone,
		LastUpdated:       epoch,
		StatusTimestamp:   epoch,
		StatusDescription: StatusPresent,
	}
}

func TestEventEmitter_Emit_WritesOneJSONLine(t *testing.T) {
	// GIVEN an emitter with streaming disabled
	console := &testutil.RecordingWriter{}
	e := NewEventEmitter(console, nil, 0, nil)

	// WHEN a record is emitted
	e.Emit(context.Background(), testRecord(4101))

	// THEN the console holds exactly that record as a single line
	lines := console.Lines()
	require.Len(t, lines, 1)
	var got SensorRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, 4101, got.KerbsideID)
	assert.Equal(t, StatusPresent, got.StatusDescription)
}

func TestEventEmitter_Emit_PublishesSamePayload(t *testing.T) {
	console := &testutil.RecordingWriter{}
	stream := &fakeStream{}
	e := NewEventEmitter(console, stream, time.Second, nil)

	e.Emit(context.Background(), testRecord(1))
	drain(t, e)

	payloads := stream.Payloads()
	require.Len(t, payloads, 1)
	assert.Equal(t, console.Lines()[0], string(payloads[0]))
}

func TestEventEmitter_PublishFailure_IsAbsorbed(t *testing.T) {
	// GIVEN a stream that always fails
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelTransitions})
	console := &testutil.RecordingWriter{}
	e := NewEventEmitter(console, &fakeStream{err: errors.New("unauthorized")}, time.Second, st)

	// WHEN two records are emitted
	e.Emit(context.Background(), testRecord(1))
	e.Emit(context.Background(), testRecord(2))
	drain(t, e)

	// THEN the console still got both and the failures were recorded
	assert.Len(t, console.Lines(), 2)
	assert.Equal(t, 2, st.Counters().PublishFailures)
	assert.Equal(t, "unauthorized", st.Publishes()[0].Err)
}

func TestEventEmitter_PublishPanic_IsRecovered(t *testing.T) {
	console := &testutil.RecordingWriter{}
	e := NewEventEmitter(console, &fakeStream{panicMsg: "nil client"}, time.Second, nil)

	assert.NotPanics(t, func() { e.Emit(context.Background(), testRecord(1)) })
	drain(t, e)
	assert.Len(t, console.Lines(), 1)
}

func TestEventEmitter_BlockingPublish_IsBoundedByTimeout(t *testing.T) {
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelCounts})
	e := NewEventEmitter(&testutil.RecordingWriter{}, &fakeStream{block: true}, 20*time.Millisecond, st)

	e.Emit(context.Background(), testRecord(1))
	drain(t, e)

	assert.Equal(t, 1, st.Counters().PublishFailures)
}

func TestEventEmitter_HungUnboundedPublish_DoesNotBlockCaller(t *testing.T) {
	// GIVEN a stream that never answers and no publish timeout
	console := &testutil.RecordingWriter{}
	e := NewEventEmitter(console, &fakeStream{block: true}, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	// WHEN several records are emitted
	start := time.Now()
	for id := 1; id <= 5; id++ {
		e.Emit(ctx, testRecord(id))
	}

	// THEN Emit returned at once with the console lines written
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Len(t, console.Lines(), 5)
	shortCtx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.False(t, e.Drain(shortCtx), "publishes should still be pending")

	// AND cancelling the run context releases them
	cancel()
	drain(t, e)
}

func TestEventEmitter_InFlightLimit_DropsExcessPublishes(t *testing.T) {
	// GIVEN an emitter allowing two concurrent publishes to a hung stream
	st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelCounts})
	e := newEventEmitter(&testutil.RecordingWriter{}, &fakeStream{block: true}, 0, st, 2)
	ctx, cancel := context.WithCancel(context.Background())

	// WHEN three records are emitted
	for id := 1; id <= 3; id++ {
		e.Emit(ctx, testRecord(id))
	}

	// THEN the third is dropped immediately and the other two fail on cancel
	assert.Equal(t, 1, st.Counters().PublishFailures)
	cancel()
	drain(t, e)
	assert.Equal(t, 3, st.Counters().Publishes)
	assert.Equal(t, 3, st.Counters().PublishFailures)
}

func TestEventEmitter_ConcurrentEmits_ProduceWholeLines(t *testing.T) {
	console := &testutil.RecordingWriter{}
	e := NewEventEmitter(console, nil, 0, nil)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.Emit(context.Background(), testRecord(id))
		}(i)
	}
	wg.Wait()

	lines := console.Lines()
	require.Len(t, lines, 50)
	for _, line := range lines {
		var rec SensorRecord
		assert.NoError(t, json.Unmarshal([]byte(line), &rec), line)
	}
}

// drain waits for the emitter's background publishes.
func drain(t *testing.T, e *EventEmitter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.True(t, e.Drain(ctx), "publishes did not finish")
}
