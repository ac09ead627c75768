package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/kerbside/parking-sim/sim/trace"
)

// DefaultMaxInFlightPublishes bounds concurrent stream publishes per emitter.
const DefaultMaxInFlightPublishes = 64

// StreamPublisher sends one serialized sensor record to a message stream.
type StreamPublisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// EventEmitter fans a single transition out to the console and, when
// configured, to a message stream. The console line is written before Emit
// returns; the publish runs in the background so a slow or hung stream never
// holds up the caller. It never returns an error to the caller.
type EventEmitter struct {
	mu      sync.Mutex // serializes console lines
	console io.Writer
	stream  StreamPublisher // nil disables streaming
	timeout time.Duration
	trace   *trace.SimulationTrace

	inFlight *semaphore.Weighted
	pending  sync.WaitGroup
}

// NewEventEmitter creates an EventEmitter. stream may be nil; timeout bounds
// each publish (0 = unbounded).
func NewEventEmitter(console io.Writer, stream StreamPublisher, timeout time.Duration, st *trace.SimulationTrace) *EventEmitter {
	return newEventEmitter(console, stream, timeout, st, DefaultMaxInFlightPublishes)
}

func newEventEmitter(console io.Writer, stream StreamPublisher, timeout time.Duration, st *trace.SimulationTrace, maxInFlight int64) *EventEmitter {
	return &EventEmitter{
		console:  console,
		stream:   stream,
		timeout:  timeout,
		trace:    st,
		inFlight: semaphore.NewWeighted(maxInFlight),
	}
}

// Emit writes the record as one JSON line and starts publishing the same
// payload. When the in-flight limit is reached the publish is dropped.
func (e *EventEmitter) Emit(ctx context.Context, record SensorRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		logrus.Errorf("Serializing sensor %d: %v", record.KerbsideID, err)
		return
	}

	e.mu.Lock()
	_, err = fmt.Fprintf(e.console, "%s\n", payload)
	e.mu.Unlock()
	if err != nil {
		logrus.Warnf("Writing sensor %d to console: %v", record.KerbsideID, err)
	}

	if e.stream == nil {
		return
	}
	rec := trace.PublishRecord{SensorID: record.KerbsideID, At: record.StatusTimestamp}
	if !e.inFlight.TryAcquire(1) {
		logrus.Errorf("Error sending event for sensor %d: too many publishes in flight", record.KerbsideID)
		rec.Err = "dropped: too many publishes in flight"
		e.trace.RecordPublish(rec)
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		defer e.inFlight.Release(1)
		e.publish(ctx, payload, rec)
	}()
}

func (e *EventEmitter) publish(ctx context.Context, payload []byte, rec trace.PublishRecord) {
	err := safeRun(func() error {
		pctx, cancel := withOptionalTimeout(ctx, e.timeout)
		defer cancel()
		return e.stream.Publish(pctx, payload)
	})
	if err != nil {
		logrus.Errorf("Error sending event for sensor %d: %v", rec.SensorID, err)
		rec.Err = err.Error()
	} else {
		logrus.Debugf("Published sensor %d", rec.SensorID)
	}
	e.trace.RecordPublish(rec)
}

// Drain waits for background publishes to finish or for ctx to end.
// Returns false if publishes were still running when ctx ended.
func (e *EventEmitter) Drain(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// withOptionalTimeout applies d to ctx unless d is zero or negative.
func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
