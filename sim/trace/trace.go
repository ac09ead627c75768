package trace

import "sync"

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelCounts keeps running totals only.
	TraceLevelCounts TraceLevel = "counts"
	// TraceLevelTransitions additionally keeps every transition, snapshot and publish record.
	TraceLevelTransitions TraceLevel = "transitions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:        true,
	TraceLevelCounts:      true,
	TraceLevelTransitions: true,
	"":                    true, // empty defaults to counts
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// DefaultMaxRecords is the per-kind record cap used when TraceConfig.MaxRecords is 0.
const DefaultMaxRecords = 10000

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// MaxRecords caps each kept record slice; older records are discarded
	// first. Counters are never capped. 0 means DefaultMaxRecords.
	MaxRecords int
}

// Counters are the running totals kept at every level except none.
type Counters struct {
	Arrivals         int
	Vacancies        int
	NoSpaceTicks     int
	Snapshots        int
	SnapshotFailures int
	UploadFailures   int
	Publishes        int
	PublishFailures  int
}

// SimulationTrace collects records from the arrival loop, vacancy timers and
// snapshot tick. Safe for concurrent use; every method is a no-op on a nil trace.
// Kept records are capped (TraceConfig.MaxRecords) so a long run stays bounded.
type SimulationTrace struct {
	config TraceConfig

	mu          sync.Mutex
	counters    Counters
	transitions []TransitionRecord
	snapshots   []SnapshotRecord
	publishes   []PublishRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
// Returns nil for TraceLevelNone.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	if config.Level == TraceLevelNone {
		return nil
	}
	if config.Level == "" {
		config.Level = TraceLevelCounts
	}
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultMaxRecords
	}
	return &SimulationTrace{config: config}
}

// Config returns the configuration the trace was created with.
func (st *SimulationTrace) Config() TraceConfig {
	if st == nil {
		return TraceConfig{Level: TraceLevelNone}
	}
	return st.config
}

func (st *SimulationTrace) keepRecords() bool {
	return st.config.Level == TraceLevelTransitions
}

// RecordTransition counts an arrival or vacancy and keeps the record when enabled.
func (st *SimulationTrace) RecordTransition(record TransitionRecord) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	switch record.Cause {
	case CauseArrival:
		st.counters.Arrivals++
	case CauseVacancy:
		st.counters.Vacancies++
	}
	if st.keepRecords() {
		st.transitions = keepLast(append(st.transitions, record), st.config.MaxRecords)
	}
}

// RecordNoSpace counts an arrival tick that found every sensor occupied.
func (st *SimulationTrace) RecordNoSpace() {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.counters.NoSpaceTicks++
}

// RecordSnapshot counts a snapshot attempt.
func (st *SimulationTrace) RecordSnapshot(record SnapshotRecord) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	switch {
	case record.Name == "":
		st.counters.SnapshotFailures++
	case record.Err != "":
		st.counters.Snapshots++
		st.counters.UploadFailures++
	default:
		st.counters.Snapshots++
	}
	if st.keepRecords() {
		st.snapshots = keepLast(append(st.snapshots, record), st.config.MaxRecords)
	}
}

// RecordPublish counts a stream publish attempt.
func (st *SimulationTrace) RecordPublish(record PublishRecord) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.counters.Publishes++
	if record.Err != "" {
		st.counters.PublishFailures++
	}
	if st.keepRecords() {
		st.publishes = keepLast(append(st.publishes, record), st.config.MaxRecords)
	}
}

// keepLast trims records to the newest limit entries. The backing array is
// compacted once it holds twice the limit, so memory stays bounded.
func keepLast[T any](records []T, limit int) []T {
	if len(records) <= limit {
		return records
	}
	if cap(records) >= 2*limit {
		return append(make([]T, 0, limit+1), records[len(records)-limit:]...)
	}
	return records[len(records)-limit:]
}

// Counters returns a copy of the running totals.
func (st *SimulationTrace) Counters() Counters {
	if st == nil {
		return Counters{}
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.counters
}

// Transitions returns a copy of the kept transition records in recording order.
func (st *SimulationTrace) Transitions() []TransitionRecord {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]TransitionRecord(nil), st.transitions...)
}

// Snapshots returns a copy of the kept snapshot records.
func (st *SimulationTrace) Snapshots() []SnapshotRecord {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]SnapshotRecord(nil), st.snapshots...)
}

// Publishes returns a copy of the kept publish records.
func (st *SimulationTrace) Publishes() []PublishRecord {
	if st == nil {
		return nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]PublishRecord(nil), st.publishes...)
}
