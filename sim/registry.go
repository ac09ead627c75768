package sim

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

var (
	// ErrUnknownSensor is returned when a transition names a sensor id that is not registered.
	ErrUnknownSensor = errors.New("unknown sensor")
	// ErrDuplicateSensor is returned when the initial sensor set repeats an id.
	ErrDuplicateSensor = errors.New("duplicate sensor id")
)

// Registry owns the fleet of sensors for the lifetime of the process.
// Membership is fixed at construction; only status and timestamps change.
//
// Thread-safety: all methods are safe for concurrent use. Every read and
// every transition is serialized through a single mutex, so a Snapshot never
// observes a half-applied transition.
type Registry struct {
	mu      sync.Mutex
	sensors []SensorRecord
	index   map[int]int // kerbside id → position in sensors
}

// NewRegistry builds a Registry from the initial sensor definitions.
// Ordering of records is preserved in snapshots.
func NewRegistry(records []SensorRecord) (*Registry, error) {
	r := &Registry{
		sensors: make([]SensorRecord, 0, len(records)),
		index:   make(map[int]int, len(records)),
	}
	for _, rec := range records {
		if _, exists := r.index[rec.KerbsideID]; exists {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateSensor, rec.KerbsideID)
		}
		r.index[rec.KerbsideID] = len(r.sensors)
		r.sensors = append(r.sensors, rec.Clone())
	}
	return r, nil
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sensors)
}

// Get returns a copy of the sensor with the given id.
func (r *Registry) Get(id int) (SensorRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return SensorRecord{}, false
	}
	return r.sensors[pos].Clone(), true
}

// Available returns the ids of all Unoccupied sensors in registry order.
func (r *Registry) Available() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() []int {
	ids := make([]int, 0, len(r.sensors))
	for _, s := range r.sensors {
		if s.IsAvailable() {
			ids = append(ids, s.KerbsideID)
		}
	}
	return ids
}

// SelectAvailable picks one Unoccupied sensor uniformly at random.
// Returns false when every sensor is Present.
func (r *Registry) SelectAvailable(rng *rand.Rand) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectLocked(rng)
}

func (r *Registry) selectLocked(rng *rand.Rand) (int, bool) {
	ids := r.availableLocked()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[rng.Intn(len(ids))], true
}

// OccupyRandom selects an Unoccupied sensor and occupies it under one lock.
// Returns the updated record, or false with no mutation when no space is free.
func (r *Registry) OccupyRandom(rng *rand.Rand, now time.Time) (SensorRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.selectLocked(rng)
	if !ok {
		return SensorRecord{}, false
	}
	s := &r.sensors[r.index[id]]
	s.Occupy(now)
	return s.Clone(), true
}

// Occupy marks the given sensor Present. The current status is not checked.
func (r *Registry) Occupy(id int, now time.Time) (SensorRecord, error) {
	return r.transition(id, func(s *SensorRecord) { s.Occupy(now) })
}

// Vacate marks the given sensor Unoccupied. The current status is not checked.
func (r *Registry) Vacate(id int, now time.Time) (SensorRecord, error) {
	return r.transition(id, func(s *SensorRecord) { s.Vacate(now) })
}

func (r *Registry) transition(id int, apply func(*SensorRecord)) (SensorRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pos, ok := r.index[id]
	if !ok {
		return SensorRecord{}, fmt.Errorf("%w: %d", ErrUnknownSensor, id)
	}
	apply(&r.sensors[pos])
	return r.sensors[pos].Clone(), nil
}

// Randomize assigns every sensor Present or Unoccupied with equal probability
// and returns the ids that ended up Present. This is initialization, not a
// transition: the status is assigned directly and both timestamps set to now,
// whatever the previous status was.
func (r *Registry) Randomize(rng *rand.Rand, now time.Time) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var present []int
	for i := range r.sensors {
		s := &r.sensors[i]
		status := StatusUnoccupied
		if rng.Intn(2) == 1 {
			status = StatusPresent
			present = append(present, s.KerbsideID)
		}
		s.setStatus(status, now)
	}
	return present
}

// Snapshot returns a deep copy of every sensor in registry order.
func (r *Registry) Snapshot() []SensorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SensorRecord, len(r.sensors))
	for i, s := range r.sensors {
		out[i] = s.Clone()
	}
	return out
}
