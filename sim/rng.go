package sim

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// === SimulationKey ===

// SimulationKey seeds every random stream of a simulation run.
// Production runs use a wall-clock key; a fixed key lets tests and
// debugging sessions reproduce a particular draw sequence.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemArrival draws the wait before each arrival and the sensor to occupy.
	SubsystemArrival = "arrival"

	// SubsystemParking draws how long each car stays parked.
	SubsystemParking = "parking"

	// SubsystemStartup draws the initial occupancy of every sensor.
	SubsystemStartup = "startup"
)

// === PartitionedRNG ===

// PartitionedRNG provides isolated RNG instances per subsystem.
//
// Derivation formula: masterSeed XOR fnv1a64(subsystemName).
//
// Thread-safety: NOT thread-safe. ForSubsystem must be called while wiring
// components. A returned *rand.Rand may be shared by several goroutines only
// if its callers serialize access (ArrivalScheduler guards its streams with a mutex).
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// NewUnseededRNG creates a PartitionedRNG keyed from the wall clock.
func NewUnseededRNG() *PartitionedRNG {
	return NewPartitionedRNG(NewSimulationKey(time.Now().UnixNano()))
}

// ForSubsystem returns the RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(int64(p.key) ^ fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// uniformInt draws from [lo, hi). An empty range yields lo.
func uniformInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.Intn(hi-lo)
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
