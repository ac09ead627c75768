package sim

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kerbside/parking-sim/sim/trace"
)

// Emitter receives a copy of a sensor's record after every transition.
// Implementations must absorb their own failures.
type Emitter interface {
	Emit(ctx context.Context, record SensorRecord)
}

// ArrivalScheduler drives the park/vacate cycle: one arrival loop plus one
// vacancy timer per parked car, all sharing the same Registry.
type ArrivalScheduler struct {
	registry  *Registry
	emitter   Emitter
	timing    TimingConfig
	vacancies *vacancySet
	trace     *trace.SimulationTrace
	now       func() time.Time

	rngMu      sync.Mutex
	arrivalRNG *rand.Rand
	parkingRNG *rand.Rand
}

// NewArrivalScheduler creates an ArrivalScheduler. The timing config is
// normalized; st may be nil.
func NewArrivalScheduler(registry *Registry, emitter Emitter, timing TimingConfig, rng *PartitionedRNG, st *trace.SimulationTrace) *ArrivalScheduler {
	return &ArrivalScheduler{
		registry:   registry,
		emitter:    emitter,
		timing:     timing.Normalized(),
		vacancies:  newVacancySet(),
		trace:      st,
		now:        time.Now,
		arrivalRNG: rng.ForSubsystem(SubsystemArrival),
		parkingRNG: rng.ForSubsystem(SubsystemParking),
	}
}

// Run executes the arrival loop until ctx is cancelled. On return every
// vacancy that has not fired yet is abandoned and the sensors stay Present.
func (s *ArrivalScheduler) Run(ctx context.Context) error {
	defer func() {
		if n := s.vacancies.abandon(); n > 0 {
			logrus.Infof("Abandoned %d pending vacancies", n)
		}
		s.vacancies.wait()
	}()

	for {
		delay := s.nextDelay()
		logrus.Infof("Waiting for %s to park a car...", delay)
		if !sleepCtx(ctx, delay) {
			return nil
		}
		s.Arrive(ctx)
	}
}

// Arrive performs one arrival tick: occupy a random Unoccupied sensor, emit
// it, and schedule its vacancy. Returns false when every sensor is Present;
// in that case nothing is mutated, emitted or scheduled.
func (s *ArrivalScheduler) Arrive(ctx context.Context) (SensorRecord, bool) {
	s.rngMu.Lock()
	record, ok := s.registry.OccupyRandom(s.arrivalRNG, s.now())
	s.rngMu.Unlock()
	if !ok {
		logrus.Info("No parking spaces available")
		s.trace.RecordNoSpace()
		return SensorRecord{}, false
	}

	logrus.Infof("Parked a car at sensor %d", record.KerbsideID)
	s.trace.RecordTransition(trace.TransitionRecord{
		SensorID: record.KerbsideID,
		Status:   string(record.StatusDescription),
		Cause:    trace.CauseArrival,
		At:       record.StatusTimestamp,
	})
	// the vacancy is armed before emitting so a slow sink cannot delay it
	s.ScheduleVacancy(ctx, record.KerbsideID)
	s.emitter.Emit(ctx, record)
	return record, true
}

// ScheduleVacancy arms a vacancy for the sensor after a random parking
// duration. Used by Arrive and for sensors that start out Present.
func (s *ArrivalScheduler) ScheduleVacancy(ctx context.Context, id int) {
	d := s.parkingDuration()
	fire := func() {
		_ = safeRun(func() error {
			s.vacate(ctx, id)
			return nil
		})
	}
	if !s.vacancies.schedule(id, s.now(), d, fire) {
		logrus.Debugf("Scheduler stopped; sensor %d will not be vacated", id)
		return
	}
	logrus.Debugf("Sensor %d will be vacated in %s", id, d)
}

func (s *ArrivalScheduler) vacate(ctx context.Context, id int) {
	record, err := s.registry.Vacate(id, s.now())
	if err != nil {
		logrus.Errorf("Vacating sensor %d: %v", id, err)
		return
	}
	logrus.Infof("Car left sensor %d", id)
	s.trace.RecordTransition(trace.TransitionRecord{
		SensorID: id,
		Status:   string(record.StatusDescription),
		Cause:    trace.CauseVacancy,
		At:       record.StatusTimestamp,
	})
	s.emitter.Emit(ctx, record)
}

// Pending returns the outstanding vacancies ordered by fire time.
func (s *ArrivalScheduler) Pending() []PendingVacancy {
	return s.vacancies.list()
}

// Abandon stops every vacancy that has not fired and blocks until the ones
// already firing finish. Returns how many were stopped.
func (s *ArrivalScheduler) Abandon() int {
	n := s.vacancies.abandon()
	s.vacancies.wait()
	return n
}

func (s *ArrivalScheduler) nextDelay() time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return time.Duration(uniformInt(s.arrivalRNG, 0, s.timing.EventFrequency)) * s.timing.Unit
}

func (s *ArrivalScheduler) parkingDuration() time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return time.Duration(uniformInt(s.parkingRNG, s.timing.ParkingTimeMin, s.timing.ParkingTimeMax)) * s.timing.Unit
}

// sleepCtx waits for d or until ctx is done. Returns false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
