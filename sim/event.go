package sim

import (
	"sort"
	"sync"
	"time"
)

// PendingVacancy is a scheduled departure: the sensor becomes Unoccupied at FireAt.
// It lives only in the scheduler's task set and is never persisted.
type PendingVacancy struct {
	SensorID int
	FireAt   time.Time

	timer *time.Timer
}

// vacancySet tracks every outstanding PendingVacancy, one per parked sensor.
// Each vacancy runs on its own timer, concurrently with the arrival loop.
type vacancySet struct {
	mu      sync.Mutex
	pending map[int]*PendingVacancy
	running sync.WaitGroup
	closed  bool
}

func newVacancySet() *vacancySet {
	return &vacancySet{pending: make(map[int]*PendingVacancy)}
}

// schedule arms a timer that calls fire after d. Returns false once the set
// has been abandoned. A sensor has at most one pending vacancy; scheduling
// again replaces the earlier one.
func (s *vacancySet) schedule(id int, now time.Time, d time.Duration, fire func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if old, ok := s.pending[id]; ok && old.timer.Stop() {
		s.running.Done()
	}

	pv := &PendingVacancy{SensorID: id, FireAt: now.Add(d)}
	s.running.Add(1)
	// the callback blocks on s.mu until pv is registered below
	pv.timer = time.AfterFunc(d, func() {
		defer s.running.Done()
		if !s.remove(pv) {
			return
		}
		fire()
	})
	s.pending[id] = pv
	return true
}

// remove drops pv from the set; false means it was replaced or abandoned.
func (s *vacancySet) remove(pv *PendingVacancy) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[pv.SensorID] != pv {
		return false
	}
	delete(s.pending, pv.SensorID)
	return true
}

// abandon stops every timer that has not fired yet. Vacancies already firing
// are left to finish; use wait to block on them.
func (s *vacancySet) abandon() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	stopped := 0
	for id, pv := range s.pending {
		if pv.timer.Stop() {
			s.running.Done()
			stopped++
		}
		delete(s.pending, id)
	}
	return stopped
}

func (s *vacancySet) wait() {
	s.running.Wait()
}

// list returns the outstanding vacancies ordered by fire time.
func (s *vacancySet) list() []PendingVacancy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingVacancy, 0, len(s.pending))
	for _, pv := range s.pending {
		out = append(out, PendingVacancy{SensorID: pv.SensorID, FireAt: pv.FireAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].SensorID < out[j].SensorID
		}
		return out[i].FireAt.Before(out[j].FireAt)
	})
	return out
}
