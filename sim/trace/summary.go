package trace

import (
	"math"
	"sort"
)

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Counters
	UniqueSensors      int
	SensorDistribution map[int]int // sensor id → number of arrivals (transitions level only)

	// Stay statistics cover completed arrival-to-vacancy intervals, in seconds.
	MeanParkedSeconds float64
	P50ParkedSeconds  float64
	P90ParkedSeconds  float64
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		SensorDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}
	summary.Counters = st.Counters()

	parkedAt := make(map[int]TransitionRecord)
	var stays []float64
	for _, t := range st.Transitions() {
		switch t.Cause {
		case CauseArrival:
			summary.SensorDistribution[t.SensorID]++
			parkedAt[t.SensorID] = t
		case CauseVacancy:
			arrival, ok := parkedAt[t.SensorID]
			if !ok {
				continue
			}
			stays = append(stays, t.At.Sub(arrival.At).Seconds())
			delete(parkedAt, t.SensorID)
		}
	}
	summary.UniqueSensors = len(summary.SensorDistribution)

	if len(stays) > 0 {
		sort.Float64s(stays)
		total := 0.0
		for _, s := range stays {
			total += s
		}
		summary.MeanParkedSeconds = total / float64(len(stays))
		summary.P50ParkedSeconds = percentile(stays, 50)
		summary.P90ParkedSeconds = percentile(stays, 90)
	}

	return summary
}

// percentile returns the p-th percentile of sorted data using linear
// interpolation between closest ranks. Empty input yields 0.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := p / 100.0 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if upper >= n {
		return sorted[n-1]
	}
	if lower == upper {
		return sorted[lower]
	}
	return sorted[lower] + (sorted[upper]-sorted[lower])*(rank-float64(lower))
}
