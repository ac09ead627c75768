// Package trace provides transition recording for post-run analysis of a parking simulation.
// It has no dependencies on sim/ and stores pure data types.
package trace

import "time"

// Cause identifies what drove a transition.
type Cause string

const (
	// CauseArrival is a car occupying a free sensor.
	CauseArrival Cause = "arrival"
	// CauseVacancy is a car leaving after its parking duration.
	CauseVacancy Cause = "vacancy"
)

// TransitionRecord captures a single occupancy change.
type TransitionRecord struct {
	SensorID int
	Status   string
	Cause    Cause
	At       time.Time
}

// SnapshotRecord captures one snapshot attempt.
type SnapshotRecord struct {
	Name     string // empty when no artifact was produced
	Sensors  int
	Uploaded bool
	Err      string // write or upload failure (empty on success)
	At       time.Time
}

// PublishRecord captures one attempt to stream a sensor's state.
type PublishRecord struct {
	SensorID int
	Err      string
	At       time.Time
}
