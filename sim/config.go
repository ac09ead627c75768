package sim

import (
	"time"

	"github.com/sirupsen/logrus"
)

// TimingConfig groups the simulation cadence parameters.
// Every value is a count of Unit (seconds in production).
type TimingConfig struct {
	EventFrequency   int           // arrival wait is drawn from [0, EventFrequency)
	ParkingTimeMin   int           // parking duration lower bound (inclusive)
	ParkingTimeMax   int           // parking duration upper bound (exclusive)
	SnapshotInterval int           // wait between the end of one snapshot and the next
	Unit             time.Duration // length of one count
}

// NewTimingConfig creates a TimingConfig measured in seconds.
func NewTimingConfig(eventFrequency, parkingTimeMin, parkingTimeMax, snapshotInterval int) TimingConfig {
	return TimingConfig{
		EventFrequency:   eventFrequency,
		ParkingTimeMin:   parkingTimeMin,
		ParkingTimeMax:   parkingTimeMax,
		SnapshotInterval: snapshotInterval,
		Unit:             time.Second,
	}
}

// Normalized returns a copy with misconfigurations clamped:
// negative counts become 0, SnapshotInterval is at least 1, and an empty
// parking window [min, max) is widened to [min, min+1). Each clamp is logged.
func (c TimingConfig) Normalized() TimingConfig {
	if c.Unit <= 0 {
		c.Unit = time.Second
	}
	if c.EventFrequency < 0 {
		logrus.Warnf("ParkingEventFrequency %d is negative; using 0", c.EventFrequency)
		c.EventFrequency = 0
	}
	if c.ParkingTimeMin < 0 {
		logrus.Warnf("ParkingTimeMin %d is negative; using 0", c.ParkingTimeMin)
		c.ParkingTimeMin = 0
	}
	if c.ParkingTimeMax <= c.ParkingTimeMin {
		logrus.Warnf("ParkingTimeMax %d must exceed ParkingTimeMin %d; using %d",
			c.ParkingTimeMax, c.ParkingTimeMin, c.ParkingTimeMin+1)
		c.ParkingTimeMax = c.ParkingTimeMin + 1
	}
	if c.SnapshotInterval < 1 {
		logrus.Warnf("FileDelay %d is below 1; using 1", c.SnapshotInterval)
		c.SnapshotInterval = 1
	}
	return c
}

// SnapshotConfig groups the persistence sink switches.
type SnapshotConfig struct {
	WriteFile      bool          // keep the local snapshot artifact
	WriteBlob      bool          // upload each snapshot to blob storage
	FileNamePrefix string        // snapshot names are {prefix}_{yyyyMMddHHmmss}.json
	SinkTimeout    time.Duration // bound on each upload (0 = unbounded)
}

// NewSnapshotConfig creates a SnapshotConfig.
func NewSnapshotConfig(writeFile, writeBlob bool, prefix string, sinkTimeout time.Duration) SnapshotConfig {
	return SnapshotConfig{
		WriteFile:      writeFile,
		WriteBlob:      writeBlob,
		FileNamePrefix: prefix,
		SinkTimeout:    sinkTimeout,
	}
}
