// Defines the SensorRecord struct that models a single kerbside parking sensor.
// Tracks location, zone, occupancy status and the timestamps of the last transition.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Status represents the occupancy state of a sensor.
// The string value is the wire representation carried in status_description.
type Status string

const (
	StatusUnoccupied Status = "Unoccupied"
	StatusPresent    Status = "Present"
)

// Location is the sensor's coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SensorRecord is the persisted and streamed shape of a sensor.
// Field names are the wire format consumed downstream and must not change.
type SensorRecord struct {
	KerbsideID        int       `json:"kerbsideid"`
	Location          Location  `json:"location"`
	ZoneNumber        *int      `json:"zone_number"`
	LastUpdated       time.Time `json:"lastupdated"`
	StatusTimestamp   time.Time `json:"status_timestamp"`
	StatusDescription Status    `json:"status_description"`
}

// Occupy marks the sensor Present and stamps both timestamps with now.
// The caller is responsible for only occupying Unoccupied sensors.
func (s *SensorRecord) Occupy(now time.Time) {
	s.setStatus(StatusPresent, now)
}

// Vacate marks the sensor Unoccupied and stamps both timestamps with now.
func (s *SensorRecord) Vacate(now time.Time) {
	s.setStatus(StatusUnoccupied, now)
}

func (s *SensorRecord) setStatus(status Status, now time.Time) {
	now = now.Round(0)
	// timestamps never move backwards for a single sensor
	if now.Before(s.LastUpdated) {
		now = s.LastUpdated
	}
	s.StatusDescription = status
	s.LastUpdated = now
	s.StatusTimestamp = now
}

// IsAvailable reports whether the sensor can accept an arrival.
func (s SensorRecord) IsAvailable() bool {
	return s.StatusDescription == StatusUnoccupied
}

// Clone returns a copy that shares no memory with s.
func (s SensorRecord) Clone() SensorRecord {
	if s.ZoneNumber != nil {
		zone := *s.ZoneNumber
		s.ZoneNumber = &zone
	}
	return s
}

// This method returns a human-readable string representation of a SensorRecord.
func (s SensorRecord) String() string {
	return fmt.Sprintf("Sensor: (ID: %d, Status: %s, LastUpdated: %s)", s.KerbsideID, s.StatusDescription, s.LastUpdated.Format(time.RFC3339))
}

// DecodeSensors reads a JSON array of sensor records.
// Records without a status start Unoccupied and records without timestamps are
// stamped with now, mirroring a freshly constructed sensor.
func DecodeSensors(r io.Reader, now time.Time) ([]SensorRecord, error) {
	var records []SensorRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding sensors: %w", err)
	}
	now = now.Round(0)
	for i := range records {
		rec := &records[i]
		switch rec.StatusDescription {
		case "":
			rec.StatusDescription = StatusUnoccupied
		case StatusUnoccupied, StatusPresent:
		default:
			return nil, fmt.Errorf("sensor %d: unknown status %q", rec.KerbsideID, rec.StatusDescription)
		}
		if rec.LastUpdated.IsZero() {
			rec.LastUpdated = now
		}
		if rec.StatusTimestamp.IsZero() {
			rec.StatusTimestamp = now
		}
	}
	return records, nil
}
