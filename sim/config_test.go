package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewTimingConfig_FieldEquivalence(t *testing.T) {
	got := NewTimingConfig(5, 5, 30, 5)
	want := TimingConfig{
		EventFrequency:   5,
		ParkingTimeMin:   5,
		ParkingTimeMax:   30,
		SnapshotInterval: 5,
		Unit:             time.Second,
	}
	assert.Equal(t, want, got)
}

func TestNewSnapshotConfig_FieldEquivalence(t *testing.T) {
	got := NewSnapshotConfig(true, false, "parking_sensor", 30*time.Second)
	want := SnapshotConfig{
		WriteFile:      true,
		WriteBlob:      false,
		FileNamePrefix: "parking_sensor",
		SinkTimeout:    30 * time.Second,
	}
	assert.Equal(t, want, got)
}

func TestTimingConfig_Normalized(t *testing.T) {
	tests := []struct {
		name string
		in   TimingConfig
		want TimingConfig
	}{
		{
			name: "valid config unchanged",
			in:   NewTimingConfig(5, 5, 30, 5),
			want: NewTimingConfig(5, 5, 30, 5),
		},
		{
			name: "min equal to max widens window",
			in:   NewTimingConfig(5, 10, 10, 5),
			want: NewTimingConfig(5, 10, 11, 5),
		},
		{
			name: "min above max widens window",
			in:   NewTimingConfig(5, 30, 5, 5),
			want: NewTimingConfig(5, 30, 31, 5),
		},
		{
			name: "negative counts clamp to zero",
			in:   NewTimingConfig(-3, -1, 4, 5),
			want: NewTimingConfig(0, 0, 4, 5),
		},
		{
			name: "snapshot interval at least one",
			in:   NewTimingConfig(5, 5, 30, 0),
			want: NewTimingConfig(5, 5, 30, 1),
		},
		{
			name: "zero unit defaults to seconds",
			in:   TimingConfig{EventFrequency: 1, ParkingTimeMin: 1, ParkingTimeMax: 2, SnapshotInterval: 1},
			want: NewTimingConfig(1, 1, 2, 1),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalized())
		})
	}
}

func TestTimingConfig_Normalized_KeepsCustomUnit(t *testing.T) {
	in := TimingConfig{EventFrequency: 1, ParkingTimeMin: 1, ParkingTimeMax: 2, SnapshotInterval: 1, Unit: time.Millisecond}
	assert.Equal(t, time.Millisecond, in.Normalized().Unit)
}
