package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kerbside/parking-sim/sim/trace"
)

// snapshotTimeLayout renders yyyyMMddHHmmss.
const snapshotTimeLayout = "20060102150405"

// SnapshotStore holds the local snapshot artifacts.
type SnapshotStore interface {
	// Write stores data under name and returns the artifact's path.
	Write(name string, data []byte) (string, error)
	Remove(path string) error
}

// BlobUploader copies a local artifact to remote storage under blobName.
type BlobUploader interface {
	Upload(ctx context.Context, blobName, localPath string) error
}

// SnapshotPublisher periodically persists the whole Registry.
type SnapshotPublisher struct {
	registry *Registry
	store    SnapshotStore
	blob     BlobUploader // may be nil when WriteBlob is off
	config   SnapshotConfig
	interval time.Duration
	trace    *trace.SimulationTrace
	now      func() time.Time
}

// NewSnapshotPublisher creates a SnapshotPublisher ticking every
// timing.SnapshotInterval units.
func NewSnapshotPublisher(registry *Registry, store SnapshotStore, blob BlobUploader, config SnapshotConfig, timing TimingConfig, st *trace.SimulationTrace) *SnapshotPublisher {
	timing = timing.Normalized()
	return &SnapshotPublisher{
		registry: registry,
		store:    store,
		blob:     blob,
		config:   config,
		interval: time.Duration(timing.SnapshotInterval) * timing.Unit,
		trace:    st,
		now:      time.Now,
	}
}

// SnapshotName returns the artifact name for a snapshot taken at t.
func SnapshotName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.json", prefix, t.Format(snapshotTimeLayout))
}

// MarshalSnapshot serializes sensors as an indented JSON array.
func MarshalSnapshot(sensors []SensorRecord) ([]byte, error) {
	return json.MarshalIndent(sensors, "", "  ")
}

// Run persists a snapshot every interval until ctx is cancelled. The next
// tick is armed only after the previous one finished, so cadence drifts by
// the cost of each write and upload.
func (p *SnapshotPublisher) Run(ctx context.Context) error {
	for {
		if !sleepCtx(ctx, p.interval) {
			return nil
		}
		p.PublishOnce(ctx)
	}
}

// PublishOnce writes the current state to the enabled sinks. It returns the
// artifact name, or "" when no sink is enabled or the local write failed.
// Failures are logged and never returned.
func (p *SnapshotPublisher) PublishOnce(ctx context.Context) string {
	if !p.config.WriteFile && !p.config.WriteBlob {
		return ""
	}

	sensors := p.registry.Snapshot()
	name := SnapshotName(p.config.FileNamePrefix, p.now())
	rec := trace.SnapshotRecord{Sensors: len(sensors), At: p.now()}
	defer func() { p.trace.RecordSnapshot(rec) }()

	data, err := MarshalSnapshot(sensors)
	if err != nil {
		logrus.Errorf("Error writing state to file: %v", err)
		rec.Err = err.Error()
		return ""
	}
	var path string
	err = safeRun(func() error {
		var werr error
		path, werr = p.store.Write(name, data)
		return werr
	})
	if err != nil {
		logrus.Errorf("Error writing state to file: %v", err)
		rec.Err = err.Error()
		return ""
	}
	logrus.Infof("Wrote %d sensors to %s", len(sensors), path)
	rec.Name = name

	if !p.config.WriteBlob {
		return name
	}
	if err := p.upload(ctx, name, path); err != nil {
		logrus.Errorf("Error uploading %s; keeping local copy: %v", name, err)
		rec.Err = err.Error()
		return name
	}
	rec.Uploaded = true
	logrus.Infof("Uploaded %s to blob storage", name)

	if !p.config.WriteFile {
		if err := p.store.Remove(path); err != nil {
			logrus.Warnf("Removing local copy %s: %v", path, err)
		}
	}
	return name
}

func (p *SnapshotPublisher) upload(ctx context.Context, name, path string) error {
	if p.blob == nil {
		return fmt.Errorf("no blob uploader configured")
	}
	return safeRun(func() error {
		uctx, cancel := withOptionalTimeout(ctx, p.config.SinkTimeout)
		defer cancel()
		return p.blob.Upload(uctx, name, path)
	})
}
