package sim

import (
	"context"
	"errors"
	"sync"
	"time"
)

// recordingEmitter collects every emitted record.
type recordingEmitter struct {
	mu      sync.Mutex
	records []SensorRecord
}

func (e *recordingEmitter) Emit(_ context.Context, record SensorRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, record)
}

func (e *recordingEmitter) Records() []SensorRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]SensorRecord(nil), e.records...)
}

// fakeStream records payloads and fails or panics on demand.
type fakeStream struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	panicMsg string
	block    bool // wait for ctx to end before returning
}

func (s *fakeStream) Publish(ctx context.Context, payload []byte) error {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, append([]byte(nil), payload...))
	return s.err
}

func (s *fakeStream) Payloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.payloads...)
}

// memStore is an in-memory SnapshotStore keyed by artifact path.
type memStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	writeErr error
	writes   int
	removed  []string
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) Write(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return "", m.writeErr
	}
	path := "/snapshots/" + name
	m.files[path] = append([]byte(nil), data...)
	return path, nil
}

func (m *memStore) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return errors.New("no such file")
	}
	delete(m.files, path)
	m.removed = append(m.removed, path)
	return nil
}

func (m *memStore) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) Files() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.files))
	for k, v := range m.files {
		out[k] = v
	}
	return out
}

// fakeBlob records uploads.
type fakeBlob struct {
	mu      sync.Mutex
	uploads []string
	err     error
}

func (b *fakeBlob) Upload(_ context.Context, blobName, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads = append(b.uploads, blobName)
	return b.err
}

func (b *fakeBlob) Uploads() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.uploads...)
}

// msTiming is a TimingConfig counted in milliseconds so tests run quickly.
func msTiming(freq, min, max, interval int) TimingConfig {
	c := NewTimingConfig(freq, min, max, interval)
	c.Unit = time.Millisecond
	return c
}
