package sink

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/kerbside/parking-sim/sim"
)

// FileStore writes snapshot artifacts into a directory of an afero filesystem.
// An existing artifact with the same name is overwritten.
type FileStore struct {
	fs  afero.Fs
	dir string
}

// NewFileStore creates a FileStore rooted at dir on fs.
func NewFileStore(fs afero.Fs, dir string) *FileStore {
	if dir == "" {
		dir = "."
	}
	return &FileStore{fs: fs, dir: dir}
}

// NewOSFileStore creates a FileStore on the real filesystem.
func NewOSFileStore(dir string) *FileStore {
	return NewFileStore(afero.NewOsFs(), dir)
}

// Fs returns the underlying filesystem.
func (s *FileStore) Fs() afero.Fs { return s.fs }

// Write stores data as dir/name and returns that path.
func (s *FileStore) Write(name string, data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes a previously written artifact.
func (s *FileStore) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// ReadFile returns the content of a previously written artifact.
func (s *FileStore) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// ReadSensors loads the initial sensor set from path on fs.
// A missing or malformed file is an error: the simulation cannot start without it.
func ReadSensors(fs afero.Fs, path string) ([]sim.SensorRecord, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening sensor file: %w", err)
	}
	defer f.Close()
	records, err := sim.DecodeSensors(f, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}
