// Package testutil provides shared test infrastructure for the parking simulator.
// It consolidates sensor fixtures and output capture helpers used across
// sim/, sim/sink/ and cmd/ test packages.
package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// FixturePath returns the absolute path of testdata/sensors.json.
// The path is resolved relative to this source file: sim/internal/testutil/ → testdata/.
func FixturePath(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "sensors.json")
}

// LoadSensorFixture returns the raw bytes of testdata/sensors.json.
// The fixture holds four sensors (4101-4104); 4102 starts Present and 4104
// carries no status or timestamps.
func LoadSensorFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(FixturePath(t))
	if err != nil {
		t.Fatalf("Failed to read sensor fixture: %v", err)
	}
	return data
}

// SensorsJSON builds a sensor array of n Unoccupied sensors with ids 1..n.
func SensorsJSON(n int) string {
	var b strings.Builder
	b.WriteString("[")
	for i := 1; i <= n; i++ {
		if i > 1 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"kerbsideid":%d,"location":{"lat":-37.81,"lon":144.96},"zone_number":%d,`+
			`"lastupdated":"2024-03-01T09:00:00Z","status_timestamp":"2024-03-01T09:00:00Z",`+
			`"status_description":"Unoccupied"}`, i, 7000+i)
	}
	b.WriteString("]")
	return b.String()
}

// RecordingWriter is an io.Writer that is safe for concurrent use and
// remembers everything written to it.
type RecordingWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *RecordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

// Lines returns every complete newline-terminated line written so far.
func (w *RecordingWriter) Lines() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	text := w.buf.String()
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	return lines
}

// String returns everything written so far.
func (w *RecordingWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
