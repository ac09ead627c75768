package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/kerbside/parking-sim/sim"
)

// AppSettings holds the resolved simulator configuration.
// Field names match the keys of appsettings.json.
type AppSettings struct {
	FileDelay             int `yaml:"FileDelay"`
	ParkingEventFrequency int `yaml:"ParkingEventFrequency"`
	ParkingTimeMin        int `yaml:"ParkingTimeMin"`
	ParkingTimeMax        int `yaml:"ParkingTimeMax"`

	JsonFilePath   string `yaml:"JsonFilePath"`
	OutputDir      string `yaml:"OutputDir"`
	FileNamePrefix string `yaml:"FileNamePrefix"`

	WriteFile   bool `yaml:"WriteFile"`
	WriteBlob   bool `yaml:"WriteBlob"`
	WriteStream bool `yaml:"WriteStream"`

	BlobStorageAccount   string `yaml:"BlobStorageAccount"`
	BlobStorageContainer string `yaml:"BlobStorageContainer"`

	StreamBackend     string `yaml:"StreamBackend"`
	EventHubName      string `yaml:"EventHubName"`
	EventHubNamespace string `yaml:"EventHubNamespace"`
	NatsURL           string `yaml:"NatsURL"`
	NatsSubject       string `yaml:"NatsSubject"`

	SinkTimeoutSeconds int  `yaml:"SinkTimeoutSeconds"`
	RandomizeOnStartup bool `yaml:"RandomizeOnStartup"`
}

const (
	StreamBackendEventHubs = "eventhubs"
	StreamBackendNATS      = "nats"
)

// DefaultAppSettings returns the configuration used for every absent or
// unparseable key.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		FileDelay:             5,
		ParkingEventFrequency: 5,
		ParkingTimeMin:        5,
		ParkingTimeMax:        30,
		JsonFilePath:          "sensors.json",
		OutputDir:             ".",
		FileNamePrefix:        "parking_sensor",
		WriteFile:             true,
		StreamBackend:         StreamBackendEventHubs,
		NatsURL:               "nats://127.0.0.1:4222",
		NatsSubject:           "parking.sensors",
		SinkTimeoutSeconds:    30,
		RandomizeOnStartup:    true,
	}
}

// settingParser applies one raw scalar to s.
type settingParser func(s *AppSettings, raw string) error

func intSetting(field func(*AppSettings) *int) settingParser {
	return func(s *AppSettings, raw string) error {
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*field(s) = v
		return nil
	}
}

func boolSetting(field func(*AppSettings) *bool) settingParser {
	return func(s *AppSettings, raw string) error {
		v, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		*field(s) = v
		return nil
	}
}

func stringSetting(field func(*AppSettings) *string) settingParser {
	return func(s *AppSettings, raw string) error {
		*field(s) = raw
		return nil
	}
}

// settingParsers is keyed by lower-cased setting name; lookups ignore case.
var settingParsers = map[string]settingParser{
	"filedelay":             intSetting(func(s *AppSettings) *int { return &s.FileDelay }),
	"parkingeventfrequency": intSetting(func(s *AppSettings) *int { return &s.ParkingEventFrequency }),
	"parkingtimemin":        intSetting(func(s *AppSettings) *int { return &s.ParkingTimeMin }),
	"parkingtimemax":        intSetting(func(s *AppSettings) *int { return &s.ParkingTimeMax }),
	"sinktimeoutseconds":    intSetting(func(s *AppSettings) *int { return &s.SinkTimeoutSeconds }),
	"writefile":             boolSetting(func(s *AppSettings) *bool { return &s.WriteFile }),
	"writeblob":             boolSetting(func(s *AppSettings) *bool { return &s.WriteBlob }),
	"writestream":           boolSetting(func(s *AppSettings) *bool { return &s.WriteStream }),
	"randomizeonstartup":    boolSetting(func(s *AppSettings) *bool { return &s.RandomizeOnStartup }),
	"jsonfilepath":          stringSetting(func(s *AppSettings) *string { return &s.JsonFilePath }),
	"outputdir":             stringSetting(func(s *AppSettings) *string { return &s.OutputDir }),
	"filenameprefix":        stringSetting(func(s *AppSettings) *string { return &s.FileNamePrefix }),
	"blobstorageaccount":    stringSetting(func(s *AppSettings) *string { return &s.BlobStorageAccount }),
	"blobstoragecontainer":  stringSetting(func(s *AppSettings) *string { return &s.BlobStorageContainer }),
	"streambackend":         stringSetting(func(s *AppSettings) *string { return &s.StreamBackend }),
	"eventhubname":          stringSetting(func(s *AppSettings) *string { return &s.EventHubName }),
	"eventhubnamespace":     stringSetting(func(s *AppSettings) *string { return &s.EventHubNamespace }),
	"natsurl":               stringSetting(func(s *AppSettings) *string { return &s.NatsURL }),
	"natssubject":           stringSetting(func(s *AppSettings) *string { return &s.NatsSubject }),
}

// LoadAppSettings reads the settings file at path. A missing or unreadable
// file yields the defaults; configuration problems are never fatal.
func LoadAppSettings(afs afero.Fs, path string) AppSettings {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logrus.Infof("No settings file at %s; using defaults", path)
		} else {
			logrus.Warnf("Reading settings file %s: %v; using defaults", path, err)
		}
		return DefaultAppSettings()
	}
	return ParseAppSettings(data)
}

// ParseAppSettings decodes a JSON or YAML settings document. Every key is
// parsed on its own; a value that does not parse keeps its default. Keys
// match case-insensitively; among case variants of one key the first in
// byte order wins (so "WriteFile" beats "writefile").
func ParseAppSettings(data []byte) AppSettings {
	settings := DefaultAppSettings()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		logrus.Warnf("Parsing settings: %v; using defaults", err)
		return settings
	}
	// sorted so that case variants of one key resolve the same way every run
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	seen := make(map[string]string, len(keys))
	for _, key := range keys {
		value := raw[key]
		name := strings.ToLower(key)
		parse, ok := settingParsers[name]
		if !ok {
			logrus.Debugf("Ignoring unknown setting %q", key)
			continue
		}
		if first, dup := seen[name]; dup {
			logrus.Warnf("Setting %q duplicates %q; keeping %q", key, first, first)
			continue
		}
		seen[name] = key
		if value == nil {
			continue
		}
		if _, nested := value.(map[string]any); nested {
			logrus.Warnf("Setting %s must be a scalar; using default", key)
			continue
		}
		if err := parse(&settings, fmt.Sprint(value)); err != nil {
			logrus.Warnf("Setting %s=%v is invalid (%v); using default", key, value, err)
		}
	}
	return settings
}

// Timing returns the simulation cadence in seconds.
func (s AppSettings) Timing() sim.TimingConfig {
	return sim.NewTimingConfig(s.ParkingEventFrequency, s.ParkingTimeMin, s.ParkingTimeMax, s.FileDelay)
}

// Snapshot returns the persistence sink switches.
func (s AppSettings) Snapshot() sim.SnapshotConfig {
	return sim.NewSnapshotConfig(s.WriteFile, s.WriteBlob, s.FileNamePrefix, s.SinkTimeout())
}

// SinkTimeout bounds each upload and publish; zero or negative means unbounded.
// Publishes run in the background, so an unbounded one never stalls arrivals.
func (s AppSettings) SinkTimeout() time.Duration {
	if s.SinkTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.SinkTimeoutSeconds) * time.Second
}

// YAML renders the resolved settings.
func (s AppSettings) YAML() (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return string(out), nil
}
