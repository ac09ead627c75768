package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/kerbside/parking-sim/sim"
	"github.com/kerbside/parking-sim/sim/sink"
	"github.com/kerbside/parking-sim/sim/trace"
)

var (
	// CLI flags
	configPath string        // Path to appsettings.json
	logLevel   string        // Log verbosity level
	seed       int64         // Seed for the random streams (only used when set)
	traceLevel string        // Trace verbosity (none, counts, transitions)
	duration   time.Duration // Stop after this long (0 = run until interrupted)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "parking-sim",
	Short: "Occupancy simulator for kerbside parking sensors",
}

// runCmd loads the sensor set and runs the simulation until interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the parking sensor simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		afs := afero.NewOsFs()
		settings := LoadAppSettings(afs, configPath)

		rng := sim.NewUnseededRNG()
		if cmd.Flags().Changed("seed") {
			rng = sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
		}

		w, err := buildEngine(settings, afs, rng, trace.TraceLevel(traceLevel), os.Stdout)
		if err != nil {
			logrus.Fatalf("Unable to start simulation: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}

		runID := uuid.NewString()
		logrus.Infof("Run %s: seed=%d, settings=%s", runID, rng.Key(), configPath)
		startTime := time.Now()
		if err := w.engine.Run(ctx); err != nil {
			logrus.Errorf("Simulation stopped with error: %v", err)
		}
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
		if !w.emitter.Drain(drainCtx) {
			logrus.Warnf("Stream publishes still pending after %s; abandoning them", drainTimeout)
		}
		cancelDrain()
		logSummary(trace.Summarize(w.engine.Trace()), time.Since(startTime))
		logrus.Infof("Run %s complete.", runID)
	},
}

// validateCmd resolves the configuration and sensor file without running
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Print the resolved configuration and check the sensor file",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := validate(afero.NewOsFs(), configPath, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// validate writes the resolved settings as YAML followed by a sensor count.
func validate(afs afero.Fs, path string, out io.Writer) error {
	settings := LoadAppSettings(afs, path)
	text, err := settings.YAML()
	if err != nil {
		return err
	}
	sensors, err := sink.ReadSensors(afs, settings.JsonFilePath)
	if err != nil {
		return err
	}
	if _, err := sim.NewRegistry(sensors); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s# %d sensors loaded from %s\n", text, len(sensors), settings.JsonFilePath)
	return err
}

// drainTimeout bounds the wait for background stream publishes at shutdown.
const drainTimeout = 5 * time.Second

// wiring is a built simulation plus the emitter whose publishes are drained on exit.
type wiring struct {
	engine  *sim.Engine
	emitter *sim.EventEmitter
}

// buildEngine loads the sensor set and wires every component. Only a sensor
// load failure is returned; sink misconfiguration disables that sink.
func buildEngine(settings AppSettings, afs afero.Fs, rng *sim.PartitionedRNG, level trace.TraceLevel, console io.Writer) (*wiring, error) {
	sensors, err := sink.ReadSensors(afs, settings.JsonFilePath)
	if err != nil {
		return nil, err
	}
	registry, err := sim.NewRegistry(sensors)
	if err != nil {
		return nil, err
	}

	st := trace.NewSimulationTrace(trace.TraceConfig{Level: level})
	store := sink.NewFileStore(afs, settings.OutputDir)

	blob, err := newBlobUploader(settings, afs)
	if err != nil {
		logrus.Warnf("Blob upload disabled: %v", err)
	}
	stream, err := newStreamPublisher(settings)
	if err != nil {
		logrus.Warnf("Event streaming disabled: %v", err)
	}

	emitter := sim.NewEventEmitter(console, stream, settings.SinkTimeout(), st)
	arrivals := sim.NewArrivalScheduler(registry, emitter, settings.Timing(), rng, st)
	snapshots := sim.NewSnapshotPublisher(registry, store, blob, settings.Snapshot(), settings.Timing(), st)

	engine := sim.NewEngine(registry, arrivals, snapshots, rng, st)
	engine.RandomizeOnStartup = settings.RandomizeOnStartup
	return &wiring{engine: engine, emitter: emitter}, nil
}

// newBlobUploader returns nil when blob upload is off or cannot be configured.
func newBlobUploader(settings AppSettings, afs afero.Fs) (sim.BlobUploader, error) {
	if !settings.WriteBlob {
		return nil, nil
	}
	u, err := sink.NewBlobUploader(settings.BlobStorageAccount, settings.BlobStorageContainer, afs)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// newStreamPublisher returns nil when streaming is off or cannot be configured.
func newStreamPublisher(settings AppSettings) (sim.StreamPublisher, error) {
	if !settings.WriteStream {
		return nil, nil
	}
	switch settings.StreamBackend {
	case StreamBackendEventHubs, "":
		p, err := sink.NewEventHubsPublisher(settings.EventHubNamespace, settings.EventHubName)
		if err != nil {
			return nil, err
		}
		return p, nil
	case StreamBackendNATS:
		p, err := sink.NewNATSPublisher(settings.NatsURL, settings.NatsSubject)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown stream backend %q", settings.StreamBackend)
	}
}

func logSummary(s *trace.TraceSummary, elapsed time.Duration) {
	logrus.Infof("Simulation ran for %s: %d arrivals, %d vacancies, %d ticks with no space",
		elapsed.Round(time.Millisecond), s.Arrivals, s.Vacancies, s.NoSpaceTicks)
	logrus.Infof("Snapshots: %d written, %d failed, %d upload failures; publishes: %d (%d failed)",
		s.Snapshots, s.SnapshotFailures, s.UploadFailures, s.Publishes, s.PublishFailures)
	if s.UniqueSensors > 0 {
		logrus.Infof("%d sensors saw arrivals; completed stays mean %.1fs, p50 %.1fs, p90 %.1fs",
			s.UniqueSensors, s.MeanParkedSeconds, s.P50ParkedSeconds, s.P90ParkedSeconds)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "appsettings.json", "Path to the settings file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for reproducible random draws (default: wall clock)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelCounts), "Trace verbosity (none, counts, transitions)")
	runCmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 = run until interrupted)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
