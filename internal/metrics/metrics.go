// Package metrics records run statistics in Prometheus text format, for
// node_exporter's textfile collector or CI artifacts.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lynkia/deployer/internal/artifact"
	"github.com/lynkia/deployer/internal/pipeline"
)

// Recorder collects metrics for a single run. It implements
// pipeline.Listener and deps.Listener.
type Recorder struct {
	registry *prometheus.Registry

	stageDuration   *prometheus.GaugeVec
	stageSuccess    *prometheus.GaugeVec
	installAttempts *prometheus.CounterVec
	installDegraded prometheus.Gauge
	archiveBytes    prometheus.Gauge
	archiveEntries  prometheus.Gauge
	runSuccess      prometheus.Gauge
	runDuration     prometheus.Gauge
	lastRun         prometheus.Gauge

	now func() time.Time
}

// NewRecorder creates a recorder on a private registry. command is attached
// to every series as a constant label.
func NewRecorder(command string) *Recorder {
	labels := prometheus.Labels{"command": command}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		now:      time.Now,

		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "deployer",
				Subsystem:   "stage",
				Name:        "duration_seconds",
				Help:        "Wall time spent in each pipeline stage",
				ConstLabels: labels,
			},
			[]string{"stage"},
		),
		stageSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   "deployer",
				Subsystem:   "stage",
				Name:        "success",
				Help:        "Whether the stage succeeded (1) or failed (0)",
				ConstLabels: labels,
			},
			[]string{"stage"},
		),
		installAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   "deployer",
				Subsystem:   "install",
				Name:        "attempts_total",
				Help:        "Dependency install attempts by strategy and result",
				ConstLabels: labels,
			},
			[]string{"strategy", "result"},
		),
		installDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deployer",
			Subsystem:   "install",
			Name:        "degraded",
			Help:        "Whether dependencies were installed without targeting the runtime platform",
			ConstLabels: labels,
		}),
		archiveBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deployer",
			Subsystem:   "archive",
			Name:        "size_bytes",
			Help:        "Size of the deployment archive",
			ConstLabels: labels,
		}),
		archiveEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deployer",
			Subsystem:   "archive",
			Name:        "entries",
			Help:        "Number of files in the deployment archive",
			ConstLabels: labels,
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deployer",
			Subsystem:   "run",
			Name:        "success",
			Help:        "Whether the run succeeded (1) or failed (0)",
			ConstLabels: labels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deployer",
			Subsystem:   "run",
			Name:        "duration_seconds",
			Help:        "Wall time of the whole run",
			ConstLabels: labels,
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "deployer",
			Subsystem:   "run",
			Name:        "last_timestamp_seconds",
			Help:        "Unix time the run finished",
			ConstLabels: labels,
		}),
	}

	r.registry.MustRegister(
		r.stageDuration,
		r.stageSuccess,
		r.installAttempts,
		r.installDegraded,
		r.archiveBytes,
		r.archiveEntries,
		r.runSuccess,
		r.runDuration,
		r.lastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// StageStarted implements pipeline.Listener.
func (r *Recorder) StageStarted(pipeline.Stage) {}

// StageSucceeded implements pipeline.Listener.
func (r *Recorder) StageSucceeded(s pipeline.Stage, elapsed time.Duration) {
	r.stageDuration.WithLabelValues(s.Name).Set(elapsed.Seconds())
	r.stageSuccess.WithLabelValues(s.Name).Set(1)
}

// StageFailed implements pipeline.Listener.
func (r *Recorder) StageFailed(s pipeline.Stage, elapsed time.Duration, _ error) {
	r.stageDuration.WithLabelValues(s.Name).Set(elapsed.Seconds())
	r.stageSuccess.WithLabelValues(s.Name).Set(0)
}

// StrategyStarted implements deps.Listener.
func (r *Recorder) StrategyStarted(string, int) {}

// StrategyFailed implements deps.Listener.
func (r *Recorder) StrategyFailed(name string, _ error) {
	r.installAttempts.WithLabelValues(name, "failure").Inc()
}

// StrategySucceeded implements deps.Listener.
func (r *Recorder) StrategySucceeded(name string, degraded bool) {
	r.installAttempts.WithLabelValues(name, "success").Inc()
	if degraded {
		r.installDegraded.Set(1)
	}
}

// Archive records the archive size and entry count.
func (r *Recorder) Archive(m *artifact.Manifest) {
	r.archiveBytes.Set(float64(m.Size))
	r.archiveEntries.Set(float64(len(m.Entries)))
}

// Finish records the overall outcome.
func (r *Recorder) Finish(err error, elapsed time.Duration) {
	if err == nil {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}
	r.runDuration.Set(elapsed.Seconds())
	r.lastRun.Set(float64(r.now().Unix()))
}

// WriteFile atomically writes all metrics to path in text format.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
