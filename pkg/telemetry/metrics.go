package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for configuration lifecycle operations.
// A nil *Metrics, or one built with metrics disabled, records nothing.
type Metrics struct {
	config MetricsConfig

	loads          *prometheus.CounterVec
	loadDuration   *prometheus.HistogramVec
	created        *prometheus.CounterVec
	migrationSteps *prometheus.CounterVec
	commits        *prometheus.CounterVec
	errorsByClass  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_loads_total",
				Help:      "Total number of configuration loads by outcome",
			},
			[]string{"kind", "outcome"},
		),
		loadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "config_load_duration_seconds",
				Help:      "Duration of configuration loads in seconds",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_defaults_created_total",
				Help:      "Total number of configuration files created from defaults",
			},
			[]string{"kind"},
		),
		migrationSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_migration_steps_total",
				Help:      "Total number of migration steps applied",
			},
			[]string{"kind", "from"},
		),
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_commits_total",
				Help:      "Total number of commits by outcome",
			},
			[]string{"kind", "outcome"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_errors_total",
				Help:      "Total number of lifecycle errors by error class",
			},
			[]string{"kind", "class"},
		),
	}

	registry.MustRegister(
		m.loads,
		m.loadDuration,
		m.created,
		m.migrationSteps,
		m.commits,
		m.errorsByClass,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// RecordLoad records a finished load with its outcome and duration.
func (m *Metrics) RecordLoad(kind, outcome string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.loads.WithLabelValues(kind, outcome).Inc()
	m.loadDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordCreated records a file created from a default generator.
func (m *Metrics) RecordCreated(kind string) {
	if !m.enabled() {
		return
	}
	m.created.WithLabelValues(kind).Inc()
}

// RecordMigrationStep records one applied migration from version from.
func (m *Metrics) RecordMigrationStep(kind string, from int) {
	if !m.enabled() {
		return
	}
	m.migrationSteps.WithLabelValues(kind, strconv.Itoa(from)).Inc()
}

// RecordCommit records a commit attempt with its outcome.
func (m *Metrics) RecordCommit(kind, outcome string) {
	if !m.enabled() {
		return
	}
	m.commits.WithLabelValues(kind, outcome).Inc()
}

// RecordError records a lifecycle error by class.
func (m *Metrics) RecordError(kind, class string) {
	if !m.enabled() {
		return
	}
	m.errorsByClass.WithLabelValues(kind, class).Inc()
}

// Registry returns the registry holding the metrics, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes all metrics to path in the node exporter textfile format.
// It is a no-op when metrics are disabled or no path is configured.
func (m *Metrics) WriteTextfile() error {
	if !m.enabled() || m.config.TextfilePath == "" {
		return nil
	}
	return prometheus.WriteToTextfile(m.config.TextfilePath, m.registry)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
