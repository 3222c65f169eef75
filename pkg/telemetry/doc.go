// Package telemetry provides the observability plumbing of vcfg.
//
// It bundles structured logging (zerolog), tracing (OpenTelemetry), metrics
// (Prometheus) and lifecycle events into one Telemetry value built from a
// Config. The config engine accepts each piece through its options, so a
// library user can wire only what they need.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/vcfg.prom"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	engine := config.NewEngine(config.WithTelemetry(tel))
//
// # Logging
//
// Logger wraps a zerolog.Logger. Console and JSON formats are supported and
// output goes to stderr, stdout or a file:
//
//	logger := tel.Logger.NewComponentLogger("cli").WithKind("app", path)
//	logger.Info("migrated")
//
// # Tracing
//
// Loads and commits open the spans config.load and config.commit with the
// kind, path and mode as attributes. Every applied migration step is added to
// the load span as a "migration" event. Exporters: otlp (gRPC), stdout, none.
// A nil *Tracer starts no-op spans.
//
// # Metrics
//
// Counters for loads, created defaults, migration steps, commits and errors by
// class, and a load latency histogram. The CLI is short lived, so metrics are
// not served over HTTP; WriteTextfile dumps them for the node exporter
// textfile collector on shutdown.
//
// # Events
//
// EventPublisher delivers config.created, config.loaded, config.migrated,
// config.committed and config.failed events to subscribers in publication
// order, synchronously unless EnableAsync is set. The journal in package
// stores subscribes to persist them.
package telemetry
