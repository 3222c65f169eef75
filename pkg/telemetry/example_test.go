package telemetry_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vcfg/vcfg/pkg/telemetry"
)

// Example_basicSetup demonstrates building the telemetry bundle.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())
	telemetry.FromContext(ctx).Debug("not printed at error level")

	fmt.Println(telemetry.FromTelemetryContext(ctx) == tel)
	// Output: true
}

// Example_eventFiltering demonstrates subscribing to a subset of events.
func Example_eventFiltering() {
	publisher, _ := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})

	publisher.Subscribe(func(e telemetry.Event) {
		fmt.Printf("%s %s v%d->v%d\n", e.Type, e.Kind, e.FromVersion, e.ToVersion)
	}, telemetry.FilterByType(telemetry.EventTypeMigrated))

	_ = publisher.PublishLoaded("project", "/p/.vcfg/project.yaml", 0)
	_ = publisher.PublishMigrated("app", "/p/.vcfg/app.yaml", 1, 3, []string{"a", "b"})
	// Output: config.migrated app v1->v3
}

// Example_errorRecording demonstrates ending a span with an error.
func Example_errorRecording() {
	tracer, _ := telemetry.NewTracer(telemetry.TracingConfig{Enabled: false}, "vcfg", "dev")

	_, span := tracer.StartSpan(context.Background(), "config.load", telemetry.AttrKind.String("app"))
	telemetry.EndSpan(span, errors.New("parse failed"))

	fmt.Println("span ended")
	// Output: span ended
}

// Example_metricsTextfile demonstrates dumping metrics for the textfile collector.
func Example_metricsTextfile() {
	dir, _ := os.MkdirTemp("", "vcfg-metrics")
	defer os.RemoveAll(dir)

	metrics, _ := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:      true,
		Namespace:    "vcfg",
		TextfilePath: filepath.Join(dir, "vcfg.prom"),
	})
	metrics.RecordMigrationStep("app", 0)
	metrics.RecordError("app", "parse")

	if err := metrics.WriteTextfile(); err != nil {
		panic(err)
	}
	_, err := os.Stat(filepath.Join(dir, "vcfg.prom"))
	fmt.Println(err == nil)
	// Output: true
}
