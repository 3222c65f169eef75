package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/vcfg/vcfg/pkg/telemetry"
)

// Engine loads, migrates, validates and persists configuration documents.
// It holds no per-file state; one engine serves every kind.
type Engine struct {
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	events   *telemetry.EventPublisher
	validate *validator.Validate
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The engine adds component=config to it.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer sets the tracer used for load and commit spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(ep *telemetry.EventPublisher) Option {
	return func(e *Engine) {
		e.events = ep
	}
}

// WithTelemetry wires every component of a telemetry bundle.
func WithTelemetry(t *telemetry.Telemetry) Option {
	return func(e *Engine) {
		e.logger = t.Logger.Zerolog()
		e.metrics = t.Metrics
		e.tracer = t.Tracer
		e.events = t.Events
	}
}

// NewEngine creates an engine. Without options it logs nothing and records no telemetry.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:   zerolog.Nop(),
		validate: newStructValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "config").Logger()
	return e
}

// LoadMutable loads the kind's file and returns a handle that can commit changes.
// A missing file without a default yields (nil, nil) and nothing is written.
func LoadMutable[T any](ctx context.Context, e *Engine, kind *Kind[T], opts LoadOptions[T]) (*Handle[T], error) {
	return load(ctx, e, kind, opts, "mutable")
}

// LoadReadonly is LoadMutable without the ability to commit. Loading still
// persists an upgraded document when a migration ran.
func LoadReadonly[T any](ctx context.Context, e *Engine, kind *Kind[T], opts LoadOptions[T]) (*ReadonlyHandle[T], error) {
	h, err := load(ctx, e, kind, opts, "readonly")
	if err != nil || h == nil {
		return nil, err
	}
	return h.Readonly(), nil
}

// ResolvePath returns the absolute file path a load with opts would use.
func ResolvePath[T any](kind *Kind[T], opts LoadOptions[T]) (string, error) {
	path := opts.Path
	if path == "" {
		if opts.Dir == "" {
			return "", fmt.Errorf("%s config: directory or path is required", kind.Name)
		}
		path = filepath.Join(opts.Dir, kind.FileName)
	}
	return filepath.Abs(path)
}

func load[T any](ctx context.Context, e *Engine, kind *Kind[T], opts LoadOptions[T], mode string) (h *Handle[T], err error) {
	if err := kind.Check(); err != nil {
		return nil, fmt.Errorf("invalid kind declaration: %w", err)
	}
	path, err := ResolvePath(kind, opts)
	if err != nil {
		return nil, err
	}

	ctx, span := e.tracer.StartSpan(ctx, "config.load",
		telemetry.AttrKind.String(kind.Name),
		telemetry.AttrPath.String(path),
		telemetry.AttrMode.String(mode),
	)
	timer := telemetry.NewTimer()
	defer func() {
		telemetry.EndSpan(span, err)
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
		case h == nil:
			outcome = "absent"
		}
		e.metrics.RecordLoad(kind.Name, outcome, timer.Duration())
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := e.logger.With().Str("kind", kind.Name).Str("path", path).Logger()
	latest := kind.Latest()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if opts.Default == nil {
			log.Debug().Msg("config file not found")
			return nil, nil
		}
		return create(e, kind, path, opts.Default, log)
	}
	if err != nil {
		return nil, e.fail(kind, NewIOError(path, "read", err))
	}

	raw, err := parseDocument(data)
	if err != nil {
		return nil, e.fail(kind, NewParseError(path, err))
	}

	from, err := detectVersion(path, raw, latest)
	if err != nil {
		return nil, e.fail(kind, err)
	}
	// Schemas pin the version to an integer literal; 2.0 must validate as 2.
	raw[VersionField] = from
	log.Debug().Int("version", from).Int("latest", latest).Msg("detected config version")

	var steps []string
	doc, err := runChain(path, raw, from, kind.Schemas, kind.Migrations, func(v int, m Migration) {
		steps = append(steps, m.Description)
		e.metrics.RecordMigrationStep(kind.Name, v)
		telemetry.AddEvent(span, "migration",
			telemetry.AttrFromVersion.Int(v),
			telemetry.AttrToVersion.Int(v+1),
		)
		log.Debug().Int("from", v).Int("to", v+1).Str("migration", m.Description).Msg("applied migration")
	})
	if err != nil {
		return nil, e.fail(kind, err)
	}

	value := new(T)
	if err := decodeDocument(doc, value); err != nil {
		step := -1
		if from < latest {
			step = latest - 1
		}
		return nil, e.fail(kind, NewMigrationValidationError(path, latest, step, nil, err).AsInternal())
	}

	if from < latest {
		if err := WriteDocument(path, value, WriteOptions{Perm: kind.perm()}); err != nil {
			return nil, e.fail(kind, err)
		}
		log.Info().Int("from", from).Int("to", latest).Msg("migrated config file")
		_ = e.events.PublishMigrated(kind.Name, path, from, latest, steps)
	} else {
		_ = e.events.PublishLoaded(kind.Name, path, latest)
	}

	return &Handle[T]{
		path:         path,
		doc:          value,
		migratedFrom: from,
		kind:         kind,
		engine:       e,
	}, nil
}

// create builds, validates and writes a default document for a missing file.
func create[T any](e *Engine, kind *Kind[T], path string, gen func() (T, error), log zerolog.Logger) (*Handle[T], error) {
	value, err := gen()
	if err != nil {
		return nil, fmt.Errorf("failed to build default %s config: %w", kind.Name, err)
	}

	latest := kind.Latest()
	if vs := e.check(kind, &value); len(vs) > 0 {
		return nil, e.fail(kind, NewCommitValidationError(path, latest, vs))
	}

	if err := WriteDocument(path, &value, WriteOptions{Template: kind.Template, Perm: kind.perm()}); err != nil {
		return nil, e.fail(kind, err)
	}

	log.Info().Int("version", latest).Msg("created config file from default")
	e.metrics.RecordCreated(kind.Name)
	_ = e.events.PublishCreated(kind.Name, path, latest)

	return &Handle[T]{
		path:         path,
		doc:          &value,
		migratedFrom: latest,
		kind:         kind,
		engine:       e,
	}, nil
}

// check validates a typed document against the latest schema and its struct tags.
func (e *Engine) check(kind schemaHolder, value any) Violations {
	doc, err := toDocument(value)
	if err != nil {
		return Violations{{Expected: "a YAML-serialisable document", Actual: err.Error()}}
	}

	vs := kind.schemaSet().Validate(kind.schemaSet().Latest(), doc)
	for _, v := range structViolations(e.validate, value) {
		if !vs.Has(v.Path) {
			vs = append(vs, v)
		}
	}
	return vs
}

// fail records a lifecycle error and returns it unchanged.
func (e *Engine) fail(kind schemaHolder, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		e.metrics.RecordError(kind.kindName(), string(ce.Class))
		_ = e.events.PublishFailed(kind.kindName(), ce.Path, ce.Operation, string(ce.Class), ce.Error())
		e.logger.Debug().Err(err).Str("kind", kind.kindName()).Str("class", string(ce.Class)).Msg("config operation failed")
	}
	return err
}

// schemaHolder is the non-generic view of a Kind used by engine helpers.
type schemaHolder interface {
	kindName() string
	schemaSet() *SchemaSet
}

func (k *Kind[T]) kindName() string      { return k.Name }
func (k *Kind[T]) schemaSet() *SchemaSet { return k.Schemas }
