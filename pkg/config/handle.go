package config

import (
	"context"

	"github.com/vcfg/vcfg/pkg/telemetry"
)

// Handle owns a loaded, latest-version document and its file path.
// Changes made through Config are persisted only by Commit.
type Handle[T any] struct {
	path         string
	doc          *T
	migratedFrom int
	kind         *Kind[T]
	engine       *Engine
}

// Path returns the absolute file path of the document.
func (h *Handle[T]) Path() string {
	return h.path
}

// Config returns the document for reading and mutation.
func (h *Handle[T]) Config() *T {
	return h.doc
}

// Version returns the schema version of the in-memory document.
func (h *Handle[T]) Version() int {
	return h.kind.Latest()
}

// MigratedFrom returns the version found on disk. It equals Version when no
// migration ran or the file was created from a default.
func (h *Handle[T]) MigratedFrom() int {
	return h.migratedFrom
}

// Commit validates the document against the latest schema and atomically
// writes it to Path. On a validation failure nothing is written.
func (h *Handle[T]) Commit(ctx context.Context) (err error) {
	e := h.engine
	_, span := e.tracer.StartSpan(ctx, "config.commit",
		telemetry.AttrKind.String(h.kind.Name),
		telemetry.AttrPath.String(h.path),
	)
	defer func() {
		telemetry.EndSpan(span, err)
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.metrics.RecordCommit(h.kind.Name, outcome)
	}()

	if vs := e.check(h.kind, h.doc); len(vs) > 0 {
		return e.fail(h.kind, NewCommitValidationError(h.path, h.kind.Latest(), vs))
	}

	if err := WriteDocument(h.path, h.doc, WriteOptions{Perm: h.kind.perm()}); err != nil {
		return e.fail(h.kind, err)
	}

	e.logger.Debug().Str("kind", h.kind.Name).Str("path", h.path).Msg("committed config file")
	_ = e.events.PublishCommitted(h.kind.Name, h.path, h.kind.Latest())
	return nil
}

// Readonly returns a read-only view sharing this handle's document.
func (h *Handle[T]) Readonly() *ReadonlyHandle[T] {
	return &ReadonlyHandle[T]{
		path:         h.path,
		doc:          h.doc,
		migratedFrom: h.migratedFrom,
	}
}

// ReadonlyHandle exposes a loaded document without the ability to persist it.
type ReadonlyHandle[T any] struct {
	path         string
	doc          *T
	migratedFrom int
}

// Path returns the absolute file path of the document.
func (r *ReadonlyHandle[T]) Path() string {
	return r.path
}

// Config returns a copy of the document's top-level value.
func (r *ReadonlyHandle[T]) Config() T {
	return *r.doc
}

// MigratedFrom returns the version found on disk.
func (r *ReadonlyHandle[T]) MigratedFrom() int {
	return r.migratedFrom
}
