package stores

import (
	"context"
	"time"
)

// Entry is one journaled configuration lifecycle event.
type Entry struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Kind        string    `json:"kind"`
	Path        string    `json:"path"`
	FromVersion int       `json:"from_version"`
	ToVersion   int       `json:"to_version"`
	Level       string    `json:"level"`
	Message     string    `json:"message"`
	Data        string    `json:"data"` // JSON blob
	Timestamp   time.Time `json:"timestamp"`
}

// Filter narrows ListEntries. Empty fields match everything.
type Filter struct {
	Kind   string
	Type   string
	Path   string
	Since  time.Time
	Limit  int
	Offset int
}

// Journal is the persistence interface the CLI records events through.
type Journal interface {
	AppendEntry(ctx context.Context, entry *Entry) error
	ListEntries(ctx context.Context, filter Filter) ([]*Entry, error)
	PruneEntries(ctx context.Context, before time.Time) (int64, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// DefaultListLimit applies when Filter.Limit is not positive.
const DefaultListLimit = 100
