package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/vcfg/vcfg/pkg/telemetry"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "journal.db")})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Fatal("expected health check to fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// Migrating twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected an error for an empty path")
	}
}

func TestAppendAndListEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []*Entry{
		{ID: "e1", Type: telemetry.EventTypeCreated, Kind: "project", Path: "/p/project.yaml", FromVersion: -1, ToVersion: 0, Timestamp: base},
		{ID: "e2", Type: telemetry.EventTypeMigrated, Kind: "app", Path: "/p/app.yaml", FromVersion: 0, ToVersion: 3, Data: `{"steps":3}`, Timestamp: base.Add(time.Minute)},
		{ID: "e3", Type: telemetry.EventTypeFailed, Kind: "app", Path: "/p/app.yaml", FromVersion: -1, ToVersion: -1, Level: telemetry.EventLevelError, Message: "parse", Timestamp: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.AppendEntry(ctx, e); err != nil {
			t.Fatalf("failed to append %s: %v", e.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all newest first", filter: Filter{}, want: []string{"e3", "e2", "e1"}},
		{name: "by kind", filter: Filter{Kind: "app"}, want: []string{"e3", "e2"}},
		{name: "by type", filter: Filter{Type: telemetry.EventTypeMigrated}, want: []string{"e2"}},
		{name: "by path", filter: Filter{Path: "/p/project.yaml"}, want: []string{"e1"}},
		{name: "since", filter: Filter{Since: base.Add(time.Minute)}, want: []string{"e3", "e2"}},
		{name: "limit and offset", filter: Filter{Limit: 1, Offset: 1}, want: []string{"e2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListEntries(ctx, tt.filter)
			if err != nil {
				t.Fatalf("failed to list entries: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d entries, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("entry %d: expected %s, got %s", i, id, got[i].ID)
				}
			}
		})
	}

	got, err := store.ListEntries(ctx, Filter{Type: telemetry.EventTypeMigrated})
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	e := got[0]
	if e.Data != `{"steps":3}` || e.FromVersion != 0 || e.ToVersion != 3 || e.Level != telemetry.EventLevelInfo {
		t.Errorf("unexpected entry: %+v", e)
	}
	if !e.Timestamp.Equal(base.Add(time.Minute)) {
		t.Errorf("expected timestamp %v, got %v", base.Add(time.Minute), e.Timestamp)
	}
}

func TestAppendEntry_Validation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.AppendEntry(ctx, &Entry{Type: "x"}); err == nil {
		t.Fatal("expected an error for an entry without id")
	}

	e := &Entry{ID: "dup", Type: "x", Kind: "k", Path: "p", Timestamp: time.Now()}
	if err := store.AppendEntry(ctx, e); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := store.AppendEntry(ctx, e); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestPruneEntries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{48 * time.Hour, 24 * time.Hour, time.Minute} {
		e := &Entry{ID: string(rune('a' + i)), Type: "x", Kind: "k", Path: "p", Timestamp: now.Add(-age)}
		if err := store.AppendEntry(ctx, e); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	n, err := store.PruneEntries(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 pruned entries, got %d", n)
	}

	left, err := store.ListEntries(ctx, Filter{})
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(left) != 1 || left[0].ID != "c" {
		t.Errorf("unexpected remaining entries: %+v", left)
	}
}

func TestSubscriber_JournalsPublishedEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	publisher, err := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("failed to create publisher: %v", err)
	}
	var writeErrs []error
	publisher.Subscribe(Subscriber(ctx, store, func(err error) { writeErrs = append(writeErrs, err) }), nil)

	if err := publisher.PublishMigrated("app", "/p/app.yaml", 0, 3, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	if err := publisher.PublishCommitted("app", "/p/app.yaml", 3); err != nil {
		t.Fatalf("failed to publish: %v", err)
	}
	if len(writeErrs) > 0 {
		t.Fatalf("journal writes failed: %v", writeErrs)
	}

	got, err := store.ListEntries(ctx, Filter{Kind: "app"})
	if err != nil {
		t.Fatalf("failed to list entries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	types := map[string]bool{got[0].Type: true, got[1].Type: true}
	if !types[telemetry.EventTypeMigrated] || !types[telemetry.EventTypeCommitted] {
		t.Errorf("unexpected entry types: %v", types)
	}
}

type failingJournal struct{ Journal }

func (failingJournal) AppendEntry(context.Context, *Entry) error {
	return errors.New("disk full")
}

func TestSubscriber_ReportsWriteErrors(t *testing.T) {
	var got error
	sub := Subscriber(context.Background(), failingJournal{}, func(err error) { got = err })
	sub(telemetry.Event{ID: "x", Type: telemetry.EventTypeLoaded})
	if got == nil || got.Error() != "disk full" {
		t.Fatalf("expected write error to be reported, got %v", got)
	}
}

func TestEntryFromEvent(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry, err := EntryFromEvent(telemetry.Event{
		ID:          "id",
		Type:        telemetry.EventTypeMigrated,
		Kind:        "app",
		Path:        "/p/app.yaml",
		FromVersion: 1,
		ToVersion:   3,
		Level:       telemetry.EventLevelInfo,
		Message:     "migrated",
		Data:        map[string]interface{}{"steps": []string{"x"}},
		Timestamp:   ts,
	})
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}
	if entry.Data != `{"steps":["x"]}` {
		t.Errorf("unexpected data: %s", entry.Data)
	}
	if entry.FromVersion != 1 || entry.ToVersion != 3 || !entry.Timestamp.Equal(ts) {
		t.Errorf("unexpected entry: %+v", entry)
	}

	empty, err := EntryFromEvent(telemetry.Event{ID: "id"})
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}
	if empty.Data != "{}" {
		t.Errorf("expected empty object, got %s", empty.Data)
	}
}
