package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/vcfg/vcfg/pkg/telemetry"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Journal on SQLite.
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Journal = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: opens a separate database.
	if isMemory(cfg.Path) {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Init opens the database connection and enables WAL mode.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path
	if !isMemory(dsn) {
		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// AppendEntry appends an entry to the journal.
func (s *SQLiteStore) AppendEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		return fmt.Errorf("journal entry id is required")
	}
	if entry.Data == "" {
		entry.Data = "{}"
	}
	if entry.Level == "" {
		entry.Level = telemetry.EventLevelInfo
	}

	query := `
		INSERT INTO journal (id, type, kind, path, from_version, to_version, level, message, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Type,
		entry.Kind,
		entry.Path,
		entry.FromVersion,
		entry.ToVersion,
		entry.Level,
		entry.Message,
		entry.Data,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}

	return nil
}

// ListEntries returns entries matching filter, newest first.
func (s *SQLiteStore) ListEntries(ctx context.Context, filter Filter) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Path != "" {
		where = append(where, "path = ?")
		args = append(args, filter.Path)
	}
	if !filter.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, type, kind, path, from_version, to_version, level, message, data, timestamp
		FROM journal
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal entries: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		entry := &Entry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&entry.Kind,
			&entry.Path,
			&entry.FromVersion,
			&entry.ToVersion,
			&entry.Level,
			&entry.Message,
			&entry.Data,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}

	return entries, nil
}

// PruneEntries deletes entries older than before and returns how many were removed.
func (s *SQLiteStore) PruneEntries(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE timestamp < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return result.RowsAffected()
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// EntryFromEvent converts a published lifecycle event into a journal entry.
func EntryFromEvent(event telemetry.Event) (*Entry, error) {
	data := "{}"
	if len(event.Data) > 0 {
		raw, err := json.Marshal(event.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode event data: %w", err)
		}
		data = string(raw)
	}
	return &Entry{
		ID:          event.ID,
		Type:        event.Type,
		Kind:        event.Kind,
		Path:        event.Path,
		FromVersion: event.FromVersion,
		ToVersion:   event.ToVersion,
		Level:       event.Level,
		Message:     event.Message,
		Data:        data,
		Timestamp:   event.Timestamp,
	}, nil
}

// Subscriber returns an event subscriber that journals every event it receives.
// Subscribers cannot fail, so write errors are passed to onError when it is set.
func Subscriber(ctx context.Context, j Journal, onError func(error)) telemetry.EventSubscriber {
	return func(event telemetry.Event) {
		entry, err := EntryFromEvent(event)
		if err == nil {
			err = j.AppendEntry(ctx, entry)
		}
		if err != nil && onError != nil {
			onError(err)
		}
	}
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}
