// Package stores persists the configuration journal: a SQLite table of
// lifecycle events (created, migrated, committed, failed) written as the
// engine publishes them, with schema migrations applied by golang-migrate.
package stores
