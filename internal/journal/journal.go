// Package journal records store dispatches in SQLite for later inspection.
//
// A Journal is a store.Recorder. Each Journal writes under one session ID so
// several runs can share a database file. Records are never replayed into a
// store; the journal only answers "what happened".
package journal

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - UNIQUE index on (session, provider, seq)
const currentSchemaVersion = 1

// Journal is a SQLite-backed dispatch log.
// Uses WAL mode so readers can list while a run is writing.
type Journal struct {
	db      *sql.DB
	session string
}

// Option configures Open.
type Option func(*Journal)

// WithSession sets the session ID written with every record.
// Default: a fresh UUIDv7.
func WithSession(id string) Option {
	return func(j *Journal) {
		if id != "" {
			j.session = id
		}
	}
}

// Open creates or opens a journal database at path and applies pragmas
// and migrations. Safe to call on an existing file.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect journal: %w", err)
	}

	// SQLite allows one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	j := &Journal{db: db}
	for _, opt := range opts {
		opt(j)
	}
	if j.session == "" {
		j.session = uuid.Must(uuid.NewV7()).String()
	}
	return j, nil
}

// Session returns the session ID this journal writes under.
func (j *Journal) Session() string {
	return j.session
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 makes (session, provider, seq) unique so a recorder retrying
// a write cannot duplicate a dispatch.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_dispatches_provider_seq
		ON dispatches(session, provider, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func (j *Journal) schemaVersion() (int, error) {
	var version int
	err := j.db.QueryRow("PRAGMA user_version").Scan(&version)
	return version, err
}

func (j *Journal) pragma(name string) (string, error) {
	var v string
	err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&v)
	return v, err
}
