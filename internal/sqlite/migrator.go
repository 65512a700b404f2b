// This file implements the versioned schema migrator.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/mesh-intelligence/flipstore/pkg/types"
)

// CurrentSchemaVersion is the schema version this build brings stores up to.
const CurrentSchemaVersion = 2

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const schemaVersionDDL = `CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`

// Migrator applies the numbered migration scripts to a database.
type Migrator struct {
	db      *sql.DB
	scripts fs.FS
	target  int
	logger  *slog.Logger
	now     func() time.Time
}

// NewMigrator returns a migrator for db using the embedded scripts. A nil
// logger uses slog.Default().
func NewMigrator(db *sql.DB, logger *slog.Logger) *Migrator {
	if logger == nil {
		logger = slog.Default()
	}
	scripts, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		// The directory is compiled in; Sub only fails on an invalid name.
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return &Migrator{
		db:      db,
		scripts: scripts,
		target:  CurrentSchemaVersion,
		logger:  logger,
		now:     time.Now,
	}
}

// WithScripts replaces the script source and target version. Tests use it
// to inject scripts from a fstest.MapFS.
func (m *Migrator) WithScripts(scripts fs.FS, target int) *Migrator {
	m.scripts = scripts
	m.target = target
	return m
}

// Target returns the version Migrate brings the store up to.
func (m *Migrator) Target() int {
	return m.target
}

// CurrentVersion returns the highest applied version, or 0 for a new store.
// It creates the version table if it is missing.
func (m *Migrator) CurrentVersion() (int, error) {
	if _, err := m.db.Exec(schemaVersionDDL); err != nil {
		return 0, fmt.Errorf("creating schema_version: %w", err)
	}
	return currentVersion(m.db)
}

func currentVersion(q Querier) (int, error) {
	var v sql.NullInt64
	if err := q.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(v.Int64), nil
}

// Migrate applies every version after the current one up to the target in
// a single transaction. Any failure rolls back the whole run and leaves the
// recorded version unchanged. It is a no-op when the store is current.
func (m *Migrator) Migrate() error {
	current, err := m.CurrentVersion()
	if err != nil {
		return err
	}
	if current > m.target {
		return fmt.Errorf("store at version %d, build supports %d: %w", current, m.target, types.ErrSchemaTooNew)
	}
	if current == m.target {
		m.logger.Debug("schema is current", "version", current)
		return nil
	}

	m.logger.Info("migrating schema", "from", current, "to", m.target)
	err = withTx(m.db, func(q Querier) error {
		for v := current + 1; v <= m.target; v++ {
			if err := m.apply(q, v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrating schema from version %d: %w", current, err)
	}
	m.logger.Info("schema migrated", "version", m.target)
	return nil
}

func (m *Migrator) apply(q Querier, version int) error {
	name, statements, err := loadMigration(m.scripts, version)
	if err != nil {
		return err
	}
	m.logger.Debug("applying migration", "version", version, "script", name, "statements", len(statements))
	for i, stmt := range statements {
		if _, err := q.Exec(stmt); err != nil {
			return fmt.Errorf("%s statement %d: %w", name, i+1, err)
		}
	}
	if _, err := q.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		version, formatTime(m.now()),
	); err != nil {
		return fmt.Errorf("recording version %d: %w", version, err)
	}
	return nil
}
