// Package sqlbase provides schema migrations shared by SQL persistence backends.
package sqlbase

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
)

// migrationLockKey identifies the advisory lock held while a migration is applied.
const migrationLockKey = 7_420_311

// MigrationManager brings a database schema up to the latest registered version.
type MigrationManager struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations map[int]string
}

func NewMigrationManager(logger *slog.Logger, db *sql.DB, migrations map[int]string) *MigrationManager {
	return &MigrationManager{
		db:         db,
		logger:     logger.With("module", "migrations"),
		migrations: migrations,
	}
}

// RunMigrations applies, in ascending version order, every migration newer than the recorded
// schema version. Each version runs in its own transaction under an advisory lock, so instances
// starting together apply it once.
func (m *MigrationManager) RunMigrations(ctx context.Context) error {
	const ddl = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)`

	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	versions := make([]int, 0, len(m.migrations))
	for version := range m.migrations {
		versions = append(versions, version)
	}

	slices.Sort(versions)

	applied := 0

	for _, version := range versions {
		done, err := m.apply(ctx, version)
		if err != nil {
			return err
		}

		if done {
			applied++
		}
	}

	m.logger.InfoContext(ctx, "Database schema is up to date", "applied", applied, "versions", len(versions))

	return nil
}

// apply runs one migration unless it is already recorded. It reports whether it ran.
func (m *MigrationManager) apply(ctx context.Context, version int) (bool, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction for migration %d: %w", version, err)
	}

	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return false, fmt.Errorf("failed to lock migrations: %w", err)
	}

	var exists bool

	err = tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}

	if exists {
		return false, nil
	}

	m.logger.InfoContext(ctx, "Applying migration", "version", version)

	if _, err := tx.ExecContext(ctx, m.migrations[version]); err != nil {
		return false, fmt.Errorf("failed to execute migration %d: %w", version, err)
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, fmt.Errorf("failed to record migration %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit migration %d: %w", version, err)
	}

	return true, nil
}
