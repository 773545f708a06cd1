// Package sqlbase provides schema migrations shared by SQL backends.
package sqlbase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Migration is one schema change. Versions must be unique and positive.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrator applies migrations once each, in version order, recording them
// in schema_migrations.
type Migrator struct {
	db         *sql.DB
	logger     *slog.Logger
	migrations []Migration
}

func NewMigrator(logger *slog.Logger, db *sql.DB, migrations []Migration) (*Migrator, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	for i, m := range sorted {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration %q has invalid version %d", m.Description, m.Version)
		}

		if i > 0 && sorted[i-1].Version == m.Version {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
	}

	return &Migrator{
		db:         db,
		logger:     logger,
		migrations: sorted,
	}, nil
}

// LatestVersion returns the highest known migration version, 0 when none.
func (m *Migrator) LatestVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}

	return m.migrations[len(m.migrations)-1].Version
}

// Migrate brings the schema up to LatestVersion.
func (m *Migrator) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}

		if err := m.apply(ctx, migration); err != nil {
			return err
		}
	}

	m.logger.InfoContext(ctx, "Schema is up to date", "version", m.LatestVersion())

	return nil
}

// CurrentVersion returns the highest applied migration, 0 when none.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int

	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to query current schema version: %w", err)
	}

	return version, nil
}

func (m *Migrator) apply(ctx context.Context, migration Migration) (err error) {
	m.logger.InfoContext(ctx, "Applying migration", "version", migration.Version, "description", migration.Description)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", migration.Version, err)
	}

	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.ExecContext(ctx, migration.SQL); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
		migration.Version, migration.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
	}

	return nil
}
