// Package postgresql stores workflow slots in a PostgreSQL table.
package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/persistence"
	"github.com/dukex/runnr/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements persistence.Slot as one row of workflow_slots.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger
	key    string
}

// NewPersistence connects, pings and migrates the database.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL, key string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if key == "" {
		key = persistence.DefaultSlotKey
	}

	migrator, err := sqlbase.NewMigrator(logger, database, migrations)
	if err == nil {
		err = migrator.Migrate(ctx)
	}

	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{db: database, logger: logger, key: key}, nil
}

func (p *Persistence) Load(ctx context.Context) (*models.Workflow, error) {
	var document []byte

	err := p.db.QueryRowContext(ctx, "SELECT document FROM workflow_slots WHERE key = $1", p.key).Scan(&document)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewSlotError("Load", p.key, persistence.ErrSlotEmpty)
		}

		return nil, persistence.NewSlotError("Load", p.key, err)
	}

	workflow, err := persistence.Decode(document)
	if err != nil {
		return nil, persistence.NewSlotError("Load", p.key, err)
	}

	return workflow, nil
}

func (p *Persistence) Save(ctx context.Context, workflow *models.Workflow) error {
	document, err := persistence.Encode(workflow)
	if err != nil {
		return persistence.NewSlotError("Save", p.key, err)
	}

	query := `
		INSERT INTO workflow_slots (key, document)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()
	`

	_, err = p.db.ExecContext(ctx, query, p.key, string(document))
	if err != nil {
		return persistence.NewSlotError("Save", p.key, err)
	}

	return nil
}

func (p *Persistence) Clear(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM workflow_slots WHERE key = $1", p.key)
	if err != nil {
		return persistence.NewSlotError("Clear", p.key, err)
	}

	return nil
}

func (p *Persistence) Exists(ctx context.Context) (bool, error) {
	var exists bool

	err := p.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM workflow_slots WHERE key = $1)", p.key).Scan(&exists)
	if err != nil {
		return false, persistence.NewSlotError("Exists", p.key, err)
	}

	return exists, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
