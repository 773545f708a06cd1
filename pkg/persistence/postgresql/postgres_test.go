package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/persistence"
	"github.com/dukex/runnr/pkg/persistence/postgresql"
	"github.com/dukex/runnr/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"workflow_slots", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T, key string) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("runnr_test"),
			postgres.WithUsername("runnr"),
			postgres.WithPassword("runnr"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL, key)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t, "")

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)

	var tableExists bool
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'workflow_slots')",
	).Scan(&tableExists))
	assert.True(t, tableExists)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	again, err := postgresql.NewPersistence(ctx, logger, databaseURL, "")
	require.NoError(t, err)
	require.NoError(t, again.Close(ctx))
}

func TestPersistence_SlotLifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t, "pg-slot")

	_, err := p.Load(ctx)
	require.ErrorIs(t, err, persistence.ErrSlotEmpty)

	w := testutil.CreateTestWorkflow(
		testutil.WithName("Ordered"),
		testutil.WithTriggers("workflow_dispatch", models.NewOrderedMap(), "push", models.NewOrderedMap()),
		testutil.WithEnv("zeta", "1", "alpha", "2"),
	)

	require.NoError(t, p.Save(ctx, w))

	loaded, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, w, loaded)
	assert.Equal(t, []string{"workflow_dispatch", "push"}, loaded.On.Keys())

	w.Name = "Updated"
	require.NoError(t, p.Save(ctx, w))

	loaded, err = p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Updated", loaded.Name)

	exists, err := p.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, p.Clear(ctx))

	exists, err = p.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, p.HealthCheck(ctx))
}
