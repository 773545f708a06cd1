package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/runnr/pkg/persistence"
	"github.com/dukex/runnr/pkg/persistence/file"
	"github.com/dukex/runnr/pkg/persistence/postgresql"
	"github.com/dukex/runnr/pkg/persistence/redis"
)

// NewPersistence opens the workflow slot named key at storageURL. The URL
// scheme picks the backend: file:// (or a bare path), redis:// and
// rediss://, postgres:// and postgresql://.
func NewPersistence(ctx context.Context, logger *slog.Logger, storageURL, key string) (persistence.Slot, error) {
	var (
		slot persistence.Slot
		err  error
	)

	switch provider := parsePersistenceProvider(storageURL); provider {
	case "file":
		slot, err = file.NewPersistence(storageURL, key)
	case "redis", "rediss":
		slot, err = redis.NewPersistence(ctx, logger, storageURL, key)
	case "postgres", "postgresql":
		slot, err = postgresql.NewPersistence(ctx, logger, storageURL, key)
	default:
		return nil, fmt.Errorf("%w: %s", persistence.ErrUnsupportedBackend, provider)
	}

	if err != nil {
		return nil, err
	}

	return slot, nil
}

func parsePersistenceProvider(storageURL string) string {
	scheme, _, found := strings.Cut(storageURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
