// Package redis stores the workflow slot under a Redis key.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/runnr/pkg/models"
	"github.com/dukex/runnr/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

// Persistence implements persistence.Slot on a single Redis string key.
type Persistence struct {
	client *goredis.Client
	logger *slog.Logger
	key    string
}

// NewPersistence connects using a redis:// or rediss:// URL and pings the server.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL, key string) (*Persistence, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if key == "" {
		key = persistence.DefaultSlotKey
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB, "key", key)

	return &Persistence{client: client, logger: logger, key: key}, nil
}

func (p *Persistence) Load(ctx context.Context) (*models.Workflow, error) {
	body, err := p.client.Get(ctx, p.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, persistence.NewSlotError("Load", p.key, persistence.ErrSlotEmpty)
		}

		return nil, persistence.NewSlotError("Load", p.key, err)
	}

	workflow, err := persistence.Decode(body)
	if err != nil {
		return nil, persistence.NewSlotError("Load", p.key, err)
	}

	return workflow, nil
}

func (p *Persistence) Save(ctx context.Context, workflow *models.Workflow) error {
	data, err := persistence.Encode(workflow)
	if err != nil {
		return persistence.NewSlotError("Save", p.key, err)
	}

	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return persistence.NewSlotError("Save", p.key, err)
	}

	return nil
}

func (p *Persistence) Clear(ctx context.Context) error {
	if err := p.client.Del(ctx, p.key).Err(); err != nil {
		return persistence.NewSlotError("Clear", p.key, err)
	}

	return nil
}

func (p *Persistence) Exists(ctx context.Context) (bool, error) {
	n, err := p.client.Exists(ctx, p.key).Result()
	if err != nil {
		return false, persistence.NewSlotError("Exists", p.key, err)
	}

	return n > 0, nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	return nil
}
