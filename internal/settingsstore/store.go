// Package settingsstore persists per-source filter settings backing
// GET/POST /index/settings/{source} (spec.md §6). It is a thin
// Redis-backed sibling of the cursor store, sharing its configured key
// prefix (default "index:") and keyed under "{prefix}settings:{source}".
package settingsstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledge-collector/internal/config"
	"knowledge-collector/pkg/types"
)

// Store is a Redis-backed persister of one IndexRequest per source.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New connects to Redis and returns a ready Store.
func New(cfg config.RedisConfig) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("settingsstore: failed to connect to redis: %w", err)
	}
	return newWithClient(client, cfg.KeyPrefix), nil
}

func newWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "index:"
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(source types.Source) string {
	return s.keyPrefix + "settings:" + string(source)
}

// Get returns the persisted settings for source, or the zero
// IndexRequest if none have been saved yet.
func (s *Store) Get(ctx context.Context, source types.Source) (types.IndexRequest, error) {
	raw, err := s.client.Get(ctx, s.key(source)).Result()
	if err == redis.Nil {
		return types.IndexRequest{}, nil
	}
	if err != nil {
		return types.IndexRequest{}, fmt.Errorf("settingsstore: get(%s): %w", source, err)
	}
	var req types.IndexRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return types.IndexRequest{}, fmt.Errorf("settingsstore: decode(%s): %w", source, err)
	}
	return req, nil
}

// Save persists req as the settings for source.
func (s *Store) Save(ctx context.Context, source types.Source, req types.IndexRequest) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("settingsstore: encode(%s): %w", source, err)
	}
	if err := s.client.Set(ctx, s.key(source), raw, 0).Err(); err != nil {
		return fmt.Errorf("settingsstore: save(%s): %w", source, err)
	}
	return nil
}
