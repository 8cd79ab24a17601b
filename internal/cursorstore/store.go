// Package cursorstore implements the persistent cursor, job-status,
// advisory-lock, and content-hash bookkeeping backing incremental sync.
// It is the sole writer of cursors, hashes, locks, and job status.
package cursorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledge-collector/internal/config"
)

// Store is a Redis-backed implementation of the cursor/status/lock/hash
// bookkeeping described in spec §4.1, keyed the way §6's "Cursor
// persistence layout" lays out: index:cursor:{source}, index:hash:{source}:{id},
// index:status:{source}, index:lock:{source}.
type Store struct {
	client    *redis.Client
	keyPrefix string
	scripts   *scripts
}

type scripts struct {
	bulkSetHashes *redis.Script
	removeHashes  *redis.Script
	acquireLock   *redis.Script
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
		return nil, fmt.Errorf("cursorstore: failed to connect to redis: %w", err)
	}

	return newWithClient(client, cfg.KeyPrefix), nil
}

// newWithClient builds a Store around an already-constructed client,
// used directly by tests against a miniredis instance.
func newWithClient(client *redis.Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "index:"
	}
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		scripts: &scripts{
			bulkSetHashes: redis.NewScript(bulkSetHashesScript),
			removeHashes:  redis.NewScript(removeHashesScript),
			acquireLock:   redis.NewScript(acquireLockScript),
		},
	}
}

// Close releases the underlying Redis connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) cursorKey(source string) string {
	return s.keyPrefix + "cursor:" + source
}

func (s *Store) statusKey(source string) string {
	return s.keyPrefix + "status:" + source
}

func (s *Store) lockKey(source string) string {
	return s.keyPrefix + "lock:" + source
}

func (s *Store) hashKey(source, id string) string {
	return s.keyPrefix + "hash:" + source + ":" + id
}

func (s *Store) hashPrefix(source string) string {
	return s.keyPrefix + "hash:" + source + ":"
}

// bulkSetHashesScript performs an atomic multi-field SET across hash
// keys built from KEYS, mirroring the teacher's sliding-window script's
// pattern of doing the whole read-modify-write inside Lua so concurrent
// batches can't interleave.
const bulkSetHashesScript = `
for i = 1, #KEYS do
  redis.call('SET', KEYS[i], ARGV[i])
end
return #KEYS
`

// removeHashesScript removes a hash key plus any key sharing its id as
// a chunk-id prefix (spec §4.1 "remove_hashes... removes id and any
// chunk ids prefixed with id").
const removeHashesScript = `
local prefix = ARGV[1]
local cursor = 0
local removed = 0
repeat
  local result = redis.call('SCAN', cursor, 'MATCH', prefix .. '*', 'COUNT', 200)
  cursor = tonumber(result[1])
  local keys = result[2]
  for i = 1, #keys do
    redis.call('DEL', keys[i])
    removed = removed + 1
  end
until cursor == 0
return removed
`

// acquireLockScript grants the lock only if unset, matching the "at
// most one holder within the TTL window" invariant.
const acquireLockScript = `
local key = KEYS[1]
local holder = ARGV[1]
local ttlMs = tonumber(ARGV[2])
local existing = redis.call('GET', key)
if existing == false then
  redis.call('SET', key, holder, 'PX', ttlMs)
  return 1
end
return 0
`
