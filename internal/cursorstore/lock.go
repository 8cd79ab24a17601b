package cursorstore

import (
	"context"
	"fmt"
	"time"

	"knowledge-collector/pkg/types"
)

// AcquireLock grants an advisory, TTL-bound lock for source, returning
// true only if this call was the one that created it (spec.md §4.1: "at
// most one holder at a time within the TTL window").
func (s *Store) AcquireLock(ctx context.Context, source types.Source, ttl time.Duration) (bool, error) {
	result, err := s.scripts.acquireLock.Run(ctx, s.client, []string{s.lockKey(string(source))},
		"held", ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("cursorstore: acquire_lock(%s): %w", source, err)
	}
	granted, _ := result.(int64)
	return granted == 1, nil
}

// ReleaseLock clears the advisory lock for source. Locks are advisory
// only; releasing an unheld lock is a no-op.
func (s *Store) ReleaseLock(ctx context.Context, source types.Source) error {
	if err := s.client.Del(ctx, s.lockKey(string(source))).Err(); err != nil {
		return fmt.Errorf("cursorstore: release_lock(%s): %w", source, err)
	}
	return nil
}
