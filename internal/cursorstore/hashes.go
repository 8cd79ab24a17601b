package cursorstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// BulkGetHashes returns the stored content hash for each id in ids, in
// the same order, with a nil entry where no hash is stored (spec.md
// §4.1 bulk_get_hashes).
func (s *Store) BulkGetHashes(ctx context.Context, source string, ids []string) ([]*string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.hashKey(source, id)
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("cursorstore: bulk_get_hashes(%s): %w", source, err)
	}

	out := make([]*string, len(ids))
	for i, v := range vals {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		out[i] = &str
	}
	return out, nil
}

// BulkSetHashes writes all id→hash pairs atomically in a single Redis
// call, matching the "bulk_set_hashes is atomic per call" invariant.
func (s *Store) BulkSetHashes(ctx context.Context, source string, hashes map[string]string) error {
	if len(hashes) == 0 {
		return nil
	}
	keys := make([]string, 0, len(hashes))
	argv := make([]interface{}, 0, len(hashes))
	for id, hash := range hashes {
		keys = append(keys, s.hashKey(source, id))
		argv = append(argv, hash)
	}
	if err := s.scripts.bulkSetHashes.Run(ctx, s.client, keys, argv...).Err(); err != nil {
		return fmt.Errorf("cursorstore: bulk_set_hashes(%s): %w", source, err)
	}
	return nil
}

// RemoveHashes deletes the hash for id and any chunk hashes stored under
// id as a prefix (spec.md §4.1 remove_hashes).
func (s *Store) RemoveHashes(ctx context.Context, source, id string) error {
	prefix := s.hashKey(source, id)
	result, err := s.scripts.removeHashes.Run(ctx, s.client, []string{}, prefix).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("cursorstore: remove_hashes(%s, %s): %w", source, id, err)
	}
	_ = result
	return nil
}
