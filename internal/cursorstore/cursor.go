package cursorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"knowledge-collector/pkg/types"
)

// GetCursor loads the persisted cursor for source, or a zero-value
// cursor (no error) if none has been saved yet.
func (s *Store) GetCursor(ctx context.Context, source types.Source) (*types.Cursor, error) {
	raw, err := s.client.Get(ctx, s.cursorKey(string(source))).Result()
	if errors.Is(err, redis.Nil) {
		return &types.Cursor{Source: source}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cursorstore: get_cursor(%s): %w", source, err)
	}
	var cur types.Cursor
	if err := json.Unmarshal([]byte(raw), &cur); err != nil {
		return nil, fmt.Errorf("cursorstore: decode cursor(%s): %w", source, err)
	}
	return &cur, nil
}

// SaveCursor persists cur, overwriting any previous value.
func (s *Store) SaveCursor(ctx context.Context, cur *types.Cursor) error {
	b, err := json.Marshal(cur)
	if err != nil {
		return fmt.Errorf("cursorstore: encode cursor(%s): %w", cur.Source, err)
	}
	if err := s.client.Set(ctx, s.cursorKey(string(cur.Source)), b, 0).Err(); err != nil {
		return fmt.Errorf("cursorstore: save_cursor(%s): %w", cur.Source, err)
	}
	return nil
}

// ResetCursor deletes the persisted cursor for source.
func (s *Store) ResetCursor(ctx context.Context, source types.Source) error {
	if err := s.client.Del(ctx, s.cursorKey(string(source))).Err(); err != nil {
		return fmt.Errorf("cursorstore: reset_cursor(%s): %w", source, err)
	}
	return nil
}
