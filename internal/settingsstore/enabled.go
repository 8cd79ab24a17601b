package settingsstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"knowledge-collector/pkg/types"
)

func (s *Store) enabledKey(source types.Source) string {
	return s.keyPrefix + "settings:" + string(source) + ":enabled"
}

// Enabled reports whether source is enabled for indexing. A source with
// no stored flag defaults to enabled, so fresh deployments index every
// known source without an explicit opt-in step.
func (s *Store) Enabled(ctx context.Context, source types.Source) (bool, error) {
	raw, err := s.client.Get(ctx, s.enabledKey(source)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("settingsstore: enabled(%s): %w", source, err)
	}
	return raw == "1", nil
}

// SetEnabled persists whether source should be indexed.
func (s *Store) SetEnabled(ctx context.Context, source types.Source, enabled bool) error {
	val := "0"
	if enabled {
		val = "1"
	}
	if err := s.client.Set(ctx, s.enabledKey(source), val, 0).Err(); err != nil {
		return fmt.Errorf("settingsstore: set enabled(%s): %w", source, err)
	}
	return nil
}

// EnabledSources returns the subset of types.AllSources currently enabled.
func (s *Store) EnabledSources(ctx context.Context) ([]types.Source, error) {
	var out []types.Source
	for _, source := range types.AllSources {
		ok, err := s.Enabled(ctx, source)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, source)
		}
	}
	return out, nil
}
