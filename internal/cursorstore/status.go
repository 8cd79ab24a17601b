package cursorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"knowledge-collector/pkg/types"
)

// GetStatus loads the job status for source, defaulting to idle if
// nothing has been persisted yet. A status observed as running whose
// workflow no longer exists is stale (spec.md §5); callers that know the
// current workflow id should pass it to ReconcileStale to enforce the
// on-read sweep described there.
func (s *Store) GetStatus(ctx context.Context, source types.Source) (*types.IndexStatus, error) {
	raw, err := s.client.Get(ctx, s.statusKey(string(source))).Result()
	if errors.Is(err, redis.Nil) {
		return &types.IndexStatus{Source: source, Status: types.StatusIdle}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cursorstore: get_status(%s): %w", source, err)
	}
	var st types.IndexStatus
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("cursorstore: decode status(%s): %w", source, err)
	}
	return &st, nil
}

// SaveStatus persists st, overwriting any previous value.
func (s *Store) SaveStatus(ctx context.Context, st *types.IndexStatus) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("cursorstore: encode status(%s): %w", st.Source, err)
	}
	if err := s.client.Set(ctx, s.statusKey(string(st.Source)), b, 0).Err(); err != nil {
		return fmt.Errorf("cursorstore: save_status(%s): %w", st.Source, err)
	}
	return nil
}

// AllStatus loads status for each of sources, in order.
func (s *Store) AllStatus(ctx context.Context, sources []types.Source) ([]*types.IndexStatus, error) {
	out := make([]*types.IndexStatus, 0, len(sources))
	for _, src := range sources {
		st, err := s.GetStatus(ctx, src)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// ResetStatus deletes the persisted status for source.
func (s *Store) ResetStatus(ctx context.Context, source types.Source) error {
	if err := s.client.Del(ctx, s.statusKey(string(source))).Err(); err != nil {
		return fmt.Errorf("cursorstore: reset_status(%s): %w", source, err)
	}
	return nil
}

// ReconcileStale resets a status recorded as running back to idle and
// releases its advisory lock when the caller (the workflow runtime)
// reports that no workflow is currently executing it. This implements
// the "stale workflow/status" sweep from the glossary.
func (s *Store) ReconcileStale(ctx context.Context, source types.Source, workflowStillRunning bool) error {
	st, err := s.GetStatus(ctx, source)
	if err != nil {
		return err
	}
	if st.Status != types.StatusRunning || workflowStillRunning {
		return nil
	}
	st.Status = types.StatusIdle
	if err := s.SaveStatus(ctx, st); err != nil {
		return err
	}
	return s.ReleaseLock(ctx, source)
}
