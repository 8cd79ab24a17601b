package indexer

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"knowledge-collector/internal/analyticsstore"
	"knowledge-collector/pkg/types"
)

// Manager tracks in-flight WorkflowRuntime.Run invocations by a
// generated workflow id, giving the HTTP API (spec.md §6 "/workflows")
// something to list and cancel beyond what a single blocking Run call
// offers on its own.
type Manager struct {
	runtime   *WorkflowRuntime
	analytics *analyticsstore.Store

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewManager builds a Manager driving runtime, consulting analytics for
// the recent/by-id listings.
func NewManager(runtime *WorkflowRuntime, analytics *analyticsstore.Store) *Manager {
	return &Manager{runtime: runtime, analytics: analytics, active: make(map[string]context.CancelFunc)}
}

// Start launches a background run for source and returns its workflow
// id immediately; the run continues after Start returns.
func (m *Manager) Start(parent context.Context, source types.Source, request types.IndexRequest) string {
	workflowID := uuid.NewString()
	ctx, cancel := context.WithCancel(parent)

	m.mu.Lock()
	m.active[workflowID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.active, workflowID)
			m.mu.Unlock()
			cancel()
		}()
		_ = m.runtime.Run(ctx, source, request, workflowID)
	}()

	return workflowID
}

// Cancel stops the run identified by workflowID if it is still active,
// reporting whether anything was found to cancel.
func (m *Manager) Cancel(workflowID string) bool {
	m.mu.Lock()
	cancel, ok := m.active[workflowID]
	if ok {
		delete(m.active, workflowID)
	}
	m.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// Recent returns up to limit runs across sources, newest first.
func (m *Manager) Recent(ctx context.Context, sources []types.Source, limit int) ([]types.IndexingRun, error) {
	var combined []types.IndexingRun
	for _, source := range sources {
		runs, err := m.analytics.GetRecentRuns(ctx, source, limit)
		if err != nil {
			return nil, err
		}
		combined = append(combined, runs...)
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].StartedAt > combined[j].StartedAt })
	if limit > 0 && len(combined) > limit {
		combined = combined[:limit]
	}
	return combined, nil
}

// Get locates the run identified by workflowID across sources.
func (m *Manager) Get(ctx context.Context, sources []types.Source, workflowID string) (*types.IndexingRun, error) {
	for _, source := range sources {
		runs, err := m.analytics.GetRecentRuns(ctx, source, 0)
		if err != nil {
			return nil, err
		}
		for _, run := range runs {
			if run.ID == workflowID {
				return &run, nil
			}
		}
	}
	return nil, nil
}
