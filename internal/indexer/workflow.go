package indexer

import (
	"context"
	"math"
	"time"

	"knowledge-collector/internal/analyticsstore"
	"knowledge-collector/internal/cursorstore"
	taxonomy "knowledge-collector/internal/errors"
	"knowledge-collector/pkg/types"
)

// WorkflowRuntime drives RunBatch to completion for one source, the
// in-process stand-in for the external workflow runtime spec.md §5
// describes as the primary mutual-exclusion mechanism (falling back to
// Cursor Store locks in "legacy mode").
type WorkflowRuntime struct {
	engine    *Engine
	cursors   *cursorstore.Store
	analytics *analyticsstore.Store
	lockTTL   time.Duration
}

// NewWorkflowRuntime builds a runtime around engine, using the cursor
// store's advisory lock for legacy-mode single-flight enforcement and
// recording each run's outcome to analytics.
func NewWorkflowRuntime(engine *Engine, cursors *cursorstore.Store, analytics *analyticsstore.Store) *WorkflowRuntime {
	return &WorkflowRuntime{engine: engine, cursors: cursors, analytics: analytics, lockTTL: 10 * time.Minute}
}

// Run loops RunBatch until hasMore is false, ctx is cancelled, or three
// consecutive batches fail (spec.md §4.6 "Consecutive-error handling").
// It owns the advisory lock and the IndexStatus lifecycle for source.
func (r *WorkflowRuntime) Run(ctx context.Context, source types.Source, request types.IndexRequest, workflowID string) error {
	acquired, err := r.cursors.AcquireLock(ctx, source, r.lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer r.cursors.ReleaseLock(ctx, source)

	status := &types.IndexStatus{Source: source, Status: types.StatusRunning, WorkflowID: workflowID}
	if err := r.cursors.SaveStatus(ctx, status); err != nil {
		return err
	}

	runID := ""
	runStarted := time.Now()
	documentsTotal := 0
	if r.analytics != nil {
		if id, rerr := r.analytics.RecordRunStart(ctx, source); rerr == nil {
			runID = id
		}
	}

	complete := func(runStatus types.RunStatus, runErr string) {
		if r.analytics == nil || runID == "" {
			return
		}
		_ = r.analytics.RecordRunComplete(ctx, source, types.IndexingRun{
			ID:                 runID,
			Source:             source,
			StartedAt:          runStarted.UTC().Format(time.RFC3339),
			CompletedAt:        time.Now().UTC().Format(time.RFC3339),
			Status:             runStatus,
			DocumentsProcessed: documentsTotal,
			Error:              runErr,
			DurationMs:         time.Since(runStarted).Milliseconds(),
		})
	}

	consecutiveFailures := 0
	req := request

	for {
		select {
		case <-ctx.Done():
			status.Status = types.StatusIdle
			_ = r.cursors.SaveStatus(ctx, status)
			complete(types.RunError, ctx.Err().Error())
			return ctx.Err()
		default:
		}

		result, err := r.engine.RunBatch(ctx, source, req)
		if err != nil {
			consecutiveFailures++
			status.LastError = err.Error()
			status.LastErrorAt = time.Now().UTC().Format(time.RFC3339)

			// Credential rejection never benefits from a retry within
			// the same run (spec.md §7 "Auth"): fail the run now
			// instead of waiting out the consecutive-failure backoff.
			if taxonomy.IsAuth(err) {
				status.Status = types.StatusError
				_ = r.cursors.SaveStatus(ctx, status)
				complete(types.RunError, err.Error())
				return err
			}

			if consecutiveFailures >= 3 {
				status.Status = types.StatusError
				_ = r.cursors.SaveStatus(ctx, status)
				complete(types.RunError, err.Error())
				return err
			}

			if consecutiveFailures == 2 {
				if cur, gerr := r.cursors.GetCursor(ctx, source); gerr == nil && cur != nil && cur.SyncToken != "" {
					cur.SyncToken = ""
					_ = r.cursors.SaveCursor(ctx, cur)
				}
			}

			backoff := time.Duration(math.Pow(2, float64(consecutiveFailures))) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				status.Status = types.StatusIdle
				_ = r.cursors.SaveStatus(ctx, status)
				complete(types.RunError, ctx.Err().Error())
				return ctx.Err()
			}
			continue
		}

		consecutiveFailures = 0
		documentsTotal += result.DocumentsProcessed
		status.DocumentsIndexed += int64(result.DocumentsProcessed)
		if err := r.cursors.SaveStatus(ctx, status); err != nil {
			return err
		}

		if !result.HasMore {
			status.Status = types.StatusCompleted
			complete(types.RunCompleted, "")
			return r.cursors.SaveStatus(ctx, status)
		}

		// Subsequent batches for the same run never re-apply the
		// caller's one-shot fullReindex flag past the first page.
		req.FullReindex = false
	}
}
