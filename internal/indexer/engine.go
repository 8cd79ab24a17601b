// Package indexer implements the Indexing Engine of spec.md §4.6: one
// run_batch call performs exactly one connector fetch plus enrichment,
// diffing, vector-store persistence, and cursor advancement. The caller
// (a workflow runtime) loops until hasMore is false or it cancels.
package indexer

import (
	"context"
	"fmt"
	"time"

	"knowledge-collector/internal/cursorstore"
	"knowledge-collector/internal/logging"
	"knowledge-collector/internal/metrics"
	"knowledge-collector/internal/relevance"
	"knowledge-collector/internal/retry"
	"knowledge-collector/internal/settingsstore"
	"knowledge-collector/internal/vectorstore"
	"knowledge-collector/pkg/types"
)

// BatchResult is the outcome of one RunBatch call (spec.md §4.6).
type BatchResult struct {
	DocumentsProcessed int
	HasMore            bool
}

// RawFileSaver persists an unmodified copy of a document's content for
// audit/reprocessing purposes. Failures are logged and never fail a batch.
type RawFileSaver interface {
	Save(ctx context.Context, source types.Source, d types.Document) error
}

// Engine drives one source's connectors against the cursor, analytics,
// and vector stores per spec.md §4.6.
type Engine struct {
	cursors   *cursorstore.Store
	settings  *settingsstore.Store
	vectors   *vectorstore.Store
	enricher  *relevance.Enricher
	rawFiles  RawFileSaver
	logger    logging.Logger
	connectors map[types.Source]types.Connector
	metrics   *metrics.Collector

	pacingSleep time.Duration
	backpressureEvery int
	backpressureSleep time.Duration
}

// SetMetrics attaches a metrics collector. Optional; an Engine with
// none attached simply skips instrumentation.
func (e *Engine) SetMetrics(m *metrics.Collector) { e.metrics = m }

// New builds an Engine wired to its stores and the set of connectors it
// may drive, keyed by source name.
func New(cursors *cursorstore.Store, settings *settingsstore.Store, vectors *vectorstore.Store, enricher *relevance.Enricher, rawFiles RawFileSaver, connectors map[types.Source]types.Connector, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Engine{
		cursors:           cursors,
		settings:          settings,
		vectors:           vectors,
		enricher:          enricher,
		rawFiles:          rawFiles,
		connectors:        connectors,
		logger:            logger,
		pacingSleep:       500 * time.Millisecond,
		backpressureEvery: 500,
		backpressureSleep: 2 * time.Second,
	}
}

// RunBatch performs exactly one connector fetch plus downstream
// processing for source (spec.md §4.6).
func (e *Engine) RunBatch(ctx context.Context, source types.Source, request types.IndexRequest) (batchResult BatchResult, err error) {
	if e.metrics != nil {
		start := time.Now()
		defer func() {
			e.metrics.BatchDuration.WithLabelValues(string(source)).Observe(time.Since(start).Seconds())
			status := "ok"
			if err != nil {
				status = "error"
			}
			e.metrics.BatchesTotal.WithLabelValues(string(source), status).Inc()
			e.metrics.DocumentsTotal.WithLabelValues(string(source)).Add(float64(batchResult.DocumentsProcessed))
		}()
	}

	connector, ok := e.connectors[source]
	if !ok {
		return BatchResult{}, fmt.Errorf("indexer: no connector registered for source %q", source)
	}

	persisted, err := e.settings.Get(ctx, source)
	if err != nil {
		return BatchResult{}, fmt.Errorf("indexer: run_batch(%s): load settings: %w", source, err)
	}
	merged := mergeSettings(request, persisted)
	configKey := canonicalConfigKey(merged)

	cursor, err := e.cursors.GetCursor(ctx, source)
	if err != nil {
		return BatchResult{}, fmt.Errorf("indexer: run_batch(%s): load cursor: %w", source, err)
	}
	if cursor != nil && cursor.ConfigKey() != "" && cursor.ConfigKey() != configKey {
		merged.FullReindex = true
	}

	fetchCursor := cursor
	if merged.FullReindex {
		fetchCursor = nil
	}

	result, err := connector.Fetch(ctx, fetchCursor, merged)
	if err != nil {
		return BatchResult{}, fmt.Errorf("indexer: run_batch(%s): fetch: %w", source, err)
	}

	enriched := e.enricher.AddRelevanceWeights(source, result.Documents)

	changed := enriched
	skipped := 0
	if !merged.FullReindex {
		changed, skipped, err = e.diff(ctx, source, enriched)
		if err != nil {
			return BatchResult{}, fmt.Errorf("indexer: run_batch(%s): diff: %w", source, err)
		}
	}

	if err := e.persist(ctx, source, changed); err != nil {
		return BatchResult{}, fmt.Errorf("indexer: run_batch(%s): persist: %w", source, err)
	}

	if err := e.advanceCursor(ctx, source, cursor, result, configKey); err != nil {
		return BatchResult{}, fmt.Errorf("indexer: run_batch(%s): advance cursor: %w", source, err)
	}

	e.logger.Info("indexer: batch complete", "source", source,
		"documents", len(changed), "skipped", skipped, "has_more", result.HasMore)

	e.pace(len(changed))

	return BatchResult{DocumentsProcessed: len(changed), HasMore: result.HasMore}, nil
}

// diff implements spec.md §4.6 step 5: fetch current hashes in bulk and
// drop documents whose content+metadata hash is unchanged.
func (e *Engine) diff(ctx context.Context, source types.Source, docs []types.Document) ([]types.Document, int, error) {
	if len(docs) == 0 {
		return docs, 0, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	existing, err := e.cursors.BulkGetHashes(ctx, string(source), ids)
	if err != nil {
		return nil, 0, err
	}

	changed := make([]types.Document, 0, len(docs))
	skipped := 0
	for i, d := range docs {
		newHash := d.ContentHash()
		if existing[i] != nil && *existing[i] == newHash {
			skipped++
			continue
		}
		changed = append(changed, d)
	}
	return changed, skipped, nil
}

// persist implements spec.md §4.6 step 6: best-effort raw-file save,
// authoritative vector-store upsert (up to 3 attempts with 1s/2s
// backoff, propagating final failure), then hash bookkeeping.
func (e *Engine) persist(ctx context.Context, source types.Source, docs []types.Document) error {
	if len(docs) == 0 {
		return nil
	}

	if e.rawFiles != nil {
		for _, d := range docs {
			if err := e.rawFiles.Save(ctx, source, d); err != nil {
				e.logger.Warn("indexer: raw file save failed", "source", source, "document_id", d.ID, "error", err)
			}
		}
	}

	retrier := retry.New(&retry.Config{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		Multiplier:      2,
		MaxDelay:        2 * time.Second,
		RandomizeFactor: 0,
		RetryIf:         func(error) bool { return true },
	})

	result := retrier.Do(ctx, func(ctx context.Context) error {
		return e.vectors.Upsert(ctx, source, docs)
	})
	if result.Err != nil {
		return fmt.Errorf("vector store upsert failed after %d attempts: %w", result.Attempts, result.Err)
	}

	hashes := make(map[string]string, len(docs))
	for _, d := range docs {
		hashes[d.ID] = d.ContentHash()
	}
	return e.cursors.BulkSetHashes(ctx, string(source), hashes)
}

// advanceCursor implements spec.md §4.9's cursor advancement policy.
func (e *Engine) advanceCursor(ctx context.Context, source types.Source, prior *types.Cursor, result types.ConnectorResult, configKey string) error {
	next := &types.Cursor{Source: source}
	metadata := types.Metadata{}
	if prior != nil {
		metadata = prior.Metadata.Clone()
	}
	if result.NewCursor.Metadata != nil {
		for k, v := range result.NewCursor.Metadata {
			metadata = metadata.Set(k, v)
		}
	}
	metadata = metadata.Set("configKey", types.StringValue(configKey))

	if result.NewCursor.SyncToken == "" {
		lastSync := result.BatchLastSync
		if lastSync == "" {
			lastSync = time.Now().UTC().Format(time.RFC3339)
		}
		next.LastSync = lastSync
		next.SyncToken = ""
	} else {
		if prior != nil && prior.LastSync != "" {
			next.LastSync = prior.LastSync
		} else {
			lastSync := result.BatchLastSync
			if lastSync == "" {
				lastSync = time.Now().UTC().Format(time.RFC3339)
			}
			next.LastSync = lastSync
		}
		next.SyncToken = result.NewCursor.SyncToken
	}
	next.Metadata = metadata

	return e.cursors.SaveCursor(ctx, next)
}

func (e *Engine) pace(docsThisBatch int) {
	time.Sleep(e.pacingSleep)
	if e.backpressureEvery > 0 && docsThisBatch >= e.backpressureEvery {
		time.Sleep(e.backpressureSleep)
	}
}
