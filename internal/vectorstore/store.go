// Package vectorstore is the Qdrant gateway of spec.md §4.8: one
// collection per source, a context-header-prefixed chunk embedding
// pipeline, and a content-hash fast path that skips re-embedding
// unchanged chunks.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"knowledge-collector/internal/chunking"
	"knowledge-collector/internal/circuitbreaker"
	"knowledge-collector/internal/config"
	"knowledge-collector/internal/embeddings"
	"knowledge-collector/internal/logging"
	"knowledge-collector/internal/metrics"
	"knowledge-collector/pkg/types"
)

const collectionPrefix = "collector_"

// getBatchSize bounds how many point ids are sent to a single Get call
// and how many metadata-only updates form one batch (spec.md §5
// "vector-store batches of 100 items").
const getBatchSize = 100

// Store is the single writer of chunks and embeddings (spec.md §5).
type Store struct {
	client    *qdrant.Client
	cfg       config.QdrantConfig
	embedder  embeddings.EmbeddingService
	chunker   *chunking.Chunker
	logger    logging.Logger
	dimension int
	cb        *circuitbreaker.CircuitBreaker
	metrics   *metrics.Collector
}

// SetMetrics attaches a metrics collector. Optional; a Store with none
// attached simply skips instrumentation.
func (s *Store) SetMetrics(m *metrics.Collector) { s.metrics = m }

// New builds a Store. The caller must call EnsureCollections before use.
func New(cfg config.QdrantConfig, dimension int, embedder embeddings.EmbeddingService, chunker *chunking.Chunker, logger logging.Logger) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	cb := circuitbreaker.New(&circuitbreaker.Config{
		FailureThreshold:      5,
		SuccessThreshold:      2,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 3,
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("vectorstore: circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return &Store{client: client, cfg: cfg, embedder: embedder, chunker: chunker, logger: logger, dimension: dimension, cb: cb}, nil
}

func collectionName(source types.Source) string {
	return collectionPrefix + string(source)
}

// EnsureCollections creates any of the per-source collections that do
// not yet exist, each configured for cosine similarity (spec.md §4.8).
func (s *Store) EnsureCollections(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("vectorstore: list collections: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, source := range types.AllSources {
		name := collectionName(source)
		if have[name] {
			continue
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("vectorstore: create collection %s: %w", name, err)
		}
		s.logger.Info("vectorstore: created collection", "collection", name)
	}
	return nil
}

// HealthCheck verifies connectivity to the configured Qdrant instance.
func (s *Store) HealthCheck(ctx context.Context) error {
	for _, source := range types.AllSources {
		if _, err := s.client.GetCollectionInfo(ctx, collectionName(source)); err != nil {
			return fmt.Errorf("vectorstore: health check %s: %w", collectionName(source), err)
		}
	}
	return nil
}

func (s *Store) timeoutCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
