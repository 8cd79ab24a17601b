package embeddings

import (
	"context"
)

// EmbeddingService is the interface the indexing engine and vector
// store gateway embed against: a provider that turns chunk text into
// fixed-width vectors (spec.md §4.8 "Embedding"). OpenAIService and
// MockService both satisfy it.
type EmbeddingService interface {
	// Generate creates the embedding for a single text.
	Generate(ctx context.Context, text string) ([]float64, error)

	// GenerateBatch creates embeddings for multiple texts in one call,
	// used when indexing batches chunk strings together.
	GenerateBatch(ctx context.Context, texts []string) ([][]float64, error)

	// GetDimensions returns the vector width this service produces.
	GetDimensions() int

	// HealthCheck verifies the service is reachable and configured
	// correctly.
	HealthCheck(ctx context.Context) error
}
