package embeddings

import (
	"fmt"

	"knowledge-collector/internal/config"
	"knowledge-collector/internal/logging"
)

// New builds the EmbeddingService named by cfg.Provider: "openai" for
// the real API-backed service, "mock" for the deterministic local
// stand-in used in development and tests.
func New(cfg config.EmbeddingConfig, logger logging.Logger) (EmbeddingService, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIService(cfg, logger)
	case "mock":
		return NewMockService(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("embeddings: unknown provider %q", cfg.Provider)
	}
}
