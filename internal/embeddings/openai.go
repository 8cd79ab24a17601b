package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"knowledge-collector/internal/config"
	"knowledge-collector/internal/logging"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// OpenAIService implements EmbeddingService against OpenAI's embeddings
// endpoint, with an LRU/TTL cache and a token-bucket rate limiter in
// front of the HTTP call (spec.md §4.8 "Embedding").
type OpenAIService struct {
	apiKey      string
	baseURL     string
	model       string
	dimension   int
	httpClient  *http.Client
	logger      logging.Logger
	cache       *embeddingCache
	rateLimiter *RateLimiter
}

// NewOpenAIService builds an OpenAIService from cfg. cfg.APIKey must be
// set; cfg.Model defaults to text-embedding-3-small and cfg.Dimension to
// the model's native size when zero.
func NewOpenAIService(cfg config.EmbeddingConfig, logger logging.Logger) (*OpenAIService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embeddings: openai api key is required")
	}
	if logger == nil {
		logger = logging.NewLogger(logging.INFO)
	}

	model := cfg.Model
	if model == "" {
		model = defaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	dimension := cfg.Dimension
	if dimension == 0 {
		dimension = dimensionsForModel(model)
	}

	return &OpenAIService{
		apiKey:      cfg.APIKey,
		baseURL:     "https://api.openai.com/v1",
		model:       model,
		dimension:   dimension,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.WithComponent("embeddings.openai"),
		cache:       newEmbeddingCache(10000, 24*time.Hour),
		rateLimiter: NewRateLimiter(3000, time.Minute),
	}, nil
}

// Generate produces the embedding for a single text, consulting the
// cache first and retrying transient failures with exponential backoff.
func (s *OpenAIService) Generate(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embeddings: text cannot be empty")
	}
	if cached, found := s.cache.Get(text); found {
		return cached, nil
	}
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embeddings: rate limit wait: %w", err)
	}

	vectors, err := s.callWithRetry(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embeddings: generate: %w", err)
	}
	s.cache.Set(text, vectors[0])
	return vectors[0], nil
}

// GenerateBatch produces embeddings for texts in a single API call over
// whatever cache misses remain; callers are expected to pre-chunk large
// batches (vectorstore bounds this at embedBatchSize).
func (s *OpenAIService) GenerateBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	results := make([][]float64, len(texts))
	var missTexts []string
	var missIndices []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("embeddings: text at index %d cannot be empty", i)
		}
		if cached, found := s.cache.Get(text); found {
			results[i] = cached
			continue
		}
		missTexts = append(missTexts, text)
		missIndices = append(missIndices, i)
	}
	if len(missTexts) == 0 {
		return results, nil
	}

	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embeddings: rate limit wait: %w", err)
	}
	vectors, err := s.callWithRetry(ctx, missTexts)
	if err != nil {
		return nil, fmt.Errorf("embeddings: generate batch: %w", err)
	}

	for i, vec := range vectors {
		results[missIndices[i]] = vec
		s.cache.Set(missTexts[i], vec)
	}
	return results, nil
}

// GetDimensions returns the configured embedding vector width.
func (s *OpenAIService) GetDimensions() int { return s.dimension }

// HealthCheck verifies the service can reach the OpenAI API.
func (s *OpenAIService) HealthCheck(ctx context.Context) error {
	_, err := s.callOpenAI(ctx, []string{"health check"})
	return err
}

func (s *OpenAIService) callWithRetry(ctx context.Context, texts []string) ([][]float64, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vectors, err := s.callOpenAI(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		s.logger.WarnContext(ctx, "embedding call failed, retrying", "attempt", attempt+1, "error", err.Error())
	}
	return nil, fmt.Errorf("all retry attempts failed: %w", lastErr)
}

func (s *OpenAIService) callOpenAI(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(map[string]interface{}{"input": texts, "model": s.model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var parsed openAIEmbeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	vectors := make([][]float64, len(parsed.Data))
	for _, item := range parsed.Data {
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

func dimensionsForModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}
