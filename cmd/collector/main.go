// collector is the knowledge collector binary: it indexes configured
// sources into the vector store and serves the HTTP API of spec.md §6.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"knowledge-collector/internal/analyticsstore"
	"knowledge-collector/internal/api"
	"knowledge-collector/internal/chunking"
	"knowledge-collector/internal/config"
	"knowledge-collector/internal/connector"
	"knowledge-collector/internal/cursorstore"
	"knowledge-collector/internal/embeddings"
	"knowledge-collector/internal/fileprocessor"
	"knowledge-collector/internal/indexer"
	"knowledge-collector/internal/logging"
	"knowledge-collector/internal/metrics"
	"knowledge-collector/internal/rawstore"
	"knowledge-collector/internal/relevance"
	"knowledge-collector/internal/settingsstore"
	"knowledge-collector/internal/vectorstore"
	"knowledge-collector/pkg/types"
)

const rawFileStoreDir = "./data/rawfiles"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.NewLogger(logLevelFromString(cfg.Logging.Level)).WithComponent("collector")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	router, err := buildRouter(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize collector: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := runHTTPServer(ctx, router.Handler(), addr, cfg); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

// buildRouter wires every component: stores, embeddings, chunker,
// connectors, the indexing engine, and the HTTP router on top.
func buildRouter(ctx context.Context, cfg *config.Config, logger logging.Logger) (*api.Router, error) {
	cursors, err := cursorstore.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("cursor store: %w", err)
	}
	analytics, err := analyticsstore.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("analytics store: %w", err)
	}
	settings, err := settingsstore.New(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("settings store: %w", err)
	}

	tokenizer, err := chunking.NewTokenizer()
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	chunker := chunking.New(chunking.Config{
		ChunkSize:            cfg.Chunking.ChunkSize,
		ChunkOverlap:         cfg.Chunking.ChunkOverlap,
		MinTokensForChunking: cfg.Chunking.MinTokensForChunking,
	}, tokenizer)

	embedder, err := embeddings.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	vectors, err := vectorstore.New(cfg.Qdrant, cfg.Embedding.Dimension, embedder, chunker, logger)
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	if err := vectors.EnsureCollections(ctx); err != nil {
		return nil, fmt.Errorf("vector store collections: %w", err)
	}

	collector := metrics.New(prometheus.DefaultRegisterer)
	vectors.SetMetrics(collector)

	identity := relevance.Identity{
		GitHubUsername: cfg.GitHub.Username,
		JiraUsername:   cfg.Jira.Username,
		GoogleEmail:    cfg.Gmail.UserEmail,
		CompanyDomains: cfg.App.CompanyDomains,
	}
	enricher := relevance.NewEnricher(identity, time.Now)

	converter := fileprocessor.NewConverter("", logger)
	processor := fileprocessor.New(converter, chunker)

	rawFiles, err := rawstore.New(rawFileStoreDir)
	if err != nil {
		return nil, fmt.Errorf("raw store: %w", err)
	}

	connectors := map[types.Source]types.Connector{
		types.SourceJira:       connector.NewJira(cfg.Jira),
		types.SourceSlack:      connector.NewSlack(cfg.Slack),
		types.SourceGmail:      connector.NewGmail(cfg.Gmail),
		types.SourceDrive:      connector.NewDrive(cfg.Drive, cfg.Gmail, processor),
		types.SourceConfluence: connector.NewConfluence(cfg.Confluence),
		types.SourceCalendar:   connector.NewCalendar(cfg.Calendar, cfg.Gmail),
		types.SourceGitHub:     connector.NewGitHub(cfg.GitHub),
	}

	engine := indexer.New(cursors, settings, vectors, enricher, rawFiles, connectors, logger)
	engine.SetMetrics(collector)
	runtime := indexer.NewWorkflowRuntime(engine, cursors, analytics)
	manager := indexer.NewManager(runtime, analytics)

	return api.NewRouter(cfg, cursors, settings, analytics, vectors, manager, connectors, logger), nil
}

func runHTTPServer(ctx context.Context, handler http.Handler, addr string, cfg *config.Config) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("knowledge collector listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx) //nolint:contextcheck // fresh context needed once the parent is already cancelled
}

func logLevelFromString(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.DEBUG
	case "warn":
		return logging.WARN
	case "error":
		return logging.ERROR
	case "fatal":
		return logging.FATAL
	default:
		return logging.INFO
	}
}
