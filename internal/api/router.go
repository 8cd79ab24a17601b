// Package api wires the HTTP surface of spec.md §6 onto the indexing,
// cursor, settings, analytics, and vector-store components: one chi
// router per process, every route except /health, /metrics and the
// /ping heartbeat gated behind the x-api-key guard.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"knowledge-collector/internal/analyticsstore"
	"knowledge-collector/internal/api/middleware"
	"knowledge-collector/internal/config"
	"knowledge-collector/internal/cursorstore"
	"knowledge-collector/internal/indexer"
	"knowledge-collector/internal/logging"
	"knowledge-collector/internal/settingsstore"
	"knowledge-collector/internal/vectorstore"
	"knowledge-collector/pkg/types"
)

// Router is the HTTP API surface over the indexing engine's stores.
type Router struct {
	cfg        *config.Config
	mux        *chi.Mux
	cursors    *cursorstore.Store
	settings   *settingsstore.Store
	analytics  *analyticsstore.Store
	vectors    *vectorstore.Store
	manager    *indexer.Manager
	connectors map[types.Source]types.Connector
	logger     logging.Logger
}

// NewRouter builds a Router with every middleware and route wired.
func NewRouter(
	cfg *config.Config,
	cursors *cursorstore.Store,
	settings *settingsstore.Store,
	analytics *analyticsstore.Store,
	vectors *vectorstore.Store,
	manager *indexer.Manager,
	connectors map[types.Source]types.Connector,
	logger logging.Logger,
) *Router {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	r := &Router{
		cfg:        cfg,
		mux:        chi.NewRouter(),
		cursors:    cursors,
		settings:   settings,
		analytics:  analytics,
		vectors:    vectors,
		manager:    manager,
		connectors: connectors,
		logger:     logger.WithComponent("api"),
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler to pass to http.Server.
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.Timeout(30 * time.Second))
	r.mux.Use(middleware.NewLoggingMiddleware().Handler())
	r.mux.Use(middleware.NewDefaultCORSMiddleware().Handler())
	r.mux.Use(middleware.NewDefaultSecurityHeadersMiddleware().Handler())
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

func (r *Router) setupRoutes() {
	r.mux.Get("/health", r.handleHealth)
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.Route("/index", func(idx chi.Router) {
		idx.Use(middleware.APIKeyMiddleware(r.cfg.App.APIKey))

		idx.Post("/all", r.handleIndexAll)
		idx.Post("/{source}", r.handleIndexSource)
		idx.Get("/sources", r.handleListSources)
		idx.Get("/{source}/status", r.handleSourceStatus)
		idx.Delete("/{source}", r.handleResetSource)
		idx.Delete("/{source}/status", r.handleResetStatus)
		idx.Delete("/all/reset", r.handleResetAll)
		idx.Delete("/{source}/{id}", r.handleDeleteDocument)
		idx.Get("/settings/{source}", r.handleGetSettings)
		idx.Post("/settings/{source}", r.handleSaveSettings)
		idx.Get("/enabled-sources", r.handleEnabledSources)
		idx.Put("/sources/{source}/enabled", r.handleSetEnabled)
		idx.Get("/discovery/{source}", r.handleDiscovery)
	})

	r.mux.Route("/search", func(s chi.Router) {
		s.Use(middleware.APIKeyMiddleware(r.cfg.App.APIKey))
		s.Get("/", r.handleSearch)
		s.Get("/navigate", r.handleNavigate)
	})

	r.mux.Route("/events", func(e chi.Router) {
		e.Use(middleware.APIKeyMiddleware(r.cfg.App.APIKey))
		e.Get("/indexing", r.handleIndexingEvents)
	})

	r.mux.Route("/workflows", func(wf chi.Router) {
		wf.Use(middleware.APIKeyMiddleware(r.cfg.App.APIKey))
		wf.Get("/recent", r.handleWorkflowsRecent)
		wf.Get("/{id}", r.handleWorkflowGet)
		wf.Delete("/{id}", r.handleWorkflowCancel)
	})

	r.mux.Route("/analytics", func(a chi.Router) {
		a.Use(middleware.APIKeyMiddleware(r.cfg.App.APIKey))
		a.Get("/stats", r.handleAnalyticsStats)
		a.Get("/runs/{source}", r.handleAnalyticsRuns)
		a.Get("/daily/{source}", r.handleAnalyticsDaily)
	})

	r.mux.NotFound(r.handleNotFound)
	r.mux.MethodNotAllowed(r.handleMethodNotAllowed)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	status := "ok"
	if err := r.vectors.HealthCheck(ctx); err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "endpoint not found")
}

func (r *Router) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// sourceParam extracts and validates the {source} path parameter,
// writing a 400 response and returning ok=false when unknown.
func (r *Router) sourceParam(w http.ResponseWriter, req *http.Request) (types.Source, bool) {
	raw := chi.URLParam(req, "source")
	source := types.Source(raw)
	if !source.Valid() {
		writeError(w, http.StatusBadRequest, "unknown source: "+raw)
		return "", false
	}
	return source, true
}
