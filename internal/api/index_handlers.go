package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	connectorpkg "knowledge-collector/internal/connector"
	"knowledge-collector/pkg/types"
)

// handleIndexAll starts indexing for every enabled source, returning
// immediately with the lists of started/skipped sources (spec.md §6
// "POST /index/all").
func (r *Router) handleIndexAll(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	var request types.IndexRequest
	if err := decodeBody(req, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	enabled, err := r.settings.EnabledSources(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load enabled sources")
		return
	}

	started := make([]types.Source, 0, len(enabled))
	skipped := make([]types.Source, 0)
	for _, source := range enabled {
		connector, ok := r.connectors[source]
		if !ok || !connector.IsConfigured() {
			skipped = append(skipped, source)
			continue
		}
		r.manager.Start(detachedContext(ctx), source, request)
		started = append(started, source)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"started": started, "skipped": skipped})
}

// handleIndexSource starts indexing for one source (spec.md §6
// "POST /index/{source}").
func (r *Router) handleIndexSource(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	ctx := req.Context()

	enabled, err := r.settings.Enabled(ctx, source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load source settings")
		return
	}
	if !enabled {
		writeError(w, http.StatusForbidden, "source is disabled")
		return
	}

	connector, ok := r.connectors[source]
	if !ok || !connector.IsConfigured() {
		writeError(w, http.StatusForbidden, "source is not configured")
		return
	}

	var request types.IndexRequest
	if err := decodeBody(req, &request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workflowID := r.manager.Start(detachedContext(ctx), source, request)
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflowId": workflowID})
}

// handleListSources returns per-source status for every known source
// (spec.md §6 "GET /index/sources").
func (r *Router) handleListSources(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	statuses, err := r.cursors.AllStatus(ctx, types.AllSources)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load source status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": statuses})
}

// handleSourceStatus returns the legacy per-source status record
// (spec.md §6 "GET /index/{source}/status").
func (r *Router) handleSourceStatus(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	status, err := r.cursors.GetStatus(req.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load status")
		return
	}
	if status == nil {
		writeError(w, http.StatusNotFound, "no status recorded for source")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleResetSource resets a source's cursor and status (spec.md §6
// "DELETE /index/{source}").
func (r *Router) handleResetSource(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	ctx := req.Context()
	if err := r.cursors.ResetCursor(ctx, source); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset cursor")
		return
	}
	if err := r.cursors.ResetStatus(ctx, source); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reset": source})
}

// handleResetStatus resets only a source's status and advisory lock
// (spec.md §6 "DELETE /index/{source}/status").
func (r *Router) handleResetStatus(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	ctx := req.Context()
	if err := r.cursors.ResetStatus(ctx, source); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset status")
		return
	}
	if err := r.cursors.ReleaseLock(ctx, source); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to release lock")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reset": source})
}

// handleResetAll resets every known source (spec.md §6
// "DELETE /index/all/reset").
func (r *Router) handleResetAll(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	for _, source := range types.AllSources {
		if err := r.cursors.ResetCursor(ctx, source); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to reset "+string(source))
			return
		}
		if err := r.cursors.ResetStatus(ctx, source); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to reset "+string(source))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reset": types.AllSources})
}

// handleDeleteDocument removes a single document from the vector store
// (spec.md §6 "DELETE /index/{source}/{id}").
func (r *Router) handleDeleteDocument(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	id := chi.URLParam(req, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}
	if err := r.vectors.DeleteDocument(req.Context(), source, id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// handleGetSettings returns the persisted filter settings for a source
// (spec.md §6 "GET /index/settings/{source}").
func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	settings, err := r.settings.Get(req.Context(), source)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleSaveSettings persists filter settings for a source (spec.md §6
// "POST /index/settings/{source}").
func (r *Router) handleSaveSettings(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	var settings types.IndexRequest
	if err := decodeBody(req, &settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := r.settings.Save(req.Context(), source, settings); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// handleEnabledSources lists the currently enabled sources (spec.md §6
// "GET /index/enabled-sources").
func (r *Router) handleEnabledSources(w http.ResponseWriter, req *http.Request) {
	enabled, err := r.settings.EnabledSources(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load enabled sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sources": enabled})
}

// handleSetEnabled toggles a source's enabled flag (spec.md §6
// "PUT /index/sources/{source}/enabled").
func (r *Router) handleSetEnabled(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(req, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := r.settings.SetEnabled(req.Context(), source, body.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save enabled flag")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"source": source, "enabled": body.Enabled})
}

// handleDiscovery lists the filterable identifiers a source exposes
// upstream (spec.md §6 "GET /index/discovery/{...}").
func (r *Router) handleDiscovery(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	connector, ok := r.connectors[source]
	if !ok {
		writeError(w, http.StatusNotFound, "no connector registered for source")
		return
	}
	discoverer, ok := connector.(connectorpkg.Discoverer)
	if !ok {
		writeError(w, http.StatusNotFound, "source has no discovery listing")
		return
	}
	items, err := discoverer.Discover(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "discovery failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func decodeBody(req *http.Request, v interface{}) error {
	if req.ContentLength == 0 {
		return nil
	}
	defer func() { _ = req.Body.Close() }()
	return json.NewDecoder(req.Body).Decode(v)
}

// detachedContext preserves the caller's values while decoupling the
// background run from the HTTP request's own cancellation, so a
// workflow started by an API call keeps running after the response
// returns.
func detachedContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
