package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"knowledge-collector/pkg/types"
)

const defaultRecentWorkflowLimit = 50

// handleWorkflowsRecent lists recent workflow runs across every source
// (spec.md §6 "GET /workflows/recent").
func (r *Router) handleWorkflowsRecent(w http.ResponseWriter, req *http.Request) {
	limit := parseIntOr(req.URL.Query().Get("limit"), defaultRecentWorkflowLimit)
	runs, err := r.manager.Recent(req.Context(), types.AllSources, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load recent workflows")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"workflows": runs})
}

// handleWorkflowGet looks up one workflow run by id (spec.md §6
// "GET /workflows/{id}").
func (r *Router) handleWorkflowGet(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	run, err := r.manager.Get(req.Context(), types.AllSources, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load workflow")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleWorkflowCancel cancels an in-flight workflow run (spec.md §6
// "DELETE /workflows/{id}").
func (r *Router) handleWorkflowCancel(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "id")
	if !r.manager.Cancel(id) {
		writeError(w, http.StatusNotFound, "workflow not found or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cancelled": id})
}
