package api

import (
	"net/http"

	"knowledge-collector/pkg/types"
)

const defaultDailyStatsDays = 30

// handleAnalyticsStats returns system-wide aggregate stats across every
// source, plus a combined recent-runs feed (spec.md §6 "GET
// /analytics/*", §4.2 get_system_stats).
func (r *Router) handleAnalyticsStats(w http.ResponseWriter, req *http.Request) {
	topN := parseIntOr(req.URL.Query().Get("limit"), defaultRecentWorkflowLimit)
	stats, err := r.analytics.GetSystemStats(req.Context(), types.AllSources, topN)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load system stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleAnalyticsRuns returns recent runs for one source.
func (r *Router) handleAnalyticsRuns(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	limit := parseIntOr(req.URL.Query().Get("limit"), defaultRecentWorkflowLimit)
	runs, err := r.analytics.GetRecentRuns(req.Context(), source, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleAnalyticsDaily returns the daily run/document/error counters
// for one source over the trailing window.
func (r *Router) handleAnalyticsDaily(w http.ResponseWriter, req *http.Request) {
	source, ok := r.sourceParam(w, req)
	if !ok {
		return
	}
	days := parseIntOr(req.URL.Query().Get("days"), defaultDailyStatsDays)
	daily, err := r.analytics.GetDailyStats(req.Context(), source, days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load daily stats")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"daily": daily})
}
