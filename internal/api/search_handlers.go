package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"knowledge-collector/pkg/types"
)

// handleSearch performs a hybrid search over the vector store (spec.md
// §6 "GET /search", §4.10).
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	query := q.Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	searchQuery := types.SearchQuery{
		Query:      query,
		SearchType: parseSearchType(q.Get("type")),
		Limit:      parseIntOr(q.Get("limit"), 20),
		Offset:     parseIntOr(q.Get("offset"), 0),
	}
	if sources := q.Get("sources"); sources != "" {
		for _, s := range strings.Split(sources, ",") {
			searchQuery.Sources = append(searchQuery.Sources, types.Source(strings.TrimSpace(s)))
		}
	}
	if start := parseTimeParam(q.Get("startDate")); start != nil {
		searchQuery.StartDate = start
	}
	if end := parseTimeParam(q.Get("endDate")); end != nil {
		searchQuery.EndDate = end
	}
	if where := q.Get("where"); where != "" {
		searchQuery.Where = parseWhereParam(where)
	}

	results, err := r.vectors.Search(req.Context(), searchQuery)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func parseSearchType(raw string) types.SearchType {
	switch types.SearchType(raw) {
	case types.SearchVector, types.SearchKeyword:
		return types.SearchType(raw)
	default:
		return types.SearchHybrid
	}
}

func parseIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func parseTimeParam(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}

// handleNavigate exposes the vector store's graph-like traversal
// (spec.md §4.11): prev/next/siblings/parent/children over a chunk,
// datapoint, or context scope.
func (r *Router) handleNavigate(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	id := q.Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter is required")
		return
	}
	direction := types.NavDirection(q.Get("direction"))
	scope := types.NavScope(q.Get("scope"))
	if scope == "" {
		scope = types.ScopeChunk
	}
	limit := parseIntOr(q.Get("limit"), 10)

	result, err := r.vectors.Navigate(req.Context(), id, direction, scope, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "navigation failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseWhereParam decodes "key:value,key2:value2" metadata-equality
// filters into a map.
func parseWhereParam(raw string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}
