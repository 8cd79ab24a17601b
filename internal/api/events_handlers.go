package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"knowledge-collector/pkg/types"
)

const minIndexingEventInterval = 1000 * time.Millisecond

// handleIndexingEvents streams per-source status over server-sent
// events at a fixed cadence, starting immediately (spec.md §6
// "GET /events/indexing").
func (r *Router) handleIndexingEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	interval := minIndexingEventInterval
	if raw := req.URL.Query().Get("interval"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil {
			if d := time.Duration(ms) * time.Millisecond; d > minIndexingEventInterval {
				interval = d
			}
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := req.Context()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := r.emitIndexingEvent(ctx, w); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.emitIndexingEvent(ctx, w); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (r *Router) emitIndexingEvent(ctx context.Context, w http.ResponseWriter) error {
	statuses, err := r.cursors.AllStatus(ctx, types.AllSources)
	if err != nil {
		r.logger.WarnContext(ctx, "events: failed to load statuses", "error", err.Error())
		return err
	}
	event := map[string]interface{}{
		"type":      "status_update",
		"statuses":  statuses,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
