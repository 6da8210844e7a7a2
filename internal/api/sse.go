package api

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StreamEvents handles GET /api/v1/events.
// It streams controller events (status, tick, result, poll_error) as
// server-sent events until the client disconnects. The stream spans job
// submissions, so a UI can keep one connection open across jobs.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Send the current state so the client has an initial picture.
	writeSSEEvent(w, flusher, "state", h.ctrl.State())

	ch := h.ctrl.Subscribe()
	defer h.ctrl.Unsubscribe(ch)

	for {
		select {
		case event := <-ch:
			writeSSEEvent(w, flusher, string(event.Type), event)
		case <-r.Context().Done():
			return
		}
	}
}

// writeSSEEvent serialises data as JSON and writes a single SSE event frame.
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
