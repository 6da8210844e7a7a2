// Package api exposes the job controller to the rendering layer over a small
// local HTTP API: submit, cancel, current state, history and a live event
// stream. It holds no job state of its own.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dubwatch/dubwatch/internal/client"
	"github.com/dubwatch/dubwatch/internal/config"
	"github.com/dubwatch/dubwatch/internal/history"
	"github.com/dubwatch/dubwatch/internal/job"
	"github.com/dubwatch/dubwatch/internal/track"
)

// maxUploadBytes bounds the multipart submission body. Songs are minutes of
// audio, not hours; 200 MB leaves generous headroom for lossless files.
const maxUploadBytes = 200 << 20

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	ctrl *track.Controller
	cfg  *config.Config
}

// NewHandler constructs a Handler with the given dependencies.
func NewHandler(ctrl *track.Controller, cfg *config.Config) *Handler {
	return &Handler{ctrl: ctrl, cfg: cfg}
}

// RegisterRoutes registers all API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/jobs", requireMethod(http.MethodPost, h.SubmitJob))
	mux.HandleFunc("/api/v1/jobs/cancel", requireMethod(http.MethodPost, h.CancelJob))
	mux.HandleFunc("/api/v1/status", requireMethod(http.MethodGet, h.Status))
	mux.HandleFunc("/api/v1/history", requireMethod(http.MethodGet, h.History))
	mux.HandleFunc("/api/v1/events", requireMethod(http.MethodGet, h.StreamEvents))
	mux.HandleFunc("/api/v1/health", requireMethod(http.MethodGet, h.Health))
}

// requireMethod emulates Go 1.22+ method-qualified ServeMux patterns
// ("POST /path") on the Go 1.21 toolchain this module is built with: the
// handler runs only for the given method (HEAD is accepted for GET, as the
// 1.22 mux does); other methods get 405 with an Allow header.
func requireMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method && !(method == http.MethodGet && r.Method == http.MethodHead) {
			w.Header().Set("Allow", method)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// SubmitJob handles POST /api/v1/jobs: it reads the multipart form, starts
// tracking a new job (displacing the current one) and responds 202 with the
// job id. Validation failures are the caller's to fix (400); failures of the
// dubbing service surface as 502 with the service's message.
func (h *Handler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	req := &job.Request{
		StartTime: r.FormValue("start_time"),
		EndTime:   r.FormValue("end_time"),
		Language:  r.FormValue("language"),
	}
	if req.Language == "" {
		req.Language = h.cfg.DefaultLanguage
	}

	if file, hdr, err := r.FormFile("file"); err == nil {
		data, readErr := io.ReadAll(file)
		file.Close()
		if readErr != nil {
			writeError(w, http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		req.FileName = hdr.Filename
		req.File = data
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.ctrl.Start(r.Context(), req)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			writeError(w, http.StatusBadGateway, apiErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "failed to reach dubbing service: "+err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

// CancelJob handles POST /api/v1/jobs/cancel: it stops observing the current
// job. The remote job itself keeps running.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// Status handles GET /api/v1/status and responds 200 with the controller state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// History handles GET /api/v1/history and responds 200 with archived jobs,
// newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ctrl.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	// Return an empty array instead of null when there is no history.
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   len(entries),
	})
}

// Health handles GET /api/v1/health and responds 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"service_url": h.cfg.ServiceURL,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
