package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SystemHandler serves health, readiness, the API description and the
// fallback routes.
type SystemHandler struct {
	store   Pinger
	openAPI []byte
	logger  *slog.Logger
}

// NewSystemHandler creates a SystemHandler. openAPI is the pre-rendered
// OpenAPI document served at /openapi.json.
func NewSystemHandler(store Pinger, openAPI []byte, logger *slog.Logger) *SystemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemHandler{store: store, openAPI: openAPI, logger: logger}
}

type healthData struct {
	Timestamp time.Time `json:"timestamp"`
}

// Health reports that the process is serving.
// GET /health
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "Server is running", healthData{Timestamp: time.Now().UTC()})
}

// Ready reports whether the store answers a ping.
// GET /readyz
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	writeSuccess(w, http.StatusOK, "Ready", nil)
}

// OpenAPI serves the API description.
// GET /openapi.json
func (h *SystemHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.openAPI)
}

// NotFound is the router's fallback for unknown paths.
func (h *SystemHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Route not found")
}

// MethodNotAllowed is the router's fallback for known paths with the wrong
// method.
func (h *SystemHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
