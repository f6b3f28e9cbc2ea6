package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"opal-bid-monitor/internal/domain"
	"opal-bid-monitor/pkg/logger"
)

type HealthHandler struct {
	checks map[string]domain.Pinger
	log    logger.Logger
}

// NewHealthHandler reports ready only when every named dependency answers.
func NewHealthHandler(checks map[string]domain.Pinger, log logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

// Register mounts /health and /ready on router.
func (h *HealthHandler) Register(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.log.Warn("Readiness check failed", "dependency", name, "error", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}

// NewRouter builds the ops router for a binary.
func NewRouter(checks map[string]domain.Pinger, log logger.Logger) *mux.Router {
	router := mux.NewRouter()
	NewHealthHandler(checks, log).Register(router)
	return router
}
