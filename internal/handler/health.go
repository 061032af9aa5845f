package handler

import (
	"net/http"
	"time"

	"metroplan/internal/store"
)

type ReadinessChecker interface {
	IsReady() bool
}

type HealthHandler struct {
	ingestor ReadinessChecker
	store    *store.TopologyStore
}

func NewHealthHandler(ing ReadinessChecker, s *store.TopologyStore) *HealthHandler {
	return &HealthHandler{
		ingestor: ing,
		store:    s,
	}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type ReadyResponse struct {
	Ready        bool      `json:"ready"`
	Version      string    `json:"version,omitempty"`
	StationCount int       `json:"station_count"`
	ServerTime   time.Time `json:"server_time"`
}

// Readyz reports ready once a topology snapshot has been installed.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ready := h.ingestor.IsReady()
	resp := ReadyResponse{Ready: ready, ServerTime: time.Now()}

	if snap, err := h.store.Current(); err == nil {
		resp.Version = snap.Version()
		resp.StationCount = snap.Graph().NodeCount()
	} else {
		resp.Ready = false
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}
