package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"metroplan/internal/domain"
	"metroplan/internal/ingestor"
	"metroplan/internal/store"
)

type Rebuilder interface {
	Rebuild(ctx context.Context, force bool) (ingestor.RebuildResult, error)
}

type NetworkHandler struct {
	store     *store.TopologyStore
	rebuilder Rebuilder
	stats     *Stats
	logger    *slog.Logger
}

func NewNetworkHandler(s *store.TopologyStore, rebuilder Rebuilder, stats *Stats, logger *slog.Logger) *NetworkHandler {
	return &NetworkHandler{
		store:     s,
		rebuilder: rebuilder,
		stats:     stats,
		logger:    logger.With("handler", "network"),
	}
}

type StationView struct {
	domain.Station
	Lines         []string `json:"lines"`
	IsInterchange bool     `json:"is_interchange"`
}

type StationsResponse struct {
	Stations   []StationView `json:"stations"`
	Count      int           `json:"count"`
	ServerTime time.Time     `json:"server_time"`
}

func stationView(snap *store.Snapshot, st domain.Station) StationView {
	return StationView{
		Station:       st,
		Lines:         snap.LinesAt(st.ID),
		IsInterchange: snap.Graph().IsInterchange(st.ID),
	}
}

func (h *NetworkHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	snap, err := h.store.Current()
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	stations := snap.Stations(r.URL.Query().Get("line"))
	views := make([]StationView, len(stations))
	for i, st := range stations {
		views[i] = stationView(snap, st)
	}

	respondJSON(w, http.StatusOK, StationsResponse{
		Stations:   views,
		Count:      len(views),
		ServerTime: time.Now(),
	})
}

func (h *NetworkHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	snap, err := h.store.Current()
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}

	st, ok := snap.Station(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "station not found")
		return
	}
	respondJSON(w, http.StatusOK, stationView(snap, st))
}

type LinesResponse struct {
	Lines []domain.Line `json:"lines"`
	Count int           `json:"count"`
}

func (h *NetworkHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	snap, err := h.store.Current()
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	lines := snap.Lines()
	respondJSON(w, http.StatusOK, LinesResponse{Lines: lines, Count: len(lines)})
}

func (h *NetworkHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	result, err := h.rebuilder.Rebuild(r.Context(), force)
	if err != nil {
		h.logger.Error("rebuild failed", "error", err)
		respondError(w, http.StatusBadGateway, "rebuild failed: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *NetworkHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()
	respondJSON(w, http.StatusOK, h.store.Stats())
}
