package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"metroplan/internal/domain"
	"metroplan/internal/planner"
)

type RouteHandler struct {
	planner *planner.Service
	stats   *Stats
	logger  *slog.Logger
}

func NewRouteHandler(p *planner.Service, stats *Stats, logger *slog.Logger) *RouteHandler {
	return &RouteHandler{
		planner: p,
		stats:   stats,
		logger:  logger.With("handler", "routes"),
	}
}

func (h *RouteHandler) Plan(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.stats.IncRequests()

	req := domain.NewPlanRequest()
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.planner.Plan(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	h.stats.IncPlans(len(result.Options))

	h.logger.Debug("Plan response",
		"origin", req.Origin,
		"destination", req.Destination,
		"options", result.OptionCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	respondJSON(w, http.StatusOK, result)
}

func (h *RouteHandler) Alternatives(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	req := domain.NewAlternativesRequest()
	q := r.URL.Query()
	if err := parsePlanQuery(q, &req.PlanRequest); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := q.Get("max_alternatives"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid max_alternatives parameter")
			return
		}
		req.MaxAlternatives = n
	}
	req.AvoidLines = listParam(q, "avoid_lines")
	req.PreferLines = listParam(q, "prefer_lines")

	result, err := h.planner.Alternatives(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	h.stats.IncPlans(len(result.Options))
	respondJSON(w, http.StatusOK, result)
}

func (h *RouteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	req := domain.NewPlanRequest()
	if err := parsePlanQuery(r.URL.Query(), &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.planner.Validate(req)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (h *RouteHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	id := r.PathValue("id")
	opt, err := h.planner.Route(r.Context(), id)
	if err != nil {
		h.stats.IncCacheMisses()
		respondServiceError(w, h.logger, err)
		return
	}
	h.stats.IncCacheHits()
	respondJSON(w, http.StatusOK, opt)
}

func (h *RouteHandler) RouteFare(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	id := r.PathValue("id")
	resp, err := h.planner.PriceRoute(r.Context(), id, passengerTypeParam(r.URL.Query()))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type fareRequest struct {
	Segments        []domain.RouteSegment `json:"segments"`
	PassengerTypeID string                `json:"passenger_type_id"`
}

func (h *RouteHandler) SegmentsFare(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	req := fareRequest{PassengerTypeID: domain.DefaultPassengerType}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.planner.PriceSegments(req.Segments, req.PassengerTypeID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

type compareRequest struct {
	RouteIDs []string `json:"route_ids"`
}

type compareResponse struct {
	PassengerTypeID string                  `json:"passenger_type_id"`
	Comparisons     []domain.FareComparison `json:"comparisons"`
	Count           int                     `json:"count"`
}

func (h *RouteHandler) CompareFares(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	var req compareRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pt := passengerTypeParam(r.URL.Query())
	comparisons, err := h.planner.CompareFares(r.Context(), req.RouteIDs, pt)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, compareResponse{
		PassengerTypeID: pt,
		Comparisons:     comparisons,
		Count:           len(comparisons),
	})
}

type passengerTypesResponse struct {
	PassengerTypes []domain.PassengerType `json:"passenger_types"`
}

func (h *RouteHandler) PassengerTypes(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	types, err := h.planner.PassengerTypes()
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, passengerTypesResponse{PassengerTypes: types})
}

func (h *RouteHandler) Discount(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	info, err := h.planner.DiscountInfo(r.PathValue("id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func passengerTypeParam(q url.Values) string {
	if v := q.Get("passenger_type_id"); v != "" {
		return v
	}
	return domain.DefaultPassengerType
}

// parsePlanQuery overlays query parameters on req. Missing parameters keep
// the values already in req.
func parsePlanQuery(q url.Values, req *domain.PlanRequest) error {
	req.Origin = q.Get("from_station_id")
	req.Destination = q.Get("to_station_id")
	if v := q.Get("passenger_type_id"); v != "" {
		req.PassengerType = v
	}
	if v := q.Get("optimization"); v != "" {
		req.Optimization = domain.OptimizationMode(v)
	}
	if v := q.Get("departure_time"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fmt.Errorf("invalid departure_time parameter: expected RFC 3339")
		}
		req.DepartureTime = &t
	}
	for name, dst := range map[string]*int{
		"max_walking_time": &req.MaxWalkingMinutes,
		"max_transfers":    &req.MaxTransfers,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s parameter", name)
		}
		*dst = n
	}
	return nil
}

// listParam accepts both repeated parameters and comma separated values.
func listParam(q url.Values, name string) []string {
	var out []string
	for _, v := range q[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
