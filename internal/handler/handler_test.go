package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metroplan/internal/cache"
	"metroplan/internal/domain"
	"metroplan/internal/hub"
	"metroplan/internal/ingestor"
	"metroplan/internal/middleware"
	"metroplan/internal/planner"
	"metroplan/internal/store"
	"metroplan/pkg/topology"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRebuilder struct {
	err    error
	forced bool
}

func (f *fakeRebuilder) Rebuild(_ context.Context, force bool) (ingestor.RebuildResult, error) {
	f.forced = force
	if f.err != nil {
		return ingestor.RebuildResult{}, f.err
	}
	return ingestor.RebuildResult{Version: "v2", Changed: true, Stations: 35, Edges: 70}, nil
}

type readiness bool

func (r readiness) IsReady() bool { return bool(r) }

type testServer struct {
	mux       *http.ServeMux
	stats     *Stats
	hub       *hub.Hub
	store     *store.TopologyStore
	rebuilder *fakeRebuilder
}

func newTestServer(t *testing.T, loaded bool) *testServer {
	t.Helper()
	logger := discardLogger()

	topologyStore := store.NewTopologyStore()
	if loaded {
		data, err := os.ReadFile("../../pkg/topology/testdata/bangkok.yaml")
		require.NoError(t, err)
		topo, err := topology.NewParser(logger).Parse(data)
		require.NoError(t, err)
		topologyStore.Swap(store.NewSnapshot(topo, "v1", "bangkok.yaml", logger))
	}

	stats := NewStats()
	routeCache := cache.NewRouteCache(100, time.Hour, nil, logger)
	wsHub := hub.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go wsHub.Run(ctx)

	svc := planner.NewService(topologyStore, routeCache, planner.ServiceConfig{}, logger)
	rebuilder := &fakeRebuilder{}
	limiter := middleware.NewRateLimiter(100, time.Minute, nil, logger, middleware.WithBlockedHook(stats.IncRateLimitBlocked))

	routes := NewRouteHandler(svc, stats, logger)
	network := NewNetworkHandler(topologyStore, rebuilder, stats, logger)
	ws := NewWSHandler(wsHub, svc, stats, logger)
	health := NewHealthHandler(readiness(loaded), topologyStore)
	statsHandler := NewStatsHandler(stats, topologyStore, routeCache, limiter, wsHub)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/routes/plan", limiter.Middleware(http.HandlerFunc(routes.Plan)))
	mux.HandleFunc("GET /v1/routes/alternatives", routes.Alternatives)
	mux.HandleFunc("GET /v1/routes/validate", routes.Validate)
	mux.HandleFunc("GET /v1/routes/{id}", routes.GetRoute)
	mux.HandleFunc("GET /v1/routes/{id}/fare", routes.RouteFare)
	mux.HandleFunc("POST /v1/fares/calculate", routes.SegmentsFare)
	mux.HandleFunc("POST /v1/fares/compare", routes.CompareFares)
	mux.HandleFunc("GET /v1/fares/passenger-types", routes.PassengerTypes)
	mux.HandleFunc("GET /v1/fares/passenger-types/{id}/discount", routes.Discount)
	mux.HandleFunc("GET /v1/stations", network.ListStations)
	mux.HandleFunc("GET /v1/stations/{id}", network.GetStation)
	mux.HandleFunc("GET /v1/lines", network.ListLines)
	mux.HandleFunc("POST /v1/network/rebuild", network.Rebuild)
	mux.HandleFunc("GET /v1/network/stats", network.GetStats)
	mux.Handle("/v1/ws", CountRequests(stats, http.HandlerFunc(ws.ServeWS)))
	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz)

	return &testServer{mux: mux, stats: stats, hub: wsHub, store: topologyStore, rebuilder: rebuilder}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestPlan(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/v1/routes/plan", `{"from_station_id":"bts_siam","to_station_id":"mrt_si_lom"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	result := decode[domain.PlanResult](t, rec)
	require.Equal(t, 2, result.OptionCount)
	assert.Equal(t, 13, result.Options[0].Summary.TotalDurationMinutes)
	assert.Equal(t, int64(1), s.stats.Plans())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	first := raw["options"].([]any)[0].(map[string]any)
	assert.Equal(t, "34", first["summary"].(map[string]any)["total_cost"], "money is serialized as a string")

	rec = s.do(t, http.MethodGet, "/v1/routes/"+result.Options[0].ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, result.Options[0].ID, decode[domain.RouteOption](t, rec).ID)

	rec = s.do(t, http.MethodGet, "/v1/routes/"+result.Options[0].ID+"/fare?passenger_type_id=child", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fare := decode[domain.FareCalculationResponse](t, rec)
	assert.Equal(t, "17.00", fare.TotalFare.StringFixed(2))
	assert.Equal(t, "child", fare.PassengerTypeID)

	body, _ := json.Marshal(map[string]any{"route_ids": []string{result.Options[1].ID, result.Options[0].ID}})
	rec = s.do(t, http.MethodPost, "/v1/fares/compare", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cmp := decode[compareResponse](t, rec)
	assert.Equal(t, 2, cmp.Count)
	assert.Equal(t, "adult", cmp.PassengerTypeID)
	assert.Equal(t, result.Options[0].ID, cmp.Comparisons[0].RouteID)
}

func TestPlan_Errors(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/v1/routes/plan", `{"from_station_id":"bts_siam","to_station_id":"bts_siam","max_transfers":9}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[validationErrorResponse](t, rec)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, []string{"SAME_STATION", "EXCESSIVE_TRANSFERS"}, resp.Errors.Codes())

	rec = s.do(t, http.MethodPost, "/v1/routes/plan", `{"from_station_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/routes/plan", `{"from":"bts_siam"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = s.do(t, http.MethodGet, "/v1/routes/route-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/fares/compare", `{"route_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no routes provided", decode[errorResponse](t, rec).Error)
}

func TestPlan_Infeasible(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/v1/routes/plan", `{"from_station_id":"bts_siam","to_station_id":"mrt_si_lom","max_transfers":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	result := decode[domain.PlanResult](t, rec)
	assert.Empty(t, result.Options)
	assert.Equal(t, []string{"No transfers allowed but stations are on different lines"}, result.Warnings)
}

func TestNotLoaded(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/v1/routes/plan", `{"from_station_id":"a","to_station_id":"b"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/stations", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, decode[ReadyResponse](t, rec).Ready)

	rec = s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAlternativesAndValidate(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodGet, "/v1/routes/alternatives?from_station_id=bts_siam&to_station_id=mrt_si_lom&avoid_lines=bts_silom", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[domain.PlanResult](t, rec)
	require.Len(t, result.Options, 1)
	assert.False(t, result.Options[0].UsesLine("bts_silom"))

	rec = s.do(t, http.MethodGet, "/v1/routes/alternatives?from_station_id=bts_siam&to_station_id=mrt_si_lom&max_alternatives=many", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/routes/validate?from_station_id=bts_siam&to_station_id=arl_suvarnabhumi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[planner.ValidationReport](t, rec)
	assert.True(t, report.Valid)
	assert.True(t, report.Feasible)
	assert.Len(t, report.Warnings, 1)

	rec = s.do(t, http.MethodGet, "/v1/routes/validate?from_station_id=bts_siam&to_station_id=bts_mo_chit&departure_time=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/routes/validate?from_station_id=bts_siam&to_station_id=bts_mo_chit&max_walking_time=90", "")
	require.Equal(t, http.StatusOK, rec.Code)
	report = decode[planner.ValidationReport](t, rec)
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"EXCESSIVE_WALKING_TIME"}, report.Errors.Codes())
}

func TestFares(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/v1/fares/calculate", `{
		"passenger_type_id": "student",
		"segments": [
			{"transport_type": "transit", "line_id": "arl", "from_station_id": "arl_lat_krabang", "to_station_id": "arl_suvarnabhumi", "distance_km": 7.8},
			{"transport_type": "walk", "from_station_id": "bts_chit_lom", "to_station_id": "bts_ratchadamri"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	fare := decode[domain.FareCalculationResponse](t, rec)
	assert.Equal(t, "16.48", fare.TotalFare.StringFixed(2))
	assert.Equal(t, "THB", fare.Currency)
	require.Len(t, fare.Breakdown, 2)
	assert.True(t, fare.Breakdown[1].SegmentTotal.IsZero())

	rec = s.do(t, http.MethodPost, "/v1/fares/calculate", `{"segments":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/fares/passenger-types", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[passengerTypesResponse](t, rec).PassengerTypes, 4)

	rec = s.do(t, http.MethodGet, "/v1/fares/passenger-types/child/discount", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[domain.DiscountInfo](t, rec)
	assert.Equal(t, 50.0, info.DiscountPercentage)
	assert.Equal(t, "Children under 12", info.Description)
}

func TestNetworkEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodGet, "/v1/stations?line=bts_silom", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stations := decode[StationsResponse](t, rec)
	assert.Equal(t, 7, stations.Count)
	assert.Equal(t, "bts_national_stadium", stations.Stations[0].ID)

	rec = s.do(t, http.MethodGet, "/v1/stations/bts_siam", "")
	require.Equal(t, http.StatusOK, rec.Code)
	siam := decode[StationView](t, rec)
	assert.Equal(t, "Siam", siam.Name)
	assert.Equal(t, []string{"bts_sukhumvit"}, siam.Lines)
	assert.False(t, siam.IsInterchange)

	rec = s.do(t, http.MethodGet, "/v1/stations/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/lines", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[LinesResponse](t, rec).Count)

	rec = s.do(t, http.MethodGet, "/v1/network/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ts := decode[store.TopologyStats](t, rec)
	assert.Equal(t, 70, ts.EdgesCount)
	assert.True(t, ts.IsLoaded)

	rec = s.do(t, http.MethodPost, "/v1/network/rebuild?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.rebuilder.forced)
	assert.Equal(t, "v2", decode[ingestor.RebuildResult](t, rec).Version)

	s.rebuilder.err = errors.New("source unavailable")
	rec = s.do(t, http.MethodPost, "/v1/network/rebuild", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.False(t, s.rebuilder.forced)
}

func TestReadyAndStats(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadyResponse](t, rec)
	assert.True(t, ready.Ready)
	assert.Equal(t, "v1", ready.Version)
	assert.Equal(t, 35, ready.StationCount)

	s.do(t, http.MethodPost, "/v1/routes/plan", `{"from_station_id":"bts_siam","to_station_id":"bts_mo_chit"}`)
	s.do(t, http.MethodGet, "/v1/routes/route-404", "")

	rec = s.do(t, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[StatsResponse](t, rec)
	assert.Equal(t, int64(3), stats.Server.RequestCount)
	assert.Equal(t, int64(1), stats.Planner.Plans)
	assert.Equal(t, int64(1), stats.Planner.LookupMisses)
	assert.Equal(t, "v1", stats.Network.Version)
	require.NotNil(t, stats.RateLimit)
	assert.Equal(t, 100, stats.RateLimit.RatePerWindow)
	assert.Positive(t, stats.Go.Goroutines)
}

func TestMiddleware(t *testing.T) {
	h := CORSMiddleware(GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(bytes.Repeat([]byte("a"), 4096))
	})))

	req := httptest.NewRequest(http.MethodOptions, "/v1/routes/plan", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/stations", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Less(t, rec.Body.Len(), 4096)
}
