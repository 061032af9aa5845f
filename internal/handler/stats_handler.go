package handler

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"metroplan/internal/cache"
	"metroplan/internal/middleware"
	"metroplan/internal/store"
)

// Stats tracks server-wide counters.
type Stats struct {
	startTime        time.Time
	requestCount     atomic.Int64
	planCount        atomic.Int64
	optionCount      atomic.Int64
	wsConnections    atomic.Int64
	wsMessagesIn     atomic.Int64
	wsMessagesOut    atomic.Int64
	cacheHits        atomic.Int64
	cacheMisses      atomic.Int64
	rateLimitBlocked atomic.Int64
}

func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) IncRequests()         { s.requestCount.Add(1) }
func (s *Stats) IncWSConnections()    { s.wsConnections.Add(1) }
func (s *Stats) DecWSConnections()    { s.wsConnections.Add(-1) }
func (s *Stats) IncWSMessagesIn()     { s.wsMessagesIn.Add(1) }
func (s *Stats) IncWSMessagesOut()    { s.wsMessagesOut.Add(1) }
func (s *Stats) IncCacheHits()        { s.cacheHits.Add(1) }
func (s *Stats) IncCacheMisses()      { s.cacheMisses.Add(1) }
func (s *Stats) IncRateLimitBlocked() { s.rateLimitBlocked.Add(1) }

// IncPlans records one answered planning request that produced n options.
func (s *Stats) IncPlans(n int) {
	s.planCount.Add(1)
	s.optionCount.Add(int64(n))
}

func (s *Stats) Requests() int64 { return s.requestCount.Load() }
func (s *Stats) Plans() int64    { return s.planCount.Load() }

type ClientCounter interface {
	ClientCount() int
}

type StatsHandler struct {
	stats    *Stats
	topology *store.TopologyStore
	routes   *cache.RouteCache
	limiter  *middleware.RateLimiter
	hub      ClientCounter
}

// NewStatsHandler wires the sources reported by GET /v1/stats. limiter may
// be nil when rate limiting is disabled.
func NewStatsHandler(stats *Stats, topology *store.TopologyStore, routes *cache.RouteCache, limiter *middleware.RateLimiter, hub ClientCounter) *StatsHandler {
	return &StatsHandler{
		stats:    stats,
		topology: topology,
		routes:   routes,
		limiter:  limiter,
		hub:      hub,
	}
}

type StatsResponse struct {
	Server    ServerStatsResponse    `json:"server"`
	Planner   PlannerStatsResponse   `json:"planner"`
	Network   store.TopologyStats    `json:"network"`
	RouteLRU  cache.RouteCacheStats  `json:"route_cache"`
	RateLimit *middleware.Stats      `json:"rate_limit,omitempty"`
	WebSocket WebSocketStatsResponse `json:"websocket"`
	Go        GoStatsResponse        `json:"go"`
}

type ServerStatsResponse struct {
	Uptime        string    `json:"uptime"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	StartTime     time.Time `json:"start_time"`
	RequestCount  int64     `json:"request_count"`
	RateLimited   int64     `json:"rate_limited"`
	Version       string    `json:"version"`
}

type PlannerStatsResponse struct {
	Plans          int64   `json:"plans"`
	Options        int64   `json:"options"`
	OptionsPerPlan float64 `json:"options_per_plan"`
	LookupHits     int64   `json:"lookup_hits"`
	LookupMisses   int64   `json:"lookup_misses"`
	LookupHitRatio float64 `json:"lookup_hit_ratio"`
}

type WebSocketStatsResponse struct {
	Clients     int   `json:"clients"`
	Connections int64 `json:"connections"`
	MessagesIn  int64 `json:"messages_in"`
	MessagesOut int64 `json:"messages_out"`
}

type GoStatsResponse struct {
	Goroutines  int     `json:"goroutines"`
	HeapAlloc   uint64  `json:"heap_alloc_bytes"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	NumGC       uint32  `json:"num_gc"`
	GoVersion   string  `json:"go_version"`
}

func ratio(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.stats.IncRequests()

	uptime := time.Since(h.stats.startTime)

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	hits := h.stats.cacheHits.Load()
	misses := h.stats.cacheMisses.Load()
	plans := h.stats.planCount.Load()
	options := h.stats.optionCount.Load()

	response := StatsResponse{
		Server: ServerStatsResponse{
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			StartTime:     h.stats.startTime,
			RequestCount:  h.stats.requestCount.Load(),
			RateLimited:   h.stats.rateLimitBlocked.Load(),
			Version:       "1.0.0",
		},
		Planner: PlannerStatsResponse{
			Plans:          plans,
			Options:        options,
			OptionsPerPlan: ratio(options, plans),
			LookupHits:     hits,
			LookupMisses:   misses,
			LookupHitRatio: ratio(hits, hits+misses),
		},
		Network:  h.topology.Stats(),
		RouteLRU: h.routes.Stats(),
		WebSocket: WebSocketStatsResponse{
			Connections: h.stats.wsConnections.Load(),
			MessagesIn:  h.stats.wsMessagesIn.Load(),
			MessagesOut: h.stats.wsMessagesOut.Load(),
		},
		Go: GoStatsResponse{
			Goroutines:  runtime.NumGoroutine(),
			HeapAlloc:   mem.HeapAlloc,
			HeapAllocMB: float64(mem.HeapAlloc) / 1024 / 1024,
			NumGC:       mem.NumGC,
			GoVersion:   runtime.Version(),
		},
	}
	if h.hub != nil {
		response.WebSocket.Clients = h.hub.ClientCount()
	}
	if h.limiter != nil {
		ls := h.limiter.Stats()
		response.RateLimit = &ls
	}

	w.Header().Set("Cache-Control", "no-cache")
	respondJSON(w, http.StatusOK, response)
}
