package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a fixed-window limiter keyed by client IP. Planning
// requests are CPU bound, so every search endpoint sits behind it.
type RateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*window
	rate      int
	period    time.Duration
	whitelist map[string]struct{}
	now       func() time.Time
	onBlocked func()
	logger    *slog.Logger
}

type window struct {
	remaining int
	startedAt time.Time
}

type Option func(*RateLimiter)

func WithClock(now func() time.Time) Option {
	return func(rl *RateLimiter) { rl.now = now }
}

// WithBlockedHook registers fn to run for every rejected request.
func WithBlockedHook(fn func()) Option {
	return func(rl *RateLimiter) { rl.onBlocked = fn }
}

// NewRateLimiter allows rate requests per period for each IP. Whitelisted
// IPs are never limited.
func NewRateLimiter(rate int, period time.Duration, whitelist []string, logger *slog.Logger, opts ...Option) *RateLimiter {
	wl := make(map[string]struct{}, len(whitelist))
	for _, ip := range whitelist {
		if ip = strings.TrimSpace(ip); ip != "" {
			wl[ip] = struct{}{}
		}
	}

	rl := &RateLimiter{
		clients:   make(map[string]*window),
		rate:      rate,
		period:    period,
		whitelist: wl,
		now:       time.Now,
		logger:    logger.With("component", "rate_limiter"),
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// RunCleanup evicts idle clients until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.period * 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *RateLimiter) evictIdle() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	evicted := 0
	for ip, w := range rl.clients {
		if now.Sub(w.startedAt) > rl.period*2 {
			delete(rl.clients, ip)
			evicted++
		}
	}
	return evicted
}

func (rl *RateLimiter) IsWhitelisted(ip string) bool {
	_, ok := rl.whitelist[ip]
	return ok
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[ip]
	if !ok || now.Sub(w.startedAt) >= rl.period {
		rl.clients[ip] = &window{remaining: rl.rate - 1, startedAt: now}
		return rl.rate > 0
	}

	if w.remaining > 0 {
		w.remaining--
		return true
	}
	return false
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(rl.period.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if rl.IsWhitelisted(ip) || rl.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
		if rl.onBlocked != nil {
			rl.onBlocked()
		}
		w.Header().Set("Retry-After", retryAfter)
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	})
}

// ClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection address.
func ClientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if host, _, err := net.SplitHostPort(first); err == nil {
			return host
		}
		return first
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type Stats struct {
	TrackedIPs       int     `json:"tracked_ips"`
	RatePerWindow    int     `json:"rate_per_window"`
	WindowSeconds    float64 `json:"window_seconds"`
	WhitelistEntries int     `json:"whitelist_entries"`
}

func (rl *RateLimiter) Stats() Stats {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return Stats{
		TrackedIPs:       len(rl.clients),
		RatePerWindow:    rl.rate,
		WindowSeconds:    rl.period.Seconds(),
		WhitelistEntries: len(rl.whitelist),
	}
}
