package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"metroplan/internal/cache"
	"metroplan/internal/config"
	"metroplan/internal/handler"
	"metroplan/internal/hub"
	"metroplan/internal/ingestor"
	"metroplan/internal/middleware"
	"metroplan/internal/planner"
	"metroplan/internal/store"
	"metroplan/pkg/topology"
)

func serveCommand(cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the planning HTTP and WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "topology",
				Usage:   "topology file path or http(s) URL",
				EnvVars: []string{"TOPOLOGY_SOURCE"},
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "HTTP listen address",
				EnvVars: []string{"HTTP_ADDR"},
				Value:   cfg.HTTPAddr,
			},
		},
		Action: func(c *cli.Context) error {
			if v := c.String("topology"); v != "" {
				cfg.TopologySource = v
			}
			cfg.HTTPAddr = c.String("addr")
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg, logger)
		},
	}
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting metroplan server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"topology_source", cfg.TopologySource,
		"redis_enabled", cfg.RedisEnabled,
	)

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		var err error
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, continuing with in-process route cache only", "error", err)
			redisCache = nil
		} else {
			defer redisCache.Close()
			logger.Info("redis connected", "addr", cfg.RedisAddr)
		}
	}

	stats := handler.NewStats()
	routeCache := cache.NewRouteCache(cfg.RouteCacheSize, cfg.RouteCacheTTL, redisCache, logger)
	topologyStore := store.NewTopologyStore()
	wsHub := hub.NewHub(logger)

	cacheDir := cfg.TopologyCacheDir
	if cacheDir == "" {
		cacheDir = topology.DefaultCacheDir()
	}
	loader := topology.NewLoader(cfg.TopologySource, cfg.TopologyFetchRetries, cacheDir, logger)
	ing := ingestor.NewTopologyIngestor(loader, topologyStore, cfg.TopologyReloadInterval, logger)
	ing.SetOnRebuild(func(ctx context.Context, snap *store.Snapshot) {
		routeCache.Reset(ctx, snap.Version())
		wsHub.Broadcast(hub.Event{
			Type: hub.EventNetworkRebuilt,
			Payload: hub.NetworkRebuiltPayload{
				Version:  snap.Version(),
				Stations: snap.Graph().NodeCount(),
				Edges:    snap.Graph().EdgeCount(),
			},
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := ing.Rebuild(ctx, true); err != nil {
		return fmt.Errorf("initial topology load: %w", err)
	}

	plannerSvc := planner.NewService(topologyStore, routeCache, planner.ServiceConfig{
		MaxIterations: cfg.SearchMaxIterations,
		SearchTimeout: cfg.SearchTimeout,
	}, logger)

	limiter := middleware.NewRateLimiter(
		cfg.RateLimitPerWindow,
		cfg.RateLimitWindow,
		cfg.RateLimitWhitelist,
		logger,
		middleware.WithBlockedHook(stats.IncRateLimitBlocked),
	)

	routeHandler := handler.NewRouteHandler(plannerSvc, stats, logger)
	networkHandler := handler.NewNetworkHandler(topologyStore, ing, stats, logger)
	wsHandler := handler.NewWSHandler(wsHub, plannerSvc, stats, logger)
	healthHandler := handler.NewHealthHandler(ing, topologyStore)
	statsHandler := handler.NewStatsHandler(stats, topologyStore, routeCache, limiter, wsHub)

	limited := func(fn http.HandlerFunc) http.Handler {
		return limiter.Middleware(fn)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /v1/routes/plan", limited(routeHandler.Plan))
	mux.Handle("GET /v1/routes/alternatives", limited(routeHandler.Alternatives))
	mux.HandleFunc("GET /v1/routes/validate", routeHandler.Validate)
	mux.HandleFunc("GET /v1/routes/{id}", routeHandler.GetRoute)
	mux.HandleFunc("GET /v1/routes/{id}/fare", routeHandler.RouteFare)

	mux.HandleFunc("POST /v1/fares/calculate", routeHandler.SegmentsFare)
	mux.Handle("POST /v1/fares/compare", limited(routeHandler.CompareFares))
	mux.HandleFunc("GET /v1/fares/passenger-types", routeHandler.PassengerTypes)
	mux.HandleFunc("GET /v1/fares/passenger-types/{id}/discount", routeHandler.Discount)

	mux.HandleFunc("GET /v1/stations", networkHandler.ListStations)
	mux.HandleFunc("GET /v1/stations/{id}", networkHandler.GetStation)
	mux.HandleFunc("GET /v1/lines", networkHandler.ListLines)
	mux.HandleFunc("POST /v1/network/rebuild", networkHandler.Rebuild)
	mux.HandleFunc("GET /v1/network/stats", networkHandler.GetStats)

	mux.Handle("/v1/ws", limiter.Middleware(handler.CountRequests(stats, http.HandlerFunc(wsHandler.ServeWS))))

	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.CORSMiddleware(handler.GzipMiddleware(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)
	go ing.Start(ctx)
	go limiter.RunCleanup(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
