package ingestor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"metroplan/internal/store"
	"metroplan/pkg/topology"
)

type Loader interface {
	Load(ctx context.Context) (*topology.Result, error)
}

type RebuildResult struct {
	Version    string `json:"version"`
	Changed    bool   `json:"changed"`
	FromCache  bool   `json:"from_cache"`
	Stations   int    `json:"stations"`
	Edges      int    `json:"edges"`
	DurationMs int64  `json:"duration_ms"`
}

// TopologyIngestor loads topology documents and swaps freshly built
// snapshots into the store, either on a timer or on demand.
type TopologyIngestor struct {
	loader    Loader
	store     *store.TopologyStore
	interval  time.Duration
	logger    *slog.Logger
	onRebuild func(context.Context, *store.Snapshot)

	rebuildMu sync.Mutex

	ready   bool
	readyMu sync.RWMutex
}

func NewTopologyIngestor(loader Loader, s *store.TopologyStore, interval time.Duration, logger *slog.Logger) *TopologyIngestor {
	return &TopologyIngestor{
		loader:   loader,
		store:    s,
		interval: interval,
		logger:   logger.With("component", "topology_ingestor"),
	}
}

// Start reloads the topology every interval until ctx is done. The first
// load is expected to have happened through Rebuild before Start is called.
func (i *TopologyIngestor) Start(ctx context.Context) {
	if i.interval <= 0 {
		i.logger.Info("periodic topology reload disabled")
		return
	}

	ticker := time.NewTicker(i.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := i.Rebuild(ctx, false); err != nil {
				i.logger.Error("scheduled topology reload failed", "error", err)
			}
		}
	}
}

// Rebuild loads the topology and, when its fingerprint differs from the
// current snapshot or force is set, builds and installs a new snapshot.
// Concurrent calls are serialized.
func (i *TopologyIngestor) Rebuild(ctx context.Context, force bool) (RebuildResult, error) {
	i.rebuildMu.Lock()
	defer i.rebuildMu.Unlock()

	start := time.Now()
	i.logger.Info("starting topology rebuild", "force", force)

	res, err := i.loader.Load(ctx)
	if err != nil {
		i.logger.Error("failed to load topology", "error", err)
		return RebuildResult{}, err
	}

	if !force && res.Fingerprint == i.store.Version() {
		i.logger.Info("topology unchanged, skipping rebuild", "version", res.Fingerprint)
		return RebuildResult{
			Version:    res.Fingerprint,
			FromCache:  res.FromCache,
			DurationMs: time.Since(start).Milliseconds(),
		}, nil
	}

	snap := store.NewSnapshot(res.Topology, res.Fingerprint, res.Source, i.logger)
	i.store.Swap(snap)

	if !i.IsReady() {
		i.setReady(true)
	}

	if i.onRebuild != nil {
		i.onRebuild(ctx, snap)
	}

	result := RebuildResult{
		Version:    res.Fingerprint,
		Changed:    true,
		FromCache:  res.FromCache,
		Stations:   snap.Graph().NodeCount(),
		Edges:      snap.Graph().EdgeCount(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	i.logger.Info("topology rebuild completed",
		"version", result.Version,
		"stations", result.Stations,
		"edges", result.Edges,
		"from_cache", result.FromCache,
		"total_duration_ms", result.DurationMs,
	)
	return result, nil
}

func (i *TopologyIngestor) IsReady() bool {
	i.readyMu.RLock()
	defer i.readyMu.RUnlock()
	return i.ready
}

func (i *TopologyIngestor) setReady(ready bool) {
	i.readyMu.Lock()
	defer i.readyMu.Unlock()
	i.ready = ready
}

// SetOnRebuild registers a callback run after each installed snapshot.
func (i *TopologyIngestor) SetOnRebuild(fn func(context.Context, *store.Snapshot)) {
	i.onRebuild = fn
}
