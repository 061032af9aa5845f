package store

import (
	"errors"
	"sync"
	"time"
)

var ErrNotLoaded = errors.New("topology not loaded")

// TopologyStore holds the snapshot currently used to answer requests.
// Rebuilds swap in a complete new snapshot; readers keep whichever one they
// already hold.
type TopologyStore struct {
	mu         sync.RWMutex
	current    *Snapshot
	lastUpdate time.Time
	swaps      int
}

func NewTopologyStore() *TopologyStore {
	return &TopologyStore{}
}

// Swap installs snap and returns the snapshot it replaced, if any.
func (s *TopologyStore) Swap(snap *Snapshot) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current
	s.current = snap
	s.lastUpdate = time.Now()
	s.swaps++
	return prev
}

func (s *TopologyStore) Current() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrNotLoaded
	}
	return s.current, nil
}

func (s *TopologyStore) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return ""
	}
	return s.current.Version()
}

type TopologyStats struct {
	Version        string    `json:"version"`
	Source         string    `json:"source,omitempty"`
	StationsCount  int       `json:"stations_count"`
	LinesCount     int       `json:"lines_count"`
	TransfersCount int       `json:"transfers_count"`
	NodesCount     int       `json:"nodes_count"`
	EdgesCount     int       `json:"edges_count"`
	SkippedLines   []string  `json:"skipped_lines,omitempty"`
	Rebuilds       int       `json:"rebuilds"`
	LastUpdate     time.Time `json:"last_update"`
	IsLoaded       bool      `json:"is_loaded"`
}

func (s *TopologyStore) Stats() TopologyStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := TopologyStats{
		Rebuilds:   s.swaps,
		LastUpdate: s.lastUpdate,
		IsLoaded:   s.current != nil,
	}
	if s.current == nil {
		return stats
	}

	snap := s.current
	stats.Version = snap.Version()
	stats.Source = snap.Source()
	stats.StationsCount = len(snap.stations)
	stats.LinesCount = len(snap.lines)
	stats.TransfersCount = len(snap.transfers)
	stats.NodesCount = snap.graph.NodeCount()
	stats.EdgesCount = snap.graph.EdgeCount()
	stats.SkippedLines = snap.buildStats.SkippedLines
	return stats
}
