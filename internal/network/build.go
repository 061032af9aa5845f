package network

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"metroplan/internal/domain"
)

const DefaultHopMinutes = 3

// DefaultHopFare prices a transit hop when no pricer is supplied.
var DefaultHopFare = decimal.NewFromInt(15)

// EdgePricer returns the undiscounted fare for riding lineID between two
// adjacent stations.
type EdgePricer interface {
	HopFare(lineID, fromID, toID string, distanceKm *float64) decimal.Decimal
}

type BuildStats struct {
	Nodes         int
	TransitEdges  int
	TransferEdges int
	WalkEdges     int
	SkippedLines  []string
}

// Build constructs the graph for a topology snapshot. Transit edges join
// consecutive stations of each line's ordered station list in both
// directions; active transfers and walk links add their own edge pairs.
func Build(t *domain.Topology, pricer EdgePricer, logger *slog.Logger) (*Graph, BuildStats) {
	start := time.Now()
	logger = logger.With("component", "graph_builder")

	g := New()
	var stats BuildStats

	lineByID := make(map[string]domain.Line, len(t.Lines))
	for _, l := range t.Lines {
		lineByID[l.ID] = l
		g.setLine(l.ID, l.Name, l.Color)
	}

	for _, s := range t.Stations {
		n := Node{
			StationID: s.ID,
			Name:      s.Name,
			LineID:    s.LineID,
			Lat:       s.Lat,
			Lon:       s.Lon,
			Zone:      s.Zone,
		}
		if l, ok := lineByID[s.LineID]; ok {
			n.LineName = l.Name
		}
		g.AddNode(n)
	}
	stats.Nodes = g.NodeCount()

	for _, line := range t.Lines {
		if !line.IsActive() {
			logger.Info("skipping suspended line", "line_id", line.ID)
			stats.SkippedLines = append(stats.SkippedLines, line.ID)
			continue
		}

		sequence := lineSequence(line, t.Stations)
		if len(sequence) == 0 {
			logger.Warn("line has no station ordering, skipping", "line_id", line.ID)
			stats.SkippedLines = append(stats.SkippedLines, line.ID)
			continue
		}

		known := make([]string, 0, len(sequence))
		for _, id := range sequence {
			if !g.HasNode(id) {
				logger.Warn("line references unknown station", "line_id", line.ID, "station_id", id)
				continue
			}
			g.addServingLine(id, line.ID)
			known = append(known, id)
		}

		for i := 0; i+1 < len(known); i++ {
			from, to := known[i], known[i+1]
			minutes, distance := hopDetails(line, from, to)

			cost := DefaultHopFare
			if pricer != nil {
				cost = pricer.HopFare(line.ID, from, to, distance)
			}

			g.AddEdge(Edge{From: from, To: to, Kind: domain.KindTransit, DurationMinutes: minutes, Cost: cost, DistanceKm: distance, LineID: line.ID})
			g.AddEdge(Edge{From: to, To: from, Kind: domain.KindTransit, DurationMinutes: minutes, Cost: cost, DistanceKm: distance, LineID: line.ID})
			stats.TransitEdges += 2
		}
	}

	for _, tp := range t.Transfers {
		if !tp.IsActive() {
			continue
		}
		if !g.HasNode(tp.StationA) || !g.HasNode(tp.StationB) {
			logger.Warn("transfer references unknown station", "station_a", tp.StationA, "station_b", tp.StationB)
			continue
		}
		fee := decimal.NewFromFloat(tp.Fee)
		g.AddEdge(Edge{From: tp.StationA, To: tp.StationB, Kind: domain.KindTransfer, DurationMinutes: tp.WalkingMinutes, Cost: fee, TransferMinutes: tp.WalkingMinutes})
		g.AddEdge(Edge{From: tp.StationB, To: tp.StationA, Kind: domain.KindTransfer, DurationMinutes: tp.WalkingMinutes, Cost: fee, TransferMinutes: tp.WalkingMinutes})
		stats.TransferEdges += 2
	}

	for _, w := range t.Walks {
		if !g.HasNode(w.From) || !g.HasNode(w.To) {
			logger.Warn("walk link references unknown station", "from", w.From, "to", w.To)
			continue
		}
		g.AddEdge(Edge{From: w.From, To: w.To, Kind: domain.KindWalk, DurationMinutes: w.Minutes, Cost: decimal.Zero, DistanceKm: w.DistanceKm})
		g.AddEdge(Edge{From: w.To, To: w.From, Kind: domain.KindWalk, DurationMinutes: w.Minutes, Cost: decimal.Zero, DistanceKm: w.DistanceKm})
		stats.WalkEdges += 2
	}

	logger.Info("network graph built",
		"nodes", stats.Nodes,
		"transit_edges", stats.TransitEdges,
		"transfer_edges", stats.TransferEdges,
		"walk_edges", stats.WalkEdges,
		"skipped_lines", len(stats.SkippedLines),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return g, stats
}

// lineSequence returns the running order of a line. The explicit station
// list wins; otherwise stations that name the line and carry a positive
// sequence number are ordered by it. Lines with neither yield nil.
func lineSequence(line domain.Line, stations []domain.Station) []string {
	if len(line.Stations) > 0 {
		return line.Stations
	}

	var members []domain.Station
	for _, s := range stations {
		if s.LineID == line.ID && s.Sequence > 0 {
			members = append(members, s)
		}
	}
	slices.SortFunc(members, func(a, b domain.Station) int {
		if a.Sequence != b.Sequence {
			return a.Sequence - b.Sequence
		}
		return strings.Compare(a.ID, b.ID)
	})

	out := make([]string, len(members))
	for i, s := range members {
		out[i] = s.ID
	}
	return out
}

func hopDetails(line domain.Line, from, to string) (int, *float64) {
	minutes := line.HopMinutes
	if minutes <= 0 {
		minutes = DefaultHopMinutes
	}
	for _, h := range line.Hops {
		if (h.From == from && h.To == to) || (h.From == to && h.To == from) {
			if h.Minutes != nil {
				minutes = *h.Minutes
			}
			return minutes, h.DistanceKm
		}
	}
	return minutes, nil
}
