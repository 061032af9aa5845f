package network

import (
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metroplan/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

func station(id, line string) domain.Station {
	return domain.Station{ID: id, Name: id, LineID: line}
}

type fixedPricer struct{ fare decimal.Decimal }

func (p fixedPricer) HopFare(string, string, string, *float64) decimal.Decimal { return p.fare }

func TestBuild_ChainBothDirections(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{station("a", "red"), station("b", "red"), station("c", "red")},
		Lines:    []domain.Line{{ID: "red", Name: "Red Line", Color: "#f00", Stations: []string{"a", "b", "c"}}},
	}

	g, stats := Build(topo, nil, discardLogger())

	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 4, stats.TransitEdges)
	assert.Equal(t, 4, g.EdgeCount())

	require.Len(t, g.Neighbors("b"), 2)
	assert.Equal(t, "a", g.Neighbors("b")[0].To)
	assert.Equal(t, "c", g.Neighbors("b")[1].To)

	e := g.Neighbors("a")[0]
	assert.Equal(t, domain.KindTransit, e.Kind)
	assert.Equal(t, DefaultHopMinutes, e.DurationMinutes)
	assert.True(t, DefaultHopFare.Equal(e.Cost))
	assert.Equal(t, "red", e.LineID)

	assert.Equal(t, "Red Line", g.LineName("red"))
	assert.Equal(t, "#f00", g.LineColor("red"))
	assert.Equal(t, "ghost", g.LineName("ghost"))
}

func TestBuild_UsesPricerAndHopOverrides(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{station("a", "red"), station("b", "red")},
		Lines: []domain.Line{{
			ID: "red", Name: "Red", Stations: []string{"a", "b"}, HopMinutes: 4,
			Hops: []domain.Hop{{From: "b", To: "a", Minutes: ptr(7), DistanceKm: ptr(3.5)}},
		}},
	}

	g, _ := Build(topo, fixedPricer{fare: decimal.NewFromInt(42)}, discardLogger())

	for _, from := range []string{"a", "b"} {
		e := g.Neighbors(from)[0]
		assert.Equal(t, 7, e.DurationMinutes)
		require.NotNil(t, e.DistanceKm)
		assert.InDelta(t, 3.5, *e.DistanceKm, 1e-9)
		assert.True(t, decimal.NewFromInt(42).Equal(e.Cost))
	}
}

func TestBuild_LineHopMinutes(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{station("a", "red"), station("b", "red")},
		Lines:    []domain.Line{{ID: "red", Name: "Red", Stations: []string{"a", "b"}, HopMinutes: 4}},
	}
	g, _ := Build(topo, nil, discardLogger())
	assert.Equal(t, 4, g.Neighbors("a")[0].DurationMinutes)
}

func TestBuild_SequenceFallback(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{
			{ID: "c", Name: "C", LineID: "red", Sequence: 3},
			{ID: "a", Name: "A", LineID: "red", Sequence: 1},
			{ID: "b", Name: "B", LineID: "red", Sequence: 2},
			{ID: "x", Name: "X", LineID: "red"},
		},
		Lines: []domain.Line{{ID: "red", Name: "Red"}},
	}

	g, stats := Build(topo, nil, discardLogger())

	assert.Equal(t, 4, stats.TransitEdges)
	assert.Empty(t, g.Neighbors("x"))

	var reached []string
	for _, e := range g.Neighbors("b") {
		reached = append(reached, e.To)
	}
	assert.ElementsMatch(t, []string{"a", "c"}, reached)
}

func TestBuild_SkipsUnorderedAndSuspendedLines(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{
			station("a", "loose"), station("b", "loose"),
			station("c", "closed"), station("d", "closed"),
		},
		Lines: []domain.Line{
			{ID: "loose", Name: "Loose"},
			{ID: "closed", Name: "Closed", Status: domain.LineSuspended, Stations: []string{"c", "d"}},
		},
	}

	g, stats := Build(topo, nil, discardLogger())

	assert.Equal(t, 0, g.EdgeCount())
	assert.Equal(t, []string{"loose", "closed"}, stats.SkippedLines)
	assert.Equal(t, 4, g.NodeCount())
}

func TestBuild_TransfersAndWalks(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{
			station("a", "red"), station("b", "red"),
			station("p", "blue"), station("q", "blue"),
		},
		Lines: []domain.Line{
			{ID: "red", Name: "Red", Stations: []string{"a", "b"}},
			{ID: "blue", Name: "Blue", Stations: []string{"p", "q"}},
		},
		Transfers: []domain.TransferPoint{
			{StationA: "b", StationB: "p", WalkingMinutes: 4, Fee: 2.5},
			{StationA: "a", StationB: "q", WalkingMinutes: 9, Active: ptr(false)},
			{StationA: "b", StationB: "nowhere", WalkingMinutes: 1},
		},
		Walks: []domain.WalkLink{{From: "a", To: "q", Minutes: 6}},
	}

	g, stats := Build(topo, nil, discardLogger())

	assert.Equal(t, 2, stats.TransferEdges)
	assert.Equal(t, 2, stats.WalkEdges)
	assert.Equal(t, 4+2+2, g.EdgeCount())

	var transfer Edge
	for _, e := range g.Neighbors("p") {
		if e.Kind == domain.KindTransfer {
			transfer = e
		}
	}
	assert.Equal(t, "b", transfer.To)
	assert.Equal(t, 4, transfer.DurationMinutes)
	assert.Equal(t, 4, transfer.TransferMinutes)
	assert.True(t, decimal.NewFromFloat(2.5).Equal(transfer.Cost))

	var walk Edge
	for _, e := range g.Neighbors("q") {
		if e.Kind == domain.KindWalk {
			walk = e
		}
	}
	assert.Equal(t, "a", walk.To)
	assert.True(t, walk.Cost.IsZero())
	assert.Empty(t, walk.LineID)
}

func TestGraph_Interchange(t *testing.T) {
	topo := &domain.Topology{
		Stations: []domain.Station{station("a", "red"), station("hub", "red"), station("z", "blue")},
		Lines: []domain.Line{
			{ID: "red", Name: "Red", Stations: []string{"a", "hub"}},
			{ID: "blue", Name: "Blue", Stations: []string{"hub", "z"}},
		},
	}

	g, _ := Build(topo, nil, discardLogger())

	assert.True(t, g.IsInterchange("hub"))
	assert.False(t, g.IsInterchange("a"))
	assert.Equal(t, []string{"blue", "red"}, g.LinesAt("hub"))
	assert.Empty(t, g.LinesAt("unknown"))

	nodes := g.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "a", nodes[0].StationID)
	assert.Equal(t, "z", nodes[2].StationID)
}
