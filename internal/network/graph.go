package network

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"metroplan/internal/domain"
)

type Node struct {
	StationID string
	Name      string
	LineID    string
	LineName  string
	Lat       *float64
	Lon       *float64
	Zone      *int
}

type Edge struct {
	From            string
	To              string
	Kind            domain.TransportKind
	DurationMinutes int
	Cost            decimal.Decimal
	DistanceKm      *float64
	LineID          string
	TransferMinutes int
}

// Graph is a directed adjacency structure. It is not safe for concurrent
// mutation; once built it is only ever read.
type Graph struct {
	nodes     map[string]Node
	adjacency map[string][]Edge
	lines     map[string]map[string]struct{}
	lineNames map[string]string
	lineColor map[string]string
	edges     int
}

func New() *Graph {
	return &Graph{
		nodes:     make(map[string]Node),
		adjacency: make(map[string][]Edge),
		lines:     make(map[string]map[string]struct{}),
		lineNames: make(map[string]string),
		lineColor: make(map[string]string),
	}
}

func (g *Graph) AddNode(n Node) {
	g.nodes[n.StationID] = n
	if n.LineID != "" {
		g.addServingLine(n.StationID, n.LineID)
	}
}

func (g *Graph) addServingLine(stationID, lineID string) {
	set, ok := g.lines[stationID]
	if !ok {
		set = make(map[string]struct{})
		g.lines[stationID] = set
	}
	set[lineID] = struct{}{}
}

func (g *Graph) AddEdge(e Edge) {
	g.adjacency[e.From] = append(g.adjacency[e.From], e)
	g.edges++
}

// Neighbors returns the outgoing edges of a station in insertion order. The
// returned slice is shared and must not be modified.
func (g *Graph) Neighbors(stationID string) []Edge {
	return g.adjacency[stationID]
}

func (g *Graph) IsInterchange(stationID string) bool {
	return len(g.lines[stationID]) > 1
}

// LinesAt returns the sorted ids of the lines serving a station.
func (g *Graph) LinesAt(stationID string) []string {
	set := g.lines[stationID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (g *Graph) Node(stationID string) (Node, bool) {
	n, ok := g.nodes[stationID]
	return n, ok
}

func (g *Graph) HasNode(stationID string) bool {
	_, ok := g.nodes[stationID]
	return ok
}

// Nodes returns every node ordered by station id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b Node) int {
		return strings.Compare(a.StationID, b.StationID)
	})
	return out
}

func (g *Graph) NodeCount() int { return len(g.nodes) }
func (g *Graph) EdgeCount() int { return g.edges }

func (g *Graph) setLine(id, name, color string) {
	g.lineNames[id] = name
	g.lineColor[id] = color
}

// LineName resolves a line id to its display name, or the id itself when
// the line is unknown.
func (g *Graph) LineName(lineID string) string {
	if name, ok := g.lineNames[lineID]; ok {
		return name
	}
	return lineID
}

func (g *Graph) LineColor(lineID string) string {
	return g.lineColor[lineID]
}
