package planner

import (
	"strings"

	"github.com/shopspring/decimal"

	"metroplan/internal/network"
)

// label is one partial path in the search. Paths are stored as a chain of
// labels back to the origin so pushes never copy the whole path.
type label struct {
	station   string
	cost      decimal.Decimal
	hops      int
	transfers int
	walking   int
	lastLine  string
	edge      network.Edge
	prev      *label
	seq       int
}

func (l *label) path() []network.Edge {
	edges := make([]network.Edge, l.hops)
	for cur := l; cur.prev != nil; cur = cur.prev {
		edges[cur.hops-1] = cur.edge
	}
	return edges
}

// labelQueue orders labels by cost, then path length, then station id,
// then push order.
type labelQueue []*label

func (q labelQueue) Len() int { return len(q) }

func (q labelQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if c := a.cost.Cmp(b.cost); c != 0 {
		return c < 0
	}
	if a.hops != b.hops {
		return a.hops < b.hops
	}
	if c := strings.Compare(a.station, b.station); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

func (q labelQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *labelQueue) Push(x any) { *q = append(*q, x.(*label)) }

func (q *labelQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return item
}
