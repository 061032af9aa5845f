package planner

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"metroplan/internal/domain"
	"metroplan/internal/network"
)

const (
	DefaultMaxIterations = 200_000
	MaxOptions           = 3

	cancelCheckInterval = 256
	significantMinutes  = 10
	transferPenalty     = 5
)

var (
	significantCost = decimal.NewFromInt(10)
	ten             = decimal.NewFromInt(10)
)

// Query is a single search over the graph.
type Query struct {
	Origin            string
	Destination       string
	Mode              domain.OptimizationMode
	MaxWalkingMinutes int
	MaxTransfers      int
	DepartureTime     *time.Time
}

func QueryFromRequest(r domain.PlanRequest) Query {
	return Query{
		Origin:            r.Origin,
		Destination:       r.Destination,
		Mode:              r.Optimization,
		MaxWalkingMinutes: r.MaxWalkingMinutes,
		MaxTransfers:      r.MaxTransfers,
		DepartureTime:     r.DepartureTime,
	}
}

type Calculator struct {
	graph         *network.Graph
	maxIterations int
	now           func() time.Time
	newID         func() string
	logger        *slog.Logger
}

type Option func(*Calculator)

// WithMaxIterations bounds the number of queue pops per search. A search
// that runs out of budget reports no route.
func WithMaxIterations(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Calculator) { c.newID = fn }
}

func NewCalculator(g *network.Graph, logger *slog.Logger, opts ...Option) *Calculator {
	c := &Calculator{
		graph:         g,
		maxIterations: DefaultMaxIterations,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
		logger:        logger.With("component", "route_calculator"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Calculate returns the best route for the query's mode followed by up to
// two alternatives found with the other modes. An empty result means no
// route exists under the constraints.
func (c *Calculator) Calculate(ctx context.Context, q Query) []domain.RouteOption {
	start := time.Now()

	primary, ok := c.ShortestPath(ctx, q, q.Mode)
	if !ok {
		c.logger.Debug("no route found",
			"origin", q.Origin,
			"destination", q.Destination,
			"mode", q.Mode,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	departure := c.departure(q.DepartureTime)
	options := []domain.RouteOption{c.buildOption(primary, q.Mode, departure)}

	modes := alternativeModes(q.Mode)
	paths := iter.Map(modes, func(m *domain.OptimizationMode) []network.Edge {
		path, _ := c.ShortestPath(ctx, q, *m)
		return path
	})

	for i, path := range paths {
		if len(options) >= MaxOptions {
			break
		}
		if path == nil {
			continue
		}
		candidate := c.buildOption(path, modes[i], departure)
		if significantlyDifferent(candidate, options) {
			options = append(options, candidate)
		}
	}

	c.logger.Debug("routes calculated",
		"origin", q.Origin,
		"destination", q.Destination,
		"mode", q.Mode,
		"options", len(options),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return options
}

func alternativeModes(primary domain.OptimizationMode) []domain.OptimizationMode {
	modes := make([]domain.OptimizationMode, 0, len(domain.PublicModes))
	for _, m := range domain.PublicModes {
		if m != primary {
			modes = append(modes, m)
		}
	}
	return modes
}

func (c *Calculator) departure(requested *time.Time) time.Time {
	if requested != nil {
		return *requested
	}
	return c.now().Truncate(time.Minute)
}

type bestLabel struct {
	cost decimal.Decimal
	hops int
}

// ShortestPath runs the constrained search for one mode. Edges that would
// push the transfer count or walking minutes over the query limits are
// never relaxed.
func (c *Calculator) ShortestPath(ctx context.Context, q Query, mode domain.OptimizationMode) ([]network.Edge, bool) {
	if q.Origin == q.Destination || !c.graph.HasNode(q.Origin) || !c.graph.HasNode(q.Destination) {
		return nil, false
	}

	best := map[string]bestLabel{q.Origin: {cost: decimal.Zero}}
	visited := make(map[string]struct{})
	pq := &labelQueue{{station: q.Origin, cost: decimal.Zero}}
	seq := 0

	for iterations := 1; pq.Len() > 0; iterations++ {
		if iterations > c.maxIterations {
			c.logger.Warn("search budget exhausted",
				"origin", q.Origin,
				"destination", q.Destination,
				"mode", mode,
				"max_iterations", c.maxIterations,
			)
			return nil, false
		}
		if iterations%cancelCheckInterval == 0 && ctx.Err() != nil {
			c.logger.Warn("search cancelled", "origin", q.Origin, "destination", q.Destination, "error", ctx.Err())
			return nil, false
		}

		cur := heap.Pop(pq).(*label)
		if _, done := visited[cur.station]; done {
			continue
		}
		visited[cur.station] = struct{}{}

		if cur.station == q.Destination {
			return cur.path(), true
		}

		for _, e := range c.graph.Neighbors(cur.station) {
			if _, done := visited[e.To]; done {
				continue
			}

			transfers, walking, lastLine := advance(cur.transfers, cur.walking, cur.lastLine, e)
			if transfers > q.MaxTransfers || walking > q.MaxWalkingMinutes {
				continue
			}

			cost := cur.cost.Add(edgeCost(e, mode))
			hops := cur.hops + 1
			if b, ok := best[e.To]; ok && !improves(cost, hops, b) {
				continue
			}
			best[e.To] = bestLabel{cost: cost, hops: hops}

			seq++
			heap.Push(pq, &label{
				station:   e.To,
				cost:      cost,
				hops:      hops,
				transfers: transfers,
				walking:   walking,
				lastLine:  lastLine,
				edge:      e,
				prev:      cur,
				seq:       seq,
			})
		}
	}

	return nil, false
}

func improves(cost decimal.Decimal, hops int, b bestLabel) bool {
	if c := cost.Cmp(b.cost); c != 0 {
		return c < 0
	}
	return hops < b.hops
}

// advance applies one edge to the running transfer and walking counters.
// An explicit transfer counts once and clears the current line; boarding a
// different line straight from another line, or after walking, counts as an
// implicit transfer.
func advance(transfers, walking int, lastLine string, e network.Edge) (int, int, string) {
	switch e.Kind {
	case domain.KindTransfer:
		return transfers + 1, walking + e.DurationMinutes, ""
	case domain.KindWalk:
		return transfers, walking + e.DurationMinutes, lastLine
	default:
		if lastLine != "" && lastLine != e.LineID {
			transfers++
		}
		return transfers, walking, e.LineID
	}
}

func edgeCost(e network.Edge, mode domain.OptimizationMode) decimal.Decimal {
	duration := decimal.NewFromInt(int64(e.DurationMinutes))
	switch mode {
	case domain.OptimizeTime:
		return duration
	case domain.OptimizeCost:
		return e.Cost
	case domain.OptimizeTransfers:
		if e.Kind == domain.KindTransfer {
			return duration.Mul(decimal.NewFromInt(transferPenalty))
		}
		return duration
	default:
		return duration.Add(e.Cost.Div(ten))
	}
}

func (c *Calculator) buildOption(path []network.Edge, mode domain.OptimizationMode, departure time.Time) domain.RouteOption {
	segments := make([]domain.RouteSegment, 0, len(path))
	current := departure
	totalCost := decimal.Zero
	totalDuration := 0
	transfers, walking, lastLine := 0, 0, ""
	seenLines := make(map[string]struct{})
	var linesUsed []string

	for i, e := range path {
		from, _ := c.graph.Node(e.From)
		to, _ := c.graph.Node(e.To)

		transfers, walking, lastLine = advance(transfers, walking, lastLine, e)

		seg := domain.RouteSegment{
			Order:           i + 1,
			Kind:            e.Kind,
			FromStationID:   e.From,
			FromStationName: from.Name,
			ToStationID:     e.To,
			ToStationName:   to.Name,
			DurationMinutes: e.DurationMinutes,
			DistanceKm:      e.DistanceKm,
			Cost:            e.Cost,
			DepartureTime:   current,
			ArrivalTime:     current.Add(time.Duration(e.DurationMinutes) * time.Minute),
		}
		if e.LineID != "" {
			seg.LineID = e.LineID
			seg.LineName = c.graph.LineName(e.LineID)
			seg.LineColor = c.graph.LineColor(e.LineID)
			if _, ok := seenLines[e.LineID]; !ok {
				seenLines[e.LineID] = struct{}{}
				linesUsed = append(linesUsed, seg.LineName)
			}
		}
		seg.Instructions = instructions(seg)

		segments = append(segments, seg)
		totalCost = totalCost.Add(e.Cost)
		totalDuration += e.DurationMinutes
		current = seg.ArrivalTime
	}

	summary := domain.RouteSummary{
		TotalDurationMinutes: totalDuration,
		TotalCost:            totalCost,
		TotalTransfers:       transfers,
		TotalWalkingMinutes:  walking,
		DepartureTime:        departure,
		ArrivalTime:          departure.Add(time.Duration(totalDuration) * time.Minute),
		LinesUsed:            linesUsed,
	}

	return domain.RouteOption{
		ID:           c.newID(),
		Optimization: mode,
		Segments:     segments,
		Summary:      summary,
		Score:        Score(summary, mode),
	}
}

func instructions(s domain.RouteSegment) string {
	switch s.Kind {
	case domain.KindTransit:
		return fmt.Sprintf("Take %s from %s to %s", s.LineName, s.FromStationName, s.ToStationName)
	case domain.KindTransfer:
		return fmt.Sprintf("Walk %d minutes from %s to %s", s.DurationMinutes, s.FromStationName, s.ToStationName)
	default:
		return fmt.Sprintf("Travel from %s to %s", s.FromStationName, s.ToStationName)
	}
}

// Score ranks options produced by the same mode; higher is better.
func Score(s domain.RouteSummary, mode domain.OptimizationMode) float64 {
	cost := s.TotalCost.InexactFloat64()
	switch mode {
	case domain.OptimizeTime:
		return 1000 - float64(s.TotalDurationMinutes)
	case domain.OptimizeCost:
		return 1000 - cost
	case domain.OptimizeTransfers:
		return 1000 - float64(s.TotalTransfers*100)
	default:
		return (500 - float64(s.TotalDurationMinutes)/2) + (500 - cost/2)
	}
}

// significantlyDifferent reports whether candidate differs from every
// accepted option by at least 10 minutes, 10 currency units, or its
// transfer count.
func significantlyDifferent(candidate domain.RouteOption, accepted []domain.RouteOption) bool {
	for _, existing := range accepted {
		minutes := candidate.Summary.TotalDurationMinutes - existing.Summary.TotalDurationMinutes
		if minutes < 0 {
			minutes = -minutes
		}
		cost := candidate.Summary.TotalCost.Sub(existing.Summary.TotalCost).Abs()
		sameTransfers := candidate.Summary.TotalTransfers == existing.Summary.TotalTransfers

		if minutes < significantMinutes && cost.LessThan(significantCost) && sameTransfers {
			return false
		}
	}
	return true
}
