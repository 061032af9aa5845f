package store

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"metroplan/internal/domain"
	"metroplan/internal/fare"
	"metroplan/internal/network"
)

type stationPair struct{ a, b string }

func orderedPair(a, b string) stationPair {
	if a > b {
		a, b = b, a
	}
	return stationPair{a, b}
}

// Snapshot is an immutable, fully indexed view of one topology version
// together with the graph and fare service built from it. It is safe for
// concurrent readers.
type Snapshot struct {
	version  string
	source   string
	loadedAt time.Time
	topology *domain.Topology

	stations       map[string]domain.Station
	lines          map[string]domain.Line
	fareRules      map[string]domain.FareRule
	passengers     map[string]domain.PassengerType
	transfers      map[stationPair]domain.TransferPoint
	partners       map[string][]string
	stationsByLine map[string][]string

	graph      *network.Graph
	buildStats network.BuildStats
	fares      *fare.Service
}

// NewSnapshot indexes a topology and builds its graph. The topology must
// not be modified afterwards.
func NewSnapshot(t *domain.Topology, version, source string, logger *slog.Logger) *Snapshot {
	s := &Snapshot{
		version:        version,
		source:         source,
		loadedAt:       time.Now(),
		topology:       t,
		stations:       make(map[string]domain.Station, len(t.Stations)),
		lines:          make(map[string]domain.Line, len(t.Lines)),
		fareRules:      make(map[string]domain.FareRule, len(t.FareRules)),
		passengers:     make(map[string]domain.PassengerType, len(t.PassengerTypes)),
		transfers:      make(map[stationPair]domain.TransferPoint, len(t.Transfers)),
		partners:       make(map[string][]string),
		stationsByLine: make(map[string][]string, len(t.Lines)),
	}

	for _, st := range t.Stations {
		s.stations[st.ID] = st
	}
	for _, l := range t.Lines {
		s.lines[l.ID] = l
	}
	for _, r := range t.FareRules {
		s.fareRules[r.LineID] = r
	}
	for _, p := range t.PassengerTypes {
		s.passengers[p.ID] = p
	}

	for _, tp := range t.Transfers {
		if !tp.IsActive() {
			continue
		}
		s.transfers[orderedPair(tp.StationA, tp.StationB)] = tp
		s.addPartners(tp.StationA, tp.StationB)
	}
	for _, w := range t.Walks {
		s.addPartners(w.From, w.To)
	}

	for _, l := range t.Lines {
		if !l.IsActive() {
			continue
		}
		if len(l.Stations) > 0 {
			s.stationsByLine[l.ID] = l.Stations
			continue
		}
		for _, st := range t.Stations {
			if st.LineID == l.ID {
				s.stationsByLine[l.ID] = append(s.stationsByLine[l.ID], st.ID)
			}
		}
	}

	s.fares = fare.NewService(s, logger)
	s.graph, s.buildStats = network.Build(t, s.fares, logger)

	return s
}

func (s *Snapshot) addPartners(a, b string) {
	s.partners[a] = append(s.partners[a], b)
	s.partners[b] = append(s.partners[b], a)
}

func (s *Snapshot) Version() string               { return s.version }
func (s *Snapshot) Source() string                { return s.source }
func (s *Snapshot) LoadedAt() time.Time           { return s.loadedAt }
func (s *Snapshot) Graph() *network.Graph         { return s.graph }
func (s *Snapshot) Fares() *fare.Service          { return s.fares }
func (s *Snapshot) BuildStats() network.BuildStats { return s.buildStats }

func (s *Snapshot) Currency() string {
	return s.topology.Currency
}

func (s *Snapshot) Station(id string) (domain.Station, bool) {
	st, ok := s.stations[id]
	return st, ok
}

func (s *Snapshot) Line(id string) (domain.Line, bool) {
	l, ok := s.lines[id]
	return l, ok
}

func (s *Snapshot) FareRule(lineID string) (domain.FareRule, bool) {
	r, ok := s.fareRules[lineID]
	return r, ok
}

func (s *Snapshot) PassengerType(id string) (domain.PassengerType, bool) {
	p, ok := s.passengers[id]
	return p, ok
}

// PassengerTypes returns passenger types in topology order.
func (s *Snapshot) PassengerTypes() []domain.PassengerType {
	return slices.Clone(s.topology.PassengerTypes)
}

func (s *Snapshot) TransferBetween(a, b string) (domain.TransferPoint, bool) {
	tp, ok := s.transfers[orderedPair(a, b)]
	return tp, ok
}

func (s *Snapshot) TransferPartners(stationID string) []string {
	return s.partners[stationID]
}

func (s *Snapshot) LinesAt(stationID string) []string {
	return s.graph.LinesAt(stationID)
}

func (s *Snapshot) StationsOnLine(lineID string) []string {
	return s.stationsByLine[lineID]
}

func (s *Snapshot) ServiceStatuses() []domain.ServiceStatus {
	return s.topology.ServiceStatuses
}

// Stations returns every station ordered by id, optionally restricted to
// one line.
func (s *Snapshot) Stations(lineID string) []domain.Station {
	out := make([]domain.Station, 0, len(s.stations))
	if lineID != "" {
		for _, id := range s.stationsByLine[lineID] {
			if st, ok := s.stations[id]; ok {
				out = append(out, st)
			}
		}
		return out
	}
	for _, st := range s.stations {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.Station) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func (s *Snapshot) Lines() []domain.Line {
	return slices.Clone(s.topology.Lines)
}
