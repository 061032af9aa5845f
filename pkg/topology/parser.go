package topology

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"metroplan/internal/domain"
)

var ErrEmptySnapshot = errors.New("topology has no stations")

type Parser struct {
	validate *validator.Validate
	logger   *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	return &Parser{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "topology_parser"),
	}
}

// Parse decodes a YAML or JSON topology document and checks it for field
// errors and dangling references. All reference problems are reported
// together.
func (p *Parser) Parse(data []byte) (*domain.Topology, error) {
	start := time.Now()

	var t domain.Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode topology: %w", err)
	}
	if len(t.Stations) == 0 {
		return nil, ErrEmptySnapshot
	}
	if err := p.validate.Struct(t); err != nil {
		return nil, fmt.Errorf("validate topology: %w", err)
	}
	if err := checkReferences(&t); err != nil {
		return nil, fmt.Errorf("validate topology: %w", err)
	}

	p.logger.Info("topology parsed",
		"version", t.Version,
		"stations", len(t.Stations),
		"lines", len(t.Lines),
		"transfers", len(t.Transfers),
		"fare_rules", len(t.FareRules),
		"passenger_types", len(t.PassengerTypes),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &t, nil
}

func checkReferences(t *domain.Topology) error {
	var errs []error

	stations := make(map[string]struct{}, len(t.Stations))
	for _, s := range t.Stations {
		if _, dup := stations[s.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate station id %q", s.ID))
		}
		stations[s.ID] = struct{}{}
	}

	lines := make(map[string]struct{}, len(t.Lines))
	for _, l := range t.Lines {
		if _, dup := lines[l.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate line id %q", l.ID))
		}
		lines[l.ID] = struct{}{}
		for _, id := range l.Stations {
			if _, ok := stations[id]; !ok {
				errs = append(errs, fmt.Errorf("line %q lists unknown station %q", l.ID, id))
			}
		}
	}

	for _, s := range t.Stations {
		if s.LineID == "" {
			continue
		}
		if _, ok := lines[s.LineID]; !ok {
			errs = append(errs, fmt.Errorf("station %q references unknown line %q", s.ID, s.LineID))
		}
	}

	for _, tp := range t.Transfers {
		for _, id := range []string{tp.StationA, tp.StationB} {
			if _, ok := stations[id]; !ok {
				errs = append(errs, fmt.Errorf("transfer references unknown station %q", id))
			}
		}
	}

	for _, w := range t.Walks {
		for _, id := range []string{w.From, w.To} {
			if _, ok := stations[id]; !ok {
				errs = append(errs, fmt.Errorf("walk link references unknown station %q", id))
			}
		}
	}

	for _, r := range t.FareRules {
		if _, ok := lines[r.LineID]; !ok {
			errs = append(errs, fmt.Errorf("fare rule references unknown line %q", r.LineID))
		}
	}

	passengers := make(map[string]struct{}, len(t.PassengerTypes))
	for _, p := range t.PassengerTypes {
		if _, dup := passengers[p.ID]; dup {
			errs = append(errs, fmt.Errorf("duplicate passenger type id %q", p.ID))
		}
		passengers[p.ID] = struct{}{}
	}

	return errors.Join(errs...)
}
