package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"metroplan/internal/cache"
	"metroplan/internal/domain"
	"metroplan/internal/store"
	"metroplan/internal/validation"
)

const MaxCompareRoutes = 10

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrNoSegments    = errors.New("no segments provided")
	ErrNoRoutes      = errors.New("no routes provided")
	ErrTooManyRoutes = fmt.Errorf("cannot compare more than %d routes", MaxCompareRoutes)
)

const preferredLineBonus = 100

type SnapshotSource interface {
	Current() (*store.Snapshot, error)
}

type ServiceConfig struct {
	MaxIterations int
	SearchTimeout time.Duration
}

// Service answers planning and pricing requests against the current
// topology snapshot.
type Service struct {
	source SnapshotSource
	routes *cache.RouteCache
	cfg    ServiceConfig
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithRouteIDs(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

func NewService(source SnapshotSource, routes *cache.RouteCache, cfg ServiceConfig, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		source: source,
		routes: routes,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("component", "planner"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) calculator(snap *store.Snapshot) *Calculator {
	opts := []Option{WithMaxIterations(s.cfg.MaxIterations), WithClock(s.now)}
	if s.newID != nil {
		opts = append(opts, WithIDGenerator(s.newID))
	}
	return NewCalculator(snap.Graph(), s.logger, opts...)
}

func (s *Service) searchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.SearchTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.SearchTimeout)
}

// Plan validates the request, runs the search and caches the resulting
// options. Validation failures come back as domain.ValidationErrors; an
// infeasible request yields an empty result with the reason in Warnings.
func (s *Service) Plan(ctx context.Context, req domain.PlanRequest) (domain.PlanResult, error) {
	req.Normalize()

	snap, err := s.source.Current()
	if err != nil {
		return domain.PlanResult{}, err
	}

	v := validation.New(snap, validation.WithClock(s.now))
	if errs := v.ValidateRequest(req); len(errs) > 0 {
		return domain.PlanResult{}, errs
	}

	return s.plan(ctx, snap, v, req), nil
}

func (s *Service) plan(ctx context.Context, snap *store.Snapshot, v *validation.Validator, req domain.PlanRequest) domain.PlanResult {
	feasible, warnings := v.CheckFeasibility(req)
	if !feasible {
		s.logger.Info("request not feasible",
			"origin", req.Origin,
			"destination", req.Destination,
			"reason", warnings,
		)
		return domain.PlanResult{Options: []domain.RouteOption{}, Warnings: warnings}
	}

	searchCtx, cancel := s.searchContext(ctx)
	defer cancel()

	options := s.calculator(snap).Calculate(searchCtx, QueryFromRequest(req))
	if options == nil {
		options = []domain.RouteOption{}
	}
	for i := range options {
		options[i].NetworkVersion = snap.Version()
	}
	s.routes.Put(ctx, options...)

	return domain.PlanResult{
		Options:     options,
		OptionCount: len(options),
		Warnings:    warnings,
	}
}

// Alternatives plans like Plan, then drops options that use an avoided line,
// boosts options that use a preferred line and returns at most
// MaxAlternatives options ordered by score.
func (s *Service) Alternatives(ctx context.Context, req domain.AlternativesRequest) (domain.PlanResult, error) {
	req.Normalize()

	snap, err := s.source.Current()
	if err != nil {
		return domain.PlanResult{}, err
	}

	v := validation.New(snap, validation.WithClock(s.now))
	if errs := v.ValidateAlternatives(req); len(errs) > 0 {
		return domain.PlanResult{}, errs
	}

	result := s.plan(ctx, snap, v, req.PlanRequest)

	options := make([]domain.RouteOption, 0, len(result.Options))
	for _, opt := range result.Options {
		if slices.ContainsFunc(req.AvoidLines, opt.UsesLine) {
			continue
		}
		if slices.ContainsFunc(req.PreferLines, opt.UsesLine) {
			opt.Score += preferredLineBonus
		}
		options = append(options, opt)
	}

	sort.SliceStable(options, func(i, j int) bool {
		return options[i].Score > options[j].Score
	})
	if len(options) > req.MaxAlternatives {
		options = options[:req.MaxAlternatives]
	}

	result.Options = options
	result.OptionCount = len(options)
	return result, nil
}

type ValidationReport struct {
	Valid    bool                    `json:"valid"`
	Errors   domain.ValidationErrors `json:"errors"`
	Feasible bool                    `json:"feasible"`
	Warnings []string                `json:"warnings"`
}

// Validate runs the structural checks and, when they pass, the
// feasibility probe, without searching.
func (s *Service) Validate(req domain.PlanRequest) (ValidationReport, error) {
	req.Normalize()

	snap, err := s.source.Current()
	if err != nil {
		return ValidationReport{}, err
	}

	v := validation.New(snap, validation.WithClock(s.now))
	report := ValidationReport{
		Errors:   v.ValidateRequest(req),
		Warnings: []string{},
	}
	if report.Errors == nil {
		report.Errors = domain.ValidationErrors{}
	}
	report.Valid = len(report.Errors) == 0

	if report.Valid {
		feasible, warnings := v.CheckFeasibility(req)
		report.Feasible = feasible
		if warnings != nil {
			report.Warnings = warnings
		}
	}
	return report, nil
}

func (s *Service) Route(ctx context.Context, routeID string) (domain.RouteOption, error) {
	snap, err := s.source.Current()
	if err != nil {
		return domain.RouteOption{}, err
	}
	return s.route(ctx, snap, routeID)
}

// route returns a cached option planned on snap. Options planned on any
// other topology version are treated as missing.
func (s *Service) route(ctx context.Context, snap *store.Snapshot, routeID string) (domain.RouteOption, error) {
	opt, ok := s.routes.Get(ctx, routeID)
	if !ok {
		return domain.RouteOption{}, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	if opt.NetworkVersion != snap.Version() {
		s.logger.Debug("cached route planned on another network version",
			"route_id", routeID,
			"route_version", opt.NetworkVersion,
			"current_version", snap.Version(),
		)
		return domain.RouteOption{}, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	return opt, nil
}

func (s *Service) PriceRoute(ctx context.Context, routeID, passengerTypeID string) (domain.FareCalculationResponse, error) {
	snap, err := s.source.Current()
	if err != nil {
		return domain.FareCalculationResponse{}, err
	}
	opt, err := s.route(ctx, snap, routeID)
	if err != nil {
		return domain.FareCalculationResponse{}, err
	}
	return snap.Fares().PriceRoute(opt, passengerTypeID), nil
}

func (s *Service) PriceSegments(segments []domain.RouteSegment, passengerTypeID string) (domain.FareCalculationResponse, error) {
	if len(segments) == 0 {
		return domain.FareCalculationResponse{}, ErrNoSegments
	}
	snap, err := s.source.Current()
	if err != nil {
		return domain.FareCalculationResponse{}, err
	}
	return snap.Fares().PriceSegments(segments, passengerTypeID), nil
}

// CompareFares prices up to MaxCompareRoutes cached routes, cheapest first.
func (s *Service) CompareFares(ctx context.Context, routeIDs []string, passengerTypeID string) ([]domain.FareComparison, error) {
	switch {
	case len(routeIDs) == 0:
		return nil, ErrNoRoutes
	case len(routeIDs) > MaxCompareRoutes:
		return nil, ErrTooManyRoutes
	}

	snap, err := s.source.Current()
	if err != nil {
		return nil, err
	}

	routes := make([]domain.RouteOption, 0, len(routeIDs))
	for _, id := range routeIDs {
		opt, err := s.route(ctx, snap, id)
		if err != nil {
			return nil, err
		}
		routes = append(routes, opt)
	}

	return snap.Fares().CompareRouteFares(routes, passengerTypeID), nil
}

func (s *Service) DiscountInfo(passengerTypeID string) (domain.DiscountInfo, error) {
	snap, err := s.source.Current()
	if err != nil {
		return domain.DiscountInfo{}, err
	}
	return snap.Fares().DiscountInfo(passengerTypeID), nil
}

func (s *Service) PassengerTypes() ([]domain.PassengerType, error) {
	snap, err := s.source.Current()
	if err != nil {
		return nil, err
	}
	return snap.Fares().PassengerTypes(), nil
}
