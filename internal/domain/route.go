package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransportKind string

const (
	KindTransit  TransportKind = "transit"
	KindTransfer TransportKind = "transfer"
	KindWalk     TransportKind = "walk"
)

type OptimizationMode string

const (
	OptimizeTime      OptimizationMode = "time"
	OptimizeCost      OptimizationMode = "cost"
	OptimizeTransfers OptimizationMode = "transfers"
	// OptimizeBalanced is never accepted from callers. It is the cost
	// function used for any mode outside the three public ones.
	OptimizeBalanced OptimizationMode = "balanced"
)

// PublicModes lists the modes a caller may request, in the order
// alternatives are tried.
var PublicModes = []OptimizationMode{OptimizeTime, OptimizeCost, OptimizeTransfers}

func (m OptimizationMode) Valid() bool {
	switch m {
	case OptimizeTime, OptimizeCost, OptimizeTransfers:
		return true
	}
	return false
}

const (
	DefaultPassengerType     = "adult"
	DefaultMaxWalkingMinutes = 10
	DefaultMaxTransfers      = 3
	DefaultMaxAlternatives   = 5
)

type PlanRequest struct {
	Origin            string           `json:"from_station_id"`
	Destination       string           `json:"to_station_id"`
	DepartureTime     *time.Time       `json:"departure_time,omitempty"`
	PassengerType     string           `json:"passenger_type_id"`
	Optimization      OptimizationMode `json:"optimization"`
	MaxWalkingMinutes int              `json:"max_walking_time"`
	MaxTransfers      int              `json:"max_transfers"`
}

// NewPlanRequest returns a request carrying the documented defaults. Decode
// caller input on top of it so omitted fields keep their default values.
func NewPlanRequest() PlanRequest {
	return PlanRequest{
		PassengerType:     DefaultPassengerType,
		Optimization:      OptimizeTime,
		MaxWalkingMinutes: DefaultMaxWalkingMinutes,
		MaxTransfers:      DefaultMaxTransfers,
	}
}

// Normalize fills the fields that have an explicit default when the
// caller left them blank.
func (r *PlanRequest) Normalize() {
	if r.Optimization == "" {
		r.Optimization = OptimizeTime
	}
	if r.PassengerType == "" {
		r.PassengerType = DefaultPassengerType
	}
}

type AlternativesRequest struct {
	PlanRequest
	MaxAlternatives int      `json:"max_alternatives"`
	AvoidLines      []string `json:"avoid_lines,omitempty"`
	PreferLines     []string `json:"prefer_lines,omitempty"`
}

func NewAlternativesRequest() AlternativesRequest {
	return AlternativesRequest{
		PlanRequest:     NewPlanRequest(),
		MaxAlternatives: DefaultMaxAlternatives,
	}
}

type RouteSegment struct {
	Order           int             `json:"segment_order"`
	Kind            TransportKind   `json:"transport_type"`
	FromStationID   string          `json:"from_station_id"`
	FromStationName string          `json:"from_station_name"`
	ToStationID     string          `json:"to_station_id"`
	ToStationName   string          `json:"to_station_name"`
	LineID          string          `json:"line_id,omitempty"`
	LineName        string          `json:"line_name,omitempty"`
	LineColor       string          `json:"line_color,omitempty"`
	DurationMinutes int             `json:"duration_minutes"`
	DistanceKm      *float64        `json:"distance_km,omitempty"`
	Cost            decimal.Decimal `json:"cost"`
	DepartureTime   time.Time       `json:"departure_time"`
	ArrivalTime     time.Time       `json:"arrival_time"`
	Instructions    string          `json:"instructions"`
}

type RouteSummary struct {
	TotalDurationMinutes int             `json:"total_duration_minutes"`
	TotalCost            decimal.Decimal `json:"total_cost"`
	TotalTransfers       int             `json:"total_transfers"`
	TotalWalkingMinutes  int             `json:"total_walking_time_minutes"`
	DepartureTime        time.Time       `json:"departure_time"`
	ArrivalTime          time.Time       `json:"arrival_time"`
	LinesUsed            []string        `json:"lines_used"`
}

type RouteOption struct {
	ID           string           `json:"route_id"`
	Optimization OptimizationMode `json:"optimization"`
	Segments     []RouteSegment   `json:"segments"`
	Summary      RouteSummary     `json:"summary"`
	Score        float64          `json:"optimization_score"`

	// NetworkVersion is the topology fingerprint the option was planned on.
	NetworkVersion string `json:"network_version,omitempty"`
}

// UsesLine reports whether any transit segment of the option runs on lineID.
func (o RouteOption) UsesLine(lineID string) bool {
	for _, s := range o.Segments {
		if s.Kind == KindTransit && s.LineID == lineID {
			return true
		}
	}
	return false
}

type PlanResult struct {
	Options     []RouteOption `json:"options"`
	OptionCount int           `json:"option_count"`
	Warnings    []string      `json:"warnings,omitempty"`
}

type FareBreakdown struct {
	SegmentOrder int             `json:"segment_order"`
	Kind         TransportKind   `json:"transport_type"`
	LineID       string          `json:"line_id,omitempty"`
	LineName     string          `json:"line_name,omitempty"`
	BaseFare     decimal.Decimal `json:"base_fare"`
	DistanceFare decimal.Decimal `json:"distance_fare"`
	TransferFee  decimal.Decimal `json:"transfer_fee"`
	Discount     decimal.Decimal `json:"passenger_discount"`
	SegmentTotal decimal.Decimal `json:"segment_total"`
}

type FareCalculationResponse struct {
	TotalFare          decimal.Decimal `json:"total_fare"`
	PassengerTypeID    string          `json:"passenger_type_id"`
	PassengerType      string          `json:"passenger_type"`
	DiscountPercentage float64         `json:"discount_percentage"`
	Breakdown          []FareBreakdown `json:"breakdown"`
	Currency           string          `json:"currency"`
}

type FareComparison struct {
	RouteIndex     int             `json:"route_index"`
	RouteID        string          `json:"route_id"`
	TotalFare      decimal.Decimal `json:"total_fare"`
	TotalDuration  int             `json:"total_duration"`
	TotalTransfers int             `json:"total_transfers"`
	FarePerMinute  decimal.Decimal `json:"fare_per_minute"`
	LinesUsed      []string        `json:"lines_used"`
	Breakdown      []FareBreakdown `json:"breakdown"`
}

type DiscountInfo struct {
	PassengerTypeID    string  `json:"passenger_type_id"`
	PassengerType      string  `json:"passenger_type"`
	DiscountPercentage float64 `json:"discount_percentage"`
	Description        string  `json:"description"`
}

type ValidationError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Codes returns the machine codes in the order they were raised.
func (errs ValidationErrors) Codes() []string {
	codes := make([]string, len(errs))
	for i, e := range errs {
		codes[i] = e.Code
	}
	return codes
}
