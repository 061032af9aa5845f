package validation

import (
	"fmt"
	"strings"
	"time"

	"metroplan/internal/domain"
)

const (
	CodeSameStation          = "SAME_STATION"
	CodeInvalidFromStation   = "INVALID_FROM_STATION"
	CodeInvalidToStation     = "INVALID_TO_STATION"
	CodeStationInactive      = "STATION_INACTIVE"
	CodeInvalidPassenger     = "INVALID_PASSENGER_TYPE"
	CodePastDeparture        = "PAST_DEPARTURE_TIME"
	CodeFutureDeparture      = "FUTURE_DEPARTURE_TIME"
	CodeInvalidWalkingTime   = "INVALID_WALKING_TIME"
	CodeExcessiveWalkingTime = "EXCESSIVE_WALKING_TIME"
	CodeInvalidTransfers     = "INVALID_TRANSFERS"
	CodeExcessiveTransfers   = "EXCESSIVE_TRANSFERS"
	CodeInvalidOptimization  = "INVALID_OPTIMIZATION"

	CodeInvalidMaxAlternatives = "INVALID_MAX_ALTERNATIVES"
	CodeExcessiveAlternatives  = "EXCESSIVE_ALTERNATIVES"
	CodeInvalidAvoidLine       = "INVALID_AVOID_LINE"
	CodeInactiveAvoidLine      = "INACTIVE_AVOID_LINE"
	CodeInvalidPreferLine      = "INVALID_PREFER_LINE"
	CodeInactivePreferLine     = "INACTIVE_PREFER_LINE"
	CodeConflictingLines       = "CONFLICTING_LINE_PREFERENCES"
)

const (
	MaxDeparturePast   = time.Hour
	MaxDepartureFuture = 30 * 24 * time.Hour
	MinWalkingMinutes  = 1
	MaxWalkingMinutes  = 60
	MaxTransfers       = 5
	MaxAlternatives    = 10
)

// Network is the topology view the validator checks requests against.
type Network interface {
	Station(id string) (domain.Station, bool)
	Line(id string) (domain.Line, bool)
	PassengerType(id string) (domain.PassengerType, bool)
	LinesAt(stationID string) []string
	StationsOnLine(lineID string) []string
	TransferPartners(stationID string) []string
	ServiceStatuses() []domain.ServiceStatus
}

type Validator struct {
	network Network
	now     func() time.Time
}

type Option func(*Validator)

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(n Network, opts ...Option) *Validator {
	v := &Validator{network: n, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateRequest checks a planning request and returns every problem it
// finds. A nil result means the request is well formed.
func (v *Validator) ValidateRequest(r domain.PlanRequest) domain.ValidationErrors {
	var errs domain.ValidationErrors
	add := func(code, field, format string, args ...any) {
		errs = append(errs, domain.ValidationError{Code: code, Message: fmt.Sprintf(format, args...), Field: field})
	}

	if r.Origin == r.Destination {
		add(CodeSameStation, "to_station_id", "Origin and destination stations cannot be the same")
	}

	if from, ok := v.network.Station(r.Origin); !ok {
		add(CodeInvalidFromStation, "from_station_id", "Origin station with ID %s not found", r.Origin)
	} else if !from.IsActive() {
		add(CodeStationInactive, "from_station_id", "Origin station '%s' is currently inactive", from.Name)
	}

	if to, ok := v.network.Station(r.Destination); !ok {
		add(CodeInvalidToStation, "to_station_id", "Destination station with ID %s not found", r.Destination)
	} else if !to.IsActive() {
		add(CodeStationInactive, "to_station_id", "Destination station '%s' is currently inactive", to.Name)
	}

	if _, ok := v.network.PassengerType(r.PassengerType); !ok {
		add(CodeInvalidPassenger, "passenger_type_id", "Passenger type with ID %s not found", r.PassengerType)
	}

	if r.DepartureTime != nil {
		now := v.now()
		if r.DepartureTime.Before(now.Add(-MaxDeparturePast)) {
			add(CodePastDeparture, "departure_time", "Departure time cannot be more than 1 hour in the past")
		}
		if r.DepartureTime.After(now.Add(MaxDepartureFuture)) {
			add(CodeFutureDeparture, "departure_time", "Departure time cannot be more than 30 days in the future")
		}
	}

	switch {
	case r.MaxWalkingMinutes < MinWalkingMinutes:
		add(CodeInvalidWalkingTime, "max_walking_time", "Maximum walking time must be at least 1 minute")
	case r.MaxWalkingMinutes > MaxWalkingMinutes:
		add(CodeExcessiveWalkingTime, "max_walking_time", "Maximum walking time cannot exceed 60 minutes")
	}

	switch {
	case r.MaxTransfers < 0:
		add(CodeInvalidTransfers, "max_transfers", "Maximum transfers cannot be negative")
	case r.MaxTransfers > MaxTransfers:
		add(CodeExcessiveTransfers, "max_transfers", "Maximum transfers cannot exceed 5")
	}

	if !r.Optimization.Valid() {
		add(CodeInvalidOptimization, "optimization", "Optimization must be one of: time, cost, transfers")
	}

	return errs
}

// ValidateAlternatives checks the base request plus the alternatives
// specific fields.
func (v *Validator) ValidateAlternatives(r domain.AlternativesRequest) domain.ValidationErrors {
	errs := v.ValidateRequest(r.PlanRequest)
	add := func(code, field, format string, args ...any) {
		errs = append(errs, domain.ValidationError{Code: code, Message: fmt.Sprintf(format, args...), Field: field})
	}

	switch {
	case r.MaxAlternatives < 1:
		add(CodeInvalidMaxAlternatives, "max_alternatives", "Maximum alternatives must be at least 1")
	case r.MaxAlternatives > MaxAlternatives:
		add(CodeExcessiveAlternatives, "max_alternatives", "Maximum alternatives cannot exceed 10")
	}

	for _, id := range r.AvoidLines {
		if line, ok := v.network.Line(id); !ok {
			add(CodeInvalidAvoidLine, "avoid_lines", "Line ID %s in avoid_lines not found", id)
		} else if !line.IsActive() {
			add(CodeInactiveAvoidLine, "avoid_lines", "Line '%s' in avoid_lines is inactive", line.Name)
		}
	}

	for _, id := range r.PreferLines {
		if line, ok := v.network.Line(id); !ok {
			add(CodeInvalidPreferLine, "prefer_lines", "Line ID %s in prefer_lines not found", id)
		} else if !line.IsActive() {
			add(CodeInactivePreferLine, "prefer_lines", "Line '%s' in prefer_lines is inactive", line.Name)
		}
	}

	if common := intersect(r.AvoidLines, r.PreferLines); len(common) > 0 {
		add(CodeConflictingLines, "prefer_lines", "Lines [%s] cannot be both avoided and preferred", strings.Join(common, ", "))
	}

	return errs
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[x] = struct{}{}
	}
	var out []string
	for _, x := range b {
		if _, ok := set[x]; ok {
			out = append(out, x)
			delete(set, x)
		}
	}
	return out
}
