package domain

import "time"

type StationStatus string

const (
	StationActive      StationStatus = "active"
	StationInactive    StationStatus = "inactive"
	StationMaintenance StationStatus = "maintenance"
)

type LineStatus string

const (
	LineActive    LineStatus = "active"
	LineSuspended LineStatus = "suspended"
)

type FareModel string

const (
	FareZoneBased     FareModel = "zone_based"
	FareDistanceBased FareModel = "distance_based"
	FareFlat          FareModel = "flat"
)

type Company struct {
	ID   string `yaml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" json:"name" validate:"required"`
}

// Station is a stop on the network. LineID is empty for stations that only
// exist as the far end of a transfer or walk link.
type Station struct {
	ID       string        `yaml:"id" json:"id" validate:"required"`
	Name     string        `yaml:"name" json:"name" validate:"required"`
	LineID   string        `yaml:"line_id,omitempty" json:"line_id,omitempty"`
	Lat      *float64      `yaml:"lat,omitempty" json:"lat,omitempty" validate:"omitempty,min=-90,max=90"`
	Lon      *float64      `yaml:"lon,omitempty" json:"lon,omitempty" validate:"omitempty,min=-180,max=180"`
	Zone     *int          `yaml:"zone,omitempty" json:"zone,omitempty" validate:"omitempty,min=1"`
	Sequence int           `yaml:"sequence,omitempty" json:"sequence,omitempty" validate:"min=0"`
	Status   StationStatus `yaml:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=active inactive maintenance"`
}

func (s Station) IsActive() bool {
	return s.Status == "" || s.Status == StationActive
}

// Hop overrides the travel time or distance between two consecutive
// stations of a line. It applies in both directions.
type Hop struct {
	From       string   `yaml:"from" json:"from" validate:"required"`
	To         string   `yaml:"to" json:"to" validate:"required"`
	Minutes    *int     `yaml:"minutes,omitempty" json:"minutes,omitempty" validate:"omitempty,min=0"`
	DistanceKm *float64 `yaml:"distance_km,omitempty" json:"distance_km,omitempty" validate:"omitempty,min=0"`
}

// Line is a single service pattern. Stations lists station ids in physical
// running order and is the authoritative source for adjacency.
type Line struct {
	ID         string     `yaml:"id" json:"id" validate:"required"`
	Name       string     `yaml:"name" json:"name" validate:"required"`
	CompanyID  string     `yaml:"company_id,omitempty" json:"company_id,omitempty"`
	Color      string     `yaml:"color,omitempty" json:"color,omitempty"`
	Status     LineStatus `yaml:"status,omitempty" json:"status,omitempty" validate:"omitempty,oneof=active suspended"`
	Stations   []string   `yaml:"stations,omitempty" json:"stations,omitempty"`
	Hops       []Hop      `yaml:"hops,omitempty" json:"hops,omitempty" validate:"dive"`
	HopMinutes int        `yaml:"hop_minutes,omitempty" json:"hop_minutes,omitempty" validate:"min=0"`
}

func (l Line) IsActive() bool {
	return l.Status == "" || l.Status == LineActive
}

type TransferPoint struct {
	ID               string  `yaml:"id,omitempty" json:"id,omitempty"`
	StationA         string  `yaml:"station_a" json:"station_a" validate:"required"`
	StationB         string  `yaml:"station_b" json:"station_b" validate:"required,nefield=StationA"`
	WalkingMinutes   int     `yaml:"walking_minutes" json:"walking_minutes" validate:"min=0"`
	WalkingDistanceM float64 `yaml:"walking_distance_m,omitempty" json:"walking_distance_m,omitempty" validate:"min=0"`
	Fee              float64 `yaml:"fee,omitempty" json:"fee,omitempty" validate:"min=0"`
	Active           *bool   `yaml:"active,omitempty" json:"active,omitempty"`
}

func (t TransferPoint) IsActive() bool {
	return t.Active == nil || *t.Active
}

// Connects reports whether the transfer joins a and b in either direction.
func (t TransferPoint) Connects(a, b string) bool {
	return (t.StationA == a && t.StationB == b) || (t.StationA == b && t.StationB == a)
}

// WalkLink is an unpriced street-level connection between two stations.
type WalkLink struct {
	From       string   `yaml:"from" json:"from" validate:"required"`
	To         string   `yaml:"to" json:"to" validate:"required,nefield=From"`
	Minutes    int      `yaml:"minutes" json:"minutes" validate:"min=0"`
	DistanceKm *float64 `yaml:"distance_km,omitempty" json:"distance_km,omitempty" validate:"omitempty,min=0"`
}

type FareRule struct {
	LineID              string    `yaml:"line_id" json:"line_id" validate:"required"`
	Model               FareModel `yaml:"model" json:"model" validate:"omitempty,oneof=zone_based distance_based flat"`
	BaseFare            float64   `yaml:"base_fare" json:"base_fare" validate:"min=0"`
	PerZoneFare         float64   `yaml:"per_zone_fare,omitempty" json:"per_zone_fare,omitempty" validate:"min=0"`
	PerKmFare           float64   `yaml:"per_km_fare,omitempty" json:"per_km_fare,omitempty" validate:"min=0"`
	DistanceThresholdKm float64   `yaml:"distance_threshold_km,omitempty" json:"distance_threshold_km,omitempty" validate:"min=0"`
}

type PassengerType struct {
	ID                 string  `yaml:"id" json:"id" validate:"required"`
	Name               string  `yaml:"name" json:"name" validate:"required"`
	DiscountPercentage float64 `yaml:"discount_percentage" json:"discount_percentage" validate:"min=0,max=100"`
	Description        string  `yaml:"description,omitempty" json:"description,omitempty"`
	MinAge             *int    `yaml:"min_age,omitempty" json:"min_age,omitempty" validate:"omitempty,min=0"`
	MaxAge             *int    `yaml:"max_age,omitempty" json:"max_age,omitempty" validate:"omitempty,min=0"`
}

// ServiceStatus is a published notice about a line or station, such as a
// planned closure or a delay.
type ServiceStatus struct {
	ID        string     `yaml:"id,omitempty" json:"id,omitempty"`
	LineID    string     `yaml:"line_id,omitempty" json:"line_id,omitempty"`
	StationID string     `yaml:"station_id,omitempty" json:"station_id,omitempty"`
	Type      string     `yaml:"type" json:"type" validate:"required"`
	Severity  string     `yaml:"severity,omitempty" json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Message   string     `yaml:"message" json:"message" validate:"required"`
	StartsAt  *time.Time `yaml:"starts_at,omitempty" json:"starts_at,omitempty"`
	EndsAt    *time.Time `yaml:"ends_at,omitempty" json:"ends_at,omitempty"`
	Active    *bool      `yaml:"active,omitempty" json:"active,omitempty"`
}

func (s ServiceStatus) ActiveAt(now time.Time) bool {
	if s.Active != nil && !*s.Active {
		return false
	}
	if s.StartsAt != nil && now.Before(*s.StartsAt) {
		return false
	}
	if s.EndsAt != nil && now.After(*s.EndsAt) {
		return false
	}
	return true
}

// Topology is a complete, read-only snapshot of the network.
type Topology struct {
	Version         string          `yaml:"version,omitempty" json:"version,omitempty"`
	Currency        string          `yaml:"currency,omitempty" json:"currency,omitempty" validate:"omitempty,len=3"`
	Companies       []Company       `yaml:"companies,omitempty" json:"companies,omitempty" validate:"dive"`
	Stations        []Station       `yaml:"stations" json:"stations" validate:"required,dive"`
	Lines           []Line          `yaml:"lines" json:"lines" validate:"required,dive"`
	Transfers       []TransferPoint `yaml:"transfers,omitempty" json:"transfers,omitempty" validate:"dive"`
	Walks           []WalkLink      `yaml:"walks,omitempty" json:"walks,omitempty" validate:"dive"`
	FareRules       []FareRule      `yaml:"fare_rules,omitempty" json:"fare_rules,omitempty" validate:"dive"`
	PassengerTypes  []PassengerType `yaml:"passenger_types,omitempty" json:"passenger_types,omitempty" validate:"dive"`
	ServiceStatuses []ServiceStatus `yaml:"service_statuses,omitempty" json:"service_statuses,omitempty" validate:"dive"`
}
