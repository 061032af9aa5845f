package fare

import (
	"github.com/shopspring/decimal"

	"metroplan/internal/domain"
)

// Hop is a single ride between two adjacent stations, as seen by a tariff.
type Hop struct {
	From       domain.Station
	To         domain.Station
	DistanceKm *float64
}

// Tariff computes the surcharge a line adds on top of its base fare.
type Tariff interface {
	Surcharge(h Hop) decimal.Decimal
}

// ZoneTariff charges for every zone crossed beyond the first. A station
// without a zone counts as zone 1.
type ZoneTariff struct {
	PerZone decimal.Decimal
}

func (t ZoneTariff) Surcharge(h Hop) decimal.Decimal {
	diff := zoneOf(h.From) - zoneOf(h.To)
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return decimal.Zero
	}
	return t.PerZone.Mul(decimal.NewFromInt(int64(diff - 1)))
}

func zoneOf(s domain.Station) int {
	if s.Zone == nil {
		return 1
	}
	return *s.Zone
}

// DistanceTariff charges per kilometre beyond a free threshold.
type DistanceTariff struct {
	PerKm       decimal.Decimal
	ThresholdKm decimal.Decimal
}

func (t DistanceTariff) Surcharge(h Hop) decimal.Decimal {
	km := decimal.NewFromFloat(HopDistanceKm(h))
	if !km.GreaterThan(t.ThresholdKm) {
		return decimal.Zero
	}
	return t.PerKm.Mul(km.Sub(t.ThresholdKm)).Round(2)
}

type FlatTariff struct{}

func (FlatTariff) Surcharge(Hop) decimal.Decimal { return decimal.Zero }

// TariffFor selects the strategy for a fare rule. Unknown models price as
// flat.
func TariffFor(rule domain.FareRule) Tariff {
	switch rule.Model {
	case domain.FareZoneBased:
		return ZoneTariff{PerZone: decimal.NewFromFloat(rule.PerZoneFare)}
	case domain.FareDistanceBased:
		return DistanceTariff{
			PerKm:       decimal.NewFromFloat(rule.PerKmFare),
			ThresholdKm: decimal.NewFromFloat(rule.DistanceThresholdKm),
		}
	default:
		return FlatTariff{}
	}
}
