package fare

import (
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"metroplan/internal/domain"
)

const (
	DefaultCurrency     = "THB"
	defaultPassengerTag = "Adult"
	noDiscountNote      = "No discount available"
)

// DefaultBaseFare applies to lines without a fare rule.
var DefaultBaseFare = decimal.NewFromInt(15)

var hundred = decimal.NewFromInt(100)

// Catalog is the read-only tariff data the service prices against.
type Catalog interface {
	Station(id string) (domain.Station, bool)
	Line(id string) (domain.Line, bool)
	FareRule(lineID string) (domain.FareRule, bool)
	PassengerType(id string) (domain.PassengerType, bool)
	PassengerTypes() []domain.PassengerType
	TransferBetween(a, b string) (domain.TransferPoint, bool)
	Currency() string
}

type Service struct {
	catalog Catalog
	logger  *slog.Logger
}

func NewService(catalog Catalog, logger *slog.Logger) *Service {
	return &Service{
		catalog: catalog,
		logger:  logger.With("component", "fare_service"),
	}
}

func (s *Service) currency() string {
	if c := s.catalog.Currency(); c != "" {
		return c
	}
	return DefaultCurrency
}

// HopFare is the undiscounted fare for one ride on lineID between two
// adjacent stations: the line's base fare plus its tariff surcharge.
func (s *Service) HopFare(lineID, fromID, toID string, distanceKm *float64) decimal.Decimal {
	base, surcharge := s.transitComponents(lineID, fromID, toID, distanceKm)
	return base.Add(surcharge)
}

func (s *Service) transitComponents(lineID, fromID, toID string, distanceKm *float64) (decimal.Decimal, decimal.Decimal) {
	rule, ok := s.catalog.FareRule(lineID)
	if !ok {
		return DefaultBaseFare, decimal.Zero
	}

	from, _ := s.catalog.Station(fromID)
	to, _ := s.catalog.Station(toID)
	hop := Hop{From: from, To: to, DistanceKm: distanceKm}

	return decimal.NewFromFloat(rule.BaseFare), TariffFor(rule).Surcharge(hop)
}

func (s *Service) transferFee(a, b string) decimal.Decimal {
	tp, ok := s.catalog.TransferBetween(a, b)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromFloat(tp.Fee)
}

// PriceRoute prices every segment of a route option for a passenger type.
func (s *Service) PriceRoute(option domain.RouteOption, passengerTypeID string) domain.FareCalculationResponse {
	return s.PriceSegments(option.Segments, passengerTypeID)
}

// PriceSegments prices a raw segment list. Unknown passenger types price at
// the full adult fare.
func (s *Service) PriceSegments(segments []domain.RouteSegment, passengerTypeID string) domain.FareCalculationResponse {
	info := s.DiscountInfo(passengerTypeID)
	pct := decimal.NewFromFloat(info.DiscountPercentage)

	total := decimal.Zero
	breakdown := make([]domain.FareBreakdown, 0, len(segments))

	for i, seg := range segments {
		b := domain.FareBreakdown{
			SegmentOrder: seg.Order,
			Kind:         seg.Kind,
			LineID:       seg.LineID,
			LineName:     seg.LineName,
			BaseFare:     decimal.Zero,
			DistanceFare: decimal.Zero,
			TransferFee:  decimal.Zero,
			Discount:     decimal.Zero,
			SegmentTotal: decimal.Zero,
		}
		if b.SegmentOrder == 0 {
			b.SegmentOrder = i + 1
		}

		switch seg.Kind {
		case domain.KindTransit:
			b.BaseFare, b.DistanceFare = s.transitComponents(seg.LineID, seg.FromStationID, seg.ToStationID, seg.DistanceKm)
		case domain.KindTransfer:
			b.TransferFee = s.transferFee(seg.FromStationID, seg.ToStationID)
		default:
			breakdown = append(breakdown, b)
			continue
		}

		// The payable amount is rounded and the discount takes the remainder,
		// so a full discount always leaves exactly zero.
		subtotal := b.BaseFare.Add(b.DistanceFare).Add(b.TransferFee)
		b.SegmentTotal = subtotal.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
		b.Discount = subtotal.Sub(b.SegmentTotal)

		total = total.Add(b.SegmentTotal)
		breakdown = append(breakdown, b)
	}

	return domain.FareCalculationResponse{
		TotalFare:          total,
		PassengerTypeID:    passengerTypeID,
		PassengerType:      info.PassengerType,
		DiscountPercentage: info.DiscountPercentage,
		Breakdown:          breakdown,
		Currency:           s.currency(),
	}
}

// CompareRouteFares prices each route and returns the results ordered by
// total fare, cheapest first. Routes with equal fares keep their input
// order.
func (s *Service) CompareRouteFares(routes []domain.RouteOption, passengerTypeID string) []domain.FareComparison {
	comparisons := iter.Map(routes, func(r *domain.RouteOption) domain.FareComparison {
		priced := s.PriceRoute(*r, passengerTypeID)
		return domain.FareComparison{
			RouteID:        r.ID,
			TotalFare:      priced.TotalFare,
			TotalDuration:  r.Summary.TotalDurationMinutes,
			TotalTransfers: r.Summary.TotalTransfers,
			FarePerMinute:  farePerMinute(priced.TotalFare, r.Summary.TotalDurationMinutes),
			LinesUsed:      r.Summary.LinesUsed,
			Breakdown:      priced.Breakdown,
		}
	})
	for i := range comparisons {
		comparisons[i].RouteIndex = i
	}

	sort.SliceStable(comparisons, func(i, j int) bool {
		return comparisons[i].TotalFare.LessThan(comparisons[j].TotalFare)
	})

	s.logger.Debug("compared route fares", "routes", len(routes), "passenger_type_id", passengerTypeID)
	return comparisons
}

func farePerMinute(total decimal.Decimal, minutes int) decimal.Decimal {
	if minutes <= 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(minutes))).Round(4)
}

// DiscountInfo describes the discount for a passenger type. Unknown types
// fall back to a full-fare adult entry instead of failing.
func (s *Service) DiscountInfo(passengerTypeID string) domain.DiscountInfo {
	pt, ok := s.catalog.PassengerType(passengerTypeID)
	if !ok {
		return domain.DiscountInfo{
			PassengerTypeID:    passengerTypeID,
			PassengerType:      defaultPassengerTag,
			DiscountPercentage: 0,
			Description:        noDiscountNote,
		}
	}
	return domain.DiscountInfo{
		PassengerTypeID:    pt.ID,
		PassengerType:      pt.Name,
		DiscountPercentage: pt.DiscountPercentage,
		Description:        pt.Description,
	}
}

func (s *Service) PassengerTypes() []domain.PassengerType {
	return s.catalog.PassengerTypes()
}
