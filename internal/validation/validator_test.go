package validation

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metroplan/internal/domain"
	"metroplan/internal/store"
	"metroplan/pkg/topology"
)

var fixedNow = time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bangkok(t *testing.T) *store.Snapshot {
	t.Helper()
	data, err := os.ReadFile("../../pkg/topology/testdata/bangkok.yaml")
	require.NoError(t, err)
	topo, err := topology.NewParser(discardLogger()).Parse(data)
	require.NoError(t, err)
	return store.NewSnapshot(topo, "test", "bangkok.yaml", discardLogger())
}

func newValidator(t *testing.T) *Validator {
	return New(bangkok(t), WithClock(func() time.Time { return fixedNow }))
}

func request(from, to string) domain.PlanRequest {
	r := domain.NewPlanRequest()
	r.Origin = from
	r.Destination = to
	return r
}

func TestValidateRequest_Valid(t *testing.T) {
	v := newValidator(t)

	r := request("bts_siam", "bts_mo_chit")
	dep := fixedNow.Add(30 * time.Minute)
	r.DepartureTime = &dep

	assert.Empty(t, v.ValidateRequest(r))
}

func TestValidateRequest_Codes(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name   string
		mutate func(r *domain.PlanRequest)
		code   string
		field  string
	}{
		{"same station", func(r *domain.PlanRequest) { r.Destination = r.Origin }, CodeSameStation, "to_station_id"},
		{"unknown origin", func(r *domain.PlanRequest) { r.Origin = "nowhere" }, CodeInvalidFromStation, "from_station_id"},
		{"unknown destination", func(r *domain.PlanRequest) { r.Destination = "nowhere" }, CodeInvalidToStation, "to_station_id"},
		{"inactive destination", func(r *domain.PlanRequest) { r.Destination = "mrt_bang_sue" }, CodeStationInactive, "to_station_id"},
		{"unknown passenger", func(r *domain.PlanRequest) { r.PassengerType = "pirate" }, CodeInvalidPassenger, "passenger_type_id"},
		{"departure too early", func(r *domain.PlanRequest) {
			d := fixedNow.Add(-2 * time.Hour)
			r.DepartureTime = &d
		}, CodePastDeparture, "departure_time"},
		{"departure too late", func(r *domain.PlanRequest) {
			d := fixedNow.Add(31 * 24 * time.Hour)
			r.DepartureTime = &d
		}, CodeFutureDeparture, "departure_time"},
		{"no walking", func(r *domain.PlanRequest) { r.MaxWalkingMinutes = 0 }, CodeInvalidWalkingTime, "max_walking_time"},
		{"too much walking", func(r *domain.PlanRequest) { r.MaxWalkingMinutes = 61 }, CodeExcessiveWalkingTime, "max_walking_time"},
		{"negative transfers", func(r *domain.PlanRequest) { r.MaxTransfers = -1 }, CodeInvalidTransfers, "max_transfers"},
		{"too many transfers", func(r *domain.PlanRequest) { r.MaxTransfers = 6 }, CodeExcessiveTransfers, "max_transfers"},
		{"internal mode", func(r *domain.PlanRequest) { r.Optimization = domain.OptimizeBalanced }, CodeInvalidOptimization, "optimization"},
		{"unknown mode", func(r *domain.PlanRequest) { r.Optimization = "scenic" }, CodeInvalidOptimization, "optimization"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := request("bts_siam", "bts_mo_chit")
			tt.mutate(&r)

			errs := v.ValidateRequest(r)
			require.Len(t, errs, 1, "got %v", errs.Codes())
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.NotEmpty(t, errs[0].Message)
		})
	}
}

func TestValidateRequest_BoundariesAccepted(t *testing.T) {
	v := newValidator(t)

	r := request("bts_siam", "bts_mo_chit")
	r.MaxWalkingMinutes = MaxWalkingMinutes
	r.MaxTransfers = 0
	past := fixedNow.Add(-59 * time.Minute)
	r.DepartureTime = &past
	assert.Empty(t, v.ValidateRequest(r))

	r.MaxWalkingMinutes = MinWalkingMinutes
	r.MaxTransfers = MaxTransfers
	assert.Empty(t, v.ValidateRequest(r))
}

func TestValidateRequest_CollectsEveryError(t *testing.T) {
	v := newValidator(t)

	r := request("ghost", "ghost")
	r.PassengerType = "pirate"
	r.MaxTransfers = 9

	errs := v.ValidateRequest(r)
	assert.Equal(t, []string{
		CodeSameStation,
		CodeInvalidFromStation,
		CodeInvalidToStation,
		CodeInvalidPassenger,
		CodeExcessiveTransfers,
	}, errs.Codes())
	assert.Equal(t, "Origin station with ID ghost not found", errs[1].Message)
}

func TestValidateRequest_InactiveMessageUsesName(t *testing.T) {
	errs := newValidator(t).ValidateRequest(request("mrt_bang_sue", "bts_siam"))
	require.Len(t, errs, 1)
	assert.Equal(t, "Origin station 'Bang Sue' is currently inactive", errs[0].Message)
}

func alternatives(avoid, prefer []string, max int) domain.AlternativesRequest {
	r := domain.NewAlternativesRequest()
	r.PlanRequest = request("bts_siam", "mrt_si_lom")
	r.AvoidLines = avoid
	r.PreferLines = prefer
	r.MaxAlternatives = max
	return r
}

func TestValidateAlternatives(t *testing.T) {
	v := newValidator(t)

	assert.Empty(t, v.ValidateAlternatives(alternatives([]string{"arl"}, []string{"mrt_blue"}, 5)))

	tests := []struct {
		name  string
		req   domain.AlternativesRequest
		codes []string
	}{
		{"zero alternatives", alternatives(nil, nil, 0), []string{CodeInvalidMaxAlternatives}},
		{"too many alternatives", alternatives(nil, nil, 11), []string{CodeExcessiveAlternatives}},
		{"unknown avoided line", alternatives([]string{"ghost"}, nil, 5), []string{CodeInvalidAvoidLine}},
		{"suspended avoided line", alternatives([]string{"bts_gold"}, nil, 5), []string{CodeInactiveAvoidLine}},
		{"unknown preferred line", alternatives(nil, []string{"ghost"}, 5), []string{CodeInvalidPreferLine}},
		{"suspended preferred line", alternatives(nil, []string{"bts_gold"}, 5), []string{CodeInactivePreferLine}},
		{"conflict", alternatives([]string{"arl", "mrt_blue"}, []string{"mrt_blue"}, 5), []string{CodeConflictingLines}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.codes, v.ValidateAlternatives(tt.req).Codes())
		})
	}

	errs := v.ValidateAlternatives(alternatives([]string{"arl", "mrt_blue"}, []string{"mrt_blue", "arl"}, 5))
	require.Len(t, errs, 1)
	assert.Equal(t, "Lines [mrt_blue, arl] cannot be both avoided and preferred", errs[0].Message)
}

func TestValidateAlternatives_IncludesBaseErrors(t *testing.T) {
	r := alternatives(nil, nil, 0)
	r.PassengerType = "pirate"
	assert.Equal(t, []string{CodeInvalidPassenger, CodeInvalidMaxAlternatives}, newValidator(t).ValidateAlternatives(r).Codes())
}
