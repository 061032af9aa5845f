package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"metroplan/internal/domain"
	"metroplan/internal/store"
)

func TestCheckFeasibility_Bangkok(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name     string
		req      domain.PlanRequest
		feasible bool
		messages []string
	}{
		{
			name:     "same line",
			req:      request("bts_siam", "bts_mo_chit"),
			feasible: true,
		},
		{
			name:     "disrupted line",
			req:      request("bts_siam", "arl_suvarnabhumi"),
			feasible: true,
			messages: []string{"Service disruption on Airport Rail Link: Signal fault near Makkasan"},
		},
		{
			name:     "unknown station",
			req:      request("bts_siam", "ghost"),
			messages: []string{msgStationsNotFound},
		},
		{
			name:     "suspended line",
			req:      request("bts_siam", "gold_charoen_nakhon"),
			messages: []string{msgNoPotentialRoute},
		},
		{
			name: "no transfers allowed",
			req: func() domain.PlanRequest {
				r := request("bts_siam", "mrt_si_lom")
				r.MaxTransfers = 0
				return r
			}(),
			messages: []string{msgNoTransfers},
		},
		{
			name: "low walking limit",
			req: func() domain.PlanRequest {
				r := request("bts_siam", "mrt_si_lom")
				r.MaxWalkingMinutes = 3
				return r
			}(),
			feasible: true,
			messages: []string{msgLowWalkingLimit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feasible, messages := v.CheckFeasibility(tt.req)
			assert.Equal(t, tt.feasible, feasible)
			assert.Equal(t, tt.messages, messages)
		})
	}
}

func TestCheckFeasibility_FollowsTransfers(t *testing.T) {
	feasible, _ := newValidator(t).CheckFeasibility(request("bts_bang_wa", "bts_kheha"))
	assert.True(t, feasible)
}

func closureTopology(startsAt time.Time) *domain.Topology {
	return &domain.Topology{
		Stations: []domain.Station{
			{ID: "a", Name: "Alpha", LineID: "l1"},
			{ID: "b", Name: "Bravo", LineID: "l1"},
			{ID: "c", Name: "Charlie", LineID: "l2"},
		},
		Lines: []domain.Line{
			{ID: "l1", Name: "Line One", Stations: []string{"a", "b"}},
			{ID: "l2", Name: "Line Two", Stations: []string{"c"}},
		},
		PassengerTypes: []domain.PassengerType{{ID: "adult", Name: "Adult"}},
		ServiceStatuses: []domain.ServiceStatus{
			{ID: "works", StationID: "b", Type: "closure", Message: "Platform works", StartsAt: &startsAt},
			{ID: "other", LineID: "l2", Type: "delay", Message: "Slow running"},
		},
	}
}

func TestCheckFeasibility_StatusWindow(t *testing.T) {
	snap := store.NewSnapshot(closureTopology(fixedNow.Add(time.Hour)), "v1", "test", discardLogger())
	v := New(snap, WithClock(func() time.Time { return fixedNow }))

	feasible, warnings := v.CheckFeasibility(request("a", "b"))
	assert.True(t, feasible)
	assert.Empty(t, warnings)

	r := request("a", "b")
	later := fixedNow.Add(2 * time.Hour)
	r.DepartureTime = &later

	feasible, warnings = v.CheckFeasibility(r)
	assert.True(t, feasible)
	assert.Equal(t, []string{"Service disruption on Bravo: Platform works"}, warnings)
}

func TestCheckFeasibility_DisconnectedLines(t *testing.T) {
	snap := store.NewSnapshot(closureTopology(fixedNow), "v1", "test", discardLogger())

	feasible, messages := New(snap).CheckFeasibility(request("a", "c"))
	assert.False(t, feasible)
	assert.Equal(t, []string{msgNoPotentialRoute}, messages)
}
