package validation

import (
	"fmt"
	"time"

	"metroplan/internal/domain"
)

const (
	msgStationsNotFound = "One or both stations not found"
	msgNoPotentialRoute = "No potential route found between stations"
	msgNoTransfers      = "No transfers allowed but stations are on different lines"
	msgLowWalkingLimit  = "Very low walking time limit may prevent finding routes with transfers"

	lowWalkingMinutes = 5
)

// CheckFeasibility is a cheap reachability probe run before the search. A
// false result carries the reason and should stop planning; warnings on a
// feasible result are informational.
func (v *Validator) CheckFeasibility(r domain.PlanRequest) (bool, []string) {
	_, okFrom := v.network.Station(r.Origin)
	_, okTo := v.network.Station(r.Destination)
	if !okFrom || !okTo {
		return false, []string{msgStationsNotFound}
	}

	shared := v.shareLine(r.Origin, r.Destination)
	if !shared && !v.reachable(r.Origin, r.Destination) {
		return false, []string{msgNoPotentialRoute}
	}

	if r.MaxTransfers == 0 && !shared {
		return false, []string{msgNoTransfers}
	}

	var warnings []string
	if r.MaxWalkingMinutes < lowWalkingMinutes && r.MaxTransfers > 0 {
		warnings = append(warnings, msgLowWalkingLimit)
	}

	at := v.now()
	if r.DepartureTime != nil {
		at = *r.DepartureTime
	}
	warnings = append(warnings, v.disruptions(r.Origin, r.Destination, at)...)

	return true, warnings
}

func (v *Validator) shareLine(a, b string) bool {
	linesA := v.network.LinesAt(a)
	if len(linesA) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(linesA))
	for _, l := range linesA {
		set[l] = struct{}{}
	}
	for _, l := range v.network.LinesAt(b) {
		if _, ok := set[l]; ok {
			return true
		}
	}
	return false
}

// reachable walks shared-line and transfer adjacency breadth first. It
// ignores every search constraint.
func (v *Validator) reachable(from, to string) bool {
	seen := map[string]struct{}{from: {}}
	seenLines := make(map[string]struct{})
	queue := []string{from}

	visit := func(id string) bool {
		if id == to {
			return true
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			queue = append(queue, id)
		}
		return false
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, line := range v.network.LinesAt(cur) {
			if _, ok := seenLines[line]; ok {
				continue
			}
			seenLines[line] = struct{}{}
			for _, id := range v.network.StationsOnLine(line) {
				if visit(id) {
					return true
				}
			}
		}
		for _, id := range v.network.TransferPartners(cur) {
			if visit(id) {
				return true
			}
		}
	}
	return false
}

func (v *Validator) disruptions(origin, destination string, at time.Time) []string {
	lines := make(map[string]struct{})
	for _, id := range []string{origin, destination} {
		for _, l := range v.network.LinesAt(id) {
			lines[l] = struct{}{}
		}
	}

	var warnings []string
	for _, s := range v.network.ServiceStatuses() {
		if !s.ActiveAt(at) {
			continue
		}

		var subject string
		if _, ok := lines[s.LineID]; ok && s.LineID != "" {
			subject = s.LineID
			if line, ok := v.network.Line(s.LineID); ok {
				subject = line.Name
			}
		} else if s.StationID != "" && (s.StationID == origin || s.StationID == destination) {
			subject = s.StationID
			if st, ok := v.network.Station(s.StationID); ok {
				subject = st.Name
			}
		} else {
			continue
		}

		warnings = append(warnings, fmt.Sprintf("Service disruption on %s: %s", subject, s.Message))
	}
	return warnings
}
