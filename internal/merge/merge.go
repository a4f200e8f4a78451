// Package merge collapses per-source segments into one record per logical flight.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// MakeFlightKey builds the stable {AIRLINE}-{NUMBER}-{DEPIATA}-{YYYY-MM-DD} identity
func MakeFlightKey(airline, number, depIATA, depDate string) string {
	return fmt.Sprintf("%s-%s-%s-%s",
		strings.ToUpper(strings.TrimSpace(airline)),
		strings.TrimSpace(number),
		strings.ToUpper(strings.TrimSpace(depIATA)),
		strings.TrimSpace(depDate),
	)
}

// FlightKey returns the segment's own key, or a composite of airline, number,
// departure airport and scheduled departure when the source supplied none
func FlightKey(seg *types.Segment) string {
	if k := strings.TrimSpace(seg.FlightKey); k != "" {
		return k
	}
	return strings.Join([]string{
		strings.TrimSpace(seg.AirlineCode),
		strings.TrimSpace(seg.FlightNumber),
		strings.TrimSpace(seg.Dep.Airport.IATA),
		strings.TrimSpace(seg.Dep.Scheduled),
	}, "-")
}

// Merge groups segments by identity and fills gaps field by field.
// The first segment of a group provides every value it has; later
// segments only fill what is still empty. Input is never mutated.
// Output is sorted by scheduled departure.
func Merge(segments []types.Segment) []*types.Flight {
	byKey := make(map[string]*types.Flight, len(segments))
	order := make([]string, 0, len(segments))

	for i := range segments {
		seg := &segments[i]
		key := FlightKey(seg)

		current, ok := byKey[key]
		if !ok {
			current = &types.Flight{FlightKey: key, Travellers: []string{}}
			byKey[key] = current
			order = append(order, key)
		}
		mergeSegment(current, seg)
	}

	flights := make([]*types.Flight, 0, len(order))
	for _, key := range order {
		flights = append(flights, byKey[key])
	}

	sort.SliceStable(flights, func(i, j int) bool {
		return sortKey(flights[i]) < sortKey(flights[j])
	})
	return flights
}

func sortKey(f *types.Flight) string {
	return tz.Normalize(f.Dep.Scheduled, f.Dep.Airport.TZ)
}

func mergeSegment(dst *types.Flight, seg *types.Segment) {
	fill(&dst.Source, seg.Source)
	fill(&dst.AirlineCode, seg.AirlineCode)
	fill(&dst.FlightNumber, seg.FlightNumber)
	fill(&dst.AirlineName, seg.AirlineName)
	fill(&dst.AirlineLogoURL, seg.AirlineLogoURL)
	fill(&dst.AircraftType, seg.AircraftType)
	fill(&dst.Notes, seg.Notes)

	dst.Travellers = unionTravellers(dst.Travellers, seg.Travellers)

	mergeLeg(&dst.Dep, &seg.Dep)
	mergeLeg(&dst.Arr, &seg.Arr)

	if dst.StatusState.IsUnknown() && strings.TrimSpace(seg.StatusState) != "" {
		dst.StatusState = types.FlightState(strings.TrimSpace(seg.StatusState))
	}
}

func mergeLeg(dst, src *types.Leg) {
	fill(&dst.Airport.IATA, src.Airport.IATA)
	fill(&dst.Airport.Name, src.Airport.Name)
	fill(&dst.Airport.City, src.Airport.City)
	fill(&dst.Airport.TZ, src.Airport.TZ)
	fill(&dst.Airport.TZShort, src.Airport.TZShort)

	fill(&dst.Scheduled, src.Scheduled)
	fill(&dst.Estimated, src.Estimated)
	fill(&dst.Actual, src.Actual)
	fill(&dst.Terminal, src.Terminal)
	fill(&dst.Gate, src.Gate)

	fill(&dst.ScheduledLocal, src.ScheduledLocal)
	fill(&dst.EstimatedLocal, src.EstimatedLocal)
	fill(&dst.ActualLocal, src.ActualLocal)
}

func fill(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func unionTravellers(current, incoming []string) []string {
	seen := make(map[string]struct{}, len(current)+len(incoming))
	out := make([]string, 0, len(current)+len(incoming))
	for _, list := range [][]string{current, incoming} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
