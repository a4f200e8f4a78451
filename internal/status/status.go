// Package status maps provider payloads onto canonical flight records.
package status

import (
	"log"
	"strings"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

var stateAliases = map[string]types.FlightState{
	"scheduled":    types.StateScheduled,
	"schedule":     types.StateScheduled,
	"plan":         types.StateScheduled,
	"planned":      types.StateScheduled,
	"active":       types.StateEnRoute,
	"enroute":      types.StateEnRoute,
	"en route":     types.StateEnRoute,
	"en-route":     types.StateEnRoute,
	"en_route":     types.StateEnRoute,
	"in air":       types.StateEnRoute,
	"in-air":       types.StateEnRoute,
	"airborne":     types.StateEnRoute,
	"departed":     types.StateEnRoute,
	"cruising":     types.StateEnRoute,
	"landed":       types.StateArrived,
	"arrived":      types.StateArrived,
	"arrival":      types.StateArrived,
	"arrived_gate": types.StateArrived,
	"cancelled":    types.StateCancelled,
	"canceled":     types.StateCancelled,
	"diverted":     types.StateDiverted,
	"unknown":      types.StateUnknown,
	"n/a":          types.StateUnknown,
	"na":           types.StateUnknown,
}

// Substring fallbacks, checked in order once no exact alias matched
var stateFragments = []struct {
	fragment string
	state    types.FlightState
}{
	{"divert", types.StateDiverted},
	{"cancel", types.StateCancelled},
	{"landed", types.StateArrived},
	{"arriv", types.StateArrived},
	{"en route", types.StateEnRoute},
	{"enroute", types.StateEnRoute},
	{"airborne", types.StateEnRoute},
	{"depart", types.StateEnRoute},
	{"in air", types.StateEnRoute},
	{"schedul", types.StateScheduled},
}

// NormalizeState maps a provider state string into the canonical state
func NormalizeState(providerState, provider string) types.FlightState {
	s := strings.ToLower(strings.TrimSpace(providerState))
	if s == "" {
		return types.StateUnknown
	}

	if state, ok := stateAliases[s]; ok {
		return state
	}
	for _, f := range stateFragments {
		if strings.Contains(s, f.fragment) {
			return f.state
		}
	}

	// OpenSky only ever reports aircraft it currently sees in the air
	if strings.EqualFold(provider, "opensky") {
		return types.StateEnRoute
	}
	return types.StateUnknown
}

func isEmptyState(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "unknown", "n/a", "na":
		return true
	}
	return false
}

func fill(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}

func prefer(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Apply merges a provider payload into flight in place.
//
// Fresh estimated/actual timestamps replace cached ones. Scheduled times,
// gates, terminals and identity fields are only filled when absent. A
// missing provider state never regresses a known state to Unknown.
func Apply(flight *types.Flight, p *types.StatusPayload) *types.Flight {
	if flight == nil || p == nil {
		return flight
	}

	applyState(flight, p)

	dep, arr := &flight.Dep, &flight.Arr

	fill(&dep.Airport.TZ, p.DepTZ)
	fill(&arr.Airport.TZ, p.ArrTZ)

	fill(&dep.Scheduled, p.DepScheduled)
	fill(&arr.Scheduled, p.ArrScheduled)
	prefer(&dep.Estimated, p.DepEstimated)
	prefer(&dep.Actual, p.DepActual)
	prefer(&arr.Estimated, p.ArrEstimated)
	prefer(&arr.Actual, p.ArrActual)

	fill(&dep.Terminal, p.TerminalDep)
	fill(&dep.Gate, p.GateDep)
	fill(&arr.Terminal, p.TerminalArr)
	fill(&arr.Gate, p.GateArr)

	fill(&flight.AirlineName, p.AirlineName)
	fill(&flight.AirlineLogoURL, p.AirlineLogoURL)
	fill(&flight.AircraftType, p.AircraftType)

	fill(&dep.Airport.Name, p.DepAirportName)
	fill(&dep.Airport.City, p.DepAirportCity)
	fill(&arr.Airport.Name, p.ArrAirportName)
	fill(&arr.Airport.City, p.ArrAirportCity)

	if p.Position != nil {
		pos := *p.Position
		flight.Position = &pos
	}

	applyDiversion(flight, p)
	NormalizeLegs(flight)

	return flight
}

func applyState(flight *types.Flight, p *types.StatusPayload) {
	next := NormalizeState(p.State, p.Provider)
	if next == types.StateUnknown && !flight.StatusState.IsUnknown() && isEmptyState(p.State) {
		return
	}
	flight.StatusState = next
}

func applyDiversion(flight *types.Flight, p *types.StatusPayload) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: diversion handling failed for %s: %v", flight.FlightKey, r)
		}
	}()

	orig := strings.ToUpper(strings.TrimSpace(flight.Arr.Airport.IATA))
	reported := strings.ToUpper(strings.TrimSpace(p.ArrIATA))

	if flight.StatusState == types.StateDiverted && reported != "" && reported != orig {
		flight.DivertedToIATA = reported
		flight.DivertedToAirport = &types.Airport{
			IATA:    reported,
			Name:    p.ArrAirportName,
			City:    p.ArrAirportCity,
			TZ:      p.ArrTZ,
			TZShort: p.ArrTZShort,
		}
		return
	}
	flight.DivertedToIATA = ""
	flight.DivertedToAirport = nil
}

// NormalizeLegs re-resolves every leg timestamp with the current airport timezone
func NormalizeLegs(flight *types.Flight) {
	normalizeLeg(&flight.Dep)
	normalizeLeg(&flight.Arr)
}

func normalizeLeg(leg *types.Leg) {
	zone := leg.Airport.TZ
	leg.Scheduled = tz.Normalize(leg.Scheduled, zone)
	leg.Estimated = tz.Normalize(leg.Estimated, zone)
	leg.Actual = tz.Normalize(leg.Actual, zone)
}
