package provider

import (
	"context"
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/saviobatista/flightwatch/internal/types"
)

// MockRecord is one canned status in a fixtures file
type MockRecord struct {
	StatusState    string    `json:"status_state"`
	AirlineName    string    `json:"airline_name"`
	AirlineLogoURL string    `json:"airline_logo_url"`
	AircraftType   string    `json:"aircraft_type"`
	Dep            types.Leg `json:"dep"`
	Arr            types.Leg `json:"arr"`
}

// Mock serves status from fixtures keyed by "AI157|2026-01-30"
type Mock struct {
	fixtures map[string]MockRecord
}

// MockKey builds the fixture key for a flight and departure date
func MockKey(airline, number, date string) string {
	return fmt.Sprintf("%s%s|%s", strings.ToUpper(strings.TrimSpace(airline)), strings.TrimSpace(number), date)
}

// NewMock creates a mock provider from in-memory fixtures
func NewMock(fixtures map[string]MockRecord) *Mock {
	if fixtures == nil {
		fixtures = make(map[string]MockRecord)
	}
	return &Mock{fixtures: fixtures}
}

// LoadMock reads fixtures from a JSON file
func LoadMock(path string) (*Mock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mock fixtures: %w", err)
	}
	var fixtures map[string]MockRecord
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to parse mock fixtures: %w", err)
	}
	return NewMock(fixtures), nil
}

func (p *Mock) Name() string { return NameMock }

// FetchStatus returns the fixture for the flight's departure date
func (p *Mock) FetchStatus(ctx context.Context, flight *types.Flight) (*types.StatusPayload, error) {
	date := flight.Dep.Scheduled
	if len(date) >= 10 {
		date = date[:10]
	}
	if flight.AirlineCode == "" || flight.FlightNumber == "" || date == "" {
		return nil, NewError(NameMock, KindBadQuery, "airline, number and scheduled departure are required")
	}

	rec, ok := p.fixtures[MockKey(flight.AirlineCode, flight.FlightNumber, date)]
	if !ok {
		return nil, NewError(NameMock, KindNoMatch, MockKey(flight.AirlineCode, flight.FlightNumber, date))
	}

	state := rec.StatusState
	if state == "" {
		state = string(types.StateScheduled)
	}

	return &types.StatusPayload{
		Provider:       NameMock,
		State:          state,
		DepScheduled:   rec.Dep.Scheduled,
		DepEstimated:   rec.Dep.Estimated,
		DepActual:      rec.Dep.Actual,
		ArrScheduled:   rec.Arr.Scheduled,
		ArrEstimated:   rec.Arr.Estimated,
		ArrActual:      rec.Arr.Actual,
		DepIATA:        rec.Dep.Airport.IATA,
		ArrIATA:        rec.Arr.Airport.IATA,
		DepTZ:          rec.Dep.Airport.TZ,
		ArrTZ:          rec.Arr.Airport.TZ,
		DepAirportName: rec.Dep.Airport.Name,
		DepAirportCity: rec.Dep.Airport.City,
		ArrAirportName: rec.Arr.Airport.Name,
		ArrAirportCity: rec.Arr.Airport.City,
		TerminalDep:    rec.Dep.Terminal,
		GateDep:        rec.Dep.Gate,
		TerminalArr:    rec.Arr.Terminal,
		GateArr:        rec.Arr.Gate,
		AirlineName:    rec.AirlineName,
		AirlineLogoURL: rec.AirlineLogoURL,
		AircraftType:   rec.AircraftType,
	}, nil
}
