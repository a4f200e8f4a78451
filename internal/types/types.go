package types

import (
	"strings"
	"time"
)

// FlightState is the canonical flight state shared by every provider
type FlightState string

const (
	StateScheduled FlightState = "Scheduled"
	StateEnRoute   FlightState = "En Route"
	StateArrived   FlightState = "Arrived"
	StateCancelled FlightState = "Cancelled"
	StateDiverted  FlightState = "Diverted"
	StateUnknown   FlightState = "Unknown"
)

// IsUnknown reports whether the state carries no usable information
func (s FlightState) IsUnknown() bool {
	return s == "" || strings.EqualFold(string(s), string(StateUnknown))
}

// DelayStatus is derived from canonical timestamps on every pass
type DelayStatus string

const (
	DelayOnTime    DelayStatus = "on_time"
	DelayDelayed   DelayStatus = "delayed"
	DelayCancelled DelayStatus = "cancelled"
	DelayArrived   DelayStatus = "arrived"
	DelayUnknown   DelayStatus = "unknown"
)

// Airport is the identity block of a departure or arrival leg
type Airport struct {
	IATA    string `json:"iata,omitempty"`
	Name    string `json:"name,omitempty"`
	City    string `json:"city,omitempty"`
	TZ      string `json:"tz,omitempty"`
	TZShort string `json:"tz_short,omitempty"`
}

// Leg holds one side (departure or arrival) of a flight.
// Timestamps are ISO-8601 strings; an empty string means absent. A value
// without an explicit offset is naive and must not be used for arithmetic.
type Leg struct {
	Airport   Airport `json:"airport"`
	Scheduled string  `json:"scheduled,omitempty"`
	Estimated string  `json:"estimated,omitempty"`
	Actual    string  `json:"actual,omitempty"`
	Terminal  string  `json:"terminal,omitempty"`
	Gate      string  `json:"gate,omitempty"`

	ScheduledLocal string `json:"scheduled_local,omitempty"`
	EstimatedLocal string `json:"estimated_local,omitempty"`
	ActualLocal    string `json:"actual_local,omitempty"`
}

// Best returns actual, then estimated, then scheduled
func (l *Leg) Best() string {
	if l.Actual != "" {
		return l.Actual
	}
	if l.Estimated != "" {
		return l.Estimated
	}
	return l.Scheduled
}

// Position is a live position report
type Position struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Altitude  float64 `json:"alt,omitempty"`
	Speed     float64 `json:"gspeed,omitempty"`
	Track     float64 `json:"track,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Source    string  `json:"source,omitempty"`
	Provider  string  `json:"provider,omitempty"`
}

// Segment is one source's raw account of a single flight occurrence
type Segment struct {
	Source         string   `json:"source"`
	FlightKey      string   `json:"flight_key,omitempty"`
	AirlineCode    string   `json:"airline_code"`
	FlightNumber   string   `json:"flight_number"`
	AirlineName    string   `json:"airline_name,omitempty"`
	AirlineLogoURL string   `json:"airline_logo_url,omitempty"`
	AircraftType   string   `json:"aircraft_type,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Travellers     []string `json:"travellers,omitempty"`
	Dep            Leg      `json:"dep"`
	Arr            Leg      `json:"arr"`
	StatusState    string   `json:"status_state,omitempty"`
}

// Durations are leg durations in minutes; nil when not computable
type Durations struct {
	Scheduled *int `json:"duration_scheduled_minutes"`
	Estimated *int `json:"duration_estimated_minutes"`
	Actual    *int `json:"duration_actual_minutes"`
	Minutes   *int `json:"duration_minutes"`
}

// Flight is the canonical, de-duplicated record for one tracked flight
type Flight struct {
	FlightKey      string      `json:"flight_key"`
	Source         string      `json:"source"`
	AirlineCode    string      `json:"airline_code"`
	FlightNumber   string      `json:"flight_number"`
	AirlineName    string      `json:"airline_name,omitempty"`
	AirlineLogoURL string      `json:"airline_logo_url,omitempty"`
	AircraftType   string      `json:"aircraft_type,omitempty"`
	Notes          string      `json:"notes,omitempty"`
	Travellers     []string    `json:"travellers"`
	Dep            Leg         `json:"dep"`
	Arr            Leg         `json:"arr"`
	StatusState    FlightState `json:"status_state"`

	Status          *StatusPayload `json:"status,omitempty"`
	StatusUpdatedAt *time.Time     `json:"status_updated_at,omitempty"`

	DelayStatus  DelayStatus `json:"delay_status"`
	DelayMinutes *int        `json:"delay_minutes"`
	Durations

	Position          *Position `json:"position,omitempty"`
	DivertedToIATA    string    `json:"diverted_to_iata,omitempty"`
	DivertedToAirport *Airport  `json:"diverted_to_airport,omitempty"`
	Editable          bool      `json:"editable"`
}

// StatusPayload is the normalized output shape of every status provider
type StatusPayload struct {
	Provider string `json:"provider"`
	State    string `json:"state,omitempty"`

	DepScheduled string `json:"dep_scheduled,omitempty"`
	DepEstimated string `json:"dep_estimated,omitempty"`
	DepActual    string `json:"dep_actual,omitempty"`
	ArrScheduled string `json:"arr_scheduled,omitempty"`
	ArrEstimated string `json:"arr_estimated,omitempty"`
	ArrActual    string `json:"arr_actual,omitempty"`

	DepIATA        string `json:"dep_iata,omitempty"`
	ArrIATA        string `json:"arr_iata,omitempty"`
	DepTZ          string `json:"dep_tz,omitempty"`
	ArrTZ          string `json:"arr_tz,omitempty"`
	ArrTZShort     string `json:"arr_tz_short,omitempty"`
	DepAirportName string `json:"dep_airport_name,omitempty"`
	DepAirportCity string `json:"dep_airport_city,omitempty"`
	ArrAirportName string `json:"arr_airport_name,omitempty"`
	ArrAirportCity string `json:"arr_airport_city,omitempty"`

	TerminalDep string `json:"terminal_dep,omitempty"`
	GateDep     string `json:"gate_dep,omitempty"`
	TerminalArr string `json:"terminal_arr,omitempty"`
	GateArr     string `json:"gate_arr,omitempty"`

	AirlineName    string `json:"airline_name,omitempty"`
	AirlineLogoURL string `json:"airline_logo_url,omitempty"`
	AircraftType   string `json:"aircraft_type,omitempty"`
	DelayMinutes   *int   `json:"delay_minutes,omitempty"`
	ICAO24         string `json:"icao24,omitempty"`
	ProviderID     string `json:"provider_id,omitempty"`

	Position         *Position `json:"position,omitempty"`
	PositionProvider string    `json:"position_provider,omitempty"`
}

// CacheEntry is the per-flight status cache slot that survives across passes.
// A nil NextCheck means the flight is not polled again automatically.
type CacheEntry struct {
	FlightKey string         `json:"flight_key"`
	Provider  string         `json:"provider"`
	Status    *StatusPayload `json:"status,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	NextCheck *time.Time     `json:"next_check,omitempty"`
}

// Block is a provider cooldown window
type Block struct {
	Until  time.Time `json:"until"`
	Reason string    `json:"reason"`
}

// ManualFlight is a user-entered flight as persisted in the manual store
type ManualFlight struct {
	FlightKey          string     `json:"flight_key"`
	Source             string     `json:"source"`
	AirlineCode        string     `json:"airline_code"`
	FlightNumber       string     `json:"flight_number"`
	AirlineName        string     `json:"airline_name,omitempty"`
	AirlineLogoURL     string     `json:"airline_logo_url,omitempty"`
	AircraftType       string     `json:"aircraft_type,omitempty"`
	DepAirport         string     `json:"dep_airport"`
	ArrAirport         string     `json:"arr_airport"`
	DepAirportName     string     `json:"dep_airport_name,omitempty"`
	DepAirportCity     string     `json:"dep_airport_city,omitempty"`
	DepAirportTZ       string     `json:"dep_airport_tz,omitempty"`
	ArrAirportName     string     `json:"arr_airport_name,omitempty"`
	ArrAirportCity     string     `json:"arr_airport_city,omitempty"`
	ArrAirportTZ       string     `json:"arr_airport_tz,omitempty"`
	ScheduledDeparture time.Time  `json:"scheduled_departure"`
	ScheduledArrival   *time.Time `json:"scheduled_arrival,omitempty"`
	Travellers         []string   `json:"travellers"`
	Notes              string     `json:"notes,omitempty"`
	StatusState        string     `json:"status_state,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Snapshot is the published output of one aggregation pass
type Snapshot struct {
	PassID      string     `json:"pass_id"`
	GeneratedAt time.Time  `json:"generated_at"`
	NextWake    *time.Time `json:"next_wake,omitempty"`
	Flights     []*Flight  `json:"flights"`
}

// AirportInfo is a directory record for one airport
type AirportInfo struct {
	IATA    string `json:"iata"`
	Name    string `json:"name,omitempty"`
	City    string `json:"city,omitempty"`
	TZ      string `json:"tz,omitempty"`
	Country string `json:"country,omitempty"`
	Source  string `json:"source,omitempty"`
}

// AirlineInfo is a directory record for one airline
type AirlineInfo struct {
	IATA    string `json:"iata"`
	ICAO    string `json:"icao,omitempty"`
	Name    string `json:"name,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
	Source  string `json:"source,omitempty"`
}
