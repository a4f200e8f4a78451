package provider

import (
	"context"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// Flightradar24BaseURL is the official FR24 API host
const Flightradar24BaseURL = "https://fr24api.flightradar24.com"

// Flightradar24Config configures the FR24 adapter
type Flightradar24Config struct {
	APIKey            string
	UseSandbox        bool
	APIVersion        string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Flightradar24 implements StatusProvider and PositionProvider on the FR24 API
type Flightradar24 struct {
	cfg    Flightradar24Config
	client *httpClient
	now    func() time.Time
}

// NewFlightradar24 creates an FR24 adapter
func NewFlightradar24(cfg Flightradar24Config) *Flightradar24 {
	if cfg.BaseURL == "" {
		cfg.BaseURL = Flightradar24BaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}
	return &Flightradar24{
		cfg:    cfg,
		client: newHTTPClient(NameFlightradar24, cfg.Timeout, cfg.RequestsPerMinute),
		now:    time.Now,
	}
}

func (p *Flightradar24) Name() string { return NameFlightradar24 }

type fr24SummaryResponse struct {
	Data   []fr24Summary `json:"data"`
	Result []fr24Summary `json:"result"`
}

type fr24Summary struct {
	FR24ID          string `json:"fr24_id"`
	Flight          string `json:"flight"`
	OrigIATA        string `json:"orig_iata"`
	OriginIATA      string `json:"origin_iata"`
	DestIATA        string `json:"dest_iata"`
	DestinationIATA string `json:"destination_iata"`
	DatetimeTakeoff string `json:"datetime_takeoff"`
	DatetimeLanded  string `json:"datetime_landed"`
	Type            string `json:"type"`
	AircraftType    string `json:"aircraft_type"`
	Hex             string `json:"hex"`
}

func (s *fr24Summary) origin() string {
	return strings.ToUpper(strings.TrimSpace(firstNonEmpty(s.OrigIATA, s.OriginIATA)))
}

func (s *fr24Summary) destination() string {
	return strings.ToUpper(strings.TrimSpace(firstNonEmpty(s.DestIATA, s.DestinationIATA)))
}

type fr24PositionsResponse struct {
	Data []struct {
		Lat       float64 `json:"lat"`
		Lon       float64 `json:"lon"`
		Alt       float64 `json:"alt"`
		GSpeed    float64 `json:"gspeed"`
		Track     float64 `json:"track"`
		Timestamp string  `json:"timestamp"`
		Source    string  `json:"source"`
	} `json:"data"`
}

func (p *Flightradar24) url(path string) string {
	base := strings.TrimRight(p.cfg.BaseURL, "/")
	if p.cfg.UseSandbox && strings.HasPrefix(path, "/api/") {
		path = "/sandbox" + path
	}
	return base + path
}

func (p *Flightradar24) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	headers := map[string]string{
		"Authorization":  "Bearer " + p.cfg.APIKey,
		"Accept-Version": p.cfg.APIVersion,
	}
	resp, err := p.client.get(ctx, p.url(path), params, headers)
	if err != nil {
		return err
	}
	if resp.status >= 400 {
		return p.client.statusError(resp)
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return &Error{Provider: NameFlightradar24, Kind: KindProviderError, Message: "decode response", Err: err}
	}
	return nil
}

// FetchStatus looks the flight up in flight-summary/full over a wide window
// around its scheduled departure
func (p *Flightradar24) FetchStatus(ctx context.Context, flight *types.Flight) (*types.StatusPayload, error) {
	ident := flightIATA(flight)
	if flight.AirlineCode == "" || flight.FlightNumber == "" || flight.Dep.Scheduled == "" {
		return nil, NewError(NameFlightradar24, KindBadQuery, "airline, number and scheduled departure are required")
	}

	depSched, ok := tz.Parse(tz.Normalize(flight.Dep.Scheduled, flight.Dep.Airport.TZ))
	if !ok {
		depSched = p.now().UTC()
	}

	params := url.Values{
		"flight_datetime_from": {depSched.Add(-12 * time.Hour).Format("2006-01-02T15:04:05")},
		"flight_datetime_to":   {depSched.Add(24 * time.Hour).Format("2006-01-02T15:04:05")},
		"flights":              {ident},
	}

	var summary fr24SummaryResponse
	if err := p.getJSON(ctx, "/api/flight-summary/full", params, &summary); err != nil {
		return nil, err
	}

	rows := summary.Data
	if len(rows) == 0 {
		rows = summary.Result
	}
	if len(rows) == 0 {
		return nil, NewError(NameFlightradar24, KindNoMatch, ident)
	}

	best := &rows[0]
	depIATA := strings.ToUpper(flight.Dep.Airport.IATA)
	arrIATA := strings.ToUpper(flight.Arr.Airport.IATA)
	for i := range rows {
		if depIATA != "" && arrIATA != "" && rows[i].origin() == depIATA && rows[i].destination() == arrIATA {
			best = &rows[i]
			break
		}
	}

	takeoff := tz.Normalize(best.DatetimeTakeoff, "UTC")
	landed := tz.Normalize(best.DatetimeLanded, "UTC")

	state := "scheduled"
	switch {
	case landed != "":
		state = "landed"
	case takeoff != "":
		state = "active"
	}

	payload := &types.StatusPayload{
		Provider:     NameFlightradar24,
		State:        state,
		DepActual:    takeoff,
		ArrActual:    landed,
		DepIATA:      best.origin(),
		ArrIATA:      best.destination(),
		AircraftType: firstNonEmpty(best.Type, best.AircraftType),
		ICAO24:       strings.ToLower(strings.TrimSpace(best.Hex)),
		ProviderID:   best.FR24ID,
	}

	if state == "active" {
		// A failed position lookup does not fail the status
		if pos, err := p.FetchPosition(ctx, flight); err == nil {
			payload.Position = pos
			payload.PositionProvider = NameFlightradar24
		}
	}
	return payload, nil
}

// FetchPosition reads the latest live position for the flight
func (p *Flightradar24) FetchPosition(ctx context.Context, flight *types.Flight) (*types.Position, error) {
	ident := flightIATA(flight)
	if flight.AirlineCode == "" || flight.FlightNumber == "" {
		return nil, NewError(NameFlightradar24, KindBadQuery, "airline and number are required")
	}

	var positions fr24PositionsResponse
	if err := p.getJSON(ctx, "/api/live/flight-positions/light", url.Values{"flights": {ident}}, &positions); err != nil {
		return nil, err
	}
	if len(positions.Data) == 0 {
		return nil, NewError(NameFlightradar24, KindNoMatch, "no live position for "+ident)
	}

	d := positions.Data[0]
	return &types.Position{
		Lat:       d.Lat,
		Lon:       d.Lon,
		Altitude:  d.Alt,
		Speed:     d.GSpeed,
		Track:     d.Track,
		Timestamp: d.Timestamp,
		Source:    d.Source,
		Provider:  NameFlightradar24,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
