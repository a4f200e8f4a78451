package provider

import (
	"context"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/saviobatista/flightwatch/internal/types"
)

// AviationstackBaseURL is plain HTTP since free plans reject HTTPS
const AviationstackBaseURL = "http://api.aviationstack.com/v1"

// AviationstackConfig configures the Aviationstack adapter
type AviationstackConfig struct {
	AccessKey         string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Aviationstack implements StatusProvider and PositionProvider
type Aviationstack struct {
	cfg    AviationstackConfig
	client *httpClient
}

// NewAviationstack creates an Aviationstack adapter
func NewAviationstack(cfg AviationstackConfig) *Aviationstack {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AviationstackBaseURL
	}
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	return &Aviationstack{
		cfg:    cfg,
		client: newHTTPClient(NameAviationstack, cfg.Timeout, cfg.RequestsPerMinute),
	}
}

func (p *Aviationstack) Name() string { return NameAviationstack }

type asResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Type    string `json:"type"`
		Info    string `json:"info"`
		Message string `json:"message"`
	} `json:"error"`
	Data json.RawMessage `json:"data"`
}

type asFlight struct {
	FlightDate   string `json:"flight_date"`
	FlightStatus string `json:"flight_status"`
	Departure    asLeg  `json:"departure"`
	Arrival      asLeg  `json:"arrival"`
	Airline      struct {
		Name string `json:"name"`
		IATA string `json:"iata"`
	} `json:"airline"`
	Aircraft *struct {
		IATA   string `json:"iata"`
		ICAO   string `json:"icao"`
		ICAO24 string `json:"icao24"`
	} `json:"aircraft"`
	Live *asLive `json:"live"`
}

type asLeg struct {
	Airport   string `json:"airport"`
	Timezone  string `json:"timezone"`
	IATA      string `json:"iata"`
	Terminal  string `json:"terminal"`
	Gate      string `json:"gate"`
	Delay     *int   `json:"delay"`
	Scheduled string `json:"scheduled"`
	Estimated string `json:"estimated"`
	Actual    string `json:"actual"`
}

type asLive struct {
	Updated         string  `json:"updated"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Altitude        float64 `json:"altitude"`
	Direction       float64 `json:"direction"`
	SpeedHorizontal float64 `json:"speed_horizontal"`
	IsGround        bool    `json:"is_ground"`
}

func aviationstackKind(code, message string) Kind {
	c := strings.ToLower(code)
	m := strings.ToLower(message)
	switch {
	case c == "rate_limit_reached" || strings.Contains(m, "rate limit"):
		return KindRateLimited
	case c == "usage_limit_reached" || strings.Contains(m, "quota") || strings.Contains(m, "limit"):
		return KindQuotaExceeded
	case c == "invalid_access_key" || c == "missing_access_key" || c == "inactive_user" || strings.Contains(m, "access key"):
		return KindAuthError
	case c == "function_access_restricted":
		return KindPlanRestricted
	case c == "invalid_api_function" || c == "404_not_found":
		return KindBadRequest
	}
	return KindProviderError
}

// call runs one request against endpoint and decodes the data member into out
func (p *Aviationstack) call(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	params.Set("access_key", p.cfg.AccessKey)
	resp, err := p.client.get(ctx, strings.TrimRight(p.cfg.BaseURL, "/")+"/"+endpoint, params, nil)
	if err != nil {
		return err
	}

	var body asResponse
	decodeErr := json.Unmarshal(resp.body, &body)

	if decodeErr == nil && body.Error != nil {
		code := firstNonEmpty(body.Error.Code, body.Error.Type)
		msg := firstNonEmpty(body.Error.Info, body.Error.Message)
		e := &Error{
			Provider:   NameAviationstack,
			Kind:       aviationstackKind(code, msg),
			Code:       code,
			Message:    msg,
			RetryAfter: parseRetryAfter(resp.header.Get("Retry-After")),
		}
		if e.RetryAfter == 0 {
			switch e.Kind {
			case KindRateLimited:
				e.RetryAfter = time.Minute
			case KindQuotaExceeded:
				e.RetryAfter = 24 * time.Hour
			}
		}
		return e
	}
	if resp.status >= 400 {
		return p.client.statusError(resp)
	}
	if decodeErr != nil {
		return &Error{Provider: NameAviationstack, Kind: KindProviderError, Message: "decode response", Err: decodeErr}
	}
	if len(body.Data) == 0 || string(body.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(body.Data, out); err != nil {
		return &Error{Provider: NameAviationstack, Kind: KindProviderError, Message: "decode response", Err: err}
	}
	return nil
}

// query runs one flights request; a nil slice with nil error means no rows
func (p *Aviationstack) query(ctx context.Context, params url.Values) ([]asFlight, error) {
	var rows []asFlight
	if err := p.call(ctx, "flights", params, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// lookup tries the dated query first, then the undated one, since plans vary
func (p *Aviationstack) lookup(ctx context.Context, flight *types.Flight) (*asFlight, error) {
	ident := flightIATA(flight)
	variants := []url.Values{{"flight_iata": {ident}, "limit": {"10"}}}
	if d := flight.Dep.Scheduled; len(d) >= 10 {
		dated := url.Values{"flight_iata": {ident}, "flight_date": {d[:10]}, "limit": {"10"}}
		variants = append([]url.Values{dated}, variants...)
	}

	for _, params := range variants {
		rows, err := p.query(ctx, params)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}

		dep := strings.ToUpper(flight.Dep.Airport.IATA)
		arr := strings.ToUpper(flight.Arr.Airport.IATA)
		for i := range rows {
			if dep != "" && arr != "" && rows[i].Departure.IATA == dep && rows[i].Arrival.IATA == arr {
				return &rows[i], nil
			}
		}
		return &rows[0], nil
	}
	return nil, NewError(NameAviationstack, KindNoMatch, ident)
}

// FetchStatus maps the best matching flights row into a payload
func (p *Aviationstack) FetchStatus(ctx context.Context, flight *types.Flight) (*types.StatusPayload, error) {
	if flight.AirlineCode == "" || flight.FlightNumber == "" {
		return nil, NewError(NameAviationstack, KindBadQuery, "airline and number are required")
	}

	best, err := p.lookup(ctx, flight)
	if err != nil {
		return nil, err
	}

	dep, arr := best.Departure, best.Arrival
	delay := dep.Delay
	if delay == nil {
		delay = arr.Delay
	}

	payload := &types.StatusPayload{
		Provider:       NameAviationstack,
		State:          strings.ToLower(best.FlightStatus),
		DepScheduled:   dep.Scheduled,
		DepEstimated:   dep.Estimated,
		DepActual:      dep.Actual,
		ArrScheduled:   arr.Scheduled,
		ArrEstimated:   arr.Estimated,
		ArrActual:      arr.Actual,
		DepIATA:        dep.IATA,
		ArrIATA:        arr.IATA,
		DepTZ:          dep.Timezone,
		ArrTZ:          arr.Timezone,
		DepAirportName: dep.Airport,
		ArrAirportName: arr.Airport,
		AirlineName:    best.Airline.Name,
		TerminalDep:    dep.Terminal,
		GateDep:        dep.Gate,
		TerminalArr:    arr.Terminal,
		GateArr:        arr.Gate,
		DelayMinutes:   delay,
	}
	if best.Aircraft != nil {
		payload.AircraftType = firstNonEmpty(best.Aircraft.ICAO, best.Aircraft.IATA)
		payload.ICAO24 = strings.ToLower(best.Aircraft.ICAO24)
	}
	if pos := best.Live.position(); pos != nil {
		payload.Position = pos
		payload.PositionProvider = NameAviationstack
	}
	return payload, nil
}

// FetchPosition returns the live block of the matching flight
func (p *Aviationstack) FetchPosition(ctx context.Context, flight *types.Flight) (*types.Position, error) {
	if flight.AirlineCode == "" || flight.FlightNumber == "" {
		return nil, NewError(NameAviationstack, KindBadQuery, "airline and number are required")
	}
	best, err := p.lookup(ctx, flight)
	if err != nil {
		return nil, err
	}
	pos := best.Live.position()
	if pos == nil {
		return nil, NewError(NameAviationstack, KindNoMatch, "no live data")
	}
	return pos, nil
}

func (l *asLive) position() *types.Position {
	if l == nil || l.IsGround {
		return nil
	}
	return &types.Position{
		Lat:       l.Latitude,
		Lon:       l.Longitude,
		Altitude:  l.Altitude,
		Speed:     l.SpeedHorizontal,
		Track:     l.Direction,
		Timestamp: l.Updated,
		Provider:  NameAviationstack,
	}
}
