package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/saviobatista/flightwatch/internal/types"
)

// AirLabsBaseURL is the AirLabs v9 API root
const AirLabsBaseURL = "https://airlabs.co/api/v9"

// AirLabsConfig configures the AirLabs adapter
type AirLabsConfig struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
}

// AirLabs implements StatusProvider on the AirLabs flight endpoint
type AirLabs struct {
	cfg    AirLabsConfig
	client *httpClient
}

// NewAirLabs creates an AirLabs adapter
func NewAirLabs(cfg AirLabsConfig) *AirLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = AirLabsBaseURL
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	return &AirLabs{
		cfg:    cfg,
		client: newHTTPClient(NameAirLabs, cfg.Timeout, cfg.RequestsPerMinute),
	}
}

func (p *AirLabs) Name() string { return NameAirLabs }

type airLabsError struct {
	Code    string
	Message string
}

// AirLabs returns error either as an object or as a bare string
func (e *airLabsError) UnmarshalJSON(b []byte) error {
	var obj struct {
		Code    interface{} `json:"code"`
		Message string      `json:"message"`
	}
	if err := json.Unmarshal(b, &obj); err == nil {
		if obj.Code != nil {
			e.Code = fmt.Sprint(obj.Code)
		}
		e.Message = obj.Message
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	e.Message = s
	return nil
}

type airLabsEnvelope struct {
	Error    *airLabsError   `json:"error"`
	Response json.RawMessage `json:"response"`
}

type airLabsFlight struct {
	Status          string   `json:"status"`
	DepIATA         string   `json:"dep_iata"`
	ArrIATA         string   `json:"arr_iata"`
	DepScheduled    string   `json:"dep_scheduled"`
	DepTimeUTC      string   `json:"dep_time_utc"`
	DepTime         string   `json:"dep_time"`
	ArrScheduled    string   `json:"arr_scheduled"`
	ArrTimeUTC      string   `json:"arr_time_utc"`
	ArrTime         string   `json:"arr_time"`
	DepEstimatedUTC string   `json:"dep_estimated_utc"`
	DepEstimated    string   `json:"dep_estimated"`
	DepActualUTC    string   `json:"dep_actual_utc"`
	DepActual       string   `json:"dep_actual"`
	ArrEstimatedUTC string   `json:"arr_estimated_utc"`
	ArrEstimated    string   `json:"arr_estimated"`
	ArrActualUTC    string   `json:"arr_actual_utc"`
	ArrActual       string   `json:"arr_actual"`
	AirlineName     string   `json:"airline_name"`
	DepTerminal     string   `json:"dep_terminal"`
	DepGate         string   `json:"dep_gate"`
	ArrTerminal     string   `json:"arr_terminal"`
	ArrGate         string   `json:"arr_gate"`
	Delay           *int     `json:"delay"`
	Hex             string   `json:"hex"`
	Aircraft        string   `json:"aircraft_icao"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	Alt             float64  `json:"alt"`
	Speed           float64  `json:"speed"`
	Dir             float64  `json:"dir"`
	Updated         int64    `json:"updated"`
}

// airLabsRetryAfter derives a cooldown from AirLabs limit codes
func airLabsRetryAfter(code string) time.Duration {
	switch code {
	case "minute_limit_exceeded":
		return time.Minute
	case "hour_limit_exceeded":
		return time.Hour
	case "month_limit_exceeded":
		return 24 * time.Hour
	}
	return 0
}

func airLabsKind(code, message string) Kind {
	c := strings.ToLower(code)
	m := strings.ToLower(message)
	switch {
	case c == "minute_limit_exceeded" || c == "hour_limit_exceeded" || strings.Contains(m, "rate") || strings.Contains(m, "limit"):
		return KindRateLimited
	case c == "month_limit_exceeded" || strings.Contains(m, "quota"):
		return KindQuotaExceeded
	case c == "unknown_api_key" || c == "expired_api_key" || strings.Contains(m, "api key"):
		return KindAuthError
	case c == "wrong_params" || c == "unknown_method":
		return KindBadRequest
	case c == "not_found":
		return KindNoMatch
	}
	return KindProviderError
}

// call runs one AirLabs request and decodes the response member into out.
// It returns false when the response member is empty.
func (p *AirLabs) call(ctx context.Context, endpoint string, params url.Values, out interface{}) (bool, error) {
	params.Set("api_key", p.cfg.APIKey)
	resp, err := p.client.get(ctx, strings.TrimRight(p.cfg.BaseURL, "/")+"/"+endpoint, params, nil)
	if err != nil {
		return false, err
	}

	var body airLabsEnvelope
	decodeErr := json.Unmarshal(resp.body, &body)

	if decodeErr == nil && body.Error != nil {
		e := &Error{
			Provider: NameAirLabs,
			Kind:     airLabsKind(body.Error.Code, body.Error.Message),
			Code:     body.Error.Code,
			Message:  body.Error.Message,
		}
		e.RetryAfter = parseRetryAfter(resp.header.Get("Retry-After"))
		if e.RetryAfter == 0 {
			e.RetryAfter = airLabsRetryAfter(body.Error.Code)
		}
		return false, e
	}
	if resp.status >= 400 {
		return false, p.client.statusError(resp)
	}
	if decodeErr != nil {
		return false, &Error{Provider: NameAirLabs, Kind: KindProviderError, Message: "decode response", Err: decodeErr}
	}

	raw := strings.TrimSpace(string(body.Response))
	if raw == "" || raw == "null" || raw == "[]" || raw == "{}" {
		return false, nil
	}
	if err := json.Unmarshal(body.Response, out); err != nil {
		return false, &Error{Provider: NameAirLabs, Kind: KindProviderError, Message: "decode response", Err: err}
	}
	return true, nil
}

// FetchStatus queries the flight endpoint by IATA flight code
func (p *AirLabs) FetchStatus(ctx context.Context, flight *types.Flight) (*types.StatusPayload, error) {
	if flight.AirlineCode == "" || flight.FlightNumber == "" {
		return nil, NewError(NameAirLabs, KindBadQuery, "airline and number are required")
	}

	var r airLabsFlight
	found, err := p.call(ctx, "flight", url.Values{"flight_iata": {flightIATA(flight)}}, &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, NewError(NameAirLabs, KindNoMatch, flightIATA(flight))
	}

	payload := &types.StatusPayload{
		Provider:     NameAirLabs,
		State:        strings.ToLower(r.Status),
		DepScheduled: firstNonEmpty(r.DepScheduled, r.DepTimeUTC, r.DepTime),
		DepEstimated: firstNonEmpty(r.DepEstimatedUTC, r.DepEstimated),
		DepActual:    firstNonEmpty(r.DepActualUTC, r.DepActual),
		ArrScheduled: firstNonEmpty(r.ArrScheduled, r.ArrTimeUTC, r.ArrTime),
		ArrEstimated: firstNonEmpty(r.ArrEstimatedUTC, r.ArrEstimated),
		ArrActual:    firstNonEmpty(r.ArrActualUTC, r.ArrActual),
		DepIATA:      r.DepIATA,
		ArrIATA:      r.ArrIATA,
		AirlineName:  r.AirlineName,
		TerminalDep:  r.DepTerminal,
		GateDep:      r.DepGate,
		TerminalArr:  r.ArrTerminal,
		GateArr:      r.ArrGate,
		AircraftType: r.Aircraft,
		DelayMinutes: r.Delay,
		ICAO24:       strings.ToLower(strings.TrimSpace(r.Hex)),
	}
	if r.Lat != nil && r.Lng != nil {
		pos := &types.Position{
			Lat:      *r.Lat,
			Lon:      *r.Lng,
			Altitude: r.Alt,
			Speed:    r.Speed,
			Track:    r.Dir,
			Provider: NameAirLabs,
		}
		if r.Updated > 0 {
			pos.Timestamp = time.Unix(r.Updated, 0).UTC().Format(time.RFC3339)
		}
		payload.Position = pos
		payload.PositionProvider = NameAirLabs
	}
	return payload, nil
}
