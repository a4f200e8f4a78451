package directory

import (
	"strings"

	"github.com/saviobatista/flightwatch/internal/types"
)

// SourceStatic tags records served from the built-in table
const SourceStatic = "static"

var defaultAirportTZ = map[string]string{
	"DEL": "Asia/Kolkata",
	"BOM": "Asia/Kolkata",
	"BLR": "Asia/Kolkata",
	"MAA": "Asia/Kolkata",
	"HYD": "Asia/Kolkata",
	"CCU": "Asia/Kolkata",
	"AMD": "Asia/Kolkata",

	"CPH": "Europe/Copenhagen",
	"ARN": "Europe/Stockholm",
	"GOT": "Europe/Stockholm",
	"OSL": "Europe/Oslo",
	"HEL": "Europe/Helsinki",
	"FRA": "Europe/Berlin",
	"MUC": "Europe/Berlin",
	"LHR": "Europe/London",
	"LGW": "Europe/London",
	"MAD": "Europe/Madrid",
	"BCN": "Europe/Madrid",
	"AGP": "Europe/Madrid",
	"CDG": "Europe/Paris",
	"AMS": "Europe/Amsterdam",
	"ZRH": "Europe/Zurich",

	"LAX": "America/Los_Angeles",
	"ATL": "America/New_York",
	"BOS": "America/New_York",
	"ORD": "America/Chicago",

	"CAN": "Asia/Shanghai",
	"DXB": "Asia/Dubai",
}

var defaultAirportInfo = map[string]types.AirportInfo{
	"CDG": {Name: "Paris Charles de Gaulle Airport", City: "Paris", TZ: "Europe/Paris"},
	"CPH": {Name: "Copenhagen Airport", City: "Copenhagen", TZ: "Europe/Copenhagen"},
	"AGP": {Name: "Malaga Airport", City: "Malaga", TZ: "Europe/Madrid"},
	"ATL": {Name: "Hartsfield-Jackson Atlanta International Airport", City: "Atlanta", TZ: "America/New_York"},
	"ORD": {Name: "Chicago O'Hare International Airport", City: "Chicago", TZ: "America/Chicago"},
	"BOS": {Name: "Logan International Airport", City: "Boston", TZ: "America/New_York"},
	"CAN": {Name: "Guangzhou Baiyun International Airport", City: "Guangzhou", TZ: "Asia/Shanghai"},
	"DXB": {Name: "Dubai International Airport", City: "Dubai", TZ: "Asia/Dubai"},
}

// Static serves the built-in airport table plus user timezone overrides
type Static struct {
	overrides map[string]string
}

// NewStatic creates a static table. Override keys are IATA codes.
func NewStatic(overrides map[string]string) *Static {
	clean := make(map[string]string, len(overrides))
	for k, v := range overrides {
		code := normalizeCode(k)
		if code != "" && strings.TrimSpace(v) != "" {
			clean[code] = strings.TrimSpace(v)
		}
	}
	return &Static{overrides: clean}
}

// ParseOverrides reads "CPH=Europe/Copenhagen,DEL=Asia/Kolkata"
func ParseOverrides(raw string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		code := normalizeCode(k)
		zone := strings.TrimSpace(v)
		if code != "" && zone != "" {
			out[code] = zone
		}
	}
	return out
}

// TZ returns the IANA zone for iata; overrides win over the built-in table
func (s *Static) TZ(iata string) string {
	code := normalizeCode(iata)
	if code == "" {
		return ""
	}
	if s != nil {
		if tz, ok := s.overrides[code]; ok {
			return tz
		}
	}
	return defaultAirportTZ[code]
}

// Airport returns what the static table knows about iata, or nil
func (s *Static) Airport(iata string) *types.AirportInfo {
	code := normalizeCode(iata)
	if code == "" {
		return nil
	}

	info, ok := defaultAirportInfo[code]
	tz := s.TZ(code)
	if !ok && tz == "" {
		return nil
	}
	info.IATA = code
	info.Source = SourceStatic
	if tz != "" {
		info.TZ = tz
	}
	return &info
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
