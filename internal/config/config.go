package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults
const (
	DefaultStatusProvider    = "flightradar24"
	DefaultPositionProvider  = "same_as_status"
	DefaultStatusTTLMinutes  = 5
	DefaultDelayGraceMinutes = 10
	DefaultIncludePastHours  = 6
	DefaultDaysAhead         = 30
	DefaultMaxFlights        = 50
	DefaultDirectoryTTLDays  = 180
	DefaultFR24APIVersion    = "v1"
	DefaultRequestsPerMinute = 30
	DefaultStatsInterval     = 5 * time.Minute
)

var knownProviders = map[string]bool{
	"flightradar24": true,
	"fr24":          true,
	"aviationstack": true,
	"airlabs":       true,
	"mock":          true,
}

// Config holds the application configuration
type Config struct {
	StatusProvider   string
	PositionProvider string

	StatusTTLMinutes  int
	DelayGraceMinutes int
	IncludePastHours  int
	DaysAhead         int
	MaxFlights        int
	AutoPruneLanded   bool
	PruneLandedHours  int

	DirectoryTTL       time.Duration
	AirportTZOverrides string
	AirportsFile       string
	ItineraryFile      string

	FR24APIKey             string
	FR24SandboxKey         string
	FR24UseSandbox         bool
	FR24APIVersion         string
	AviationstackAccessKey string
	AirLabsAPIKey          string
	MockFixtures           string
	RequestsPerMinute      int

	DBConnStr     string
	RedisAddr     string
	NATSURL       string
	StatsInterval time.Duration
	SnapshotDir   string
}

// Load loads the configuration from environment variables and .env file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		StatusProvider:   strings.ToLower(envString("STATUS_PROVIDER", DefaultStatusProvider)),
		PositionProvider: strings.ToLower(envString("POSITION_PROVIDER", DefaultPositionProvider)),

		StatusTTLMinutes:  envInt("STATUS_TTL_MINUTES", DefaultStatusTTLMinutes, 1),
		DelayGraceMinutes: envInt("DELAY_GRACE_MINUTES", DefaultDelayGraceMinutes, 0),
		IncludePastHours:  envInt("INCLUDE_PAST_HOURS", DefaultIncludePastHours, 0),
		DaysAhead:         envInt("DAYS_AHEAD", DefaultDaysAhead, 1),
		MaxFlights:        envInt("MAX_FLIGHTS", DefaultMaxFlights, 1),
		AutoPruneLanded:   envBool("AUTO_PRUNE_LANDED", false),
		PruneLandedHours:  envInt("PRUNE_LANDED_HOURS", 0, 0),

		DirectoryTTL:       time.Duration(envInt("DIRECTORY_TTL_DAYS", DefaultDirectoryTTLDays, 1)) * 24 * time.Hour,
		AirportTZOverrides: os.Getenv("AIRPORT_TZ_OVERRIDES"),
		AirportsFile:       os.Getenv("OPENFLIGHTS_AIRPORTS"),
		ItineraryFile:      os.Getenv("ITINERARY_FILE"),

		FR24APIKey:             strings.TrimSpace(os.Getenv("FR24_API_KEY")),
		FR24SandboxKey:         strings.TrimSpace(os.Getenv("FR24_SANDBOX_KEY")),
		FR24UseSandbox:         envBool("FR24_USE_SANDBOX", false),
		FR24APIVersion:         envString("FR24_API_VERSION", DefaultFR24APIVersion),
		AviationstackAccessKey: strings.TrimSpace(os.Getenv("AVIATIONSTACK_ACCESS_KEY")),
		AirLabsAPIKey:          strings.TrimSpace(os.Getenv("AIRLABS_API_KEY")),
		MockFixtures:           os.Getenv("MOCK_FIXTURES"),
		RequestsPerMinute:      envInt("PROVIDER_REQUESTS_PER_MINUTE", DefaultRequestsPerMinute, 0),

		DBConnStr:     os.Getenv("DB_CONN_STR"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		NATSURL:       os.Getenv("NATS_URL"),
		StatsInterval: time.Duration(envInt("STATS_INTERVAL_SECONDS", int(DefaultStatsInterval.Seconds()), 1)) * time.Second,
		SnapshotDir:   os.Getenv("SNAPSHOT_DIR"),
	}

	if !knownProviders[cfg.StatusProvider] {
		return nil, fmt.Errorf("unknown STATUS_PROVIDER %q", cfg.StatusProvider)
	}
	switch cfg.PositionProvider {
	case "same_as_status", "none":
	default:
		if !knownProviders[cfg.PositionProvider] {
			return nil, fmt.Errorf("unknown POSITION_PROVIDER %q", cfg.PositionProvider)
		}
	}

	return cfg, nil
}

// FR24Key returns the key matching the selected FR24 environment
func (c *Config) FR24Key() string {
	if c.FR24UseSandbox {
		return c.FR24SandboxKey
	}
	return c.FR24APIKey
}

// PastWindow is how far back a departure may lie and still be tracked
func (c *Config) PastWindow() time.Duration {
	return time.Duration(c.IncludePastHours) * time.Hour
}

// FutureWindow is how far ahead departures are tracked
func (c *Config) FutureWindow() time.Duration {
	return time.Duration(c.DaysAhead) * 24 * time.Hour
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envInt reads an integer, falling back to def when unset, malformed or
// below min
func envInt(key string, def, min int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		log.Printf("Warning: invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		switch strings.ToLower(raw) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
		log.Printf("Warning: invalid %s=%q, using %t", key, raw, def)
		return def
	}
	return v
}
