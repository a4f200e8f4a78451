package config

import (
	"testing"
	"time"
)

var configKeys = []string{
	"STATUS_PROVIDER", "POSITION_PROVIDER", "STATUS_TTL_MINUTES", "DELAY_GRACE_MINUTES",
	"INCLUDE_PAST_HOURS", "DAYS_AHEAD", "MAX_FLIGHTS", "AUTO_PRUNE_LANDED", "PRUNE_LANDED_HOURS",
	"DIRECTORY_TTL_DAYS", "AIRPORT_TZ_OVERRIDES", "OPENFLIGHTS_AIRPORTS", "ITINERARY_FILE",
	"FR24_API_KEY", "FR24_SANDBOX_KEY", "FR24_USE_SANDBOX", "FR24_API_VERSION",
	"AVIATIONSTACK_ACCESS_KEY", "AIRLABS_API_KEY", "MOCK_FIXTURES", "PROVIDER_REQUESTS_PER_MINUTE",
	"DB_CONN_STR", "REDIS_ADDR", "NATS_URL", "STATS_INTERVAL_SECONDS", "SNAPSHOT_DIR",
}

// clearEnv blanks every config key for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.StatusProvider != "flightradar24" || cfg.PositionProvider != "same_as_status" {
		t.Errorf("Unexpected providers %q %q", cfg.StatusProvider, cfg.PositionProvider)
	}
	checks := []struct {
		name      string
		got, want int
	}{
		{"StatusTTLMinutes", cfg.StatusTTLMinutes, 5},
		{"DelayGraceMinutes", cfg.DelayGraceMinutes, 10},
		{"IncludePastHours", cfg.IncludePastHours, 6},
		{"DaysAhead", cfg.DaysAhead, 30},
		{"MaxFlights", cfg.MaxFlights, 50},
		{"PruneLandedHours", cfg.PruneLandedHours, 0},
		{"RequestsPerMinute", cfg.RequestsPerMinute, 30},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("Expected %s = %d, got %d", c.name, c.want, c.got)
		}
	}
	if cfg.AutoPruneLanded {
		t.Error("Expected auto-prune off by default")
	}
	if cfg.DirectoryTTL != 180*24*time.Hour {
		t.Errorf("Expected 180 day directory TTL, got %v", cfg.DirectoryTTL)
	}
	if cfg.FR24APIVersion != "v1" {
		t.Errorf("Expected FR24 v1, got %q", cfg.FR24APIVersion)
	}
	if cfg.StatsInterval != 5*time.Minute {
		t.Errorf("Expected 5m stats interval, got %v", cfg.StatsInterval)
	}
	if cfg.PastWindow() != 6*time.Hour || cfg.FutureWindow() != 30*24*time.Hour {
		t.Errorf("Unexpected windows %v %v", cfg.PastWindow(), cfg.FutureWindow())
	}
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATUS_PROVIDER", "AirLabs")
	t.Setenv("POSITION_PROVIDER", "flightradar24")
	t.Setenv("STATUS_TTL_MINUTES", "15")
	t.Setenv("MAX_FLIGHTS", "5")
	t.Setenv("AUTO_PRUNE_LANDED", "on")
	t.Setenv("PRUNE_LANDED_HOURS", "12")
	t.Setenv("FR24_API_KEY", " live ")
	t.Setenv("FR24_SANDBOX_KEY", "sandbox")
	t.Setenv("FR24_USE_SANDBOX", "true")
	t.Setenv("DB_CONN_STR", "postgres://localhost/flights")
	t.Setenv("NATS_URL", "nats://localhost:4222")
	t.Setenv("SNAPSHOT_DIR", "/var/lib/flightwatch/snapshots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.StatusProvider != "airlabs" || cfg.PositionProvider != "flightradar24" {
		t.Errorf("Unexpected providers %q %q", cfg.StatusProvider, cfg.PositionProvider)
	}
	if cfg.StatusTTLMinutes != 15 || cfg.MaxFlights != 5 || cfg.PruneLandedHours != 12 {
		t.Errorf("Unexpected ints %+v", cfg)
	}
	if !cfg.AutoPruneLanded {
		t.Error("Expected auto-prune enabled")
	}
	if cfg.FR24APIKey != "live" || cfg.FR24Key() != "sandbox" {
		t.Errorf("Expected sandbox key selected, got %q", cfg.FR24Key())
	}
	if cfg.DBConnStr != "postgres://localhost/flights" || cfg.NATSURL != "nats://localhost:4222" {
		t.Errorf("Unexpected connection settings %+v", cfg)
	}
	if cfg.SnapshotDir != "/var/lib/flightwatch/snapshots" {
		t.Errorf("SnapshotDir = %q", cfg.SnapshotDir)
	}
}

func TestLoad_InvalidIntegersFallBack(t *testing.T) {
	tests := []struct {
		key   string
		value string
		get   func(*Config) int
		want  int
	}{
		{"STATUS_TTL_MINUTES", "abc", func(c *Config) int { return c.StatusTTLMinutes }, 5},
		{"STATUS_TTL_MINUTES", "0", func(c *Config) int { return c.StatusTTLMinutes }, 5},
		{"DELAY_GRACE_MINUTES", "-3", func(c *Config) int { return c.DelayGraceMinutes }, 10},
		{"DAYS_AHEAD", "1.5", func(c *Config) int { return c.DaysAhead }, 30},
		{"MAX_FLIGHTS", "0", func(c *Config) int { return c.MaxFlights }, 50},
		{"INCLUDE_PAST_HOURS", "0", func(c *Config) int { return c.IncludePastHours }, 0},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if got := tt.get(cfg); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestLoad_UnknownProvider(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STATUS_PROVIDER", "opensky"},
		{"POSITION_PROVIDER", "radar"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			if err == nil {
				t.Fatal("Load() should have failed")
			}
			if cfg != nil {
				t.Error("Load() should have returned nil config")
			}
		})
	}
}

func TestEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"1", false, true},
		{"false", true, false},
		{"yes", false, true},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("FLIGHTWATCH_TEST_BOOL", tt.value)
		if got := envBool("FLIGHTWATCH_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("envBool(%q, %t) = %t, want %t", tt.value, tt.def, got, tt.want)
		}
	}
}
