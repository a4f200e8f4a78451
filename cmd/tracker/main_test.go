package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/saviobatista/flightwatch/internal/config"
	"github.com/saviobatista/flightwatch/internal/db"
	"github.com/saviobatista/flightwatch/internal/directory"
	"github.com/saviobatista/flightwatch/internal/provider"
	"github.com/saviobatista/flightwatch/internal/ratelimit"
	"github.com/saviobatista/flightwatch/internal/stats"
	"github.com/saviobatista/flightwatch/internal/storage"
	"github.com/saviobatista/flightwatch/internal/testutils"
	"github.com/saviobatista/flightwatch/internal/types"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls int
	wake  *time.Time
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, now time.Time) (*types.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &types.Snapshot{PassID: "pass", GeneratedAt: now, NextWake: r.wake, Flights: []*types.Flight{}}, nil
}

func (r *fakeRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestNextDelay(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ptr := func(d time.Duration) *time.Time {
		w := now.Add(d)
		return &w
	}

	tests := []struct {
		name string
		wake *time.Time
		want time.Duration
	}{
		{"no wake", nil, idleDelay},
		{"in the past", ptr(-time.Minute), minDelay},
		{"very soon", ptr(time.Second), minDelay},
		{"normal", ptr(15 * time.Minute), 15 * time.Minute},
		{"far away", ptr(5 * time.Hour), idleDelay},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextDelay(tt.wake, now); got != tt.want {
				t.Errorf("nextDelay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestService_TriggerCoalesces(t *testing.T) {
	svc := NewService(&fakeRunner{})
	svc.Trigger()
	svc.Trigger()
	svc.Trigger()

	if len(svc.trigger) != 1 {
		t.Errorf("Expected one pending trigger, got %d", len(svc.trigger))
	}
}

func TestService_RunPass(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	wake := now.Add(20 * time.Minute)

	runner := &fakeRunner{wake: &wake}
	svc := NewService(runner)
	svc.now = func() time.Time { return now }

	if got := svc.runPass(context.Background()); got != 20*time.Minute {
		t.Errorf("runPass() = %v, want 20m", got)
	}

	runner.err = errors.New("every source failed")
	if got := svc.runPass(context.Background()); got != retryDelay {
		t.Errorf("runPass() after failure = %v, want %v", got, retryDelay)
	}
}

func TestService_RunsOnTrigger(t *testing.T) {
	runner := &fakeRunner{}
	svc := NewService(runner)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	if err := testutils.WaitForCondition(func() bool { return runner.Calls() >= 1 }, 2*time.Second); err != nil {
		t.Fatalf("First pass did not run: %v", err)
	}

	svc.Trigger()
	if err := testutils.WaitForCondition(func() bool { return runner.Calls() >= 2 }, 2*time.Second); err != nil {
		t.Fatalf("Triggered pass did not run: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}

func clearTrackerEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DB_CONN_STR", "REDIS_ADDR", "NATS_URL", "STATUS_PROVIDER", "POSITION_PROVIDER",
		"FR24_API_KEY", "AVIATIONSTACK_ACCESS_KEY", "AIRLABS_API_KEY", "MOCK_FIXTURES",
	} {
		t.Setenv(k, "")
	}
}

func TestParseEnvironment(t *testing.T) {
	t.Run("missing database", func(t *testing.T) {
		clearTrackerEnv(t)
		if _, err := parseEnvironment(); err == nil {
			t.Error("Expected error without DB_CONN_STR")
		}
	})

	t.Run("invalid provider", func(t *testing.T) {
		clearTrackerEnv(t)
		t.Setenv("DB_CONN_STR", "postgres://localhost/flights")
		t.Setenv("STATUS_PROVIDER", "carrier-pigeon")
		if _, err := parseEnvironment(); err == nil {
			t.Error("Expected error for unknown provider")
		}
	})

	t.Run("valid", func(t *testing.T) {
		clearTrackerEnv(t)
		t.Setenv("DB_CONN_STR", "postgres://localhost/flights")
		cfg, err := parseEnvironment()
		if err != nil {
			t.Fatalf("parseEnvironment() error = %v", err)
		}
		if cfg.DBConnStr != "postgres://localhost/flights" {
			t.Errorf("DBConnStr = %q", cfg.DBConnStr)
		}
	})
}

func TestBuildRegistry(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		want []string
	}{
		{
			name: "no credentials",
			cfg:  &config.Config{StatusProvider: "flightradar24"},
			want: nil,
		},
		{
			name: "all keys",
			cfg: &config.Config{
				StatusProvider:         "flightradar24",
				FR24APIKey:             "fr24",
				AviationstackAccessKey: "as",
				AirLabsAPIKey:          "al",
			},
			want: []string{provider.NameFlightradar24, provider.NameAviationstack, provider.NameAirLabs},
		},
		{
			name: "sandbox without sandbox key",
			cfg:  &config.Config{StatusProvider: "fr24", FR24APIKey: "live", FR24UseSandbox: true},
			want: nil,
		},
		{
			name: "mock selected",
			cfg:  &config.Config{StatusProvider: "mock", AirLabsAPIKey: "al"},
			want: []string{provider.NameAirLabs, provider.NameMock},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := buildRegistry(tt.cfg)
			if err != nil {
				t.Fatalf("buildRegistry() error = %v", err)
			}
			got := reg.Names()
			if len(got) != len(tt.want) {
				t.Fatalf("Names() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Names()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildRegistry_MockFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	if err := os.WriteFile(path, []byte(`{"SK926|2026-03-01": {"status_state": "landed"}}`), 0o600); err != nil {
		t.Fatal(err)
	}

	reg, err := buildRegistry(&config.Config{StatusProvider: "flightradar24", MockFixtures: path})
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	p, err := reg.Resolve("mock")
	if err != nil || p.Name() != provider.NameMock {
		t.Errorf("Expected mock provider registered, got %v %v", p, err)
	}

	if _, err := buildRegistry(&config.Config{MockFixtures: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("Expected error for missing fixtures file")
	}
}

func TestBuildDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "airports.dat")
	row := `9999,"Quux Field","Quuxville","Nowhere","QQQ","QQQQ",0,0,0,0,"N","Asia/Tokyo","airport","OurAirports"` + "\n"
	if err := os.WriteFile(path, []byte(row), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		AirportsFile:       path,
		AirportTZOverrides: "ZZZ=Europe/Lisbon",
		DirectoryTTL:       24 * time.Hour,
	}
	dir, err := buildDirectory(cfg, directory.NewMemoryStore(), provider.NewRegistry(), ratelimit.New())
	if err != nil {
		t.Fatalf("buildDirectory() error = %v", err)
	}

	info := dir.Airport(context.Background(), "QQQ")
	if info == nil || info.Name != "Quux Field" || info.TZ != "Asia/Tokyo" {
		t.Errorf("Expected OpenFlights record, got %+v", info)
	}
	if tz := dir.AirportTZ(context.Background(), "ZZZ"); tz != "Europe/Lisbon" {
		t.Errorf("Expected override zone, got %q", tz)
	}

	cfg.AirportsFile = filepath.Join(t.TempDir(), "missing.dat")
	if _, err := buildDirectory(cfg, nil, provider.NewRegistry(), ratelimit.New()); err == nil {
		t.Error("Expected error for missing airports file")
	}
}

func TestCreateClients_InvalidDatabase(t *testing.T) {
	if _, err := createClients(&config.Config{DBConnStr: "invalid://connection"}); err == nil {
		t.Error("Expected error for invalid connection string")
	}
}

func TestSetupEngine_ArchivesSnapshots(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer sqlDB.Close()
	mock.ExpectQuery(`SELECT .* FROM manual_flights\s+WHERE scheduled_departure BETWEEN \$1 AND \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"flight_key"}))

	itineraryPath := filepath.Join(t.TempDir(), "itinerary.json")
	dep := time.Now().UTC().Add(2 * time.Hour).Truncate(time.Minute)
	body := `[{"airline_code":"SK","flight_number":"926","dep":{"airport":{"iata":"CPH"},"scheduled":"` +
		dep.Format(time.RFC3339) + `"},"arr":{"airport":{"iata":"ARN"}}}]`
	if err := os.WriteFile(itineraryPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	archiveDir := t.TempDir()
	archive := storage.New(archiveDir)
	if err := archive.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cfg := &config.Config{
		StatusProvider:    "mock",
		PositionProvider:  "same_as_status",
		StatusTTLMinutes:  5,
		DelayGraceMinutes: 10,
		IncludePastHours:  6,
		DaysAhead:         30,
		MaxFlights:        50,
		DirectoryTTL:      24 * time.Hour,
		ItineraryFile:     itineraryPath,
	}
	c := &clients{db: db.NewWithDB(sqlDB), archive: archive}

	eng, err := setupEngine(cfg, c, stats.New())
	if err != nil {
		t.Fatalf("setupEngine() error = %v", err)
	}
	snap, err := eng.Run(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(snap.Flights) != 1 || snap.Flights[0].Dep.Airport.TZ != "Europe/Copenhagen" {
		t.Errorf("Expected one enriched imported flight, got %+v", snap.Flights)
	}

	if err := archive.Stop(); err != nil {
		t.Fatal(err)
	}
	archived, err := storage.ReadFile(filepath.Join(archiveDir, storage.FileName(time.Now())))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(archived) != 1 || archived[0].PassID != snap.PassID {
		t.Errorf("Expected the pass archived, got %+v", archived)
	}
}
