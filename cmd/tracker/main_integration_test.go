package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	natsMod "github.com/testcontainers/testcontainers-go/modules/nats"
	postgresMod "github.com/testcontainers/testcontainers-go/modules/postgres"
	redisMod "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saviobatista/flightwatch/internal/config"
	"github.com/saviobatista/flightwatch/internal/db/migrations"
	"github.com/saviobatista/flightwatch/internal/itinerary"
	"github.com/saviobatista/flightwatch/internal/nats"
	"github.com/saviobatista/flightwatch/internal/provider"
	"github.com/saviobatista/flightwatch/internal/stats"
	"github.com/saviobatista/flightwatch/internal/testutils"
	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

type testContainers struct {
	postgres *postgresMod.PostgresContainer
	redis    *redisMod.RedisContainer
	nats     *natsMod.NATSContainer
}

func (c *testContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if err := c.postgres.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate PostgreSQL container: %v", err)
	}
	if err := c.redis.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate Redis container: %v", err)
	}
	if err := c.nats.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate NATS container: %v", err)
	}
}

func setupTestContainers(t *testing.T) *testContainers {
	ctx := context.Background()

	postgresContainer, err := postgresMod.Run(ctx, "postgres:14-alpine",
		postgresMod.WithDatabase("flightwatch"),
		postgresMod.WithUsername("postgres"),
		postgresMod.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	redisContainer, err := redisMod.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	natsContainer, err := natsMod.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server is ready"),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}

	return &testContainers{
		postgres: postgresContainer,
		redis:    redisContainer,
		nats:     natsContainer,
	}
}

func TestTracker_EndToEnd_Integration(t *testing.T) {
	if testing.Short() || !testutils.IsIntegrationTest() {
		t.Skip("Skipping integration test in short mode")
	}

	containers := setupTestContainers(t)
	defer containers.Terminate(t)
	ctx := context.Background()

	dbConnStr, err := containers.postgres.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get PostgreSQL connection string: %v", err)
	}
	redisURI, err := containers.redis.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get Redis connection string: %v", err)
	}
	natsURL, err := containers.nats.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Minute)
	dep := now.Add(45 * time.Minute)
	fixtures := map[string]provider.MockRecord{
		provider.MockKey("SK", "926", dep.Format("2006-01-02")): {
			StatusState:  "active",
			AircraftType: "A20N",
			Dep:          types.Leg{Estimated: tz.Format(dep.Add(20 * time.Minute)), Gate: "B7"},
		},
	}
	data, _ := json.Marshal(fixtures)
	fixturePath := filepath.Join(t.TempDir(), "fixtures.json")
	if err := os.WriteFile(fixturePath, data, 0o600); err != nil {
		t.Fatal(err)
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
		MockFixtures:      fixturePath,
		DBConnStr:         dbConnStr,
		RedisAddr:         strings.TrimPrefix(redisURI, "redis://"),
		NATSURL:           natsURL,
	}

	c, err := createClients(cfg)
	if err != nil {
		t.Fatalf("createClients() error = %v", err)
	}
	defer c.Close()

	if _, err := migrations.New(c.db.DB()).Migrate(migrations.All); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	st := stats.New()
	st.SetDB(c.db)
	eng, err := setupEngine(cfg, c, st)
	if err != nil {
		t.Fatalf("setupEngine() error = %v", err)
	}

	var (
		mu       sync.Mutex
		received []*types.Snapshot
	)
	sub, err := c.nats.SubscribeSnapshots(func(s *types.Snapshot) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("SubscribeSnapshots() error = %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	svc := NewService(eng)
	if err := setupNATSSubscription(c.nats, svc); err != nil {
		t.Fatalf("setupNATSSubscription() error = %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go svc.Run(runCtx)

	// Adding a flight publishes a change signal which triggers a pass
	manual := itinerary.NewManual(c.db)
	manual.SetNotifier(c.nats)
	key, err := manual.Add(ctx, itinerary.AddRequest{
		AirlineCode:        "SK",
		FlightNumber:       "926",
		DepAirport:         "CPH",
		ArrAirport:         "ARN",
		ScheduledDeparture: tz.Format(dep),
		Travellers:         []string{"Ana"},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	var flight *types.Flight
	err = testutils.WaitForCondition(func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range received {
			for _, f := range s.Flights {
				if f.FlightKey == key && f.Status != nil {
					flight = f
					return true
				}
			}
		}
		return false
	}, 20*time.Second)
	if err != nil {
		t.Fatalf("No snapshot with refreshed %s: %v", key, err)
	}

	if flight.StatusState != types.StateEnRoute {
		t.Errorf("StatusState = %q, want %q", flight.StatusState, types.StateEnRoute)
	}
	if flight.DelayStatus != types.DelayDelayed || flight.DelayMinutes == nil || *flight.DelayMinutes != 20 {
		t.Errorf("Delay = %q %v, want delayed 20", flight.DelayStatus, flight.DelayMinutes)
	}
	if flight.Dep.Gate != "B7" || flight.AircraftType != "A20N" {
		t.Errorf("Expected provider details merged, got gate %q aircraft %q", flight.Dep.Gate, flight.AircraftType)
	}
	if !flight.Editable || flight.Dep.Airport.TZ != "Europe/Copenhagen" {
		t.Errorf("Expected editable flight with CPH zone, got %+v", flight)
	}

	entry, err := c.redis.GetEntry(ctx, key)
	if err != nil || entry == nil || entry.Provider != provider.NameMock || entry.NextCheck == nil {
		t.Errorf("Expected cached mock status with next check, got %+v (%v)", entry, err)
	}

	stored, err := c.db.GetManualFlight(ctx, key)
	if err != nil || stored == nil || stored.DepAirportTZ != "Europe/Copenhagen" {
		t.Errorf("Expected directory enrichment saved to store, got %+v (%v)", stored, err)
	}

	if err := st.Persist(); err != nil {
		t.Errorf("Persist() error = %v", err)
	}
}

func TestTracker_ChangeSignalTriggersPass_Integration(t *testing.T) {
	if testing.Short() || !testutils.IsIntegrationTest() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := natsMod.Run(ctx, "nats:2.9-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Server is ready")),
	)
	if err != nil {
		t.Fatalf("Failed to start NATS container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate NATS container: %v", err)
		}
	}()

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get NATS connection string: %v", err)
	}
	client, err := nats.New(url)
	if err != nil {
		t.Fatalf("nats.New() error = %v", err)
	}
	defer client.Close()

	runner := &fakeRunner{}
	svc := NewService(runner)
	if err := setupNATSSubscription(client, svc); err != nil {
		t.Fatalf("setupNATSSubscription() error = %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go svc.Run(runCtx)

	if err := testutils.WaitForCondition(func() bool { return runner.Calls() >= 1 }, 5*time.Second); err != nil {
		t.Fatalf("Initial pass did not run: %v", err)
	}
	if err := client.PublishChanged(ctx, ""); err != nil {
		t.Fatalf("PublishChanged() error = %v", err)
	}
	if err := testutils.WaitForCondition(func() bool { return runner.Calls() >= 2 }, 5*time.Second); err != nil {
		t.Fatalf("Change signal did not trigger a pass: %v", err)
	}
}
