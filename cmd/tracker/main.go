package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saviobatista/flightwatch/internal/cache"
	"github.com/saviobatista/flightwatch/internal/config"
	"github.com/saviobatista/flightwatch/internal/db"
	"github.com/saviobatista/flightwatch/internal/directory"
	"github.com/saviobatista/flightwatch/internal/engine"
	"github.com/saviobatista/flightwatch/internal/itinerary"
	"github.com/saviobatista/flightwatch/internal/nats"
	"github.com/saviobatista/flightwatch/internal/provider"
	"github.com/saviobatista/flightwatch/internal/ratelimit"
	"github.com/saviobatista/flightwatch/internal/redis"
	"github.com/saviobatista/flightwatch/internal/scheduler"
	"github.com/saviobatista/flightwatch/internal/stats"
	"github.com/saviobatista/flightwatch/internal/storage"
)

const providerTimeout = 15 * time.Second

// parseEnvironment loads configuration and checks what the tracker needs
func parseEnvironment() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.DBConnStr == "" {
		return nil, fmt.Errorf("DB_CONN_STR is required")
	}
	return cfg, nil
}

// clients holds the external connections. Redis, NATS and the snapshot
// archive are optional.
type clients struct {
	db      *db.Client
	redis   *redis.Client
	nats    *nats.Client
	archive *storage.Archive
}

func (c *clients) Close() {
	if c.archive != nil {
		if err := c.archive.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing snapshot archive: %v\n", err)
		}
	}
	if c.nats != nil {
		c.nats.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
		}
	}
}

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*clients, error) {
	c := &clients{}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create database client: %w", err)
	}
	c.db = dbClient

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbClient.Ping(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.RedisAddr != "" {
		redisClient, err := redis.New(cfg.RedisAddr)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create Redis client: %w", err)
		}
		c.redis = redisClient
	} else {
		log.Println("Warning: REDIS_ADDR not set, status cache is in memory")
	}

	if cfg.NATSURL != "" {
		natsClient, err := nats.New(cfg.NATSURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create NATS client: %w", err)
		}
		c.nats = natsClient
	} else {
		log.Println("Warning: NATS_URL not set, snapshots are not published")
	}

	if cfg.SnapshotDir != "" {
		archive := storage.New(cfg.SnapshotDir)
		if err := archive.Start(); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to start snapshot archive: %w", err)
		}
		c.archive = archive
	}

	return c, nil
}

// buildRegistry registers every provider that has credentials
func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	reg := provider.NewRegistry()

	if key := cfg.FR24Key(); key != "" {
		reg.Register(provider.NewFlightradar24(provider.Flightradar24Config{
			APIKey:            key,
			UseSandbox:        cfg.FR24UseSandbox,
			APIVersion:        cfg.FR24APIVersion,
			Timeout:           providerTimeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}))
	}
	if cfg.AviationstackAccessKey != "" {
		reg.Register(provider.NewAviationstack(provider.AviationstackConfig{
			AccessKey:         cfg.AviationstackAccessKey,
			Timeout:           providerTimeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}))
	}
	if cfg.AirLabsAPIKey != "" {
		reg.Register(provider.NewAirLabs(provider.AirLabsConfig{
			APIKey:            cfg.AirLabsAPIKey,
			Timeout:           providerTimeout,
			RequestsPerMinute: cfg.RequestsPerMinute,
		}))
	}

	switch {
	case cfg.MockFixtures != "":
		mock, err := provider.LoadMock(cfg.MockFixtures)
		if err != nil {
			return nil, err
		}
		reg.Register(mock)
	case provider.CanonicalName(cfg.StatusProvider) == provider.NameMock:
		reg.Register(provider.NewMock(nil))
	}

	if len(reg.Names()) == 0 {
		log.Println("Warning: no status provider configured, flights will not be refreshed")
	} else {
		log.Printf("Status providers: %v", reg.Names())
	}
	return reg, nil
}

// buildDirectory chains the static table, OpenFlights and provider lookups
func buildDirectory(cfg *config.Config, store directory.Store, reg *provider.Registry, blocks *ratelimit.Tracker) (*directory.Directory, error) {
	dir := directory.New(directory.NewStatic(directory.ParseOverrides(cfg.AirportTZOverrides)), store, cfg.DirectoryTTL)
	dir.SetBlocks(blocks)

	if cfg.AirportsFile != "" {
		of, err := directory.LoadOpenFlights(cfg.AirportsFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded %d airports from %s", of.Len(), cfg.AirportsFile)
		dir.AddAirportSource(of)
	}

	for _, name := range reg.Names() {
		p, err := reg.Resolve(name)
		if err != nil {
			continue
		}
		if src, ok := p.(directory.AirportSource); ok {
			dir.AddAirportSource(src)
		}
		if src, ok := p.(directory.AirlineSource); ok {
			dir.AddAirlineSource(src)
		}
	}
	return dir, nil
}

// setupEngine wires sources, directory, scheduler and stats into an engine
func setupEngine(cfg *config.Config, c *clients, st *stats.Stats) (*engine.Engine, error) {
	reg, err := buildRegistry(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure providers: %w", err)
	}
	blocks := ratelimit.New()

	var statusCache cache.Store = cache.NewMemory()
	var dirStore directory.Store = directory.NewMemoryStore()
	if c.redis != nil {
		statusCache = c.redis
		dirStore = c.redis
	}

	dir, err := buildDirectory(cfg, dirStore, reg, blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to configure directory: %w", err)
	}

	manual := itinerary.NewManual(c.db)
	manual.SetTZResolver(dir)
	if c.nats != nil {
		manual.SetNotifier(c.nats)
	}

	sources := []itinerary.Source{manual}
	if cfg.ItineraryFile != "" {
		file, err := itinerary.LoadFile(cfg.ItineraryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load itinerary file: %w", err)
		}
		sources = append(sources, file)
	}

	sched := scheduler.New(scheduler.Options{
		StatusProvider:   cfg.StatusProvider,
		PositionProvider: cfg.PositionProvider,
		TTLMinutes:       cfg.StatusTTLMinutes,
		GraceMinutes:     cfg.DelayGraceMinutes,
	}, reg, blocks, statusCache)
	sched.SetBackfiller(manual)
	sched.SetStats(st)

	eng := engine.New(engine.Options{
		IncludePast: cfg.PastWindow(),
		Ahead:       cfg.FutureWindow(),
		MaxFlights:  cfg.MaxFlights,
		AutoPrune:   cfg.AutoPruneLanded,
		PruneAfter:  time.Duration(cfg.PruneLandedHours) * time.Hour,
	}, sched, sources...)
	eng.SetDirectory(dir)
	eng.SetManual(manual)
	eng.SetStats(st)
	if c.nats != nil {
		eng.AddPublisher(c.nats)
	}
	if c.archive != nil {
		eng.AddPublisher(c.archive)
	}
	return eng, nil
}

// setupNATSSubscription re-runs a pass whenever the flight list changes
func setupNATSSubscription(natsClient *nats.Client, svc *Service) error {
	if _, err := natsClient.SubscribeChanged(func(ev nats.ChangeEvent) {
		if ev.FlightKey != "" {
			log.Printf("Change signal for %s", ev.FlightKey)
		}
		svc.Trigger()
	}); err != nil {
		return fmt.Errorf("failed to subscribe to change signals: %w", err)
	}
	return nil
}

// logStats periodically logs statistics
func logStats(ctx context.Context, st *stats.Stats) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", st)
		}
	}
}

// waitForShutdown waits for shutdown signals and handles cleanup
func waitForShutdown(cancel context.CancelFunc, c *clients) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	// let the final stats persistence run before the database goes away
	time.Sleep(500 * time.Millisecond)
	c.Close()
}

func main() {
	cfg, err := parseEnvironment()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	c, err := createClients(cfg)
	if err != nil {
		log.Printf("Failed to create clients: %v", err)
		os.Exit(1)
	}

	st := stats.New()
	st.SetDB(c.db)

	eng, err := setupEngine(cfg, c, st)
	if err != nil {
		log.Printf("Failed to setup engine: %v", err)
		c.Close()
		os.Exit(1)
	}

	svc := NewService(eng)
	if c.nats != nil {
		if err := setupNATSSubscription(c.nats, svc); err != nil {
			log.Printf("Failed to setup NATS subscription: %v", err)
			c.Close()
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go logStats(ctx, st)
	go st.StartPersistence(ctx, cfg.StatsInterval)
	go svc.Run(ctx)

	waitForShutdown(cancel, c)
}
