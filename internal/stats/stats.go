package stats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Persister stores a statistics snapshot
type Persister interface {
	StorePassStats(stats map[string]interface{}) error
}

// Stats tracks aggregation pass statistics
type Stats struct {
	// Pass counts
	Passes       uint64
	FailedPasses uint64

	// Provider traffic
	Fetches        uint64
	FetchErrors    uint64
	NoMatches      uint64
	SkippedBlocked uint64
	ProviderBlocks uint64
	PositionCalls  uint64

	// Cache
	CacheHits    uint64
	CacheEvicted uint64

	// Working set
	TrackedFlights uint64
	PrunedFlights  uint64

	// Timing
	StartedAt    time.Time
	LastPassTime time.Time
	PassDuration time.Duration
	NextWake     *time.Time

	db Persister

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	return &Stats{
		StartedAt: time.Now(),
	}
}

// SetDB sets the persister for periodic snapshots
func (s *Stats) SetDB(db Persister) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

// Persist stores the current statistics in the database
func (s *Stats) Persist() error {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("database client not set")
	}

	return db.StorePassStats(s.GetStats())
}

// IncrementPasses increments the completed passes counter
func (s *Stats) IncrementPasses() {
	atomic.AddUint64(&s.Passes, 1)
}

// IncrementFailedPasses increments the failed passes counter
func (s *Stats) IncrementFailedPasses() {
	atomic.AddUint64(&s.FailedPasses, 1)
}

// IncrementFetches increments the provider fetch counter
func (s *Stats) IncrementFetches() {
	atomic.AddUint64(&s.Fetches, 1)
}

// IncrementFetchErrors increments the failed fetch counter
func (s *Stats) IncrementFetchErrors() {
	atomic.AddUint64(&s.FetchErrors, 1)
}

// IncrementNoMatches increments the counter of fetches that found nothing
func (s *Stats) IncrementNoMatches() {
	atomic.AddUint64(&s.NoMatches, 1)
}

// IncrementSkippedBlocked increments the counter of fetches skipped by a provider block
func (s *Stats) IncrementSkippedBlocked() {
	atomic.AddUint64(&s.SkippedBlocked, 1)
}

// IncrementProviderBlocks increments the counter of blocks placed on providers
func (s *Stats) IncrementProviderBlocks() {
	atomic.AddUint64(&s.ProviderBlocks, 1)
}

// IncrementPositionCalls increments the dedicated position lookup counter
func (s *Stats) IncrementPositionCalls() {
	atomic.AddUint64(&s.PositionCalls, 1)
}

// IncrementCacheHits increments the counter of flights served from cache
func (s *Stats) IncrementCacheHits() {
	atomic.AddUint64(&s.CacheHits, 1)
}

// IncrementCacheEvicted increments the counter of dropped cache entries
func (s *Stats) IncrementCacheEvicted() {
	atomic.AddUint64(&s.CacheEvicted, 1)
}

// AddPrunedFlights adds to the auto-pruned flights counter
func (s *Stats) AddPrunedFlights(n int) {
	if n > 0 {
		atomic.AddUint64(&s.PrunedFlights, uint64(n))
	}
}

// SetTrackedFlights sets the size of the current working set
func (s *Stats) SetTrackedFlights(count uint64) {
	atomic.StoreUint64(&s.TrackedFlights, count)
}

// RecordPass records timing of a finished pass and its wake time
func (s *Stats) RecordPass(finished time.Time, duration time.Duration, nextWake *time.Time) {
	s.mu.Lock()
	s.LastPassTime = finished
	s.PassDuration += duration
	if nextWake != nil {
		w := *nextWake
		s.NextWake = &w
	} else {
		s.NextWake = nil
	}
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var nextWake interface{}
	if s.NextWake != nil {
		nextWake = *s.NextWake
	}

	return map[string]interface{}{
		"passes":          atomic.LoadUint64(&s.Passes),
		"failed_passes":   atomic.LoadUint64(&s.FailedPasses),
		"fetches":         atomic.LoadUint64(&s.Fetches),
		"fetch_errors":    atomic.LoadUint64(&s.FetchErrors),
		"no_matches":      atomic.LoadUint64(&s.NoMatches),
		"skipped_blocked": atomic.LoadUint64(&s.SkippedBlocked),
		"provider_blocks": atomic.LoadUint64(&s.ProviderBlocks),
		"position_calls":  atomic.LoadUint64(&s.PositionCalls),
		"cache_hits":      atomic.LoadUint64(&s.CacheHits),
		"cache_evicted":   atomic.LoadUint64(&s.CacheEvicted),
		"tracked_flights": atomic.LoadUint64(&s.TrackedFlights),
		"pruned_flights":  atomic.LoadUint64(&s.PrunedFlights),
		"last_pass_time":  s.LastPassTime,
		"pass_duration":   s.PassDuration,
		"next_wake":       nextWake,
		"uptime":          time.Since(s.StartedAt),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Passes: %d (failed %d)\n"+
			"Fetches: %d (errors %d, no match %d)\n"+
			"Skipped (blocked): %d\n"+
			"Provider Blocks: %d\n"+
			"Cache Hits: %d\n"+
			"Tracked Flights: %d\n"+
			"Last Pass Time: %s\n"+
			"Next Wake: %v\n"+
			"Uptime: %s",
		stats["passes"], stats["failed_passes"],
		stats["fetches"], stats["fetch_errors"], stats["no_matches"],
		stats["skipped_blocked"],
		stats["provider_blocks"],
		stats["cache_hits"],
		stats["tracked_flights"],
		stats["last_pass_time"],
		stats["next_wake"],
		stats["uptime"],
	)
}

// StartPersistence starts periodic persistence of statistics
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final persistence before shutdown
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist final statistics: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist statistics: %v", err)
			}
		}
	}
}
