// Package engine runs one aggregation pass over every itinerary source and
// produces the published flight snapshot.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saviobatista/flightwatch/internal/itinerary"
	"github.com/saviobatista/flightwatch/internal/merge"
	"github.com/saviobatista/flightwatch/internal/stats"
	"github.com/saviobatista/flightwatch/internal/status"
	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// Options configures the pass window and pruning
type Options struct {
	IncludePast time.Duration
	Ahead       time.Duration
	MaxFlights  int
	AutoPrune   bool
	PruneAfter  time.Duration
}

// Ticker refreshes statuses and derives fields; *scheduler.Scheduler
type Ticker interface {
	Tick(ctx context.Context, flights []*types.Flight, now time.Time) ([]*types.Flight, *time.Time)
}

// Enricher fills airport and airline identity; *directory.Directory
type Enricher interface {
	Enrich(ctx context.Context, f *types.Flight)
}

// ManualStore is the part of the manual itinerary the engine writes back to
type ManualStore interface {
	SaveEnrichment(ctx context.Context, f *types.Flight) error
	Remove(ctx context.Context, flightKey string) (bool, error)
}

// Publisher receives every snapshot; *nats.Client and *storage.Archive
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *types.Snapshot) error
}

// Engine wires sources, directory, scheduler and publisher into passes
type Engine struct {
	opts       Options
	sources    []itinerary.Source
	scheduler  Ticker
	directory  Enricher
	manual     ManualStore
	publishers []Publisher
	stats      *stats.Stats

	newID func() string

	mu   sync.Mutex
	last *types.Snapshot
}

// New creates an engine over the given sources
func New(opts Options, sched Ticker, sources ...itinerary.Source) *Engine {
	if opts.MaxFlights < 1 {
		opts.MaxFlights = 50
	}
	if opts.IncludePast < 0 {
		opts.IncludePast = 0
	}
	if opts.PruneAfter < 0 {
		opts.PruneAfter = 0
	}
	return &Engine{
		opts:      opts,
		sources:   sources,
		scheduler: sched,
		newID:     uuid.NewString,
	}
}

// SetDirectory enables identity enrichment
func (e *Engine) SetDirectory(d Enricher) {
	e.directory = d
}

// SetManual enables enrichment write-back and auto-prune
func (e *Engine) SetManual(m ManualStore) {
	e.manual = m
}

// AddPublisher adds a snapshot destination
func (e *Engine) AddPublisher(p Publisher) {
	e.publishers = append(e.publishers, p)
}

// SetStats enables pass counters
func (e *Engine) SetStats(st *stats.Stats) {
	e.stats = st
}

// Last returns the most recent snapshot, or nil before the first pass
func (e *Engine) Last() *types.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Run performs one pass. It fails only when every source failed; per-flight
// problems are logged and the pass continues.
func (e *Engine) Run(ctx context.Context, now time.Time) (*types.Snapshot, error) {
	started := time.Now()
	now = now.UTC()

	start := now.Add(-e.opts.IncludePast)
	end := now.Add(e.opts.Ahead)

	segments, failed := itinerary.Collect(ctx, e.sources, start, end)
	if len(e.sources) > 0 && len(failed) == len(e.sources) {
		if e.stats != nil {
			e.stats.IncrementFailedPasses()
		}
		return nil, fmt.Errorf("failed to read any itinerary source: %v", failed)
	}

	flights := merge.Merge(segments)
	for _, f := range flights {
		f.StatusState = status.NormalizeState(string(f.StatusState), f.Source)
	}

	flights = e.window(flights, start)
	if len(flights) > e.opts.MaxFlights {
		flights = flights[:e.opts.MaxFlights]
	}

	for _, f := range flights {
		e.enrich(ctx, f)
		status.NormalizeLegs(f)
	}

	var nextWake *time.Time
	if e.scheduler != nil {
		flights, nextWake = e.scheduler.Tick(ctx, flights, now)
	}

	for _, f := range flights {
		render(f)
		f.Editable = f.Source == itinerary.SourceManual
	}

	pruned := 0
	if e.opts.AutoPrune && e.manual != nil {
		flights, pruned = e.prune(ctx, flights, now)
	}

	snap := &types.Snapshot{
		PassID:      e.newID(),
		GeneratedAt: now,
		NextWake:    nextWake,
		Flights:     flights,
	}
	if snap.Flights == nil {
		snap.Flights = []*types.Flight{}
	}

	if e.stats != nil {
		e.stats.SetTrackedFlights(uint64(len(snap.Flights)))
		e.stats.AddPrunedFlights(pruned)
		e.stats.IncrementPasses()
		e.stats.RecordPass(time.Now(), time.Since(started), nextWake)
	}

	e.mu.Lock()
	e.last = snap
	e.mu.Unlock()

	for _, p := range e.publishers {
		if err := p.PublishSnapshot(ctx, snap); err != nil {
			log.Printf("Warning: failed to publish snapshot %s: %v", snap.PassID, err)
		}
	}

	return snap, nil
}

// window drops flights whose best departure is before start. Flights
// without a resolvable departure are kept.
func (e *Engine) window(flights []*types.Flight, start time.Time) []*types.Flight {
	kept := flights[:0]
	for _, f := range flights {
		dep, ok := tz.Parse(tz.Normalize(f.Dep.Best(), f.Dep.Airport.TZ))
		if ok && dep.Before(start) {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}

func (e *Engine) enrich(ctx context.Context, f *types.Flight) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: enrichment failed for %s: %v", f.FlightKey, r)
		}
	}()

	if e.directory != nil {
		e.directory.Enrich(ctx, f)
	}
	if e.manual != nil {
		if err := e.manual.SaveEnrichment(ctx, f); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
}

// render fills airport-local timestamps and zone abbreviations
func render(f *types.Flight) {
	for _, leg := range []*types.Leg{&f.Dep, &f.Arr} {
		zone := leg.Airport.TZ
		leg.ScheduledLocal = tz.Local(leg.Scheduled, zone)
		leg.EstimatedLocal = tz.Local(leg.Estimated, zone)
		leg.ActualLocal = tz.Local(leg.Actual, zone)

		at, _ := tz.Parse(leg.Best())
		if short := tz.ShortName(zone, at); short != "" {
			leg.Airport.TZShort = short
		}
	}
}

// prune removes landed or cancelled manual flights whose best arrival lies
// at least PruneAfter in the past
func (e *Engine) prune(ctx context.Context, flights []*types.Flight, now time.Time) ([]*types.Flight, int) {
	cutoff := now.Add(-e.opts.PruneAfter)
	kept := flights[:0]
	pruned := 0

	for _, f := range flights {
		if !prunable(f, cutoff) {
			kept = append(kept, f)
			continue
		}
		ok, err := e.manual.Remove(ctx, f.FlightKey)
		if err != nil {
			log.Printf("Warning: failed to prune %s: %v", f.FlightKey, err)
			kept = append(kept, f)
			continue
		}
		if ok {
			log.Printf("Pruned %s (%s)", f.FlightKey, f.StatusState)
			pruned++
		}
	}
	return kept, pruned
}

func prunable(f *types.Flight, cutoff time.Time) bool {
	if f.Source != itinerary.SourceManual {
		return false
	}
	if f.StatusState != types.StateArrived && f.StatusState != types.StateCancelled {
		return false
	}
	leg := &f.Arr
	if leg.Best() == "" {
		leg = &f.Dep
	}
	at, ok := tz.Parse(leg.Best())
	return ok && !at.After(cutoff)
}
