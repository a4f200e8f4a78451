// Package scheduler decides which tracked flights are due for a provider
// call and derives delay and duration fields on every pass.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/saviobatista/flightwatch/internal/cache"
	"github.com/saviobatista/flightwatch/internal/provider"
	"github.com/saviobatista/flightwatch/internal/ratelimit"
	"github.com/saviobatista/flightwatch/internal/stats"
	"github.com/saviobatista/flightwatch/internal/status"
	"github.com/saviobatista/flightwatch/internal/types"
)

// Options configures a Scheduler
type Options struct {
	StatusProvider   string
	PositionProvider string
	TTLMinutes       int
	GraceMinutes     int
}

// Backfiller writes schedule data learned from a provider back to the
// source of a manually entered flight
type Backfiller interface {
	Backfill(ctx context.Context, flight *types.Flight, payload *types.StatusPayload) error
}

// Scheduler owns the status cache and provider block state across passes
type Scheduler struct {
	opts     Options
	registry *provider.Registry
	blocks   *ratelimit.Tracker
	store    cache.Store
	backfill Backfiller
	stats    *stats.Stats

	// one pass at a time
	mu sync.Mutex
}

// New creates a scheduler
func New(opts Options, registry *provider.Registry, blocks *ratelimit.Tracker, store cache.Store) *Scheduler {
	if opts.TTLMinutes < 1 {
		opts.TTLMinutes = 5
	}
	if opts.GraceMinutes < 0 {
		opts.GraceMinutes = 0
	}
	return &Scheduler{
		opts:     opts,
		registry: registry,
		blocks:   blocks,
		store:    store,
	}
}

// SetBackfiller enables write-back of provider data for manual flights
func (s *Scheduler) SetBackfiller(b Backfiller) {
	s.backfill = b
}

// SetStats enables pass counters
func (s *Scheduler) SetStats(st *stats.Stats) {
	s.stats = st
}

// Blocks exposes the provider block tracker
func (s *Scheduler) Blocks() *ratelimit.Tracker {
	return s.blocks
}

func (s *Scheduler) record(fn func(*stats.Stats)) {
	if s.stats != nil {
		fn(s.stats)
	}
}

type pass struct {
	now        time.Time
	name       string
	statusProv provider.StatusProvider
	posProv    provider.PositionProvider
	wakes      []time.Time
}

func (p *pass) wake(t *time.Time) {
	if t != nil {
		p.wakes = append(p.wakes, *t)
	}
}

func (p *pass) nextWake() *time.Time {
	if len(p.wakes) == 0 {
		return nil
	}
	min := p.wakes[0]
	for _, w := range p.wakes[1:] {
		if w.Before(min) {
			min = w
		}
	}
	return &min
}

// Tick applies cached statuses, refreshes due flights one at a time, and
// recomputes derived fields. It returns the flights (updated in place) and
// the earliest instant at which another pass is needed, or nil.
func (s *Scheduler) Tick(ctx context.Context, flights []*types.Flight, now time.Time) ([]*types.Flight, *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &pass{now: now.UTC(), name: provider.CanonicalName(s.opts.StatusProvider)}

	statusProv, err := s.registry.Resolve(s.opts.StatusProvider)
	if err != nil {
		log.Printf("Warning: status refresh disabled: %v", err)
	} else {
		p.statusProv = statusProv
		p.name = statusProv.Name()
		if pp, ok := s.registry.ResolvePosition(s.opts.PositionProvider, statusProv); ok {
			p.posProv = pp
		}
	}

	entries := make(map[string]*types.CacheEntry, len(flights))
	for _, f := range flights {
		if f == nil || f.FlightKey == "" {
			continue
		}
		entries[f.FlightKey] = s.applyCached(ctx, p, f)
		s.derive(f)
	}

	for _, f := range flights {
		if f == nil || f.FlightKey == "" {
			continue
		}
		entry := entries[f.FlightKey]
		if !s.isDue(ctx, p, f, entry) {
			continue
		}
		s.refresh(ctx, p, f, entry)
	}

	return flights, p.nextWake()
}

// applyCached loads the flight's cache entry, discarding it when it was
// written under a different provider
func (s *Scheduler) applyCached(ctx context.Context, p *pass, f *types.Flight) *types.CacheEntry {
	entry, err := s.store.GetEntry(ctx, f.FlightKey)
	if err != nil {
		log.Printf("Warning: failed to read status cache for %s: %v", f.FlightKey, err)
		return nil
	}
	if entry == nil {
		return nil
	}

	if entry.Provider != p.name {
		if err := s.store.DeleteEntry(ctx, f.FlightKey); err != nil {
			log.Printf("Warning: failed to drop stale status cache for %s: %v", f.FlightKey, err)
		}
		s.record((*stats.Stats).IncrementCacheEvicted)
		return nil
	}

	if entry.Status != nil {
		updated := entry.UpdatedAt
		f.Status = entry.Status
		f.StatusUpdatedAt = &updated
		status.Apply(f, entry.Status)
		s.record((*stats.Stats).IncrementCacheHits)
	}
	return entry
}

func (s *Scheduler) isDue(ctx context.Context, p *pass, f *types.Flight, entry *types.CacheEntry) bool {
	if AgedOut(f, p.now) {
		if entry != nil {
			if err := s.store.DeleteEntry(ctx, f.FlightKey); err != nil {
				log.Printf("Warning: failed to drop status cache for %s: %v", f.FlightKey, err)
			}
			s.record((*stats.Stats).IncrementCacheEvicted)
		}
		return false
	}

	if entry != nil && entry.NextCheck != nil {
		if !p.now.Before(*entry.NextCheck) {
			return true
		}
		p.wake(entry.NextCheck)
		return false
	}

	if ComputeNextRefresh(f, p.now, s.opts.TTLMinutes) == nil {
		p.wake(windowOpens(f, p.now))
		return false
	}
	return true
}

func (s *Scheduler) refresh(ctx context.Context, p *pass, f *types.Flight, entry *types.CacheEntry) {
	var payload *types.StatusPayload
	blocked := false

	if p.statusProv != nil {
		if s.blocks.IsBlocked(p.name) {
			blocked = true
			s.record((*stats.Stats).IncrementSkippedBlocked)
		} else {
			s.record((*stats.Stats).IncrementFetches)
			res, err := p.statusProv.FetchStatus(ctx, f)
			if err != nil {
				s.handleError(p.name, f, err)
			} else {
				payload = res
			}
		}
	}

	var pos *types.Position
	if p.posProv != nil && !s.blocks.IsBlocked(p.posProv.Name()) {
		s.record((*stats.Stats).IncrementPositionCalls)
		res, err := p.posProv.FetchPosition(ctx, f)
		if err != nil {
			s.handleError(p.posProv.Name(), f, err)
		} else {
			pos = res
		}
	}

	if payload != nil {
		if pos != nil {
			payload.Position = pos
			payload.PositionProvider = p.posProv.Name()
		}
		updated := p.now
		f.Status = payload
		f.StatusUpdatedAt = &updated
		status.Apply(f, payload)

		if s.backfill != nil && f.Source == "manual" {
			if err := s.backfill.Backfill(ctx, f, payload); err != nil {
				log.Printf("Warning: failed to backfill manual flight %s: %v", f.FlightKey, err)
			}
		}
	} else if pos != nil {
		f.Position = pos
	}

	s.derive(f)
	s.storeNext(ctx, p, f, entry, payload, blocked)
}

func (s *Scheduler) storeNext(ctx context.Context, p *pass, f *types.Flight, entry *types.CacheEntry, payload *types.StatusPayload, blocked bool) {
	next := &types.CacheEntry{
		FlightKey: f.FlightKey,
		Provider:  p.name,
		Status:    payload,
		UpdatedAt: p.now,
	}
	if payload == nil && entry != nil {
		next.Status = entry.Status
		next.UpdatedAt = entry.UpdatedAt
	}

	interval := ComputeNextRefresh(f, p.now, s.opts.TTLMinutes)
	if interval == nil {
		if AgedOut(f, p.now) || (entry == nil && payload == nil) {
			if entry != nil {
				if err := s.store.DeleteEntry(ctx, f.FlightKey); err != nil {
					log.Printf("Warning: failed to drop status cache for %s: %v", f.FlightKey, err)
				}
				s.record((*stats.Stats).IncrementCacheEvicted)
			}
			return
		}
		p.wake(windowOpens(f, p.now))
	} else {
		at := p.now.Add(*interval)
		if blocked {
			if until := s.blocks.BlockedUntil(p.name); until != nil && until.After(at) {
				at = *until
			}
		}
		next.NextCheck = &at
		p.wake(&at)
	}

	if err := s.store.StoreEntry(ctx, next); err != nil {
		log.Printf("Warning: failed to write status cache for %s: %v", f.FlightKey, err)
	}
}

// handleError turns throttling errors into provider blocks; other failures
// only mean no update for this flight
func (s *Scheduler) handleError(name string, f *types.Flight, err error) {
	var pe *provider.Error
	if errors.As(err, &pe) && pe.Throttled() {
		cooldown := pe.RetryAfter
		if cooldown <= 0 {
			cooldown = ratelimit.DefaultRateLimitCooldown
			if pe.Kind == provider.KindQuotaExceeded {
				cooldown = ratelimit.DefaultQuotaCooldown
			}
		}
		s.blocks.Block(name, int(cooldown.Seconds()), string(pe.Kind))
		s.record((*stats.Stats).IncrementProviderBlocks)
		log.Printf("Warning: provider %s blocked for %s (%s)", name, cooldown, pe.Kind)
		return
	}

	if provider.KindOf(err) == provider.KindNoMatch {
		s.record((*stats.Stats).IncrementNoMatches)
		return
	}
	s.record((*stats.Stats).IncrementFetchErrors)
	log.Printf("Warning: failed to fetch status for %s from %s: %v", f.FlightKey, name, err)
}

func (s *Scheduler) derive(f *types.Flight) {
	f.DelayStatus, f.DelayMinutes = ComputeDelay(f, s.opts.GraceMinutes)
	f.Durations = ComputeDurations(f)
}
