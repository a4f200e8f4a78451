package main

import (
	"context"
	"log"
	"time"

	"github.com/saviobatista/flightwatch/internal/types"
)

// Pass timing
const (
	idleDelay  = time.Hour
	minDelay   = 5 * time.Second
	retryDelay = time.Minute
)

// PassRunner runs one aggregation pass; *engine.Engine
type PassRunner interface {
	Run(ctx context.Context, now time.Time) (*types.Snapshot, error)
}

// Service re-runs passes at the scheduler's wake time or when triggered
type Service struct {
	runner  PassRunner
	trigger chan struct{}
	now     func() time.Time
}

// NewService creates a service around runner
func NewService(runner PassRunner) *Service {
	return &Service{
		runner:  runner,
		trigger: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Trigger requests an immediate pass. Requests made while one is pending
// are coalesced.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled
func (s *Service) Run(ctx context.Context) {
	for {
		delay := s.runPass(ctx)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.trigger:
			timer.Stop()
			log.Println("Flights changed, running pass")
		}
	}
}

// runPass runs one pass and returns how long to sleep before the next
func (s *Service) runPass(ctx context.Context) time.Duration {
	now := s.now()
	snap, err := s.runner.Run(ctx, now)
	if err != nil {
		log.Printf("Pass failed: %v", err)
		return retryDelay
	}

	delay := nextDelay(snap.NextWake, s.now())
	if snap.NextWake != nil {
		log.Printf("Pass %s: %d flights, next wake %s", snap.PassID, len(snap.Flights), snap.NextWake.Format(time.RFC3339))
	} else {
		log.Printf("Pass %s: %d flights, nothing scheduled", snap.PassID, len(snap.Flights))
	}
	return delay
}

// nextDelay turns a wake instant into a sleep, bounded by minDelay and
// idleDelay. No wake instant means sleep idleDelay.
func nextDelay(wake *time.Time, now time.Time) time.Duration {
	if wake == nil {
		return idleDelay
	}
	d := wake.Sub(now)
	if d < minDelay {
		return minDelay
	}
	if d > idleDelay {
		return idleDelay
	}
	return d
}
