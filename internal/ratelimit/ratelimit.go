package ratelimit

import (
	"sync"
	"time"

	"github.com/saviobatista/flightwatch/internal/types"
)

const (
	// DefaultRateLimitCooldown applies when a throttled provider sends no Retry-After
	DefaultRateLimitCooldown = 900 * time.Second
	// DefaultQuotaCooldown applies when a provider reports its quota as exhausted
	DefaultQuotaCooldown = 24 * time.Hour
)

// Tracker records per-provider cooldown windows. Each Block call replaces
// the previous window for that provider; expired windows are ignored rather
// than deleted.
type Tracker struct {
	mu     sync.RWMutex
	blocks map[string]types.Block
	now    func() time.Time
}

// New creates a tracker using the wall clock
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock creates a tracker with a custom clock (useful for testing)
func NewWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		blocks: make(map[string]types.Block),
		now:    now,
	}
}

// Block disables provider for the given number of seconds from now
func (t *Tracker) Block(provider string, seconds int, reason string) {
	if seconds < 0 {
		seconds = 0
	}
	until := t.now().UTC().Add(time.Duration(seconds) * time.Second)

	t.mu.Lock()
	t.blocks[provider] = types.Block{Until: until, Reason: reason}
	t.mu.Unlock()
}

// IsBlocked reports whether provider is inside a cooldown window
func (t *Tracker) IsBlocked(provider string) bool {
	t.mu.RLock()
	b, ok := t.blocks[provider]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return t.now().UTC().Before(b.Until)
}

// BlockedUntil returns the end of the last recorded window, or nil
func (t *Tracker) BlockedUntil(provider string) *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()

	b, ok := t.blocks[provider]
	if !ok {
		return nil
	}
	until := b.Until
	return &until
}

// Reason returns the reason of the last recorded window
func (t *Tracker) Reason(provider string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.blocks[provider].Reason
}

// Active returns a copy of all windows that have not yet expired
func (t *Tracker) Active() map[string]types.Block {
	now := t.now().UTC()

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]types.Block, len(t.blocks))
	for provider, b := range t.blocks {
		if now.Before(b.Until) {
			out[provider] = b
		}
	}
	return out
}
