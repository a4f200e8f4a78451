package scheduler

import (
	"time"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// Phase boundaries
const (
	agedOutAfter   = 6 * time.Hour
	imminentWindow = time.Hour
	farOutWindow   = 6 * time.Hour
	nearWindow     = 2 * time.Hour
)

// Minimum poll intervals per phase; the configured TTL may widen them
const (
	inFlightInterval = 15 * time.Minute
	midInterval      = 30 * time.Minute
	nearInterval     = 10 * time.Minute
	terminalInterval = 3 * time.Hour
	fallbackInterval = time.Hour
)

// bestInstant returns the first of actual, estimated, scheduled that carries
// an explicit offset. Naive values are never used for scheduling.
func bestInstant(l *types.Leg) (time.Time, bool) {
	for _, v := range []string{l.Actual, l.Estimated, l.Scheduled} {
		if v == "" {
			continue
		}
		if t, ok := tz.Parse(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

func atLeast(ttl, min time.Duration) *time.Duration {
	d := min
	if ttl > d {
		d = ttl
	}
	return &d
}

func ttlFloor(ttlMinutes int) time.Duration {
	if ttlMinutes < 1 {
		ttlMinutes = 1
	}
	return time.Duration(ttlMinutes) * time.Minute
}

// AgedOut reports whether the flight arrived more than six hours ago
func AgedOut(f *types.Flight, now time.Time) bool {
	arr, ok := bestInstant(&f.Arr)
	return ok && now.After(arr.Add(agedOutAfter))
}

// ComputeNextRefresh returns how long to wait before polling f again, or nil
// when the flight should not be polled: no usable times, aged out, or
// departing more than six hours from now.
func ComputeNextRefresh(f *types.Flight, now time.Time, ttlMinutes int) *time.Duration {
	ttl := ttlFloor(ttlMinutes)
	dep, hasDep := bestInstant(&f.Dep)
	arr, hasArr := bestInstant(&f.Arr)

	if !hasDep && !hasArr {
		return nil
	}
	if hasArr && now.After(arr.Add(agedOutAfter)) {
		return nil
	}

	if hasDep && !now.Before(dep.Add(-imminentWindow)) && (!hasArr || !now.After(arr)) {
		return atLeast(ttl, inFlightInterval)
	}

	if hasDep && now.Before(dep) {
		until := dep.Sub(now)
		switch {
		case until > farOutWindow:
			return nil
		case until > nearWindow:
			return atLeast(ttl, midInterval)
		default:
			return atLeast(ttl, nearInterval)
		}
	}

	switch f.StatusState {
	case types.StateArrived, types.StateCancelled:
		return atLeast(ttl, terminalInterval)
	}

	return atLeast(ttl, fallbackInterval)
}

// windowOpens returns when a far-out flight enters the polling window
func windowOpens(f *types.Flight, now time.Time) *time.Time {
	dep, ok := bestInstant(&f.Dep)
	if !ok {
		return nil
	}
	opens := dep.Add(-farOutWindow)
	if !opens.After(now) {
		return nil
	}
	return &opens
}
