// Package tz converts provider timestamps into absolute UTC instants using
// airport timezone context.
package tz

import (
	"regexp"
	"strings"
	"sync"
	"time"
)

const doubledUTCOffset = "+00:00+00:00"

var offsetSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:\d{2})$`)

// Layouts tried for timestamps that carry an explicit offset
var offsetLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
}

// Layouts tried for naive (wall-clock) timestamps
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

var (
	locMu    sync.RWMutex
	locCache = make(map[string]*time.Location)
)

// Location loads an IANA timezone, caching successful lookups
func Location(name string) (*time.Location, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	locMu.RLock()
	loc, ok := locCache[name]
	locMu.RUnlock()
	if ok {
		return loc, true
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, false
	}

	locMu.Lock()
	locCache[name] = loc
	locMu.Unlock()
	return loc, true
}

func clean(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, doubledUTCOffset) {
		s = strings.Replace(s, doubledUTCOffset, "+00:00", 1)
	}
	return s
}

// HasOffset reports whether the timestamp carries an explicit offset or Z suffix
func HasOffset(s string) bool {
	return offsetSuffix.MatchString(clean(s))
}

// Format renders an instant the way every normalized timestamp is stored
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Normalize converts raw into a UTC ISO-8601 string.
//
// Timestamps with an explicit offset are converted directly. Naive
// timestamps are read as wall-clock time in tzName. When tzName is unknown,
// or when parsing fails, raw is returned unchanged so it can still be
// displayed; such values do not parse with Parse.
func Normalize(raw, tzName string) string {
	s := clean(raw)
	if s == "" {
		return ""
	}

	if HasOffset(s) {
		if t, ok := parseWithOffset(s); ok {
			return Format(t)
		}
		return raw
	}

	loc, ok := Location(tzName)
	if !ok {
		return raw
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return Format(t)
		}
	}
	return raw
}

// Parse returns the UTC instant for a timestamp with an explicit offset.
// Naive or malformed values are rejected.
func Parse(s string) (time.Time, bool) {
	s = clean(s)
	if s == "" || !HasOffset(s) {
		return time.Time{}, false
	}
	return parseWithOffset(s)
}

func parseWithOffset(s string) (time.Time, bool) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Local renders ts in the airport timezone. Naive input is read as UTC.
func Local(ts, tzName string) string {
	if ts == "" {
		return ""
	}
	loc, ok := Location(tzName)
	if !ok {
		return ""
	}

	t, ok := Parse(ts)
	if !ok {
		naive := Normalize(ts, "UTC")
		if t, ok = Parse(naive); !ok {
			return ""
		}
	}
	return t.In(loc).Format(time.RFC3339)
}

// ShortName returns the zone abbreviation (e.g. CET, IST) in effect at the given instant
func ShortName(tzName string, at time.Time) string {
	loc, ok := Location(tzName)
	if !ok {
		return ""
	}
	if at.IsZero() {
		at = time.Now()
	}
	return at.In(loc).Format("MST")
}
