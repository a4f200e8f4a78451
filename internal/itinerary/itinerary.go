// Package itinerary supplies the raw flight segments an aggregation pass
// starts from.
package itinerary

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// Source yields segments departing within a time window
type Source interface {
	Name() string
	Segments(ctx context.Context, start, end time.Time) ([]types.Segment, error)
}

// SourceImport tags segments read from an itinerary export file
const SourceImport = "import"

// File serves segments from a JSON export, a list of segment objects
type File struct {
	path     string
	segments []types.Segment
}

// LoadFile reads an itinerary export from disk
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read itinerary file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return nil, err
	}
	f.path = path
	return f, nil
}

// ParseFile decodes an itinerary export. Segments without a source are
// tagged as imported.
func ParseFile(data []byte) (*File, error) {
	var segments []types.Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("failed to parse itinerary file: %w", err)
	}
	for i := range segments {
		if segments[i].Source == "" {
			segments[i].Source = SourceImport
		}
	}
	return &File{segments: segments}, nil
}

// Name implements Source
func (f *File) Name() string { return SourceImport }

// Segments implements Source. A segment whose departure cannot be resolved
// to an instant is kept rather than silently dropped.
func (f *File) Segments(ctx context.Context, start, end time.Time) ([]types.Segment, error) {
	out := make([]types.Segment, 0, len(f.segments))
	for _, seg := range f.segments {
		dep, ok := tz.Parse(tz.Normalize(seg.Dep.Scheduled, seg.Dep.Airport.TZ))
		if ok && (dep.Before(start) || dep.After(end)) {
			continue
		}
		seg.Travellers = append([]string(nil), seg.Travellers...)
		out = append(out, seg)
	}
	return out, nil
}

// Collect gathers segments from every source. A failing source is reported
// alongside whatever the others returned.
func Collect(ctx context.Context, sources []Source, start, end time.Time) ([]types.Segment, map[string]error) {
	var (
		all    []types.Segment
		failed map[string]error
	)
	for _, src := range sources {
		segs, err := src.Segments(ctx, start, end)
		if err != nil {
			if failed == nil {
				failed = make(map[string]error)
			}
			failed[src.Name()] = err
			continue
		}
		all = append(all, segs...)
	}
	return all, failed
}
