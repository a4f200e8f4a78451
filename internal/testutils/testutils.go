package testutils

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/saviobatista/flightwatch/internal/tz"
	"github.com/saviobatista/flightwatch/internal/types"
)

// MockSegment creates a segment departing depIATA at depScheduled
func MockSegment(source, airline, number, depIATA string, depScheduled time.Time) types.Segment {
	return types.Segment{
		Source:       source,
		AirlineCode:  airline,
		FlightNumber: number,
		Dep: types.Leg{
			Airport:   types.Airport{IATA: depIATA},
			Scheduled: tz.Format(depScheduled),
		},
	}
}

// MockFlight creates a scheduled flight with a two hour block time
func MockFlight(key string, dep time.Time) *types.Flight {
	return &types.Flight{
		FlightKey:    key,
		Source:       "test-source",
		AirlineCode:  "SK",
		FlightNumber: "1",
		Travellers:   []string{},
		Dep: types.Leg{
			Airport:   types.Airport{IATA: "CPH", TZ: "Europe/Copenhagen"},
			Scheduled: tz.Format(dep),
		},
		Arr: types.Leg{
			Airport:   types.Airport{IATA: "ARN", TZ: "Europe/Stockholm"},
			Scheduled: tz.Format(dep.Add(2 * time.Hour)),
		},
		StatusState: types.StateScheduled,
	}
}

// StaticSource is an itinerary source returning fixed segments
type StaticSource struct {
	SourceName string
	Items      []types.Segment
	Err        error

	mu    sync.Mutex
	calls int
}

// Name returns the source name
func (s *StaticSource) Name() string { return s.SourceName }

// Segments returns the configured segments regardless of the window
func (s *StaticSource) Segments(ctx context.Context, start, end time.Time) ([]types.Segment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]types.Segment, len(s.Items))
	copy(out, s.Items)
	return out, nil
}

// Calls returns how many times Segments was called
func (s *StaticSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}

// IsIntegrationTest returns false when SKIP_INTEGRATION is set
func IsIntegrationTest() bool {
	return os.Getenv("SKIP_INTEGRATION") == ""
}
