package directory

import (
	"context"
	"sync"
	"time"

	"github.com/saviobatista/flightwatch/internal/types"
)

type airportRecord struct {
	info    types.AirportInfo
	expires time.Time
}

type airlineRecord struct {
	info    types.AirlineInfo
	expires time.Time
}

// MemoryStore is a process-local Store with per-record expiry
type MemoryStore struct {
	mu       sync.RWMutex
	now      func() time.Time
	airports map[string]airportRecord
	airlines map[string]airlineRecord
}

// NewMemoryStore creates an empty store using the wall clock
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an empty store with a custom clock
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		now:      now,
		airports: make(map[string]airportRecord),
		airlines: make(map[string]airlineRecord),
	}
}

func (m *MemoryStore) GetAirport(ctx context.Context, iata string) (*types.AirportInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.airports[normalizeCode(iata)]
	if !ok || !m.now().Before(rec.expires) {
		return nil, nil
	}
	info := rec.info
	return &info, nil
}

func (m *MemoryStore) StoreAirport(ctx context.Context, info *types.AirportInfo, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.airports[normalizeCode(info.IATA)] = airportRecord{info: *info, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryStore) GetAirline(ctx context.Context, iata string) (*types.AirlineInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.airlines[normalizeCode(iata)]
	if !ok || !m.now().Before(rec.expires) {
		return nil, nil
	}
	info := rec.info
	return &info, nil
}

func (m *MemoryStore) StoreAirline(ctx context.Context, info *types.AirlineInfo, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.airlines[normalizeCode(info.IATA)] = airlineRecord{info: *info, expires: m.now().Add(ttl)}
	return nil
}
