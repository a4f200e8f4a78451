package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/saviobatista/flightwatch/internal/config"
	"github.com/saviobatista/flightwatch/internal/db"
	"github.com/saviobatista/flightwatch/internal/itinerary"
	"github.com/saviobatista/flightwatch/internal/types"
)

type fakeManager struct {
	added   []itinerary.AddRequest
	updates map[string]*db.ManualFlightUpdate
	removed []string
	flights []*types.ManualFlight
	err     error
}

func (m *fakeManager) Add(ctx context.Context, req itinerary.AddRequest) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.added = append(m.added, req)
	return req.AirlineCode + "-" + req.FlightNumber + "-" + req.DepAirport + "-2026-03-01", nil
}

func (m *fakeManager) List(ctx context.Context) ([]*types.ManualFlight, error) {
	return m.flights, m.err
}

func (m *fakeManager) Update(ctx context.Context, key string, u *db.ManualFlightUpdate) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.updates == nil {
		m.updates = map[string]*db.ManualFlightUpdate{}
	}
	m.updates[key] = u
	return key == "SK-926-CPH-2026-03-01", nil
}

func (m *fakeManager) Remove(ctx context.Context, key string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	m.removed = append(m.removed, key)
	return key == "SK-926-CPH-2026-03-01", nil
}

func (m *fakeManager) Clear(ctx context.Context) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return int64(len(m.flights)), nil
}

func TestRun_Add(t *testing.T) {
	m := &fakeManager{}
	var out bytes.Buffer

	err := run(context.Background(), m, []string{
		"add", "-airline", "SK", "-number", "926", "-dep", "CPH", "-arr", "ARN",
		"-dep-time", "2026-03-01T08:30:00", "-travellers", "Ana, Bo,,", "-notes", "window seat",
	}, &out)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	if len(m.added) != 1 {
		t.Fatalf("Expected one add, got %d", len(m.added))
	}
	req := m.added[0]
	if req.ScheduledDeparture != "2026-03-01T08:30:00" || req.Notes != "window seat" {
		t.Errorf("Unexpected request %+v", req)
	}
	if len(req.Travellers) != 2 || req.Travellers[0] != "Ana" || req.Travellers[1] != "Bo" {
		t.Errorf("Travellers = %v, want [Ana Bo]", req.Travellers)
	}
	if !strings.Contains(out.String(), "Added SK-926-CPH-2026-03-01") {
		t.Errorf("Unexpected output %q", out.String())
	}
}

func TestRun_AddError(t *testing.T) {
	m := &fakeManager{err: errors.New("bad_query")}
	err := run(context.Background(), m, []string{"add", "-airline", "SK"}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "failed to add flight") {
		t.Errorf("Expected add error, got %v", err)
	}
}

func TestRun_List(t *testing.T) {
	dep := time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)
	m := &fakeManager{flights: []*types.ManualFlight{{
		FlightKey:          "SK-926-CPH-2026-03-01",
		DepAirport:         "CPH",
		ArrAirport:         "ARN",
		ScheduledDeparture: dep,
		Travellers:         []string{"Ana", "Bo"},
		StatusState:        string(types.StateScheduled),
	}}}

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(context.Background(), m, []string{"list"}, &out); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		for _, want := range []string{"KEY", "SK-926-CPH-2026-03-01", "CPH-ARN", "2026-03-01 07:30", "Scheduled", "Ana, Bo"} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("Output missing %q:\n%s", want, out.String())
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(context.Background(), m, []string{"list", "-json"}, &out); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		var got []types.ManualFlight
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("Invalid JSON output: %v", err)
		}
		if len(got) != 1 || got[0].FlightKey != "SK-926-CPH-2026-03-01" {
			t.Errorf("Unexpected flights %+v", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		if err := run(context.Background(), &fakeManager{}, []string{"ls"}, &out); err != nil {
			t.Fatalf("run() error = %v", err)
		}
		if !strings.Contains(out.String(), "No flights") {
			t.Errorf("Unexpected output %q", out.String())
		}
	})
}

func TestRun_Update(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{"notes", []string{"update", "-notes", "aisle", "SK-926-CPH-2026-03-01"}, false},
		{"clear travellers", []string{"update", "-travellers", "", "SK-926-CPH-2026-03-01"}, false},
		{"unknown key", []string{"update", "-notes", "x", "XX-1-AAA-2026-03-01"}, true},
		{"nothing to update", []string{"update", "SK-926-CPH-2026-03-01"}, true},
		{"missing key", []string{"update", "-notes", "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeManager{}
			err := run(context.Background(), m, tt.args, &bytes.Buffer{})
			if (err != nil) != tt.expectError {
				t.Fatalf("run() error = %v, expectError %v", err, tt.expectError)
			}
		})
	}

	m := &fakeManager{}
	if err := run(context.Background(), m, []string{"update", "-travellers", "", "SK-926-CPH-2026-03-01"}, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}
	u := m.updates["SK-926-CPH-2026-03-01"]
	if u == nil || u.Travellers == nil || len(u.Travellers) != 0 || u.Notes != nil {
		t.Errorf("Expected empty travellers update only, got %+v", u)
	}
}

func TestRun_RemoveAndClear(t *testing.T) {
	m := &fakeManager{flights: make([]*types.ManualFlight, 3)}
	var out bytes.Buffer

	if err := run(context.Background(), m, []string{"rm", "SK-926-CPH-2026-03-01", "XX-1-AAA-2026-03-01"}, &out); err != nil {
		t.Fatalf("remove error = %v", err)
	}
	if !strings.Contains(out.String(), "Removed SK-926-CPH-2026-03-01") || !strings.Contains(out.String(), "Not found: XX-1-AAA-2026-03-01") {
		t.Errorf("Unexpected output %q", out.String())
	}

	out.Reset()
	if err := run(context.Background(), m, []string{"clear"}, &out); err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if !strings.Contains(out.String(), "Removed 3 flights") {
		t.Errorf("Unexpected output %q", out.String())
	}

	if err := run(context.Background(), m, []string{"remove"}, &out); err == nil {
		t.Error("Expected error for remove without keys")
	}
}

func TestRun_Dispatch(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		expectError bool
	}{
		{"no command", nil, true},
		{"unknown command", []string{"fly"}, true},
		{"help", []string{"help"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(context.Background(), &fakeManager{}, tt.args, &out)
			if (err != nil) != tt.expectError {
				t.Errorf("run() error = %v, expectError %v", err, tt.expectError)
			}
			if !strings.Contains(out.String(), "Usage: flightctl") {
				t.Errorf("Expected usage text, got %q", out.String())
			}
		})
	}
}

// The real manual store removes through the database client
func TestRun_RemoveWithStore(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	defer sqlDB.Close()

	mock.ExpectExec(`DELETE FROM manual_flights WHERE flight_key = \$1`).
		WithArgs("SK-926-CPH-2026-03-01").
		WillReturnResult(sqlmock.NewResult(0, 1))

	manual := itinerary.NewManual(db.NewWithDB(sqlDB))
	var out bytes.Buffer
	if err := run(context.Background(), manual, []string{"remove", "SK-926-CPH-2026-03-01"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Removed SK-926-CPH-2026-03-01") {
		t.Errorf("Unexpected output %q", out.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet mock expectations: %v", err)
	}
}

func TestNewManager_Errors(t *testing.T) {
	if _, _, err := newManager(&config.Config{}); err == nil {
		t.Error("Expected error without DB_CONN_STR")
	}
	if _, _, err := newManager(&config.Config{DBConnStr: "invalid://connection"}); err == nil {
		t.Error("Expected error for invalid connection string")
	}
}
