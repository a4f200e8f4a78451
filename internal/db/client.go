package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/saviobatista/flightwatch/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// NewWithDB wraps an existing connection
func NewWithDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying connection for the migration runner
func (c *Client) DB() *sql.DB {
	return c.db
}

// Ping verifies the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

const manualColumns = `
	flight_key, source, airline_code, flight_number,
	airline_name, airline_logo_url, aircraft_type,
	dep_airport, arr_airport,
	dep_airport_name, dep_airport_city, dep_airport_tz,
	arr_airport_name, arr_airport_city, arr_airport_tz,
	scheduled_departure, scheduled_arrival,
	travellers, notes, status_state, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanManualFlight(row rowScanner) (*types.ManualFlight, error) {
	var (
		f          types.ManualFlight
		airline    sql.NullString
		logo       sql.NullString
		aircraft   sql.NullString
		arrAirport sql.NullString
		depName    sql.NullString
		depCity    sql.NullString
		depTZ      sql.NullString
		arrName    sql.NullString
		arrCity    sql.NullString
		arrTZ      sql.NullString
		arrival    sql.NullTime
		notes      sql.NullString
	)
	if err := row.Scan(
		&f.FlightKey, &f.Source, &f.AirlineCode, &f.FlightNumber,
		&airline, &logo, &aircraft,
		&f.DepAirport, &arrAirport,
		&depName, &depCity, &depTZ,
		&arrName, &arrCity, &arrTZ,
		&f.ScheduledDeparture, &arrival,
		pq.Array(&f.Travellers), &notes, &f.StatusState, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}

	f.AirlineName = airline.String
	f.AirlineLogoURL = logo.String
	f.AircraftType = aircraft.String
	f.ArrAirport = arrAirport.String
	f.DepAirportName = depName.String
	f.DepAirportCity = depCity.String
	f.DepAirportTZ = depTZ.String
	f.ArrAirportName = arrName.String
	f.ArrAirportCity = arrCity.String
	f.ArrAirportTZ = arrTZ.String
	f.Notes = notes.String
	f.ScheduledDeparture = f.ScheduledDeparture.UTC()
	if arrival.Valid {
		t := arrival.Time.UTC()
		f.ScheduledArrival = &t
	}
	if f.Travellers == nil {
		f.Travellers = []string{}
	}
	return &f, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// UpsertManualFlight inserts a manual flight or replaces the stored one
// with the same key. created_at and status_state survive the replace.
func (c *Client) UpsertManualFlight(ctx context.Context, f *types.ManualFlight) error {
	query := `
		INSERT INTO manual_flights (
			flight_key, source, airline_code, flight_number,
			airline_name, airline_logo_url, aircraft_type,
			dep_airport, arr_airport,
			dep_airport_name, dep_airport_city, dep_airport_tz,
			arr_airport_name, arr_airport_city, arr_airport_tz,
			scheduled_departure, scheduled_arrival,
			travellers, notes, status_state
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		ON CONFLICT (flight_key) DO UPDATE SET
			source = EXCLUDED.source,
			airline_code = EXCLUDED.airline_code,
			flight_number = EXCLUDED.flight_number,
			airline_name = EXCLUDED.airline_name,
			airline_logo_url = EXCLUDED.airline_logo_url,
			aircraft_type = EXCLUDED.aircraft_type,
			dep_airport = EXCLUDED.dep_airport,
			arr_airport = EXCLUDED.arr_airport,
			dep_airport_name = EXCLUDED.dep_airport_name,
			dep_airport_city = EXCLUDED.dep_airport_city,
			dep_airport_tz = EXCLUDED.dep_airport_tz,
			arr_airport_name = EXCLUDED.arr_airport_name,
			arr_airport_city = EXCLUDED.arr_airport_city,
			arr_airport_tz = EXCLUDED.arr_airport_tz,
			scheduled_departure = EXCLUDED.scheduled_departure,
			scheduled_arrival = EXCLUDED.scheduled_arrival,
			travellers = EXCLUDED.travellers,
			notes = EXCLUDED.notes,
			updated_at = NOW()
	`

	source := f.Source
	if source == "" {
		source = "manual"
	}
	state := f.StatusState
	if state == "" {
		state = string(types.StateUnknown)
	}
	travellers := f.Travellers
	if travellers == nil {
		travellers = []string{}
	}

	_, err := c.db.ExecContext(ctx, query,
		f.FlightKey, source, f.AirlineCode, f.FlightNumber,
		nullString(f.AirlineName), nullString(f.AirlineLogoURL), nullString(f.AircraftType),
		f.DepAirport, nullString(f.ArrAirport),
		nullString(f.DepAirportName), nullString(f.DepAirportCity), nullString(f.DepAirportTZ),
		nullString(f.ArrAirportName), nullString(f.ArrAirportCity), nullString(f.ArrAirportTZ),
		f.ScheduledDeparture.UTC(), nullTime(f.ScheduledArrival),
		pq.Array(travellers), nullString(f.Notes), state,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert manual flight %s: %w", f.FlightKey, err)
	}
	return nil
}

// GetManualFlight returns the stored flight, or nil when the key is unknown
func (c *Client) GetManualFlight(ctx context.Context, flightKey string) (*types.ManualFlight, error) {
	query := `SELECT ` + manualColumns + ` FROM manual_flights WHERE flight_key = $1`

	f, err := scanManualFlight(c.db.QueryRowContext(ctx, query, flightKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get manual flight %s: %w", flightKey, err)
	}
	return f, nil
}

// ListManualFlights returns every stored flight ordered by departure
func (c *Client) ListManualFlights(ctx context.Context) ([]*types.ManualFlight, error) {
	query := `SELECT ` + manualColumns + ` FROM manual_flights ORDER BY scheduled_departure, flight_key`
	return c.queryManualFlights(ctx, query)
}

// ListManualFlightsBetween returns flights departing within [start, end]
func (c *Client) ListManualFlightsBetween(ctx context.Context, start, end time.Time) ([]*types.ManualFlight, error) {
	query := `SELECT ` + manualColumns + ` FROM manual_flights
		WHERE scheduled_departure BETWEEN $1 AND $2
		ORDER BY scheduled_departure, flight_key`
	return c.queryManualFlights(ctx, query, start.UTC(), end.UTC())
}

func (c *Client) queryManualFlights(ctx context.Context, query string, args ...interface{}) ([]*types.ManualFlight, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual flights: %w", err)
	}
	defer rows.Close()

	var flights []*types.ManualFlight
	for rows.Next() {
		f, err := scanManualFlight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan manual flight: %w", err)
		}
		flights = append(flights, f)
	}
	return flights, rows.Err()
}

// ManualFlightUpdate carries a partial update. Nil fields are left unchanged.
type ManualFlightUpdate struct {
	AirlineName        *string
	AirlineLogoURL     *string
	AircraftType       *string
	DepAirport         *string
	ArrAirport         *string
	DepAirportName     *string
	DepAirportCity     *string
	DepAirportTZ       *string
	ArrAirportName     *string
	ArrAirportCity     *string
	ArrAirportTZ       *string
	ScheduledDeparture *time.Time
	ScheduledArrival   *time.Time
	Travellers         []string
	Notes              *string
	StatusState        *string
}

// Empty reports whether the update changes nothing
func (u *ManualFlightUpdate) Empty() bool {
	return len(u.assignments()) == 0
}

type assignment struct {
	column string
	value  interface{}
}

func (u *ManualFlightUpdate) assignments() []assignment {
	var out []assignment
	text := func(column string, v *string) {
		if v != nil {
			out = append(out, assignment{column, nullString(*v)})
		}
	}

	text("airline_name", u.AirlineName)
	text("airline_logo_url", u.AirlineLogoURL)
	text("aircraft_type", u.AircraftType)
	if u.DepAirport != nil && strings.TrimSpace(*u.DepAirport) != "" {
		out = append(out, assignment{"dep_airport", strings.TrimSpace(*u.DepAirport)})
	}
	text("arr_airport", u.ArrAirport)
	text("dep_airport_name", u.DepAirportName)
	text("dep_airport_city", u.DepAirportCity)
	text("dep_airport_tz", u.DepAirportTZ)
	text("arr_airport_name", u.ArrAirportName)
	text("arr_airport_city", u.ArrAirportCity)
	text("arr_airport_tz", u.ArrAirportTZ)
	if u.ScheduledDeparture != nil && !u.ScheduledDeparture.IsZero() {
		out = append(out, assignment{"scheduled_departure", u.ScheduledDeparture.UTC()})
	}
	if u.ScheduledArrival != nil {
		out = append(out, assignment{"scheduled_arrival", nullTime(u.ScheduledArrival)})
	}
	if u.Travellers != nil {
		out = append(out, assignment{"travellers", pq.Array(u.Travellers)})
	}
	text("notes", u.Notes)
	if u.StatusState != nil && strings.TrimSpace(*u.StatusState) != "" {
		out = append(out, assignment{"status_state", strings.TrimSpace(*u.StatusState)})
	}
	return out
}

// UpdateManualFlight applies a partial update. It reports false when the
// key is unknown or the update is empty.
func (c *Client) UpdateManualFlight(ctx context.Context, flightKey string, u *ManualFlightUpdate) (bool, error) {
	sets := u.assignments()
	if len(sets) == 0 {
		return false, nil
	}

	clauses := make([]string, 0, len(sets)+1)
	args := make([]interface{}, 0, len(sets)+1)
	for i, s := range sets {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", s.column, i+1))
		args = append(args, s.value)
	}
	clauses = append(clauses, "updated_at = NOW()")
	args = append(args, flightKey)

	query := fmt.Sprintf("UPDATE manual_flights SET %s WHERE flight_key = $%d",
		strings.Join(clauses, ", "), len(args))

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update manual flight %s: %w", flightKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update manual flight %s: %w", flightKey, err)
	}
	return n > 0, nil
}

// DeleteManualFlight removes one flight and reports whether it existed
func (c *Client) DeleteManualFlight(ctx context.Context, flightKey string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM manual_flights WHERE flight_key = $1`, flightKey)
	if err != nil {
		return false, fmt.Errorf("failed to delete manual flight %s: %w", flightKey, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete manual flight %s: %w", flightKey, err)
	}
	return n > 0, nil
}

// ClearManualFlights removes every flight and returns how many were stored
func (c *Client) ClearManualFlights(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM manual_flights`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear manual flights: %w", err)
	}
	return res.RowsAffected()
}

// StorePassStats stores a statistics snapshot as produced by stats.GetStats
func (c *Client) StorePassStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO pass_stats (
			time, passes, failed_passes, fetches, fetch_errors,
			no_matches, skipped_blocked, provider_blocks, position_calls,
			cache_hits, tracked_flights, pruned_flights,
			pass_duration_ms, next_wake, uptime_seconds
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
	`

	var passDuration int64
	if d, ok := stats["pass_duration"].(time.Duration); ok {
		passDuration = d.Milliseconds()
	}
	var uptime int64
	if d, ok := stats["uptime"].(time.Duration); ok {
		uptime = int64(d.Seconds())
	}
	var nextWake sql.NullTime
	if t, ok := stats["next_wake"].(time.Time); ok {
		nextWake = sql.NullTime{Time: t.UTC(), Valid: true}
	}

	_, err := c.db.Exec(query,
		time.Now().UTC(),
		counter(stats, "passes"),
		counter(stats, "failed_passes"),
		counter(stats, "fetches"),
		counter(stats, "fetch_errors"),
		counter(stats, "no_matches"),
		counter(stats, "skipped_blocked"),
		counter(stats, "provider_blocks"),
		counter(stats, "position_calls"),
		counter(stats, "cache_hits"),
		counter(stats, "tracked_flights"),
		counter(stats, "pruned_flights"),
		passDuration,
		nextWake,
		uptime,
	)
	if err != nil {
		return fmt.Errorf("failed to store pass stats: %w", err)
	}
	return nil
}

// counter reads an unsigned counter as a BIGINT value; missing keys are zero
func counter(stats map[string]interface{}, key string) int64 {
	switch v := stats[key].(type) {
	case uint64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
