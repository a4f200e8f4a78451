package migrations

var ManualFlights = &Migration{
	ID:   "001_manual_flights",
	Name: "001_manual_flights",
	UpSQL: `
	CREATE TABLE IF NOT EXISTS manual_flights (
		flight_key TEXT PRIMARY KEY,
		source TEXT NOT NULL DEFAULT 'manual',
		airline_code TEXT NOT NULL,
		flight_number TEXT NOT NULL,
		airline_name TEXT,
		airline_logo_url TEXT,
		aircraft_type TEXT,
		dep_airport TEXT NOT NULL,
		arr_airport TEXT,
		dep_airport_name TEXT,
		dep_airport_city TEXT,
		dep_airport_tz TEXT,
		arr_airport_name TEXT,
		arr_airport_city TEXT,
		arr_airport_tz TEXT,
		scheduled_departure TIMESTAMPTZ NOT NULL,
		scheduled_arrival TIMESTAMPTZ,
		travellers TEXT[] NOT NULL DEFAULT '{}',
		notes TEXT,
		status_state TEXT NOT NULL DEFAULT 'Unknown',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_manual_flights_scheduled_departure
		ON manual_flights (scheduled_departure);
	`,
	DownSQL: `
	DROP INDEX IF EXISTS idx_manual_flights_scheduled_departure;
	DROP TABLE IF EXISTS manual_flights;
	`,
}
