package migrations

var PassStats = &Migration{
	ID:   "002_pass_stats",
	Name: "002_pass_stats",
	UpSQL: `
	CREATE TABLE IF NOT EXISTS pass_stats (
		time TIMESTAMPTZ NOT NULL,
		passes BIGINT NOT NULL,
		failed_passes BIGINT NOT NULL,
		fetches BIGINT NOT NULL,
		fetch_errors BIGINT NOT NULL,
		no_matches BIGINT NOT NULL,
		skipped_blocked BIGINT NOT NULL,
		provider_blocks BIGINT NOT NULL,
		position_calls BIGINT NOT NULL,
		cache_hits BIGINT NOT NULL,
		tracked_flights BIGINT NOT NULL,
		pruned_flights BIGINT NOT NULL,
		pass_duration_ms BIGINT NOT NULL,
		next_wake TIMESTAMPTZ,
		uptime_seconds BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pass_stats_time ON pass_stats (time DESC);
	`,
	DownSQL: `
	DROP INDEX IF EXISTS idx_pass_stats_time;
	DROP TABLE IF EXISTS pass_stats;
	`,
}
