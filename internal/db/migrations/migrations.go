// Package migrations versions the manual flight store and pass statistics schema.
package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Migration is one reversible schema step
type Migration struct {
	ID        string
	Name      string
	UpSQL     string
	DownSQL   string
	CreatedAt time.Time
}

// All lists every migration in apply order
var All = []*Migration{
	ManualFlights,
	PassStats,
}

// Migrator applies and rolls back migrations, tracking them in the
// schema_migrations table
type Migrator struct {
	db *sql.DB
}

// New creates a new Migrator
func New(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the tracking table if it doesn't exist
func (m *Migrator) Initialize() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// GetAppliedMigrations returns the names of applied migrations
func (m *Migrator) GetAppliedMigrations() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT name FROM schema_migrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Printf("Warning: failed to close rows: %v", cerr)
		}
	}()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// Pending returns the migrations from the list that are not applied yet,
// preserving order
func (m *Migrator) Pending(migrations []*Migration) ([]*Migration, error) {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var pending []*Migration
	for _, migration := range migrations {
		if !applied[migration.Name] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// executeMigration runs one schema step and its bookkeeping in a transaction
func (m *Migrator) executeMigration(migration *Migration, stmt, recordQuery string, recordArgs ...interface{}) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := tx.Rollback(); err != nil {
			log.Printf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}
	if _, err := tx.Exec(recordQuery, recordArgs...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ApplyMigration applies a single migration
func (m *Migrator) ApplyMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.UpSQL,
		"INSERT INTO schema_migrations (name) VALUES ($1)",
		migration.Name,
	)
}

// RollbackMigration reverts a single migration
func (m *Migrator) RollbackMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.DownSQL,
		"DELETE FROM schema_migrations WHERE name = $1",
		migration.Name,
	)
}

// Migrate applies all pending migrations and returns how many ran
func (m *Migrator) Migrate(migrations []*Migration) (int, error) {
	if err := m.Initialize(); err != nil {
		return 0, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	pending, err := m.Pending(migrations)
	if err != nil {
		return 0, err
	}

	for i, migration := range pending {
		if err := m.ApplyMigration(migration); err != nil {
			return i, fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
		log.Printf("Applied migration: %s", migration.Name)
	}
	return len(pending), nil
}

// Rollback reverts the most recently applied migration from the list
func (m *Migrator) Rollback(migrations []*Migration) error {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var last *Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		if applied[migrations[i].Name] {
			last = migrations[i]
			break
		}
	}
	if last == nil {
		return fmt.Errorf("no migrations to rollback")
	}

	if err := m.RollbackMigration(last); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", last.Name, err)
	}

	log.Printf("Rolled back migration: %s", last.Name)
	return nil
}
