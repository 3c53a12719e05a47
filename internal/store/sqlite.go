package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database at the given path and configures it for use.
// It enables WAL mode and foreign keys.
func Open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	completed_at   INTEGER NOT NULL,
	title          TEXT NOT NULL,
	sport_type     TEXT NOT NULL,
	total_duration INTEGER NOT NULL,
	avg_power      INTEGER NOT NULL,
	avg_hr         INTEGER NOT NULL,
	avg_cadence    INTEGER NOT NULL,
	avg_speed      REAL NOT NULL,
	summary        TEXT NOT NULL
)`

const preferredDevicesSchema = `CREATE TABLE IF NOT EXISTS preferred_devices (
	kind       TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := db.ExecContext(ctx, preferredDevicesSchema); err != nil {
		return fmt.Errorf("create preferred_devices table: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_sessions_completed_at ON sessions (completed_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	return nil
}
