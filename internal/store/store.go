// Package store persists finished sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// ErrNotFound is returned when no session has the requested id.
var ErrNotFound = errors.New("session not found")

// Entry is the listing view of a stored session, without samples.
type Entry struct {
	ID            string    `json:"id"`
	CompletedAt   time.Time `json:"completedAt"`
	Title         string    `json:"title"`
	SportType     string    `json:"sportType"`
	TotalDuration int       `json:"totalDuration"`
	AvgPower      int       `json:"avgPower"`
	AvgHR         int       `json:"avgHR"`
	AvgCadence    int       `json:"avgCadence"`
	AvgSpeed      float64   `json:"avgSpeed"`
}

// Record is a stored session with its full summary.
type Record struct {
	ID          string          `json:"id"`
	CompletedAt time.Time       `json:"completedAt"`
	Summary     session.Summary `json:"summary"`
}

// Store implements session.SummarySink on a SQLite database.
type Store struct {
	db     *sql.DB
	logger *log.Logger
	clock  func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the clock used for completion timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator replaces the uuid based id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// New creates the schema if needed and returns a Store on db.
func New(ctx context.Context, db *sql.DB, logger *log.Logger, opts ...Option) (*Store, error) {
	if db == nil {
		panic("Store: db cannot be nil")
	}
	if logger == nil {
		panic("Store: logger cannot be nil")
	}
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}
	s := &Store{
		db:     db,
		logger: logger,
		clock:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save persists summary and returns the assigned id and completion time.
func (s *Store) Save(ctx context.Context, summary session.Summary) (string, time.Time, error) {
	blob, err := json.Marshal(summary)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal summary: %w", err)
	}

	id := s.newID()
	completedAt := s.clock().UTC().Truncate(time.Millisecond)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, completed_at, title, sport_type, total_duration,
			avg_power, avg_hr, avg_cadence, avg_speed, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, completedAt.UnixMilli(), summary.Title, summary.SportType, summary.TotalDuration,
		summary.AvgPower, summary.AvgHR, summary.AvgCadence, summary.AvgSpeed, string(blob),
	)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("insert session: %w", err)
	}

	s.logger.Printf("Store: Saved session %s (%q, %ds)", id, summary.Title, summary.TotalDuration)
	return id, completedAt, nil
}

// List returns stored sessions, most recent first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, completed_at, title, sport_type, total_duration,
			avg_power, avg_hr, avg_cadence, avg_speed
		FROM sessions ORDER BY completed_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var completedMs int64
		if err := rows.Scan(&e.ID, &completedMs, &e.Title, &e.SportType, &e.TotalDuration,
			&e.AvgPower, &e.AvgHR, &e.AvgCadence, &e.AvgSpeed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.CompletedAt = time.UnixMilli(completedMs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return entries, nil
}

// Get returns the stored session with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var completedMs int64
	var blob string
	err := s.db.QueryRowContext(ctx,
		"SELECT completed_at, summary FROM sessions WHERE id = ?", id,
	).Scan(&completedMs, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("get session: %w", err)
	}

	rec := Record{ID: id, CompletedAt: time.UnixMilli(completedMs).UTC()}
	if err := json.Unmarshal([]byte(blob), &rec.Summary); err != nil {
		return Record{}, fmt.Errorf("unmarshal summary %s: %w", id, err)
	}
	return rec, nil
}

// Delete removes the stored session with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
