package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// PreferredDevice returns the address last used for kind, or "" when none
// was recorded.
func (s *Store) PreferredDevice(ctx context.Context, kind telemetry.SensorKind) (string, error) {
	var address string
	err := s.db.QueryRowContext(ctx,
		"SELECT address FROM preferred_devices WHERE kind = ?", string(kind)).Scan(&address)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query preferred device: %w", err)
	}
	return address, nil
}

// SetPreferredDevice records address as the device to try first for kind.
func (s *Store) SetPreferredDevice(ctx context.Context, kind telemetry.SensorKind, address string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferred_devices (kind, address, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(kind) DO UPDATE SET address = excluded.address, updated_at = excluded.updated_at`,
		string(kind), address, s.clock().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert preferred device: %w", err)
	}
	s.logger.Printf("Store: Preferred device %s -> %q", kind, address)
	return nil
}
