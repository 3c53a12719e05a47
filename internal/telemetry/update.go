package telemetry

import (
	"fmt"
	"strings"
)

// Update is a partial metric update decoded from one notification.
// A nil field was not present in the notification and must not overwrite
// the previous value.
type Update struct {
	Power     *int     // watts
	Cadence   *float64 // rpm
	Speed     *float64 // as reported by the sensor, km/h for FTMS trainers
	HeartRate *int     // bpm
}

// IsEmpty reports whether the update carries no fields.
func (u Update) IsEmpty() bool {
	return u.Power == nil && u.Cadence == nil && u.Speed == nil && u.HeartRate == nil
}

func (u Update) String() string {
	var parts []string
	if u.Power != nil {
		parts = append(parts, fmt.Sprintf("power=%d", *u.Power))
	}
	if u.Cadence != nil {
		parts = append(parts, fmt.Sprintf("cadence=%.1f", *u.Cadence))
	}
	if u.Speed != nil {
		parts = append(parts, fmt.Sprintf("speed=%.2f", *u.Speed))
	}
	if u.HeartRate != nil {
		parts = append(parts, fmt.Sprintf("hr=%d", *u.HeartRate))
	}
	if len(parts) == 0 {
		return "{}"
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func ptr[T any](v T) *T {
	return &v
}
