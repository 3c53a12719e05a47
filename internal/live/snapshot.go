package live

import (
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// Snapshot is the merged view of all sensors at one instant.
type Snapshot struct {
	Power     int       `json:"power"`
	Cadence   float64   `json:"cadence"`
	Speed     float64   `json:"speed"`
	HeartRate *int      `json:"heartRate,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// merge overwrites only the fields present in update.
func (s Snapshot) merge(update telemetry.Update, now time.Time) Snapshot {
	if update.Power != nil {
		s.Power = *update.Power
	}
	if update.Cadence != nil {
		s.Cadence = *update.Cadence
	}
	if update.Speed != nil {
		s.Speed = *update.Speed
	}
	if update.HeartRate != nil {
		hr := *update.HeartRate
		s.HeartRate = &hr
	}
	s.Timestamp = now
	return s
}

// clone returns a copy that shares no pointers with s.
func (s Snapshot) clone() Snapshot {
	if s.HeartRate != nil {
		hr := *s.HeartRate
		s.HeartRate = &hr
	}
	return s
}
