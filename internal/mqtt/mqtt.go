// Package mqtt publishes live metrics and session progress to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"math"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// DefaultTopic is the topic prefix used when none is configured.
const DefaultTopic = "smart-trainer/live-session"

// Sub-topics appended to the configured prefix.
const (
	TopicLive      = "live"
	TopicState     = "state"
	TopicCompleted = "completed"
)

// Publisher publishes session traffic to MQTT.
type Publisher interface {
	// PublishLive sends the merged live snapshot. Not retained.
	PublishLive(snapshot live.Snapshot) error

	// PublishState sends session progress. Retained so late subscribers see
	// the current phase.
	PublishState(state session.State) error

	// PublishCompleted sends the result of a finished session.
	PublishCompleted(completed session.Completed) error

	// Close disconnects from the broker.
	Close() error
}

// LivePayload is the message published on the live topic.
type LivePayload struct {
	Live LiveMetrics `json:"live"`
}

// LiveMetrics holds one merged snapshot.
type LiveMetrics struct {
	Timestamp string  `json:"timestamp"`
	Power     int     `json:"power"`
	Cadence   float64 `json:"cadence"`
	Speed     float64 `json:"speed"`
	HeartRate *int    `json:"heartRate,omitempty"`
}

// FormatLivePayload creates the JSON payload for a live snapshot.
func FormatLivePayload(snapshot live.Snapshot) ([]byte, error) {
	payload := LivePayload{
		Live: LiveMetrics{
			Timestamp: formatTime(snapshot.Timestamp),
			Power:     snapshot.Power,
			Cadence:   snapshot.Cadence,
			Speed:     math.Round(snapshot.Speed*10) / 10,
			HeartRate: snapshot.HeartRate,
		},
	}
	return json.Marshal(payload)
}

// StatePayload is the message published on the state topic.
type StatePayload struct {
	Session SessionProgress `json:"session"`
}

// SessionProgress is the condensed view of a session state.
type SessionProgress struct {
	Phase            string           `json:"phase"`
	Title            string           `json:"title,omitempty"`
	Block            int              `json:"block"`
	Blocks           int              `json:"blocks"`
	BlockLabel       string           `json:"blockLabel,omitempty"`
	BlockType        string           `json:"blockType,omitempty"`
	RemainingSeconds int              `json:"remainingSeconds"`
	ElapsedSeconds   int              `json:"elapsedSeconds"`
	TotalSeconds     int              `json:"totalSeconds"`
	Averages         session.Averages `json:"averages"`
	BlockAverages    session.Averages `json:"blockAverages"`
}

// FormatStatePayload creates the JSON payload for a session state.
func FormatStatePayload(state session.State) ([]byte, error) {
	progress := SessionProgress{
		Phase:            string(state.Phase()),
		Title:            state.Title,
		Block:            state.CurrentBlockIndex,
		Blocks:           len(state.Blocks),
		RemainingSeconds: state.RemainingBlockSeconds,
		ElapsedSeconds:   state.ElapsedTotalSeconds,
		TotalSeconds:     state.TotalSeconds(),
		Averages:         state.Averages,
		BlockAverages:    state.CurrentBlockAverages,
	}
	if block, ok := state.CurrentBlock(); ok {
		progress.BlockLabel = block.Label
		progress.BlockType = string(block.Type)
	}
	return json.Marshal(StatePayload{Session: progress})
}

// CompletedPayload is the message published on the completed topic.
type CompletedPayload struct {
	Completed CompletedSession `json:"completed"`
}

// CompletedSession summarizes a stored session.
type CompletedSession struct {
	ID            string  `json:"id"`
	CompletedAt   string  `json:"completedAt"`
	Title         string  `json:"title"`
	SportType     string  `json:"sportType"`
	TotalDuration int     `json:"totalDuration"`
	AvgPower      int     `json:"avgPower"`
	AvgHR         int     `json:"avgHR"`
	AvgCadence    int     `json:"avgCadence"`
	AvgSpeed      float64 `json:"avgSpeed"`
	Laps          int     `json:"laps"`
}

// FormatCompletedPayload creates the JSON payload for a finished session.
func FormatCompletedPayload(completed session.Completed) ([]byte, error) {
	s := completed.Summary
	payload := CompletedPayload{
		Completed: CompletedSession{
			ID:            completed.ID,
			CompletedAt:   formatTime(completed.CompletedAt),
			Title:         s.Title,
			SportType:     s.SportType,
			TotalDuration: s.TotalDuration,
			AvgPower:      s.AvgPower,
			AvgHR:         s.AvgHR,
			AvgCadence:    s.AvgCadence,
			AvgSpeed:      s.AvgSpeed,
			Laps:          len(s.BlockSummaries),
		},
	}
	return json.Marshal(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
