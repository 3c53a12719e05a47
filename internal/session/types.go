package session

import (
	"time"
)

// BlockType is the kind of a workout block.
type BlockType string

const (
	BlockWarmup   BlockType = "WARMUP"
	BlockSteady   BlockType = "STEADY"
	BlockInterval BlockType = "INTERVAL"
	BlockCooldown BlockType = "COOLDOWN"
	BlockRamp     BlockType = "RAMP"
	BlockFree     BlockType = "FREE"
	BlockPause    BlockType = "PAUSE"
)

// Sport types understood by the activity file encoder. Anything else,
// including the empty string, is treated as cycling.
const (
	SportCycling  = "CYCLING"
	SportRunning  = "RUNNING"
	SportSwimming = "SWIMMING"
)

// WorkoutBlock is one segment of a flattened training. Intensities are
// percentages of the threshold; nil means not set.
type WorkoutBlock struct {
	Type            BlockType `json:"type"`
	DurationSeconds int       `json:"durationSeconds"`
	IntensityTarget *float64  `json:"intensityTarget,omitempty"`
	IntensityStart  *float64  `json:"intensityStart,omitempty"`
	IntensityEnd    *float64  `json:"intensityEnd,omitempty"`
	Label           string    `json:"label"`
}

// MetricSample is one merged telemetry reading taken while running. Speed is
// in m/s.
type MetricSample struct {
	Power     int       `json:"power"`
	Cadence   float64   `json:"cadence"`
	Speed     float64   `json:"speed"`
	HeartRate *int      `json:"heartRate,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Averages are rounded means: power, cadence and heart rate to the nearest
// integer, speed to one decimal.
type Averages struct {
	Power     int     `json:"power"`
	Cadence   int     `json:"cadence"`
	Speed     float64 `json:"speed"`
	HeartRate int     `json:"heartRate"`
}

// BlockSummary is an archived block. DurationSeconds is the time actually
// spent in the block.
type BlockSummary struct {
	Label           string    `json:"label"`
	DurationSeconds int       `json:"durationSeconds"`
	TargetPower     int       `json:"targetPower"`
	ActualPower     int       `json:"actualPower"`
	ActualCadence   int       `json:"actualCadence"`
	ActualHR        int       `json:"actualHR"`
	Type            BlockType `json:"type"`
}

// Summary is the immutable result of a finished session.
type Summary struct {
	Title          string         `json:"title"`
	SportType      string         `json:"sportType"`
	TotalDuration  int            `json:"totalDuration"`
	AvgPower       int            `json:"avgPower"`
	AvgHR          int            `json:"avgHR"`
	AvgCadence     int            `json:"avgCadence"`
	AvgSpeed       float64        `json:"avgSpeed"`
	BlockSummaries []BlockSummary `json:"blockSummaries"`
	History        []MetricSample `json:"history,omitempty"`
}

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePaused  Phase = "paused"
	PhaseRunning Phase = "running"
	PhaseStopped Phase = "stopped"
)

// State is the full session aggregate. Copies handed out by Machine.State
// share no slices with the machine.
type State struct {
	Title                 string         `json:"title"`
	SportType             string         `json:"sportType"`
	CurrentBlockIndex     int            `json:"currentBlockIndex"`
	RemainingBlockSeconds int            `json:"remainingBlockSeconds"`
	ElapsedTotalSeconds   int            `json:"elapsedTotalSeconds"`
	IsActive              bool           `json:"isActive"`
	IsPaused              bool           `json:"isPaused"`
	Blocks                []WorkoutBlock `json:"blocks"`
	History               []MetricSample `json:"-"`
	BlockSummaries        []BlockSummary `json:"blockSummaries"`
	Averages              Averages       `json:"averages"`
	CurrentBlockAverages  Averages       `json:"currentBlockAverages"`
	FinalSummary          *Summary       `json:"finalSummary,omitempty"`
	Discarded             bool           `json:"discarded,omitempty"`
}

// Phase derives the lifecycle position from the state flags.
func (s State) Phase() Phase {
	switch {
	case s.IsActive && s.IsPaused:
		return PhasePaused
	case s.IsActive:
		return PhaseRunning
	case s.FinalSummary != nil || s.Discarded:
		return PhaseStopped
	default:
		return PhaseIdle
	}
}

// CurrentBlock returns the block being executed, if any.
func (s State) CurrentBlock() (WorkoutBlock, bool) {
	if !s.IsActive || s.CurrentBlockIndex >= len(s.Blocks) {
		return WorkoutBlock{}, false
	}
	return s.Blocks[s.CurrentBlockIndex], true
}

// TotalSeconds is the nominal duration of the whole training.
func (s State) TotalSeconds() int {
	return TotalSeconds(s.Blocks)
}

// TotalSeconds sums the nominal durations of blocks.
func TotalSeconds(blocks []WorkoutBlock) int {
	total := 0
	for _, block := range blocks {
		total += block.DurationSeconds
	}
	return total
}

func (s State) clone() State {
	s.Blocks = append([]WorkoutBlock(nil), s.Blocks...)
	s.History = append([]MetricSample(nil), s.History...)
	s.BlockSummaries = append([]BlockSummary(nil), s.BlockSummaries...)
	if s.FinalSummary != nil {
		summary := s.FinalSummary.clone()
		s.FinalSummary = &summary
	}
	return s
}

func (s Summary) clone() Summary {
	s.BlockSummaries = append([]BlockSummary(nil), s.BlockSummaries...)
	s.History = append([]MetricSample(nil), s.History...)
	return s
}
