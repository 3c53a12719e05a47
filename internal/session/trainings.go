package session

import (
	"fmt"
)

// Training is a named workout definition. Blocks may carry a repeat count;
// Flatten expands them into the sequence the machine executes.
type Training struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Sport       string          `json:"sport"`
	Blocks      []TrainingBlock `json:"blocks"`
}

// TrainingBlock is a WorkoutBlock that may be repeated.
type TrainingBlock struct {
	WorkoutBlock
	Repeats int `json:"repeats,omitempty"`
}

// Flatten expands repeated blocks. A repeat count below 2 means once.
func (t Training) Flatten() []WorkoutBlock {
	var blocks []WorkoutBlock
	for _, b := range t.Blocks {
		n := max(1, b.Repeats)
		for i := 0; i < n; i++ {
			blocks = append(blocks, b.WorkoutBlock)
		}
	}
	return blocks
}

// TotalSeconds returns the nominal duration of the flattened training.
func (t Training) TotalSeconds() int {
	return TotalSeconds(t.Flatten())
}

func pct(v float64) *float64 {
	return &v
}

func steady(typ BlockType, seconds int, percent float64, label string) TrainingBlock {
	return TrainingBlock{WorkoutBlock: WorkoutBlock{
		Type:            typ,
		DurationSeconds: seconds,
		IntensityTarget: pct(percent),
		Label:           label,
	}}
}

func ramp(seconds int, from, to float64, label string) TrainingBlock {
	return TrainingBlock{WorkoutBlock: WorkoutBlock{
		Type:            BlockRamp,
		DurationSeconds: seconds,
		IntensityStart:  pct(from),
		IntensityEnd:    pct(to),
		Label:           label,
	}}
}

func repeat(n int, block TrainingBlock) TrainingBlock {
	block.Repeats = n
	return block
}

// Trainings are the built-in workouts.
var Trainings = []Training{
	{
		ID:          "1",
		Title:       "FTP Booster - Over-Unders",
		Description: "3 sets alternating between 105% and 95% of FTP to raise lactate threshold.",
		Sport:       SportCycling,
		Blocks: []TrainingBlock{
			steady(BlockWarmup, 600, 50, "Warm-up"),
			steady(BlockSteady, 300, 75, "Preparation"),
			steady(BlockInterval, 60, 105, "Over"),
			steady(BlockInterval, 60, 95, "Under"),
			steady(BlockInterval, 60, 105, "Over"),
			steady(BlockInterval, 60, 95, "Under"),
			steady(BlockInterval, 60, 105, "Over"),
			steady(BlockInterval, 60, 95, "Under"),
			steady(BlockInterval, 60, 105, "Over"),
			steady(BlockInterval, 60, 95, "Under"),
			steady(BlockCooldown, 600, 50, "Cool-down"),
		},
	},
	{
		ID:          "2",
		Title:       "Sprints & Explosiveness",
		Description: "Short all-out bursts to build neuromuscular power.",
		Sport:       SportCycling,
		Blocks: []TrainingBlock{
			steady(BlockWarmup, 900, 45, "Progressive Warm-up"),
			steady(BlockInterval, 15, 250, "All-out Sprint"),
			steady(BlockSteady, 285, 50, "Recovery"),
			steady(BlockInterval, 15, 250, "All-out Sprint"),
			steady(BlockSteady, 285, 50, "Recovery"),
			steady(BlockInterval, 15, 250, "All-out Sprint"),
			steady(BlockSteady, 285, 50, "Recovery"),
			steady(BlockCooldown, 600, 40, "Cool-down"),
		},
	},
	{
		ID:          "3",
		Title:       "Endurance with Ramps & Free Ride",
		Description: "Progressive ramps, steady endurance and a free ride segment.",
		Sport:       SportCycling,
		Blocks: []TrainingBlock{
			ramp(600, 40, 70, "Ramp Up Warm-up"),
			steady(BlockSteady, 600, 75, "Endurance Base"),
			ramp(300, 75, 95, "Threshold Build"),
			steady(BlockInterval, 120, 105, "Over Threshold"),
			ramp(300, 95, 75, "Threshold Reset"),
			{WorkoutBlock: WorkoutBlock{Type: BlockFree, DurationSeconds: 900, Label: "Free Ride / Integration"}},
			ramp(600, 60, 40, "Cool-down Ramp"),
		},
	},
	{
		ID:          "4",
		Title:       "Quick Spin",
		Description: "Short session for checking sensors and the recording pipeline.",
		Sport:       SportCycling,
		Blocks: []TrainingBlock{
			steady(BlockWarmup, 60, 50, "Warm-up"),
			repeat(3, steady(BlockInterval, 30, 90, "Effort")),
			{WorkoutBlock: WorkoutBlock{Type: BlockPause, DurationSeconds: 30, Label: "Rest"}},
			steady(BlockCooldown, 60, 45, "Cool-down"),
		},
	},
}

// TrainingByIndex returns the built-in training at index.
func TrainingByIndex(index int) (Training, error) {
	if index < 0 || index >= len(Trainings) {
		return Training{}, fmt.Errorf("training index %d out of range [0, %d)", index, len(Trainings))
	}
	return Trainings[index], nil
}
