package live

import (
	"math"
	"math/rand"

	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// Synthetic baselines and the half-width of the noise around them.
const (
	syntheticPower     = 200
	syntheticPowerJit  = 10
	syntheticCadence   = 85
	syntheticCadJit    = 3
	syntheticSpeed     = 30.0
	syntheticSpeedJit  = 1.0
	syntheticHeartRate = 140
	syntheticHRJit     = 5
)

// SyntheticUpdate draws one full update around the synthetic baselines.
// Power, cadence and heart rate are whole numbers in [base-jit, base+jit).
func SyntheticUpdate(rng *rand.Rand) telemetry.Update {
	power := syntheticPower + int(math.Floor(rng.Float64()*2*syntheticPowerJit-syntheticPowerJit))
	cadence := float64(syntheticCadence + int(math.Floor(rng.Float64()*2*syntheticCadJit-syntheticCadJit)))
	speed := syntheticSpeed + rng.Float64()*2*syntheticSpeedJit - syntheticSpeedJit
	hr := syntheticHeartRate + int(math.Floor(rng.Float64()*2*syntheticHRJit-syntheticHRJit))

	return telemetry.Update{
		Power:     &power,
		Cadence:   &cadence,
		Speed:     &speed,
		HeartRate: &hr,
	}
}
