package session

import (
	"math"
	"sync/atomic"
)

// DefaultFTP is used when no threshold is configured.
const DefaultFTP = 250

// ThresholdProvider supplies the reference power used to turn block
// intensities into watts.
type ThresholdProvider interface {
	FTP() int
}

// StaticThreshold is a ThresholdProvider that can be changed at runtime.
type StaticThreshold struct {
	ftp atomic.Int64
}

func NewStaticThreshold(ftp int) *StaticThreshold {
	t := &StaticThreshold{}
	t.Set(ftp)
	return t
}

func (t *StaticThreshold) FTP() int {
	return int(t.ftp.Load())
}

// Set updates the threshold. Non-positive values fall back to DefaultFTP.
func (t *StaticThreshold) Set(ftp int) {
	if ftp <= 0 {
		ftp = DefaultFTP
	}
	t.ftp.Store(int64(ftp))
}

// TargetPower converts a block's intensity to watts at ftp. Ramps use the
// midpoint of their start and end intensity.
func TargetPower(block WorkoutBlock, ftp int) int {
	var percent float64
	if block.Type == BlockRamp {
		percent = (valueOrZero(block.IntensityStart) + valueOrZero(block.IntensityEnd)) / 2
	} else {
		percent = valueOrZero(block.IntensityTarget)
	}
	return roundInt(percent * float64(ftp) / 100)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// roundInt rounds half up, so -0.5 becomes 0.
func roundInt(v float64) int {
	return int(math.Floor(v + 0.5))
}

func roundOneDecimal(v float64) float64 {
	return math.Round(v*10) / 10
}
