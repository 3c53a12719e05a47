package session

import (
	"math"
)

// Load is the training stress of one finished session.
type Load struct {
	IntensityFactor float64 `json:"intensityFactor"`
	TSS             float64 `json:"tss"`
}

// TrainingLoad computes the intensity factor (average power / FTP) and
// training stress score (hours * IF^2 * 100) of summary. Both are rounded
// to two and one decimals. A non-positive ftp yields zero load.
func TrainingLoad(summary Summary, ftp int) Load {
	if ftp <= 0 || summary.TotalDuration <= 0 {
		return Load{}
	}
	intensity := float64(summary.AvgPower) / float64(ftp)
	hours := float64(summary.TotalDuration) / 3600
	return Load{
		IntensityFactor: math.Round(intensity*100) / 100,
		TSS:             math.Round(hours*intensity*intensity*100*10) / 10,
	}
}
