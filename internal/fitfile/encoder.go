// Package fitfile writes finished sessions as FIT activity files.
package fitfile

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/session"
)

// fitEpochOffset is the number of seconds between the Unix epoch and the FIT
// epoch, 1989-12-31T00:00:00Z.
const fitEpochOffset = 631065600

// Encode serializes summary as a FIT activity file ending at exportTimestamp.
// The output depends only on its arguments.
func Encode(summary session.Summary, exportTimestamp time.Time) []byte {
	w := newWriter()

	endTs := fitTimestamp(exportTimestamp)
	startTs := max(0, endTs-int64(summary.TotalDuration))
	elapsedMs := int64(summary.TotalDuration) * 1000
	sport, subSport := fitSport(summary.SportType)
	cycling := sport == sportCycling

	w.define(fileIDMessage)
	w.write(localFileID, endTs, manufacturerDevelopment, 0, 0, fileTypeActivity)

	if len(summary.BlockSummaries) > 0 {
		w.define(lapMessage(cycling))

		lapStart := startTs
		for _, lap := range summary.BlockSummaries {
			lapEnd := lapStart + int64(lap.DurationSeconds)
			lapMs := int64(lap.DurationSeconds) * 1000

			effort := int64(lap.ActualPower)
			if !cycling {
				effort = distanceCm(lap.DurationSeconds, summary.AvgSpeed)
			}
			w.write(localLap, lapEnd, lapStart, lapMs, lapMs, eventLap, eventTypeStop,
				sport, subSport, effort, int64(lap.ActualHR), int64(lap.ActualCadence))
			lapStart = lapEnd
		}
	}

	history := summary.History
	if len(history) > summary.TotalDuration {
		history = history[:max(0, summary.TotalDuration)]
	}
	if len(history) > 0 {
		w.define(recordMessage(cycling))

		var distance int64
		for i, s := range history {
			effort := int64(s.Power)
			if !cycling {
				distance += int64(math.Round(s.Speed * 100)) // one second at s.Speed, in cm
				effort = distance
			}
			hr := int64(0)
			if s.HeartRate != nil {
				hr = int64(*s.HeartRate)
			}
			// Cadence is truncated to whole rpm
			w.write(localRecord, startTs+int64(i), effort, hr, int64(s.Cadence), int64(math.Round(s.Speed*1000)))
		}
	}

	effort := int64(summary.AvgPower)
	if !cycling {
		effort = distanceCm(summary.TotalDuration, summary.AvgSpeed)
	}
	w.define(sessionMessage(cycling))
	w.write(localSession, endTs, startTs, elapsedMs, elapsedMs, eventSession, eventTypeStop,
		sport, subSport, effort, int64(summary.AvgHR), int64(summary.AvgCadence),
		0, int64(len(summary.BlockSummaries)))

	w.define(activityMessage)
	w.write(localActivity, endTs, elapsedMs, 1, activityManual, eventActivity, eventTypeStop)

	return w.bytes()
}

// Write encodes summary to out.
func Write(out io.Writer, summary session.Summary, exportTimestamp time.Time) error {
	if _, err := out.Write(Encode(summary, exportTimestamp)); err != nil {
		return fmt.Errorf("failed to write fit file: %w", err)
	}
	return nil
}

var unsafeFileNameChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// FileName derives a download name from a session title.
func FileName(title string) string {
	if title == "" {
		title = "session"
	}
	return strings.ToLower(unsafeFileNameChars.ReplaceAllString(title, "_")) + ".fit"
}

// fitTimestamp converts t to seconds since the FIT epoch, clamped at zero.
func fitTimestamp(t time.Time) int64 {
	unix := float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
	return max(0, int64(math.Round(unix-fitEpochOffset)))
}

func fitSport(sportType string) (sport, subSport int64) {
	switch sportType {
	case session.SportRunning:
		return sportRunning, subSportGeneric
	case session.SportSwimming:
		return sportSwimming, subSportLapSwimming
	default:
		return sportCycling, subSportGeneric
	}
}

// distanceCm integrates a constant speed (m/s) over seconds.
func distanceCm(seconds int, speed float64) int64 {
	return int64(math.Round(float64(seconds) * speed * 100))
}
