package ui

import (
	"fmt"
	"strings"

	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// formatMMSS formats seconds as MM:SS, or H:MM:SS from one hour.
func formatMMSS(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	if seconds >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func formatDuration(seconds int) string {
	minutes := seconds / 60
	if minutes >= 60 {
		if minutes%60 > 0 {
			return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
		}
		return fmt.Sprintf("%dh", minutes/60)
	}
	if minutes == 0 {
		return fmt.Sprintf("%d s", seconds)
	}
	return fmt.Sprintf("%d min", minutes)
}

// FormatMetrics renders the live metrics panel.
func FormatMetrics(snapshot live.Snapshot, hasData, synthetic bool) string {
	if !hasData {
		return "\n\n  [gray]Waiting for sensor data...[white]\n\n  Press [yellow]Y[white] for synthetic data."
	}

	var b strings.Builder
	b.WriteString("\n")
	if synthetic {
		b.WriteString("  [purple]SYNTHETIC DATA[white]\n\n")
	}
	fmt.Fprintf(&b, "  [blue]⚡[white] Power:      [yellow]%d[white] W\n\n", snapshot.Power)
	if snapshot.HeartRate != nil {
		fmt.Fprintf(&b, "  [red]♥[white] Heart Rate: [yellow]%d[white] bpm\n\n", *snapshot.HeartRate)
	} else {
		b.WriteString("  [red]♥[white] Heart Rate: [gray]--[white]\n\n")
	}
	fmt.Fprintf(&b, "  [cyan]↻[white] Cadence:    [yellow]%.0f[white] rpm\n\n", snapshot.Cadence)
	fmt.Fprintf(&b, "  [green]→[white] Speed:      [yellow]%.1f[white] km/h\n", snapshot.Speed)
	return b.String()
}

// FormatSensors renders one line per sensor kind.
func FormatSensors(statuses map[telemetry.SensorKind]telemetry.ConnectionStatus) string {
	var b strings.Builder
	b.WriteString("\n")
	for _, kind := range telemetry.AllKinds {
		stream, _ := telemetry.StreamForKind(kind)
		status := statuses[kind]
		if status == "" {
			status = telemetry.StatusDisconnected
		}
		fmt.Fprintf(&b, "  %-15s [%s]%s[white]\n", stream.DisplayName, statusColor(status), status)
	}
	return b.String()
}

func statusColor(status telemetry.ConnectionStatus) string {
	switch status {
	case telemetry.StatusConnected:
		return "green"
	case telemetry.StatusScanning, telemetry.StatusConnecting:
		return "yellow"
	case telemetry.StatusError:
		return "red"
	default:
		return "gray"
	}
}

// FormatSession renders the workout panel for state.
func FormatSession(state session.State, training session.Training, ftp int) string {
	switch state.Phase() {
	case session.PhaseIdle:
		return formatReady(training)
	case session.PhaseStopped:
		if state.FinalSummary != nil {
			return FormatSummary(*state.FinalSummary, ftp)
		}
		return "\n  [gray]Session discarded.[white]\n\n" + formatReady(training)
	default:
		return formatActive(state, ftp)
	}
}

func formatReady(training session.Training) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [yellow]%s[white]\n", training.Title)
	if training.Description != "" {
		fmt.Fprintf(&b, "  [gray]%s[white]\n", training.Description)
	}
	fmt.Fprintf(&b, "\n  [gray]Duration:[white] %s\n\n", formatDuration(training.TotalSeconds()))
	b.WriteString("  [gray]Press[white] [yellow]Space[white] [gray]to load the session[white]\n")
	return b.String()
}

func formatActive(state session.State, ftp int) string {
	var b strings.Builder
	b.WriteString("\n")
	if state.IsPaused {
		fmt.Fprintf(&b, "  [yellow]%s[white] [gray](PAUSED)[white]\n\n", state.Title)
	} else {
		fmt.Fprintf(&b, "  [yellow]%s[white]\n\n", state.Title)
	}

	total := state.TotalSeconds()
	fmt.Fprintf(&b, "  [gray]Elapsed:[white]   %s\n", formatMMSS(state.ElapsedTotalSeconds))
	fmt.Fprintf(&b, "  [gray]Remaining:[white] %s\n\n", formatMMSS(total-state.ElapsedTotalSeconds))

	if block, ok := state.CurrentBlock(); ok {
		fmt.Fprintf(&b, "  [cyan]%s[white] (%d/%d) [gray]%s[white]\n",
			block.Label, state.CurrentBlockIndex+1, len(state.Blocks), block.Type)
		fmt.Fprintf(&b, "  [gray]Block Time:[white] %s / %s\n",
			formatMMSS(block.DurationSeconds-state.RemainingBlockSeconds), formatMMSS(block.DurationSeconds))
		fmt.Fprintf(&b, "  [blue]⚡[white] Target:    [yellow]%d[white] W\n", session.TargetPower(block, ftp))

		avg := state.CurrentBlockAverages
		fmt.Fprintf(&b, "  [gray]Block avg:[white] %d W  %d rpm  %d bpm\n", avg.Power, avg.Cadence, avg.HeartRate)

		if next := state.CurrentBlockIndex + 1; next < len(state.Blocks) {
			nb := state.Blocks[next]
			fmt.Fprintf(&b, "\n  [gray]Next:[white] %s, %d W for %s\n",
				nb.Label, session.TargetPower(nb, ftp), formatDuration(nb.DurationSeconds))
		} else {
			b.WriteString("\n  [gray]Next:[white] [green]Finish![white]\n")
		}
	}

	avg := state.Averages
	fmt.Fprintf(&b, "\n  [gray]Session avg:[white] %d W  %d rpm  %.1f m/s  %d bpm\n",
		avg.Power, avg.Cadence, avg.Speed, avg.HeartRate)

	b.WriteString("\n  [gray]─────────────────────────[white]\n")
	if state.IsPaused {
		b.WriteString("  [yellow]Space[white] Resume  |  [yellow]N[white] Skip  |  [yellow]X[white] Finish  |  [yellow]D[white] Discard\n")
	} else {
		b.WriteString("  [yellow]Space[white] Pause  |  [yellow]N[white] Skip  |  [yellow]X[white] Finish  |  [yellow]D[white] Discard\n")
	}
	return b.String()
}

// FormatSummary renders a finished session with its training load.
func FormatSummary(summary session.Summary, ftp int) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [green]Finished:[white] [yellow]%s[white]\n\n", summary.Title)
	fmt.Fprintf(&b, "  [gray]Duration:[white]  %s\n", formatMMSS(summary.TotalDuration))
	fmt.Fprintf(&b, "  [gray]Avg Power:[white] %d W\n", summary.AvgPower)
	fmt.Fprintf(&b, "  [gray]Avg HR:[white]    %d bpm\n", summary.AvgHR)
	fmt.Fprintf(&b, "  [gray]Avg Cad:[white]   %d rpm\n", summary.AvgCadence)
	fmt.Fprintf(&b, "  [gray]Avg Speed:[white] %.1f m/s\n", summary.AvgSpeed)

	load := session.TrainingLoad(summary, ftp)
	fmt.Fprintf(&b, "  [gray]IF / TSS:[white]  %.2f / %.1f\n\n", load.IntensityFactor, load.TSS)

	for _, lap := range summary.BlockSummaries {
		fmt.Fprintf(&b, "  %-14s %s  %3d/%3d W  %3d bpm\n",
			lap.Label, formatMMSS(lap.DurationSeconds), lap.ActualPower, lap.TargetPower, lap.ActualHR)
	}
	b.WriteString("\n  [gray]Press[white] [yellow]Space[white] [gray]to start again[white]\n")
	return b.String()
}
