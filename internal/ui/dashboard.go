// Package ui is the terminal dashboard for a live session.
package ui

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/session"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// Controls is the session controller as seen by the dashboard.
type Controls interface {
	Start(title, sport string, blocks []session.WorkoutBlock) bool
	TogglePause() bool
	Skip() bool
	Stop() bool
	Discard() bool
	State() session.State
	ListenToState(ch chan<- session.State) func()
}

// LiveFeed is the aggregator as seen by the dashboard.
type LiveFeed interface {
	ListenToSnapshots(ch chan<- live.Snapshot) func()
	HasData() bool
	IsSynthetic() bool
	SetSynthetic(on bool)
	Statuses() map[telemetry.SensorKind]telemetry.ConnectionStatus
	ListenToStatus(callback func(telemetry.StatusChange)) func()
}

// DashboardArgs holds the arguments for creating a Dashboard.
type DashboardArgs struct {
	Controls  Controls
	Live      LiveFeed
	Threshold session.ThresholdProvider
	Training  session.Training
	Sport     string
	Logs      *LogTail
	Logger    *log.Logger
}

// Dashboard shows live metrics, session progress, sensor status and recent
// log lines, and maps keys onto session commands.
type Dashboard struct {
	controls  Controls
	live      LiveFeed
	threshold session.ThresholdProvider
	training  session.Training
	sport     string
	logs      *LogTail
	logger    *log.Logger

	app          *tview.Application
	metricsPanel *tview.TextView
	sessionPanel *tview.TextView
	sensorsPanel *tview.TextView
	logView      *tview.TextView

	// quit is closed by the Escape or Q key.
	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

func NewDashboard(args DashboardArgs) *Dashboard {
	if args.Logger == nil {
		panic("Dashboard: logger cannot be nil")
	}
	if args.Controls == nil || args.Live == nil || args.Threshold == nil {
		panic("Dashboard: collaborators cannot be nil")
	}
	if args.Logs == nil {
		args.Logs = NewLogTail(0)
	}
	if args.Sport == "" {
		args.Sport = args.Training.Sport
	}
	d := &Dashboard{
		controls:  args.Controls,
		live:      args.Live,
		threshold: args.Threshold,
		training:  args.Training,
		sport:     args.Sport,
		logs:      args.Logs,
		logger:    args.Logger,
		quit:      make(chan struct{}),
	}
	d.initWidgets()
	return d
}

func (d *Dashboard) initWidgets() {
	d.app = tview.NewApplication()

	// No SetChangedFunc with app.Draw: redraws go through QueueUpdateDraw
	d.metricsPanel = tview.NewTextView().SetDynamicColors(true)
	d.metricsPanel.SetBorder(true).SetTitle(" Metrics ")

	d.sessionPanel = tview.NewTextView().SetDynamicColors(true)
	d.sessionPanel.SetBorder(true).SetTitle(" Workout ")

	d.sensorsPanel = tview.NewTextView().SetDynamicColors(true)
	d.sensorsPanel.SetBorder(true).SetTitle(" Sensors ")

	d.logView = tview.NewTextView().SetDynamicColors(false).SetScrollable(false)
	d.logView.SetBorder(true).SetTitle(" Logs ")

	d.metricsPanel.SetText(FormatMetrics(live.Snapshot{}, false, false))
	d.sessionPanel.SetText(FormatSession(d.controls.State(), d.training, d.threshold.FTP()))
	d.sensorsPanel.SetText(FormatSensors(d.live.Statuses()))

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(d.metricsPanel, 0, 2, false).
		AddItem(d.sensorsPanel, 7, 0, false)

	top := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftColumn, 0, 1, false).
		AddItem(d.sessionPanel, 0, 2, true)

	help := tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	help.SetText("[yellow]Space[white] Start/Pause/Resume  |  [yellow]N[white] Skip  |  [yellow]X[white] Finish  |  [yellow]D[white] Discard  |  [yellow]Y[white] Synthetic  |  [yellow]Q[white] Quit")

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(top, 0, 3, true).
		AddItem(d.logView, 0, 1, false).
		AddItem(help, 1, 0, false)

	d.app.SetRoot(root, true)
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape {
			d.requestQuit()
			return nil
		}
		if event.Key() == tcell.KeyRune && d.handleRune(event.Rune()) {
			return nil
		}
		return event
	})
}

// handleRune applies the command bound to r. Returns false for unbound keys.
func (d *Dashboard) handleRune(r rune) bool {
	switch r {
	case ' ':
		switch d.controls.State().Phase() {
		case session.PhaseIdle, session.PhaseStopped:
			d.logger.Printf("UI: Loading %q", d.training.Title)
			d.controls.Start(d.training.Title, d.sport, d.training.Flatten())
		default:
			d.controls.TogglePause()
		}
	case 'n', 'N':
		d.controls.Skip()
	case 'x', 'X':
		d.controls.Stop()
	case 'd', 'D':
		d.controls.Discard()
	case 'y', 'Y':
		on := !d.live.IsSynthetic()
		d.logger.Printf("UI: Synthetic data %v", on)
		d.live.SetSynthetic(on)
	case 'q', 'Q':
		d.requestQuit()
	default:
		return false
	}
	return true
}

// requestQuit finishes an active session so its summary is stored, then
// asks Run to return.
func (d *Dashboard) requestQuit() {
	d.quitOnce.Do(func() {
		d.logger.Printf("UI: Quit requested")
		switch d.controls.State().Phase() {
		case session.PhaseRunning, session.PhasePaused:
			d.controls.Stop()
		}
		close(d.quit)
	})
}

// Run blocks until the user quits or ctx is cancelled.
func (d *Dashboard) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		d.wg.Wait()
	}()

	d.wg.Add(1)
	go_func_utils.SafeGo(d.logger, "Dashboard", func() {
		defer d.wg.Done()
		d.listen(ctx)
	})

	d.wg.Add(1)
	go_func_utils.SafeGo(d.logger, "Dashboard", func() {
		defer d.wg.Done()
		select {
		case <-ctx.Done():
			d.requestQuit()
		case <-d.quit:
		}
		// queued so a stop issued before Run has started is not lost
		d.app.QueueUpdate(d.app.Stop)
	})

	return d.app.Run()
}

func (d *Dashboard) listen(ctx context.Context) {
	states := make(chan session.State, 4)
	defer d.controls.ListenToState(states)()

	snapshots := make(chan live.Snapshot, 4)
	defer d.live.ListenToSnapshots(snapshots)()

	statusChanged := make(chan struct{}, 1)
	defer d.live.ListenToStatus(func(telemetry.StatusChange) {
		select {
		case statusChanged <- struct{}{}:
		default:
		}
	})()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	var logVersion uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.quit:
			return

		case state := <-states:
			text := FormatSession(state, d.training, d.threshold.FTP())
			d.app.QueueUpdateDraw(func() { d.sessionPanel.SetText(text) })

		case snap := <-snapshots:
			text := FormatMetrics(snap, true, d.live.IsSynthetic())
			d.app.QueueUpdateDraw(func() { d.metricsPanel.SetText(text) })

		case <-statusChanged:
			text := FormatSensors(d.live.Statuses())
			d.app.QueueUpdateDraw(func() { d.sensorsPanel.SetText(text) })

		case <-ticker.C:
			_, version := d.logs.Tail(0)
			if version == logVersion {
				continue
			}
			logVersion = version
			d.app.QueueUpdateDraw(func() {
				_, _, _, height := d.logView.GetInnerRect()
				lines, _ := d.logs.Tail(max(height, 1))
				d.logView.SetText(strings.Join(lines, "\n"))
			})
		}
	}
}
