package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/events"
	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/live"
)

const (
	DefaultTickInterval = 1 * time.Second
	saveTimeout         = 10 * time.Second

	kmhPerMps = 3.6
)

// MetricsFeed is the merged live metrics stream a session samples from.
type MetricsFeed interface {
	ListenToSnapshots(ch chan<- live.Snapshot) func()
}

// SummarySink persists finished sessions. It returns the assigned id and the
// canonical completion time.
type SummarySink interface {
	Save(ctx context.Context, summary Summary) (id string, completedAt time.Time, err error)
}

// Completed is published once per finished (not discarded) session.
type Completed struct {
	ID          string
	CompletedAt time.Time
	Summary     Summary
}

// commandKind represents commands sent to the controller goroutine
type commandKind int

const (
	cmdStart commandKind = iota
	cmdResume
	cmdPause
	cmdTogglePause
	cmdSkip
	cmdStop
	cmdDiscard
)

func (k commandKind) String() string {
	switch k {
	case cmdStart:
		return "start"
	case cmdResume:
		return "resume"
	case cmdPause:
		return "pause"
	case cmdTogglePause:
		return "toggle pause"
	case cmdSkip:
		return "skip"
	case cmdStop:
		return "stop"
	case cmdDiscard:
		return "discard"
	default:
		return "unknown"
	}
}

type command struct {
	kind   commandKind
	title  string
	sport  string
	blocks []WorkoutBlock
	reply  chan bool
}

// Controller owns one Machine and is the only code that mutates it. Control
// commands, ticks and live samples are all handled on one goroutine.
type Controller struct {
	logger       *log.Logger
	machine      *Machine
	feed         MetricsFeed
	sink         SummarySink
	tickInterval time.Duration
	now          func() time.Time

	stateEvent     *events.ChannelEvent[State]
	completedEvent *events.CallbackEvent[Completed]

	// Goroutine management
	cmdChan      chan command
	doneChan     chan struct{} // Closed to signal shutdown
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

type ControllerOption func(*Controller)

// WithSummarySink stores every completed session in sink.
func WithSummarySink(sink SummarySink) ControllerOption {
	return func(c *Controller) { c.sink = sink }
}

func WithTickInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.tickInterval = d }
}

// WithControllerClock replaces time.Now for sample timestamps and for the
// completion time when no sink is configured.
func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func NewController(threshold ThresholdProvider, feed MetricsFeed, logger *log.Logger, opts ...ControllerOption) *Controller {
	if threshold == nil {
		panic("Controller: threshold cannot be nil")
	}
	if feed == nil {
		panic("Controller: feed cannot be nil")
	}
	if logger == nil {
		panic("Controller: logger cannot be nil")
	}

	c := &Controller{
		logger:         logger,
		machine:        NewMachine(threshold),
		feed:           feed,
		tickInterval:   DefaultTickInterval,
		now:            time.Now,
		stateEvent:     events.NewChannelEvent[State](true),
		completedEvent: events.NewCallbackEvent[Completed](false),
		cmdChan:        make(chan command),
		doneChan:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.stateEvent.Notify(c.machine.State())

	c.wg.Add(1)
	go_func_utils.SafeGo(logger, "Controller", func() { c.run() })

	return c
}

// Start begins a paused session over a flattened block list.
func (c *Controller) Start(title, sport string, blocks []WorkoutBlock) bool {
	return c.send(command{kind: cmdStart, title: title, sport: sport, blocks: blocks})
}

func (c *Controller) Resume() bool      { return c.send(command{kind: cmdResume}) }
func (c *Controller) Pause() bool       { return c.send(command{kind: cmdPause}) }
func (c *Controller) TogglePause() bool { return c.send(command{kind: cmdTogglePause}) }
func (c *Controller) Skip() bool        { return c.send(command{kind: cmdSkip}) }
func (c *Controller) Stop() bool        { return c.send(command{kind: cmdStop}) }
func (c *Controller) Discard() bool     { return c.send(command{kind: cmdDiscard}) }

// State returns the most recently published state.
func (c *Controller) State() State {
	state, _ := c.stateEvent.Latest()
	return state
}

// ListenToState registers ch for every state change, starting with the
// current state. Returns an unregister function.
func (c *Controller) ListenToState(ch chan<- State) func() {
	return c.stateEvent.Listen(ch)
}

// ListenToCompleted registers callback for finished sessions. It runs on the
// controller goroutine and must not call back into the controller.
func (c *Controller) ListenToCompleted(callback func(Completed)) func() {
	return c.completedEvent.Listen(callback)
}

// Shutdown stops the controller goroutine. An active session is abandoned
// without a summary. Safe to call multiple times.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		c.logger.Printf("Controller: Shutting down")
		close(c.doneChan)
		c.wg.Wait()
		c.logger.Printf("Controller: Shutdown complete")
	})
}

func (c *Controller) send(cmd command) bool {
	cmd.reply = make(chan bool, 1)
	select {
	case c.cmdChan <- cmd:
	case <-c.doneChan:
		return false
	}
	select {
	case applied := <-cmd.reply:
		return applied
	case <-c.doneChan:
		return false
	}
}

// sessionResources is owned by the controller goroutine.
type sessionResources struct {
	samples     chan live.Snapshot
	unsubscribe func()
	latest      live.Snapshot
	hasLatest   bool
}

// release drops the live feed subscription. Safe to call repeatedly.
func (r *sessionResources) release() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
	*r = sessionResources{}
}

func (c *Controller) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.tickInterval)
	ticker.Stop() // Start stopped, reset on resume

	var res sessionResources
	defer func() {
		ticker.Stop()
		res.release()
	}()

	for {
		select {
		case <-c.doneChan:
			c.logger.Printf("Controller: Goroutine exiting")
			return

		case cmd := <-c.cmdChan:
			applied := c.handleCommand(cmd, ticker, &res)
			cmd.reply <- applied

		case snap := <-res.samples:
			res.latest = snap
			res.hasLatest = true

		case <-ticker.C:
			// The latest merged snapshot is this second's sample
			if res.hasLatest {
				c.machine.Ingest(sampleFromSnapshot(res.latest, c.now()))
			}
			c.machine.Tick()
			c.afterMutation(ticker, &res)
		}
	}
}

func (c *Controller) handleCommand(cmd command, ticker *time.Ticker, res *sessionResources) bool {
	var applied bool
	switch cmd.kind {
	case cmdStart:
		applied = c.machine.Start(cmd.title, cmd.sport, cmd.blocks)
		if applied {
			res.release()
			res.samples = make(chan live.Snapshot, 16)
			res.unsubscribe = c.feed.ListenToSnapshots(res.samples)
			c.logger.Printf("Controller: Session '%s' started (%d blocks, %ds)",
				cmd.title, len(cmd.blocks), TotalSeconds(cmd.blocks))
		}
	case cmdResume:
		applied = c.machine.Resume()
		if applied {
			ticker.Reset(c.tickInterval)
		}
	case cmdPause:
		applied = c.machine.Pause()
		if applied {
			ticker.Stop()
		}
	case cmdTogglePause:
		if c.machine.Phase() == PhasePaused {
			applied = c.machine.Resume()
			if applied {
				ticker.Reset(c.tickInterval)
			}
		} else {
			applied = c.machine.Pause()
			if applied {
				ticker.Stop()
			}
		}
	case cmdSkip:
		applied = c.machine.Skip()
	case cmdStop:
		applied = c.machine.Stop()
	case cmdDiscard:
		applied = c.machine.Discard()
	}

	if !applied {
		c.logger.Printf("Controller: Ignoring %s in phase %s", cmd.kind, c.machine.Phase())
		return false
	}
	c.logger.Printf("Controller: %s -> %s", cmd.kind, c.machine.Phase())
	c.afterMutation(ticker, res)
	return true
}

// afterMutation publishes the new state and, when the session has just
// ended, releases its resources and hands off the summary.
func (c *Controller) afterMutation(ticker *time.Ticker, res *sessionResources) {
	state := c.machine.State()
	ended := !state.IsActive && res.samples != nil

	if ended {
		ticker.Stop()
		res.release()
	}
	c.stateEvent.Notify(state)

	if ended && state.FinalSummary != nil {
		c.complete(*state.FinalSummary)
	}
}

func (c *Controller) complete(summary Summary) {
	completed := Completed{Summary: summary, CompletedAt: c.now()}

	if c.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		id, completedAt, err := c.sink.Save(ctx, summary)
		cancel()
		if err != nil {
			c.logger.Printf("Controller: Failed to save session '%s': %v", summary.Title, err)
		} else {
			completed.ID = id
			completed.CompletedAt = completedAt
		}
	}

	c.logger.Printf("Controller: Session '%s' complete (%ds, %d blocks, avg %dW)",
		summary.Title, summary.TotalDuration, len(summary.BlockSummaries), summary.AvgPower)
	c.completedEvent.Notify(completed)
}

// sampleFromSnapshot converts live speed (km/h, as trainers report it) to
// the m/s carried by samples and the activity file.
func sampleFromSnapshot(snap live.Snapshot, t time.Time) MetricSample {
	sample := MetricSample{
		Power:     snap.Power,
		Cadence:   snap.Cadence,
		Speed:     snap.Speed / kmhPerMps,
		Timestamp: t,
	}
	if snap.HeartRate != nil {
		hr := *snap.HeartRate
		sample.HeartRate = &hr
	}
	return sample
}
