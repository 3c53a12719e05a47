package live

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/events"
	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

const DefaultSyntheticInterval = 1 * time.Second

// Aggregator merges partial updates from independent sensors into one
// snapshot. All sources, real or synthetic, go through Apply.
type Aggregator struct {
	logger            *log.Logger
	now               func() time.Time
	syntheticInterval time.Duration
	instantCadence    bool

	mu       sync.Mutex
	snapshot Snapshot
	received bool

	snapshotEvent *events.ChannelEvent[Snapshot]

	// Synthetic generator (protected by syntheticMu)
	syntheticMu   sync.Mutex
	syntheticStop chan struct{}
	syntheticWg   sync.WaitGroup

	rngMu sync.Mutex
	rng   *rand.Rand

	// Sensor link state (protected by statusMu)
	statusMu    sync.RWMutex
	status      map[telemetry.SensorKind]telemetry.ConnectionStatus
	statusEvent *events.CallbackEvent[telemetry.StatusChange]
}

type Option func(*Aggregator)

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithRand sets the random source of the synthetic generator.
func WithRand(rng *rand.Rand) Option {
	return func(a *Aggregator) { a.rng = rng }
}

func WithSyntheticInterval(d time.Duration) Option {
	return func(a *Aggregator) { a.syntheticInterval = d }
}

// WithInstantCadence makes cadence sources use the per-notification
// approximation instead of revolution deltas.
func WithInstantCadence() Option {
	return func(a *Aggregator) { a.instantCadence = true }
}

func NewAggregator(logger *log.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		panic("Aggregator: logger cannot be nil")
	}

	a := &Aggregator{
		logger:            logger,
		now:               time.Now,
		syntheticInterval: DefaultSyntheticInterval,
		snapshotEvent:     events.NewChannelEvent[Snapshot](true),
		status:            make(map[telemetry.SensorKind]telemetry.ConnectionStatus),
		statusEvent:       events.NewCallbackEvent[telemetry.StatusChange](false),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	for _, kind := range telemetry.AllKinds {
		a.status[kind] = telemetry.StatusDisconnected
	}
	return a
}

// Apply merges update into the snapshot. Empty updates are ignored.
func (a *Aggregator) Apply(update telemetry.Update) {
	if update.IsEmpty() {
		return
	}

	a.mu.Lock()
	a.snapshot = a.snapshot.merge(update, a.now())
	a.received = true
	snapshot := a.snapshot.clone()
	// Notify under mu so listeners see snapshots in merge order
	a.snapshotEvent.Notify(snapshot)
	a.mu.Unlock()
}

// Snapshot returns a copy of the current merged metrics.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshot.clone()
}

// HasData reports whether any update has been applied yet.
func (a *Aggregator) HasData() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.received
}

// ListenToSnapshots registers ch for every merged snapshot. The latest
// snapshot is replayed on registration. Returns an unregister function.
func (a *Aggregator) ListenToSnapshots(ch chan<- Snapshot) func() {
	return a.snapshotEvent.Listen(ch)
}

// Source returns a notification handler for one sensor stream. Each call
// returns a handler with its own decoder state.
func (a *Aggregator) Source(kind telemetry.SensorKind) func(buf []byte) {
	name := "Aggregator[" + string(kind) + "]"

	parse := func(buf []byte) (telemetry.Update, error) {
		return telemetry.Parse(kind, buf)
	}
	if kind == telemetry.KindCadence && !a.instantCadence {
		parse = telemetry.NewCadenceDecoder().Parse
	}

	return func(buf []byte) {
		defer go_func_utils.Recover(a.logger, name)

		update, err := parse(buf)
		if err != nil {
			a.logger.Printf("%s: Parse error: %v (raw: %v)", name, err, buf)
			return
		}
		a.Apply(update)
	}
}

// SetSynthetic starts or stops the synthetic generator.
func (a *Aggregator) SetSynthetic(on bool) {
	if !a.setSynthetic(on) {
		return
	}
	if on {
		a.logger.Printf("Aggregator: Synthetic mode enabled")
	} else {
		a.logger.Printf("Aggregator: Synthetic mode disabled")
	}
	a.statusEvent.Notify(telemetry.StatusChange{})
}

// setSynthetic returns whether the mode changed.
func (a *Aggregator) setSynthetic(on bool) bool {
	a.syntheticMu.Lock()
	defer a.syntheticMu.Unlock()

	running := a.syntheticStop != nil
	if on == running {
		return false
	}

	if on {
		stop := make(chan struct{})
		a.syntheticStop = stop
		a.syntheticWg.Add(1)
		go_func_utils.SafeGo(a.logger, "Aggregator", func() { a.runSynthetic(stop) })
	} else {
		close(a.syntheticStop)
		a.syntheticStop = nil
		a.syntheticWg.Wait()
	}
	return true
}

// IsSynthetic reports whether the synthetic generator is running.
func (a *Aggregator) IsSynthetic() bool {
	a.syntheticMu.Lock()
	defer a.syntheticMu.Unlock()
	return a.syntheticStop != nil
}

func (a *Aggregator) runSynthetic(stop <-chan struct{}) {
	defer a.syntheticWg.Done()

	ticker := time.NewTicker(a.syntheticInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.Apply(a.nextSynthetic())
		}
	}
}

func (a *Aggregator) nextSynthetic() telemetry.Update {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return SyntheticUpdate(a.rng)
}

// SetStatus records the link state of one sensor kind.
func (a *Aggregator) SetStatus(kind telemetry.SensorKind, status telemetry.ConnectionStatus, err error) {
	a.statusMu.Lock()
	prev := a.status[kind]
	a.status[kind] = status
	a.statusMu.Unlock()

	if prev == status && err == nil {
		return
	}
	if err != nil {
		a.logger.Printf("Aggregator: %s %s: %v", kind, status, err)
	} else {
		a.logger.Printf("Aggregator: %s %s", kind, status)
	}
	a.statusEvent.Notify(telemetry.StatusChange{Kind: kind, Status: status, Err: err})
}

// Status returns the link state of one sensor kind.
func (a *Aggregator) Status(kind telemetry.SensorKind) telemetry.ConnectionStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	if status, ok := a.status[kind]; ok {
		return status
	}
	return telemetry.StatusDisconnected
}

// Statuses returns a copy of every sensor's link state.
func (a *Aggregator) Statuses() map[telemetry.SensorKind]telemetry.ConnectionStatus {
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	out := make(map[telemetry.SensorKind]telemetry.ConnectionStatus, len(a.status))
	for kind, status := range a.status {
		out[kind] = status
	}
	return out
}

// ListenToStatus registers callback for link state changes. A change with an
// empty Kind signals that synthetic mode was toggled.
func (a *Aggregator) ListenToStatus(callback func(telemetry.StatusChange)) func() {
	return a.statusEvent.Listen(callback)
}

// AnyConnected is true when a sensor is connected or synthetic mode is on.
func (a *Aggregator) AnyConnected() bool {
	if a.IsSynthetic() {
		return true
	}
	a.statusMu.RLock()
	defer a.statusMu.RUnlock()
	for _, status := range a.status {
		if status == telemetry.StatusConnected {
			return true
		}
	}
	return false
}

// Shutdown stops the synthetic generator if running.
func (a *Aggregator) Shutdown() {
	a.SetSynthetic(false)
}
