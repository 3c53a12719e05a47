package live

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// SensorSink receives raw notifications and link state from a sensor source.
type SensorSink interface {
	Source(kind telemetry.SensorKind) func(buf []byte)
	SetStatus(kind telemetry.SensorKind, status telemetry.ConnectionStatus, err error)
}

// MockSensors pretends to be one sensor of every kind, emitting wire-format
// notifications so the decoders run exactly as with hardware.
type MockSensors struct {
	logger   *log.Logger
	sink     SensorSink
	interval time.Duration

	mu       sync.Mutex
	rng      *rand.Rand
	crank    telemetry.CrankCounter
	handlers map[telemetry.SensorKind]func([]byte)

	doneChan     chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewMockSensors(logger *log.Logger, sink SensorSink, interval time.Duration, rng *rand.Rand) *MockSensors {
	if logger == nil {
		panic("MockSensors: logger cannot be nil")
	}
	if sink == nil {
		panic("MockSensors: sink cannot be nil")
	}
	if interval <= 0 {
		interval = DefaultSyntheticInterval
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	m := &MockSensors{
		logger:   logger,
		sink:     sink,
		interval: interval,
		rng:      rng,
		handlers: make(map[telemetry.SensorKind]func([]byte)),
		doneChan: make(chan struct{}),
	}
	for _, kind := range telemetry.AllKinds {
		m.handlers[kind] = sink.Source(kind)
	}
	return m
}

// Start "connects" every mock sensor and begins emitting notifications.
func (m *MockSensors) Start() {
	m.startOnce.Do(func() {
		for _, kind := range telemetry.AllKinds {
			m.sink.SetStatus(kind, telemetry.StatusConnecting, nil)
			m.sink.SetStatus(kind, telemetry.StatusConnected, nil)
		}

		m.wg.Add(1)
		go_func_utils.SafeGo(m.logger, "MockSensors", func() { m.run() })
		m.logger.Printf("MockSensors: Started (interval %v)", m.interval)
	})
}

func (m *MockSensors) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.doneChan:
			return
		case <-ticker.C:
			m.TriggerAll()
		}
	}
}

// TriggerAll emits one notification per sensor kind.
func (m *MockSensors) TriggerAll() {
	m.mu.Lock()
	values := SyntheticUpdate(m.rng)
	buffers := map[telemetry.SensorKind][]byte{
		telemetry.KindHeartRate:  telemetry.EncodeHeartRate(*values.HeartRate),
		telemetry.KindCadence:    m.crank.Advance(*values.Cadence, m.interval.Seconds()),
		telemetry.KindPower:      telemetry.EncodePower(*values.Power),
		telemetry.KindIndoorBike: telemetry.EncodeIndoorBike(*values.Speed, *values.Cadence, *values.Power),
	}
	m.mu.Unlock()

	for _, kind := range telemetry.AllKinds {
		m.handlers[kind](buffers[kind])
	}
}

// Shutdown stops emitting and marks every mock sensor disconnected.
// Safe to call multiple times.
func (m *MockSensors) Shutdown() {
	m.shutdownOnce.Do(func() {
		close(m.doneChan)
		m.wg.Wait()
		for _, kind := range telemetry.AllKinds {
			m.sink.SetStatus(kind, telemetry.StatusDisconnected, nil)
		}
		m.logger.Printf("MockSensors: Shutdown complete")
	})
}
