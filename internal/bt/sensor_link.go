package bt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
	"github.com/lowaak/smart-trainer/live-session/internal/live"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

// DefaultConnectTimeout bounds the wait for a link after Connect.
const DefaultConnectTimeout = 10 * time.Second

// DevicePreferences remembers which device served each sensor kind.
type DevicePreferences interface {
	PreferredDevice(ctx context.Context, kind telemetry.SensorKind) (string, error)
	SetPreferredDevice(ctx context.Context, kind telemetry.SensorKind, address string) error
}

// LinkOption configures a SensorLink.
type LinkOption func(*SensorLink)

// WithDevicePreferences makes the link try the remembered device for each
// stream first and record the device it ends up using.
func WithDevicePreferences(prefs DevicePreferences) LinkOption {
	return func(l *SensorLink) { l.prefs = prefs }
}

// SensorLink scans for every known sensor stream, connects to the devices
// offering them and forwards their notifications to a sink. Link state is
// reported per sensor kind.
type SensorLink struct {
	radio          Radio
	sink           live.SensorSink
	logger         *log.Logger
	scanTimeout    time.Duration
	connectTimeout time.Duration
	prefs          DevicePreferences

	mu          sync.Mutex
	kindsByAddr map[string][]telemetry.SensorKind
	connected   []Device

	unsubscribe  func()
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewSensorLink(radio Radio, sink live.SensorSink, logger *log.Logger, scanTimeout time.Duration, opts ...LinkOption) *SensorLink {
	if radio == nil {
		panic("SensorLink: radio cannot be nil")
	}
	if sink == nil {
		panic("SensorLink: sink cannot be nil")
	}
	if logger == nil {
		panic("SensorLink: logger cannot be nil")
	}
	l := &SensorLink{
		radio:          radio,
		sink:           sink,
		logger:         logger,
		scanTimeout:    scanTimeout,
		connectTimeout: DefaultConnectTimeout,
		kindsByAddr:    make(map[string][]telemetry.SensorKind),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.unsubscribe = radio.ListenToConnections(l.onConnectionEvent)
	return l
}

// Start runs discovery and subscription on a background goroutine.
func (l *SensorLink) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go_func_utils.SafeGo(l.logger, "SensorLink", func() {
		defer l.wg.Done()
		l.Run(ctx)
	})
}

// Run scans once, then connects each stream to the preferred device, or
// the first device offering it. Streams with no device end in Disconnected.
func (l *SensorLink) Run(ctx context.Context) {
	streams := telemetry.Streams()
	for _, s := range streams {
		l.sink.SetStatus(s.Kind, telemetry.StatusScanning, nil)
	}

	scanCtx, cancel := context.WithTimeout(ctx, l.scanTimeout)
	devices, err := l.radio.Scan(scanCtx, telemetry.ServiceUUIDs())
	cancel()
	if err != nil {
		l.logger.Printf("SensorLink: Scan failed: %v", err)
		for _, s := range streams {
			l.sink.SetStatus(s.Kind, telemetry.StatusError, err)
		}
		return
	}

	for _, s := range streams {
		if ctx.Err() != nil {
			return
		}
		device := l.pick(ctx, devices, s)
		if device == nil {
			l.logger.Printf("SensorLink: No device offers %s", s.DisplayName)
			l.sink.SetStatus(s.Kind, telemetry.StatusDisconnected, nil)
			continue
		}
		if err := l.subscribe(device, s); err != nil {
			l.logger.Printf("SensorLink: %s via %s failed: %v", s.DisplayName, device.AddressString(), err)
			l.sink.SetStatus(s.Kind, telemetry.StatusError, err)
			continue
		}
		l.sink.SetStatus(s.Kind, telemetry.StatusConnected, nil)
		l.remember(ctx, s.Kind, device.AddressString())
	}
}

func (l *SensorLink) pick(ctx context.Context, devices []Device, stream telemetry.Stream) Device {
	if l.prefs != nil {
		address, err := l.prefs.PreferredDevice(ctx, stream.Kind)
		if err != nil {
			l.logger.Printf("SensorLink: Preferred device lookup for %s failed: %v", stream.DisplayName, err)
		}
		for _, d := range devices {
			if address != "" && d.AddressString() == address && d.HasServiceUUID(stream.ServiceUUID) {
				return d
			}
		}
	}
	return firstOffering(devices, stream.ServiceUUID)
}

func (l *SensorLink) remember(ctx context.Context, kind telemetry.SensorKind, address string) {
	if l.prefs == nil {
		return
	}
	if err := l.prefs.SetPreferredDevice(ctx, kind, address); err != nil {
		l.logger.Printf("SensorLink: Failed to remember %s for %s: %v", address, kind, err)
	}
}

func firstOffering(devices []Device, serviceUUID string) Device {
	for _, d := range devices {
		if d.HasServiceUUID(serviceUUID) {
			return d
		}
	}
	return nil
}

func (l *SensorLink) subscribe(device Device, stream telemetry.Stream) error {
	l.sink.SetStatus(stream.Kind, telemetry.StatusConnecting, nil)

	if !device.IsConnected() {
		l.logger.Printf("SensorLink: Connecting to %s (%s) for %s",
			device.LocalName(), device.AddressString(), stream.DisplayName)
		if err := l.radio.Connect(device); err != nil {
			return fmt.Errorf("failed to initiate connection: %w", err)
		}
		if err := device.WaitForConnection(l.connectTimeout); err != nil {
			return fmt.Errorf("connection timeout: %w", err)
		}
		l.mu.Lock()
		l.connected = append(l.connected, device)
		l.mu.Unlock()
	}

	if err := device.EnableNotifications(stream.ServiceUUID, stream.CharacteristicUUID, l.sink.Source(stream.Kind)); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}

	l.mu.Lock()
	l.kindsByAddr[device.AddressString()] = append(l.kindsByAddr[device.AddressString()], stream.Kind)
	l.mu.Unlock()

	l.logger.Printf("SensorLink: Subscribed to %s on %s", stream.DisplayName, device.AddressString())
	return nil
}

// onConnectionEvent marks every stream of a dropped device as disconnected.
func (l *SensorLink) onConnectionEvent(e ConnectionEvent) {
	if e.Connected {
		return
	}
	l.mu.Lock()
	kinds := l.kindsByAddr[e.Address]
	delete(l.kindsByAddr, e.Address)
	l.mu.Unlock()

	for _, kind := range kinds {
		l.sink.SetStatus(kind, telemetry.StatusDisconnected, nil)
	}
}

// Shutdown stops discovery and disconnects every device the link connected.
// Safe to call multiple times.
func (l *SensorLink) Shutdown() {
	l.shutdownOnce.Do(func() {
		if l.cancel != nil {
			l.cancel()
		}
		l.wg.Wait()
		l.unsubscribe()

		l.mu.Lock()
		devices := l.connected
		l.connected = nil
		kinds := l.kindsByAddr
		l.kindsByAddr = make(map[string][]telemetry.SensorKind)
		l.mu.Unlock()

		for _, d := range devices {
			if err := l.radio.Disconnect(d); err != nil {
				l.logger.Printf("SensorLink: Error disconnecting %s: %v", d.AddressString(), err)
			}
		}
		for _, ks := range kinds {
			for _, kind := range ks {
				l.sink.SetStatus(kind, telemetry.StatusDisconnected, nil)
			}
		}
	})
}
