package bt

import (
	"bytes"
	"context"
	"errors"
	"log"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/live-session/internal/events"
	"github.com/lowaak/smart-trainer/live-session/internal/telemetry"
)

type fakeDevice struct {
	address  string
	services []string

	mu         sync.Mutex
	connected  bool
	notifyErr  error
	callbacks  map[string]func([]byte)
	neverLinks bool
}

func newFakeDevice(address string, services ...string) *fakeDevice {
	return &fakeDevice{address: address, services: services, callbacks: make(map[string]func([]byte))}
}

func (d *fakeDevice) AddressString() string  { return d.address }
func (d *fakeDevice) LocalName() string      { return "Fake " + d.address }
func (d *fakeDevice) RSSI() int16            { return -60 }
func (d *fakeDevice) ServiceUUIDs() []string { return d.services }
func (d *fakeDevice) HasServiceUUID(uuid string) bool {
	return slices.Contains(d.services, uuid)
}

func (d *fakeDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *fakeDevice) WaitForConnection(time.Duration) error {
	if !d.IsConnected() {
		return errors.New("timed out")
	}
	return nil
}

func (d *fakeDevice) EnableNotifications(_, characteristicUUID string, callback func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.notifyErr != nil {
		return d.notifyErr
	}
	d.callbacks[characteristicUUID] = callback
	return nil
}

func (d *fakeDevice) notify(characteristicUUID string, buf []byte) {
	d.mu.Lock()
	cb := d.callbacks[characteristicUUID]
	d.mu.Unlock()
	cb(buf)
}

type fakeRadio struct {
	devices []Device
	scanErr error

	mu           sync.Mutex
	connects     int
	disconnected []string
	events       *events.CallbackEvent[ConnectionEvent]
}

func newFakeRadio(devices ...Device) *fakeRadio {
	return &fakeRadio{devices: devices, events: events.NewCallbackEvent[ConnectionEvent](false)}
}

func (r *fakeRadio) Scan(ctx context.Context, _ []string) ([]Device, error) {
	return r.devices, r.scanErr
}

func (r *fakeRadio) Connect(device Device) error {
	r.mu.Lock()
	r.connects++
	r.mu.Unlock()
	d := device.(*fakeDevice)
	if d.neverLinks {
		return nil
	}
	d.mu.Lock()
	d.connected = true
	d.mu.Unlock()
	return nil
}

func (r *fakeRadio) Disconnect(device Device) error {
	r.mu.Lock()
	r.disconnected = append(r.disconnected, device.AddressString())
	r.mu.Unlock()
	return nil
}

func (r *fakeRadio) ListenToConnections(callback func(ConnectionEvent)) func() {
	return r.events.Listen(callback)
}

type statusRecord struct {
	kind   telemetry.SensorKind
	status telemetry.ConnectionStatus
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []statusRecord
	received map[telemetry.SensorKind][][]byte
}

func newRecordingSink() *recordingSink {
	return &recordingSink{received: make(map[telemetry.SensorKind][][]byte)}
}

func (s *recordingSink) Source(kind telemetry.SensorKind) func([]byte) {
	return func(buf []byte) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.received[kind] = append(s.received[kind], buf)
	}
}

func (s *recordingSink) SetStatus(kind telemetry.SensorKind, status telemetry.ConnectionStatus, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, statusRecord{kind, status})
}

func (s *recordingSink) last(kind telemetry.SensorKind) telemetry.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.statuses) - 1; i >= 0; i-- {
		if s.statuses[i].kind == kind {
			return s.statuses[i].status
		}
	}
	return ""
}

func (s *recordingSink) history(kind telemetry.SensorKind) []telemetry.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []telemetry.ConnectionStatus
	for _, r := range s.statuses {
		if r.kind == kind {
			out = append(out, r.status)
		}
	}
	return out
}

func newLogger() *log.Logger { return log.New(&bytes.Buffer{}, "", 0) }

func TestSensorLink_SubscribesEveryOfferedStream(t *testing.T) {
	trainer := newFakeDevice("AA", telemetry.ServiceUUIDFTMS, telemetry.ServiceUUIDCyclingPower)
	strap := newFakeDevice("BB", telemetry.ServiceUUIDHeartRate)
	radio := newFakeRadio(trainer, strap)
	sink := newRecordingSink()

	link := NewSensorLink(radio, sink, newLogger(), time.Second)
	link.Run(context.Background())

	assert.Equal(t, []telemetry.ConnectionStatus{
		telemetry.StatusScanning, telemetry.StatusConnecting, telemetry.StatusConnected,
	}, sink.history(telemetry.KindIndoorBike))
	assert.Equal(t, telemetry.StatusConnected, sink.last(telemetry.KindHeartRate))
	assert.Equal(t, telemetry.StatusConnected, sink.last(telemetry.KindPower))
	assert.Equal(t, telemetry.StatusDisconnected, sink.last(telemetry.KindCadence))

	// The trainer is connected once for both of its streams
	assert.Equal(t, 2, radio.connects)

	trainer.notify(telemetry.CharUUIDIndoorBikeData, []byte{0x44, 0x00})
	strap.notify(telemetry.CharUUIDHeartRateMeasurement, []byte{0x00, 0x8C})
	assert.Equal(t, [][]byte{{0x44, 0x00}}, sink.received[telemetry.KindIndoorBike])
	assert.Equal(t, [][]byte{{0x00, 0x8C}}, sink.received[telemetry.KindHeartRate])
}

type memoryPreferences struct {
	mu        sync.Mutex
	addresses map[telemetry.SensorKind]string
}

func (p *memoryPreferences) PreferredDevice(_ context.Context, kind telemetry.SensorKind) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addresses[kind], nil
}

func (p *memoryPreferences) SetPreferredDevice(_ context.Context, kind telemetry.SensorKind, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addresses[kind] = address
	return nil
}

func TestSensorLink_PrefersRememberedDevice(t *testing.T) {
	first := newFakeDevice("AA", telemetry.ServiceUUIDHeartRate)
	second := newFakeDevice("BB", telemetry.ServiceUUIDHeartRate)
	trainer := newFakeDevice("CC", telemetry.ServiceUUIDFTMS)
	radio := newFakeRadio(first, second, trainer)
	prefs := &memoryPreferences{addresses: map[telemetry.SensorKind]string{
		telemetry.KindHeartRate: "BB",
		// gone since the last session
		telemetry.KindIndoorBike: "DD",
	}}

	link := NewSensorLink(radio, newRecordingSink(), newLogger(), time.Second, WithDevicePreferences(prefs))
	link.Run(context.Background())

	assert.False(t, first.IsConnected())
	assert.True(t, second.IsConnected())
	assert.True(t, trainer.IsConnected())
	assert.Equal(t, map[telemetry.SensorKind]string{
		telemetry.KindHeartRate:  "BB",
		telemetry.KindIndoorBike: "CC",
	}, prefs.addresses)
}

func TestSensorLink_ScanError(t *testing.T) {
	radio := newFakeRadio()
	radio.scanErr = errors.New("adapter off")
	sink := newRecordingSink()

	NewSensorLink(radio, sink, newLogger(), time.Second).Run(context.Background())

	for _, kind := range telemetry.AllKinds {
		assert.Equal(t, telemetry.StatusError, sink.last(kind), kind)
	}
}

func TestSensorLink_ConnectTimeoutReportsError(t *testing.T) {
	strap := newFakeDevice("BB", telemetry.ServiceUUIDHeartRate)
	strap.neverLinks = true
	sink := newRecordingSink()

	NewSensorLink(newFakeRadio(strap), sink, newLogger(), time.Second).Run(context.Background())

	assert.Equal(t, telemetry.StatusError, sink.last(telemetry.KindHeartRate))
}

func TestSensorLink_NotificationErrorReportsError(t *testing.T) {
	strap := newFakeDevice("BB", telemetry.ServiceUUIDHeartRate)
	strap.notifyErr = errors.New("gatt failure")
	sink := newRecordingSink()

	NewSensorLink(newFakeRadio(strap), sink, newLogger(), time.Second).Run(context.Background())

	assert.Equal(t, telemetry.StatusError, sink.last(telemetry.KindHeartRate))
}

func TestSensorLink_DisconnectEventMarksStreams(t *testing.T) {
	trainer := newFakeDevice("AA", telemetry.ServiceUUIDFTMS, telemetry.ServiceUUIDCyclingSpeedCadence)
	radio := newFakeRadio(trainer)
	sink := newRecordingSink()

	link := NewSensorLink(radio, sink, newLogger(), time.Second)
	link.Run(context.Background())
	require.Equal(t, telemetry.StatusConnected, sink.last(telemetry.KindCadence))

	radio.events.Notify(ConnectionEvent{Address: "AA", Connected: false})

	assert.Equal(t, telemetry.StatusDisconnected, sink.last(telemetry.KindIndoorBike))
	assert.Equal(t, telemetry.StatusDisconnected, sink.last(telemetry.KindCadence))
}

func TestSensorLink_StartAndShutdown(t *testing.T) {
	strap := newFakeDevice("BB", telemetry.ServiceUUIDHeartRate)
	radio := newFakeRadio(strap)
	sink := newRecordingSink()

	link := NewSensorLink(radio, sink, newLogger(), time.Second)
	link.Start(context.Background())

	assert.Eventually(t, func() bool {
		return sink.last(telemetry.KindHeartRate) == telemetry.StatusConnected
	}, time.Second, 5*time.Millisecond)

	link.Shutdown()
	link.Shutdown()

	assert.Equal(t, []string{"BB"}, radio.disconnected)
	assert.Equal(t, telemetry.StatusDisconnected, sink.last(telemetry.KindHeartRate))
	assert.Zero(t, radio.events.ListenerCount())
}

func TestCoversAll(t *testing.T) {
	a := newFakeDevice("A", "s1")
	b := newFakeDevice("B", "s2", "s3")

	assert.True(t, coversAll([]Device{a, b}, []string{"s1", "s2", "s3"}))
	assert.False(t, coversAll([]Device{a}, []string{"s1", "s2"}))
	assert.True(t, coversAll(nil, nil))
}

func TestNewSensorLink_PanicsOnNilArgs(t *testing.T) {
	assert.PanicsWithValue(t, "SensorLink: radio cannot be nil", func() {
		NewSensorLink(nil, newRecordingSink(), newLogger(), time.Second)
	})
	assert.PanicsWithValue(t, "SensorLink: sink cannot be nil", func() {
		NewSensorLink(newFakeRadio(), nil, newLogger(), time.Second)
	})
}
