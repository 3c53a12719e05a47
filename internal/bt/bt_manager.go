// Package bt finds and connects Bluetooth LE fitness sensors.
package bt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/live-session/internal/events"
	"github.com/lowaak/smart-trainer/live-session/internal/go_func_utils"
)

// ErrScanInProgress is returned when Scan is called while a scan runs.
var ErrScanInProgress = errors.New("scan already in progress")

// ConnectionEvent reports a link coming up or going down.
type ConnectionEvent struct {
	Address   string
	Connected bool
}

// Radio is the part of the manager the sensor link depends on.
type Radio interface {
	Scan(ctx context.Context, serviceUUIDs []string) ([]Device, error)
	Connect(device Device) error
	Disconnect(device Device) error
	ListenToConnections(callback func(ConnectionEvent)) func()
}

var _ Radio = (*Manager)(nil)

// Manager owns the adapter and the devices it has seen.
type Manager struct {
	adapter *bluetooth.Adapter
	logger  *log.Logger

	mu               sync.Mutex
	devicesByAddress map[string]*btDevice
	scanning         bool

	connectionEvent *events.CallbackEvent[ConnectionEvent]
}

func NewManager(adapter *bluetooth.Adapter, logger *log.Logger) *Manager {
	if adapter == nil {
		panic("BTManager: adapter cannot be nil")
	}
	if logger == nil {
		panic("BTManager: logger cannot be nil")
	}
	return &Manager{
		adapter:          adapter,
		logger:           logger,
		devicesByAddress: make(map[string]*btDevice),
		connectionEvent:  events.NewCallbackEvent[ConnectionEvent](false),
	}
}

func (m *Manager) device(address bluetooth.Address) (*btDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := address.String()
	d, ok := m.devicesByAddress[key]
	if !ok {
		d = newBTDevice(m.logger, address)
		m.devicesByAddress[key] = d
	}
	return d, !ok
}

// Enable powers the adapter and installs the connection handler.
func (m *Manager) Enable() error {
	m.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		d, _ := m.device(device.Address)
		if connected {
			m.logger.Printf("BTManager: Device connected: %s", d.AddressString())
			d.setConnected(&device)
		} else {
			m.logger.Printf("BTManager: Device disconnected: %s", d.AddressString())
			d.setConnected(nil)
		}
		m.connectionEvent.Notify(ConnectionEvent{Address: d.AddressString(), Connected: connected})
	})

	if err := m.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}
	return nil
}

// Scan listens for advertisements until ctx is done or every requested
// service has been seen, then returns the devices advertising any of them.
func (m *Manager) Scan(ctx context.Context, serviceUUIDs []string) ([]Device, error) {
	m.mu.Lock()
	if m.scanning {
		m.mu.Unlock()
		return nil, ErrScanInProgress
	}
	m.scanning = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.scanning = false
		m.mu.Unlock()
	}()

	m.logger.Printf("BTManager: Starting scan for %v", serviceUUIDs)

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 1)
	go_func_utils.SafeGo(m.logger, "BTManager", func() {
		errChan <- m.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			if scanCtx.Err() != nil {
				return
			}
			d, isNew := m.device(result.Address)
			d.updateFromScan(result, time.Now())
			if isNew {
				m.logger.Printf("BTManager: Found device: %s (%s) [RSSI: %d]", d.LocalName(), d.AddressString(), result.RSSI)
			}
			if coversAll(m.matching(serviceUUIDs), serviceUUIDs) {
				cancel()
			}
		})
	})

	select {
	case <-scanCtx.Done():
		if err := m.adapter.StopScan(); err != nil {
			m.logger.Printf("BTManager: Error stopping scan: %v", err)
		}
		if err := <-errChan; err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
	case err := <-errChan:
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
	}

	found := m.matching(serviceUUIDs)
	m.logger.Printf("BTManager: Scan finished, %d matching device(s)", len(found))
	return found, nil
}

// matching returns known devices advertising any of serviceUUIDs.
func (m *Manager) matching(serviceUUIDs []string) []Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Device
	for _, d := range m.devicesByAddress {
		if slices.ContainsFunc(serviceUUIDs, d.HasServiceUUID) {
			result = append(result, d)
		}
	}
	return result
}

func coversAll(devices []Device, serviceUUIDs []string) bool {
	for _, uuid := range serviceUUIDs {
		if !slices.ContainsFunc(devices, func(d Device) bool { return d.HasServiceUUID(uuid) }) {
			return false
		}
	}
	return true
}

// Connect initiates a connection. Completion is reported through the
// connection handler; use Device.WaitForConnection.
func (m *Manager) Connect(device Device) error {
	d, err := m.known(device)
	if err != nil {
		return err
	}
	m.logger.Printf("BTManager: Connecting to %s", d.AddressString())
	if _, err := m.adapter.Connect(d.address, bluetooth.ConnectionParams{}); err != nil {
		return fmt.Errorf("connect to %s: %w", d.AddressString(), err)
	}
	return nil
}

func (m *Manager) Disconnect(device Device) error {
	d, err := m.known(device)
	if err != nil {
		return err
	}
	connected := d.connectedDevice()
	if connected == nil {
		return nil
	}
	if err := connected.Disconnect(); err != nil {
		return fmt.Errorf("disconnect from %s: %w", d.AddressString(), err)
	}
	return nil
}

func (m *Manager) known(device Device) (*btDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.devicesByAddress[device.AddressString()]
	if !ok {
		return nil, fmt.Errorf("unknown device %s", device.AddressString())
	}
	return d, nil
}

// ListenToConnections registers callback for link changes. It runs on the
// adapter's goroutine.
func (m *Manager) ListenToConnections(callback func(ConnectionEvent)) func() {
	return m.connectionEvent.Listen(callback)
}

// Shutdown disconnects every connected device.
func (m *Manager) Shutdown() {
	m.logger.Println("BTManager: Shutting down")
	m.mu.Lock()
	devices := make([]*btDevice, 0, len(m.devicesByAddress))
	for _, d := range m.devicesByAddress {
		devices = append(devices, d)
	}
	m.mu.Unlock()

	for _, d := range devices {
		if err := m.Disconnect(d); err != nil {
			m.logger.Printf("BTManager: Error disconnecting %s: %v", d.AddressString(), err)
		}
	}
	m.logger.Println("BTManager: Shutdown complete")
}
