package bt

import (
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// Device is a peripheral seen by a scan.
type Device interface {
	AddressString() string
	LocalName() string
	RSSI() int16
	ServiceUUIDs() []string
	HasServiceUUID(uuid string) bool
	IsConnected() bool
	WaitForConnection(timeout time.Duration) error
	EnableNotifications(serviceUUID, characteristicUUID string, callback func(buf []byte)) error
}

type btDevice struct {
	address bluetooth.Address
	logger  *log.Logger

	mu           sync.Mutex
	localName    string
	rssi         int16
	lastSeen     time.Time
	serviceUUIDs []string
	connected    *bluetooth.Device // nil while disconnected

	// bleMu serializes GATT discovery and notification setup
	bleMu                  sync.Mutex
	services               map[string]*bluetooth.DeviceService
	characteristics        map[string]*bluetooth.DeviceCharacteristic
	serviceCharsDiscovered map[string]bool
	allServicesDiscovered  bool
}

var _ Device = (*btDevice)(nil)

func newBTDevice(logger *log.Logger, address bluetooth.Address) *btDevice {
	if logger == nil {
		panic("BTDevice: logger cannot be nil")
	}
	return &btDevice{
		address:                address,
		logger:                 logger,
		localName:              "Unknown",
		services:               make(map[string]*bluetooth.DeviceService),
		characteristics:        make(map[string]*bluetooth.DeviceCharacteristic),
		serviceCharsDiscovered: make(map[string]bool),
	}
}

func (d *btDevice) AddressString() string {
	return d.address.String()
}

func (d *btDevice) LocalName() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localName
}

func (d *btDevice) RSSI() int16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rssi
}

func (d *btDevice) ServiceUUIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.serviceUUIDs)
}

func (d *btDevice) HasServiceUUID(uuid string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Contains(d.serviceUUIDs, uuid)
}

func (d *btDevice) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected != nil
}

// updateFromScan records advertisement data. Service UUIDs accumulate since
// peripherals often split them across advertisement and scan response.
func (d *btDevice) updateFromScan(result bluetooth.ScanResult, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if name := result.LocalName(); name != "" {
		d.localName = name
	}
	d.rssi = result.RSSI
	d.lastSeen = now
	for _, uuid := range result.ServiceUUIDs() {
		if s := uuid.String(); !slices.Contains(d.serviceUUIDs, s) {
			d.serviceUUIDs = append(d.serviceUUIDs, s)
		}
	}
}

// setConnected takes bleMu after releasing mu; GATT calls hold bleMu while
// reading the connection.
func (d *btDevice) setConnected(device *bluetooth.Device) {
	d.mu.Lock()
	d.connected = device
	d.mu.Unlock()

	if device == nil {
		// Handles are invalid after a disconnect
		d.bleMu.Lock()
		clear(d.services)
		clear(d.characteristics)
		clear(d.serviceCharsDiscovered)
		d.allServicesDiscovered = false
		d.bleMu.Unlock()
	}
}

func (d *btDevice) connectedDevice() *bluetooth.Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

func (d *btDevice) WaitForConnection(timeout time.Duration) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	timeoutChan := time.After(timeout)

	for {
		if d.IsConnected() {
			return nil
		}
		select {
		case <-ticker.C:
		case <-timeoutChan:
			return fmt.Errorf("timeout after %v waiting for connection to %s", timeout, d.AddressString())
		}
	}
}

func (d *btDevice) EnableNotifications(serviceUUIDStr, characteristicUUIDStr string, callback func(buf []byte)) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	serviceUUID, err := bluetooth.ParseUUID(serviceUUIDStr)
	if err != nil {
		return fmt.Errorf("invalid service UUID %q: %w", serviceUUIDStr, err)
	}
	characteristicUUID, err := bluetooth.ParseUUID(characteristicUUIDStr)
	if err != nil {
		return fmt.Errorf("invalid characteristic UUID %q: %w", characteristicUUIDStr, err)
	}

	characteristic, err := d.characteristic(serviceUUID, characteristicUUID)
	if err != nil {
		return err
	}
	if err := characteristic.EnableNotifications(callback); err != nil {
		return fmt.Errorf("failed to enable notifications: %w", err)
	}

	d.logger.Printf("BTDevice: Notifications enabled for %s on %s", characteristicUUIDStr, d.AddressString())
	return nil
}

// service returns a cached service handle. All services are discovered at
// once; discovering them one by one interrupts earlier subscriptions.
// Requires bleMu.
func (d *btDevice) service(serviceUUID bluetooth.UUID) (*bluetooth.DeviceService, error) {
	key := serviceUUID.String()
	if service, ok := d.services[key]; ok {
		return service, nil
	}

	if !d.allServicesDiscovered {
		device := d.connectedDevice()
		if device == nil {
			return nil, fmt.Errorf("device %s is not connected", d.AddressString())
		}
		d.logger.Printf("BTDevice: Discovering all services for %s", d.AddressString())
		discovered, err := device.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("error discovering services: %w", err)
		}
		for i := range discovered {
			svc := &discovered[i]
			d.services[svc.UUID().String()] = svc
		}
		d.allServicesDiscovered = true
	}

	service, ok := d.services[key]
	if !ok {
		return nil, fmt.Errorf("service %s not found on device", key)
	}
	return service, nil
}

// characteristic returns a cached characteristic handle. Requires bleMu.
func (d *btDevice) characteristic(serviceUUID, charUUID bluetooth.UUID) (*bluetooth.DeviceCharacteristic, error) {
	serviceKey := serviceUUID.String()
	key := serviceKey + "_" + charUUID.String()
	if characteristic, ok := d.characteristics[key]; ok {
		return characteristic, nil
	}

	if !d.serviceCharsDiscovered[serviceKey] {
		service, err := d.service(serviceUUID)
		if err != nil {
			return nil, err
		}
		d.logger.Printf("BTDevice: Discovering all characteristics for service %s", serviceKey)
		discovered, err := service.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("could not discover characteristics for service %s: %w", serviceKey, err)
		}
		for i := range discovered {
			char := &discovered[i]
			d.characteristics[serviceKey+"_"+char.UUID().String()] = char
		}
		d.serviceCharsDiscovered[serviceKey] = true
	}

	characteristic, ok := d.characteristics[key]
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found in service %s", charUUID.String(), serviceKey)
	}
	return characteristic, nil
}
