package telemetry

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// CSC Measurement flag bits
const (
	cscFlagWheelData = 1 << 0
	cscFlagCrankData = 1 << 1
)

const maxCadenceRPM = 300

// CadenceDecoder derives cadence from consecutive Cycling Speed and Cadence
// notifications (cumulative crank revolutions and last crank event time).
// One decoder belongs to one sensor stream.
// See: https://www.bluetooth.com/specifications/specs/cycling-speed-and-cadence-service-1-0/
type CadenceDecoder struct {
	mu sync.Mutex

	hasPrevious   bool
	lastRevs      uint16
	lastEventTime uint16 // 1/1024 s
}

func NewCadenceDecoder() *CadenceDecoder {
	return &CadenceDecoder{}
}

// Decode returns the cadence since the previous notification. The first
// notification only primes the decoder and yields an empty update, as do
// notifications with no elapsed crank time or an implausible result.
func (d *CadenceDecoder) Decode(buf []byte) Update {
	update, _ := d.Parse(buf)
	return update
}

func (d *CadenceDecoder) Parse(buf []byte) (Update, error) {
	if len(buf) < 1 {
		return Update{}, fmt.Errorf("CSC data too short: %d bytes", len(buf))
	}

	flags := buf[0]
	offset := 1

	// Wheel data: UINT32 revolutions + UINT16 event time
	if flags&cscFlagWheelData != 0 {
		offset += 6
	}
	if flags&cscFlagCrankData == 0 {
		return Update{}, nil
	}
	if offset+4 > len(buf) {
		return Update{}, fmt.Errorf("CSC data too short for crank data at offset %d", offset)
	}

	revs := binary.LittleEndian.Uint16(buf[offset:])
	eventTime := binary.LittleEndian.Uint16(buf[offset+2:])

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasPrevious {
		d.lastRevs = revs
		d.lastEventTime = eventTime
		d.hasPrevious = true
		return Update{}, nil
	}

	// uint16 arithmetic absorbs counter rollover
	revDiff := revs - d.lastRevs
	timeDiff := eventTime - d.lastEventTime

	d.lastRevs = revs
	d.lastEventTime = eventTime

	if timeDiff == 0 {
		return Update{}, nil
	}

	rpm := float64(revDiff) * 60 * 1024 / float64(timeDiff)
	if rpm < 0 || rpm > maxCadenceRPM {
		return Update{}, nil
	}
	return Update{Cadence: ptr(rpm)}, nil
}

// Reset forgets the previous reading, e.g. after a reconnect.
func (d *CadenceDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hasPrevious = false
	d.lastRevs = 0
	d.lastEventTime = 0
}
