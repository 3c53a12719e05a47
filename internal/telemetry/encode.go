package telemetry

import (
	"encoding/binary"
	"math"
)

// EncodeHeartRate builds a Heart Rate Measurement notification. Values above
// 255 bpm use the UINT16 format.
func EncodeHeartRate(bpm int) []byte {
	if bpm > math.MaxUint8 {
		buf := []byte{0x01, 0, 0}
		binary.LittleEndian.PutUint16(buf[1:], uint16(bpm))
		return buf
	}
	return []byte{0x00, byte(bpm)}
}

// EncodePower builds a Cycling Power Measurement notification with no
// optional fields.
func EncodePower(watts int) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(watts)))
	return buf
}

// EncodeIndoorBike builds an FTMS Indoor Bike Data notification carrying
// instantaneous speed (km/h), cadence (rpm) and power (W).
func EncodeIndoorBike(speedKmh, cadenceRPM float64, watts int) []byte {
	flags := uint16(ibdFlagInstantaneousCadence | ibdFlagInstantaneousPower)
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint16(buf[0:], flags)
	binary.LittleEndian.PutUint16(buf[2:], uint16(math.Round(speedKmh*100)))
	binary.LittleEndian.PutUint16(buf[4:], uint16(math.Round(cadenceRPM*2)))
	binary.LittleEndian.PutUint16(buf[6:], uint16(int16(watts)))
	return buf
}

// EncodeCrank builds a CSC Measurement notification carrying crank data only.
func EncodeCrank(revs uint16, eventTime uint16) []byte {
	buf := make([]byte, 5)
	buf[0] = cscFlagCrankData
	binary.LittleEndian.PutUint16(buf[1:], revs)
	binary.LittleEndian.PutUint16(buf[3:], eventTime)
	return buf
}

// CrankCounter simulates the cumulative counters of a CSC crank sensor. The
// event time is the moment of the last completed revolution, so a constant
// cadence decodes back to itself.
type CrankCounter struct {
	clock     float64 // seconds
	revs      float64
	wholeRevs uint64
	eventTime float64 // seconds
}

// Advance moves the counters forward by elapsed seconds at rpm and returns
// the resulting notification.
func (c *CrankCounter) Advance(rpm float64, elapsedSeconds float64) []byte {
	if elapsedSeconds > 0 {
		c.clock += elapsedSeconds
		if rpm > 0 {
			revsPerSecond := rpm / 60
			c.revs += revsPerSecond * elapsedSeconds
			whole := uint64(math.Floor(c.revs))
			if whole > c.wholeRevs {
				c.wholeRevs = whole
				c.eventTime = c.clock - (c.revs-float64(whole))/revsPerSecond
			}
		}
	}
	ticks := uint64(math.Round(c.eventTime * 1024))
	return EncodeCrank(uint16(c.wholeRevs), uint16(ticks))
}
