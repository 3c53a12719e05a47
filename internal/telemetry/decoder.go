package telemetry

import (
	"encoding/binary"
	"fmt"
)

// Decode turns a raw notification from a stateless sensor kind into a partial
// update. Malformed buffers yield an empty update. Cadence sensors need a
// CadenceDecoder since their value is derived from consecutive notifications;
// for KindCadence Decode falls back to DecodeCadenceInstant.
func Decode(kind SensorKind, buf []byte) Update {
	update, _ := Parse(kind, buf)
	return update
}

// Parse is Decode with the reason a buffer was rejected, for diagnostics.
// The returned update is always empty when err is non-nil.
func Parse(kind SensorKind, buf []byte) (Update, error) {
	switch kind {
	case KindIndoorBike:
		return parseIndoorBike(buf)
	case KindHeartRate:
		return parseHeartRate(buf)
	case KindPower:
		return parsePower(buf)
	case KindCadence:
		return parseCadenceInstant(buf)
	default:
		return Update{}, fmt.Errorf("unknown sensor kind: %s", kind)
	}
}

// DecodeHeartRate decodes a Heart Rate Measurement notification.
// See: https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
func DecodeHeartRate(buf []byte) Update {
	update, _ := parseHeartRate(buf)
	return update
}

func parseHeartRate(buf []byte) (Update, error) {
	if len(buf) < 2 {
		return Update{}, fmt.Errorf("heart rate data too short: %d bytes", len(buf))
	}
	// Bit 0: 0 = UINT8, 1 = UINT16
	if buf[0]&0x01 != 0 {
		if len(buf) < 3 {
			return Update{}, fmt.Errorf("heart rate UINT16 data too short: %d bytes", len(buf))
		}
		return Update{HeartRate: ptr(int(binary.LittleEndian.Uint16(buf[1:])))}, nil
	}
	return Update{HeartRate: ptr(int(buf[1]))}, nil
}

// DecodePower decodes a Cycling Power Measurement notification. Only the
// mandatory instantaneous power at offset 2 is read; the flags are ignored.
// See: https://www.bluetooth.com/specifications/specs/cycling-power-service-1-1/
func DecodePower(buf []byte) Update {
	update, _ := parsePower(buf)
	return update
}

func parsePower(buf []byte) (Update, error) {
	if len(buf) < 4 {
		return Update{}, fmt.Errorf("cycling power data too short: %d bytes", len(buf))
	}
	return Update{Power: ptr(int(int16(binary.LittleEndian.Uint16(buf[2:]))))}, nil
}

// DecodeCadenceInstant reads the crank field of a CSC notification as an
// instantaneous value (raw uint16 / 10). It does not track revolutions over
// time; prefer CadenceDecoder for standard sensors.
func DecodeCadenceInstant(buf []byte) Update {
	update, _ := parseCadenceInstant(buf)
	return update
}

func parseCadenceInstant(buf []byte) (Update, error) {
	if len(buf) < 1 {
		return Update{}, fmt.Errorf("CSC data too short: %d bytes", len(buf))
	}
	if buf[0]&cscFlagCrankData == 0 {
		return Update{}, nil
	}
	if len(buf) < 5 {
		return Update{}, fmt.Errorf("CSC data too short for crank field: %d bytes", len(buf))
	}
	raw := binary.LittleEndian.Uint16(buf[3:])
	return Update{Cadence: ptr(float64(raw) / 10)}, nil
}
