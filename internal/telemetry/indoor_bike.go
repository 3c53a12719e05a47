package telemetry

import (
	"encoding/binary"
	"fmt"
)

// Indoor Bike Data flag bit positions (FTMS 1.0)
const (
	ibdFlagMoreData             = 1 << 0 // 0 = Instantaneous Speed present
	ibdFlagAverageSpeed         = 1 << 1
	ibdFlagInstantaneousCadence = 1 << 2
	ibdFlagAverageCadence       = 1 << 3
	ibdFlagTotalDistance        = 1 << 4
	ibdFlagResistanceLevel      = 1 << 5
	ibdFlagInstantaneousPower   = 1 << 6
)

// indoorBikeFields is the fixed field order after the flags, up to and
// including instantaneous power. Later optional fields are never read.
var indoorBikeFields = []struct {
	name    string
	flag    uint16
	size    int
	present func(flags, flag uint16) bool
}{
	{"instantaneous speed", ibdFlagMoreData, 2, flagClear},
	{"average speed", ibdFlagAverageSpeed, 2, flagSet},
	{"instantaneous cadence", ibdFlagInstantaneousCadence, 2, flagSet},
	{"average cadence", ibdFlagAverageCadence, 2, flagSet},
	{"total distance", ibdFlagTotalDistance, 3, flagSet},
	{"resistance level", ibdFlagResistanceLevel, 2, flagSet},
	{"instantaneous power", ibdFlagInstantaneousPower, 2, flagSet},
}

func flagSet(flags, flag uint16) bool   { return flags&flag != 0 }
func flagClear(flags, flag uint16) bool { return flags&flag == 0 }

// DecodeIndoorBike decodes an FTMS Indoor Bike Data notification into speed,
// cadence and power. Offsets only advance for fields the flags mark present.
// See: https://www.bluetooth.com/specifications/specs/fitness-machine-service-1-0/
func DecodeIndoorBike(buf []byte) Update {
	update, _ := parseIndoorBike(buf)
	return update
}

func parseIndoorBike(buf []byte) (Update, error) {
	if len(buf) < 2 {
		return Update{}, fmt.Errorf("indoor bike data too short: %d bytes", len(buf))
	}

	flags := binary.LittleEndian.Uint16(buf)
	offset := 2

	var update Update
	for _, field := range indoorBikeFields {
		if !field.present(flags, field.flag) {
			continue
		}
		if offset+field.size > len(buf) {
			return Update{}, fmt.Errorf("buffer too short for %s at offset %d", field.name, offset)
		}
		raw := binary.LittleEndian.Uint16(buf[offset:])
		switch field.flag {
		case ibdFlagMoreData:
			// UINT16, 0.01 km/h
			update.Speed = ptr(float64(raw) / 100)
		case ibdFlagInstantaneousCadence:
			// UINT16, 0.5 rpm
			update.Cadence = ptr(float64(raw) * 0.5)
		case ibdFlagInstantaneousPower:
			// SINT16, 1 W
			update.Power = ptr(int(int16(raw)))
		}
		offset += field.size
	}
	return update, nil
}
