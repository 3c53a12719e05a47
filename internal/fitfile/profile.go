package fitfile

// BaseType is a FIT base type code. The code fixes the field's byte size.
type BaseType byte

const (
	BaseEnum    BaseType = 0x00
	BaseUint8   BaseType = 0x02
	BaseUint16  BaseType = 0x84
	BaseUint32  BaseType = 0x86
	BaseUint32z BaseType = 0x8C
)

func (b BaseType) Size() byte {
	switch b {
	case BaseUint16:
		return 2
	case BaseUint32, BaseUint32z:
		return 4
	default:
		return 1
	}
}

// FieldDef is one (field number, size, base type) triple of a definition
// message.
type FieldDef struct {
	Num  byte
	Size byte
	Type BaseType
}

// MessageDef binds a local message type to a global message number and an
// ordered field list.
type MessageDef struct {
	Local  byte
	Global uint16
	Fields []FieldDef
}

func field(num byte, t BaseType) FieldDef {
	return FieldDef{Num: num, Size: t.Size(), Type: t}
}

// Global message numbers
const (
	mesgFileID   uint16 = 0
	mesgSession  uint16 = 18
	mesgLap      uint16 = 19
	mesgRecord   uint16 = 20
	mesgActivity uint16 = 34
)

// Local message types, one per global message
const (
	localFileID byte = iota
	localLap
	localRecord
	localSession
	localActivity
)

// Profile enum values
const (
	fileTypeActivity        = 4
	manufacturerDevelopment = 255

	sportRunning  = 1
	sportCycling  = 2
	sportSwimming = 5

	subSportGeneric     = 0
	subSportLapSwimming = 17

	eventSession   = 8
	eventLap       = 9
	eventActivity  = 26
	eventTypeStop  = 1
	activityManual = 0
)

const fieldTimestamp = 253

var fileIDMessage = MessageDef{
	Local:  localFileID,
	Global: mesgFileID,
	Fields: []FieldDef{
		field(4, BaseUint32),  // time_created
		field(1, BaseUint16),  // manufacturer
		field(2, BaseUint16),  // product
		field(3, BaseUint32z), // serial_number
		field(0, BaseEnum),    // type
	},
}

// lapMessage lists lap fields. Cycling laps carry avg_power, other sports
// total_distance in its place.
func lapMessage(cycling bool) MessageDef {
	effort := field(19, BaseUint16) // avg_power
	if !cycling {
		effort = field(9, BaseUint32) // total_distance, cm
	}
	return MessageDef{
		Local:  localLap,
		Global: mesgLap,
		Fields: []FieldDef{
			field(fieldTimestamp, BaseUint32),
			field(2, BaseUint32), // start_time
			field(7, BaseUint32), // total_elapsed_time, ms
			field(8, BaseUint32), // total_timer_time, ms
			field(0, BaseEnum),   // event
			field(1, BaseEnum),   // event_type
			field(25, BaseEnum),  // sport
			field(39, BaseEnum),  // sub_sport
			effort,
			field(15, BaseUint8), // avg_heart_rate
			field(17, BaseUint8), // avg_cadence
		},
	}
}

// recordMessage lists record fields. Cycling records carry power, other
// sports the accumulated distance.
func recordMessage(cycling bool) MessageDef {
	effort := field(7, BaseUint16) // power
	if !cycling {
		effort = field(5, BaseUint32) // distance, cm
	}
	return MessageDef{
		Local:  localRecord,
		Global: mesgRecord,
		Fields: []FieldDef{
			field(fieldTimestamp, BaseUint32),
			effort,
			field(3, BaseUint8),  // heart_rate
			field(4, BaseUint8),  // cadence
			field(6, BaseUint16), // speed, mm/s
		},
	}
}

func sessionMessage(cycling bool) MessageDef {
	effort := field(20, BaseUint16) // avg_power
	if !cycling {
		effort = field(9, BaseUint32) // total_distance, cm
	}
	return MessageDef{
		Local:  localSession,
		Global: mesgSession,
		Fields: []FieldDef{
			field(fieldTimestamp, BaseUint32),
			field(2, BaseUint32), // start_time
			field(7, BaseUint32), // total_elapsed_time, ms
			field(8, BaseUint32), // total_timer_time, ms
			field(0, BaseEnum),   // event
			field(1, BaseEnum),   // event_type
			field(5, BaseEnum),   // sport
			field(6, BaseEnum),   // sub_sport
			effort,
			field(16, BaseUint8),  // avg_heart_rate
			field(18, BaseUint8),  // avg_cadence
			field(25, BaseUint16), // first_lap_index
			field(26, BaseUint16), // num_laps
		},
	}
}

var activityMessage = MessageDef{
	Local:  localActivity,
	Global: mesgActivity,
	Fields: []FieldDef{
		field(fieldTimestamp, BaseUint32),
		field(0, BaseUint32), // total_timer_time, ms
		field(1, BaseUint16), // num_sessions
		field(2, BaseEnum),   // type
		field(3, BaseEnum),   // event
		field(4, BaseEnum),   // event_type
	},
}
