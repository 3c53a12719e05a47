package telemetry

// Bluetooth service and characteristic UUIDs for the supported sensor profiles.
const (
	ServiceUUIDHeartRate         = "0000180d-0000-1000-8000-00805f9b34fb"
	CharUUIDHeartRateMeasurement = "00002a37-0000-1000-8000-00805f9b34fb"

	ServiceUUIDCyclingSpeedCadence = "00001816-0000-1000-8000-00805f9b34fb"
	CharUUIDCSCMeasurement         = "00002a5b-0000-1000-8000-00805f9b34fb"

	ServiceUUIDCyclingPower         = "00001818-0000-1000-8000-00805f9b34fb"
	CharUUIDCyclingPowerMeasurement = "00002a63-0000-1000-8000-00805f9b34fb"

	ServiceUUIDFTMS        = "00001826-0000-1000-8000-00805f9b34fb"
	CharUUIDIndoorBikeData = "00002ad2-0000-1000-8000-00805f9b34fb"
)

// SensorKind tags a notification stream with the decoder that understands it.
type SensorKind string

const (
	KindIndoorBike SensorKind = "indoor_bike"
	KindHeartRate  SensorKind = "heart_rate"
	KindPower      SensorKind = "power"
	KindCadence    SensorKind = "cadence"
)

// AllKinds lists every sensor kind in display order.
var AllKinds = []SensorKind{KindIndoorBike, KindHeartRate, KindPower, KindCadence}

// Stream binds a GATT characteristic to a sensor kind.
type Stream struct {
	Kind               SensorKind
	DisplayName        string
	ServiceUUID        string
	CharacteristicUUID string
}

var streams = []Stream{
	{
		Kind:               KindIndoorBike,
		DisplayName:        "Smart Trainer",
		ServiceUUID:        ServiceUUIDFTMS,
		CharacteristicUUID: CharUUIDIndoorBikeData,
	},
	{
		Kind:               KindHeartRate,
		DisplayName:        "Heart Rate",
		ServiceUUID:        ServiceUUIDHeartRate,
		CharacteristicUUID: CharUUIDHeartRateMeasurement,
	},
	{
		Kind:               KindPower,
		DisplayName:        "Power Meter",
		ServiceUUID:        ServiceUUIDCyclingPower,
		CharacteristicUUID: CharUUIDCyclingPowerMeasurement,
	},
	{
		Kind:               KindCadence,
		DisplayName:        "Cadence Sensor",
		ServiceUUID:        ServiceUUIDCyclingSpeedCadence,
		CharacteristicUUID: CharUUIDCSCMeasurement,
	},
}

// Streams returns the registry of notification streams.
func Streams() []Stream {
	result := make([]Stream, len(streams))
	copy(result, streams)
	return result
}

// StreamForKind returns the stream registered for kind.
func StreamForKind(kind SensorKind) (Stream, bool) {
	for _, s := range streams {
		if s.Kind == kind {
			return s, true
		}
	}
	return Stream{}, false
}

// ServiceUUIDs returns every service UUID worth scanning for.
func ServiceUUIDs() []string {
	result := make([]string, 0, len(streams))
	for _, s := range streams {
		result = append(result, s.ServiceUUID)
	}
	return result
}
