package telemetry

// ConnectionStatus is the user-facing state of one sensor link.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "Disconnected"
	StatusScanning     ConnectionStatus = "Scanning..."
	StatusConnecting   ConnectionStatus = "Connecting..."
	StatusConnected    ConnectionStatus = "Connected"
	StatusError        ConnectionStatus = "Error"
)

// StatusChange is published whenever a sensor link changes state.
type StatusChange struct {
	Kind   SensorKind
	Status ConnectionStatus
	Err    error
}
