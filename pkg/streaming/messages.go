package streaming

import (
	"encoding/json"

	"github.com/mazeflight/simulator/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartFlight       = "start_flight"
	TypeEndFlight         = "end_flight"
	TypeDroneState        = "drone_state"
	TypeCrashEvent        = "crash_event"
	TypeSensorSighting    = "sensor_sighting"
	TypeFlightPerformance = "flight_performance"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartFlightPayload carries flight and arena data.
type StartFlightPayload struct {
	Flight *core.Flight `json:"flight"`
	Arena  *core.Arena  `json:"arena"`
}
