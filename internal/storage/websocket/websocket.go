package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mazeflight/simulator/pkg/core"
	"github.com/mazeflight/simulator/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams flight telemetry over WebSocket to the live viewer.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	return &Backend{
		conn: newConnection(slog.Default()),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(data, msgType, ackTimeout)
}

// StartFlight sends flight and arena data and waits for server ack.
func (b *Backend) StartFlight(flight *core.Flight, arena *core.Arena) error {
	data, err := marshalEnvelope(streaming.TypeStartFlight, streaming.StartFlightPayload{Flight: flight, Arena: arena})
	if err != nil {
		return err
	}

	b.conn.setStartMessage(data)
	return b.conn.sendAndWait(data, streaming.TypeStartFlight, ackTimeout)
}

// EndFlight sends end_flight and waits for server ack.
func (b *Backend) EndFlight() error {
	err := b.sendEnvelopeAndWait(streaming.TypeEndFlight, nil)

	// Clear the replay envelope regardless of error.
	b.conn.setStartMessage(nil)

	return err
}

func (b *Backend) RecordDroneState(s *core.DroneState) error {
	return b.sendEnvelope(streaming.TypeDroneState, s)
}

func (b *Backend) RecordCrashEvent(e *core.CrashEvent) error {
	return b.sendEnvelope(streaming.TypeCrashEvent, e)
}

func (b *Backend) RecordSensorSighting(s *core.SensorSighting) error {
	return b.sendEnvelope(streaming.TypeSensorSighting, s)
}

func (b *Backend) RecordFlightPerformance(p *core.FlightPerformance) error {
	return b.sendEnvelope(streaming.TypeFlightPerformance, p)
}
