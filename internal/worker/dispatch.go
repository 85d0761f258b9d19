package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/mazeflight/simulator/internal/dispatcher"
	"github.com/mazeflight/simulator/internal/drone"
	"github.com/mazeflight/simulator/internal/influx"
	"github.com/mazeflight/simulator/internal/storage"
	"github.com/mazeflight/simulator/pkg/core"
)

// RegisterHandlers binds the flight lifecycle and control intents to the
// dispatcher. Intent handlers are synchronous: buffering would reorder
// inputs, and input order is the whole simulation.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(dispatcher.CmdFlightStart, m.handleFlightStart, dispatcher.Logged())
	d.Register(dispatcher.CmdFlightEnd, m.handleFlightEnd, dispatcher.Logged())

	d.Register(dispatcher.CmdRotateLeft, m.intentHandler(drone.IntentRotateLeft), dispatcher.Logged())
	d.Register(dispatcher.CmdRotateRight, m.intentHandler(drone.IntentRotateRight), dispatcher.Logged())
	d.Register(dispatcher.CmdThrottleUp, m.intentHandler(drone.IntentThrottleUp), dispatcher.Logged())
	d.Register(dispatcher.CmdThrottleDown, m.intentHandler(drone.IntentThrottleDown), dispatcher.Logged())
}

// handleFlightStart opens a new recording and spawns a fresh drone.
// Args[0], when present, names the flight.
func (m *Manager) handleFlightStart(e dispatcher.Event) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return nil, fmt.Errorf("flight %q already in progress", m.flight.FlightName)
	}

	name := "unnamed flight"
	if len(e.Args) > 0 && e.Args[0] != "" {
		name = e.Args[0]
	}

	flight, arena := m.deps.NewFlight(name)
	if err := m.backend.StartFlight(flight, arena); err != nil {
		return nil, fmt.Errorf("starting flight: %w", err)
	}

	m.flight = flight
	m.arena = arena
	m.drone = m.deps.NewDrone()
	m.tick = 0
	m.lastCrashCount = 0
	m.deps.Sightings.Reset()
	m.active = true

	m.deps.LogManager.Logger().Info("Flight started",
		"flight", flight.FlightName,
		"arena", arena.Name,
		"flightId", flight.ID,
	)

	return flight.ID, nil
}

// handleFlightEnd records a final performance sample, closes the recording,
// and leaves the manager idle.
func (m *Manager) handleFlightEnd(e dispatcher.Event) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return nil, ErrNoActiveFlight
	}

	m.recordPerformance(e.Timestamp)

	if err := m.backend.EndFlight(); err != nil {
		return nil, fmt.Errorf("ending flight: %w", err)
	}
	m.active = false

	log := m.deps.LogManager.Logger()
	log.Info("Flight ended",
		"flight", m.flight.FlightName,
		"ticks", m.tick,
		"crashes", m.lastCrashCount,
	)

	if u, ok := m.backend.(storage.Uploadable); ok {
		if path := u.GetExportedFilePath(); path != "" {
			log.Info("Replay exported", "path", path)
			return path, nil
		}
	}

	return m.tick, nil
}

// intentHandler returns a handler that runs one simulation tick for the
// given control intent.
func (m *Manager) intentHandler(intent drone.Intent) dispatcher.HandlerFunc {
	return func(e dispatcher.Event) (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if !m.active {
			return nil, ErrNoActiveFlight
		}

		now := e.Timestamp
		if now.IsZero() {
			now = time.Now()
		}

		moved, err := m.drone.HandleInput(intent)
		if err != nil {
			return nil, fmt.Errorf("handling %s: %w", intent, err)
		}

		m.tick++
		snap := m.drone.Snapshot()
		m.recordTick(snap, now)

		return moved, nil
	}
}

// recordTick pushes the telemetry for one processed input to the backend:
// the state sample, any new crash, newly seen sightings, and a periodic
// performance sample. Caller holds the lock.
func (m *Manager) recordTick(snap drone.Snapshot, now time.Time) {
	log := m.deps.LogManager.Logger()

	state := m.stateFromSnapshot(snap, now)
	if err := m.backend.RecordDroneState(&state); err != nil {
		log.Warn("Failed to record drone state", "tick", m.tick, "error", err)
	}

	if m.deps.Influx != nil {
		point := influx.NewStatePoint(&state, m.flight.FlightName)
		if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketFlightData, point); err != nil {
			log.Debug("Influx state write failed", "error", err)
		}
	}

	if snap.CrashCount > m.lastCrashCount {
		m.lastCrashCount = snap.CrashCount
		crash := core.CrashEvent{
			FlightID:    m.flight.ID,
			Time:        now,
			CaptureTick: m.tick,
			Position:    core.Position{X: snap.X, Y: snap.Y},
			CrashCount:  snap.CrashCount,
		}
		if err := m.backend.RecordCrashEvent(&crash); err != nil {
			log.Warn("Failed to record crash event", "tick", m.tick, "error", err)
		}
	}

	sensors := m.drone.Sensors()
	for _, sg := range m.drone.Sightings() {
		// Each boundary pixel is reported once per flight.
		if !m.deps.Sightings.FirstSighting(sg.Hit.X, sg.Hit.Y) {
			continue
		}
		sighting := core.SensorSighting{
			FlightID:    m.flight.ID,
			Time:        now,
			CaptureTick: m.tick,
			SensorIndex: sg.SensorIndex,
			Hit:         core.Position{X: float64(sg.Hit.X), Y: float64(sg.Hit.Y)},
		}
		if sg.SensorIndex < len(sensors) {
			sighting.Bearing = sensors[sg.SensorIndex].Angle()
		}
		if err := m.backend.RecordSensorSighting(&sighting); err != nil {
			log.Warn("Failed to record sensor sighting", "tick", m.tick, "error", err)
		}
	}

	if m.tick%perfSampleTicks == 0 {
		m.recordPerformance(now)
	}
}
