// Package worker owns the simulation loop state: it feeds control intents to
// the drone, assembles telemetry records per tick, and hands them to the
// storage backend.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mazeflight/simulator/internal/cache"
	"github.com/mazeflight/simulator/internal/drone"
	"github.com/mazeflight/simulator/internal/influx"
	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/storage"
	"github.com/mazeflight/simulator/pkg/core"
)

// ErrNoActiveFlight is returned when an intent arrives outside a flight.
var ErrNoActiveFlight = fmt.Errorf("no active flight")

// perfSampleTicks is how often a performance sample is recorded, in ticks.
const perfSampleTicks = 25

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	LogManager *logging.SlogManager
	Sightings  *cache.SightingCache
	Influx     *influx.Manager // optional, may be nil

	// NewFlight builds the flight and arena records for a new recording.
	NewFlight func(name string) (*core.Flight, *core.Arena)

	// NewDrone builds a fresh drone at the configured start pose.
	NewDrone func() *drone.Drone
}

// Manager drives the drone and records each tick to the storage backend
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	mu             sync.Mutex
	drone          *drone.Drone
	flight         *core.Flight
	arena          *core.Arena
	tick           uint
	lastCrashCount int
	active         bool
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	return &Manager{
		deps:    deps,
		backend: backend,
	}
}

// Active reports whether a flight is currently being recorded.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Tick returns the current capture tick.
func (m *Manager) Tick() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// FlightID returns the active flight's ID, or 0 when idle.
func (m *Manager) FlightID() uint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flight == nil {
		return 0
	}
	return m.flight.ID
}

// Snapshot returns the drone's current telemetry snapshot. The second return
// is false when no flight is active.
func (m *Manager) Snapshot() (drone.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.drone == nil {
		return drone.Snapshot{}, false
	}
	return m.drone.Snapshot(), m.active
}

// QueueLengths reports the backend's pending write queues, or zeros when the
// backend doesn't expose them.
func (m *Manager) QueueLengths() (states, crashes, sightings int) {
	if r, ok := m.backend.(storage.Reporter); ok {
		return r.QueueLengths()
	}
	return 0, 0, 0
}

// LastWriteDuration returns the duration of the backend's last write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) LastWriteDuration() time.Duration {
	if r, ok := m.backend.(storage.Reporter); ok {
		return r.LastWriteDuration()
	}
	return 0
}

// stateFromSnapshot converts a drone snapshot into a telemetry record.
func (m *Manager) stateFromSnapshot(snap drone.Snapshot, now time.Time) core.DroneState {
	return core.DroneState{
		FlightID:       m.flight.ID,
		Time:           now,
		CaptureTick:    m.tick,
		Position:       core.Position{X: snap.X, Y: snap.Y},
		Yaw:            snap.Yaw,
		Speed:          snap.Speed,
		Mode:           snap.Mode,
		Battery:        snap.Battery,
		BatterySeconds: m.drone.TimeBudget(),
		CrashCount:     snap.CrashCount,
		Score:          snap.Score,
		Head:           readingToCore(snap.Head),
		Right:          readingToCore(snap.Right),
		Left:           readingToCore(snap.Left),
	}
}

func readingToCore(r drone.SensorReading) core.SensorReading {
	return core.SensorReading{
		Bearing:  r.Bearing,
		Detected: r.Detected,
		Hit:      core.Position{X: float64(r.Hit.X), Y: float64(r.Hit.Y)},
	}
}

// recordPerformance samples the write pipeline and records it.
func (m *Manager) recordPerformance(now time.Time) {
	states, crashes, sightings := m.QueueLengths()
	perf := core.FlightPerformance{
		FlightID:            m.flight.ID,
		Time:                now,
		CaptureTick:         m.tick,
		StateQueue:          states,
		CrashQueue:          crashes,
		SightingQueue:       sightings,
		LastWriteDurationMs: m.LastWriteDuration().Milliseconds(),
	}
	if err := m.backend.RecordFlightPerformance(&perf); err != nil {
		m.deps.LogManager.Logger().Warn("Failed to record performance sample", "error", err)
	}
	if m.deps.Influx != nil {
		point := influx.NewPerformancePoint(&perf, m.flight.FlightName)
		if err := m.deps.Influx.WritePoint(context.Background(), influx.BucketSimPerformance, point); err != nil {
			m.deps.LogManager.Logger().Debug("Influx performance write failed", "error", err)
		}
	}
}
