// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sync"

	"github.com/mazeflight/simulator/pkg/core"
)

// Config holds configuration for the in-memory/JSON storage backend.
type Config struct {
	OutputDir      string
	CompressOutput bool
}

// Backend stores flight data in memory and exports a replay JSON file when
// the flight ends.
type Backend struct {
	cfg    Config
	flight *core.Flight
	arena  *core.Arena

	states    []core.DroneState
	crashes   []core.CrashEvent
	sightings []core.SensorSighting

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg Config) *Backend {
	return &Backend{
		cfg: cfg,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartFlight begins recording a new flight
func (b *Backend) StartFlight(flight *core.Flight, arena *core.Arena) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flight = flight
	b.arena = arena

	// Reset all collections
	b.states = nil
	b.crashes = nil
	b.sightings = nil

	return nil
}

// EndFlight finalizes and exports the flight data
func (b *Backend) EndFlight() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.flight == nil {
		return fmt.Errorf("no flight in progress")
	}

	return b.exportJSON()
}

// RecordDroneState records a telemetry sample
func (b *Backend) RecordDroneState(s *core.DroneState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, *s)
	return nil
}

// RecordCrashEvent records a boundary contact
func (b *Backend) RecordCrashEvent(e *core.CrashEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.crashes = append(b.crashes, *e)
	return nil
}

// RecordSensorSighting records a sensor boundary detection
func (b *Backend) RecordSensorSighting(s *core.SensorSighting) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sightings = append(b.sightings, *s)
	return nil
}

// RecordFlightPerformance is a no-op — performance samples are not part of
// the replay file.
func (b *Backend) RecordFlightPerformance(p *core.FlightPerformance) error {
	return nil
}

// StateCount returns the number of recorded telemetry samples.
func (b *Backend) StateCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.states)
}
