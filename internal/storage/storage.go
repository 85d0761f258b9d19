// internal/storage/storage.go
package storage

import (
	"time"

	"github.com/mazeflight/simulator/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Flight management
	StartFlight(flight *core.Flight, arena *core.Arena) error
	EndFlight() error

	// Telemetry recording
	RecordDroneState(s *core.DroneState) error
	RecordCrashEvent(e *core.CrashEvent) error
	RecordSensorSighting(s *core.SensorSighting) error
	RecordFlightPerformance(p *core.FlightPerformance) error
}

// Uploadable is an optional interface for storage backends that produce
// replay files suitable for upload to the web viewer.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}

// Reporter is an optional interface for backends that expose write
// pipeline health, used for flight performance sampling.
type Reporter interface {
	QueueLengths() (states, crashes, sightings int)
	LastWriteDuration() time.Duration
}
