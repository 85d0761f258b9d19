// pkg/core/flight.go
package core

import "time"

// Arena represents a maze raster the simulation flies in.
type Arena struct {
	ID          uint
	Name        string
	SourceFile  string
	Width       int
	Height      int
	BoundsColor string
	Latitude    float32
	Longitude   float32
	Location    Position
}

// Flight represents one recorded simulation run.
type Flight struct {
	ID               uint
	FlightName       string
	StartTime        time.Time
	ArenaID          uint
	CaptureInterval  float32
	SimulatorVersion string
	Tag              string
	SensorLayout     []float64
}

// UploadMetadata describes an exported replay file for upload to a viewer.
type UploadMetadata struct {
	ArenaName      string
	FlightName     string
	FlightDuration float64
	Tag            string
}
