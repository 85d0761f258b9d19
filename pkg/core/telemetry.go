// pkg/core/telemetry.go
package core

import "time"

// Position represents a 2D raster coordinate without GIS dependencies.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// SensorReading is one beam's reading inside a drone state sample.
type SensorReading struct {
	Bearing  float64  `json:"bearing"`
	Detected bool     `json:"detected"`
	Hit      Position `json:"hit"`
}

// DroneState represents drone telemetry at a point in time.
type DroneState struct {
	ID             uint
	FlightID       uint
	Time           time.Time
	CaptureTick    uint
	Position       Position
	Yaw            float64
	Speed          float64
	Mode           string
	Battery        string
	BatterySeconds float64
	CrashCount     int
	Score          int
	Head           SensorReading
	Right          SensorReading
	Left           SensorReading
}

// CrashEvent represents a boundary contact at the drone's own pixel.
type CrashEvent struct {
	ID          uint
	FlightID    uint
	Time        time.Time
	CaptureTick uint
	Position    Position
	CrashCount  int
}

// SensorSighting represents one sensor's boundary detection. Sightings are
// a reporting channel separate from crashes.
type SensorSighting struct {
	ID          uint
	FlightID    uint
	Time        time.Time
	CaptureTick uint
	SensorIndex int
	Bearing     float64
	Hit         Position
}

// FlightPerformance represents recorder performance data sampled during a
// flight.
type FlightPerformance struct {
	ID                  uint
	FlightID            uint
	Time                time.Time
	CaptureTick         uint
	StateQueue          int
	CrashQueue          int
	SightingQueue       int
	LastWriteDurationMs int64
}
