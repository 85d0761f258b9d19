// Package v1 contains the v1 export format for flight replay files.
// This format is consumed by the web replay viewer.
package v1

// Export is the root JSON structure for the v1 format
type Export struct {
	SimulatorVersion string    `json:"simulatorVersion"`
	FlightName       string    `json:"flightName"`
	ArenaName        string    `json:"arenaName"`
	ArenaSource      string    `json:"arenaSource"`
	ArenaWidth       int       `json:"arenaWidth"`
	ArenaHeight      int       `json:"arenaHeight"`
	BoundsColor      string    `json:"boundsColor"`
	CaptureInterval  float32   `json:"captureInterval"`
	EndTick          uint      `json:"endTick"`
	Tag              string    `json:"tag"`
	SensorLayout     []float64 `json:"sensorLayout"`
	// FlightPath is the flown track as a WKT XYZM linestring in EPSG:3857,
	// with the capture tick carried in the measure. Empty when the flight
	// has fewer than two samples.
	FlightPath string  `json:"flightPath,omitempty"`
	Track      [][]any `json:"track"`
	Events     [][]any `json:"events"`
}
