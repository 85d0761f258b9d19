package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mazeflight/simulator/internal/geo"
	"github.com/mazeflight/simulator/internal/model"
	"github.com/mazeflight/simulator/pkg/core"
)

// ArenaToCore converts a GORM Arena to a core.Arena.
func ArenaToCore(a model.Arena) core.Arena {
	var location core.Position
	if coord, ok := a.Location.Coordinates(); ok {
		location = core.Position{X: coord.XY.X, Y: coord.XY.Y}
	}
	return core.Arena{
		ID:          a.ID,
		Name:        a.Name,
		SourceFile:  a.SourceFile,
		Width:       a.Width,
		Height:      a.Height,
		BoundsColor: a.BoundsColor,
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		Location:    location,
	}
}

// FlightToCore converts a GORM Flight to a core.Flight.
func FlightToCore(f model.Flight) core.Flight {
	var layout []float64
	if len(f.SensorLayout) > 0 {
		_ = json.Unmarshal(f.SensorLayout, &layout)
	}
	return core.Flight{
		ID:               f.ID,
		FlightName:       f.FlightName,
		StartTime:        f.StartTime,
		ArenaID:          f.ArenaID,
		CaptureInterval:  f.CaptureInterval,
		SimulatorVersion: f.SimulatorVersion,
		Tag:              f.Tag,
		SensorLayout:     layout,
	}
}

// DroneStateToCore converts a GORM DroneState back to a core.DroneState with
// the pixel position recovered relative to the arena anchor.
func DroneStateToCore(s model.DroneState, anchor geom.Point) core.DroneState {
	var readings []core.SensorReading
	if len(s.Sensors) > 0 {
		_ = json.Unmarshal(s.Sensors, &readings)
	}
	out := core.DroneState{
		ID:             s.ID,
		FlightID:       s.FlightID,
		Time:           s.Time,
		CaptureTick:    s.CaptureTick,
		Position:       geo.PositionFromPoint(anchor, s.Position),
		Yaw:            float64(s.Yaw),
		Speed:          float64(s.Speed),
		Mode:           s.Mode,
		Battery:        s.Battery,
		BatterySeconds: float64(s.BatterySeconds),
		CrashCount:     s.CrashCount,
		Score:          s.Score,
	}
	if len(readings) > 0 {
		out.Head = readings[0]
	}
	if len(readings) > 1 {
		out.Right = readings[1]
	}
	if len(readings) > 2 {
		out.Left = readings[2]
	}
	return out
}

// CrashEventToCore converts a GORM CrashEvent to a core.CrashEvent.
func CrashEventToCore(e model.CrashEvent, anchor geom.Point) core.CrashEvent {
	return core.CrashEvent{
		ID:          e.ID,
		FlightID:    e.FlightID,
		Time:        e.Time,
		CaptureTick: e.CaptureTick,
		Position:    geo.PositionFromPoint(anchor, e.Position),
		CrashCount:  e.CrashCount,
	}
}

// SensorSightingToCore converts a GORM SensorSighting to a core.SensorSighting.
func SensorSightingToCore(s model.SensorSighting, anchor geom.Point) core.SensorSighting {
	return core.SensorSighting{
		ID:          s.ID,
		FlightID:    s.FlightID,
		Time:        s.Time,
		CaptureTick: s.CaptureTick,
		SensorIndex: int(s.SensorIndex),
		Bearing:     float64(s.Bearing),
		Hit:         geo.PositionFromPoint(anchor, s.Position),
	}
}

// FlightPerformanceToCore converts a GORM FlightPerformance to its core model.
func FlightPerformanceToCore(p model.FlightPerformance) core.FlightPerformance {
	return core.FlightPerformance{
		FlightID:            p.FlightID,
		Time:                p.Time,
		CaptureTick:         p.CaptureTick,
		StateQueue:          int(p.WriteQueueLengths.DroneStates),
		CrashQueue:          int(p.WriteQueueLengths.CrashEvents),
		SightingQueue:       int(p.WriteQueueLengths.SensorSightings),
		LastWriteDurationMs: int64(p.LastWriteDurationMs),
	}
}
