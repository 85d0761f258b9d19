// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/mazeflight/simulator/internal/geo"
	"github.com/mazeflight/simulator/internal/model"
	"github.com/mazeflight/simulator/pkg/core"
)

// sensorsToJSON converts the per-beam readings to datatypes.JSON for DB storage.
func sensorsToJSON(readings []core.SensorReading) datatypes.JSON {
	if len(readings) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(readings)
	return datatypes.JSON(data)
}

// layoutToJSON converts the sensor bearing layout to datatypes.JSON.
func layoutToJSON(layout []float64) datatypes.JSON {
	if len(layout) == 0 {
		return datatypes.JSON("[]")
	}
	data, _ := json.Marshal(layout)
	return datatypes.JSON(data)
}

// CoreToArena converts a core.Arena to a GORM model.Arena. The arena's
// lat/long anchor is projected into EPSG:3857 as the stored Location.
func CoreToArena(a core.Arena) model.Arena {
	location, _ := geo.Coords3857From4326(float64(a.Longitude), float64(a.Latitude))
	return model.Arena{
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

// CoreToFlight converts a core.Flight to a GORM model.Flight.
func CoreToFlight(f core.Flight) model.Flight {
	return model.Flight{
		FlightName:       f.FlightName,
		StartTime:        f.StartTime,
		ArenaID:          f.ArenaID,
		CaptureInterval:  f.CaptureInterval,
		SimulatorVersion: f.SimulatorVersion,
		Tag:              f.Tag,
		SensorLayout:     layoutToJSON(f.SensorLayout),
	}
}

// CoreToDroneState converts a core.DroneState to a GORM model.DroneState,
// georeferencing the pixel position against the arena anchor.
func CoreToDroneState(s core.DroneState, anchor geom.Point) model.DroneState {
	return model.DroneState{
		Time:           s.Time,
		FlightID:       s.FlightID,
		CaptureTick:    s.CaptureTick,
		Position:       geo.PointFromPixel(anchor, s.Position.X, s.Position.Y),
		Yaw:            float32(s.Yaw),
		Speed:          float32(s.Speed),
		Mode:           s.Mode,
		Battery:        s.Battery,
		BatterySeconds: float32(s.BatterySeconds),
		CrashCount:     s.CrashCount,
		Score:          s.Score,
		Sensors:        sensorsToJSON([]core.SensorReading{s.Head, s.Right, s.Left}),
	}
}

// CoreToCrashEvent converts a core.CrashEvent to a GORM model.CrashEvent.
func CoreToCrashEvent(e core.CrashEvent, anchor geom.Point) model.CrashEvent {
	return model.CrashEvent{
		Time:        e.Time,
		FlightID:    e.FlightID,
		CaptureTick: e.CaptureTick,
		Position:    geo.PointFromPixel(anchor, e.Position.X, e.Position.Y),
		CrashCount:  e.CrashCount,
	}
}

// CoreToSensorSighting converts a core.SensorSighting to a GORM model.SensorSighting.
func CoreToSensorSighting(s core.SensorSighting, anchor geom.Point) model.SensorSighting {
	return model.SensorSighting{
		Time:        s.Time,
		FlightID:    s.FlightID,
		CaptureTick: s.CaptureTick,
		SensorIndex: uint8(s.SensorIndex),
		Bearing:     float32(s.Bearing),
		Position:    geo.PointFromPixel(anchor, s.Hit.X, s.Hit.Y),
	}
}

// CoreToFlightPerformance converts a core.FlightPerformance to its GORM model.
func CoreToFlightPerformance(p core.FlightPerformance) model.FlightPerformance {
	return model.FlightPerformance{
		Time:        p.Time,
		FlightID:    p.FlightID,
		CaptureTick: p.CaptureTick,
		WriteQueueLengths: model.WriteQueueLengths{
			DroneStates:     uint16(p.StateQueue),
			CrashEvents:     uint16(p.CrashQueue),
			SensorSightings: uint16(p.SightingQueue),
		},
		LastWriteDurationMs: float32(p.LastWriteDurationMs),
	}
}
