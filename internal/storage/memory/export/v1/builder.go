package v1

import (
	"github.com/mazeflight/simulator/internal/geo"
	"github.com/mazeflight/simulator/pkg/core"
)

// FlightData contains all the data needed to build an export
type FlightData struct {
	Flight *core.Flight
	Arena  *core.Arena

	States    []core.DroneState
	Crashes   []core.CrashEvent
	Sightings []core.SensorSighting
}

// Build creates an Export from the flight data
func Build(data *FlightData) Export {
	export := Export{
		SimulatorVersion: data.Flight.SimulatorVersion,
		FlightName:       data.Flight.FlightName,
		ArenaName:        data.Arena.Name,
		ArenaSource:      data.Arena.SourceFile,
		ArenaWidth:       data.Arena.Width,
		ArenaHeight:      data.Arena.Height,
		BoundsColor:      data.Arena.BoundsColor,
		CaptureInterval:  data.Flight.CaptureInterval,
		Tag:              data.Flight.Tag,
		SensorLayout:     data.Flight.SensorLayout,
		Track:            make([][]any, 0, len(data.States)),
		Events:           make([][]any, 0, len(data.Crashes)+len(data.Sightings)),
	}
	if export.SensorLayout == nil {
		export.SensorLayout = []float64{}
	}

	var maxTick uint = 0

	// Track samples
	// Format: [tick, [x, y], yaw, speed, mode, battery, crashCount, score, sensors]
	// where sensors is: [[detected, [hx, hy]], ...] in head/right/left order
	for _, state := range data.States {
		sensors := make([][]any, 0, 3)
		for _, r := range []core.SensorReading{state.Head, state.Right, state.Left} {
			sensors = append(sensors, []any{
				boolToInt(r.Detected),
				[]float64{r.Hit.X, r.Hit.Y},
			})
		}

		sample := []any{
			state.CaptureTick,
			[]float64{state.Position.X, state.Position.Y},
			state.Yaw,
			state.Speed,
			state.Mode,
			state.Battery,
			state.CrashCount,
			state.Score,
			sensors,
		}
		export.Track = append(export.Track, sample)
		if state.CaptureTick > maxTick {
			maxTick = state.CaptureTick
		}
	}

	// Crash events
	// Format: [tick, "crash", [x, y], crashCount]
	for _, evt := range data.Crashes {
		export.Events = append(export.Events, []any{
			evt.CaptureTick,
			"crash",
			[]float64{evt.Position.X, evt.Position.Y},
			evt.CrashCount,
		})
		if evt.CaptureTick > maxTick {
			maxTick = evt.CaptureTick
		}
	}

	// Sensor sightings
	// Format: [tick, "sighting", sensorIndex, bearing, [x, y]]
	for _, s := range data.Sightings {
		export.Events = append(export.Events, []any{
			s.CaptureTick,
			"sighting",
			s.SensorIndex,
			s.Bearing,
			[]float64{s.Hit.X, s.Hit.Y},
		})
		if s.CaptureTick > maxTick {
			maxTick = s.CaptureTick
		}
	}

	export.EndTick = maxTick
	export.FlightPath = flightPathWKT(data.Arena, data.States)
	return export
}

// flightPathWKT renders the flown track as a WKT linestring anchored at the
// arena's projected location. Flights with fewer than two samples have no
// path.
func flightPathWKT(arena *core.Arena, states []core.DroneState) string {
	anchor, err := geo.Coords3857From4326(float64(arena.Longitude), float64(arena.Latitude))
	if err != nil {
		return ""
	}
	path, err := geo.PathLineString(anchor, states)
	if err != nil {
		return ""
	}
	return path.AsText()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
