package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mazeflight/simulator/pkg/core"
)

// PathLineString builds the flight path as an XYZM linestring from recorded
// drone states. Z is always 0 (2D flight); the measure carries the capture
// tick so replay tools can interpolate along the path.
func PathLineString(anchor geom.Point, states []core.DroneState) (geom.LineString, error) {
	if len(states) < 2 {
		return geom.LineString{}, fmt.Errorf("flight path needs at least 2 states, got %d", len(states))
	}

	ax, ay := anchorXY(anchor)
	flat := make([]float64, 0, len(states)*4)
	for _, s := range states {
		flat = append(flat,
			ax+s.Position.X,
			ay-s.Position.Y,
			0,
			float64(s.CaptureTick),
		)
	}

	seq := geom.NewSequence(flat, geom.DimXYZM)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("building flight path: %w", err)
	}
	return ls, nil
}
