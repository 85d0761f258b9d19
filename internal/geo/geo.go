package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"

	"github.com/mazeflight/simulator/pkg/core"
)

// GEO POINTS
// Positions are always stored as EPSG:3857, including arena anchor points,
// because SQLite has no spatial awareness and point data must survive a
// round trip through its WKB Scan/Value representation.

// Coords3857From4326 creates a point from a longitude and latitude,
// transformed from EPSG:4326 to EPSG:3857. Used for arena anchor points
// configured as lat/long.
func Coords3857From4326(
	longitude float64,
	latitude float64,
) (
	point geom.Point,
	err error,
) {
	var x, y float64
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ = f(longitude, latitude, 0)
	return geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: x, Y: y},
			Z:  0,
		},
	)
}

// PointFromPixel georeferences a raster pixel against an arena anchor.
// The anchor is the arena's top-left corner in EPSG:3857; one pixel maps to
// one meter. Raster y grows downward, so the northing decreases with y.
// Non-finite inputs degrade to the empty point.
func PointFromPixel(anchor geom.Point, x, y float64) geom.Point {
	ax, ay := anchorXY(anchor)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY: geom.XY{X: ax + x, Y: ay - y},
			Z:  0,
		},
	)
	if err != nil {
		return geom.Point{}
	}
	return point
}

// PositionFromPoint converts a stored point back to a plain core.Position
// relative to the anchor.
func PositionFromPoint(anchor geom.Point, p geom.Point) core.Position {
	coord, ok := p.Coordinates()
	if !ok {
		return core.Position{}
	}
	ax, ay := anchorXY(anchor)
	return core.Position{X: coord.XY.X - ax, Y: ay - coord.XY.Y}
}

func anchorXY(anchor geom.Point) (float64, float64) {
	coord, ok := anchor.Coordinates()
	if !ok {
		return 0, 0
	}
	return coord.XY.X, coord.XY.Y
}
