package geo

import (
	"math"
	"testing"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/mazeflight/simulator/pkg/core"
)

func point3857(x, y float64) geom.Point {
	p, err := geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}, Z: 0})
	if err != nil {
		panic(err)
	}
	return p
}

func TestCoords3857From4326(t *testing.T) {
	// Equator/prime meridian maps to the 3857 origin.
	p, err := Coords3857From4326(0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coord, ok := p.Coordinates()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	if math.Abs(coord.XY.X) > 1e-6 || math.Abs(coord.XY.Y) > 1e-6 {
		t.Errorf("expected origin, got %v", coord.XY)
	}
}

func TestCoords3857From4326_Longitude(t *testing.T) {
	// One degree of longitude at the equator is ~111,319 meters in 3857.
	p, err := Coords3857From4326(1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	coord, _ := p.Coordinates()
	if math.Abs(coord.XY.X-111319.49) > 1 {
		t.Errorf("expected x near 111319.49, got %f", coord.XY.X)
	}
}

func TestPointFromPixel(t *testing.T) {
	anchor := point3857(1000, 5000)

	p := PointFromPixel(anchor, 10, 20)
	coord, _ := p.Coordinates()
	if coord.XY.X != 1010 {
		t.Errorf("expected easting 1010, got %f", coord.XY.X)
	}
	if coord.XY.Y != 4980 {
		t.Errorf("expected northing 4980 (y grows downward), got %f", coord.XY.Y)
	}
}

func TestPointFromPixel_NonFinite(t *testing.T) {
	anchor := point3857(0, 0)
	p := PointFromPixel(anchor, math.NaN(), 0)
	if !p.IsEmpty() {
		t.Error("expected empty point for non-finite input")
	}
}

func TestPositionFromPoint_RoundTrip(t *testing.T) {
	anchor := point3857(1000, 5000)

	p := PointFromPixel(anchor, 12.5, 7.25)
	pos := PositionFromPoint(anchor, p)
	if pos.X != 12.5 || pos.Y != 7.25 {
		t.Errorf("expected (12.5,7.25), got %+v", pos)
	}
}

func TestPathLineString(t *testing.T) {
	anchor := point3857(100, 200)
	states := []core.DroneState{
		{Position: core.Position{X: 0, Y: 0}, CaptureTick: 0},
		{Position: core.Position{X: 1, Y: 1}, CaptureTick: 1},
		{Position: core.Position{X: 2, Y: 3}, CaptureTick: 2},
	}

	ls, err := PathLineString(anchor, states)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := ls.Coordinates()
	if seq.Length() != 3 {
		t.Fatalf("expected 3 points, got %d", seq.Length())
	}
	if seq.CoordinatesType() != geom.DimXYZM {
		t.Errorf("expected XYZM coordinates, got %v", seq.CoordinatesType())
	}

	last := seq.Get(2)
	if last.XY.X != 102 || last.XY.Y != 197 {
		t.Errorf("unexpected last point: %v", last.XY)
	}
	if last.M != 2 {
		t.Errorf("expected measure 2, got %f", last.M)
	}
}

func TestPathLineString_TooShort(t *testing.T) {
	anchor := point3857(0, 0)
	_, err := PathLineString(anchor, []core.DroneState{{}})
	if err == nil {
		t.Error("expected error for single-state path")
	}
}
