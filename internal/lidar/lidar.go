// Package lidar models a single simulated ranging beam. A sensor owns an
// angular offset accumulated alongside the drone's yaw and a mount position
// that follows the drone's pixel position; casting marches pixel by pixel
// along the beam until it samples the bounds color or runs out of range.
package lidar

import (
	"math"

	"github.com/mazeflight/simulator/internal/raster"
)

// Hit is the pixel where a cast first sampled the bounds color.
type Hit struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sensor is one ranging beam.
//
// The bearing is tracked additively: every rotation applied to the drone's
// yaw is applied to the sensor's angle as well, so the stored angle is always
// the absolute bearing of the beam. It is never recomputed from yaw plus a
// fixed offset, and no wraparound is needed since only cos/sin consume it.
type Sensor struct {
	angle    float64 // degrees, absolute bearing by additive tracking
	mountX   int
	mountY   int
	maxRange int
}

// New creates a sensor with the given initial bearing (degrees, typically the
// drone's yaw plus a fixed layout offset) and scan distance in pixels.
func New(initialAngle float64, maxRange int) *Sensor {
	return &Sensor{
		angle:    initialAngle,
		maxRange: maxRange,
	}
}

// AddAngle rotates the beam by delta degrees.
func (s *Sensor) AddAngle(delta float64) {
	s.angle += delta
}

// Angle returns the beam's current absolute bearing in degrees.
func (s *Sensor) Angle() float64 {
	return s.angle
}

// Move relocates the beam's mount point, normally to the drone's rounded
// pixel position after the drone moves.
func (s *Sensor) Move(x, y int) {
	s.mountX = x
	s.mountY = y
}

// Mount returns the current mount pixel.
func (s *Sensor) Mount() (int, int) {
	return s.mountX, s.mountY
}

// MaxRange returns the scan distance in pixels.
func (s *Sensor) MaxRange() int {
	return s.maxRange
}

// Cast samples the raster at unit steps outward from the mount along the
// beam's bearing. It returns the first pixel whose color equals bounds and
// true, or a zero Hit and false when maxRange is exhausted without a match.
// Cast never mutates sensor state; a raster error is surfaced unchanged.
func (s *Sensor) Cast(r raster.Raster, bounds raster.Color) (Hit, bool, error) {
	rad := s.angle * math.Pi / 180
	dx := math.Cos(rad)
	dy := math.Sin(rad)

	for step := 1; step <= s.maxRange; step++ {
		x := s.mountX + int(math.Round(dx*float64(step)))
		y := s.mountY + int(math.Round(dy*float64(step)))

		c, err := r.ColorAt(x, y)
		if err != nil {
			return Hit{}, false, err
		}
		if c == bounds {
			return Hit{X: x, Y: y}, true, nil
		}
	}
	return Hit{}, false, nil
}

// CheckBounds is the read-only query the tick loop uses to surface boundary
// sightings for the rendering collaborator. Identical to Cast; the separate
// name keeps the reporting call sites honest about not expecting mutation.
func (s *Sensor) CheckBounds(r raster.Raster, bounds raster.Color) (Hit, bool, error) {
	return s.Cast(r, bounds)
}
