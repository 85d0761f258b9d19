// Package drone implements the simulated agent: 2D point kinematics, the
// flight-mode state machine, the flight-time budget, and the crash/boundary
// bookkeeping. The package is pure state transition code. It consumes a
// raster.Raster for color queries and input intents from the caller, and it
// never draws or blocks.
package drone

import (
	"fmt"
	"math"

	"github.com/mazeflight/simulator/internal/lidar"
	"github.com/mazeflight/simulator/internal/raster"
)

const (
	// MaxSpeed is the drone's nominal speed rating in meters per second.
	// The throttle clamp in Forward caps lower than this; the rating is
	// reported in telemetry only and never enforced in motion code.
	MaxSpeed = 3.0

	// MaxYawSpeed is the nominal yaw rate in degrees per second.
	MaxYawSpeed = 180.0

	// MaxFlightTime is the full battery budget in simulated seconds.
	MaxFlightTime = 300.0

	// TimeStep is the simulated time consumed by one input-handling call.
	TimeStep = 1.0 / 25

	// Radius is the drone's footprint radius in pixels.
	Radius = 3

	throttleStep = 0.2
	speedCeil    = 2.0
	speedFloor   = 0.2
)

// Mode is the flight lifecycle state.
type Mode int

const (
	ModeGround Mode = iota
	ModeTakeOff
	ModeLand
)

func (m Mode) String() string {
	switch m {
	case ModeGround:
		return "GROUND"
	case ModeTakeOff:
		return "TAKE_OFF"
	case ModeLand:
		return "LAND"
	}
	return "UNKNOWN"
}

// Intent is one control input delivered per tick.
type Intent int

const (
	IntentNone Intent = iota
	IntentRotateLeft
	IntentRotateRight
	IntentThrottleUp
	IntentThrottleDown
)

func (i Intent) String() string {
	switch i {
	case IntentRotateLeft:
		return "rotate-left"
	case IntentRotateRight:
		return "rotate-right"
	case IntentThrottleUp:
		return "throttle-up"
	case IntentThrottleDown:
		return "throttle-down"
	}
	return "none"
}

// ParseIntent maps an intent name to its Intent value. Unrecognized names
// map to IntentNone, which HandleInput treats as "no motion".
func ParseIntent(s string) Intent {
	switch s {
	case "rotate-left":
		return IntentRotateLeft
	case "rotate-right":
		return IntentRotateRight
	case "throttle-up":
		return IntentThrottleUp
	case "throttle-down":
		return IntentThrottleDown
	}
	return IntentNone
}

// Sensor index convention for the default three-beam layout.
const (
	SensorHead  = 0
	SensorRight = 1
	SensorLeft  = 2
)

// Sighting is one sensor's boundary detection, surfaced for the rendering
// collaborator to mark. Sightings never increment the crash counter; only
// the drone's own pixel sample does.
type Sighting struct {
	SensorIndex int       `json:"sensorIndex"`
	Hit         lidar.Hit `json:"hit"`
}

// SensorReading is one beam's state inside a Snapshot.
type SensorReading struct {
	Bearing  float64   `json:"bearing"`
	Detected bool      `json:"detected"`
	Hit      lidar.Hit `json:"hit"`
}

// Snapshot is the fixed-shape telemetry record assembled after each tick.
type Snapshot struct {
	X          float64       `json:"x"`
	Y          float64       `json:"y"`
	Yaw        float64       `json:"yaw"`
	Speed      float64       `json:"speed"`
	Mode       string        `json:"mode"`
	Head       SensorReading `json:"head"`
	Right      SensorReading `json:"right"`
	Left       SensorReading `json:"left"`
	CrashCount int           `json:"crash"`
	Score      int           `json:"score"`
	Battery    string        `json:"battery"`
}

// Config describes a drone at construction time.
type Config struct {
	StartX      float64
	StartY      float64
	BoundsColor raster.Color

	// SensorAngles are the initial beam bearings in degrees, one sensor
	// per entry, index 0 = head, 1 = right, 2 = left. Defaults to
	// 0, +30, -30 when empty.
	SensorAngles []float64

	// SensorRange is the scan distance of every beam in pixels.
	SensorRange int

	// FlightTime is the battery budget in simulated seconds.
	// Defaults to MaxFlightTime when zero.
	FlightTime float64
}

type sensorState struct {
	detected bool
	hit      lidar.Hit
}

// Drone aggregates kinematics, lifecycle and the sensor set.
type Drone struct {
	raster      raster.Raster
	boundsColor raster.Color

	x, y  float64
	yaw   float64 // degrees, kept in [0,360)
	speed float64 // [0, speedCeil]

	mode       Mode
	timeBudget float64 // simulated seconds, floored at 0
	crashCount int
	score      int

	sensors  []*lidar.Sensor
	lastCast []sensorState
}

// New creates a grounded drone at the configured start position with its
// sensors mounted at the start pixel.
func New(r raster.Raster, cfg Config) *Drone {
	angles := cfg.SensorAngles
	if len(angles) == 0 {
		angles = []float64{0, 30, -30}
	}
	flightTime := cfg.FlightTime
	if flightTime == 0 {
		flightTime = MaxFlightTime
	}

	d := &Drone{
		raster:      r,
		boundsColor: cfg.BoundsColor,
		x:           cfg.StartX,
		y:           cfg.StartY,
		mode:        ModeGround,
		timeBudget:  flightTime,
		sensors:     make([]*lidar.Sensor, 0, len(angles)),
		lastCast:    make([]sensorState, len(angles)),
	}
	px, py := d.Pixel()
	for _, a := range angles {
		s := lidar.New(a, cfg.SensorRange)
		s.Move(px, py)
		d.sensors = append(d.sensors, s)
	}
	return d
}

// Pixel returns the drone's position rounded to the nearest raster pixel.
func (d *Drone) Pixel() (int, int) {
	return int(math.Round(d.x)), int(math.Round(d.y))
}

// Position returns the exact floating-point pose coordinates.
func (d *Drone) Position() (float64, float64) { return d.x, d.y }

// Yaw returns the heading in degrees, always in [0,360).
func (d *Drone) Yaw() float64 { return d.yaw }

// Speed returns the current throttle magnitude.
func (d *Drone) Speed() float64 { return d.speed }

// Mode returns the lifecycle state.
func (d *Drone) Mode() Mode { return d.mode }

// CrashCount returns the monotonic boundary-contact counter.
func (d *Drone) CrashCount() int { return d.crashCount }

// TimeBudget returns the remaining flight time in simulated seconds.
func (d *Drone) TimeBudget() float64 { return d.timeBudget }

// Score returns the externally maintained score.
func (d *Drone) Score() int { return d.score }

// AddScore adjusts the score. The core stores and reports the score but
// never computes it; scoring rules live with the caller.
func (d *Drone) AddScore(delta int) { d.score += delta }

// Sensors returns the owned beams in index order (head, right, left).
func (d *Drone) Sensors() []*lidar.Sensor { return d.sensors }

// Sightings returns the boundary detections from the most recent check,
// one entry per sensor that saw the bounds color.
func (d *Drone) Sightings() []Sighting {
	var out []Sighting
	for i, st := range d.lastCast {
		if st.detected {
			out = append(out, Sighting{SensorIndex: i, Hit: st.hit})
		}
	}
	return out
}

// HandleInput runs one simulation tick: revive if landed, consume battery,
// check boundaries, then dispatch the intent. It reports true when a motion
// intent was processed, so the caller knows whether to redraw.
//
// When the battery reaches zero on a call the drone lands and the intent is
// discarded. The next input revives it for one processed tick.
func (d *Drone) HandleInput(intent Intent) (bool, error) {
	revived := false
	if d.mode == ModeLand || d.mode == ModeGround {
		d.mode = ModeTakeOff
		revived = true
	}

	if d.timeBudget > 0 {
		d.timeBudget -= TimeStep
		if d.timeBudget < 0 {
			d.timeBudget = 0
		}
	}
	if d.timeBudget == 0 && !revived {
		d.mode = ModeLand
		return false, nil
	}

	if err := d.checkBounds(); err != nil {
		return false, err
	}

	switch intent {
	case IntentRotateLeft:
		return true, d.Rotate(-1)
	case IntentRotateRight:
		return true, d.Rotate(1)
	case IntentThrottleUp:
		d.Forward(1)
		return true, d.Move()
	case IntentThrottleDown:
		d.Backward(1)
		return true, d.Move()
	}
	return false, nil
}

// Rotate turns the drone by direction*speed degrees, direction being -1 or
// +1. The identical delta is applied to every sensor's bearing, so beam aim
// tracks body rotation by construction. A boundary re-check follows.
func (d *Drone) Rotate(direction int) error {
	delta := float64(direction) * d.speed

	d.yaw += delta
	if d.yaw >= 360 {
		d.yaw = math.Mod(d.yaw, 360)
	} else if d.yaw < 0 {
		d.yaw += 360
	}

	for _, s := range d.sensors {
		s.AddAngle(delta)
	}
	return d.checkBounds()
}

// Move integrates the pose one step along the current heading, relocates
// every sensor to the new rounded pixel, then runs collision detection.
func (d *Drone) Move() error {
	rad := d.yaw * math.Pi / 180
	d.x += d.speed * math.Cos(rad)
	d.y += d.speed * math.Sin(rad)

	px, py := d.Pixel()
	for _, s := range d.sensors {
		s.Move(px, py)
	}
	return d.checkBounds()
}

// Forward raises the throttle by 0.2*accel, capped at 2.0.
func (d *Drone) Forward(accel float64) {
	d.speed = math.Min(d.speed+throttleStep*accel, speedCeil)
}

// Backward lowers the throttle by 0.2*accel, floored at 0.2. The floor is
// asymmetric with Forward on purpose: throttling down never stops the drone.
func (d *Drone) Backward(accel float64) {
	d.speed = math.Max(d.speed-throttleStep*accel, speedFloor)
}

// checkBounds casts every sensor and records its sighting, then samples the
// raster at the drone's own pixel. Only the own-pixel sample increments the
// crash counter. A raster error means the collaborator contract was broken
// and is surfaced unchanged.
func (d *Drone) checkBounds() error {
	for i, s := range d.sensors {
		hit, ok, err := s.CheckBounds(d.raster, d.boundsColor)
		if err != nil {
			return fmt.Errorf("sensor %d: %w", i, err)
		}
		d.lastCast[i] = sensorState{detected: ok, hit: hit}
	}

	px, py := d.Pixel()
	c, err := d.raster.ColorAt(px, py)
	if err != nil {
		return fmt.Errorf("drone position: %w", err)
	}
	if c == d.boundsColor {
		d.crashCount++
	}
	return nil
}

// Snapshot assembles the read-only telemetry record for the current state.
func (d *Drone) Snapshot() Snapshot {
	return Snapshot{
		X:          d.x,
		Y:          d.y,
		Yaw:        d.yaw,
		Speed:      d.speed,
		Mode:       d.mode.String(),
		Head:       d.reading(SensorHead),
		Right:      d.reading(SensorRight),
		Left:       d.reading(SensorLeft),
		CrashCount: d.crashCount,
		Score:      d.score,
		Battery:    FormatBattery(d.timeBudget),
	}
}

func (d *Drone) reading(i int) SensorReading {
	if i >= len(d.sensors) {
		return SensorReading{}
	}
	return SensorReading{
		Bearing:  d.sensors[i].Angle(),
		Detected: d.lastCast[i].detected,
		Hit:      d.lastCast[i].hit,
	}
}

// FormatBattery renders a remaining-time budget as H:MM:SS with integer
// seconds and no sub-second component.
func FormatBattery(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
}
