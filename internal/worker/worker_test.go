package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/mazeflight/simulator/internal/cache"
	"github.com/mazeflight/simulator/internal/dispatcher"
	"github.com/mazeflight/simulator/internal/drone"
	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/raster"
	"github.com/mazeflight/simulator/pkg/core"
)

// recordingBackend counts every call so tests can assert what the worker
// handed to storage.
type recordingBackend struct {
	started      int
	ended        int
	states       []core.DroneState
	crashes      []core.CrashEvent
	sightings    []core.SensorSighting
	performances []core.FlightPerformance
	startErr     error
}

func (b *recordingBackend) Init() error  { return nil }
func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) StartFlight(f *core.Flight, a *core.Arena) error {
	if b.startErr != nil {
		return b.startErr
	}
	b.started++
	f.ID = 1
	return nil
}

func (b *recordingBackend) EndFlight() error {
	b.ended++
	return nil
}

func (b *recordingBackend) RecordDroneState(s *core.DroneState) error {
	b.states = append(b.states, *s)
	return nil
}

func (b *recordingBackend) RecordCrashEvent(e *core.CrashEvent) error {
	b.crashes = append(b.crashes, *e)
	return nil
}

func (b *recordingBackend) RecordSensorSighting(s *core.SensorSighting) error {
	b.sightings = append(b.sightings, *s)
	return nil
}

func (b *recordingBackend) RecordFlightPerformance(p *core.FlightPerformance) error {
	b.performances = append(b.performances, *p)
	return nil
}

var wallColor = raster.Color{R: 255}

// testArena is a 60x60 grid with a 5px wall border, open in the middle. The
// wall is thicker than the top speed so the drone cannot step over it into
// out-of-range territory in a single tick.
func testArena() *raster.Grid {
	g := raster.NewGrid(60, 60, raster.Color{})
	g.Border(5, wallColor)
	return g
}

func newTestManager(backend *recordingBackend) *Manager {
	arena := testArena()
	deps := Dependencies{
		LogManager: logging.NewSlogManager(),
		Sightings:  cache.NewSightingCache(),
		NewFlight: func(name string) (*core.Flight, *core.Arena) {
			return &core.Flight{
					FlightName:      name,
					StartTime:       time.Now(),
					CaptureInterval: 0.04,
					SensorLayout:    []float64{0, 30, -30},
				}, &core.Arena{
					Name:        "test grid",
					Width:       60,
					Height:      60,
					BoundsColor: "#FF0000",
				}
		},
		NewDrone: func() *drone.Drone {
			return drone.New(arena, drone.Config{
				StartX:      30,
				StartY:      30,
				BoundsColor: wallColor,
				SensorRange: 40,
			})
		},
	}
	return NewManager(deps, backend)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestDispatcher(t *testing.T, m *Manager) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(nopLogger{})
	if err != nil {
		t.Fatalf("dispatcher.New: %v", err)
	}
	m.RegisterHandlers(d)
	return d
}

func dispatch(t *testing.T, d *dispatcher.Dispatcher, cmd string, args ...string) (any, error) {
	t.Helper()
	return d.Dispatch(dispatcher.Event{Command: cmd, Args: args, Timestamp: time.Now()})
}

func TestFlightLifecycle(t *testing.T) {
	backend := &recordingBackend{}
	m := newTestManager(backend)
	d := newTestDispatcher(t, m)

	if m.Active() {
		t.Fatal("manager active before flight start")
	}

	if _, err := dispatch(t, d, dispatcher.CmdFlightStart, "maiden"); err != nil {
		t.Fatalf("flight start: %v", err)
	}
	if !m.Active() {
		t.Fatal("manager not active after flight start")
	}
	if backend.started != 1 {
		t.Fatalf("StartFlight calls = %d, want 1", backend.started)
	}
	if m.FlightID() != 1 {
		t.Fatalf("FlightID = %d, want 1", m.FlightID())
	}

	if _, err := dispatch(t, d, dispatcher.CmdFlightEnd); err != nil {
		t.Fatalf("flight end: %v", err)
	}
	if m.Active() {
		t.Fatal("manager still active after flight end")
	}
	if backend.ended != 1 {
		t.Fatalf("EndFlight calls = %d, want 1", backend.ended)
	}
	// Final performance sample is recorded at flight end.
	if len(backend.performances) != 1 {
		t.Fatalf("performance samples = %d, want 1", len(backend.performances))
	}
}

func TestIntentWithoutFlight(t *testing.T) {
	m := newTestManager(&recordingBackend{})
	d := newTestDispatcher(t, m)

	_, err := dispatch(t, d, dispatcher.CmdThrottleUp)
	if !errors.Is(err, ErrNoActiveFlight) {
		t.Fatalf("error = %v, want ErrNoActiveFlight", err)
	}
}

func TestDoubleStartRejected(t *testing.T) {
	m := newTestManager(&recordingBackend{})
	d := newTestDispatcher(t, m)

	if _, err := dispatch(t, d, dispatcher.CmdFlightStart, "first"); err != nil {
		t.Fatalf("flight start: %v", err)
	}
	if _, err := dispatch(t, d, dispatcher.CmdFlightStart, "second"); err == nil {
		t.Fatal("second flight start succeeded, want error")
	}
}

func TestEndWithoutFlight(t *testing.T) {
	m := newTestManager(&recordingBackend{})
	d := newTestDispatcher(t, m)

	if _, err := dispatch(t, d, dispatcher.CmdFlightEnd); !errors.Is(err, ErrNoActiveFlight) {
		t.Fatalf("error = %v, want ErrNoActiveFlight", err)
	}
}

func TestStartFlightBackendError(t *testing.T) {
	backend := &recordingBackend{startErr: errors.New("connection refused")}
	m := newTestManager(backend)
	d := newTestDispatcher(t, m)

	if _, err := dispatch(t, d, dispatcher.CmdFlightStart, "maiden"); err == nil {
		t.Fatal("flight start succeeded, want error")
	}
	if m.Active() {
		t.Fatal("manager active after failed flight start")
	}
}

func TestEveryIntentRecordsAState(t *testing.T) {
	backend := &recordingBackend{}
	m := newTestManager(backend)
	d := newTestDispatcher(t, m)

	dispatch(t, d, dispatcher.CmdFlightStart, "maiden")

	intents := []string{
		dispatcher.CmdThrottleUp,
		dispatcher.CmdThrottleUp,
		dispatcher.CmdRotateLeft,
		dispatcher.CmdRotateRight,
		dispatcher.CmdThrottleDown,
	}
	for _, cmd := range intents {
		if _, err := dispatch(t, d, cmd); err != nil {
			t.Fatalf("%s: %v", cmd, err)
		}
	}

	if len(backend.states) != len(intents) {
		t.Fatalf("recorded states = %d, want %d", len(backend.states), len(intents))
	}
	if m.Tick() != uint(len(intents)) {
		t.Fatalf("tick = %d, want %d", m.Tick(), len(intents))
	}

	// Ticks must be sequential starting at 1.
	for i, s := range backend.states {
		if s.CaptureTick != uint(i+1) {
			t.Fatalf("state %d tick = %d, want %d", i, s.CaptureTick, i+1)
		}
		if s.FlightID != 1 {
			t.Fatalf("state %d flightID = %d, want 1", i, s.FlightID)
		}
	}
}

func TestCrashEventOnBoundaryContact(t *testing.T) {
	backend := &recordingBackend{}
	m := newTestManager(backend)
	d := newTestDispatcher(t, m)

	dispatch(t, d, dispatcher.CmdFlightStart, "wall run")

	// Drive straight at yaw 0 (positive x) until the wall band at x=55 is
	// hit. From x=30 with speed ramping 0.2/tick capped at 2.0 the wall is
	// reached well within 60 ticks.
	for i := 0; i < 60; i++ {
		if _, err := dispatch(t, d, dispatcher.CmdThrottleUp); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if len(backend.crashes) > 0 {
			break
		}
	}

	if len(backend.crashes) == 0 {
		t.Fatal("no crash events recorded after flying into the wall")
	}

	first := backend.crashes[0]
	if first.CrashCount != 1 {
		t.Fatalf("first crash count = %d, want 1", first.CrashCount)
	}
}

func TestSightingsDedupedByPixel(t *testing.T) {
	backend := &recordingBackend{}
	m := newTestManager(backend)
	d := newTestDispatcher(t, m)

	dispatch(t, d, dispatcher.CmdFlightStart, "sighting run")

	// The head sensor sees the same wall pixels while the drone sits still
	// rotating back and forth; each pixel must be recorded once.
	dispatch(t, d, dispatcher.CmdRotateLeft)
	dispatch(t, d, dispatcher.CmdRotateRight)
	dispatch(t, d, dispatcher.CmdRotateLeft)
	dispatch(t, d, dispatcher.CmdRotateRight)

	seen := make(map[[2]float64]int)
	for _, s := range backend.sightings {
		seen[[2]float64{s.Hit.X, s.Hit.Y}]++
	}
	for px, n := range seen {
		if n > 1 {
			t.Fatalf("pixel %v recorded %d times, want 1", px, n)
		}
	}
	if len(backend.sightings) != m.deps.Sightings.Len() {
		t.Fatalf("recorded sightings = %d, cache size = %d",
			len(backend.sightings), m.deps.Sightings.Len())
	}
}

func TestPerformanceSampledEveryInterval(t *testing.T) {
	backend := &recordingBackend{}
	m := newTestManager(backend)
	d := newTestDispatcher(t, m)

	dispatch(t, d, dispatcher.CmdFlightStart, "perf run")

	for i := 0; i < perfSampleTicks*2; i++ {
		dispatch(t, d, dispatcher.CmdRotateLeft)
	}

	if len(backend.performances) != 2 {
		t.Fatalf("performance samples = %d, want 2", len(backend.performances))
	}
}

func TestSnapshotReflectsDrone(t *testing.T) {
	m := newTestManager(&recordingBackend{})
	d := newTestDispatcher(t, m)

	if _, ok := m.Snapshot(); ok {
		t.Fatal("snapshot reported active before flight start")
	}

	dispatch(t, d, dispatcher.CmdFlightStart, "maiden")
	dispatch(t, d, dispatcher.CmdThrottleUp)

	snap, ok := m.Snapshot()
	if !ok {
		t.Fatal("snapshot not active during flight")
	}
	if snap.Mode != "TAKE_OFF" {
		t.Fatalf("mode = %s, want TAKE_OFF", snap.Mode)
	}
	if snap.X <= 30 {
		t.Fatalf("x = %v, want > 30 after throttle up at yaw 0", snap.X)
	}
}
