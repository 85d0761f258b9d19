package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SimInfo{},
	&Arena{},
	&Flight{},
	&DroneState{},
	&CrashEvent{},
	&SensorSighting{},
	&FlightPerformance{},
}

// DatabaseModelsSQLite is the subset migrated into local SQLite databases.
var DatabaseModelsSQLite = []interface{}{
	&SimInfo{},
	&Arena{},
	&Flight{},
	&DroneState{},
	&CrashEvent{},
	&SensorSighting{},
	&FlightPerformance{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SimInfo contains group information about the instance
type SimInfo struct {
	gorm.Model
	GroupName        string `json:"groupName" gorm:"size:127"` // primary key
	GroupDescription string `json:"groupDescription" gorm:"size:255"`
	GroupWebsite     string `json:"groupURL" gorm:"size:255"`
}

func (*SimInfo) TableName() string {
	return "sim_infos"
}

// FlightPerformance is the model for recorder performance metrics
type FlightPerformance struct {
	Time                time.Time         `json:"time" gorm:"type:timestamptz;index:idx_time"`
	FlightID            uint              `json:"flightId" gorm:"index:idx_flightperformance_flight_id"`
	Flight              Flight            `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	CaptureTick         uint              `json:"captureTick"`
	WriteQueueLengths   WriteQueueLengths `json:"writeQueueLengths" gorm:"embedded;embeddedPrefix:writequeue_"`
	LastWriteDurationMs float32           `json:"lastWriteDurationMs"`
}

func (*FlightPerformance) TableName() string {
	return "flight_performances"
}

// WriteQueueLengths is the model for the write queue lengths
type WriteQueueLengths struct {
	DroneStates     uint16 `json:"droneStates"`
	CrashEvents     uint16 `json:"crashEvents"`
	SensorSightings uint16 `json:"sensorSightings"`
}

////////////////////////
// RECORDING MODELS
////////////////////////

// Arena is the main model for a maze raster
type Arena struct {
	gorm.Model
	Name        string     `json:"name" gorm:"size:127"`
	SourceFile  string     `json:"sourceFile" gorm:"size:255"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	BoundsColor string     `json:"boundsColor" gorm:"size:16"`
	Latitude    float32    `json:"latitude" gorm:"-"`
	Longitude   float32    `json:"longitude" gorm:"-"`
	Location    geom.Point `json:"location"`
	Flights     []Flight
}

func (*Arena) TableName() string {
	return "arenas"
}

func (a *Arena) GetOrInsert(db *gorm.DB) (
	created bool,
	err error,
) {
	var existingArena Arena
	err = db.Where("name = ?", a.Name).First(&existingArena).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			// insert
			err = db.Create(a).Error
			return true, err
		}
		return false, err
	}
	// overwrite with db record if found
	*a = existingArena
	return false, nil
}

// Flight is the main model for a recorded simulation run
type Flight struct {
	gorm.Model
	FlightName       string    `json:"flightName" gorm:"size:200"`
	StartTime        time.Time `json:"flightStart" gorm:"type:timestamptz;index:idx_flight_start"`
	ArenaID          uint
	Arena            Arena          `gorm:"foreignkey:ArenaID"`
	CaptureInterval  float32        `json:"-" gorm:"default:0.04"`
	SimulatorVersion string         `json:"simulatorVersion" gorm:"size:64;default:1.0.0"`
	Tag              string         `json:"tag" gorm:"size:127"`
	SensorLayout     datatypes.JSON `json:"sensorLayout" gorm:"type:jsonb;default:'[]'"` // beam bearings in degrees

	DroneStates     []DroneState
	CrashEvents     []CrashEvent
	SensorSightings []SensorSighting
}

func (*Flight) TableName() string {
	return "flights"
}

// DroneState is drone telemetry at a single capture tick
type DroneState struct {
	ID          uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time `json:"time" gorm:"type:timestamptz;"`
	FlightID    uint      `json:"flightId" gorm:"index:idx_dronestate_flight_id"`
	Flight      Flight    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	CaptureTick uint      `json:"captureTick" gorm:"index:idx_capture_tick"`

	Position       geom.Point     `json:"position"`                      // Georeferenced pixel position
	Yaw            float32        `json:"yaw" gorm:"default:0"`          // Heading in degrees, [0,360)
	Speed          float32        `json:"speed" gorm:"default:0"`        // Throttle magnitude, [0,2]
	Mode           string         `json:"mode" gorm:"size:16"`           // GROUND, TAKE_OFF or LAND
	Battery        string         `json:"battery" gorm:"size:16"`        // Remaining budget as H:MM:SS
	BatterySeconds float32        `json:"batterySeconds"`                // Remaining budget in seconds
	CrashCount     int            `json:"crashCount" gorm:"default:0"`   // Monotonic boundary contact counter
	Score          int            `json:"score" gorm:"default:0"`        // Externally maintained score
	Sensors        datatypes.JSON `json:"sensors" gorm:"type:jsonb;default:'[]'"` // Per-beam readings
}

func (*DroneState) TableName() string {
	return "drone_states"
}

// CrashEvent is a boundary contact sampled at the drone's own pixel
type CrashEvent struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time" gorm:"type:timestamptz;"`
	FlightID    uint       `json:"flightId" gorm:"index:idx_crashevent_flight_id"`
	Flight      Flight     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	CaptureTick uint       `json:"captureTick"`
	Position    geom.Point `json:"position"`
	CrashCount  int        `json:"crashCount"` // Counter value after this contact
}

func (*CrashEvent) TableName() string {
	return "crash_events"
}

// SensorSighting is one beam's first detection of a boundary pixel.
// Sightings never contribute to the crash counter.
type SensorSighting struct {
	ID          uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time        time.Time  `json:"time" gorm:"type:timestamptz;"`
	FlightID    uint       `json:"flightId" gorm:"index:idx_sighting_flight_id"`
	Flight      Flight     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:FlightID;"`
	CaptureTick uint       `json:"captureTick"`
	SensorIndex uint8      `json:"sensorIndex"` // 0 = head, 1 = right, 2 = left
	Bearing     float32    `json:"bearing"`     // Beam bearing at detection, degrees
	Position    geom.Point `json:"position"`    // Georeferenced hit pixel
}

func (*SensorSighting) TableName() string {
	return "sensor_sightings"
}
