// Package gormstorage implements the storage.Backend interface over any
// GORM-supported database with internal queues and a background DB writer
// goroutine. The SQLite and Postgres backends wrap it via composition.
package gormstorage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/gorm"

	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/model"
	"github.com/mazeflight/simulator/internal/model/convert"
	"github.com/mazeflight/simulator/internal/queue"
	"github.com/mazeflight/simulator/internal/session"
	"github.com/mazeflight/simulator/pkg/core"
)

const writeInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB             *gorm.DB
	LogManager     *logging.SlogManager
	SessionContext *session.Context
}

// queues holds all the write queues for batch DB insertion.
type queues struct {
	DroneStates     *queue.Queue[model.DroneState]
	CrashEvents     *queue.Queue[model.CrashEvent]
	SensorSightings *queue.Queue[model.SensorSighting]
	Performances    *queue.Queue[model.FlightPerformance]
}

func newQueues() *queues {
	return &queues{
		DroneStates:     queue.New[model.DroneState](),
		CrashEvents:     queue.New[model.CrashEvent](),
		SensorSightings: queue.New[model.SensorSighting](),
		Performances:    queue.New[model.FlightPerformance](),
	}
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps     Dependencies
	queues   *queues
	flightID atomic.Uint64
	stopChan chan struct{}
	dbReady  bool

	// anchor is the arena's projected location, set at StartFlight.
	anchorMu sync.RWMutex
	anchor   geom.Point

	lastWriteMs atomic.Int64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps: deps,
	}
}

// Init creates internal queues, runs schema migration, and starts the DB
// writer goroutine. The DB must be injected via Dependencies.
func (b *Backend) Init() error {
	b.queues = newQueues()
	b.stopChan = make(chan struct{})

	if b.deps.DB == nil {
		// Queue-only mode for unit testing; nothing is written.
		return nil
	}

	if err := b.setupDB(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.dbReady = true

	go b.writerLoop()
	return nil
}

// setupDB migrates tables and creates default instance settings if they don't exist.
func (b *Backend) setupDB() error {
	db := b.deps.DB
	log := b.deps.LogManager

	if !db.Migrator().HasTable(&model.SimInfo{}) {
		if err := db.AutoMigrate(&model.SimInfo{}); err != nil {
			log.WriteLog("setupDB", fmt.Sprintf("Failed to create sim_infos table: %s", err), "ERROR")
			return fmt.Errorf("failed to auto-migrate SimInfo: %w", err)
		}
		if err := db.Create(&model.SimInfo{
			GroupName:        "Maze Flight",
			GroupDescription: "2D drone maze flight recordings",
			GroupWebsite:     "https://mazeflight.dev",
		}).Error; err != nil {
			return fmt.Errorf("failed to create sim_infos entry: %w", err)
		}
	}

	if db.Name() == "postgres" {
		if err := db.Exec(`CREATE Extension IF NOT EXISTS postgis;`).Error; err != nil {
			return fmt.Errorf("failed to create PostGIS Extension: %w", err)
		}
		log.WriteLog("setupDB", "PostGIS Extension created", "INFO")
	}

	log.WriteLog("setupDB", "Migrating schema", "INFO")
	if db.Name() == "postgres" {
		if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	} else {
		if err := db.AutoMigrate(model.DatabaseModelsSQLite...); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	log.WriteLog("setupDB", "Database setup complete", "INFO")
	return nil
}

// Close stops the DB writer goroutine.
func (b *Backend) Close() error {
	if b.stopChan != nil {
		close(b.stopChan)
	}
	return nil
}

// StartFlight performs arena get-or-insert and flight create in the DB.
func (b *Backend) StartFlight(coreFlight *core.Flight, coreArena *core.Arena) error {
	if b.deps.DB == nil {
		return nil
	}

	db := b.deps.DB
	log := b.deps.LogManager

	gormArena := convert.CoreToArena(*coreArena)
	gormFlight := convert.CoreToFlight(*coreFlight)

	if _, err := gormArena.GetOrInsert(db); err != nil {
		log.WriteLog("StartFlight", fmt.Sprintf("Failed to get or insert arena: %v", err), "ERROR")
		return fmt.Errorf("failed to get or insert arena: %w", err)
	}

	gormFlight.Arena = gormArena
	gormFlight.ArenaID = gormArena.ID
	if err := db.Create(&gormFlight).Error; err != nil {
		return fmt.Errorf("failed to insert new flight: %w", err)
	}

	// Assign DB-generated IDs back to core types
	coreFlight.ID = gormFlight.ID
	coreFlight.ArenaID = gormArena.ID
	coreArena.ID = gormArena.ID

	b.flightID.Store(uint64(gormFlight.ID))

	b.anchorMu.Lock()
	b.anchor = gormArena.Location
	b.anchorMu.Unlock()

	if b.deps.SessionContext != nil {
		b.deps.SessionContext.SetFlight(&gormFlight, &gormArena)
	}

	return nil
}

// SetFlightID points the writer at an existing flight row, bypassing
// StartFlight.
func (b *Backend) SetFlightID(id uint) {
	b.flightID.Store(uint64(id))
}

// EndFlight drains the remaining queues synchronously.
func (b *Backend) EndFlight() error {
	if b.deps.DB == nil {
		return nil
	}
	b.flushOnce()
	return nil
}

// RecordDroneState converts and queues a drone state sample.
func (b *Backend) RecordDroneState(s *core.DroneState) error {
	gormObj := convert.CoreToDroneState(*s, b.getAnchor())
	b.queues.DroneStates.Push(gormObj)
	return nil
}

// RecordCrashEvent converts and queues a crash event.
func (b *Backend) RecordCrashEvent(e *core.CrashEvent) error {
	gormObj := convert.CoreToCrashEvent(*e, b.getAnchor())
	b.queues.CrashEvents.Push(gormObj)
	return nil
}

// RecordSensorSighting converts and queues a sensor sighting.
func (b *Backend) RecordSensorSighting(s *core.SensorSighting) error {
	gormObj := convert.CoreToSensorSighting(*s, b.getAnchor())
	b.queues.SensorSightings.Push(gormObj)
	return nil
}

// RecordFlightPerformance converts and queues a performance sample.
func (b *Backend) RecordFlightPerformance(p *core.FlightPerformance) error {
	gormObj := convert.CoreToFlightPerformance(*p)
	b.queues.Performances.Push(gormObj)
	return nil
}

// QueueLengths reports the pending write queue sizes.
func (b *Backend) QueueLengths() (states, crashes, sightings int) {
	if b.queues == nil {
		return 0, 0, 0
	}
	return b.queues.DroneStates.Len(), b.queues.CrashEvents.Len(), b.queues.SensorSightings.Len()
}

// LastWriteDuration reports how long the most recent queue drain took.
func (b *Backend) LastWriteDuration() time.Duration {
	return time.Duration(b.lastWriteMs.Load()) * time.Millisecond
}

func (b *Backend) getAnchor() geom.Point {
	b.anchorMu.RLock()
	defer b.anchorMu.RUnlock()
	return b.anchor
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string), prepare func([]T)) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.GetAndEmpty()
	if prepare != nil {
		prepare(items)
	}
	if err := tx.Create(&items).Error; err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
}

// flushOnce drains all queues into the DB a single time.
func (b *Backend) flushOnce() {
	log := b.deps.LogManager.WriteLog
	flightID := uint(b.flightID.Load())

	stampStates := func(items []model.DroneState) {
		for i := range items {
			items[i].FlightID = flightID
		}
	}
	stampCrashes := func(items []model.CrashEvent) {
		for i := range items {
			items[i].FlightID = flightID
		}
	}
	stampSightings := func(items []model.SensorSighting) {
		for i := range items {
			items[i].FlightID = flightID
		}
	}
	stampPerformances := func(items []model.FlightPerformance) {
		for i := range items {
			items[i].FlightID = flightID
		}
	}

	start := time.Now()
	writeQueue(b.deps.DB, b.queues.DroneStates, "drone states", log, stampStates)
	writeQueue(b.deps.DB, b.queues.CrashEvents, "crash events", log, stampCrashes)
	writeQueue(b.deps.DB, b.queues.SensorSightings, "sensor sightings", log, stampSightings)
	writeQueue(b.deps.DB, b.queues.Performances, "flight performances", log, stampPerformances)
	b.lastWriteMs.Store(time.Since(start).Milliseconds())
}

// writerLoop periodically drains queues into the DB.
func (b *Backend) writerLoop() {
	for {
		select {
		case <-b.stopChan:
			return
		default:
		}

		if !b.dbReady {
			time.Sleep(1 * time.Second)
			continue
		}

		b.flushOnce()
		time.Sleep(writeInterval)
	}
}
