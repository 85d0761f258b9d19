// Package monitor reports simulator health: the :STATUS: command, a
// periodically refreshed status file, and TimescaleDB hypertable setup for
// the telemetry tables.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/mazeflight/simulator/internal/dispatcher"
	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/session"
	"github.com/mazeflight/simulator/internal/worker"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB              *gorm.DB // optional, may be nil
	LogManager      *logging.SlogManager
	SessionContext  *session.Context
	WorkerManager   *worker.Manager
	StatusDir       string
	IsDatabaseValid func() bool
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status is the JSON shape returned by the status command and written to the
// status file.
type Status struct {
	Time       time.Time `json:"time"`
	Flight     string    `json:"flight"`
	Arena      string    `json:"arena"`
	Active     bool      `json:"active"`
	Tick       uint      `json:"tick"`
	Drone      any       `json:"drone,omitempty"`
	Queues     Queues    `json:"writeQueues"`
	LastWrite  int64     `json:"lastWriteMs"`
	DatabaseOK bool      `json:"databaseOk"`
}

// Queues reports pending backend write queue lengths.
type Queues struct {
	DroneStates     int `json:"droneStates"`
	CrashEvents     int `json:"crashEvents"`
	SensorSightings int `json:"sensorSightings"`
}

// GetStatus assembles the current program status.
func (s *Service) GetStatus() Status {
	flight := s.deps.SessionContext.GetFlight()
	arena := s.deps.SessionContext.GetArena()
	states, crashes, sightings := s.deps.WorkerManager.QueueLengths()

	st := Status{
		Time:   time.Now(),
		Flight: flight.FlightName,
		Arena:  arena.Name,
		Active: s.deps.WorkerManager.Active(),
		Tick:   s.deps.WorkerManager.Tick(),
		Queues: Queues{
			DroneStates:     states,
			CrashEvents:     crashes,
			SensorSightings: sightings,
		},
		LastWrite: s.deps.WorkerManager.LastWriteDuration().Milliseconds(),
	}

	if snap, ok := s.deps.WorkerManager.Snapshot(); ok {
		st.Drone = snap
	}
	if s.deps.IsDatabaseValid != nil {
		st.DatabaseOK = s.deps.IsDatabaseValid()
	}

	return st
}

// RegisterHandlers binds the status command to the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(dispatcher.CmdStatus, s.handleStatus)
}

// handleStatus returns the current status as indented JSON.
func (s *Service) handleStatus(_ dispatcher.Event) (any, error) {
	data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}
	return string(data), nil
}

// ValidateHypertables validates and creates TimescaleDB hypertables for the
// telemetry tables. Keys are table names, values the compress_segmentby
// columns.
func (s *Service) ValidateHypertables(tables map[string][]string) error {
	functionName := "validateHypertables"

	if s.deps.DB == nil {
		return fmt.Errorf("no database connection")
	}

	for table := range tables {
		hypertable := any(nil)
		s.deps.DB.Exec(`SELECT x.* FROM timescaledb_information.hypertables WHERE hypertable_name = ?`, table).Scan(&hypertable)
		if hypertable != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Table %s is already configured`, table), "INFO")
			continue
		}

		queryCreateHypertable := fmt.Sprintf(`
				SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true);
			`, table)
		err := s.deps.DB.Exec(queryCreateHypertable).Error
		if err != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Failed to create hypertable for %s. Err: %s`, table, err), "ERROR")
			return err
		}
		s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Created hypertable for %s`, table), "INFO")

		queryCompressHypertable := fmt.Sprintf(`
				ALTER TABLE %s SET (
					timescaledb.compress,
					timescaledb.compress_segmentby = ?);
			`, table)
		err = s.deps.DB.Exec(
			queryCompressHypertable,
			strings.Join(tables[table], ","),
		).Error
		if err != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Failed to enable compression for %s. Err: %s`, table, err), "ERROR")
			return err
		}

		queryCompressAfterHypertable := fmt.Sprintf(`
				SELECT add_compression_policy(
					'%s',
					compress_after => interval '14 day');
			`, table)
		err = s.deps.DB.Exec(queryCompressAfterHypertable).Error
		if err != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Failed to set compress_after for %s. Err: %s`, table, err), "ERROR")
			return err
		}
		s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Enabled compression for %s`, table), "INFO")
	}
	return nil
}

// Start starts the status monitor goroutine. It refreshes a status.json file
// in StatusDir once a second while a flight is active.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.json"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				if !s.deps.WorkerManager.Active() {
					continue
				}

				data, err := json.MarshalIndent(s.GetStatus(), "", "  ")
				if err != nil {
					logger.Error("Error marshaling status", "error", err)
					continue
				}

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(data, '\n'))
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
}
