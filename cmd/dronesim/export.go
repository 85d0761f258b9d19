package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mazeflight/simulator/internal/config"
	"github.com/mazeflight/simulator/internal/database"
	"github.com/mazeflight/simulator/internal/model"
	"github.com/mazeflight/simulator/internal/model/convert"
	v1 "github.com/mazeflight/simulator/internal/storage/memory/export/v1"
	"github.com/mazeflight/simulator/pkg/core"
)

// exportFlights reads recorded flights from the database and writes each one
// as a gzipped replay JSON file in the current directory.
func exportFlights(flightIDs []string) error {
	Logger.Info("Connecting to database...")
	db, err := connectForTooling()
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	for _, flightID := range flightIDs {
		idInt, err := strconv.Atoi(flightID)
		if err != nil {
			return fmt.Errorf("invalid flight ID %q: %w", flightID, err)
		}

		txStart := time.Now()

		var flight model.Flight
		if err := db.Model(&model.Flight{}).Where("id = ?", idInt).First(&flight).Error; err != nil {
			return fmt.Errorf("getting flight %d: %w", idInt, err)
		}

		var arena model.Arena
		if err := db.Model(&model.Arena{}).Where("id = ?", flight.ArenaID).First(&arena).Error; err != nil {
			return fmt.Errorf("getting arena for flight %d: %w", idInt, err)
		}
		anchor := arena.Location

		states := []model.DroneState{}
		err = db.Model(&model.DroneState{}).
			Where("flight_id = ?", idInt).
			Order("capture_tick ASC").
			Find(&states).Error
		if err != nil {
			return fmt.Errorf("getting drone states: %w", err)
		}

		crashes := []model.CrashEvent{}
		err = db.Model(&model.CrashEvent{}).
			Where("flight_id = ?", idInt).
			Order("capture_tick ASC").
			Find(&crashes).Error
		if err != nil {
			return fmt.Errorf("getting crash events: %w", err)
		}

		sightings := []model.SensorSighting{}
		err = db.Model(&model.SensorSighting{}).
			Where("flight_id = ?", idInt).
			Order("capture_tick ASC").
			Find(&sightings).Error
		if err != nil {
			return fmt.Errorf("getting sensor sightings: %w", err)
		}

		coreFlight := convert.FlightToCore(flight)
		coreArena := convert.ArenaToCore(arena)
		data := &v1.FlightData{
			Flight:    &coreFlight,
			Arena:     &coreArena,
			States:    make([]core.DroneState, 0, len(states)),
			Crashes:   make([]core.CrashEvent, 0, len(crashes)),
			Sightings: make([]core.SensorSighting, 0, len(sightings)),
		}
		for _, s := range states {
			data.States = append(data.States, convert.DroneStateToCore(s, anchor))
		}
		for _, e := range crashes {
			data.Crashes = append(data.Crashes, convert.CrashEventToCore(e, anchor))
		}
		for _, s := range sightings {
			data.Sightings = append(data.Sightings, convert.SensorSightingToCore(s, anchor))
		}

		Logger.Info("Got flight data",
			"flight", flight.FlightName,
			"states", len(states),
			"duration", time.Since(txStart),
		)

		export := v1.Build(data)
		exportJSON, err := json.Marshal(export)
		if err != nil {
			return fmt.Errorf("marshaling replay: %w", err)
		}

		fileName := fmt.Sprintf("%s_%s.json.gz", flight.FlightName, flight.StartTime.Format("20060102_150405"))
		fileName = strings.ReplaceAll(fileName, " ", "_")
		fileName = strings.ReplaceAll(fileName, ":", "_")

		f, err := os.Create(fileName)
		if err != nil {
			return fmt.Errorf("creating replay file: %w", err)
		}

		gzWriter := gzip.NewWriter(f)
		if _, err = gzWriter.Write(exportJSON); err != nil {
			gzWriter.Close()
			f.Close()
			return fmt.Errorf("writing replay gzip: %w", err)
		}
		if err = gzWriter.Close(); err != nil {
			f.Close()
			return fmt.Errorf("closing replay gzip: %w", err)
		}
		if err = f.Close(); err != nil {
			return fmt.Errorf("closing replay file: %w", err)
		}

		Logger.Info("Wrote replay", "path", fileName)
	}

	return nil
}

// connectForTooling opens the Postgres database, falling back to the local
// SQLite dump when Postgres is unreachable.
func connectForTooling() (*gorm.DB, error) {
	db, err := database.OpenPostgres()
	if err == nil {
		if sqlDB, derr := db.DB(); derr == nil && sqlDB.Ping() == nil {
			sqlDB.SetMaxOpenConns(10)
			return db, nil
		}
	}

	dumpPath := config.GetStorageConfig().SQLite.DumpPath
	Logger.Warn("Postgres unavailable, using local SQLite dump", "path", dumpPath)
	return database.OpenSqlite(dumpPath)
}

// migrateBackups loads every local SQLite recording database and inserts its
// rows into Postgres, renaming each file once migrated.
func migrateBackups() error {
	recordingsDir := filepath.Dir(config.GetStorageConfig().SQLite.DumpPath)
	sqlitePaths, err := database.BackupDBPaths(recordingsDir)
	if err != nil {
		return fmt.Errorf("getting backup database paths: %w", err)
	}
	if len(sqlitePaths) == 0 {
		Logger.Info("No backup databases found", "dir", recordingsDir)
		return nil
	}

	postgresDB, err := database.OpenPostgres()
	if err != nil {
		return fmt.Errorf("getting postgres database: %w", err)
	}

	successfulMigrations := make([]string, 0)

	for _, sqlitePath := range sqlitePaths {
		sqliteDB, err := database.OpenSqlite(sqlitePath)
		if err != nil {
			return fmt.Errorf("getting sqlite database %s: %w", sqlitePath, err)
		}

		// transaction for Postgres so we can rollback on errors
		tx := postgresDB.Begin()

		tables := []struct {
			model any
			name  string
		}{
			{model.SimInfo{}, "sim_infos"},
			{model.Arena{}, "arenas"},
			{model.Flight{}, "flights"},
			{model.DroneState{}, "drone_states"},
			{model.CrashEvent{}, "crash_events"},
			{model.SensorSighting{}, "sensor_sightings"},
			{model.FlightPerformance{}, "flight_performances"},
		}
		failed := false
		for _, t := range tables {
			if err := migrateTable(sqliteDB, tx, t.model, t.name); err != nil {
				tx.Rollback()
				failed = true
				Logger.Error("Error migrating table", "table", t.name, "error", err)
				break
			}
		}
		if failed {
			continue
		}

		tx.Commit()

		sqlConnection, err := sqliteDB.DB()
		if err != nil {
			Logger.Error("Error getting sqlite connection", "error", err)
			continue
		}
		if err = sqlConnection.Close(); err != nil {
			Logger.Error("Error closing sqlite connection", "error", err)
		}
		if err = os.Rename(sqlitePath, sqlitePath+".migrated"); err != nil {
			Logger.Error("Error renaming sqlite file", "error", err)
		}
		successfulMigrations = append(successfulMigrations, sqlitePath)
	}

	Logger.Info("Successfully migrated backups, it's recommended to delete these to avoid future data duplication",
		"count", len(successfulMigrations),
		"paths", successfulMigrations)

	return nil
}

// migrateTable copies every row of one table from SQLite into Postgres.
func migrateTable[M any](
	sqliteDB *gorm.DB,
	postgresDB *gorm.DB,
	tableModel M,
	tableName string,
) error {
	var data = &map[string]any{}
	sqliteDB.Model(&tableModel).
		Assign("id", gorm.Expr("NULL")). // the target assigns fresh ids
		Find(data)
	Logger.Info("Found records", "count", len(*data), "table", tableName)

	if len(*data) == 0 {
		return nil
	}

	Logger.Info("Inserting records", "count", len(*data), "table", tableName)

	postgresDB.Model(&tableModel).Clauses(
		clause.OnConflict{
			DoNothing: true,
		}).Create(data)
	return postgresDB.Error
}
