// Package postgres implements the storage.Backend interface over a
// PostgreSQL database. It wraps the GORM backend via composition — the only
// Postgres-specific concern is establishing and validating the connection
// from viper config.
package postgres

import (
	"fmt"

	gormstorage "github.com/mazeflight/simulator/internal/storage/gorm"

	"github.com/mazeflight/simulator/internal/database"
	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/session"
)

// Backend wraps the GORM backend for Postgres-specific behavior.
type Backend struct {
	*gormstorage.Backend
	logManager *logging.SlogManager
	sessionCtx *session.Context
}

// New creates a new Postgres storage backend. The connection is established
// lazily in Init so construction never blocks on the network.
func New(logManager *logging.SlogManager, sessionCtx *session.Context) *Backend {
	return &Backend{
		logManager: logManager,
		sessionCtx: sessionCtx,
	}
}

// Init connects to Postgres, validates the connection, and initializes the
// embedded GORM backend.
func (b *Backend) Init() error {
	db, err := database.OpenPostgres()
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)

	b.Backend = gormstorage.New(gormstorage.Dependencies{
		DB:             db,
		LogManager:     b.logManager,
		SessionContext: b.sessionCtx,
	})

	return b.Backend.Init()
}
