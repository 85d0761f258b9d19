// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/mazeflight/simulator/internal/config"
	"github.com/mazeflight/simulator/internal/logging"
	"github.com/mazeflight/simulator/internal/session"
	"github.com/mazeflight/simulator/internal/storage/memory"
	"github.com/mazeflight/simulator/internal/storage/postgres"
	sqlitestorage "github.com/mazeflight/simulator/internal/storage/sqlite"
	"github.com/mazeflight/simulator/internal/storage/websocket"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, logManager *logging.SlogManager, sessionCtx *session.Context) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(logManager, sessionCtx), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, logManager, sessionCtx)
	case "memory":
		return memory.New(memory.Config{
			OutputDir:      cfg.Memory.OutputDir,
			CompressOutput: cfg.Memory.CompressOutput,
		}), nil
	case "websocket":
		return websocket.New(websocket.Config{
			URL:    cfg.Websocket.URL,
			Secret: cfg.Websocket.Secret,
		}), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
