package main

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/roadlens/trackmark/internal/api"
	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/database"
	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/internal/storage/memory"
	pgstorage "github.com/roadlens/trackmark/internal/storage/postgres"
	sqlitestorage "github.com/roadlens/trackmark/internal/storage/sqlite"
)

// initStorage creates the configured backend and initializes it.
func initStorage(storageCfg config.StorageConfig, log *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	backend, err := createStorageBackend(storageCfg, log, dbLog)
	if err != nil {
		log.Error("Failed to create storage backend", "error", err)
		return nil, err
	}
	if err := backend.Init(); err != nil {
		log.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return nil, err
	}
	return backend, nil
}

func createStorageBackend(storageCfg config.StorageConfig, log *slog.Logger, dbLog zerolog.Logger) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		log.Info("Postgres storage backend initialized")
		return pgstorage.New(database.NewManager(dbLog), storageCfg.AttachmentsDir, log), nil

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, storageCfg.AttachmentsDir, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		log.Info("SQLite storage backend initialized", "path", storageCfg.SQLite.Path)
		return backend, nil

	case "api":
		apiCfg := config.GetAPIConfig()
		log.Info("Web application storage backend initialized", "url", apiCfg.ServerURL)
		return api.NewBackend(api.New(apiCfg, log)), nil

	case "", "memory":
		log.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory, storageCfg.AttachmentsDir), nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", storageCfg.Type)
	}
}

// seeder returns backend as a storage.Seeder, or an error naming the backend.
func seeder(backend storage.Backend) (storage.Seeder, error) {
	s, ok := backend.(storage.Seeder)
	if !ok {
		return nil, fmt.Errorf("storage backend %T cannot ingest tracks or catalog entries", backend)
	}
	return s, nil
}
