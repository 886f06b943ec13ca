// Package postgres implements the storage.Backend interface on a Postgres
// database through the shared GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/roadlens/trackmark/internal/database"
	gormstore "github.com/roadlens/trackmark/internal/storage/gormstore"
)

// Backend wraps the GORM backend and owns the Postgres connection.
type Backend struct {
	*gormstore.Backend
	manager        *database.Manager
	log            *slog.Logger
	attachmentsDir string
}

// New creates a Postgres backend. The connection is opened by Init unless
// manager already holds one.
func New(manager *database.Manager, attachmentsDir string, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		manager:        manager,
		log:            log,
		attachmentsDir: attachmentsDir,
	}
}

// Init connects if needed, migrates the schema and builds the GORM backend.
func (b *Backend) Init() error {
	if b.manager.DB == nil {
		if err := b.manager.ConnectPostgres(); err != nil {
			return err
		}
	}
	if err := b.manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.Backend = gormstore.New(gormstore.Dependencies{
		DB:             b.manager.DB,
		Logger:         b.log,
		AttachmentsDir: b.attachmentsDir,
	})
	b.log.Info("Postgres backend ready", "dialect", b.manager.DB.Dialector.Name())
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	return b.manager.Close()
}
