// Package sqlitestorage implements the storage.Backend interface using an in-memory
// or file SQLite database. In-memory databases are dumped to disk periodically via
// VACUUM INTO and once more on Close.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/database"
	gormstore "github.com/roadlens/trackmark/internal/storage/gormstore"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstore.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New opens the SQLite database described by cfg.
func New(cfg config.SQLiteConfig, attachmentsDir string, log *slog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDBStandalone(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	gormBackend := gormstore.New(gormstore.Dependencies{
		DB:             db,
		Logger:         log,
		AttachmentsDir: attachmentsDir,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

func (b *Backend) inMemory() bool {
	return b.cfg.Path == ""
}

func (b *Backend) dumpEnabled() bool {
	return b.inMemory() && b.cfg.DumpPath != ""
}

// Init migrates the schema and starts the dump goroutine for in-memory databases.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.dumpEnabled() && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the connection.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()

	if b.dumpEnabled() {
		if err := b.Dump(); err != nil {
			b.log.Error("Final dump failed", "path", b.cfg.DumpPath, "error", err)
		}
	}

	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dump writes a point-in-time snapshot to the configured dump path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return fmt.Errorf("no dump path configured")
	}
	return database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath)
}

func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
