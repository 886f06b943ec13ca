// Package gormstore implements storage.Backend on top of GORM. It serves
// both the Postgres and the SQLite backends.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/roadlens/trackmark/internal/database"
	"github.com/roadlens/trackmark/internal/model"
	"github.com/roadlens/trackmark/internal/model/convert"
	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/pkg/core"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB             *gorm.DB
	Logger         *slog.Logger
	AttachmentsDir string
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps Dependencies
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Seeder  = (*Backend)(nil)
)

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps: deps,
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend has no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Dialector.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	return nil
}

// Close is a no-op; the connection belongs to the caller.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) db(ctx context.Context) *gorm.DB {
	return b.deps.DB.WithContext(ctx)
}

// FetchTrack loads a file and its fixes ordered by second.
func (b *Backend) FetchTrack(ctx context.Context, fileID uint) (*core.TrackData, error) {
	var f model.File
	err := b.db(ctx).
		Preload("Fixes", func(db *gorm.DB) *gorm.DB { return db.Order("second ASC") }).
		First(&f, fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("track of file %d: %w", fileID, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.NewTransportError("fetch track", err)
	}
	data := convert.FileToCore(f)
	return &data, nil
}

// FetchAnnotations loads all annotations of a project ordered by ID.
func (b *Backend) FetchAnnotations(ctx context.Context, projectID uint) ([]core.Annotation, error) {
	var rows []model.Annotation
	err := b.db(ctx).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id ASC") }).
		Where("project_id = ?", projectID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, core.NewTransportError("fetch annotations", err)
	}
	out := make([]core.Annotation, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.AnnotationToCore(r))
	}
	return out, nil
}

// loadTags resolves tag IDs to stored rows, dropping unknown IDs.
func loadTags(tx *gorm.DB, ids []uint) ([]model.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []model.Tag
	if err := tx.Where("id IN ?", ids).Order("id ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// CreateAnnotation inserts a and assigns its ID and timestamps.
func (b *Backend) CreateAnnotation(ctx context.Context, a *core.Annotation) error {
	m, err := convert.CoreToAnnotation(*a)
	if err != nil {
		return &core.ValidationError{Field: "position", Reason: err.Error()}
	}
	m.ID = 0

	err = b.db(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, a.TagIDs)
		if err != nil {
			return err
		}
		m.Tags = tags
		return tx.Omit("Tags.*").Create(&m).Error
	})
	if err != nil {
		return core.NewTransportError("create annotation", err)
	}

	a.ID = m.ID
	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

// UpdateAnnotation overwrites all fields and the tag set of a.
func (b *Backend) UpdateAnnotation(ctx context.Context, a *core.Annotation) error {
	var existing model.Annotation
	err := b.db(ctx).First(&existing, a.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("annotation %d: %w", a.ID, core.ErrNotFound)
	}
	if err != nil {
		return core.NewTransportError("update annotation", err)
	}

	m, err := convert.CoreToAnnotation(*a)
	if err != nil {
		return &core.ValidationError{Field: "position", Reason: err.Error()}
	}
	m.CreatedAt = existing.CreatedAt

	err = b.db(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := loadTags(tx, a.TagIDs)
		if err != nil {
			return err
		}
		m.Tags = nil
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return err
		}
		assoc := tx.Model(&m).Association("Tags")
		if len(tags) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(tags)
	})
	if err != nil {
		return core.NewTransportError("update annotation", err)
	}

	a.CreatedAt = m.CreatedAt
	a.UpdatedAt = m.UpdatedAt
	return nil
}

// DeleteAnnotation removes a leaf annotation and its tag links.
func (b *Backend) DeleteAnnotation(ctx context.Context, id uint) error {
	var existing model.Annotation
	err := b.db(ctx).First(&existing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("annotation %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.NewTransportError("delete annotation", err)
	}

	var children []uint
	err = b.db(ctx).Model(&model.Annotation{}).
		Where("parent_id = ?", id).
		Order("id ASC").
		Pluck("id", &children).Error
	if err != nil {
		return core.NewTransportError("delete annotation", err)
	}
	if len(children) > 0 {
		return &core.ConflictError{ID: id, Children: children}
	}

	err = b.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&existing).Association("Tags").Clear(); err != nil {
			return err
		}
		return tx.Delete(&model.Annotation{}, id).Error
	})
	if err != nil {
		return core.NewTransportError("delete annotation", err)
	}
	return nil
}

// FetchTags returns the tag catalog ordered by ID.
func (b *Backend) FetchTags(ctx context.Context) ([]core.Tag, error) {
	var rows []model.Tag
	if err := b.db(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, core.NewTransportError("fetch tags", err)
	}
	out := make([]core.Tag, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.TagToCore(r))
	}
	return out, nil
}

// FetchMarkerTypes returns the marker type catalog ordered by ID.
func (b *Backend) FetchMarkerTypes(ctx context.Context) ([]core.MarkerType, error) {
	var rows []model.MarkerType
	if err := b.db(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, core.NewTransportError("fetch marker types", err)
	}
	out := make([]core.MarkerType, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.MarkerTypeToCore(r))
	}
	return out, nil
}

// UploadAttachment writes data under the attachments directory.
func (b *Backend) UploadAttachment(ctx context.Context, data []byte, name string) (string, error) {
	if b.deps.AttachmentsDir == "" {
		return "", core.NewTransportError("upload attachment", fmt.Errorf("attachments directory not configured"))
	}
	ref, err := storage.SaveAttachmentFile(b.deps.AttachmentsDir, data, name)
	if err != nil {
		return "", core.NewTransportError("upload attachment", err)
	}
	return ref, nil
}

// SaveTrack inserts a file with its fixes and assigns t.FileID.
func (b *Backend) SaveTrack(ctx context.Context, t *core.TrackData) error {
	f, err := convert.CoreToFile(*t)
	if err != nil {
		return &core.ValidationError{Field: "fixes", Reason: err.Error()}
	}
	if err := b.db(ctx).Create(&f).Error; err != nil {
		return core.NewTransportError("save track", err)
	}
	t.FileID = f.ID
	return nil
}

// SaveTag inserts or updates a tag.
func (b *Backend) SaveTag(ctx context.Context, t *core.Tag) error {
	m := convert.CoreToTag(*t)
	if err := b.db(ctx).Save(&m).Error; err != nil {
		return core.NewTransportError("save tag", err)
	}
	t.ID = m.ID
	return nil
}

// SaveMarkerType inserts or updates a marker type.
func (b *Backend) SaveMarkerType(ctx context.Context, mt *core.MarkerType) error {
	m := convert.CoreToMarkerType(*mt)
	if err := b.db(ctx).Save(&m).Error; err != nil {
		return core.NewTransportError("save marker type", err)
	}
	mt.ID = m.ID
	return nil
}
