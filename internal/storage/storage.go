// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/roadlens/trackmark/pkg/core"
)

// Backend is the persistence boundary every storage implementation satisfies.
// Failures other than validation, conflict and not-found surface as
// *core.TransportError.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Track data for one file
	FetchTrack(ctx context.Context, fileID uint) (*core.TrackData, error)

	// Annotations (CreateAnnotation assigns ID and timestamps to the passed pointer)
	FetchAnnotations(ctx context.Context, projectID uint) ([]core.Annotation, error)
	CreateAnnotation(ctx context.Context, a *core.Annotation) error
	UpdateAnnotation(ctx context.Context, a *core.Annotation) error
	DeleteAnnotation(ctx context.Context, id uint) error

	// Read-only catalogs
	FetchTags(ctx context.Context) ([]core.Tag, error)
	FetchMarkerTypes(ctx context.Context) ([]core.MarkerType, error)

	// UploadAttachment stores data and returns the reference saved on annotations.
	UploadAttachment(ctx context.Context, data []byte, name string) (string, error)
}

// Seeder is an optional interface for local backends that can ingest
// tracks and catalog entries directly.
type Seeder interface {
	SaveTrack(ctx context.Context, t *core.TrackData) error
	SaveTag(ctx context.Context, t *core.Tag) error
	SaveMarkerType(ctx context.Context, mt *core.MarkerType) error
}
