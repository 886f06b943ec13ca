// internal/storage/memory/memory.go
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/pkg/core"
)

// Backend keeps all data in process memory, optionally persisted as a JSON
// snapshot between runs.
type Backend struct {
	cfg            config.MemoryConfig
	attachmentsDir string

	tracks      map[uint]core.TrackData
	annotations map[uint]core.Annotation
	tags        map[uint]core.Tag
	markerTypes map[uint]core.MarkerType
	blobs       map[string][]byte

	idCounter uint
	mu        sync.RWMutex
	now       func() time.Time
}

var (
	_ storage.Backend = (*Backend)(nil)
	_ storage.Seeder  = (*Backend)(nil)
)

// New creates a new memory backend. Attachments are written under
// attachmentsDir, or kept in memory when it is empty.
func New(cfg config.MemoryConfig, attachmentsDir string) *Backend {
	return &Backend{
		cfg:            cfg,
		attachmentsDir: attachmentsDir,
		tracks:         make(map[uint]core.TrackData),
		annotations:    make(map[uint]core.Annotation),
		tags:           make(map[uint]core.Tag),
		markerTypes:    make(map[uint]core.MarkerType),
		blobs:          make(map[string][]byte),
		now:            time.Now,
	}
}

// Init restores the snapshot if one is configured and present
func (b *Backend) Init() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loadSnapshot()
}

// Close writes the snapshot if one is configured
func (b *Backend) Close() error {
	if b.cfg.SnapshotPath == "" {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.writeSnapshot()
}

func (b *Backend) nextID() uint {
	b.idCounter++
	return b.idCounter
}

// FetchTrack returns the track of fileID
func (b *Backend) FetchTrack(ctx context.Context, fileID uint) (*core.TrackData, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tracks[fileID]
	if !ok {
		return nil, fmt.Errorf("track of file %d: %w", fileID, core.ErrNotFound)
	}
	out := t
	out.Fixes = append([]core.GpsFix(nil), t.Fixes...)
	out.DefaultTagIDs = append([]uint(nil), t.DefaultTagIDs...)
	return &out, nil
}

// FetchAnnotations returns the annotations of projectID ordered by ID
func (b *Backend) FetchAnnotations(ctx context.Context, projectID uint) ([]core.Annotation, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Annotation, 0)
	for _, a := range b.annotations {
		if a.ProjectID == projectID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateAnnotation assigns ID and timestamps and stores a copy of a
func (b *Backend) CreateAnnotation(ctx context.Context, a *core.Annotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a.ID = b.nextID()
	a.CreatedAt = b.now()
	a.UpdatedAt = a.CreatedAt
	b.annotations[a.ID] = a.Clone()
	return nil
}

// UpdateAnnotation replaces the stored annotation with a's ID
func (b *Backend) UpdateAnnotation(ctx context.Context, a *core.Annotation) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	existing, ok := b.annotations[a.ID]
	if !ok {
		return fmt.Errorf("annotation %d: %w", a.ID, core.ErrNotFound)
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = b.now()
	b.annotations[a.ID] = a.Clone()
	return nil
}

// DeleteAnnotation removes a leaf annotation
func (b *Backend) DeleteAnnotation(ctx context.Context, id uint) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.annotations[id]; !ok {
		return fmt.Errorf("annotation %d: %w", id, core.ErrNotFound)
	}
	var children []uint
	for _, a := range b.annotations {
		if a.ParentID != nil && *a.ParentID == id {
			children = append(children, a.ID)
		}
	}
	if len(children) > 0 {
		sort.Slice(children, func(i, j int) bool { return children[i] < children[j] })
		return &core.ConflictError{ID: id, Children: children}
	}
	delete(b.annotations, id)
	return nil
}

// FetchTags returns all tags ordered by ID
func (b *Backend) FetchTags(ctx context.Context) ([]core.Tag, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Tag, 0, len(b.tags))
	for _, t := range b.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchMarkerTypes returns all marker types ordered by ID
func (b *Backend) FetchMarkerTypes(ctx context.Context) ([]core.MarkerType, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.MarkerType, 0, len(b.markerTypes))
	for _, mt := range b.markerTypes {
		out = append(out, mt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UploadAttachment stores data on disk or in memory
func (b *Backend) UploadAttachment(ctx context.Context, data []byte, name string) (string, error) {
	if b.attachmentsDir != "" {
		return storage.SaveAttachmentFile(b.attachmentsDir, data, name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ref := "mem://" + uuid.NewString() + "/" + name
	b.blobs[ref] = append([]byte(nil), data...)
	return ref, nil
}

// Attachment returns an attachment kept in memory
func (b *Backend) Attachment(ref string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.blobs[ref]
	return data, ok
}

// SaveTrack stores t, assigning a file ID when t.FileID is zero
func (b *Backend) SaveTrack(ctx context.Context, t *core.TrackData) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.FileID == 0 {
		t.FileID = b.nextID()
	} else if t.FileID > b.idCounter {
		b.idCounter = t.FileID
	}
	stored := *t
	stored.Fixes = append([]core.GpsFix(nil), t.Fixes...)
	stored.DefaultTagIDs = append([]uint(nil), t.DefaultTagIDs...)
	b.tracks[t.FileID] = stored
	return nil
}

// SaveTag stores t, assigning an ID when t.ID is zero
func (b *Backend) SaveTag(ctx context.Context, t *core.Tag) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.ID == 0 {
		t.ID = b.nextID()
	} else if t.ID > b.idCounter {
		b.idCounter = t.ID
	}
	b.tags[t.ID] = *t
	return nil
}

// SaveMarkerType stores mt, assigning an ID when mt.ID is zero
func (b *Backend) SaveMarkerType(ctx context.Context, mt *core.MarkerType) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if mt.ID == 0 {
		mt.ID = b.nextID()
	} else if mt.ID > b.idCounter {
		b.idCounter = mt.ID
	}
	b.markerTypes[mt.ID] = *mt
	return nil
}
