// Package annotation keeps the in-memory mirror of a project's annotations.
// Every mutation goes through the storage backend first and touches the
// mirror only after the backend acknowledged it.
package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roadlens/trackmark/internal/cache"
	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/pkg/core"
)

// DeletePolicy decides what Remove does with replies of the removed annotation.
type DeletePolicy int

const (
	// DeleteAbort refuses to delete an annotation that has replies.
	DeleteAbort DeletePolicy = iota
	// DeleteDetach turns the replies into roots, then deletes.
	DeleteDetach
	// DeleteCascade deletes the whole reply subtree, leaves first.
	DeleteCascade
)

func (p DeletePolicy) String() string {
	switch p {
	case DeleteAbort:
		return "abort"
	case DeleteDetach:
		return "detach"
	case DeleteCascade:
		return "cascade"
	default:
		return fmt.Sprintf("DeletePolicy(%d)", int(p))
	}
}

// ParseDeletePolicy parses "abort", "detach" or "cascade". Empty means abort.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return DeleteAbort, nil
	case "detach":
		return DeleteDetach, nil
	case "cascade":
		return DeleteCascade, nil
	}
	return DeleteAbort, &core.ValidationError{Field: "policy", Value: s, Reason: "expected abort, detach or cascade"}
}

// Store mirrors the annotations of one project.
type Store struct {
	backend storage.Backend
	catalog *cache.Catalog
	log     *slog.Logger
	metrics *storeMetrics
	locks   *keyLock

	mu          sync.RWMutex
	projectID   uint
	items       map[uint]core.Annotation
	defaultTags []uint
}

// New creates an empty store. catalog resolves tag and marker type IDs.
func New(backend storage.Backend, catalog *cache.Catalog, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	m, err := newStoreMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating annotation metrics: %w", err)
	}
	return &Store{
		backend: backend,
		catalog: catalog,
		log:     log,
		metrics: m,
		locks:   newKeyLock(),
		items:   make(map[uint]core.Annotation),
	}, nil
}

// Catalog returns the catalog the store validates against.
func (s *Store) Catalog() *cache.Catalog {
	return s.catalog
}

// LoadCatalog fetches tags and marker types into the catalog.
func (s *Store) LoadCatalog(ctx context.Context) error {
	tags, err := s.backend.FetchTags(ctx)
	if err != nil {
		return err
	}
	types, err := s.backend.FetchMarkerTypes(ctx)
	if err != nil {
		return err
	}
	s.catalog.Load(tags, types)
	return nil
}

// Load replaces the mirror with the annotations of projectID.
func (s *Store) Load(ctx context.Context, projectID uint) error {
	rows, err := s.backend.FetchAnnotations(ctx, projectID)
	if err != nil {
		return err
	}
	items := make(map[uint]core.Annotation, len(rows))
	for _, a := range rows {
		items[a.ID] = a.Clone()
	}

	s.mu.Lock()
	s.projectID = projectID
	s.items = items
	s.mu.Unlock()

	s.log.Debug("Loaded annotations", "projectId", projectID, "count", len(items))
	return nil
}

// ProjectID returns the project of the last Load.
func (s *Store) ProjectID() uint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.projectID
}

// SetDefaultTags sets the tags applied to drafts that carry none.
func (s *Store) SetDefaultTags(ids []uint) {
	s.mu.Lock()
	s.defaultTags = append([]uint(nil), ids...)
	s.mu.Unlock()
}

// Len returns the number of mirrored annotations.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// List returns copies of the annotations matching f, ordered by ID.
func (s *Store) List(f Filter) []core.Annotation {
	s.mu.RLock()
	out := make([]core.Annotation, 0, len(s.items))
	for _, a := range s.items {
		if f.Match(a) {
			out = append(out, a.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns a copy of one annotation.
func (s *Store) Get(id uint) (core.Annotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.items[id]
	if !ok {
		return core.Annotation{}, false
	}
	return a.Clone(), true
}

// Replies returns the direct replies of id, ordered by ID.
func (s *Store) Replies(id uint) []core.Annotation {
	return s.List(Filter{ParentID: &id})
}

// Near returns annotations within radiusMeters of p, nearest first.
func (s *Store) Near(p core.LatLon, radiusMeters float64) []core.Annotation {
	type hit struct {
		a    core.Annotation
		dist float64
	}
	var hits []hit

	s.mu.RLock()
	for _, a := range s.items {
		pos, ok := a.Position()
		if !ok {
			continue
		}
		if d := geo.Haversine(p, pos); d <= radiusMeters {
			hits = append(hits, hit{a: a.Clone(), dist: d})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].a.ID < hits[j].a.ID
	})
	out := make([]core.Annotation, len(hits))
	for i, h := range hits {
		out[i] = h.a
	}
	return out
}

// children returns the IDs of direct replies of id, sorted. Caller holds s.mu.
func (s *Store) children(id uint) []uint {
	var ids []uint
	for cid, a := range s.items {
		if a.ParentID != nil && *a.ParentID == id {
			ids = append(ids, cid)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// isDescendant reports whether candidate is id itself or below it. Caller holds s.mu.
func (s *Store) isDescendant(candidate, id uint) bool {
	seen := make(map[uint]bool)
	for cur := candidate; ; {
		if cur == id {
			return true
		}
		if seen[cur] {
			return false
		}
		seen[cur] = true
		a, ok := s.items[cur]
		if !ok || a.ParentID == nil {
			return false
		}
		cur = *a.ParentID
	}
}

// refCheck selects which references checkRefs validates.
type refCheck struct {
	self       uint // 0 for new annotations
	markerType bool
	parent     bool
}

// checkRefs validates marker type and parent, and filters tags.
// Caller holds s.mu for reading.
func (s *Store) checkRefs(a *core.Annotation, rc refCheck) error {
	if rc.markerType && a.MarkerTypeID != nil {
		if _, ok := s.catalog.MarkerType(*a.MarkerTypeID); !ok {
			return &core.ValidationError{Field: "markerTypeId", Value: fmt.Sprint(*a.MarkerTypeID), Reason: "unknown marker type"}
		}
	}
	if rc.parent && a.ParentID != nil {
		pid := *a.ParentID
		if _, ok := s.items[pid]; !ok {
			return &core.ValidationError{Field: "parentId", Value: fmt.Sprint(pid), Reason: "unknown annotation"}
		}
		if rc.self != 0 && s.isDescendant(pid, rc.self) {
			return &core.ValidationError{Field: "parentId", Value: fmt.Sprint(pid), Reason: "would create a reply cycle"}
		}
	}

	known, dropped := s.catalog.KnownTags(a.TagIDs)
	if len(dropped) > 0 {
		s.log.Debug("Dropping unknown tags", "tags", dropped)
	}
	a.TagIDs = known
	return nil
}

// Create validates d, uploads its attachment, persists it and adds it to the mirror.
func (s *Store) Create(ctx context.Context, d Draft) (a core.Annotation, err error) {
	defer func() { s.metrics.record(ctx, "create", err) }()

	lat, lon, err := parseLatLon(d.Lat, d.Lon)
	if err != nil {
		return core.Annotation{}, err
	}

	s.mu.RLock()
	a = core.Annotation{
		ProjectID:     s.projectID,
		Lat:           lat,
		Lon:           lon,
		Comment:       d.Comment,
		MarkerTypeID:  d.MarkerTypeID,
		ParentID:      d.ParentID,
		TagIDs:        d.TagIDs,
		AttachmentRef: d.AttachmentRef,
		CreatedByID:   d.CreatedByID,
	}
	if a.TagIDs == nil {
		a.TagIDs = s.defaultTags
	}
	err = s.checkRefs(&a, refCheck{markerType: true, parent: true})
	s.mu.RUnlock()
	if err != nil {
		return core.Annotation{}, err
	}
	a = a.Clone()

	if d.Attachment != nil {
		ref, err := s.backend.UploadAttachment(ctx, d.Attachment.Data, d.Attachment.Name)
		if err != nil {
			return core.Annotation{}, core.NewTransportError("upload attachment", err)
		}
		a.AttachmentRef = &ref
	}

	if err := s.backend.CreateAnnotation(ctx, &a); err != nil {
		return core.Annotation{}, core.NewTransportError("create annotation", err)
	}

	s.mu.Lock()
	s.items[a.ID] = a.Clone()
	s.mu.Unlock()

	s.log.Info("Created annotation", "id", a.ID, "projectId", a.ProjectID)
	return a, nil
}

// Reply creates a reply to parentID. Empty position and marker type are taken from the parent.
func (s *Store) Reply(ctx context.Context, parentID uint, d Draft) (core.Annotation, error) {
	parent, ok := s.Get(parentID)
	if !ok {
		err := &core.ValidationError{Field: "parentId", Value: fmt.Sprint(parentID), Reason: "unknown annotation"}
		s.metrics.record(ctx, "create", err)
		return core.Annotation{}, err
	}
	if strings.TrimSpace(d.Lat) == "" && strings.TrimSpace(d.Lon) == "" && parent.Lat != nil && parent.Lon != nil {
		d.Lat = fmt.Sprint(*parent.Lat)
		d.Lon = fmt.Sprint(*parent.Lon)
	}
	if d.MarkerTypeID == nil {
		d.MarkerTypeID = parent.MarkerTypeID
	}
	d.ParentID = &parentID
	return s.Create(ctx, d)
}

// Update applies p to annotation id.
func (s *Store) Update(ctx context.Context, id uint, p Patch) (a core.Annotation, err error) {
	defer func() { s.metrics.record(ctx, "update", err) }()

	unlock := s.locks.Lock(id)
	defer unlock()

	current, ok := s.Get(id)
	if !ok {
		return core.Annotation{}, fmt.Errorf("annotation %d: %w", id, core.ErrNotFound)
	}
	a = current

	if p.Lat.Set || p.Lon.Set {
		latRaw, lonRaw := p.Lat.Value, p.Lon.Value
		if !p.Lat.Set {
			latRaw = formatCoord(current.Lat)
		}
		if !p.Lon.Set {
			lonRaw = formatCoord(current.Lon)
		}
		lat, lon, err := parseLatLon(latRaw, lonRaw)
		if err != nil {
			return core.Annotation{}, err
		}
		a.Lat, a.Lon = lat, lon
	}
	if p.Comment.Set {
		a.Comment = p.Comment.Value
	}
	if p.MarkerTypeID.Set {
		a.MarkerTypeID = p.MarkerTypeID.Value
	}
	if p.ParentID.Set {
		a.ParentID = p.ParentID.Value
	}
	if p.TagIDs.Set {
		a.TagIDs = p.TagIDs.Value
	}
	if p.AttachmentRef.Set {
		a.AttachmentRef = p.AttachmentRef.Value
	}

	s.mu.RLock()
	err = s.checkRefs(&a, refCheck{self: id, markerType: p.MarkerTypeID.Set, parent: p.ParentID.Set})
	s.mu.RUnlock()
	if err != nil {
		return core.Annotation{}, err
	}
	a = a.Clone()

	if err := s.backend.UpdateAnnotation(ctx, &a); err != nil {
		return core.Annotation{}, core.NewTransportError("update annotation", err)
	}

	s.mu.Lock()
	s.items[id] = a.Clone()
	s.mu.Unlock()

	s.log.Info("Updated annotation", "id", id)
	return a, nil
}

func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

// Remove deletes annotation id according to policy and returns the deleted IDs.
// Replies that were detached or deleted before a failure stay that way.
func (s *Store) Remove(ctx context.Context, id uint, policy DeletePolicy) (removed []uint, err error) {
	defer func() { s.metrics.record(ctx, "delete", err) }()

	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	_, ok := s.items[id]
	children := s.children(id)
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("annotation %d: %w", id, core.ErrNotFound)
	}

	switch policy {
	case DeleteAbort:
		if len(children) > 0 {
			return nil, &core.ConflictError{ID: id, Children: children}
		}
	case DeleteDetach:
		for _, cid := range children {
			if err := s.detach(ctx, cid); err != nil {
				return nil, err
			}
		}
	case DeleteCascade:
		for _, cid := range children {
			ids, err := s.removeSubtree(ctx, cid, map[uint]bool{id: true})
			removed = append(removed, ids...)
			if err != nil {
				return removed, err
			}
		}
	default:
		return nil, &core.ValidationError{Field: "policy", Value: policy.String(), Reason: "unknown delete policy"}
	}

	if err := s.deleteOne(ctx, id); err != nil {
		return removed, err
	}
	removed = append(removed, id)
	s.log.Info("Removed annotation", "id", id, "policy", policy.String(), "removed", len(removed))
	return removed, nil
}

func (s *Store) detach(ctx context.Context, id uint) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	a, ok := s.Get(id)
	if !ok {
		return nil
	}
	a.ParentID = nil
	if err := s.backend.UpdateAnnotation(ctx, &a); err != nil {
		return core.NewTransportError("detach reply", err)
	}
	s.mu.Lock()
	s.items[id] = a.Clone()
	s.mu.Unlock()
	return nil
}

// removeSubtree deletes id and everything below it, leaves first.
func (s *Store) removeSubtree(ctx context.Context, id uint, seen map[uint]bool) ([]uint, error) {
	if seen[id] {
		return nil, nil
	}
	seen[id] = true

	unlock := s.locks.Lock(id)
	defer unlock()

	s.mu.RLock()
	children := s.children(id)
	s.mu.RUnlock()

	var removed []uint
	for _, cid := range children {
		ids, err := s.removeSubtree(ctx, cid, seen)
		removed = append(removed, ids...)
		if err != nil {
			return removed, err
		}
	}
	if err := s.deleteOne(ctx, id); err != nil {
		return removed, err
	}
	return append(removed, id), nil
}

func (s *Store) deleteOne(ctx context.Context, id uint) error {
	if err := s.backend.DeleteAnnotation(ctx, id); err != nil {
		return core.NewTransportError("delete annotation", err)
	}
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}
