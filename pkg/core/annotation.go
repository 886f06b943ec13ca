// pkg/core/annotation.go
package core

import "time"

// Annotation is a geo-anchored note (point marker) inside a project.
// ParentID is a weak reference to another annotation of the same project.
type Annotation struct {
	ID            uint
	ProjectID     uint
	Lat           *float64
	Lon           *float64
	Comment       string
	MarkerTypeID  *uint
	ParentID      *uint
	TagIDs        []uint
	AttachmentRef *string
	CreatedByID   uint
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Position returns the annotation coordinate, or false when either axis is absent.
func (a Annotation) Position() (LatLon, bool) {
	if a.Lat == nil || a.Lon == nil {
		return LatLon{}, false
	}
	return LatLon{Lat: *a.Lat, Lon: *a.Lon}, true
}

// GroupID returns the marker type used for legend grouping; 0 when unset.
func (a Annotation) GroupID() uint {
	if a.MarkerTypeID == nil {
		return 0
	}
	return *a.MarkerTypeID
}

// Clone returns a deep copy so callers can't mutate a store's mirror.
func (a Annotation) Clone() Annotation {
	c := a
	c.Lat = clonePtr(a.Lat)
	c.Lon = clonePtr(a.Lon)
	c.MarkerTypeID = clonePtr(a.MarkerTypeID)
	c.ParentID = clonePtr(a.ParentID)
	c.AttachmentRef = clonePtr(a.AttachmentRef)
	if a.TagIDs != nil {
		c.TagIDs = append([]uint(nil), a.TagIDs...)
	}
	return c
}

// HasTag reports whether the annotation carries the given tag.
func (a Annotation) HasTag(id uint) bool {
	for _, t := range a.TagIDs {
		if t == id {
			return true
		}
	}
	return false
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
