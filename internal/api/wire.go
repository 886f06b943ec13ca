package api

import (
	"time"

	"github.com/roadlens/trackmark/pkg/core"
)

// wireTag is a tag as returned by GET /api/tag.
type wireTag struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// wireMarker is a marker type as returned by GET /api/marker.
type wireMarker struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// wireGpsPoint is one fix of a file's track.
type wireGpsPoint struct {
	Second        float64 `json:"second"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	TotalDistance float64 `json:"totalDistance"`
}

// wireFile is the body of GET /api/file/{id}.
type wireFile struct {
	ID         uint           `json:"id"`
	ProjectID  uint           `json:"projectId"`
	Name       string         `json:"name"`
	StartPlace float64        `json:"startPlace"`
	GpsPoints  []wireGpsPoint `json:"gpsPoints"`
	Tags       []wireTag      `json:"tags"`
}

// wirePointMarker is an annotation on /api/point-marker.
type wirePointMarker struct {
	ID          uint       `json:"id,omitempty"`
	ProjectID   uint       `json:"projectId"`
	Lat         *float64   `json:"lat"`
	Lon         *float64   `json:"lon"`
	Comment     string     `json:"comment"`
	MarkerID    *uint      `json:"markerId"`
	ParentID    *uint      `json:"parentId"`
	TagIDs      []uint     `json:"tagIds"`
	Tags        []wireTag  `json:"tags,omitempty"`
	URLFile     *string    `json:"urlFile"`
	CreatedByID uint       `json:"createdById"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// wireUpload is the body of POST /api/upload.
type wireUpload struct {
	URL string `json:"url"`
}

func tagToCore(t wireTag) core.Tag {
	return core.Tag{ID: t.ID, Name: t.Name, Color: t.Color}
}

func markerToCore(m wireMarker) core.MarkerType {
	return core.MarkerType{ID: m.ID, Name: m.Name, IconRef: m.Icon}
}

func fileToCore(f wireFile) core.TrackData {
	d := core.TrackData{
		FileID:        f.ID,
		ProjectID:     f.ProjectID,
		FileName:      f.Name,
		StartOffsetKm: f.StartPlace,
		Fixes:         make([]core.GpsFix, 0, len(f.GpsPoints)),
	}
	for _, p := range f.GpsPoints {
		d.Fixes = append(d.Fixes, core.GpsFix{
			Second:        p.Second,
			Lat:           p.Lat,
			Lon:           p.Lon,
			TotalDistance: p.TotalDistance,
		})
	}
	for _, t := range f.Tags {
		d.DefaultTagIDs = append(d.DefaultTagIDs, t.ID)
	}
	return d
}

func annotationToWire(a core.Annotation) wirePointMarker {
	tagIDs := a.TagIDs
	if tagIDs == nil {
		tagIDs = []uint{}
	}
	return wirePointMarker{
		ID:          a.ID,
		ProjectID:   a.ProjectID,
		Lat:         a.Lat,
		Lon:         a.Lon,
		Comment:     a.Comment,
		MarkerID:    a.MarkerTypeID,
		ParentID:    a.ParentID,
		TagIDs:      tagIDs,
		URLFile:     a.AttachmentRef,
		CreatedByID: a.CreatedByID,
	}
}

// annotationToCore prefers the expanded tags over tagIds when both are sent.
func annotationToCore(w wirePointMarker) core.Annotation {
	a := core.Annotation{
		ID:            w.ID,
		ProjectID:     w.ProjectID,
		Lat:           w.Lat,
		Lon:           w.Lon,
		Comment:       w.Comment,
		MarkerTypeID:  w.MarkerID,
		ParentID:      w.ParentID,
		AttachmentRef: w.URLFile,
		CreatedByID:   w.CreatedByID,
	}
	if len(w.Tags) > 0 {
		for _, t := range w.Tags {
			a.TagIDs = append(a.TagIDs, t.ID)
		}
	} else if len(w.TagIDs) > 0 {
		a.TagIDs = append([]uint(nil), w.TagIDs...)
	}
	if w.CreatedAt != nil {
		a.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		a.UpdatedAt = *w.UpdatedAt
	}
	return a
}
