// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/internal/model"
	"github.com/roadlens/trackmark/pkg/core"
	"gorm.io/datatypes"
)

// positionToPoint converts optional coordinates to an EPSG:3857 point.
// Absent coordinates yield an empty point.
func positionToPoint(lat, lon *float64) (geom.Point, error) {
	if lat == nil || lon == nil {
		return geom.NewEmptyPoint(geom.DimXY), nil
	}
	return geo.Point3857(core.LatLon{Lat: *lat, Lon: *lon})
}

// CoreToTag converts a core.Tag to a GORM model.Tag
func CoreToTag(t core.Tag) model.Tag {
	return model.Tag{ID: t.ID, Name: t.Name, Color: t.Color}
}

// TagToCore converts a GORM model.Tag to a core.Tag
func TagToCore(t model.Tag) core.Tag {
	return core.Tag{ID: t.ID, Name: t.Name, Color: t.Color}
}

// CoreToMarkerType converts a core.MarkerType to a GORM model.MarkerType
func CoreToMarkerType(mt core.MarkerType) model.MarkerType {
	return model.MarkerType{ID: mt.ID, Name: mt.Name, IconRef: mt.IconRef}
}

// MarkerTypeToCore converts a GORM model.MarkerType to a core.MarkerType
func MarkerTypeToCore(mt model.MarkerType) core.MarkerType {
	return core.MarkerType{ID: mt.ID, Name: mt.Name, IconRef: mt.IconRef}
}

// CoreToAnnotation converts a core.Annotation to a GORM model.Annotation.
// Tags are referenced by ID only.
func CoreToAnnotation(a core.Annotation) (model.Annotation, error) {
	tags := make([]model.Tag, 0, len(a.TagIDs))
	for _, id := range a.TagIDs {
		tags = append(tags, model.Tag{ID: id})
	}
	c := a.Clone()
	pos, err := positionToPoint(c.Lat, c.Lon)
	if err != nil {
		return model.Annotation{}, fmt.Errorf("annotation %d position: %w", c.ID, err)
	}
	return model.Annotation{
		ID:            c.ID,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		ProjectID:     c.ProjectID,
		Lat:           c.Lat,
		Lon:           c.Lon,
		Position:      pos,
		Comment:       c.Comment,
		MarkerTypeID:  c.MarkerTypeID,
		ParentID:      c.ParentID,
		Tags:          tags,
		AttachmentRef: c.AttachmentRef,
		CreatedByID:   c.CreatedByID,
	}, nil
}

// AnnotationToCore converts a GORM model.Annotation to a core.Annotation.
// Coordinates are taken from the Lat/Lon columns; Position is derived.
func AnnotationToCore(m model.Annotation) core.Annotation {
	var tagIDs []uint
	for _, t := range m.Tags {
		tagIDs = append(tagIDs, t.ID)
	}
	a := core.Annotation{
		ID:            m.ID,
		ProjectID:     m.ProjectID,
		Lat:           m.Lat,
		Lon:           m.Lon,
		Comment:       m.Comment,
		MarkerTypeID:  m.MarkerTypeID,
		ParentID:      m.ParentID,
		TagIDs:        tagIDs,
		AttachmentRef: m.AttachmentRef,
		CreatedByID:   m.CreatedByID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	return a.Clone()
}

// CoreToFile converts track data to a GORM model.File with its fixes.
func CoreToFile(d core.TrackData) (model.File, error) {
	fixes := make([]model.GpsFix, 0, len(d.Fixes))
	for _, f := range d.Fixes {
		fx, err := CoreToGpsFix(d.FileID, f)
		if err != nil {
			return model.File{}, err
		}
		fixes = append(fixes, fx)
	}
	path, err := geo.TrackLine(d.Fixes)
	if err != nil {
		return model.File{}, fmt.Errorf("file %d path: %w", d.FileID, err)
	}
	return model.File{
		ID:            d.FileID,
		ProjectID:     d.ProjectID,
		FileName:      d.FileName,
		StartOffsetKm: d.StartOffsetKm,
		DefaultTagIDs: datatypes.NewJSONSlice(append([]uint(nil), d.DefaultTagIDs...)),
		Path:          path,
		Fixes:         fixes,
	}, nil
}

// FileToCore converts a GORM model.File and its fixes to track data.
func FileToCore(f model.File) core.TrackData {
	fixes := make([]core.GpsFix, 0, len(f.Fixes))
	for _, fx := range f.Fixes {
		fixes = append(fixes, GpsFixToCore(fx))
	}
	return core.TrackData{
		FileID:        f.ID,
		ProjectID:     f.ProjectID,
		FileName:      f.FileName,
		Fixes:         fixes,
		StartOffsetKm: f.StartOffsetKm,
		DefaultTagIDs: append([]uint(nil), f.DefaultTagIDs...),
	}
}

// CoreToGpsFix converts a core.GpsFix of fileID to a GORM model.GpsFix
func CoreToGpsFix(fileID uint, f core.GpsFix) (model.GpsFix, error) {
	pos, err := geo.Point3857(core.LatLon{Lat: f.Lat, Lon: f.Lon})
	if err != nil {
		return model.GpsFix{}, fmt.Errorf("fix at second %v: %w", f.Second, err)
	}
	return model.GpsFix{
		FileID:        fileID,
		Second:        f.Second,
		Lat:           f.Lat,
		Lon:           f.Lon,
		TotalDistance: f.TotalDistance,
		Position:      pos,
	}, nil
}

// GpsFixToCore converts a GORM model.GpsFix to a core.GpsFix
func GpsFixToCore(f model.GpsFix) core.GpsFix {
	return core.GpsFix{
		Second:        f.Second,
		Lat:           f.Lat,
		Lon:           f.Lon,
		TotalDistance: f.TotalDistance,
	}
}
