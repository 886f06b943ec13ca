package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Tag{},
	&MarkerType{},
	&File{},
	&GpsFix{},
	&Annotation{},
}

////////////////////////
// CATALOG MODELS
////////////////////////

// Tag is a named, colored label attached to annotations
type Tag struct {
	ID    uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	Name  string `json:"name" gorm:"size:128;uniqueIndex:idx_tag_name"`
	Color string `json:"color" gorm:"size:32"`
}

func (*Tag) TableName() string {
	return "tags"
}

// MarkerType is the category an annotation belongs to, shown as its map icon
type MarkerType struct {
	ID      uint   `json:"id" gorm:"primarykey;autoIncrement;"`
	Name    string `json:"name" gorm:"size:128;uniqueIndex:idx_marker_type_name"`
	IconRef string `json:"iconRef" gorm:"size:512"`
}

func (*MarkerType) TableName() string {
	return "marker_types"
}

////////////////////////
// TRACK MODELS
////////////////////////

// File is one recorded video with its GPS track
type File struct {
	ID            uint                      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt     time.Time                 `json:"createdAt"`
	ProjectID     uint                      `json:"projectId" gorm:"index:idx_file_project_id"`
	FileName      string                    `json:"fileName" gorm:"size:512"`
	StartOffsetKm float64                   `json:"startOffsetKm"`
	DefaultTagIDs datatypes.JSONSlice[uint] `json:"defaultTagIds"`
	Path          geom.LineString           `json:"path"` // Track polyline in EPSG:3857
	Fixes         []GpsFix                  `json:"-" gorm:"constraint:OnDelete:CASCADE;foreignkey:FileID;"`
}

func (*File) TableName() string {
	return "files"
}

// GpsFix is one timestamped GPS sample of a file's track
type GpsFix struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	FileID        uint       `json:"fileId" gorm:"index:idx_gps_fix_file_second,priority:1"`
	Second        float64    `json:"second" gorm:"index:idx_gps_fix_file_second,priority:2"` // Seconds since video start
	Lat           float64    `json:"lat"`
	Lon           float64    `json:"lon"`
	TotalDistance float64    `json:"totalDistance"` // Cumulative meters from track start
	Position      geom.Point `json:"position"`      // EPSG:3857
}

func (*GpsFix) TableName() string {
	return "gps_fixes"
}

////////////////////////
// ANNOTATION MODELS
////////////////////////

// Annotation is a geo-anchored, taggable, threaded comment on a project
type Annotation struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ProjectID     uint       `json:"projectId" gorm:"index:idx_annotation_project_id"`
	Lat           *float64   `json:"lat"`
	Lon           *float64   `json:"lon"`
	Position      geom.Point `json:"position"` // EPSG:3857, empty when coordinates are absent
	Comment       string     `json:"comment"`
	MarkerTypeID  *uint      `json:"markerTypeId" gorm:"index:idx_annotation_marker_type_id"`
	ParentID      *uint      `json:"parentId" gorm:"index:idx_annotation_parent_id"` // Weak reference, no foreign key
	Tags          []Tag      `json:"tags" gorm:"many2many:annotation_tags;"`
	AttachmentRef *string    `json:"attachmentRef" gorm:"size:1024"`
	CreatedByID   uint       `json:"createdById"`
}

func (*Annotation) TableName() string {
	return "annotations"
}
