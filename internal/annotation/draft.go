package annotation

import (
	"strings"

	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/pkg/core"
)

// Attachment is a file uploaded before the annotation referencing it is saved.
type Attachment struct {
	Name string
	Data []byte
}

// Draft is raw operator input for a new annotation.
type Draft struct {
	Lat           string // empty means absent
	Lon           string // empty means absent
	Comment       string
	MarkerTypeID  *uint
	ParentID      *uint
	TagIDs        []uint // nil takes the store's default tags
	AttachmentRef *string
	Attachment    *Attachment // uploaded first, overrides AttachmentRef
	CreatedByID   uint
}

// Opt is one optional field of a Patch.
type Opt[T any] struct {
	Set   bool
	Value T
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: v}
}

// Patch holds the fields to change on an existing annotation. Unset fields are kept.
type Patch struct {
	Lat           Opt[string] // empty value clears the coordinate
	Lon           Opt[string]
	Comment       Opt[string]
	MarkerTypeID  Opt[*uint]
	ParentID      Opt[*uint]
	TagIDs        Opt[[]uint]
	AttachmentRef Opt[*string]
}

// parseCoordinate parses an optional decimal-degree field.
func parseCoordinate(field, raw string, limit float64) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := geo.ParseDegrees(raw, limit)
	if err != nil {
		return nil, &core.ValidationError{Field: field, Value: raw, Reason: err.Error()}
	}
	return &v, nil
}

func parseLatLon(lat, lon string) (*float64, *float64, error) {
	la, err := parseCoordinate("lat", lat, 90)
	if err != nil {
		return nil, nil, err
	}
	lo, err := parseCoordinate("lon", lon, 180)
	if err != nil {
		return nil, nil, err
	}
	return la, lo, nil
}
