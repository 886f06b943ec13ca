package convert

import (
	"math"
	"testing"
	"time"

	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := core.Annotation{
		ID:            7,
		ProjectID:     3,
		Lat:           core.Ptr(52.5),
		Lon:           core.Ptr(13.4),
		Comment:       "crack in asphalt",
		MarkerTypeID:  core.Ptr(uint(2)),
		ParentID:      core.Ptr(uint(1)),
		TagIDs:        []uint{4, 5},
		AttachmentRef: core.Ptr("photos/a.jpg"),
		CreatedByID:   9,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	m, err := CoreToAnnotation(a)
	require.NoError(t, err)
	assert.Equal(t, uint(7), m.ID)
	require.Len(t, m.Tags, 2)
	assert.Equal(t, uint(5), m.Tags[1].ID)
	assert.False(t, m.Position.IsEmpty())

	pos, ok := geo.LatLonFrom3857(m.Position)
	require.True(t, ok)
	assert.InDelta(t, 52.5, pos.Lat, 1e-6)

	back := AnnotationToCore(m)
	assert.Equal(t, a, back)
}

func TestCoreToAnnotation_AbsentPosition(t *testing.T) {
	m, err := CoreToAnnotation(core.Annotation{Lat: core.Ptr(1.0)})
	require.NoError(t, err)
	assert.True(t, m.Position.IsEmpty())
	assert.Empty(t, m.Tags)
}

func TestCoreToAnnotation_DoesNotAlias(t *testing.T) {
	lat := 1.0
	a := core.Annotation{Lat: &lat, Lon: core.Ptr(2.0)}
	m, err := CoreToAnnotation(a)
	require.NoError(t, err)
	*m.Lat = 99
	assert.Equal(t, 1.0, lat)
}

func TestFileRoundTrip(t *testing.T) {
	d := core.TrackData{
		FileID:        11,
		ProjectID:     3,
		FileName:      "ride.mp4",
		StartOffsetKm: 1.5,
		DefaultTagIDs: []uint{1},
		Fixes: []core.GpsFix{
			{Second: 0, Lat: 52.5, Lon: 13.4, TotalDistance: 0},
			{Second: 1, Lat: 52.5001, Lon: 13.4, TotalDistance: 11.1},
		},
	}

	f, err := CoreToFile(d)
	require.NoError(t, err)
	assert.Equal(t, uint(11), f.ID)
	require.Len(t, f.Fixes, 2)
	assert.Equal(t, uint(11), f.Fixes[1].FileID)
	assert.Equal(t, 2, f.Path.Coordinates().Length())
	assert.Equal(t, []uint{1}, []uint(f.DefaultTagIDs))

	back := FileToCore(f)
	assert.Equal(t, d, back)
}

func TestNonFinitePositionsAreRejected(t *testing.T) {
	_, err := CoreToAnnotation(core.Annotation{ID: 4, Lat: core.Ptr(math.NaN()), Lon: core.Ptr(13.4)})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)

	_, err = CoreToFile(core.TrackData{FileID: 2, Fixes: []core.GpsFix{
		{Second: 0, Lat: 52.5, Lon: 13.4},
		{Second: 1, Lat: math.Inf(-1), Lon: 13.4},
	}})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}

func TestCoreToFile_StationaryTrack(t *testing.T) {
	f, err := CoreToFile(core.TrackData{Fixes: []core.GpsFix{
		{Second: 0, Lat: 52.5, Lon: 13.4},
		{Second: 1, Lat: 52.5, Lon: 13.4},
	}})
	require.NoError(t, err)
	assert.True(t, f.Path.IsEmpty())
	assert.Len(t, f.Fixes, 2)
}

func TestCatalogConversions(t *testing.T) {
	tag := core.Tag{ID: 1, Name: "crack", Color: "#f00"}
	assert.Equal(t, tag, TagToCore(CoreToTag(tag)))

	mt := core.MarkerType{ID: 2, Name: "Hazard", IconRef: "warn.svg"}
	assert.Equal(t, mt, MarkerTypeToCore(CoreToMarkerType(mt)))
}
