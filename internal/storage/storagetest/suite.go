// Package storagetest holds the behavior suite every storage.Backend must pass.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/pkg/core"
)

// SeededBackend is a backend that can be seeded locally.
type SeededBackend interface {
	storage.Backend
	storage.Seeder
}

// Run exercises b, which must be initialized and empty.
func Run(t *testing.T, newBackend func(t *testing.T) SeededBackend) {
	t.Run("Catalogs", func(t *testing.T) { testCatalogs(t, newBackend(t)) })
	t.Run("Track", func(t *testing.T) { testTrack(t, newBackend(t)) })
	t.Run("CreateAndFetch", func(t *testing.T) { testCreateAndFetch(t, newBackend(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newBackend(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newBackend(t)) })
	t.Run("Upload", func(t *testing.T) { testUpload(t, newBackend(t)) })
}

// Seed stores two tags and two marker types and returns them with IDs assigned.
func Seed(t *testing.T, b storage.Seeder) ([]core.Tag, []core.MarkerType) {
	t.Helper()
	ctx := context.Background()
	tags := []core.Tag{{Name: "crack", Color: "#ff0000"}, {Name: "sign", Color: "#00ff00"}}
	for i := range tags {
		require.NoError(t, b.SaveTag(ctx, &tags[i]))
		require.NotZero(t, tags[i].ID)
	}
	types := []core.MarkerType{{Name: "Hazard", IconRef: "warn.svg"}, {Name: "Note", IconRef: "note.svg"}}
	for i := range types {
		require.NoError(t, b.SaveMarkerType(ctx, &types[i]))
		require.NotZero(t, types[i].ID)
	}
	return tags, types
}

func testCatalogs(t *testing.T, b SeededBackend) {
	ctx := context.Background()
	tags, types := Seed(t, b)

	gotTags, err := b.FetchTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, tags, gotTags)

	gotTypes, err := b.FetchMarkerTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, types, gotTypes)
}

func testTrack(t *testing.T, b SeededBackend) {
	ctx := context.Background()
	data := &core.TrackData{
		FileID:        0,
		ProjectID:     4,
		FileName:      "ride.mp4",
		StartOffsetKm: 2.5,
		DefaultTagIDs: []uint{1, 2},
		Fixes: []core.GpsFix{
			{Second: 0, Lat: 52.5, Lon: 13.4, TotalDistance: 0},
			{Second: 1, Lat: 52.5001, Lon: 13.4, TotalDistance: 11.1},
			{Second: 2, Lat: 52.5002, Lon: 13.4, TotalDistance: 22.2},
		},
	}
	require.NoError(t, b.SaveTrack(ctx, data))
	require.NotZero(t, data.FileID)

	got, err := b.FetchTrack(ctx, data.FileID)
	require.NoError(t, err)
	assert.Equal(t, data.ProjectID, got.ProjectID)
	assert.Equal(t, data.FileName, got.FileName)
	assert.Equal(t, data.StartOffsetKm, got.StartOffsetKm)
	assert.Equal(t, data.DefaultTagIDs, got.DefaultTagIDs)
	require.Len(t, got.Fixes, 3)
	for i := range data.Fixes {
		assert.Equal(t, data.Fixes[i], got.Fixes[i])
	}

	_, err = b.FetchTrack(ctx, data.FileID+100)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func testCreateAndFetch(t *testing.T, b SeededBackend) {
	ctx := context.Background()
	tags, types := Seed(t, b)

	first := &core.Annotation{
		ProjectID:     1,
		Lat:           core.Ptr(52.5),
		Lon:           core.Ptr(13.4),
		Comment:       "pothole",
		MarkerTypeID:  core.Ptr(types[0].ID),
		TagIDs:        []uint{tags[0].ID, tags[1].ID},
		AttachmentRef: core.Ptr("a.jpg"),
		CreatedByID:   7,
	}
	require.NoError(t, b.CreateAnnotation(ctx, first))
	require.NotZero(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	reply := &core.Annotation{ProjectID: 1, Comment: "fixed", ParentID: core.Ptr(first.ID)}
	require.NoError(t, b.CreateAnnotation(ctx, reply))
	assert.NotEqual(t, first.ID, reply.ID)

	other := &core.Annotation{ProjectID: 2, Comment: "elsewhere"}
	require.NoError(t, b.CreateAnnotation(ctx, other))

	got, err := b.FetchAnnotations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, "pothole", got[0].Comment)
	require.NotNil(t, got[0].Lat)
	assert.InDelta(t, 52.5, *got[0].Lat, 1e-9)
	assert.ElementsMatch(t, first.TagIDs, got[0].TagIDs)
	assert.Equal(t, types[0].ID, got[0].GroupID())
	require.NotNil(t, got[0].AttachmentRef)
	assert.Equal(t, "a.jpg", *got[0].AttachmentRef)
	assert.Equal(t, uint(7), got[0].CreatedByID)

	assert.Nil(t, got[1].Lat)
	assert.Nil(t, got[1].Lon)
	assert.Nil(t, got[1].MarkerTypeID)
	require.NotNil(t, got[1].ParentID)
	assert.Equal(t, first.ID, *got[1].ParentID)
	assert.Empty(t, got[1].TagIDs)
}

func testUpdate(t *testing.T, b SeededBackend) {
	ctx := context.Background()
	tags, _ := Seed(t, b)

	a := &core.Annotation{ProjectID: 1, Comment: "before", TagIDs: []uint{tags[0].ID}}
	require.NoError(t, b.CreateAnnotation(ctx, a))

	a.Comment = "after"
	a.TagIDs = []uint{tags[1].ID}
	a.Lat = core.Ptr(10.0)
	a.Lon = core.Ptr(20.0)
	require.NoError(t, b.UpdateAnnotation(ctx, a))

	got, err := b.FetchAnnotations(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].Comment)
	assert.Equal(t, []uint{tags[1].ID}, got[0].TagIDs)
	require.NotNil(t, got[0].Lon)
	assert.InDelta(t, 20.0, *got[0].Lon, 1e-9)

	missing := &core.Annotation{ID: a.ID + 100, ProjectID: 1}
	assert.ErrorIs(t, b.UpdateAnnotation(ctx, missing), core.ErrNotFound)
}

func testDelete(t *testing.T, b SeededBackend) {
	ctx := context.Background()

	root := &core.Annotation{ProjectID: 1, Comment: "root"}
	require.NoError(t, b.CreateAnnotation(ctx, root))
	child := &core.Annotation{ProjectID: 1, Comment: "child", ParentID: core.Ptr(root.ID)}
	require.NoError(t, b.CreateAnnotation(ctx, child))

	err := b.DeleteAnnotation(ctx, root.ID)
	var conflict *core.ConflictError
	require.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
	assert.Equal(t, root.ID, conflict.ID)
	assert.Equal(t, []uint{child.ID}, conflict.Children)

	require.NoError(t, b.DeleteAnnotation(ctx, child.ID))
	require.NoError(t, b.DeleteAnnotation(ctx, root.ID))

	got, err := b.FetchAnnotations(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.ErrorIs(t, b.DeleteAnnotation(ctx, root.ID), core.ErrNotFound)
}

func testUpload(t *testing.T, b SeededBackend) {
	ref, err := b.UploadAttachment(context.Background(), []byte("data"), "photo.jpg")
	require.NoError(t, err)
	assert.Contains(t, ref, "photo.jpg")
}
