package viewer

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadlens/trackmark/internal/annotation"
	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/placement"
	"github.com/roadlens/trackmark/internal/storage/memory"
	"github.com/roadlens/trackmark/internal/storage/storagetest"
	"github.com/roadlens/trackmark/internal/transfer"
	"github.com/roadlens/trackmark/pkg/core"
)

const projectID = 7

type fixture struct {
	backend *memory.Backend
	fileID  uint
	tags    []core.Tag
	types   []core.MarkerType
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	b := memory.New(config.MemoryConfig{}, "")
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })

	tags, types := storagetest.Seed(t, b)
	data := &core.TrackData{
		ProjectID: projectID,
		FileName:  "drive.mp4",
		Fixes: []core.GpsFix{
			{Second: 0, Lat: 52.000, Lon: 13.0, TotalDistance: 0},
			{Second: 1, Lat: 52.001, Lon: 13.0, TotalDistance: 1500},
			{Second: 2, Lat: 52.002, Lon: 13.0, TotalDistance: 3000},
			{Second: 3, Lat: 52.003, Lon: 13.0, TotalDistance: 4500},
		},
		StartOffsetKm: 2,
		DefaultTagIDs: []uint{tags[1].ID},
	}
	require.NoError(t, b.SaveTrack(context.Background(), data))
	return fixture{backend: b, fileID: data.FileID, tags: tags, types: types}
}

func (f fixture) open(t *testing.T, opts Options) *View {
	t.Helper()
	v, err := Open(context.Background(), f.backend, f.fileID, opts)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v
}

func TestOpen(t *testing.T) {
	f := newFixture(t)
	vc := NewContext()
	v := f.open(t, Options{Context: vc})

	assert.Equal(t, 4, v.Track().Len())
	assert.Equal(t, uint(projectID), v.Store().ProjectID())
	_, ok := v.Store().Catalog().Tag(f.tags[0].ID)
	assert.True(t, ok, "catalogs are loaded")

	cur, ok := vc.Get()
	require.True(t, ok)
	assert.Equal(t, Current{FileID: f.fileID, ProjectID: projectID, FileName: "drive.mp4"}, cur)
}

func TestOpen_UnknownFile(t *testing.T) {
	f := newFixture(t)
	_, err := Open(context.Background(), f.backend, 999, Options{})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSeek(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{Viewer: config.ViewerConfig{NearbyRadius: 50}})
	ctx := context.Background()

	near, err := v.Add(ctx, 52.0, 13.0, annotation.Draft{Comment: "at start"})
	require.NoError(t, err)

	pos, ok, err := v.Seek(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pos.Recenter)
	assert.Equal(t, "2k + 0.00m", pos.Readout)
	require.Len(t, pos.Nearby, 1)
	assert.Equal(t, near.ID, pos.Nearby[0].ID)

	pos, _, _ = v.Seek(0.2)
	assert.Equal(t, 0.0, pos.Fix.Second)
	assert.False(t, pos.Recenter, "same fix does not move the map")

	pos, _, _ = v.Seek(1.4)
	assert.Equal(t, 1.0, pos.Fix.Second)
	assert.True(t, pos.Recenter)
	assert.Equal(t, "3k + 500.00m", pos.Readout)

	pos, _, _ = v.Seek(3)
	assert.Empty(t, pos.Nearby)
}

func TestSeek_EmptyTrack(t *testing.T) {
	b := memory.New(config.MemoryConfig{}, "")
	require.NoError(t, b.Init())
	data := &core.TrackData{ProjectID: 1}
	require.NoError(t, b.SaveTrack(context.Background(), data))

	v, err := Open(context.Background(), b, data.FileID, Options{})
	require.NoError(t, err)
	defer v.Close()

	_, ok, err := v.Seek(10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})

	matches, err := v.Search(" 500 ")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 1, matches[0].Index)
	assert.Equal(t, "6k + 500.00m", matches[1].Label)

	v = f.open(t, Options{Viewer: config.ViewerConfig{SearchMaxResults: 1}})
	matches, _ = v.Search("k")
	assert.Len(t, matches, 1)
}

func TestProjectView_HasNoTrack(t *testing.T) {
	f := newFixture(t)
	v, err := OpenProject(context.Background(), f.backend, projectID, Options{})
	require.NoError(t, err)
	defer v.Close()

	_, _, err = v.Seek(1)
	assert.ErrorIs(t, err, ErrNoTrack)
	_, err = v.Search("1k")
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestAdd_UsesDefaultTags(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})

	a, err := v.Add(context.Background(), 52.1, 13.1, annotation.Draft{Comment: "pothole"})
	require.NoError(t, err)
	assert.Equal(t, []uint{f.tags[1].ID}, a.TagIDs)
	assert.Equal(t, 52.1, *a.Lat)
	assert.Equal(t, placement.Idle, v.Placement().State())

	a, err = v.Add(context.Background(), 52.1, 13.1, annotation.Draft{TagIDs: []uint{}})
	require.NoError(t, err)
	assert.Empty(t, a.TagIDs)
}

func TestAdd_FailureKeepsAwaiting(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})
	missing := uint(999)

	_, err := v.Add(context.Background(), 1, 1, annotation.Draft{MarkerTypeID: &missing})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, placement.Awaiting, v.Placement().State())

	_, err = v.Add(context.Background(), 1, 1, annotation.Draft{})
	assert.Error(t, err, "a second add needs the pending one resolved")

	a, err := v.Placement().Commit(context.Background(), annotation.Draft{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, *a.Lat)
}

func TestFocus(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})
	ctx := context.Background()

	a, err := v.Add(ctx, 52.0, 13.0, annotation.Draft{})
	require.NoError(t, err)
	b, err := v.Add(ctx, 52.000005, 13.0, annotation.Draft{})
	require.NoError(t, err)
	c, err := v.Add(ctx, 52.0001, 13.0, annotation.Draft{})
	require.NoError(t, err)
	unplaced, err := v.Store().Create(ctx, annotation.Draft{Comment: "nowhere"})
	require.NoError(t, err)

	_, moved, err := v.Focus(a.ID)
	require.NoError(t, err)
	assert.True(t, moved)
	_, moved, _ = v.Focus(b.ID)
	assert.False(t, moved)
	_, moved, _ = v.Focus(c.ID)
	assert.True(t, moved)
	_, moved, _ = v.Focus(unplaced.ID)
	assert.False(t, moved)

	_, _, err = v.Focus(12345)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLegendAndVisible(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})
	ctx := context.Background()
	hazard := f.types[0].ID

	for _, d := range []annotation.Draft{
		{MarkerTypeID: &hazard, Comment: "one"},
		{Comment: "plain"},
		{MarkerTypeID: &hazard, Comment: "two"},
	} {
		_, err := v.Store().Create(ctx, d)
		require.NoError(t, err)
	}

	groups := v.Legend()
	require.Len(t, groups, 2)
	assert.Equal(t, hazard, groups[0].ID)
	assert.Equal(t, 2, groups[0].Count)
	assert.True(t, v.Visibility().Enabled(hazard))

	v.Visibility().ToggleGroup(hazard)
	v.Legend()
	visible := v.Visible(annotation.Filter{})
	require.Len(t, visible, 1)
	assert.Equal(t, "plain", visible[0].Comment)
}

func TestPrivilegedOperations(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})
	ctx := context.Background()

	a, err := v.Store().Create(ctx, annotation.Draft{Comment: "keep"})
	require.NoError(t, err)

	_, err = v.Remove(ctx, a.ID, annotation.DeleteAbort)
	assert.ErrorIs(t, err, core.ErrForbidden)
	_, err = v.Import(ctx, strings.NewReader("comment\nx\n"), transfer.Options{})
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.Equal(t, 1, v.Store().Len())

	pv := f.open(t, Options{Privileged: true})
	summary, err := pv.Import(ctx, strings.NewReader("comment\nx\ny\n"), transfer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)

	removed, err := pv.Remove(ctx, a.ID, annotation.DeleteAbort)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID}, removed)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	v := f.open(t, Options{})
	ctx := context.Background()
	hazard := f.types[0].ID

	a, err := v.Store().Create(ctx, annotation.Draft{MarkerTypeID: &hazard})
	require.NoError(t, err)
	_, err = v.Store().Create(ctx, annotation.Draft{})
	require.NoError(t, err)
	dir := t.TempDir()

	n, err := v.Export(filepath.Join(dir, "all.csv"), nil, annotation.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = v.Export(filepath.Join(dir, "picked.csv"), []uint{a.ID, 999}, annotation.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n, "explicit selection wins")

	_, err = v.Export(filepath.Join(dir, "none.csv"), nil, annotation.Filter{MarkerTypeIDs: []uint{}})
	assert.ErrorIs(t, err, transfer.ErrNothingToExport)
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	vc := NewContext()
	v, err := Open(context.Background(), f.backend, f.fileID, Options{Context: vc})
	require.NoError(t, err)

	require.True(t, v.Placement().Arm())
	v.Close()
	v.Close()

	assert.Equal(t, placement.Idle, v.Placement().State())
	assert.False(t, v.Placement().Arm(), "placement is torn down with the view")
	_, ok := vc.Get()
	assert.False(t, ok)
}

func TestContext_LogAttrs(t *testing.T) {
	vc := NewContext()
	assert.Nil(t, vc.LogAttrs(context.Background()))

	vc.Set(Current{FileID: 3, ProjectID: 9, FileName: "a.mp4"})
	attrs := vc.LogAttrs(context.Background())
	assert.Equal(t, []slog.Attr{
		slog.Uint64("projectId", 9),
		slog.Uint64("fileId", 3),
		slog.String("fileName", "a.mp4"),
	}, attrs)

	vc.Set(Current{ProjectID: 9})
	assert.Len(t, vc.LogAttrs(context.Background()), 1)
}
