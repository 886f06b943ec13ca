package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/dispatcher"
	"github.com/roadlens/trackmark/internal/influx"
	"github.com/roadlens/trackmark/internal/logging"
	"github.com/roadlens/trackmark/internal/storage/memory"
	"github.com/roadlens/trackmark/internal/viewer"
	"github.com/roadlens/trackmark/pkg/core"
)

const sampleGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="52.0" lon="13.0"><time>2024-05-01T10:00:00Z</time></trkpt>
    <trkpt lat="52.0" lon="13.001"><time>2024-05-01T10:00:01Z</time></trkpt>
    <trkpt lat="52.0" lon="13.002"><time>2024-05-01T10:00:02Z</time></trkpt>
  </trkseg></trk>
</gpx>`

type fakeReporter struct {
	runs []influx.ImportRun
}

func (r *fakeReporter) ReportImport(run influx.ImportRun) error {
	r.runs = append(r.runs, run)
	return nil
}

type harness struct {
	backend  *memory.Backend
	app      *app
	reporter *fakeReporter
	plain    *dispatcher.Dispatcher
	admin    *dispatcher.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	b := memory.New(config.MemoryConfig{}, "")
	require.NoError(t, b.Init())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &harness{backend: b, reporter: &fakeReporter{}}
	h.app = &app{
		backend:   b,
		log:       log,
		viewCfg:   config.ViewerConfig{NearbyRadius: 25, SearchMaxResults: 30},
		importCfg: config.ImportConfig{Workers: 2},
		viewCtx:   viewer.NewContext(),
		reporter:  h.reporter,
	}

	var err error
	h.plain, err = dispatcher.New(logging.NewDispatcherLogger(log), false)
	require.NoError(t, err)
	h.app.registerCommands(h.plain)

	admin := *h.app
	admin.privileged = true
	h.admin, err = dispatcher.New(logging.NewDispatcherLogger(log), true)
	require.NoError(t, err)
	admin.registerCommands(h.admin)
	return h
}

func call(t *testing.T, d *dispatcher.Dispatcher, args ...string) (string, error) {
	t.Helper()
	res, err := d.Dispatch(context.Background(), dispatcher.Event{Command: args[0], Args: args[1:]})
	if err != nil {
		return "", err
	}
	s, _ := res.(string)
	return s, nil
}

func (h *harness) annotations(t *testing.T, projectID uint) []core.Annotation {
	t.Helper()
	rows, err := h.backend.FetchAnnotations(context.Background(), projectID)
	require.NoError(t, err)
	return rows
}

func TestCatalogCommands(t *testing.T) {
	h := newHarness(t)

	out, err := call(t, h.plain, "tag", "crack", "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "tag #1 crack", out)

	out, err = call(t, h.plain, "marker-type", "Hazard", "warn.svg")
	require.NoError(t, err)
	assert.Equal(t, "marker type #2 Hazard", out)

	_, err = call(t, h.plain, "tag", "lonely")
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestTrackCommands(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "drive.gpx")
	require.NoError(t, os.WriteFile(path, []byte(sampleGPX), 0644))

	out, err := call(t, h.plain, "load-gpx", "10", "7", path, "1.5")
	require.NoError(t, err)
	assert.Contains(t, out, "loaded 3 fixes")
	assert.Contains(t, out, "into file 10")

	out, err = call(t, h.plain, "seek", "10", "1.2")
	require.NoError(t, err)
	assert.Contains(t, out, "t=1s")
	assert.Contains(t, out, "distance=1k + 568.")
	assert.Contains(t, out, "recenter=true")

	out, err = call(t, h.plain, "search", "10", "1k")
	require.NoError(t, err)
	assert.Len(t, strings.Split(out, "\n"), 3)

	out, err = call(t, h.plain, "search", "10", "9k")
	require.NoError(t, err)
	assert.Equal(t, "no matches", out)

	_, err = call(t, h.plain, "seek", "10", "soon")
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = call(t, h.plain, "seek", "99", "1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAnnotationCommands(t *testing.T) {
	h := newHarness(t)
	_, err := call(t, h.plain, "marker-type", "Hazard", "warn.svg")
	require.NoError(t, err)

	out, err := call(t, h.plain, "add", "7", "-33.8688", "151.2093", "kerb damage")
	require.NoError(t, err)
	assert.Contains(t, out, "-33.8688,151.2093 [Unassigned] kerb damage")

	_, err = call(t, h.plain, "add", "7", "91", "0", "bad")
	assert.ErrorIs(t, err, core.ErrValidation)

	rows := h.annotations(t, 7)
	require.Len(t, rows, 1)
	root := rows[0].ID

	out, err = call(t, h.plain, "reply", "7", strUint(root), "still", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "still there")
	assert.Contains(t, out, "(reply to #"+strUint(root)+")")

	out, err = call(t, h.plain, "list", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 replies)")

	out, err = call(t, h.plain, "legend", "7")
	require.NoError(t, err)
	assert.Equal(t, "[x] Unassigned (2)", out)

	_, err = call(t, h.plain, "delete", "7", strUint(root))
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = call(t, h.admin, "delete", "7", strUint(root))
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Equal(t, exitRefused, exitCode(err))

	_, err = call(t, h.admin, "delete", "7", strUint(root), "sideways")
	assert.ErrorIs(t, err, core.ErrValidation)

	out, err = call(t, h.admin, "delete", "7", strUint(root), "cascade")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "deleted ["))
	assert.Empty(t, h.annotations(t, 7))

	out, err = call(t, h.plain, "list", "7")
	require.NoError(t, err)
	assert.Equal(t, "no annotations", out)
}

func TestAddWithAttachment(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0644))

	_, err := call(t, h.plain, "add", "3", "1", "2", "with photo", path)
	require.NoError(t, err)

	rows := h.annotations(t, 3)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].AttachmentRef)
	data, ok := h.backend.Attachment(*rows[0].AttachmentRef)
	require.True(t, ok)
	assert.Equal(t, []byte("jpeg"), data)
}

func TestTransferCommands(t *testing.T) {
	h := newHarness(t)
	dir := t.TempDir()
	_, err := call(t, h.plain, "tag", "crack", "red")
	require.NoError(t, err)

	in := filepath.Join(dir, "in.csv")
	require.NoError(t, os.WriteFile(in, []byte("lat,lon,comment,tags\n1,2,first,crack\nx,3,second,ghost\n"), 0644))

	_, err = call(t, h.plain, "import", "5", in)
	assert.ErrorIs(t, err, core.ErrForbidden)

	out, err := call(t, h.admin, "import", "5", in)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 rows, 0 failed")
	assert.Contains(t, out, "line 3: tag \"ghost\" dropped")
	require.Len(t, h.reporter.runs, 1)
	assert.Equal(t, uint(5), h.reporter.runs[0].ProjectID)
	assert.Equal(t, 2, h.reporter.runs[0].Succeeded)
	assert.Equal(t, 2, h.reporter.runs[0].Workers)

	outPath := filepath.Join(dir, "out.csv")
	out, err = call(t, h.plain, "export", "5", outPath)
	require.NoError(t, err)
	assert.Equal(t, "exported 2 annotations to "+outPath, out)
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,lat,lon,comment,markerId,marker,parentId,tags\n"))
	assert.Contains(t, string(data), ",first,,,,crack\n")

	_, err = call(t, h.plain, "export", "5", filepath.Join(dir, "none.csv"), "99")
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "none.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	cfg := `{
		"logsDir": "` + filepath.ToSlash(filepath.Join(dir, "logs")) + `",
		"storage": {"type": "memory", "memory": {"snapshotPath": "` + filepath.ToSlash(filepath.Join(dir, "state.json")) + `"}}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(cfg), 0644))

	invoke := func(args ...string) (int, string, string) {
		resetViper(t)
		var stdout, stderr strings.Builder
		code := run(context.Background(), append([]string{"--config", dir}, args...), &stdout, &stderr)
		return code, stdout.String(), stderr.String()
	}

	code, out, _ := invoke("tag", "crack", "red")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "tag #1 crack\n", out)

	code, out, _ = invoke("add", "4", "1", "2", "persisted")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "persisted")

	code, out, _ = invoke("list", "4")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "#2 1,2 [Unassigned] persisted")

	code, _, errOut := invoke("delete", "4", "2")
	assert.Equal(t, exitRefused, code)
	assert.Contains(t, errOut, "privileged")

	code, _, _ = invoke("--privileged", "delete", "4", "2")
	assert.Equal(t, exitOK, code)

	code, _, errOut = invoke("frobnicate")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "unknown command")

	code, _, errOut = invoke()
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "load-gpx <fileId> <projectId> <file.gpx> [startOffsetKm]")

	code, _, _ = invoke("--no-such-flag")
	assert.Equal(t, exitUsage, code)

	entries, err := os.ReadDir(filepath.Join(dir, "logs"))
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
