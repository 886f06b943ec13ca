package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/roadlens/trackmark/internal/annotation"
	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/dispatcher"
	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/internal/influx"
	"github.com/roadlens/trackmark/internal/legend"
	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/internal/track"
	"github.com/roadlens/trackmark/internal/transfer"
	"github.com/roadlens/trackmark/internal/util"
	"github.com/roadlens/trackmark/internal/viewer"
	"github.com/roadlens/trackmark/pkg/core"
)

// importReporter receives a summary of every finished import.
type importReporter interface {
	ReportImport(run influx.ImportRun) error
}

// app holds what the command handlers share.
type app struct {
	backend    storage.Backend
	log        *slog.Logger
	privileged bool
	viewCfg    config.ViewerConfig
	importCfg  config.ImportConfig
	viewCtx    *viewer.Context
	reporter   importReporter // nil when import reporting is off
}

func (a *app) viewOptions() viewer.Options {
	return viewer.Options{
		Viewer:     a.viewCfg,
		Privileged: a.privileged,
		Logger:     a.log,
		Context:    a.viewCtx,
	}
}

// registerCommands wires every subcommand into d.
func (a *app) registerCommands(d *dispatcher.Dispatcher) {
	d.Register("seek", a.seek, dispatcher.MinArgs(2), dispatcher.Usage("<fileId> <seconds>"), dispatcher.Logged())
	d.Register("search", a.search, dispatcher.MinArgs(2), dispatcher.Usage("<fileId> <query>"), dispatcher.Logged())
	d.Register("list", a.list, dispatcher.MinArgs(1), dispatcher.Usage("<projectId>"), dispatcher.Logged())
	d.Register("legend", a.legend, dispatcher.MinArgs(1), dispatcher.Usage("<projectId>"), dispatcher.Logged())
	d.Register("add", a.add, dispatcher.MinArgs(4), dispatcher.Usage("<projectId> <lat> <lon> <comment> [attachment]"), dispatcher.Logged())
	d.Register("reply", a.reply, dispatcher.MinArgs(3), dispatcher.Usage("<projectId> <parentId> <comment>"), dispatcher.Logged())
	d.Register("export", a.export, dispatcher.MinArgs(2), dispatcher.Usage("<projectId> <out.csv> [markerTypeIds]"), dispatcher.Logged())
	d.Register("import", a.importCSV, dispatcher.MinArgs(2), dispatcher.Usage("<projectId> <in.csv>"), dispatcher.Privileged(), dispatcher.Logged())
	d.Register("delete", a.remove, dispatcher.MinArgs(2), dispatcher.Usage("<projectId> <id> [abort|detach|cascade]"), dispatcher.Privileged(), dispatcher.Logged())
	d.Register("load-gpx", a.loadGPX, dispatcher.MinArgs(3), dispatcher.Usage("<fileId> <projectId> <file.gpx> [startOffsetKm]"), dispatcher.Logged())
	d.Register("tag", a.tag, dispatcher.MinArgs(2), dispatcher.Usage("<name> <color>"), dispatcher.Logged())
	d.Register("marker-type", a.markerType, dispatcher.MinArgs(2), dispatcher.Usage("<name> <icon>"), dispatcher.Logged())
}

func parseID(field, raw string) (uint, error) {
	id, ok := util.ParseOptionalUint(raw)
	if !ok {
		return 0, &core.ValidationError{Field: field, Value: raw, Reason: "expected a positive integer"}
	}
	return id, nil
}

func (a *app) openFile(ctx context.Context, raw string) (*viewer.View, error) {
	fileID, err := parseID("fileId", raw)
	if err != nil {
		return nil, err
	}
	return viewer.Open(ctx, a.backend, fileID, a.viewOptions())
}

func (a *app) openProject(ctx context.Context, raw string) (*viewer.View, error) {
	projectID, err := parseID("projectId", raw)
	if err != nil {
		return nil, err
	}
	return viewer.OpenProject(ctx, a.backend, projectID, a.viewOptions())
}

func (a *app) seek(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openFile(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	cursor, err := strconv.ParseFloat(e.Args[1], 64)
	if err != nil {
		return nil, &core.ValidationError{Field: "seconds", Value: e.Args[1], Reason: "not a number"}
	}
	pos, ok, err := v.Seek(cursor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return "no position: track has no fixes", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "t=%gs lat=%g lon=%g distance=%s recenter=%t",
		pos.Fix.Second, pos.Fix.Lat, pos.Fix.Lon, pos.Readout, pos.Recenter)
	for _, n := range pos.Nearby {
		fmt.Fprintf(&b, "\n  near #%d %s", n.ID, n.Comment)
	}
	return b.String(), nil
}

func (a *app) search(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openFile(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	matches, err := v.Search(strings.Join(e.Args[1:], " "))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return "no matches", nil
	}
	lines := make([]string, len(matches))
	for i, m := range matches {
		lines[i] = fmt.Sprintf("%s  t=%gs lat=%g lon=%g", m.Label, m.Fix.Second, m.Fix.Lat, m.Fix.Lon)
	}
	return strings.Join(lines, "\n"), nil
}

func (a *app) list(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	rows := v.Store().List(annotation.Filter{})
	if len(rows) == 0 {
		return "no annotations", nil
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = formatAnnotation(r, v.Store())
	}
	return strings.Join(lines, "\n"), nil
}

func formatAnnotation(a core.Annotation, s *annotation.Store) string {
	rec := transfer.Record(a, s.Catalog())
	pos := "-"
	if p, ok := a.Position(); ok {
		pos = fmt.Sprintf("%g,%g", p.Lat, p.Lon)
	}
	marker := rec[5]
	if marker == "" {
		marker = legend.UnassignedName
	}
	line := fmt.Sprintf("#%d %s [%s] %s", a.ID, pos, marker, a.Comment)
	if rec[7] != "" {
		line += " {" + rec[7] + "}"
	}
	if a.ParentID != nil {
		line += fmt.Sprintf(" (reply to #%d)", *a.ParentID)
	}
	if n := len(s.Replies(a.ID)); n > 0 {
		line += fmt.Sprintf(" (%d replies)", n)
	}
	return line
}

func (a *app) legend(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	groups := v.Legend()
	if len(groups) == 0 {
		return "no groups", nil
	}
	lines := make([]string, len(groups))
	for i, g := range groups {
		mark := " "
		if v.Visibility().Enabled(g.ID) {
			mark = "x"
		}
		lines[i] = fmt.Sprintf("[%s] %s (%d)", mark, g.Name, g.Count)
	}
	return strings.Join(lines, "\n"), nil
}

func (a *app) add(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	lat, err := geo.ParseDegrees(e.Args[1], 90)
	if err != nil {
		return nil, &core.ValidationError{Field: "lat", Value: e.Args[1], Reason: err.Error()}
	}
	lon, err := geo.ParseDegrees(e.Args[2], 180)
	if err != nil {
		return nil, &core.ValidationError{Field: "lon", Value: e.Args[2], Reason: err.Error()}
	}

	d := annotation.Draft{Comment: e.Args[3]}
	if len(e.Args) > 4 {
		data, err := os.ReadFile(e.Args[4])
		if err != nil {
			return nil, fmt.Errorf("reading attachment: %w", err)
		}
		d.Attachment = &annotation.Attachment{Name: filepath.Base(e.Args[4]), Data: data}
	}

	created, err := v.Add(ctx, lat, lon, d)
	if err != nil {
		return nil, err
	}
	return "created " + formatAnnotation(created, v.Store()), nil
}

func (a *app) reply(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	parentID, err := parseID("parentId", e.Args[1])
	if err != nil {
		return nil, err
	}
	created, err := v.Store().Reply(ctx, parentID, annotation.Draft{Comment: strings.Join(e.Args[2:], " ")})
	if err != nil {
		return nil, err
	}
	return "created " + formatAnnotation(created, v.Store()), nil
}

func (a *app) export(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	var f annotation.Filter
	if len(e.Args) > 2 {
		f.MarkerTypeIDs = util.ParseUintList(e.Args[2])
		if f.MarkerTypeIDs == nil {
			f.MarkerTypeIDs = []uint{}
		}
	}
	v.Legend()

	n, err := v.Export(e.Args[1], nil, f)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("exported %d annotations to %s", n, e.Args[1]), nil
}

func (a *app) importCSV(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	f, err := os.Open(e.Args[1])
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	opts := transfer.Options{
		Workers:       a.importCfg.Workers,
		RatePerSecond: a.importCfg.RatePerSecond,
		Strict:        a.importCfg.Strict,
	}
	summary, err := v.Import(ctx, f, opts)
	if err != nil {
		return nil, err
	}

	if a.reporter != nil {
		run := influx.ImportRun{
			ProjectID: v.Store().ProjectID(),
			Succeeded: summary.Succeeded,
			Failed:    summary.Failed,
			Strict:    opts.Strict,
			Workers:   max(opts.Workers, 1),
			Duration:  summary.Duration,
			Finished:  time.Now(),
		}
		if err := a.reporter.ReportImport(run); err != nil {
			a.log.Warn("Failed to report import run", "error", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "imported %d rows, %d failed", summary.Succeeded, summary.Failed)
	for _, r := range summary.Rows {
		if !r.OK() {
			fmt.Fprintf(&b, "\n  line %d: %v", r.Line, r.Err)
			continue
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "\n  line %d: %s", r.Line, w)
		}
	}
	return b.String(), nil
}

func (a *app) remove(ctx context.Context, e dispatcher.Event) (any, error) {
	v, err := a.openProject(ctx, e.Args[0])
	if err != nil {
		return nil, err
	}
	defer v.Close()

	id, err := parseID("id", e.Args[1])
	if err != nil {
		return nil, err
	}
	policy := annotation.DeleteAbort
	if len(e.Args) > 2 {
		if policy, err = annotation.ParseDeletePolicy(e.Args[2]); err != nil {
			return nil, err
		}
	}

	removed, err := v.Remove(ctx, id, policy)
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("deleted %v", removed), nil
}

func (a *app) loadGPX(ctx context.Context, e dispatcher.Event) (any, error) {
	s, err := seeder(a.backend)
	if err != nil {
		return nil, err
	}
	fileID, err := parseID("fileId", e.Args[0])
	if err != nil {
		return nil, err
	}
	projectID, err := parseID("projectId", e.Args[1])
	if err != nil {
		return nil, err
	}
	var offsetKm float64
	if len(e.Args) > 3 {
		v, ok := util.ParseOptionalFloat(e.Args[3])
		if !ok {
			return nil, &core.ValidationError{Field: "startOffsetKm", Value: e.Args[3], Reason: "not a number"}
		}
		offsetKm = v
	}

	t, err := track.LoadGPXFile(e.Args[2], 0, offsetKm)
	if err != nil {
		return nil, err
	}
	data := &core.TrackData{
		FileID:        fileID,
		ProjectID:     projectID,
		FileName:      filepath.Base(e.Args[2]),
		Fixes:         t.Fixes(),
		StartOffsetKm: offsetKm,
	}
	if err := s.SaveTrack(ctx, data); err != nil {
		return nil, err
	}
	return fmt.Sprintf("loaded %d fixes (%.0fm, %.0fs) into file %d", t.Len(), t.Length(), t.Duration(), data.FileID), nil
}

func (a *app) tag(ctx context.Context, e dispatcher.Event) (any, error) {
	s, err := seeder(a.backend)
	if err != nil {
		return nil, err
	}
	t := core.Tag{Name: e.Args[0], Color: e.Args[1]}
	if err := s.SaveTag(ctx, &t); err != nil {
		return nil, err
	}
	return fmt.Sprintf("tag #%d %s", t.ID, t.Name), nil
}

func (a *app) markerType(ctx context.Context, e dispatcher.Event) (any, error) {
	s, err := seeder(a.backend)
	if err != nil {
		return nil, err
	}
	mt := core.MarkerType{Name: e.Args[0], IconRef: e.Args[1]}
	if err := s.SaveMarkerType(ctx, &mt); err != nil {
		return nil, err
	}
	return fmt.Sprintf("marker type #%d %s", mt.ID, mt.Name), nil
}
