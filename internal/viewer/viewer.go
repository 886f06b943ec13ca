// Package viewer wires one opened file: its track, the project's annotations,
// the legend and the placement session. Everything it owns is torn down on Close.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/roadlens/trackmark/internal/annotation"
	"github.com/roadlens/trackmark/internal/cache"
	"github.com/roadlens/trackmark/internal/config"
	"github.com/roadlens/trackmark/internal/distance"
	"github.com/roadlens/trackmark/internal/legend"
	"github.com/roadlens/trackmark/internal/placement"
	"github.com/roadlens/trackmark/internal/storage"
	"github.com/roadlens/trackmark/internal/track"
	"github.com/roadlens/trackmark/internal/transfer"
	"github.com/roadlens/trackmark/pkg/core"
)

// ErrNoTrack is returned by track operations on a project-only view.
var ErrNoTrack = errors.New("viewer: no track loaded")

// Options configures a view.
type Options struct {
	Viewer     config.ViewerConfig
	Privileged bool
	Logger     *slog.Logger
	Context    *Context // receives the open view for log attributes; may be nil
}

// View is one opened file, or one project when opened without a track.
type View struct {
	backend storage.Backend
	opts    Options
	log     *slog.Logger

	store      *annotation.Store
	track      *track.Track
	resolver   *track.Resolver
	follow     *track.Recenterer
	selected   *track.Recenterer
	visibility *legend.Visibility
	placement  *placement.Session

	fileID    uint
	fileName  string
	closeOnce sync.Once
}

func newView(backend storage.Backend, opts Options) (*View, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	store, err := annotation.New(backend, cache.NewCatalog(), opts.Logger)
	if err != nil {
		return nil, err
	}
	return &View{
		backend:    backend,
		opts:       opts,
		log:        opts.Logger,
		store:      store,
		follow:     track.NewRecenterer(opts.Viewer.RecenterEpsilon),
		selected:   track.NewRecenterer(track.SelectedEpsilon),
		visibility: legend.NewVisibility(),
		placement:  placement.New(store),
	}, nil
}

// Open loads file fileID: its track and the catalogs in parallel, then the
// annotations of the file's project.
func Open(ctx context.Context, backend storage.Backend, fileID uint, opts Options) (*View, error) {
	v, err := newView(backend, opts)
	if err != nil {
		return nil, err
	}

	var data *core.TrackData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = backend.FetchTrack(gctx, fileID)
		if err != nil {
			return fmt.Errorf("fetching track %d: %w", fileID, err)
		}
		return nil
	})
	g.Go(func() error {
		if err := v.store.LoadCatalog(gctx); err != nil {
			return fmt.Errorf("loading catalogs: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t, err := track.FromData(data)
	if err != nil {
		return nil, fmt.Errorf("building track %d: %w", fileID, err)
	}
	if err := v.store.Load(ctx, data.ProjectID); err != nil {
		return nil, fmt.Errorf("loading annotations: %w", err)
	}
	v.store.SetDefaultTags(data.DefaultTagIDs)

	v.track = t
	v.resolver = track.NewResolver(t)
	v.fileID = data.FileID
	v.fileName = data.FileName
	v.publish()

	v.log.Info("Opened file", "fileId", fileID, "projectId", data.ProjectID,
		"fixes", t.Len(), "annotations", v.store.Len())
	return v, nil
}

// OpenProject loads the catalogs and annotations of projectID without a track.
func OpenProject(ctx context.Context, backend storage.Backend, projectID uint, opts Options) (*View, error) {
	v, err := newView(backend, opts)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := v.store.LoadCatalog(gctx); err != nil {
			return fmt.Errorf("loading catalogs: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := v.store.Load(gctx, projectID); err != nil {
			return fmt.Errorf("loading annotations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	v.publish()

	v.log.Debug("Opened project", "projectId", projectID, "annotations", v.store.Len())
	return v, nil
}

func (v *View) publish() {
	if v.opts.Context != nil {
		v.opts.Context.Set(Current{FileID: v.fileID, ProjectID: v.store.ProjectID(), FileName: v.fileName})
	}
}

// Store returns the annotation store of the view's project.
func (v *View) Store() *annotation.Store { return v.store }

// Track returns the loaded track, nil for project-only views.
func (v *View) Track() *track.Track { return v.track }

// Placement returns the view's placement session.
func (v *View) Placement() *placement.Session { return v.placement }

// Visibility returns the legend visibility state.
func (v *View) Visibility() *legend.Visibility { return v.visibility }

// Position is what the view shows for one cursor value.
type Position struct {
	Fix      core.GpsFix
	Recenter bool   // the map must move to Fix
	Readout  string // distance label
	Nearby   []core.Annotation
}

// Seek resolves cursor seconds to a fix. ok is false when the track has no fixes.
func (v *View) Seek(cursor float64) (Position, bool, error) {
	if v.track == nil {
		return Position{}, false, ErrNoTrack
	}
	fix, ok := v.resolver.Resolve(cursor)
	if !ok {
		return Position{}, false, nil
	}
	p := core.LatLon{Lat: fix.Lat, Lon: fix.Lon}
	pos := Position{
		Fix:      fix,
		Recenter: v.follow.Update(p),
		Readout:  distance.Readout(v.track, fix),
	}
	if v.opts.Viewer.NearbyRadius > 0 {
		pos.Nearby = v.visibility.Filter(v.store.Near(p, v.opts.Viewer.NearbyRadius))
	}
	return pos, true, nil
}

// Search finds fixes by their rendered distance.
func (v *View) Search(query string) ([]distance.Match, error) {
	if v.track == nil {
		return nil, ErrNoTrack
	}
	return distance.Search(v.track, query, v.opts.Viewer.SearchMaxResults), nil
}

// Focus reports whether selecting annotation id in the legend moves the map.
func (v *View) Focus(id uint) (core.Annotation, bool, error) {
	a, ok := v.store.Get(id)
	if !ok {
		return core.Annotation{}, false, fmt.Errorf("annotation %d: %w", id, core.ErrNotFound)
	}
	p, ok := a.Position()
	if !ok {
		return a, false, nil
	}
	return a, v.selected.Update(p), nil
}

// Legend derives the groups of the project's annotations and runs the
// one-shot visibility initialization.
func (v *View) Legend() []legend.Group {
	groups := legend.Groups(v.store.List(annotation.Filter{}), v.store.Catalog())
	v.visibility.Observe(groups)
	return groups
}

// Visible returns the annotations matching f whose group is shown.
func (v *View) Visible(f annotation.Filter) []core.Annotation {
	return v.visibility.Filter(v.store.List(f))
}

// Add arms placement, captures lat/lon and commits d there.
func (v *View) Add(ctx context.Context, lat, lon float64, d annotation.Draft) (core.Annotation, error) {
	if !v.placement.Arm() {
		return core.Annotation{}, fmt.Errorf("placement is %s", v.placement.State())
	}
	v.placement.Click(lat, lon)
	return v.placement.Commit(ctx, d)
}

// Remove deletes annotation id. It requires a privileged view.
func (v *View) Remove(ctx context.Context, id uint, policy annotation.DeletePolicy) ([]uint, error) {
	if !v.opts.Privileged {
		return nil, core.ErrForbidden
	}
	return v.store.Remove(ctx, id, policy)
}

// Export writes the explicit selection, or the visible annotations matching f
// when nothing is selected. Unknown selected IDs are skipped.
func (v *View) Export(path string, selected []uint, f annotation.Filter) (int, error) {
	var picked []core.Annotation
	for _, id := range selected {
		if a, ok := v.store.Get(id); ok {
			picked = append(picked, a)
		}
	}
	rows := transfer.Selection(picked, v.Visible(f))
	n, err := transfer.ExportFile(path, rows, v.store.Catalog())
	if errors.Is(err, transfer.ErrNothingToExport) {
		v.log.Warn("Nothing to export", "projectId", v.store.ProjectID())
	}
	return n, err
}

// Import creates annotations from CSV. It requires a privileged view.
func (v *View) Import(ctx context.Context, r io.Reader, opts transfer.Options) (transfer.Summary, error) {
	if !v.opts.Privileged {
		return transfer.Summary{}, core.ErrForbidden
	}
	im, err := transfer.NewImporter(v.store, opts, v.log)
	if err != nil {
		return transfer.Summary{}, err
	}
	return im.Import(ctx, r)
}

// Close tears down the placement session and forgets view state. The backend
// stays open; it belongs to the caller.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.placement.Close()
		v.visibility.Clear()
		v.follow.Reset()
		v.selected.Reset()
		if v.opts.Context != nil {
			v.opts.Context.Clear()
		}
		v.log.Debug("Closed view", "projectId", v.store.ProjectID(), "fileId", v.fileID)
	})
}
