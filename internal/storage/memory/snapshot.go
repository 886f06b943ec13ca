// internal/storage/memory/snapshot.go
package memory

import (
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"

	"github.com/roadlens/trackmark/pkg/core"
)

// Snapshot is the on-disk form of the memory backend
type Snapshot struct {
	Version     int               `json:"version"`
	IDCounter   uint              `json:"idCounter"`
	Tracks      []core.TrackData  `json:"tracks"`
	Annotations []core.Annotation `json:"annotations"`
	Tags        []core.Tag        `json:"tags"`
	MarkerTypes []core.MarkerType `json:"markerTypes"`
}

const snapshotVersion = 1

// buildSnapshot copies the current state in ID order. Caller holds the lock.
func (b *Backend) buildSnapshot() Snapshot {
	s := Snapshot{Version: snapshotVersion, IDCounter: b.idCounter}
	for _, t := range b.tracks {
		s.Tracks = append(s.Tracks, t)
	}
	for _, a := range b.annotations {
		s.Annotations = append(s.Annotations, a)
	}
	for _, t := range b.tags {
		s.Tags = append(s.Tags, t)
	}
	for _, mt := range b.markerTypes {
		s.MarkerTypes = append(s.MarkerTypes, mt)
	}
	sort.Slice(s.Tracks, func(i, j int) bool { return s.Tracks[i].FileID < s.Tracks[j].FileID })
	sort.Slice(s.Annotations, func(i, j int) bool { return s.Annotations[i].ID < s.Annotations[j].ID })
	sort.Slice(s.Tags, func(i, j int) bool { return s.Tags[i].ID < s.Tags[j].ID })
	sort.Slice(s.MarkerTypes, func(i, j int) bool { return s.MarkerTypes[i].ID < s.MarkerTypes[j].ID })
	return s
}

// writeSnapshot writes the state to cfg.SnapshotPath, gzipped when configured.
func (b *Backend) writeSnapshot() error {
	path := b.cfg.SnapshotPath
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if b.cfg.Compress {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := json.NewEncoder(w).Encode(b.buildSnapshot()); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return fmt.Errorf("failed to finish gzip stream: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	return os.Rename(tmp, path)
}

// loadSnapshot replaces the state with cfg.SnapshotPath. A missing file is not an error.
func (b *Backend) loadSnapshot() error {
	f, err := os.Open(b.cfg.SnapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if b.cfg.Compress {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if s.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", s.Version)
	}

	b.idCounter = s.IDCounter
	for _, t := range s.Tracks {
		b.tracks[t.FileID] = t
	}
	for _, a := range s.Annotations {
		b.annotations[a.ID] = a
	}
	for _, t := range s.Tags {
		b.tags[t.ID] = t
	}
	for _, mt := range s.MarkerTypes {
		b.markerTypes[mt.ID] = mt
	}
	return nil
}
