// Package track holds the per-file GPS track and resolves playback time to fixes.
package track

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/roadlens/trackmark/pkg/core"
)

// ErrDistanceDecreasing is returned when cumulative distance goes backwards along the track.
var ErrDistanceDecreasing = errors.New("cumulative distance decreases along track")

// Track is the immutable ordered fix sequence of one recording. Only the
// display offset may change after construction.
type Track struct {
	fixes []core.GpsFix

	mu            sync.RWMutex
	startOffsetKm float64
}

// New sorts a copy of fixes by second, keeps the first fix of any duplicated
// second and checks that TotalDistance never decreases.
func New(fixes []core.GpsFix, startOffsetKm float64) (*Track, error) {
	sorted := make([]core.GpsFix, 0, len(fixes))
	for _, f := range fixes {
		if math.IsNaN(f.Second) || f.Second < 0 {
			return nil, fmt.Errorf("fix with invalid second %v", f.Second)
		}
		sorted = append(sorted, f)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Second < sorted[j].Second
	})

	deduped := sorted[:0]
	for i, f := range sorted {
		if i > 0 && f.Second == deduped[len(deduped)-1].Second {
			continue
		}
		if len(deduped) > 0 && f.TotalDistance < deduped[len(deduped)-1].TotalDistance {
			return nil, fmt.Errorf("%w at second %v", ErrDistanceDecreasing, f.Second)
		}
		deduped = append(deduped, f)
	}

	return &Track{fixes: deduped, startOffsetKm: startOffsetKm}, nil
}

// FromData builds a Track from backend data.
func FromData(data *core.TrackData) (*Track, error) {
	if data == nil {
		return New(nil, 0)
	}
	return New(data.Fixes, data.StartOffsetKm)
}

// Len returns the number of fixes.
func (t *Track) Len() int {
	return len(t.fixes)
}

// Empty reports whether the track has no fixes.
func (t *Track) Empty() bool {
	return len(t.fixes) == 0
}

// At returns the i-th fix in time order.
func (t *Track) At(i int) core.GpsFix {
	return t.fixes[i]
}

// Fixes returns a copy of the fix sequence.
func (t *Track) Fixes() []core.GpsFix {
	out := make([]core.GpsFix, len(t.fixes))
	copy(out, t.fixes)
	return out
}

// Duration returns the second of the last fix, or 0 for an empty track.
func (t *Track) Duration() float64 {
	if len(t.fixes) == 0 {
		return 0
	}
	return t.fixes[len(t.fixes)-1].Second
}

// Length returns the cumulative distance at the last fix in meters.
func (t *Track) Length() float64 {
	if len(t.fixes) == 0 {
		return 0
	}
	return t.fixes[len(t.fixes)-1].TotalDistance
}

// StartOffsetKm returns the display offset added to every distance readout.
func (t *Track) StartOffsetKm() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.startOffsetKm
}

// SetStartOffsetKm changes the display offset.
func (t *Track) SetStartOffsetKm(km float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startOffsetKm = km
}

// DisplayDistance returns the fix's distance including the start offset, in meters.
func (t *Track) DisplayDistance(fix core.GpsFix) float64 {
	return t.StartOffsetKm()*1000 + fix.TotalDistance
}
