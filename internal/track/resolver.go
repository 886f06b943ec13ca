package track

import (
	"math"
	"sort"

	"github.com/roadlens/trackmark/pkg/core"
)

// Resolver maps a playback cursor to the nearest fix. It holds no mutable
// state and is safe for concurrent use.
type Resolver struct {
	track *Track
}

// NewResolver creates a resolver over t.
func NewResolver(t *Track) *Resolver {
	return &Resolver{track: t}
}

// Resolve returns the fix whose second is closest to cursor. Ties go to the
// earlier fix, cursors outside the track clamp to the boundary fixes, and an
// empty track reports false.
func (r *Resolver) Resolve(cursor float64) (core.GpsFix, bool) {
	if r == nil || r.track == nil || r.track.Empty() {
		return core.GpsFix{}, false
	}
	fixes := r.track.fixes
	n := len(fixes)

	if math.IsNaN(cursor) {
		return fixes[0], true
	}

	idx := sort.Search(n, func(i int) bool {
		return fixes[i].Second >= cursor
	})
	switch idx {
	case 0:
		return fixes[0], true
	case n:
		return fixes[n-1], true
	}

	prev, next := fixes[idx-1], fixes[idx]
	if cursor-prev.Second <= next.Second-cursor {
		return prev, true
	}
	return next, true
}

// Index returns the position of the resolved fix within the track, or -1.
func (r *Resolver) Index(cursor float64) int {
	fix, ok := r.Resolve(cursor)
	if !ok {
		return -1
	}
	fixes := r.track.fixes
	return sort.Search(len(fixes), func(i int) bool {
		return fixes[i].Second >= fix.Second
	})
}
