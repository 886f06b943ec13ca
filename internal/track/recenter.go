package track

import (
	"sync"

	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/pkg/core"
)

// Default re-center thresholds in degrees. Following the playback cursor uses
// the coarse value; jumping to a legend entry uses the fine one.
const (
	DefaultRecenterEpsilon = 1e-4
	SelectedEpsilon        = 1e-5
)

// Recenterer decides whether the map view must follow a new position.
type Recenterer struct {
	mu   sync.Mutex
	eps  float64
	last *core.LatLon
}

// NewRecenterer creates a Recenterer; eps <= 0 selects DefaultRecenterEpsilon.
func NewRecenterer(eps float64) *Recenterer {
	if eps <= 0 {
		eps = DefaultRecenterEpsilon
	}
	return &Recenterer{eps: eps}
}

// Update reports whether the view must re-center on p and, if so, records p
// as the last centered position.
func (r *Recenterer) Update(p core.LatLon) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last != nil && geo.Within(*r.last, p, r.eps) {
		return false
	}
	r.last = &p
	return true
}

// Last returns the last centered position.
func (r *Recenterer) Last() (core.LatLon, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return core.LatLon{}, false
	}
	return *r.last, true
}

// Reset forgets the last centered position so the next Update always re-centers.
func (r *Recenterer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = nil
}
