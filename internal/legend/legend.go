// Package legend groups annotations by marker type and tracks which groups are shown.
package legend

import (
	"sort"
	"sync"

	"github.com/roadlens/trackmark/internal/cache"
	"github.com/roadlens/trackmark/pkg/core"
)

// UnassignedName labels group 0, annotations without a marker type.
const UnassignedName = "Unassigned"

// Group is the set of annotations sharing one marker type.
type Group struct {
	ID    uint // marker type ID, 0 when unset
	Name  string
	Icon  string
	Count int
}

// Groups derives groups in first-seen order. catalog may be nil.
func Groups(annotations []core.Annotation, catalog *cache.Catalog) []Group {
	index := make(map[uint]int)
	var groups []Group
	for _, a := range annotations {
		id := a.GroupID()
		if i, ok := index[id]; ok {
			groups[i].Count++
			continue
		}
		g := Group{ID: id, Count: 1, Name: UnassignedName}
		if id != 0 && catalog != nil {
			if mt, ok := catalog.MarkerType(id); ok {
				g.Name = mt.Name
				g.Icon = mt.IconRef
			}
		}
		index[id] = len(groups)
		groups = append(groups, g)
	}
	return groups
}

// Visibility is the per-group show/hide state of one file view.
type Visibility struct {
	mu      sync.RWMutex
	visible map[uint]bool
}

// NewVisibility returns an empty map, armed for initialization.
func NewVisibility() *Visibility {
	return &Visibility{visible: make(map[uint]bool)}
}

// Observe shows every group the first time a non-empty group list meets an
// empty map. It reports whether initialization happened. Later calls never reset.
func (v *Visibility) Observe(groups []Group) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(groups) == 0 || len(v.visible) > 0 {
		return false
	}
	for _, g := range groups {
		v.visible[g.ID] = true
	}
	return true
}

// ToggleGroup flips the checkbox of one group and returns its new state. An
// unknown group is unchecked, so its first toggle checks it.
func (v *Visibility) ToggleGroup(id uint) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := !v.visible[id]
	v.visible[id] = next
	return next
}

// ToggleAll hides every group when all are checked, else shows every group.
// The map is rebuilt from groups, so groups no longer present are forgotten.
// It returns the new state.
func (v *Visibility) ToggleAll(groups []Group) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := !v.allVisible(groups)
	v.visible = make(map[uint]bool, len(groups))
	for _, g := range groups {
		v.visible[g.ID] = next
	}
	return next
}

// AllVisible reports whether every group is checked. An empty list is not.
func (v *Visibility) AllVisible(groups []Group) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.allVisible(groups)
}

func (v *Visibility) allVisible(groups []Group) bool {
	if len(groups) == 0 {
		return false
	}
	for _, g := range groups {
		if !v.visible[g.ID] {
			return false
		}
	}
	return true
}

// Visible reports whether a group renders. Unknown groups render.
func (v *Visibility) Visible(id uint) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	shown, ok := v.visible[id]
	return !ok || shown
}

// Enabled reports the legend checkbox state. Unknown groups are unchecked.
func (v *Visibility) Enabled(id uint) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.visible[id]
}

// Filter returns the annotations whose group renders.
func (v *Visibility) Filter(annotations []core.Annotation) []core.Annotation {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]core.Annotation, 0, len(annotations))
	for _, a := range annotations {
		if shown, ok := v.visible[a.GroupID()]; !ok || shown {
			out = append(out, a)
		}
	}
	return out
}

// Clear empties the map and re-arms initialization.
func (v *Visibility) Clear() {
	v.mu.Lock()
	v.visible = make(map[uint]bool)
	v.mu.Unlock()
}

// Snapshot returns a copy of the map.
func (v *Visibility) Snapshot() map[uint]bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make(map[uint]bool, len(v.visible))
	for k, val := range v.visible {
		out[k] = val
	}
	return out
}

// VisibleIDs returns the shown group IDs in ascending order.
func (v *Visibility) VisibleIDs() []uint {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var ids []uint
	for id, shown := range v.visible {
		if shown {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
