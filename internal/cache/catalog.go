// Package cache keeps the read-only tag and marker type catalogs in memory
// so that id and name lookups during import and rendering avoid backend reads.
package cache

import (
	"sync"

	"github.com/roadlens/trackmark/pkg/core"
)

// Catalog holds the Tag and MarkerType catalogs of the current session.
type Catalog struct {
	mu          sync.RWMutex
	tags        map[uint]core.Tag
	tagOrder    []uint
	markerTypes map[uint]core.MarkerType
	typeOrder   []uint

	tagNames  *NameIndex
	typeNames *NameIndex
}

// NewCatalog creates an empty Catalog
func NewCatalog() *Catalog {
	c := &Catalog{
		tagNames:  NewNameIndex(),
		typeNames: NewNameIndex(),
	}
	c.reset()
	return c
}

func (c *Catalog) reset() {
	c.tags = make(map[uint]core.Tag)
	c.tagOrder = nil
	c.markerTypes = make(map[uint]core.MarkerType)
	c.typeOrder = nil
	c.tagNames.Reset()
	c.typeNames.Reset()
}

// Load replaces the catalog contents.
func (c *Catalog) Load(tags []core.Tag, markerTypes []core.MarkerType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	for _, t := range tags {
		c.addTag(t)
	}
	for _, mt := range markerTypes {
		c.addMarkerType(mt)
	}
}

func (c *Catalog) addTag(t core.Tag) {
	if _, ok := c.tags[t.ID]; !ok {
		c.tagOrder = append(c.tagOrder, t.ID)
	}
	c.tags[t.ID] = t
	c.tagNames.Set(t.Name, t.ID)
}

func (c *Catalog) addMarkerType(mt core.MarkerType) {
	if _, ok := c.markerTypes[mt.ID]; !ok {
		c.typeOrder = append(c.typeOrder, mt.ID)
	}
	c.markerTypes[mt.ID] = mt
	c.typeNames.Set(mt.Name, mt.ID)
}

// AddTag adds or replaces a single tag
func (c *Catalog) AddTag(t core.Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addTag(t)
}

// AddMarkerType adds or replaces a single marker type
func (c *Catalog) AddMarkerType(mt core.MarkerType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addMarkerType(mt)
}

// Tag returns the tag with the given id
func (c *Catalog) Tag(id uint) (core.Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tags[id]
	return t, ok
}

// MarkerType returns the marker type with the given id
func (c *Catalog) MarkerType(id uint) (core.MarkerType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mt, ok := c.markerTypes[id]
	return mt, ok
}

// TagID resolves a tag name by exact match
func (c *Catalog) TagID(name string) (uint, bool) {
	return c.tagNames.Get(name)
}

// MarkerTypeID resolves a marker type name by exact match
func (c *Catalog) MarkerTypeID(name string) (uint, bool) {
	return c.typeNames.Get(name)
}

// TagNames maps ids to names, skipping ids missing from the catalog.
func (c *Catalog) TagNames(ids []uint) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if t, ok := c.tags[id]; ok {
			names = append(names, t.Name)
		}
	}
	return names
}

// KnownTags filters ids down to those present in the catalog, preserving
// order and dropping duplicates. The second result lists dropped ids.
func (c *Catalog) KnownTags(ids []uint) (known, dropped []uint) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := c.tags[id]; ok {
			known = append(known, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return known, dropped
}

// Tags returns all tags in load order
func (c *Catalog) Tags() []core.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.Tag, 0, len(c.tagOrder))
	for _, id := range c.tagOrder {
		out = append(out, c.tags[id])
	}
	return out
}

// MarkerTypes returns all marker types in load order
func (c *Catalog) MarkerTypes() []core.MarkerType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.MarkerType, 0, len(c.typeOrder))
	for _, id := range c.typeOrder {
		out = append(out, c.markerTypes[id])
	}
	return out
}
