package cache

import "sync"

// NameIndex maps catalog names to their IDs. Lookups are exact and case-sensitive.
type NameIndex struct {
	mu    sync.RWMutex
	names map[string]uint
}

// NewNameIndex creates an empty NameIndex
func NewNameIndex() *NameIndex {
	return &NameIndex{
		names: make(map[string]uint),
	}
}

// Get retrieves an ID by name
func (c *NameIndex) Get(name string) (uint, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.names[name]
	return id, ok
}

// Set stores an ID by name. The first ID stored for a name wins.
func (c *NameIndex) Set(name string, id uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.names[name]; exists {
		return
	}
	c.names[name] = id
}

// Len returns the number of indexed names
func (c *NameIndex) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// Reset clears the index
func (c *NameIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names = make(map[string]uint)
}
