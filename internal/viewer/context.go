package viewer

import (
	"context"
	"log/slog"
	"sync"
)

// Current identifies the file view that is open in this process.
type Current struct {
	FileID    uint
	ProjectID uint
	FileName  string
}

// Context holds the currently open file view
type Context struct {
	mu      sync.RWMutex
	current *Current
}

// NewContext creates a Context with no view open
func NewContext() *Context {
	return &Context{}
}

// Get returns the open view, if any
func (c *Context) Get() (Current, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Current{}, false
	}
	return *c.current, true
}

// Set records cur as the open view
func (c *Context) Set(cur Current) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = &cur
}

// Clear forgets the open view
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
}

// LogAttrs is a logging.ContextProvider tagging records with the open view.
func (c *Context) LogAttrs(ctx context.Context) []slog.Attr {
	cur, ok := c.Get()
	if !ok {
		return nil
	}
	attrs := []slog.Attr{slog.Uint64("projectId", uint64(cur.ProjectID))}
	if cur.FileID != 0 {
		attrs = append(attrs, slog.Uint64("fileId", uint64(cur.FileID)))
	}
	if cur.FileName != "" {
		attrs = append(attrs, slog.String("fileName", cur.FileName))
	}
	return attrs
}
