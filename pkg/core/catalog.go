// pkg/core/catalog.go
package core

// Tag is an entry of the shared tag catalog.
type Tag struct {
	ID    uint
	Name  string
	Color string // hex without leading '#'
}

// MarkerType is an entry of the marker type catalog; annotations are grouped by it.
type MarkerType struct {
	ID      uint
	Name    string
	IconRef string
}

// Session is the slice of the authenticated session the core consumes.
type Session struct {
	UserID     uint
	Privileged bool
}
