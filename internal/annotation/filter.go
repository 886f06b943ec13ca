package annotation

import (
	"strings"

	"github.com/roadlens/trackmark/internal/util"
	"github.com/roadlens/trackmark/pkg/core"
)

// Filter selects annotations from the store. The zero value matches everything.
type Filter struct {
	// MarkerTypeIDs limits by marker type, 0 for unset. Nil matches all,
	// an empty non-nil slice matches nothing.
	MarkerTypeIDs []uint
	// TagIDs matches annotations carrying any of the tags.
	TagIDs []uint
	// ParentID matches direct replies of one annotation.
	ParentID *uint
	// Text is a case-insensitive comment substring.
	Text string
	// RootsOnly drops replies.
	RootsOnly bool
}

// Match reports whether a passes the filter.
func (f Filter) Match(a core.Annotation) bool {
	if f.MarkerTypeIDs != nil && !util.Contains(f.MarkerTypeIDs, a.GroupID()) {
		return false
	}

	if len(f.TagIDs) > 0 {
		found := false
		for _, id := range f.TagIDs {
			if a.HasTag(id) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if f.ParentID != nil && (a.ParentID == nil || *a.ParentID != *f.ParentID) {
		return false
	}
	if f.RootsOnly && a.ParentID != nil {
		return false
	}

	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		if !strings.Contains(strings.ToLower(a.Comment), text) {
			return false
		}
	}
	return true
}
