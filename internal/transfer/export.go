// Package transfer moves annotations in and out of CSV files.
package transfer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roadlens/trackmark/internal/cache"
	"github.com/roadlens/trackmark/internal/util"
	"github.com/roadlens/trackmark/pkg/core"
)

// Column names of the CSV format.
const (
	ColID       = "id"
	ColLat      = "lat"
	ColLon      = "lon"
	ColComment  = "comment"
	ColMarkerID = "markerId"
	ColMarker   = "marker"
	ColParentID = "parentId"
	ColTags     = "tags"

	// TagSeparator joins tag names inside the tags column.
	TagSeparator = ";"
)

// Header is the header row written on export.
var Header = []string{ColID, ColLat, ColLon, ColComment, ColMarkerID, ColMarker, ColParentID, ColTags}

// ErrNothingToExport is returned for an empty selection. No output is written.
var ErrNothingToExport = errors.New("transfer: nothing to export")

// Selection returns the explicit selection when it is non-empty, else the filtered view.
func Selection(selected, filtered []core.Annotation) []core.Annotation {
	if len(selected) > 0 {
		return selected
	}
	return filtered
}

// Record renders one annotation as a CSV row. CRLF inside the comment is
// written as LF, since a CSV reader folds it to LF anyway.
func Record(a core.Annotation, catalog *cache.Catalog) []string {
	marker := ""
	if a.MarkerTypeID != nil {
		if mt, ok := catalog.MarkerType(*a.MarkerTypeID); ok {
			marker = mt.Name
		}
	}
	return []string{
		strconv.FormatUint(uint64(a.ID), 10),
		util.FormatOptionalFloat(a.Lat),
		util.FormatOptionalFloat(a.Lon),
		strings.ReplaceAll(a.Comment, "\r\n", "\n"),
		util.FormatOptionalUint(a.MarkerTypeID),
		marker,
		util.FormatOptionalUint(a.ParentID),
		strings.Join(catalog.TagNames(a.TagIDs), TagSeparator),
	}
}

// Export writes the header and one row per annotation with LF line endings.
// It returns the number of rows written.
func Export(w io.Writer, annotations []core.Annotation, catalog *cache.Catalog) (int, error) {
	if len(annotations) == 0 {
		return 0, ErrNothingToExport
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for i, a := range annotations {
		if err := cw.Write(Record(a, catalog)); err != nil {
			return i, fmt.Errorf("writing annotation %d: %w", a.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	return len(annotations), nil
}

// ExportFile writes annotations to path. An empty selection creates no file.
func ExportFile(path string, annotations []core.Annotation, catalog *cache.Catalog) (int, error) {
	if len(annotations) == 0 {
		return 0, ErrNothingToExport
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating export file: %w", err)
	}
	n, err := Export(f, annotations, catalog)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing export file: %w", cerr)
	}
	return n, err
}

// DefaultFileName names an export of one project.
func DefaultFileName(projectID uint) string {
	return fmt.Sprintf("project_%d_pointmarkers.csv", projectID)
}
