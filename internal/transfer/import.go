package transfer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/roadlens/trackmark/internal/annotation"
	"github.com/roadlens/trackmark/internal/cache"
	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/internal/queue"
	"github.com/roadlens/trackmark/internal/util"
	"github.com/roadlens/trackmark/pkg/core"
)

// headerAliases maps accepted header spellings to column names.
var headerAliases = map[string]string{
	"id":          ColID,
	"lat":         ColLat,
	"lon":         ColLon,
	"comment":     ColComment,
	"markerid":    ColMarkerID,
	"marker":      ColMarker,
	"marker-name": ColMarker,
	"parentid":    ColParentID,
	"tags":        ColTags,
}

const utf8BOM = "\ufeff"

// ErrNoColumns is returned when the header names none of the known columns.
var ErrNoColumns = errors.New("transfer: header has no known columns")

// Target receives imported rows. *annotation.Store satisfies it.
type Target interface {
	Create(ctx context.Context, d annotation.Draft) (core.Annotation, error)
	Get(id uint) (core.Annotation, bool)
	Catalog() *cache.Catalog
}

// Options tunes an import run.
type Options struct {
	Workers       int     // creates in flight, at least 1
	RatePerSecond float64 // 0 disables the limit
	Strict        bool    // tolerated defects fail the row instead
	CreatedByID   uint
}

// RowResult is the outcome of one data row.
type RowResult struct {
	Line     int // line of the row in the input, 1-based
	ID       uint
	Err      error
	Warnings []string
}

// OK reports whether the row was created.
func (r RowResult) OK() bool {
	return r.Err == nil
}

// Summary folds the row results of one import.
type Summary struct {
	Succeeded int
	Failed    int
	Rows      []RowResult
	Duration  time.Duration
}

// add folds one row result into the summary.
func (s Summary) add(r RowResult) Summary {
	if r.OK() {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Rows = append(s.Rows, r)
	return s
}

// Failures returns the failed rows.
func (s Summary) Failures() []RowResult {
	var out []RowResult
	for _, r := range s.Rows {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}

// Importer creates annotations from CSV rows.
type Importer struct {
	target  Target
	opts    Options
	log     *slog.Logger
	metrics *importMetrics
}

// NewImporter creates an importer writing into target.
func NewImporter(target Target, opts Options, log *slog.Logger) (*Importer, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	m, err := newImportMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating import metrics: %w", err)
	}
	return &Importer{target: target, opts: opts, log: log, metrics: m}, nil
}

// row is one parsed data row before it becomes a draft.
type row struct {
	line   int
	fields map[string]string
	err    error
}

// readRows parses the header and all data rows. Malformed rows carry their error.
func readRows(r io.Reader) ([]row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	columns := make([]string, len(header))
	known := 0
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, utf8BOM)))
		if col, ok := headerAliases[name]; ok {
			columns[i] = col
			known++
		}
	}
	if known == 0 {
		return nil, ErrNoColumns
	}

	var rows []row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return rows, fmt.Errorf("reading rows: %w", err)
			}
			rows = append(rows, row{line: pe.StartLine, err: err})
			continue
		}
		line, _ := cr.FieldPos(0)
		fields := make(map[string]string, len(columns))
		for i, v := range record {
			if i < len(columns) && columns[i] != "" {
				fields[columns[i]] = v
			}
		}
		rows = append(rows, row{line: line, fields: fields})
	}
	return rows, nil
}

// draft turns a row into a draft. Tolerated defects become warnings.
func (im *Importer) draft(r row) (annotation.Draft, []string) {
	catalog := im.target.Catalog()
	var warnings []string
	warn := func(format string, args ...any) {
		warnings = append(warnings, fmt.Sprintf(format, args...))
	}

	d := annotation.Draft{
		Comment:     r.fields[ColComment],
		TagIDs:      []uint{},
		CreatedByID: im.opts.CreatedByID,
	}

	coord := func(col string, limit float64) string {
		raw := strings.TrimSpace(r.fields[col])
		if raw == "" {
			return ""
		}
		if _, err := geo.ParseDegrees(raw, limit); err != nil {
			warn("%s %q dropped: %v", col, raw, err)
			return ""
		}
		return raw
	}
	d.Lat = coord(ColLat, 90)
	d.Lon = coord(ColLon, 180)

	if raw := strings.TrimSpace(r.fields[ColMarkerID]); raw != "" {
		if id, ok := util.ParseOptionalUint(raw); !ok {
			warn("markerId %q dropped: not an id", raw)
		} else if _, known := catalog.MarkerType(id); !known {
			warn("markerId %d dropped: unknown marker type", id)
		} else {
			d.MarkerTypeID = &id
		}
	}
	if name := strings.TrimSpace(r.fields[ColMarker]); d.MarkerTypeID == nil && name != "" {
		if id, ok := catalog.MarkerTypeID(name); ok {
			d.MarkerTypeID = &id
		} else {
			warn("marker %q dropped: unknown marker type", name)
		}
	}

	if raw := strings.TrimSpace(r.fields[ColParentID]); raw != "" {
		if id, ok := util.ParseOptionalUint(raw); !ok {
			warn("parentId %q dropped: not an id", raw)
		} else if _, exists := im.target.Get(id); !exists {
			warn("parentId %d dropped: not in project", id)
		} else {
			d.ParentID = &id
		}
	}

	for _, name := range util.SplitList(r.fields[ColTags], TagSeparator) {
		if id, ok := catalog.TagID(name); ok {
			if !util.Contains(d.TagIDs, id) {
				d.TagIDs = append(d.TagIDs, id)
			}
		} else {
			warn("tag %q dropped: unknown tag", name)
		}
	}
	return d, warnings
}

// importRow creates one row.
func (im *Importer) importRow(ctx context.Context, r row) RowResult {
	res := RowResult{Line: r.line}
	if r.err != nil {
		res.Err = &core.ValidationError{Field: "row", Value: fmt.Sprint(r.line), Reason: r.err.Error()}
		return res
	}

	d, warnings := im.draft(r)
	res.Warnings = warnings
	if im.opts.Strict && len(warnings) > 0 {
		res.Err = &core.ValidationError{Field: "row", Value: fmt.Sprint(r.line), Reason: strings.Join(warnings, "; ")}
		return res
	}

	a, err := im.target.Create(ctx, d)
	if err != nil {
		res.Err = err
		return res
	}
	res.ID = a.ID
	return res
}

// Import reads CSV from r and creates one annotation per data row. Row
// failures are collected in the summary; the returned error is set only when
// the input cannot be read at all.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Summary, error) {
	start := time.Now()
	rows, err := readRows(r)
	if err != nil {
		return Summary{}, err
	}

	var limiter *rate.Limiter
	if im.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(im.opts.RatePerSecond), 1)
	}

	results := queue.New[RowResult]()
	g := new(errgroup.Group)
	g.SetLimit(im.opts.Workers)
	for _, rw := range rows {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results.Push(RowResult{Line: rw.line, Err: core.NewTransportError("import row", err)})
					return nil
				}
			}
			res := im.importRow(ctx, rw)
			im.metrics.record(ctx, res)
			if res.Err != nil {
				im.log.Warn("Import row failed", "line", res.Line, "error", res.Err)
			}
			results.Push(res)
			return nil
		})
	}
	_ = g.Wait()

	var summary Summary
	for _, res := range results.Drain(func(a, b RowResult) int { return a.Line - b.Line }) {
		summary = summary.add(res)
	}
	summary.Duration = time.Since(start)

	im.log.Info("Import finished", "succeeded", summary.Succeeded, "failed", summary.Failed,
		"workers", im.opts.Workers, "strict", im.opts.Strict, "duration", summary.Duration)
	return summary, nil
}

// ImportFile imports the CSV file at path.
func (im *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()
	return im.Import(ctx, f)
}
