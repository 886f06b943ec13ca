package track

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/roadlens/trackmark/internal/geo"
	"github.com/roadlens/trackmark/pkg/core"
	"github.com/tkrajina/gpxgo/gpx"
)

// ErrNoTimedPoints is returned for GPX documents without timestamped track points.
var ErrNoTimedPoints = errors.New("gpx contains no timed track points")

// FixesFromGPX converts the timed points of a GPX document into fixes.
// Seconds are measured from the first timed point plus videoOffset (the
// video time at which the GPS recording started). Cumulative distance is the
// great-circle sum over consecutive points across all segments.
func FixesFromGPX(data []byte, videoOffset float64) ([]core.GpsFix, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse gpx: %w", err)
	}

	var (
		fixes []core.GpsFix
		start time.Time
		prev  *core.LatLon
		total float64
	)
	for _, trk := range g.Tracks {
		for _, segment := range trk.Segments {
			for _, p := range segment.Points {
				if p.Timestamp.IsZero() {
					continue
				}
				if start.IsZero() {
					start = p.Timestamp
				}
				pos := core.LatLon{Lat: p.Latitude, Lon: p.Longitude}
				if prev != nil {
					total += geo.Haversine(*prev, pos)
				}
				prev = &pos

				fixes = append(fixes, core.GpsFix{
					Second:        p.Timestamp.Sub(start).Seconds() + videoOffset,
					Lat:           p.Latitude,
					Lon:           p.Longitude,
					TotalDistance: total,
				})
			}
		}
	}

	if len(fixes) == 0 {
		return nil, ErrNoTimedPoints
	}
	return fixes, nil
}

// LoadGPXFile reads path and builds a Track from it.
func LoadGPXFile(path string, videoOffset, startOffsetKm float64) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gpx %s: %w", path, err)
	}
	fixes, err := FixesFromGPX(data, videoOffset)
	if err != nil {
		return nil, err
	}
	return New(fixes, startOffsetKm)
}
