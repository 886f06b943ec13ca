package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/roadlens/trackmark/pkg/core"
	"github.com/wroge/wgs84"
)

// Positions are persisted as EPSG:3857 WKB so SQLite and Postgres hold the same bytes.
// Lat/lon degrees stay the source of truth in pkg/core.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

const earthRadiusMeters = 6371008.8

// ParseDegrees parses a decimal-degree value and checks it is finite and within ±limit.
func ParseDegrees(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number", ErrInvalidCoordinates)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: not finite", ErrInvalidCoordinates)
	}
	if math.Abs(v) > limit {
		return 0, fmt.Errorf("%w: outside ±%g", ErrInvalidCoordinates, limit)
	}
	return v, nil
}

// LatLonFromString parses a "lat,lon" string as typed into a form or a CLI argument.
func LatLonFromString(coords string) (core.LatLon, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 2 {
		return core.LatLon{}, ErrInvalidCoordinates
	}
	lat, err := ParseDegrees(parts[0], 90)
	if err != nil {
		return core.LatLon{}, err
	}
	lon, err := ParseDegrees(parts[1], 180)
	if err != nil {
		return core.LatLon{}, err
	}
	return core.LatLon{Lat: lat, Lon: lon}, nil
}

// Point3857 projects a WGS84 coordinate to a web-mercator point.
func Point3857(p core.LatLon) (geom.Point, error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(p.Lon, p.Lat, 0)
	point, err := geom.NewPoint(
		geom.Coordinates{
			XY:   geom.XY{X: x, Y: y},
			Type: geom.DimXY,
		},
	)
	if err != nil {
		return geom.NewEmptyPoint(geom.DimXY), fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return point, nil
}

// LatLonFrom3857 reverses Point3857. Empty points report false.
func LatLonFrom3857(point geom.Point) (core.LatLon, bool) {
	coords, ok := point.Coordinates()
	if !ok {
		return core.LatLon{}, false
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	lon, lat, _ := f(coords.X, coords.Y, 0)
	return core.LatLon{Lat: lat, Lon: lon}, true
}

// TrackLine builds the web-mercator polyline of a track. Repeated positions
// collapse into one vertex; fewer than two distinct vertices produce an empty
// line string.
func TrackLine(fixes []core.GpsFix) (geom.LineString, error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	flat := make([]float64, 0, len(fixes)*2)
	for _, fix := range fixes {
		x, y, _ := f(fix.Lon, fix.Lat, 0)
		if n := len(flat); n >= 2 && flat[n-2] == x && flat[n-1] == y {
			continue
		}
		flat = append(flat, x, y)
	}
	if len(flat) < 4 {
		return geom.LineString{}, nil
	}
	line, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return line, nil
}

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(a, b core.LatLon) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Within reports whether both axes differ by less than eps degrees.
func Within(a, b core.LatLon, eps float64) bool {
	return math.Abs(a.Lat-b.Lat) < eps && math.Abs(a.Lon-b.Lon) < eps
}
