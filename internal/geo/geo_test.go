package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/roadlens/trackmark/pkg/core"
)

func TestParseDegrees_Valid(t *testing.T) {
	v, err := ParseDegrees(" 40.4168 ", 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 40.4168 {
		t.Errorf("expected 40.4168, got %f", v)
	}
}

func TestParseDegrees_NotANumber(t *testing.T) {
	_, err := ParseDegrees("north", 90)
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestParseDegrees_NotFinite(t *testing.T) {
	for _, raw := range []string{"NaN", "Inf", "-Inf"} {
		if _, err := ParseDegrees(raw, 180); !errors.Is(err, ErrInvalidCoordinates) {
			t.Errorf("%s: expected ErrInvalidCoordinates, got %v", raw, err)
		}
	}
}

func TestParseDegrees_OutOfRange(t *testing.T) {
	if _, err := ParseDegrees("90.5", 90); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected range error, got %v", err)
	}
	if _, err := ParseDegrees("-180", 180); err != nil {
		t.Errorf("boundary value should be accepted, got %v", err)
	}
}

func TestLatLonFromString(t *testing.T) {
	p, err := LatLonFromString("40.5,-3.7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Lat != 40.5 || p.Lon != -3.7 {
		t.Errorf("unexpected coordinate %+v", p)
	}

	if _, err := LatLonFromString("40.5"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for single value, got %v", err)
	}
	if _, err := LatLonFromString("40.5,-3.7,100"); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for three values, got %v", err)
	}
}

func TestPoint3857_RoundTrip(t *testing.T) {
	in := core.LatLon{Lat: 40.4168, Lon: -3.7038}
	point, err := Point3857(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	coords, ok := point.Coordinates()
	if !ok {
		t.Fatal("expected non-empty point")
	}
	// Madrid sits west of Greenwich and north of the equator.
	if coords.X >= 0 || coords.Y <= 0 {
		t.Errorf("unexpected projected coordinates %+v", coords.XY)
	}

	out, ok := LatLonFrom3857(point)
	if !ok {
		t.Fatal("expected coordinate back")
	}
	if math.Abs(out.Lat-in.Lat) > 1e-6 || math.Abs(out.Lon-in.Lon) > 1e-6 {
		t.Errorf("round trip drifted: %+v -> %+v", in, out)
	}
}

func TestPoint3857_NonFinite(t *testing.T) {
	point, err := Point3857(core.LatLon{Lat: math.NaN(), Lon: 13})
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
	if !point.IsEmpty() {
		t.Error("expected an empty point on error")
	}
}

func TestTrackLine(t *testing.T) {
	line, err := TrackLine([]core.GpsFix{{Lat: 40, Lon: -3}, {Lat: 40.001, Lon: -3.001}, {Lat: 40.002, Lon: -3.002}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line.IsEmpty() {
		t.Fatal("expected a non-empty line")
	}
	if n := line.Coordinates().Length(); n != 3 {
		t.Errorf("expected 3 vertices, got %d", n)
	}

	line, err = TrackLine([]core.GpsFix{{Lat: 40, Lon: -3}})
	if err != nil || !line.IsEmpty() {
		t.Errorf("single fix should produce an empty line, got err %v", err)
	}
}

func TestTrackLine_StationaryFixes(t *testing.T) {
	line, err := TrackLine([]core.GpsFix{{Second: 0, Lat: 40, Lon: -3}, {Second: 1, Lat: 40, Lon: -3}, {Second: 2, Lat: 40, Lon: -3}})
	if err != nil {
		t.Fatalf("a vehicle standing still is not an error: %v", err)
	}
	if !line.IsEmpty() {
		t.Error("one distinct position should produce an empty line")
	}

	line, err = TrackLine([]core.GpsFix{{Lat: 40, Lon: -3}, {Lat: 40, Lon: -3}, {Lat: 40.001, Lon: -3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := line.Coordinates().Length(); n != 2 {
		t.Errorf("expected repeated position to collapse to 2 vertices, got %d", n)
	}
}

func TestTrackLine_NonFinite(t *testing.T) {
	_, err := TrackLine([]core.GpsFix{{Lat: 40, Lon: -3}, {Lat: math.Inf(1), Lon: -3}})
	if !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestHaversine(t *testing.T) {
	a := core.LatLon{Lat: 0, Lon: 0}
	b := core.LatLon{Lat: 0, Lon: 1}
	d := Haversine(a, b)
	// One degree of longitude on the equator is ~111.2 km.
	if math.Abs(d-111195) > 50 {
		t.Errorf("expected ~111195m, got %f", d)
	}
	if Haversine(a, a) != 0 {
		t.Error("distance to self should be zero")
	}
}

func TestWithin(t *testing.T) {
	a := core.LatLon{Lat: 10, Lon: 20}
	if !Within(a, core.LatLon{Lat: 10.00005, Lon: 20.00005}, 1e-4) {
		t.Error("expected points to be within epsilon")
	}
	if Within(a, core.LatLon{Lat: 10.0002, Lon: 20}, 1e-4) {
		t.Error("expected latitude drift to exceed epsilon")
	}
}
