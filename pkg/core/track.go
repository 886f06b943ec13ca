// pkg/core/track.go
package core

// GpsFix is one timestamped GPS sample of a recording.
type GpsFix struct {
	Second        float64 // seconds from the start of the video
	Lat           float64
	Lon           float64
	TotalDistance float64 // cumulative meters from track start
}

// TrackData is a recording's track as delivered by a storage backend.
type TrackData struct {
	FileID        uint
	ProjectID     uint
	FileName      string
	Fixes         []GpsFix
	StartOffsetKm float64 // display offset, added to every fix's TotalDistance
	DefaultTagIDs []uint  // tags pre-selected on new annotations for this file
}

// LatLon is a bare geographic coordinate in degrees.
type LatLon struct {
	Lat float64
	Lon float64
}
