package models

import (
	"time"

	"github.com/paulmach/orb"
)

// FileType identifies the wire format an activity was recorded in.
type FileType string

const (
	FileTypeFIT     FileType = "fit"
	FileTypeTCX     FileType = "tcx"
	FileTypeGPX     FileType = "gpx"
	FileTypeUnknown FileType = "unknown"
)

// Sample is one observation read from an activity file. Nil fields were
// not present for this observation.
type Sample struct {
	Time        time.Time
	Position    *orb.Point // lon, lat in degrees
	Distance    *float64   // cumulative meters
	Altitude    *float64   // meters
	HeartRate   *int       // bpm
	Cadence     *float64   // rpm or steps/min
	Power       *float64   // watts
	Temperature *float64   // °C
	Speed       *float64   // m/s as recorded by the device
}

// Track holds the samples of one activity file in capture order.
type Track struct {
	Format  FileType
	Samples []Sample
}

// Len returns the number of samples.
func (t *Track) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Samples)
}

// Float returns a pointer to v, for populating optional sample fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Point returns a pointer to a position built from degrees.
func Point(lat, lon float64) *orb.Point {
	p := orb.Point{lon, lat}
	return &p
}
