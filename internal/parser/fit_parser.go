package parser

import (
	"bufio"
	"io"
	"math"

	"github.com/tormoder/fit"

	"github.com/sstent/activityplot-go/internal/models"
)

// FITParser reads record messages from FIT activity files.
type FITParser struct{}

func NewFITParser() *FITParser {
	return &FITParser{}
}

func (p *FITParser) ParseFile(path string) (*models.Track, error) {
	return parseFile(p, path)
}

// Parse decodes the stream in a single pass.
func (p *FITParser) Parse(r io.Reader) (*models.Track, error) {
	fitFile, err := fit.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, malformed(models.FileTypeFIT, err)
	}

	activity, err := fitFile.Activity()
	if err != nil {
		return nil, malformed(models.FileTypeFIT, err)
	}

	return &models.Track{
		Format:  models.FileTypeFIT,
		Samples: RecordSamples(activity.Records),
	}, nil
}

// RecordSamples converts record messages into samples, dropping records
// without a timestamp. The decoder leaves an absent timestamp at the FIT
// epoch rather than the zero time.
func RecordSamples(records []*fit.RecordMsg) []models.Sample {
	samples := make([]models.Sample, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.Timestamp.IsZero() || fit.IsBaseTime(rec.Timestamp) {
			continue
		}
		samples = append(samples, recordSample(rec))
	}
	return samples
}

func recordSample(rec *fit.RecordMsg) models.Sample {
	s := models.Sample{Time: rec.Timestamp}

	lat, lon := rec.PositionLat.Degrees(), rec.PositionLong.Degrees()
	if !math.IsNaN(lat) && !math.IsNaN(lon) {
		s.Position = models.Point(lat, lon)
	}

	s.Distance = scaled(rec.GetDistanceScaled())
	if s.Altitude = scaled(rec.GetEnhancedAltitudeScaled()); s.Altitude == nil {
		s.Altitude = scaled(rec.GetAltitudeScaled())
	}
	if s.Speed = scaled(rec.GetEnhancedSpeedScaled()); s.Speed == nil {
		s.Speed = scaled(rec.GetSpeedScaled())
	}

	if rec.HeartRate != 0xFF {
		s.HeartRate = models.Int(int(rec.HeartRate))
	}
	if rec.Cadence != 0xFF {
		s.Cadence = models.Float(float64(rec.Cadence))
	}
	if rec.Power != 0xFFFF {
		s.Power = models.Float(float64(rec.Power))
	}
	if rec.Temperature != 0x7F {
		s.Temperature = models.Float(float64(rec.Temperature))
	}
	return s
}

// scaled maps the library's NaN "invalid" marker to an absent value.
func scaled(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
