package parser

import (
	"bytes"
	"encoding/xml"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sstent/activityplot-go/internal/models"
)

// TCXParser reads Garmin Training Center trackpoints. Every trackpoint
// child is optional and read independently.
type TCXParser struct{}

func NewTCXParser() *TCXParser {
	return &TCXParser{}
}

type tcxDatabase struct {
	XMLName    xml.Name      `xml:"TrainingCenterDatabase"`
	Activities []tcxActivity `xml:"Activities>Activity"`
}

type tcxActivity struct {
	Sport string   `xml:"Sport,attr"`
	Laps  []tcxLap `xml:"Lap"`
}

type tcxLap struct {
	Tracks []tcxTrack `xml:"Track"`
}

type tcxTrack struct {
	Trackpoints []tcxTrackpoint `xml:"Trackpoint"`
}

// Values are kept as text so one bad number only drops that field.
type tcxTrackpoint struct {
	Time           string         `xml:"Time"`
	Position       *tcxPosition   `xml:"Position"`
	AltitudeMeters string         `xml:"AltitudeMeters"`
	DistanceMeters string         `xml:"DistanceMeters"`
	HeartRateBpm   *tcxValue      `xml:"HeartRateBpm"`
	Cadence        string         `xml:"Cadence"`
	Extensions     *tcxExtensions `xml:"Extensions"`
}

type tcxPosition struct {
	LatitudeDegrees  string `xml:"LatitudeDegrees"`
	LongitudeDegrees string `xml:"LongitudeDegrees"`
}

type tcxValue struct {
	Value string `xml:"Value"`
}

type tcxExtensions struct {
	TPX *tcxTPX `xml:"TPX"`
}

type tcxTPX struct {
	Watts      string `xml:"Watts"`
	RunCadence string `xml:"RunCadence"`
}

func (p *TCXParser) ParseFile(path string) (*models.Track, error) {
	return parseFile(p, path)
}

func (p *TCXParser) Parse(r io.Reader) (*models.Track, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed(models.FileTypeTCX, err)
	}

	// Some exports put whitespace ahead of the XML declaration.
	dec := xml.NewDecoder(bytes.NewReader(trimXMLPreamble(data)))
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var db tcxDatabase
	if err := dec.Decode(&db); err != nil {
		return nil, malformed(models.FileTypeTCX, err)
	}

	track := &models.Track{Format: models.FileTypeTCX}
	for _, activity := range db.Activities {
		for _, lap := range activity.Laps {
			for _, trk := range lap.Tracks {
				for _, tp := range trk.Trackpoints {
					if sample, ok := tp.sample(); ok {
						track.Samples = append(track.Samples, sample)
					}
				}
			}
		}
	}
	return track, nil
}

func (tp tcxTrackpoint) sample() (models.Sample, bool) {
	t, ok := parseTCXTime(tp.Time)
	if !ok {
		return models.Sample{}, false
	}

	s := models.Sample{
		Time:     t,
		Altitude: optionalFloat(tp.AltitudeMeters),
		Distance: optionalFloat(tp.DistanceMeters),
		Cadence:  optionalFloat(tp.Cadence),
	}
	if tp.Position != nil {
		lat := optionalFloat(tp.Position.LatitudeDegrees)
		lon := optionalFloat(tp.Position.LongitudeDegrees)
		if lat != nil && lon != nil {
			s.Position = models.Point(*lat, *lon)
		}
	}
	if tp.HeartRateBpm != nil {
		if hr := optionalFloat(tp.HeartRateBpm.Value); hr != nil {
			s.HeartRate = models.Int(int(*hr))
		}
	}
	if tp.Extensions != nil && tp.Extensions.TPX != nil {
		s.Power = optionalFloat(tp.Extensions.TPX.Watts)
		if s.Cadence == nil {
			s.Cadence = optionalFloat(tp.Extensions.TPX.RunCadence)
		}
	}
	return s, true
}

var tcxTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

func parseTCXTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range tcxTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// optionalFloat reads a numeric element; empty or invalid text is absent.
func optionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
