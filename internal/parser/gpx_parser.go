package parser

import (
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"

	"github.com/sstent/activityplot-go/internal/geo"
	"github.com/sstent/activityplot-go/internal/models"
)

// GPXParser reads track points from every track and segment in order.
type GPXParser struct{}

func NewGPXParser() *GPXParser {
	return &GPXParser{}
}

func (p *GPXParser) ParseFile(path string) (*models.Track, error) {
	return parseFile(p, path)
}

func (p *GPXParser) Parse(r io.Reader) (*models.Track, error) {
	doc, err := gpx.Parse(r)
	if err != nil {
		return nil, malformed(models.FileTypeGPX, err)
	}

	track := &models.Track{Format: models.FileTypeGPX}
	var offset float64
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			// Untimed points still count toward distance. The gap between
			// segments does not.
			path := make([]orb.Point, len(seg.Points))
			for i, pt := range seg.Points {
				path[i] = orb.Point{pt.Longitude, pt.Latitude}
			}
			cum := geo.PathLength(path)

			for i, pt := range seg.Points {
				// Points without a time cannot be placed on the reference axis.
				if pt.Timestamp.IsZero() {
					continue
				}

				pos := path[i]
				sample := models.Sample{
					Time:     pt.Timestamp,
					Position: &pos,
					Distance: models.Float(offset + cum[i]),
				}
				if pt.Elevation.NotNull() {
					sample.Altitude = models.Float(pt.Elevation.Value())
				}
				readGPXExtensions(&sample, pt.Extensions.Nodes)

				track.Samples = append(track.Samples, sample)
			}
			if len(cum) > 0 {
				offset += cum[len(cum)-1]
			}
		}
	}
	return track, nil
}

// readGPXExtensions fills the optional sensor fields from extension
// elements such as Garmin's TrackPointExtension. Unparseable values stay unset.
func readGPXExtensions(sample *models.Sample, nodes []gpx.ExtensionNode) {
	if v, ok := findExtension(nodes, func(local string) bool { return strings.Contains(local, "hr") }); ok {
		sample.HeartRate = models.Int(int(v))
	}
	if v, ok := findExtension(nodes, func(local string) bool { return local == "cad" || local == "cadence" }); ok {
		sample.Cadence = models.Float(v)
	}
	if v, ok := findExtension(nodes, func(local string) bool { return local == "power" || local == "watts" }); ok {
		sample.Power = models.Float(v)
	}
	if v, ok := findExtension(nodes, func(local string) bool { return local == "atemp" || local == "temp" }); ok {
		sample.Temperature = models.Float(v)
	}
}

// findExtension walks the extension tree depth first and returns the first
// numeric value whose lower-cased element name matches.
func findExtension(nodes []gpx.ExtensionNode, match func(local string) bool) (float64, bool) {
	for _, node := range nodes {
		if match(strings.ToLower(node.XMLName.Local)) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(node.Data), 64); err == nil {
				return v, true
			}
		}
		if v, ok := findExtension(node.Nodes, match); ok {
			return v, true
		}
	}
	return 0, false
}
