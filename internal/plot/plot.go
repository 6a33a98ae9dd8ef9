// Package plot packages aligned activity series into chart payloads.
package plot

import (
	"sort"
	"strings"

	"github.com/sstent/activityplot-go/internal/series"
)

type Metric string

const (
	Speed       Metric = "speed"
	Elevation   Metric = "elevation"
	HeartRate   Metric = "heart_rate"
	Cadence     Metric = "cadence"
	Power       Metric = "power"
	Temperature Metric = "temperature"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{Speed, Elevation, HeartRate, Cadence, Power, Temperature}

const (
	AxisDistance = "Distance"
	AxisTime     = "Time"
)

type SeriesPair struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

type Chart struct {
	Title      string     `json:"title"`
	YAxisLabel string     `json:"y_axis_label"`
	XAxisLabel string     `json:"x_axis_label"`
	Series     SeriesPair `json:"series"`
}

// Bundle maps metric names to charts. Metrics without signal are absent.
type Bundle map[Metric]Chart

// Names returns the metrics present, in display order.
func (b Bundle) Names() []Metric {
	var out []Metric
	for _, m := range Metrics {
		if _, ok := b[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

var chartLabels = map[Metric]struct{ title, y string }{
	Speed:       {"Speed", "MPH"},
	Elevation:   {"Elevation", "Feet"},
	HeartRate:   {"Heart Rate", "BPM"},
	Cadence:     {"Cadence", "RPM"},
	Power:       {"Power", "Watts"},
	Temperature: {"Temperature", "F"},
}

// IndoorSet classifies activity types, ignoring case and surrounding space.
type IndoorSet map[string]struct{}

func NewIndoorSet(types []string) IndoorSet {
	set := make(IndoorSet, len(types))
	for _, t := range types {
		if t = normalizeType(t); t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}

func (s IndoorSet) Contains(activityType string) bool {
	_, ok := s[normalizeType(activityType)]
	return ok
}

// Types returns the configured types, sorted.
func (s IndoorSet) Types() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

type Assembler struct {
	Indoor IndoorSet
}

func NewAssembler(indoorTypes []string) *Assembler {
	return &Assembler{Indoor: NewIndoorSet(indoorTypes)}
}

// Build pairs every metric with its x axis and drops metrics whose values
// are empty or average zero or less. Indoor activities use elapsed time and
// never carry elevation; outdoor activities use distance when the file has it.
func (a *Assembler) Build(s series.Series, activityType string) Bundle {
	bundle := Bundle{}
	if s.Len() == 0 {
		return bundle
	}

	indoor := a.Indoor.Contains(activityType)
	x, xLabel := s.Distance, AxisDistance
	if indoor || len(s.Distance) == 0 {
		x, xLabel = s.Elapsed, AxisTime
	}

	values := map[Metric][]float64{
		Speed:       s.Speed,
		HeartRate:   s.HeartRate,
		Cadence:     s.Cadence,
		Power:       s.Power,
		Temperature: s.Temperature,
	}
	for metric, y := range values {
		if chart, ok := newChart(metric, x, y, xLabel); ok {
			bundle[metric] = chart
		}
	}

	if !indoor && len(s.Distance) > 0 {
		if chart, ok := newChart(Elevation, s.Distance, s.Altitude, AxisDistance); ok {
			bundle[Elevation] = chart
		}
	}
	return bundle
}

func newChart(metric Metric, x, y []float64, xLabel string) (Chart, bool) {
	if !hasSignal(y) || len(x) != len(y) {
		return Chart{}, false
	}
	labels := chartLabels[metric]
	return Chart{
		Title:      labels.title,
		YAxisLabel: labels.y,
		XAxisLabel: xLabel,
		Series:     SeriesPair{X: x, Y: y},
	}, true
}

// hasSignal keeps the long-standing rule that a metric averaging zero or
// less is treated as missing, even when the zeros were real readings.
func hasSignal(y []float64) bool {
	return len(y) > 0 && series.Mean(y) > 0
}
