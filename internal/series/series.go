// Package series turns parsed tracks into equal-length series in display
// units, keyed on the sample timestamps.
package series

import (
	"math"
	"time"

	"github.com/paulmach/orb"

	"github.com/sstent/activityplot-go/internal/geo"
	"github.com/sstent/activityplot-go/internal/models"
	"github.com/sstent/activityplot-go/internal/units"
)

// Series holds aligned values for one activity. Every non-empty slice has
// the same length as Time; a field no sample carried stays empty.
type Series struct {
	Time        []time.Time
	Elapsed     []float64 // seconds since the first sample
	Distance    []float64 // miles
	Altitude    []float64 // feet
	Speed       []float64 // mph
	HeartRate   []float64 // bpm
	Cadence     []float64 // rpm
	Power       []float64 // watts
	Temperature []float64 // °F
}

// Len returns the number of reference timestamps.
func (s Series) Len() int {
	return len(s.Time)
}

// Align fills, repairs and converts a track. Recorded speed is preferred
// when the file carries it; otherwise speed is derived from positions.
func Align(track *models.Track) Series {
	n := track.Len()
	if n == 0 {
		return Series{}
	}
	samples := track.Samples

	out := Series{
		Time:    make([]time.Time, n),
		Elapsed: make([]float64, n),
	}
	start := samples[0].Time
	for i, s := range samples {
		out.Time[i] = s.Time
		out.Elapsed[i] = s.Time.Sub(start).Seconds()
	}

	if dist, ok := column(samples, func(s models.Sample) *float64 { return s.Distance }); ok {
		if track.Format == models.FileTypeTCX {
			dist = RepairDistance(dist)
		}
		out.Distance = Map(dist, units.MetersToMiles)
	}
	if alt, ok := column(samples, func(s models.Sample) *float64 { return s.Altitude }); ok {
		out.Altitude = Map(alt, units.MetersToFeet)
	}
	if hr, ok := column(samples, func(s models.Sample) *int { return s.HeartRate }); ok {
		out.HeartRate = Map(hr, func(v int) float64 { return float64(v) })
	}
	if cad, ok := column(samples, func(s models.Sample) *float64 { return s.Cadence }); ok {
		out.Cadence = cad
	}
	if pwr, ok := column(samples, func(s models.Sample) *float64 { return s.Power }); ok {
		out.Power = pwr
	}
	if temp, ok := column(samples, func(s models.Sample) *float64 { return s.Temperature }); ok {
		out.Temperature = Map(temp, units.CelsiusToFahrenheit)
	}

	if spd, ok := column(samples, func(s models.Sample) *float64 { return s.Speed }); ok {
		out.Speed = Map(spd, units.MPSToMPH)
	} else if hasAny(samples, func(s models.Sample) bool { return s.Position != nil }) {
		positions := make([]*orb.Point, n)
		for i := range samples {
			positions[i] = samples[i].Position
		}
		out.Speed = DeriveSpeed(out.Time, positions)
	}

	out.pad()
	return out
}

// pad brings every populated series up to the reference length.
func (s *Series) pad() {
	n := s.Len()
	for _, f := range []*[]float64{&s.Distance, &s.Altitude, &s.Speed, &s.HeartRate, &s.Cadence, &s.Power, &s.Temperature} {
		if len(*f) > 0 {
			*f = PadTo(*f, n)
		}
	}
}

// RepairDistance makes a cumulative distance series non-decreasing. Each
// step adds the absolute change between consecutive raw readings, so a
// regression such as [0, 100, 40, 140] becomes [0, 100, 160, 260].
func RepairDistance(raw []float64) []float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make([]float64, len(raw))
	out[0] = raw[0]
	for i := 1; i < len(raw); i++ {
		out[i] = out[i-1] + math.Abs(raw[i]-raw[i-1])
	}
	return out
}

// DeriveSpeed computes mph between consecutive positions and pads the n-1
// results to n. A pair with no elapsed time, or without a known position on
// either side, repeats the previous speed (zero for the first pair).
// Positions are never filled, so a gap leaves the speed steady instead of
// reading as a stop. Fewer than two samples yield an empty series.
func DeriveSpeed(times []time.Time, positions []*orb.Point) []float64 {
	n := len(times)
	if n < 2 || len(positions) != n {
		return nil
	}

	speeds := make([]float64, 0, n)
	var prev float64
	for i := 1; i < n; i++ {
		a, b := positions[i-1], positions[i]
		dt := times[i].Sub(times[i-1]).Seconds()
		if a == nil || b == nil || dt <= 0 {
			speeds = append(speeds, prev)
			continue
		}
		prev = units.MPSToMPH(geo.Distance(*a, *b) / dt)
		speeds = append(speeds, prev)
	}
	return PadTo(speeds, n)
}

// column extracts one optional field and forward-fills it. It reports false
// when no sample carried the field.
func column[T Number](samples []models.Sample, get func(models.Sample) *T) ([]T, bool) {
	vals := make([]*T, len(samples))
	present := false
	for i, s := range samples {
		vals[i] = get(s)
		present = present || vals[i] != nil
	}
	if !present {
		return nil, false
	}
	return FillForward(vals), true
}

func hasAny(samples []models.Sample, pred func(models.Sample) bool) bool {
	for _, s := range samples {
		if pred(s) {
			return true
		}
	}
	return false
}
