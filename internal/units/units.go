// Package units converts raw device measurements into display units.
package units

import (
	"fmt"
	"math"
	"time"
)

const (
	MetersPerMile = 1609.344
	FeetPerMeter  = 3.28084
	MPHPerMPS     = 2.23694
)

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// MetersToMiles returns miles rounded to two decimals.
func MetersToMiles(m float64) float64 {
	return Round(m/MetersPerMile, 2)
}

func MilesToMeters(mi float64) float64 {
	return mi * MetersPerMile
}

func MetersToFeet(m float64) float64 {
	return m * FeetPerMeter
}

func FeetToMeters(ft float64) float64 {
	return ft / FeetPerMeter
}

// MPSToMPH returns miles per hour rounded to two decimals.
func MPSToMPH(mps float64) float64 {
	return Round(mps*MPHPerMPS, 2)
}

func MPHToMPS(mph float64) float64 {
	return mph / MPHPerMPS
}

func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// FormatClock renders an elapsed duration as H:MM:SS when it reaches an
// hour and MM:SS otherwise.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
