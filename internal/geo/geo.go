// Package geo measures distances between track positions.
package geo

import (
	"github.com/jftuga/geodist"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// Distance returns the geodesic distance in meters between two positions
// given as orb points (lon, lat in degrees). Vincenty's ellipsoidal formula
// is used; it can fail to converge for nearly antipodal points, in which
// case the great-circle distance is returned instead.
func Distance(a, b orb.Point) float64 {
	if a.Equal(b) {
		return 0
	}
	_, km, err := geodist.VincentyDistance(
		geodist.Coord{Lat: a.Lat(), Lon: a.Lon()},
		geodist.Coord{Lat: b.Lat(), Lon: b.Lon()},
	)
	if err != nil {
		return orbgeo.DistanceHaversine(a, b)
	}
	return km * 1000
}

// PathLength returns the cumulative distance in meters at every point of the path.
func PathLength(path []orb.Point) []float64 {
	out := make([]float64, len(path))
	for i := 1; i < len(path); i++ {
		out[i] = out[i-1] + Distance(path[i-1], path[i])
	}
	return out
}
