package core

import (
	"math"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// Distance returns the great-circle (haversine) distance in kilometres
// between two positions. Both satellites are assumed to fly at a's
// altitude; b's altitude is ignored.
func Distance(a, b model.GeoPosition) (float64, error) {
	for _, v := range []float64{a.Latitude, a.Longitude, a.Altitude, b.Latitude, b.Longitude} {
		if !finite(v) {
			return 0, &DomainError{Op: "distance", Reason: "position is not finite"}
		}
	}

	radius := EarthRadiusKm + a.Altitude
	lat1 := degToRad(a.Latitude)
	lat2 := degToRad(b.Latitude)
	dLat := degToRad(b.Latitude - a.Latitude)
	dLon := degToRad(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// rounding can push h just outside [0, 1]
	h = math.Max(0, math.Min(1, h))

	return radius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h)), nil
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
