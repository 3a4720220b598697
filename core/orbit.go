package core

import (
	"math"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

const (
	// EarthRadiusKm is the equatorial Earth radius used by the orbit and
	// distance calculations (kilometres).
	EarthRadiusKm = 6378.1
	// GravitationalConstant in N·m²/kg².
	GravitationalConstant = 6.673e-11
	// EarthMassKg is the mass of the Earth.
	EarthMassKg = 5.972e24
	// SpeedOfLightKmPerSec is used for link latency.
	SpeedOfLightKmPerSec = 299792.458
)

// OrbitalSpeed returns the circular-orbit speed for a satellite at the given
// altitude: sqrt(G·M / (R + altitude)).
func OrbitalSpeed(altitudeKm float64) float64 {
	return math.Sqrt(GravitationalConstant * EarthMassKg / (EarthRadiusKm + altitudeKm))
}

// OrbitalPeriod returns the time in seconds for one full pole-to-pole-to-pole
// circuit at the given altitude.
func OrbitalPeriod(altitudeKm float64) float64 {
	return 2 * math.Pi * (EarthRadiusKm + altitudeKm) / OrbitalSpeed(altitudeKm)
}

// DegreeDisplacement converts elapsed seconds into degrees of latitude
// travelled, wrapped to a single circuit.
func DegreeDisplacement(elapsedSeconds, periodSeconds float64) float64 {
	return math.Mod(elapsedSeconds/periodSeconds*360, 360)
}

// OrbitState is the mutable part of a polar-orbit satellite.
type OrbitState struct {
	Latitude  float64
	Longitude float64
	Direction model.Direction
}

// Propagate moves the state displacementDeg degrees of latitude along its
// meridian. Crossing a pole reverses the direction and moves the satellite
// onto the antipodal meridian (longitude sign flip). A wrapped displacement
// is below 360° so at most two crossings can occur, and the second one is
// only possible after the first. The second return value is the number of
// poles crossed.
func Propagate(s OrbitState, displacementDeg float64) (OrbitState, int) {
	lat, lon, dir := s.Latitude, s.Longitude, s.Direction
	d := displacementDeg
	crossings := 0

	if dir == model.Northbound {
		if lat+d > 90 {
			d -= 90 - lat
			lat = 90
			lon = -lon
			dir = dir.Reverse()
			crossings++
			if lat-d < -90 {
				d -= 180
				lat = -90
				lon = -lon
				dir = dir.Reverse()
				crossings++
			}
		}
	} else {
		if lat-d < -90 {
			d -= lat + 90
			lat = -90
			lon = -lon
			dir = dir.Reverse()
			crossings++
			if lat+d > 90 {
				d -= 180
				lat = 90
				lon = -lon
				dir = dir.Reverse()
				crossings++
			}
		}
	}

	if dir == model.Northbound {
		lat += d
	} else {
		lat -= d
	}
	return OrbitState{Latitude: lat, Longitude: lon, Direction: dir}, crossings
}
