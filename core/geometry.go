package core

import (
	"math"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// Vec3 is an Earth-centred vector in kilometres (or km/s for velocities).
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// DistanceTo returns the straight-line (chord) distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// ToECEF converts a geographic position on the spherical Earth into an
// Earth-centred, Earth-fixed vector in kilometres.
func ToECEF(p model.GeoPosition) Vec3 {
	r := EarthRadiusKm + p.Altitude
	lat := degToRad(p.Latitude)
	lon := degToRad(p.Longitude)
	return Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// HasLineOfSight reports whether the segment between p1 and p2 stays clear
// of the Earth sphere.
func HasLineOfSight(p1, p2 Vec3) bool {
	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		return p1.Dot(p1) > EarthRadiusKm*EarthRadiusKm
	}

	// t minimises |p1 + t v|^2, clamped to the segment.
	t := math.Max(0, math.Min(1, -p1.Dot(v)/a))
	closest := Vec3{
		X: p1.X + v.X*t,
		Y: p1.Y + v.Y*t,
		Z: p1.Z + v.Z*t,
	}
	return closest.Dot(closest) > EarthRadiusKm*EarthRadiusKm
}
