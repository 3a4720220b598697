package core

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// MobilityModel is the calling contract the simulation driver uses to move
// a satellite forward and read its position. now is simulated seconds.
type MobilityModel interface {
	AdvanceAndGetPosition(now float64) (model.GeoPosition, error)
	Velocity() Vec3
	MotionSource() model.MotionSource
}

// EarthRotationRadPerSec is the sidereal rotation rate of the Earth.
const EarthRotationRadPerSec = 7.2921159e-5

var (
	_ MobilityModel = (*LeoSatellite)(nil)
	_ MobilityModel = (*SGP4MotionModel)(nil)
)

// SGP4MotionModel propagates a real TLE with SGP4. It is used as a
// reference track next to the idealised polar orbit.
type SGP4MotionModel struct {
	sat      satellite.Satellite
	epoch    time.Time
	velocity Vec3
}

// NewSGP4MotionModel parses the TLE lines. Simulated time zero maps to epoch.
func NewSGP4MotionModel(line1, line2 string, epoch time.Time) (*SGP4MotionModel, error) {
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, &ConfigurationError{Field: "tle", Value: sat.ErrorStr, Reason: "SGP4 initialisation failed"}
	}
	return &SGP4MotionModel{sat: sat, epoch: epoch.UTC()}, nil
}

// AdvanceAndGetPosition propagates to epoch+now and returns the position
// over the spherical Earth. go-satellite works in kilometres, as does
// GeoPosition.
func (m *SGP4MotionModel) AdvanceAndGetPosition(now float64) (model.GeoPosition, error) {
	if !finite(now) {
		return model.GeoPosition{}, &DomainError{Op: "sgp4", Reason: "time is not finite"}
	}
	t := m.epoch.Add(time.Duration(now * float64(time.Second)))
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, velECI := satellite.Propagate(m.sat, year, int(month), day, hour, min, sec)
	if !finite(posECI.X) || !finite(posECI.Y) || !finite(posECI.Z) {
		return model.GeoPosition{}, &DomainError{Op: "sgp4", Reason: fmt.Sprintf("propagation to %s diverged", t.Format(time.RFC3339))}
	}
	gmst := satellite.ThetaG_JD(satellite.JDay(year, int(month), day, hour, min, sec))
	posECEF := satellite.ECIToECEF(posECI, gmst)
	velRot := satellite.ECIToECEF(velECI, gmst)

	// Subtract the Earth's rotation: v_ecef = R·v_eci − ω × r_ecef.
	m.velocity = Vec3{
		X: velRot.X + EarthRotationRadPerSec*posECEF.Y,
		Y: velRot.Y - EarthRotationRadPerSec*posECEF.X,
		Z: velRot.Z,
	}
	return fromECEF(Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}), nil
}

// Velocity returns the Earth-fixed velocity (km/s) of the last
// propagation, in the same frame as the returned position.
func (m *SGP4MotionModel) Velocity() Vec3 { return m.velocity }

func (m *SGP4MotionModel) MotionSource() model.MotionSource { return model.MotionSourceSpacetrack }

// fromECEF is the inverse of ToECEF on the spherical Earth.
func fromECEF(v Vec3) model.GeoPosition {
	r := v.Norm()
	return model.GeoPosition{
		Latitude:  math.Asin(v.Z/r) * 180 / math.Pi,
		Longitude: wrapLongitude(math.Atan2(v.Y, v.X) * 180 / math.Pi),
		Altitude:  r - EarthRadiusKm,
	}
}

func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
