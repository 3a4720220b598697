package core

import (
	"math"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// SatelliteConfig holds the construction-time parameters of one satellite.
// Latitude, Longitude and Direction are overwritten by SetInitialPosition.
type SatelliteConfig struct {
	SatellitesPerPlane int
	NumberOfPlanes     int
	Latitude           float64
	Longitude          float64
	// Time is the simulated time (seconds) at which Latitude and Longitude
	// are valid.
	Time       float64
	AltitudeKm float64
	Direction  model.Direction
}

// DefaultSatelliteConfig returns a single-plane, single-satellite config.
func DefaultSatelliteConfig() SatelliteConfig {
	return SatelliteConfig{
		SatellitesPerPlane: 1,
		NumberOfPlanes:     1,
		Direction:          model.Northbound,
	}
}

// Validate checks that the configuration describes a well-defined orbit.
func (c SatelliteConfig) Validate() error {
	if err := validateShape(c.NumberOfPlanes, c.SatellitesPerPlane); err != nil {
		return err
	}
	if !finite(c.AltitudeKm) || c.AltitudeKm < 0 {
		return configErr("altitude", c.AltitudeKm, "must be a finite, non-negative number of kilometres")
	}
	if !finite(c.Time) {
		return configErr("time", c.Time, "must be finite")
	}
	if !finite(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return configErr("latitude", c.Latitude, "must lie in [-90, 90]")
	}
	if !finite(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return configErr("longitude", c.Longitude, "must lie in [-180, 180]")
	}
	return nil
}

// LeoSatellite is the mobility model of one satellite on a circular polar
// orbit. It is not safe for concurrent use: queries against one satellite
// must be serialised and carry non-decreasing times.
type LeoSatellite struct {
	index    int
	planes   int
	perPlane int
	altitude float64
	speed    float64
	period   float64

	latitude       float64
	longitude      float64
	direction      model.Direction
	lastUpdateTime float64
}

// NewLeoSatellite validates cfg and builds the satellite with the given
// 1-based constellation index.
func NewLeoSatellite(index int, cfg SatelliteConfig) (*LeoSatellite, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if index < 1 || index > cfg.NumberOfPlanes*cfg.SatellitesPerPlane {
		return nil, configErr("index", index, "outside [1, planes*satellitesPerPlane]")
	}
	return &LeoSatellite{
		index:          index,
		planes:         cfg.NumberOfPlanes,
		perPlane:       cfg.SatellitesPerPlane,
		altitude:       cfg.AltitudeKm,
		speed:          OrbitalSpeed(cfg.AltitudeKm),
		period:         OrbitalPeriod(cfg.AltitudeKm),
		latitude:       cfg.Latitude,
		longitude:      cfg.Longitude,
		direction:      cfg.Direction,
		lastUpdateTime: cfg.Time,
	}, nil
}

// SetInitialPosition places the satellite at its canonical starting state
// derived from its index and the constellation shape.
func (s *LeoSatellite) SetInitialPosition() error {
	l, err := InitialPosition(s.index, s.planes, s.perPlane)
	if err != nil {
		return err
	}
	s.latitude = l.Latitude
	s.longitude = l.Longitude
	s.direction = l.Direction
	return nil
}

// AdvanceAndGetPosition moves the satellite to simulated time now (seconds)
// and returns the new position. It mutates the satellite.
func (s *LeoSatellite) AdvanceAndGetPosition(now float64) (model.GeoPosition, error) {
	pos, _, err := s.advance(now)
	return pos, err
}

// advance is AdvanceAndGetPosition that also reports pole crossings.
func (s *LeoSatellite) advance(now float64) (model.GeoPosition, int, error) {
	if !finite(now) {
		return s.Position(), 0, &DomainError{Op: "advance", Reason: "time is not finite"}
	}
	if now < s.lastUpdateTime {
		return s.Position(), 0, &DomainError{Op: "advance", Reason: "time moved backwards"}
	}

	d := DegreeDisplacement(now-s.lastUpdateTime, s.period)
	next, crossings := Propagate(OrbitState{
		Latitude:  s.latitude,
		Longitude: s.longitude,
		Direction: s.direction,
	}, d)

	s.latitude = next.Latitude
	s.longitude = next.Longitude
	s.direction = next.Direction
	s.lastUpdateTime = now
	return s.Position(), crossings, nil
}

// Position returns the last computed position without advancing time.
func (s *LeoSatellite) Position() model.GeoPosition {
	return model.GeoPosition{Latitude: s.latitude, Longitude: s.longitude, Altitude: s.altitude}
}

// Velocity always returns the zero vector: this model tracks position
// along the meridian only and exposes no velocity vector.
func (s *LeoSatellite) Velocity() Vec3 { return Vec3{} }

func (s *LeoSatellite) MotionSource() model.MotionSource { return model.MotionSourcePolarOrbit }

func (s *LeoSatellite) Index() int                 { return s.index }
func (s *LeoSatellite) Direction() model.Direction { return s.direction }
func (s *LeoSatellite) LastUpdateTime() float64    { return s.lastUpdateTime }
func (s *LeoSatellite) AltitudeKm() float64        { return s.altitude }

// Speed is the orbital speed derived from altitude.
func (s *LeoSatellite) Speed() float64 { return s.speed }

// OrbitalPeriod is the time in seconds for one full circuit.
func (s *LeoSatellite) OrbitalPeriod() float64 { return s.period }

// Definition returns a knowledge-base record of the current state.
func (s *LeoSatellite) Definition() model.SatelliteDefinition {
	return model.SatelliteDefinition{
		ID:             model.SatelliteID(s.index),
		Index:          s.index,
		Plane:          PlaneOf(s.index, s.perPlane),
		Slot:           SlotOf(s.index, s.perPlane),
		Position:       s.Position(),
		Direction:      s.direction,
		MotionSource:   s.MotionSource(),
		LastUpdateTime: s.lastUpdateTime,
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
