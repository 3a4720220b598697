package core

import (
	"fmt"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// ConstellationConfig describes an evenly spaced polar constellation.
type ConstellationConfig struct {
	Planes             int
	SatellitesPerPlane int
	AltitudeKm         float64
	// StartTime is the simulated time (seconds) of the initial layout.
	StartTime float64
}

// Constellation owns every satellite of the constellation, indexed 1..N.
type Constellation struct {
	cfg  ConstellationConfig
	sats []*LeoSatellite
}

// NewConstellation builds and lays out all planes*perPlane satellites.
func NewConstellation(cfg ConstellationConfig) (*Constellation, error) {
	base := SatelliteConfig{
		SatellitesPerPlane: cfg.SatellitesPerPlane,
		NumberOfPlanes:     cfg.Planes,
		Time:               cfg.StartTime,
		AltitudeKm:         cfg.AltitudeKm,
		Direction:          model.Northbound,
	}
	if err := base.Validate(); err != nil {
		return nil, err
	}

	n := cfg.Planes * cfg.SatellitesPerPlane
	c := &Constellation{cfg: cfg, sats: make([]*LeoSatellite, 0, n)}
	for index := 1; index <= n; index++ {
		sat, err := NewLeoSatellite(index, base)
		if err != nil {
			return nil, fmt.Errorf("satellite %d: %w", index, err)
		}
		if err := sat.SetInitialPosition(); err != nil {
			return nil, fmt.Errorf("satellite %d: %w", index, err)
		}
		c.sats = append(c.sats, sat)
	}
	return c, nil
}

// Config returns the shape the constellation was built with.
func (c *Constellation) Config() ConstellationConfig { return c.cfg }

// Len returns the number of satellites.
func (c *Constellation) Len() int { return len(c.sats) }

// Satellites returns the satellites in index order.
func (c *Constellation) Satellites() []*LeoSatellite {
	return append([]*LeoSatellite(nil), c.sats...)
}

// Satellite returns the satellite with the 1-based index, or nil.
func (c *Constellation) Satellite(index int) *LeoSatellite {
	if index < 1 || index > len(c.sats) {
		return nil
	}
	return c.sats[index-1]
}

// IndexOf returns the satellite index at the given 1-based plane and slot.
func (c *Constellation) IndexOf(plane, slot int) int {
	return (plane-1)*c.cfg.SatellitesPerPlane + slot
}

// Plane returns the 1-based orbital plane of the satellite index.
func (c *Constellation) Plane(index int) int { return PlaneOf(index, c.cfg.SatellitesPerPlane) }

// Slot returns the 1-based slot of the satellite index within its plane.
func (c *Constellation) Slot(index int) int { return SlotOf(index, c.cfg.SatellitesPerPlane) }

// Positions returns the current positions in index order without advancing.
func (c *Constellation) Positions() []model.GeoPosition {
	out := make([]model.GeoPosition, len(c.sats))
	for i, s := range c.sats {
		out[i] = s.Position()
	}
	return out
}

// AdvanceAll moves every satellite to simulated time now. It returns the
// positions in index order and the total number of pole crossings.
func (c *Constellation) AdvanceAll(now float64) ([]model.GeoPosition, int, error) {
	out := make([]model.GeoPosition, len(c.sats))
	crossings := 0
	for i, s := range c.sats {
		pos, n, err := s.advance(now)
		if err != nil {
			return nil, crossings, fmt.Errorf("satellite %d: %w", s.Index(), err)
		}
		out[i] = pos
		crossings += n
	}
	return out, crossings, nil
}

// Definitions returns knowledge-base records for every satellite.
func (c *Constellation) Definitions() []model.SatelliteDefinition {
	out := make([]model.SatelliteDefinition, len(c.sats))
	for i, s := range c.sats {
		out[i] = s.Definition()
	}
	return out
}
