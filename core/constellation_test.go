package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

func TestNewConstellation(t *testing.T) {
	c, err := NewConstellation(ConstellationConfig{Planes: 3, SatellitesPerPlane: 4, AltitudeKm: 550, StartTime: 10})
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	if c.Len() != 12 {
		t.Fatalf("Len() = %d, want 12", c.Len())
	}
	for i, sat := range c.Satellites() {
		if sat.Index() != i+1 {
			t.Errorf("satellite %d has index %d", i+1, sat.Index())
		}
		want, _ := InitialPosition(i+1, 3, 4)
		pos := sat.Position()
		if pos.Latitude != want.Latitude || pos.Longitude != want.Longitude || sat.Direction() != want.Direction {
			t.Errorf("satellite %d at %+v %v, want %+v", i+1, pos, sat.Direction(), want)
		}
		if sat.LastUpdateTime() != 10 {
			t.Errorf("satellite %d last update %v, want 10", i+1, sat.LastUpdateTime())
		}
	}
	if c.Satellite(0) != nil || c.Satellite(13) != nil {
		t.Errorf("out-of-range Satellite lookups should return nil")
	}
	if got := c.IndexOf(2, 3); got != 7 {
		t.Errorf("IndexOf(2, 3) = %d, want 7", got)
	}
	if c.Plane(7) != 2 || c.Slot(7) != 3 {
		t.Errorf("satellite 7 in plane %d slot %d, want 2 and 3", c.Plane(7), c.Slot(7))
	}
}

func TestNewConstellation_InvalidShape(t *testing.T) {
	for _, cfg := range []ConstellationConfig{
		{Planes: 0, SatellitesPerPlane: 4, AltitudeKm: 550},
		{Planes: 2, SatellitesPerPlane: 0, AltitudeKm: 550},
		{Planes: 2, SatellitesPerPlane: 4, AltitudeKm: -1},
		{Planes: 2, SatellitesPerPlane: 4, AltitudeKm: 550, StartTime: math.NaN()},
	} {
		if _, err := NewConstellation(cfg); !errors.Is(err, ErrConfiguration) {
			t.Errorf("NewConstellation(%+v) error = %v, want configuration error", cfg, err)
		}
	}
}

func TestConstellation_AdvanceAll(t *testing.T) {
	c, err := NewConstellation(ConstellationConfig{Planes: 2, SatellitesPerPlane: 3, AltitudeKm: 2000})
	if err != nil {
		t.Fatalf("NewConstellation: %v", err)
	}
	before := c.Positions()

	// Half a period moves every satellite across exactly one pole.
	positions, crossings, err := c.AdvanceAll(OrbitalPeriod(2000) / 2)
	if err != nil {
		t.Fatalf("AdvanceAll: %v", err)
	}
	if len(positions) != 6 {
		t.Fatalf("len(positions) = %d, want 6", len(positions))
	}
	if crossings != 6 {
		t.Errorf("crossings = %d, want 6", crossings)
	}
	for i, p := range positions {
		if p.Longitude != -before[i].Longitude {
			t.Errorf("satellite %d longitude %v, want %v", i+1, p.Longitude, -before[i].Longitude)
		}
	}

	if _, _, err := c.AdvanceAll(0); !errors.Is(err, ErrDomain) {
		t.Fatalf("AdvanceAll back in time: error = %v, want domain error", err)
	}

	defs := c.Definitions()
	if defs[5].ID != model.SatelliteID(6) || defs[5].Plane != 2 || defs[5].Slot != 3 {
		t.Errorf("definition 6 = %+v", defs[5])
	}
}
