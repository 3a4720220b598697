package model

import "fmt"

// MotionSource indicates how a satellite's motion is determined.
type MotionSource int

const (
	MotionSourceUnknown    MotionSource = iota
	MotionSourcePolarOrbit              // circular pole-to-pole track
	MotionSourceSpacetrack              // TLE-based orbit propagation
)

func (m MotionSource) String() string {
	switch m {
	case MotionSourcePolarOrbit:
		return "polar"
	case MotionSourceSpacetrack:
		return "spacetrack"
	default:
		return "unknown"
	}
}

// Direction is the sense of travel along a polar orbit.
type Direction bool

const (
	Northbound Direction = true
	Southbound Direction = false
)

func (d Direction) String() string {
	if d == Northbound {
		return "northbound"
	}
	return "southbound"
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction { return !d }

// GeoPosition is a geographic position: latitude and longitude in degrees,
// altitude in kilometres above the Earth's surface.
type GeoPosition struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude_km"`
}

func (p GeoPosition) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.1fkm)", p.Latitude, p.Longitude, p.Altitude)
}

// SatelliteDefinition is the knowledge-base record for one constellation member.
type SatelliteDefinition struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
	Plane int    `json:"plane"`
	Slot  int    `json:"slot"`

	Position     GeoPosition  `json:"position"`
	Direction    Direction    `json:"northbound"`
	MotionSource MotionSource `json:"-"`

	// LastUpdateTime is the simulated time (seconds) of Position.
	LastUpdateTime float64 `json:"last_update_s"`
}

// SatelliteID formats the canonical ID for a 1-based constellation index.
func SatelliteID(index int) string {
	return fmt.Sprintf("sat-%d", index)
}
