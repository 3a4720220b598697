package model

import (
	"fmt"
	"time"
)

// LinkKind distinguishes links inside an orbital plane from links that
// cross between neighbouring planes.
type LinkKind string

const (
	LinkKindIntraPlane LinkKind = "intra-plane"
	LinkKindInterPlane LinkKind = "inter-plane"
)

// InterSatelliteLink connects two constellation members, identified by
// their 1-based indices with A < B.
type InterSatelliteLink struct {
	ID   string   `json:"id"`
	A    int      `json:"a"`
	B    int      `json:"b"`
	Kind LinkKind `json:"kind"`

	DistanceKm float64 `json:"distance_km"`
	LatencyMs  float64 `json:"latency_ms"`

	// IsUp is true when the Earth does not block the line of sight and the
	// link is within range.
	IsUp bool `json:"is_up"`
}

// LinkID formats the deterministic link ID for a satellite pair.
func LinkID(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("isl-%d-%d", a, b)
}

// Snapshot is the state of the whole constellation after one simulation step.
type Snapshot struct {
	RunID          string                `json:"run_id"`
	Tick           int                   `json:"tick"`
	SimTime        time.Time             `json:"sim_time"`
	ElapsedSeconds float64               `json:"elapsed_s"`
	Satellites     []SatelliteDefinition `json:"satellites"`
	Links          []InterSatelliteLink  `json:"links"`
	PoleCrossings  int                   `json:"pole_crossings"`
}

// LinksUp counts the links currently up.
func (s *Snapshot) LinksUp() int {
	n := 0
	for _, l := range s.Links {
		if l.IsUp {
			n++
		}
	}
	return n
}
