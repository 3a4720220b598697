package core

import (
	"fmt"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

type linkPair struct {
	a, b int
	kind model.LinkKind
}

// Topology decides which satellite pairs are linked and annotates each
// link with its length, latency and visibility.
//
// Each plane is a ring: consecutive slots are linked and the last slot
// closes back to the first. Neighbouring planes link the satellites in
// the same slot. The first and last planes are not linked (the seam of a
// polar constellation, where neighbours travel in opposite directions).
type Topology struct {
	// MaxRangeKm disables links longer than this; 0 means unlimited.
	MaxRangeKm float64

	pairs []linkPair
}

// NewTopology precomputes the link pairs of the constellation shape.
func NewTopology(planes, perPlane int, maxRangeKm float64) (*Topology, error) {
	if err := validateShape(planes, perPlane); err != nil {
		return nil, err
	}
	if !finite(maxRangeKm) || maxRangeKm < 0 {
		return nil, configErr("maxLinkRangeKm", maxRangeKm, "must be finite and non-negative")
	}

	idx := func(plane, slot int) int { return (plane-1)*perPlane + slot }
	var pairs []linkPair
	for p := 1; p <= planes; p++ {
		for s := 1; s < perPlane; s++ {
			pairs = append(pairs, linkPair{a: idx(p, s), b: idx(p, s+1), kind: model.LinkKindIntraPlane})
		}
		// a two-satellite ring would duplicate the link above
		if perPlane > 2 {
			pairs = append(pairs, linkPair{a: idx(p, 1), b: idx(p, perPlane), kind: model.LinkKindIntraPlane})
		}
		if p < planes {
			for s := 1; s <= perPlane; s++ {
				pairs = append(pairs, linkPair{a: idx(p, s), b: idx(p+1, s), kind: model.LinkKindInterPlane})
			}
		}
	}
	return &Topology{MaxRangeKm: maxRangeKm, pairs: pairs}, nil
}

// LinkCount returns the number of links Evaluate produces.
func (t *Topology) LinkCount() int { return len(t.pairs) }

// Evaluate builds the links for the given positions, indexed by satellite
// index minus one.
func (t *Topology) Evaluate(positions []model.GeoPosition) ([]model.InterSatelliteLink, error) {
	links := make([]model.InterSatelliteLink, 0, len(t.pairs))
	for _, p := range t.pairs {
		if p.b > len(positions) {
			return nil, fmt.Errorf("link %s: no position for satellite %d", model.LinkID(p.a, p.b), p.b)
		}
		link, err := t.evaluatePair(p, positions[p.a-1], positions[p.b-1])
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, nil
}

func (t *Topology) evaluatePair(p linkPair, a, b model.GeoPosition) (model.InterSatelliteLink, error) {
	dist, err := Distance(a, b)
	if err != nil {
		return model.InterSatelliteLink{}, fmt.Errorf("link %s: %w", model.LinkID(p.a, p.b), err)
	}
	up := HasLineOfSight(ToECEF(a), ToECEF(b))
	if t.MaxRangeKm > 0 && dist > t.MaxRangeKm {
		up = false
	}
	return model.InterSatelliteLink{
		ID:         model.LinkID(p.a, p.b),
		A:          p.a,
		B:          p.b,
		Kind:       p.kind,
		DistanceKm: dist,
		LatencyMs:  dist / SpeedOfLightKmPerSec * 1000,
		IsUp:       up,
	}, nil
}
