package core

import (
	"math"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

// Layout is a satellite's canonical starting state.
type Layout struct {
	Latitude  float64
	Longitude float64
	Direction model.Direction
}

// InitialPosition derives the starting latitude, longitude and direction of
// the satellite with the given 1-based index in a constellation of planes
// orbital planes holding perPlane satellites each.
//
// Satellite 1 sits nearest (90, -180). Satellites within a plane step
// latitude downwards; the next plane starts again near latitude 90 one
// longitude step further east. The last satellite sits nearest (-90, 180).
func InitialPosition(index, planes, perPlane int) (Layout, error) {
	if err := validateShape(planes, perPlane); err != nil {
		return Layout{}, err
	}
	if index < 1 || index > planes*perPlane {
		return Layout{}, configErr("index", index, "outside [1, planes*satellitesPerPlane]")
	}

	latStep := 180.0 / float64(perPlane+1)
	lonStep := 360.0 / float64(2*planes+1)
	i := index - 1

	lat := 90 - latStep - latStep*float64(i%perPlane)
	lon := -180 + lonStep + lonStep*float64(i/perPlane)

	dir := model.Southbound
	plane := int(math.Ceil(float64(index) / float64(2*planes)))
	if plane%2 == 1 {
		dir = model.Northbound
	}

	return Layout{Latitude: lat, Longitude: lon, Direction: dir}, nil
}

// PlaneOf returns the 1-based orbital plane holding the satellite index.
func PlaneOf(index, perPlane int) int {
	return (index-1)/perPlane + 1
}

// SlotOf returns the 1-based position of the satellite index within its plane.
func SlotOf(index, perPlane int) int {
	return (index-1)%perPlane + 1
}

func validateShape(planes, perPlane int) error {
	if perPlane < 1 {
		return configErr("satellitesPerPlane", perPlane, "must be at least 1")
	}
	if planes < 1 {
		return configErr("numberOfPlanes", planes, "must be at least 1")
	}
	return nil
}
