package kb

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

var (
	ErrSatelliteExists   = errors.New("satellite already exists")
	ErrSatelliteNotFound = errors.New("satellite not found")
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventSatelliteUpdated EventType = iota
	EventLinksReplaced
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type      EventType
	Satellite model.SatelliteDefinition
	Links     []model.InterSatelliteLink
}

// KnowledgeBase is an in-memory, thread-safe store for the satellites of
// a constellation and the links between them.
type KnowledgeBase struct {
	mu sync.RWMutex

	satellites map[string]*model.SatelliteDefinition
	links      map[string]model.InterSatelliteLink

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		satellites: make(map[string]*model.SatelliteDefinition),
		links:      make(map[string]model.InterSatelliteLink),
		subs:       make(map[int]func(Event)),
	}
}

// AddSatellite adds a new satellite. It returns an error if the ID already exists.
func (kb *KnowledgeBase) AddSatellite(s model.SatelliteDefinition) error {
	if s.ID == "" {
		return fmt.Errorf("satellite %d: empty ID", s.Index)
	}
	kb.mu.Lock()
	defer kb.mu.Unlock()

	if _, exists := kb.satellites[s.ID]; exists {
		return fmt.Errorf("%w: %q", ErrSatelliteExists, s.ID)
	}
	kb.satellites[s.ID] = &s
	return nil
}

// GetSatellite returns a copy of the satellite with the given ID.
func (kb *KnowledgeBase) GetSatellite(id string) (model.SatelliteDefinition, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	s, ok := kb.satellites[id]
	if !ok {
		return model.SatelliteDefinition{}, false
	}
	return *s, true
}

// ListSatellites returns a snapshot of all satellites ordered by index.
func (kb *KnowledgeBase) ListSatellites() []model.SatelliteDefinition {
	kb.mu.RLock()
	res := make([]model.SatelliteDefinition, 0, len(kb.satellites))
	for _, s := range kb.satellites {
		res = append(res, *s)
	}
	kb.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Index < res[j].Index })
	return res
}

// UpdateSatellitePosition records a new position and notifies subscribers.
func (kb *KnowledgeBase) UpdateSatellitePosition(id string, pos model.GeoPosition, dir model.Direction, at float64) error {
	kb.mu.Lock()
	s, ok := kb.satellites[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSatelliteNotFound, id)
	}
	s.Position = pos
	s.Direction = dir
	s.LastUpdateTime = at
	event := Event{Type: EventSatelliteUpdated, Satellite: *s}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, sub := range subs {
		sub(event)
	}
	return nil
}

// ReplaceLinks swaps the full link set for the given one.
func (kb *KnowledgeBase) ReplaceLinks(links []model.InterSatelliteLink) {
	kb.mu.Lock()
	kb.links = make(map[string]model.InterSatelliteLink, len(links))
	for _, l := range links {
		kb.links[l.ID] = l
	}
	event := Event{Type: EventLinksReplaced, Links: append([]model.InterSatelliteLink(nil), links...)}
	subs := kb.subscribersLocked()
	kb.mu.Unlock()

	for _, sub := range subs {
		sub(event)
	}
}

// GetLink returns the link with the given ID.
func (kb *KnowledgeBase) GetLink(id string) (model.InterSatelliteLink, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	l, ok := kb.links[id]
	return l, ok
}

// ListLinks returns all links ordered by ID.
func (kb *KnowledgeBase) ListLinks() []model.InterSatelliteLink {
	kb.mu.RLock()
	res := make([]model.InterSatelliteLink, 0, len(kb.links))
	for _, l := range kb.links {
		res = append(res, l)
	}
	kb.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].A != res[j].A {
			return res[i].A < res[j].A
		}
		return res[i].B < res[j].B
	})
	return res
}

// LinksFor returns the links touching the satellite with the given index.
func (kb *KnowledgeBase) LinksFor(index int) []model.InterSatelliteLink {
	var out []model.InterSatelliteLink
	for _, l := range kb.ListLinks() {
		if l.A == index || l.B == index {
			out = append(out, l)
		}
	}
	return out
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

func (kb *KnowledgeBase) subscribersLocked() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, kb.subs[id])
	}
	return out
}
