package layout

import "storygraph/domain/graph"

// PinStore is the side table of explicitly pinned node positions. It has
// a longer lifetime than any single Simulation: entries survive
// re-layouts triggered by filter or scope changes and are only cleared by
// an explicit release-all (or a project switch). Simulations seed from it
// but never own it.
type PinStore struct {
	pins map[string]graph.Position
}

// NewPinStore creates an empty pin store.
func NewPinStore() *PinStore {
	return &PinStore{pins: make(map[string]graph.Position)}
}

// Pin commits a node's position.
func (p *PinStore) Pin(id string, pos graph.Position) {
	if id == "" || !pos.Valid() {
		return
	}
	p.pins[id] = pos
}

// Unpin removes a node's entry.
func (p *PinStore) Unpin(id string) {
	delete(p.pins, id)
}

// Get returns a node's pinned position, if any.
func (p *PinStore) Get(id string) (graph.Position, bool) {
	pos, ok := p.pins[id]
	return pos, ok
}

// Pinned reports whether a node has a committed pin.
func (p *PinStore) Pinned(id string) bool {
	_, ok := p.pins[id]
	return ok
}

// Len returns the number of pinned nodes.
func (p *PinStore) Len() int {
	return len(p.pins)
}

// Snapshot returns a copy of all entries, usable as simulation seeds.
func (p *PinStore) Snapshot() map[string]graph.Position {
	out := make(map[string]graph.Position, len(p.pins))
	for id, pos := range p.pins {
		out[id] = pos
	}
	return out
}

// Clear removes all entries. Used by release-all-and-relayout and on
// project switches.
func (p *PinStore) Clear() {
	p.pins = make(map[string]graph.Position)
}
