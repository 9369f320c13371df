package models

import (
	"sync"

	"github.com/aukilabs/raido/quadtree"
)

// Entity is a movable, axis-bounded object registered by a participant. Its
// position is the only mutable part and is guarded for concurrent reads by
// the realtime layer; the index itself only sees the snapshot cached in its
// record.
type Entity struct {
	ID            uint32
	ParticipantID uint32

	// Axis-aligned size, fixed at registration.
	Size quadtree.Vec2

	// The category the entity belongs to.
	LayerBits uint32

	// The categories the entity tests against.
	MaskBits uint32

	mutex sync.RWMutex
	pos   quadtree.Vec2
}

func (e *Entity) SetPosition(v quadtree.Vec2) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.pos = v
}

func (e *Entity) Position() quadtree.Vec2 {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return e.pos
}

// Bounds returns the entity's current bounds, with the position as origin.
func (e *Entity) Bounds() quadtree.Rect {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return quadtree.NewRect(e.pos.X, e.pos.Y, e.Size.X, e.Size.Y)
}

func (e *Entity) Layer() uint32 {
	return e.LayerBits
}

func (e *Entity) Mask() uint32 {
	return e.MaskBits
}
