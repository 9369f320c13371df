package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Collider is the capability a movable entity exposes to the index. The
// index never tracks the entity live: bounds and category bits are read once
// per record sync and cached.
type Collider interface {
	// The entity's current axis-aligned bounds.
	Bounds() Rect

	// The category the entity belongs to.
	Layer() uint32

	// The categories the entity tests against.
	Mask() uint32
}

// Record wraps one collider inside the index. It keeps the set of leaf nodes
// currently holding it so that removal costs O(number of parents) instead of
// a tree search.
type Record struct {
	collider Collider

	bounds Rect
	layer  uint32
	mask   uint32

	parents map[*Node]struct{}

	// Transient traversal marker. Only meaningful while a single query,
	// count or merge pass is walking the tree.
	visited bool

	lastPos Vec2
}

// NewRecord wraps a collider, snapshotting its bounds and category bits.
func NewRecord(c Collider) *Record {
	bounds := c.Bounds()

	return &Record{
		collider: c,
		bounds:   bounds,
		layer:    c.Layer(),
		mask:     c.Mask(),
		parents:  make(map[*Node]struct{}),
		lastPos:  bounds.Min,
	}
}

// Collider returns the wrapped entity.
func (r *Record) Collider() Collider {
	return r.collider
}

// Bounds returns the cached bounds snapshot taken at the last Sync.
func (r *Record) Bounds() Rect {
	return r.bounds
}

func (r *Record) Layer() uint32 {
	return r.layer
}

func (r *Record) Mask() uint32 {
	return r.mask
}

// Visited reports the transient traversal marker.
func (r *Record) Visited() bool {
	return r.visited
}

// SetVisited sets the transient traversal marker.
func (r *Record) SetVisited(v bool) {
	r.visited = v
}

// Moved reports whether the collider's live bounds origin differs from the
// position cached at the last Sync, letting a caller decide cheaply whether
// re-insertion is warranted this frame.
func (r *Record) Moved() bool {
	return !r.collider.Bounds().Min.Equal(r.lastPos)
}

// Sync re-snapshots the collider's bounds and position. It must only be
// called while the record is detached from the tree.
func (r *Record) Sync() {
	r.bounds = r.collider.Bounds()
	r.lastPos = r.bounds.Min
}

// ParentCount returns the number of leaf nodes currently holding the record.
func (r *Record) ParentCount() int {
	return len(r.parents)
}

// RemoveFromAllParents unregisters the record from every leaf currently
// holding it and clears its parent set. It is the required protocol before
// repositioning or discarding an entity.
func (r *Record) RemoveFromAllParents() error {
	for n := range r.parents {
		if err := n.Remove(r); err != nil {
			return errors.New("detaching record from parent node failed").Wrap(err)
		}
	}

	r.parents = make(map[*Node]struct{})
	return nil
}

func (r *Record) addParent(n *Node) {
	r.parents[n] = struct{}{}
}

func (r *Record) removeParent(n *Node) {
	delete(r.parents, n)
}

// ResetVisited clears the traversal marker on the given records. Callers
// holding the result of a query pass use it to restore the tree before
// issuing an independent query that must observe every record again.
func ResetVisited(records []*Record) {
	for _, r := range records {
		r.visited = false
	}
}
