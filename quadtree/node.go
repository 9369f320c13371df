package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// ErrTypeNotALeaf tags the error returned when Remove is called on an
	// internal node, which means the caller holds a stale parent reference.
	ErrTypeNotALeaf = "quadtree-remove-on-internal-node"

	defaultCapacity = 4
	defaultMaxDepth = 8
)

// Node is one cell of the spatial partition. A node is either a leaf holding
// records or an internal node with exactly four children.
//
// Nodes are not safe for concurrent use: queries mutate traversal markers
// and the cached layer union in place.
type Node struct {
	bounds   Rect
	depth    int
	maxDepth int
	capacity int

	// nil for a leaf, length 4 otherwise.
	children []*Node

	// Leaf contents. Non-empty only when the node is a leaf.
	records map[*Record]struct{}

	// Union of the layer bits of the leaf contents, recomputed on every
	// content mutation. Used to prune whole leaves during record queries.
	layers uint32
}

// NewNode returns a root node covering the given world bounds. Leaves split
// once they hold more than capacity records, until maxDepth levels exist.
func NewNode(bounds Rect, capacity, maxDepth int) *Node {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}

	return &Node{
		bounds:   bounds,
		maxDepth: maxDepth,
		capacity: capacity,
		records:  make(map[*Record]struct{}),
	}
}

// Bounds returns the region covered by the node.
func (n *Node) Bounds() Rect {
	return n.bounds
}

// Depth returns the node's depth, 0 for the root.
func (n *Node) Depth() int {
	return n.depth
}

// IsLeaf reports whether the node holds records directly.
func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// Occupancy returns the number of records held directly by the node. Always
// 0 for an internal node.
func (n *Node) Occupancy() int {
	return len(n.records)
}

// Layers returns the cached union of the layer bits of the leaf contents.
func (n *Node) Layers() uint32 {
	return n.layers
}

// Insert places the record into every leaf of the subtree whose bounds
// intersect the record's bounds. A record that intersects none of them is
// dropped, which is the expected outcome for a fixed-extent world. A full
// leaf splits first, unless the depth cap forbids it, in which case the leaf
// grows beyond capacity.
func (n *Node) Insert(r *Record) {
	if !n.bounds.Intersects(r.bounds) {
		return
	}

	if n.IsLeaf() && len(n.records) >= n.capacity {
		n.Split()
	}

	if n.IsLeaf() {
		n.records[r] = struct{}{}
		r.addParent(n)
		n.layers |= r.layer
		return
	}

	for _, c := range n.children {
		c.Insert(r)
	}
}

// Split partitions the node into four equal quadrants and migrates its
// contents into them. It is a no-op when another level would exceed the
// depth cap.
func (n *Node) Split() {
	if n.depth+1 >= n.maxDepth {
		return
	}

	n.children = make([]*Node, 4)
	for i := range n.children {
		n.children[i] = &Node{
			bounds:   n.bounds.Quadrant(i),
			depth:    n.depth + 1,
			maxDepth: n.maxDepth,
			capacity: n.capacity,
			records:  make(map[*Record]struct{}),
		}
	}

	for r := range n.records {
		r.removeParent(n)
		for _, c := range n.children {
			c.Insert(r)
		}
	}

	n.records = make(map[*Record]struct{})
	n.layers = 0
}

// Remove takes the record out of the node's contents and recomputes the
// cached layer union. It is only valid on a leaf: an internal node cannot
// hold records, so being asked to remove one means the caller's parent
// reference is stale.
//
// Remove does not edit the record's parent set; use
// Record.RemoveFromAllParents for the full detach protocol.
func (n *Node) Remove(r *Record) error {
	if !n.IsLeaf() {
		return errors.New("record removal requested on an internal node").
			WithType(ErrTypeNotALeaf).
			WithTag("depth", n.depth)
	}

	delete(n.records, r)

	n.layers = 0
	for rec := range n.records {
		n.layers |= rec.layer
	}

	return nil
}

// NumTargets counts the unique records in the subtree. A record held by
// several leaves is counted once, guarded by its traversal marker. Every
// marker met during the walk is cleared afterwards, including leftovers from
// an earlier query pass.
func (n *Node) NumTargets() int {
	var count int

	touched := n.walkUnique(func(r *Record) {
		count++
	})
	ResetVisited(touched)

	return count
}

// Shake simplifies the subtree bottom-up. An internal node whose unique
// descendant count dropped to zero becomes an empty leaf; one below capacity
// pulls its descendants up and becomes a populated leaf; otherwise the pass
// recurses into the children.
func (n *Node) Shake() {
	if n.IsLeaf() {
		return
	}

	count := n.NumTargets()

	if count == 0 {
		n.children = nil
		return
	}

	if count < n.capacity {
		merged := n.detachSubtree()
		n.children = nil

		for _, r := range merged {
			n.records[r] = struct{}{}
			r.addParent(n)
			n.layers |= r.layer
		}
		return
	}

	for _, c := range n.children {
		c.Shake()
	}
}

// detachSubtree collects the unique records of the subtree and unregisters
// them from every leaf below n. Parent references outside the subtree are
// untouched: a record straddling the subtree boundary keeps its other homes.
func (n *Node) detachSubtree() []*Record {
	var merged []*Record

	queue := []*Node{n}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if !node.IsLeaf() {
			queue = append(queue, node.children...)
			continue
		}

		for r := range node.records {
			if !r.visited {
				r.visited = true
				merged = append(merged, r)
			}
			r.removeParent(node)
		}
		node.records = make(map[*Record]struct{})
		node.layers = 0
	}

	ResetVisited(merged)
	return merged
}

// walkUnique visits every unique record of the subtree breadth-first,
// marking each one on first sight. It returns every record encountered so
// the caller can clear the markers; records that were already marked before
// the walk are skipped by fn but still returned for clearing.
func (n *Node) walkUnique(fn func(*Record)) []*Record {
	var touched []*Record

	queue := []*Node{n}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if !node.IsLeaf() {
			queue = append(queue, node.children...)
			continue
		}

		for r := range node.records {
			if r.visited {
				touched = append(touched, r)
				continue
			}
			r.visited = true
			touched = append(touched, r)
			fn(r)
		}
	}

	return touched
}
