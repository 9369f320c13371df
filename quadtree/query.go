package quadtree

// Query returns every record in the subtree whose bounds intersect the given
// shape, without category filtering. Subtrees that do not intersect the
// shape are pruned. A record held by several leaves is reported once,
// guarded by its traversal marker.
//
// The markers of the reported records are left set: the caller must clear
// them, either with ResetVisited on the result or through a count or merge
// pass, before an independent query that must observe every record again.
func (n *Node) Query(shape Rect) []*Record {
	return n.query(shape, nil)
}

func (n *Node) query(shape Rect, hits []*Record) []*Record {
	if !n.bounds.Intersects(shape) {
		return hits
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			hits = c.query(shape, hits)
		}
		return hits
	}

	for r := range n.records {
		if r.visited {
			continue
		}
		if !r.bounds.Intersects(shape) {
			continue
		}
		r.visited = true
		hits = append(hits, r)
	}
	return hits
}

// QueryRecord returns every record whose bounds intersect the querier's
// bounds and whose layer bits are selected by the querier's mask. Beyond the
// bounds pruning of Query, whole leaves are skipped when their cached layer
// union shares no bit with the querier's mask.
//
// Marker hygiene is the same as Query: reported records stay marked until
// the caller clears them.
func (n *Node) QueryRecord(q *Record) []*Record {
	return n.queryRecord(q, nil)
}

func (n *Node) queryRecord(q *Record, hits []*Record) []*Record {
	if !n.bounds.Intersects(q.bounds) {
		return hits
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			hits = c.queryRecord(q, hits)
		}
		return hits
	}

	if q.mask&n.layers == 0 {
		return hits
	}

	for r := range n.records {
		if r.visited {
			continue
		}
		if q.mask&r.layer == 0 {
			continue
		}
		if !r.bounds.Intersects(q.bounds) {
			continue
		}
		r.visited = true
		hits = append(hits, r)
	}
	return hits
}

// NodeInfo is a read-only description of one node, for debug overlays.
type NodeInfo struct {
	Bounds  Rect
	Depth   int
	Leaf    bool
	Targets int
}

// Visit walks the subtree depth-first and yields every node's bounds and
// deduplicated occupant count. It carries no protocol state and leaves the
// tree as it found it.
func (n *Node) Visit(fn func(NodeInfo)) {
	fn(NodeInfo{
		Bounds:  n.bounds,
		Depth:   n.depth,
		Leaf:    n.IsLeaf(),
		Targets: n.NumTargets(),
	})

	for _, c := range n.children {
		c.Visit(fn)
	}
}
