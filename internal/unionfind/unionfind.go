// Package unionfind implements a generic disjoint-set forest with find-time
// path compression. It is the shared backbone of the type inferer's two
// parallel type universes (value-types and return-types); neither knows
// anything about types, only about merging the data two equivalent nodes
// carry.
package unionfind

// Id names a node in a UnionFind. Zero is a valid id (the first node put).
type Id uint32

type node[T any] struct {
	data   T
	parent Id
	isRoot bool
}

// UnionFind is a single-valued disjoint-set structure over a dense range of
// ids starting at 0. The zero value is ready to use.
type UnionFind[T any] struct {
	nodes []node[T]
}

// Put appends a new singleton set holding value and returns its id.
func (u *UnionFind[T]) Put(value T) Id {
	id := Id(len(u.nodes))
	u.nodes = append(u.nodes, node[T]{data: value, isRoot: true})
	return id
}

// Find returns the representative id of the set containing id, compressing
// the path from id to the root so that later lookups are O(1) amortised.
func (u *UnionFind[T]) Find(id Id) Id {
	root := id
	for !u.nodes[root].isRoot {
		root = u.nodes[root].parent
	}
	for !u.nodes[id].isRoot {
		next := u.nodes[id].parent
		u.nodes[id].parent = root
		id = next
	}
	return root
}

// At returns a pointer to the representative data for the set containing
// id. The pointer is only valid until the next Union call, which may
// relocate which node is root, or the next Put, which may reallocate the
// node storage.
func (u *UnionFind[T]) At(id Id) *T {
	return &u.nodes[u.Find(id)].data
}

// Union merges the sets containing a and b. If they were already the same
// set, it returns a pointer to the surviving data and ok=false (nothing to
// merge). Otherwise it detaches b's root, returns a pointer to the
// surviving (a's) root data and b's displaced data with ok=true, so the
// caller can combine the two values structurally.
func (u *UnionFind[T]) Union(a, b Id) (survivor *T, displaced T, ok bool) {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return &u.nodes[ra].data, displaced, false
	}
	u.nodes[rb].isRoot = false
	u.nodes[rb].parent = ra
	return &u.nodes[ra].data, u.nodes[rb].data, true
}
