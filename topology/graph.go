// Package topology maintains the node's perception of the full mixnet
// graph (spec §4.3) and computes shortest hop lists via breadth-first
// search, plus optional randomized detour paths.
package topology

// vertex is one peer's adjacency entry: its declared neighbor set and the
// cached hop list toward it from the owning node. Adjacency is stored as
// an ordered list of addresses, never as direct cross-pointers, so the
// graph's inherent cycles never become Go reference cycles (spec §9).
type vertex struct {
	neighbors []uint16
	seen      map[uint16]bool
	hops      []uint16
	hasHops   bool
}

// Graph is an undirected (edges directed-on-arrival, read as undirected)
// adjacency map of mixnet peers.
type Graph struct {
	vertices map[uint16]*vertex
	order    []uint16 // insertion order, for deterministic iteration in tests/detours
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{vertices: make(map[uint16]*vertex)}
}

func (g *Graph) ensure(addr uint16) *vertex {
	v, ok := g.vertices[addr]
	if !ok {
		v = &vertex{seen: make(map[uint16]bool)}
		g.vertices[addr] = v
		g.order = append(g.order, addr)
	}
	return v
}

// Seed initializes this node's own vertex entry from its startup
// configuration (spec §3 "Topology graph" invariant: "a vertex's own
// entry is seeded from the node's configuration at startup").
func (g *Graph) Seed(self uint16, neighbors []uint16) {
	g.AddNeighbors(self, neighbors)
}

// AddNeighbors merges source's declared neighbor set into the graph.
// Insertion is idempotent: re-adding an already-present edge is a no-op.
// Returns true iff at least one new edge or vertex was introduced.
func (g *Graph) AddNeighbors(source uint16, neighbors []uint16) bool {
	_, known := g.vertices[source]
	v := g.ensure(source)
	changed := !known
	for _, n := range neighbors {
		g.ensure(n) // a newly-mentioned peer becomes a vertex even with no edges of its own yet
		if !v.seen[n] {
			v.seen[n] = true
			v.neighbors = append(v.neighbors, n)
			changed = true
		}
	}
	if changed {
		v.hasHops = false
	}
	return changed
}

// Neighbors returns addr's declared neighbor set in insertion order, or
// nil if addr is not in the graph.
func (g *Graph) Neighbors(addr uint16) []uint16 {
	v, ok := g.vertices[addr]
	if !ok {
		return nil
	}
	return append([]uint16(nil), v.neighbors...)
}

// HasVertex reports whether addr has ever been seen (as a source or as a
// declared neighbor).
func (g *Graph) HasVertex(addr uint16) bool {
	_, ok := g.vertices[addr]
	return ok
}

// Vertices returns every known address in first-seen order.
func (g *Graph) Vertices() []uint16 {
	return append([]uint16(nil), g.order...)
}

// HopList returns the cached shortest hop list toward dst (excluding dst
// itself), and whether one has been computed and dst is reachable. An
// empty, present hop list means dst is a direct neighbor.
func (g *Graph) HopList(dst uint16) ([]uint16, bool) {
	v, ok := g.vertices[dst]
	if !ok || !v.hasHops {
		return nil, false
	}
	return append([]uint16(nil), v.hops...), true
}

func (g *Graph) setHops(addr uint16, hops []uint16) {
	v := g.ensure(addr)
	v.hops = hops
	v.hasHops = true
}
