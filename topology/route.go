package topology

// Recompute performs a breadth-first traversal from origin, writing the
// first-discovered predecessor chain into each reachable vertex's hop
// list (spec §4.3). Ties are broken by adjacency-list insertion order,
// which falls out naturally from processing a vertex's neighbors in the
// order AddNeighbors first saw them.
func (g *Graph) Recompute(origin uint16) {
	// Clear every cached hop list; unreachable vertices keep none.
	for _, addr := range g.order {
		g.vertices[addr].hasHops = false
		g.vertices[addr].hops = nil
	}
	if !g.HasVertex(origin) {
		return
	}

	visited := map[uint16]bool{origin: true}
	type queued struct {
		addr uint16
		path []uint16 // origin -> ... -> addr, excluding both endpoints
	}
	queue := []queued{{addr: origin, path: nil}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, next := range g.vertices[cur.addr].neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true

			var pathToNext []uint16
			if cur.addr != origin {
				pathToNext = append(append([]uint16(nil), cur.path...), cur.addr)
			}
			g.setHops(next, pathToNext)

			queue = append(queue, queued{addr: next, path: pathToNext})
		}
	}
}
