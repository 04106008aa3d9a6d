package topology

import "math/rand/v2"

// candidates returns every graph vertex eligible as a random-routing
// detour for a source-routed packet from origin to dst whose shortest hop
// list is shortest (spec §4.3): present in the graph, not the origin, not
// dst, not a direct neighbor of the origin, not already on shortest, and
// in the same origin-rooted BFS subtree as dst (its own hop list's first
// hop equals shortest's first hop). That last constraint is what makes
// the reverse-walk in RandomDetour always able to re-meet shortest: two
// vertices outside that subtree share no ancestor except origin itself,
// which is excluded from both hop lists, so the walk would otherwise run
// off the end without reconnecting. If dst is a direct neighbor of
// origin (shortest is empty), no vertex qualifies.
func (g *Graph) candidates(origin, dst uint16, shortest []uint16) []uint16 {
	if len(shortest) == 0 {
		return nil
	}
	firstHop := shortest[0]

	onShortest := make(map[uint16]bool, len(shortest))
	for _, h := range shortest {
		onShortest[h] = true
	}
	directNeighbor := make(map[uint16]bool)
	for _, n := range g.Neighbors(origin) {
		directNeighbor[n] = true
	}

	out := make([]uint16, 0, len(g.order))
	for _, addr := range g.order {
		if addr == origin || addr == dst || directNeighbor[addr] || onShortest[addr] {
			continue
		}
		path, ok := g.HopList(addr)
		if !ok || len(path) == 0 || path[0] != firstHop {
			continue
		}
		out = append(out, addr)
	}
	return out
}

// RandomDetour builds a randomized route from origin to dst that is not
// the shortest path, per spec §4.3. shortest is the shortest hop list to
// dst (excluding both endpoints), as returned by HopList. If no eligible
// detour vertex exists, RandomDetour falls back to shortest unchanged.
//
// Duplicate-address detection is relaxed for the returned route, per spec.
func (g *Graph) RandomDetour(rng *rand.Rand, origin, dst uint16, shortest []uint16) []uint16 {
	candidates := g.candidates(origin, dst, shortest)
	if len(candidates) == 0 {
		return append([]uint16(nil), shortest...)
	}

	detour := candidates[rng.IntN(len(candidates))]
	pathToDetour, _ := g.HopList(detour)

	forward := append(append([]uint16(nil), pathToDetour...), detour)

	// Reverse-walk back from the detour vertex toward origin until a node
	// already on the shortest path is re-encountered.
	backward := make([]uint16, 0, len(pathToDetour))
	meetIdx := -1
	for i := len(pathToDetour) - 1; i >= 0; i-- {
		node := pathToDetour[i]
		backward = append(backward, node)
		if idx := indexOf(shortest, node); idx >= 0 {
			meetIdx = idx
			break
		}
	}

	route := append(forward, backward...)
	if meetIdx >= 0 {
		route = append(route, shortest[meetIdx+1:]...)
	} else {
		route = append(route, shortest...)
	}
	return route
}

func indexOf(addrs []uint16, target uint16) int {
	for i, a := range addrs {
		if a == target {
			return i
		}
	}
	return -1
}
