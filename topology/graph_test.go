package topology

import (
	"math/rand/v2"
	"reflect"
	"testing"
)

func TestAddNeighbors_idempotent(t *testing.T) {
	g := New()
	if changed := g.AddNeighbors(1, []uint16{2, 3}); !changed {
		t.Fatalf("first AddNeighbors() expected change")
	}
	if changed := g.AddNeighbors(1, []uint16{2, 3}); changed {
		t.Errorf("re-adding the same edges expected no change")
	}
	if changed := g.AddNeighbors(1, []uint16{2, 3, 4}); !changed {
		t.Errorf("adding a new edge expected change")
	}
}

func TestRecompute_squareTopology(t *testing.T) {
	// Four-node square {1,2,3,4} with edges {1-2,2-3,3-4,4-1} (spec §8 scenario 5).
	g := New()
	g.AddNeighbors(1, []uint16{2, 4})
	g.AddNeighbors(2, []uint16{1, 3})
	g.AddNeighbors(3, []uint16{2, 4})
	g.AddNeighbors(4, []uint16{1, 3})

	g.Recompute(1)

	tests := []struct {
		dst  uint16
		want []uint16
	}{
		{dst: 2, want: nil},
		{dst: 4, want: nil},
		{dst: 3, want: []uint16{2}}, // tie broken by adjacency-list insertion order: 2 before 4
	}
	for _, tt := range tests {
		got, ok := g.HopList(tt.dst)
		if !ok {
			t.Fatalf("HopList(%d) not found", tt.dst)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("HopList(%d) = %v, want %v", tt.dst, got, tt.want)
		}
	}
}

func TestRecompute_lineTopology(t *testing.T) {
	// Line {1,2,3,4}.
	g := New()
	g.AddNeighbors(1, []uint16{2})
	g.AddNeighbors(2, []uint16{1, 3})
	g.AddNeighbors(3, []uint16{2, 4})
	g.AddNeighbors(4, []uint16{3})

	g.Recompute(1)

	got, ok := g.HopList(4)
	if !ok {
		t.Fatalf("HopList(4) not found")
	}
	want := []uint16{2, 3}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("HopList(4) = %v, want %v", got, want)
	}
}

func TestHopList_unreachable(t *testing.T) {
	g := New()
	g.AddNeighbors(1, []uint16{2})
	g.Recompute(1)

	if _, ok := g.HopList(99); ok {
		t.Errorf("HopList(99) expected not found for unreachable destination")
	}
}

func TestRandomDetour_fallsBackWhenNoCandidate(t *testing.T) {
	// Triangle: every vertex is either origin, dst, or a direct neighbor.
	g := New()
	g.AddNeighbors(1, []uint16{2, 3})
	g.AddNeighbors(2, []uint16{1, 3})
	g.AddNeighbors(3, []uint16{1, 2})
	g.Recompute(1)

	shortest, _ := g.HopList(3)
	rng := rand.New(rand.NewPCG(1, 2))
	got := g.RandomDetour(rng, 1, 3, shortest)
	if !reflect.DeepEqual(got, shortest) {
		t.Errorf("RandomDetour() = %v, want fallback %v", got, shortest)
	}
}

func TestRandomDetour_squareUsesNonNeighborVertex(t *testing.T) {
	// Square {1,2,3,4}: from 1 to 3 there is no detour vertex available
	// since 2 and 4 are both direct neighbors of 1 and on/adjacent to the
	// shortest path. A 5th node hanging off 3 gives RandomDetour room to
	// choose a genuine detour.
	g := New()
	g.AddNeighbors(1, []uint16{2, 4})
	g.AddNeighbors(2, []uint16{1, 3})
	g.AddNeighbors(3, []uint16{2, 4, 5})
	g.AddNeighbors(4, []uint16{1, 3})
	g.AddNeighbors(5, []uint16{3})
	g.Recompute(1)

	shortest, _ := g.HopList(3) // [2]
	rng := rand.New(rand.NewPCG(1, 2))
	got := g.RandomDetour(rng, 1, 3, shortest)
	if reflect.DeepEqual(got, shortest) {
		t.Errorf("RandomDetour() = %v, expected a route different from the shortest path", got)
	}
	if got[len(got)-1] == 3 {
		t.Errorf("RandomDetour() route must not end with the destination itself, got %v", got)
	}
}

func TestRandomDetour_excludesOtherBranchVertex(t *testing.T) {
	// 1's neighbors are 2 and 3. dst=4 hangs off 2 (shortest=[2]); 5 and 6
	// hang off 3, an entirely separate branch from 1. 6 must not be
	// chosen as a detour: its only common ancestor with 4 is origin 1
	// itself, which never appears in either hop list, so the reverse-walk
	// in RandomDetour could never reconnect to the shortest path.
	g := New()
	g.AddNeighbors(1, []uint16{2, 3})
	g.AddNeighbors(2, []uint16{1, 4})
	g.AddNeighbors(3, []uint16{1, 5})
	g.AddNeighbors(4, []uint16{2})
	g.AddNeighbors(5, []uint16{3, 6})
	g.AddNeighbors(6, []uint16{5})
	g.Recompute(1)

	shortest, _ := g.HopList(4) // [2]
	rng := rand.New(rand.NewPCG(1, 2))
	got := g.RandomDetour(rng, 1, 4, shortest)
	if !reflect.DeepEqual(got, shortest) {
		t.Errorf("RandomDetour() = %v, want fallback %v (no detour vertex shares 4's subtree)", got, shortest)
	}
}

func TestRandomDetour_routeIsWalkable(t *testing.T) {
	// Every consecutive pair in the returned route (and the final hop into
	// dst) must be a real graph edge, or a node along the route has no
	// port to forward on.
	g := New()
	g.AddNeighbors(1, []uint16{2, 4})
	g.AddNeighbors(2, []uint16{1, 3})
	g.AddNeighbors(3, []uint16{2, 4, 5})
	g.AddNeighbors(4, []uint16{1, 3})
	g.AddNeighbors(5, []uint16{3})
	g.Recompute(1)

	shortest, _ := g.HopList(3)
	rng := rand.New(rand.NewPCG(1, 2))
	route := g.RandomDetour(rng, 1, 3, shortest)

	full := append(append([]uint16{1}, route...), 3)
	for i := 0; i+1 < len(full); i++ {
		a, b := full[i], full[i+1]
		neighbor := false
		for _, n := range g.Neighbors(a) {
			if n == b {
				neighbor = true
				break
			}
		}
		if !neighbor {
			t.Fatalf("route %v has no edge between hop %d (%d) and hop %d (%d)", route, i, a, i+1, b)
		}
	}
}
