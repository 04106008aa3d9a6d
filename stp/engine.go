// Package stp implements the spanning-tree election state machine (spec
// §4.5): root/parent/children selection, periodic root hellos, and
// re-election on root-hello timeout.
package stp

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/relaymesh/mixnet/porttable"
	"github.com/relaymesh/mixnet/wire"
)

// Belief is the STP route record of spec §3: the three fields a node
// believes about its path to the root. path_length == 0 iff root == self
// iff next_hop == self.
type Belief struct {
	Root       uint16
	PathLength uint16
	NextHop    uint16
}

// IsRoot reports whether self believes itself to be the root.
func (b Belief) IsRoot(self uint16) bool {
	return b.Root == self
}

// Decision describes the side effects a caller must carry out after
// Receive, Init, or CheckReelection: which open ports (excluding any informant)
// should be sent the current belief, and whether this event counts as
// evidence the root subtree is alive (resetting the re-election clock).
type Decision struct {
	BroadcastPorts []int
	KeepAlive      bool
}

// Engine is one node's spanning-tree participant. It owns the belief
// state, the port table it drives, and the two STP timers (spec §5).
type Engine struct {
	self  uint16
	ports *porttable.Table
	log   zerolog.Logger

	belief Belief

	rootHelloInterval  time.Duration
	reelectionInterval time.Duration
	lastRootHelloSent  time.Time
	lastHelloFromRoot  time.Time
}

// New constructs an Engine that initially believes itself root, per spec
// §4.5 initialization: all neighbor ports begin open (porttable.New
// already guarantees this).
func New(self uint16, ports *porttable.Table, rootHelloInterval, reelectionInterval time.Duration, log zerolog.Logger) *Engine {
	return &Engine{
		self:               self,
		ports:              ports,
		log:                log.With().Str("component", "stp").Logger(),
		belief:             Belief{Root: self, PathLength: 0, NextHop: self},
		rootHelloInterval:  rootHelloInterval,
		reelectionInterval: reelectionInterval,
	}
}

// Belief returns the current root belief.
func (e *Engine) Belief() Belief {
	return e.belief
}

// IsRoot reports whether this node currently believes itself root.
func (e *Engine) IsRoot() bool {
	return e.belief.IsRoot(e.self)
}

// Payload returns the wire payload for the current belief, as sent from
// this node (origin is always self on a freshly-originated hello).
func (e *Engine) Payload() wire.STPPayload {
	return wire.STPPayload{Root: e.belief.Root, PathLength: e.belief.PathLength, Origin: e.self}
}

// Init seeds the root-hello timer and, since every node starts believing
// itself root, returns the initial broadcast (spec §4.5: "If self is
// (trivially) root, emit one hello to every neighbor").
func (e *Engine) Init(now time.Time) Decision {
	e.lastRootHelloSent = now
	e.lastHelloFromRoot = now
	return Decision{BroadcastPorts: e.allNeighborPorts()}
}

func (e *Engine) allNeighborPorts() []int {
	ports := make([]int, e.ports.NumPorts())
	for i := range ports {
		ports[i] = i
	}
	return ports
}

// MaybeSendRootHello implements spec §4.1 step 1: only the believed root
// periodically re-broadcasts its belief, to every neighbor regardless of
// port state.
func (e *Engine) MaybeSendRootHello(now time.Time) (ports []int, fire bool) {
	if !e.IsRoot() {
		return nil, false
	}
	if now.Sub(e.lastRootHelloSent) < e.rootHelloInterval {
		return nil, false
	}
	e.lastRootHelloSent = now
	return e.allNeighborPorts(), true
}

// CheckReelection implements spec §4.5 re-election: if the believed root
// hasn't been heard from within reelectionInterval and self is not root,
// drop all non-self belief and broadcast a fresh hello on every port.
func (e *Engine) CheckReelection(now time.Time) Decision {
	if e.IsRoot() {
		return Decision{}
	}
	if now.Sub(e.lastHelloFromRoot) < e.reelectionInterval {
		return Decision{}
	}
	e.log.Info().Uint16("old_root", e.belief.Root).Msg("re-election: root hello timed out")
	e.belief = Belief{Root: e.self, PathLength: 0, NextHop: e.self}
	e.ports.ClearParent()
	e.ports.ActivateAll()
	e.lastRootHelloSent = now
	e.lastHelloFromRoot = now
	return Decision{BroadcastPorts: e.allNeighborPorts()}
}

// Receive applies the STP reception rules of spec §4.5 to a frame that
// arrived on fromPort, returning which ports (if any) need the updated
// belief rebroadcast and whether this counts as a keep-alive.
func (e *Engine) Receive(now time.Time, fromPort int, p wire.STPPayload) Decision {
	rootBefore := e.belief.Root
	keepAlive := p.Root <= rootBefore // evidence about our own root or a better one; never a downstream child's worse root
	changed := false

	switch {
	case p.Root < e.belief.Root:
		// Case 1: adopt the advertiser's root outright.
		e.belief = Belief{Root: p.Root, PathLength: p.PathLength + 1, NextHop: p.Origin}
		e.ports.SetParent(p.Origin, p.PathLength)
		e.ports.Set(fromPort, porttable.Open)
		changed = true

	case p.Root == e.belief.Root:
		parent, hasParent := e.ports.Parent()
		parentLen, _ := e.ports.ParentPathLength()

		switch {
		case p.PathLength+1 < e.belief.PathLength:
			// Case 2, shorter: a genuinely better path to the same root.
			e.belief.PathLength = p.PathLength + 1
			e.belief.NextHop = p.Origin
			e.ports.SetParent(p.Origin, p.PathLength)
			e.ports.Set(fromPort, porttable.Open)
			changed = true

		case hasParent && p.PathLength == parentLen:
			// Case 2, tie: a second peer offers an equal-length path.
			if p.Origin < parent {
				e.ports.SetByAddress(parent, porttable.Blocked)
				e.ports.Set(fromPort, porttable.Open)
				e.belief.NextHop = p.Origin
				e.ports.SetParent(p.Origin, p.PathLength)
				changed = true
			} else if p.Origin > parent {
				e.ports.Set(fromPort, porttable.Blocked)
			}
		}

		// Additionally: an advertiser at our own path length is a peer,
		// never parent or child.
		if p.PathLength == e.belief.PathLength {
			e.ports.Set(fromPort, porttable.Blocked)
		}

	default: // p.Root > e.belief.Root
		// Case 3: the advertiser is downstream; treat it as a child.
		e.ports.Set(fromPort, porttable.Open)
	}

	decision := Decision{KeepAlive: keepAlive}
	if keepAlive {
		e.lastHelloFromRoot = now
	}
	if changed {
		decision.BroadcastPorts = e.openPortsExcept(fromPort)
	}
	return decision
}

// openPortsExcept returns every currently open port other than except,
// implementing "temporarily block the receive port, broadcast, unblock"
// (spec §4.5) without mutating port state for ports other than the
// temporary exclusion.
func (e *Engine) openPortsExcept(except int) []int {
	ports := make([]int, 0, e.ports.NumPorts())
	for i := 0; i < e.ports.NumPorts(); i++ {
		if i == except {
			continue
		}
		if e.ports.IsOpen(i) {
			ports = append(ports, i)
		}
	}
	return ports
}
