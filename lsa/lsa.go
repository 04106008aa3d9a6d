// Package lsa implements link-state advertisement origination and
// dissemination (spec §4.7): each node floods its own neighbor list once,
// merges received advertisements into the topology graph, and forwards
// each distinct origin's advertisement at most once per ingress port.
package lsa

import (
	"github.com/rs/zerolog"

	"github.com/relaymesh/mixnet/porttable"
	"github.com/relaymesh/mixnet/topology"
	"github.com/relaymesh/mixnet/wire"
)

// Engine tracks which origins have already been seen and whether this
// node has originated its own advertisement yet.
type Engine struct {
	self       uint16
	neighbors  []uint16
	ports      *porttable.Table
	graph      *topology.Graph
	seen       map[uint16]bool
	originated bool
	log        zerolog.Logger
}

// New constructs an LSA Engine. neighbors is this node's own neighbor
// list, advertised verbatim when this node originates.
func New(self uint16, neighbors []uint16, ports *porttable.Table, graph *topology.Graph, log zerolog.Logger) *Engine {
	return &Engine{
		self:      self,
		neighbors: append([]uint16(nil), neighbors...),
		ports:     ports,
		graph:     graph,
		seen:      make(map[uint16]bool),
		log:       log.With().Str("component", "lsa").Logger(),
	}
}

// Originated reports whether this node has already originated its own
// advertisement.
func (e *Engine) Originated() bool {
	return e.originated
}

// Originate marks this node's own advertisement as sent and returns the
// payload plus every currently-open port to emit it on (spec §4.7: "A
// node originates to every open port").
func (e *Engine) Originate() (wire.LSAPayload, []int) {
	e.originated = true
	e.seen[e.self] = true
	payload := wire.LSAPayload{Origin: e.self, Neighbors: append([]uint16(nil), e.neighbors...)}
	ports := make([]int, 0, e.ports.NumPorts())
	for i := 0; i < e.ports.NumPorts(); i++ {
		if e.ports.IsOpen(i) {
			ports = append(ports, i)
		}
	}
	return payload, ports
}

// Decision describes the side effects of Receive.
type Decision struct {
	// RouteChanged is true if the topology graph changed and routes must
	// be recomputed.
	RouteChanged bool
	// OriginateNow is true if this node must now originate its own
	// advertisement (first accepted LSA, spec §4.7 rule b).
	OriginateNow bool
	// Forward is true if the frame should be re-emitted verbatim (with
	// src_address rewritten to this node) on ForwardPorts.
	Forward      bool
	ForwardPorts []int
}

// Receive applies spec §4.7's reception rules to an LSA arriving on
// fromPort.
func (e *Engine) Receive(fromPort int, p wire.LSAPayload) Decision {
	changed := e.graph.AddNeighbors(p.Origin, p.Neighbors)
	if changed {
		e.graph.Recompute(e.self)
	}

	d := Decision{RouteChanged: changed}
	if !e.originated {
		d.OriginateNow = true
	}

	if e.seen[p.Origin] {
		return d
	}
	e.seen[p.Origin] = true

	d.Forward = true
	d.ForwardPorts = make([]int, 0, e.ports.NumPorts())
	for i := 0; i < e.ports.NumPorts(); i++ {
		if i == fromPort {
			continue
		}
		if e.ports.IsOpen(i) {
			d.ForwardPorts = append(d.ForwardPorts, i)
		}
	}
	return d
}
