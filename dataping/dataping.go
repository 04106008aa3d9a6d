// Package dataping implements source-routed datagram delivery and RTT
// ping probing (spec §4.8, §4.9): both share the same routing header and
// hop-index forwarding mechanics, differing only in payload and in what
// happens at the destination.
package dataping

import (
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/relaymesh/mixnet/porttable"
	"github.com/relaymesh/mixnet/topology"
	"github.com/relaymesh/mixnet/wire"
)

// ErrNoRoute is returned when no hop list exists, or no port matches the
// next hop, for a packet this node is originating or forwarding.
type ErrNoRoute struct {
	Destination uint16
}

func (e ErrNoRoute) Error() string {
	return fmt.Sprintf("no route to destination %d", e.Destination)
}

// Engine builds and forwards DATA and PING frames. It holds no mix-buffer
// state itself — spec §4.8's "stash instead of send when mixing_factor >
// 1" is the caller's responsibility (the node event loop), since the
// mix buffer is shared across both packet kinds.
type Engine struct {
	self          uint16
	ports         *porttable.Table
	graph         *topology.Graph
	randomRouting bool
	rng           *rand.Rand
	usedRandom    bool
	log           zerolog.Logger
}

// New constructs a data/ping Engine. rng must be non-nil iff
// randomRouting is true (spec §4.3: "seeded once at startup").
func New(self uint16, ports *porttable.Table, graph *topology.Graph, randomRouting bool, rng *rand.Rand, log zerolog.Logger) *Engine {
	return &Engine{
		self:          self,
		ports:         ports,
		graph:         graph,
		randomRouting: randomRouting,
		rng:           rng,
		log:           log.With().Str("component", "dataping").Logger(),
	}
}

// routeFor consults the topology for dst, applying the random-routing
// policy (spec §4.3: the first packet sent after startup when
// random_routing is enabled takes a detour; every later packet takes the
// shortest path) (spec §8 scenario 6).
func (e *Engine) routeFor(dst uint16) ([]uint16, error) {
	hops, ok := e.graph.HopList(dst)
	if !ok {
		return nil, ErrNoRoute{Destination: dst}
	}
	if e.randomRouting && !e.usedRandom {
		e.usedRandom = true
		hops = e.graph.RandomDetour(e.rng, e.self, dst, hops)
	}
	return hops, nil
}

// portForHop resolves the port to transmit on given the next scheduled
// hop, or the destination itself once the route is exhausted.
func (e *Engine) portForHop(route []uint16, hopIndex int, dst uint16) (int, error) {
	var next uint16
	if hopIndex < len(route) {
		next = route[hopIndex]
	} else {
		next = dst
	}
	port, ok := e.ports.PortForAddress(next)
	if !ok {
		return 0, ErrNoRoute{Destination: dst}
	}
	return port, nil
}

// OriginateData builds an outbound DATA frame for a user-submitted
// message (spec §4.8, origin mode).
func (e *Engine) OriginateData(dst uint16, message []byte) (*wire.Frame, int, error) {
	hops, err := e.routeFor(dst)
	if err != nil {
		return nil, 0, err
	}
	port, err := e.portForHop(hops, 0, dst)
	if err != nil {
		return nil, 0, err
	}
	header := wire.RoutingHeader{RouteLength: uint16(len(hops)), HopIndex: 0, Route: hops}
	payload := wire.EncodeData(wire.DataPayload{Header: header, Message: message})
	frame := &wire.Frame{
		SrcAddress:  e.self,
		DstAddress:  dst,
		Type:        wire.DATA,
		PayloadSize: uint16(len(payload)),
		Payload:     payload,
	}
	return frame, port, nil
}

// TransitResult is the outcome of forwarding a received DATA/PING frame
// one more hop: exactly one of Port (forward) or Deliver (destination
// reached) applies.
type TransitResult struct {
	Deliver bool
	Port    int
}

// transit advances header by one hop and resolves the next port,
// shared by ForwardData and ForwardPing (spec: "Transit forwarding is
// identical to §4.8 transit").
func (e *Engine) transit(dst uint16, header wire.RoutingHeader) (wire.RoutingHeader, TransitResult, error) {
	if dst == e.self {
		return header, TransitResult{Deliver: true}, nil
	}
	header.HopIndex++
	port, err := e.portForHop(header.Route, int(header.HopIndex), dst)
	if err != nil {
		return header, TransitResult{}, err
	}
	return header, TransitResult{Port: port}, nil
}

// ForwardData handles a received DATA frame not destined for the user
// port: either delivery (dst == self) or one more hop of transit.
func (e *Engine) ForwardData(f *wire.Frame) (*wire.Frame, TransitResult, error) {
	p, err := wire.DecodeData(f.Payload)
	if err != nil {
		return nil, TransitResult{}, err
	}
	header, result, err := e.transit(f.DstAddress, p.Header)
	if err != nil {
		return nil, TransitResult{}, err
	}
	if result.Deliver {
		return f, result, nil
	}
	p.Header = header
	out := f.Clone()
	out.SrcAddress = e.self
	out.Payload = wire.EncodeData(p)
	out.PayloadSize = uint16(len(out.Payload))
	return out, result, nil
}

// OriginatePing builds an outbound PING request frame (spec §4.9).
func (e *Engine) OriginatePing(dst uint16, sendTimeUs uint64) (*wire.Frame, int, error) {
	hops, err := e.routeFor(dst)
	if err != nil {
		return nil, 0, err
	}
	port, err := e.portForHop(hops, 0, dst)
	if err != nil {
		return nil, 0, err
	}
	header := wire.RoutingHeader{RouteLength: uint16(len(hops)), HopIndex: 0, Route: hops}
	payload := wire.EncodePing(wire.PingPayload{Header: header, Direction: wire.PingRequest, SendTimeUs: sendTimeUs})
	frame := &wire.Frame{
		SrcAddress:  e.self,
		DstAddress:  dst,
		Type:        wire.PING,
		PayloadSize: uint16(len(payload)),
		Payload:     payload,
	}
	return frame, port, nil
}

// PingArrival describes what a received PING frame requires of the
// caller: deliver a copy to the user port (always true when the frame
// reached its destination), and/or forward (a fresh response frame for a
// request that just arrived, or the transit relay of any other ping).
type PingArrival struct {
	Deliver  bool
	Forward  bool
	Port     int
	Response *wire.Frame
}

// ForwardPing handles a received PING frame not yet dispatched to the
// user port (spec §4.9): at the destination with direction=request, it
// delivers locally and originates a response; at the origin with
// direction=response, it only delivers; otherwise it is ordinary transit.
func (e *Engine) ForwardPing(f *wire.Frame) (*wire.Frame, PingArrival, error) {
	p, err := wire.DecodePing(f.Payload)
	if err != nil {
		return nil, PingArrival{}, err
	}

	if f.DstAddress == e.self {
		if p.Direction == wire.PingResponse {
			return f, PingArrival{Deliver: true}, nil
		}
		// Destination received a request: deliver up, then build and send a
		// response routed back along the hop list toward the original source.
		respHops, ok := e.graph.HopList(f.SrcAddress)
		if !ok {
			return f, PingArrival{Deliver: true}, nil
		}
		respHeader := wire.RoutingHeader{RouteLength: uint16(len(respHops)), HopIndex: 0, Route: respHops}
		respPayload := wire.EncodePing(wire.PingPayload{Header: respHeader, Direction: wire.PingResponse, SendTimeUs: p.SendTimeUs})
		resp := &wire.Frame{
			SrcAddress:  e.self,
			DstAddress:  f.SrcAddress,
			Type:        wire.PING,
			PayloadSize: uint16(len(respPayload)),
			Payload:     respPayload,
		}
		port, err := e.portForHop(respHops, 0, f.SrcAddress)
		if err != nil {
			return f, PingArrival{Deliver: true}, nil
		}
		return f, PingArrival{Deliver: true, Forward: true, Port: port, Response: resp}, nil
	}

	header, result, err := e.transit(f.DstAddress, p.Header)
	if err != nil {
		return nil, PingArrival{}, err
	}
	p.Header = header
	out := f.Clone()
	out.SrcAddress = e.self
	out.Payload = wire.EncodePing(p)
	out.PayloadSize = uint16(len(out.Payload))
	return out, PingArrival{Forward: true, Port: result.Port}, nil
}
