// Package node wires the port table, topology graph, mix buffer, STP,
// flood, LSA, and data/ping engines into the single-threaded per-node
// event loop of spec §4.1.
package node

import (
	"math/rand/v2"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/relaymesh/mixnet/config"
	"github.com/relaymesh/mixnet/dataping"
	"github.com/relaymesh/mixnet/flood"
	"github.com/relaymesh/mixnet/lsa"
	"github.com/relaymesh/mixnet/metrics"
	"github.com/relaymesh/mixnet/mixbuffer"
	"github.com/relaymesh/mixnet/porttable"
	"github.com/relaymesh/mixnet/stp"
	"github.com/relaymesh/mixnet/topology"
	"github.com/relaymesh/mixnet/transport"
	"github.com/relaymesh/mixnet/wire"
)

// Engine is one node's complete protocol stack, driven by repeated calls
// to Tick (spec §4.1's per-iteration body) from an external run loop.
// There is no process-wide singleton (spec §9): every field is owned by
// this Engine, so many Engines can coexist in one process for testing.
type Engine struct {
	cfg        config.Config
	transport  transport.Transport
	metrics    *metrics.Registry
	log        zerolog.Logger
	transcript zerolog.Logger

	ports *porttable.Table
	graph *topology.Graph
	mix   *mixbuffer.Buffer

	stp      *stp.Engine
	flood    *flood.Engine
	lsa      *lsa.Engine
	dataping *dataping.Engine

	// sourcePorts/forwardPorts track, in parallel with mix.StashSource and
	// mix.StashForward, which port each stashed frame must go out on once
	// the buffer flushes; mixbuffer.Buffer only knows frames, not ports.
	sourcePorts  []int
	forwardPorts []int

	// rootHelloCount counts this node's own root-hello emissions while it
	// believes itself root (Init's seed counts as the first), so the root
	// can originate its LSA on the second one (spec §4.7).
	rootHelloCount int
}

// New constructs an Engine for cfg. now is the construction-time clock
// reading, used to seed both STP timers.
func New(cfg config.Config, tr transport.Transport, reg *metrics.Registry, log zerolog.Logger, now time.Time) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log = log.With().Uint16("node", cfg.Self).Logger()
	ports := porttable.New(cfg.Neighbors)
	graph := topology.New()
	graph.Seed(cfg.Self, cfg.Neighbors)
	graph.Recompute(cfg.Self)

	var rng *rand.Rand
	if cfg.RandomRouting {
		rng = rand.New(rand.NewPCG(cfg.Seed[0], cfg.Seed[1]))
	}

	transcript := zerolog.Nop()
	if cfg.Transcript != nil {
		transcript = zerolog.New(cfg.Transcript).With().Timestamp().Uint16("node", cfg.Self).Logger()
	}

	e := &Engine{
		cfg:        cfg,
		transport:  tr,
		metrics:    reg,
		log:        log,
		transcript: transcript,
		ports:      ports,
		graph:      graph,
		mix:        mixbuffer.New(cfg.MixingFactor),
		stp:        stp.New(cfg.Self, ports, cfg.RootHelloInterval, cfg.ReelectionInterval, log),
		flood:      flood.New(ports, log),
		lsa:        lsa.New(cfg.Self, cfg.Neighbors, ports, graph, log),
		dataping:   dataping.New(cfg.Self, ports, graph, cfg.RandomRouting, rng, log),
	}

	d := e.stp.Init(now)
	e.broadcastSTP(d.BroadcastPorts)
	e.rootHelloCount++
	return e, nil
}

// Self returns this node's address.
func (e *Engine) Self() uint16 {
	return e.cfg.Self
}

// IsRoot reports whether this node currently believes itself root.
func (e *Engine) IsRoot() bool {
	return e.stp.IsRoot()
}

// Belief returns the current STP route record.
func (e *Engine) Belief() stp.Belief {
	return e.stp.Belief()
}

// HopList reports this node's current shortest route to dst, for
// diagnostics (cmd/mixnetd).
func (e *Engine) HopList(dst uint16) ([]uint16, bool) {
	return e.graph.HopList(dst)
}

// MetricsRegistry returns the registry this Engine reports to, or nil if
// none was supplied at construction.
func (e *Engine) MetricsRegistry() *metrics.Registry {
	return e.metrics
}

// OpenPorts reports the neighbor addresses whose ports are currently
// open (spec §4.5 port consistency, property P3), for diagnostics and
// tests.
func (e *Engine) OpenPorts() []uint16 {
	return e.ports.OpenPorts()
}

// Tick runs one iteration of the event loop (spec §4.1, steps 1-3).
func (e *Engine) Tick(now time.Time) {
	if ports, fire := e.stp.MaybeSendRootHello(now); fire {
		e.broadcastSTP(ports)
		e.rootHelloCount++
		if e.rootHelloCount == 2 && !e.lsa.Originated() {
			e.originateLSA()
		}
	}

	if e.mix.Ready() {
		e.flushMixBuffer()
	}

	port, frame, ok := e.transport.Recv()
	if !ok {
		if d := e.stp.CheckReelection(now); d.BroadcastPorts != nil {
			if e.metrics != nil {
				e.metrics.ReelectionEvents.Inc()
			}
			e.broadcastSTP(d.BroadcastPorts)
		}
		return
	}
	e.dispatch(now, port, frame)
}

func (e *Engine) dispatch(now time.Time, port int, f *wire.Frame) {
	e.transcript.Info().Str("dir", "in").Int("port", port).Str("type", f.Type.String()).
		Uint16("src", f.SrcAddress).Uint16("dst", f.DstAddress).Msg("frame")
	if e.metrics != nil {
		e.metrics.ObserveReceived(f.Type)
	}
	switch f.Type {
	case wire.STP:
		e.handleSTP(now, port, f)
	case wire.FLOOD:
		e.handleFlood(port)
	case wire.LSA:
		e.handleLSA(port, f)
	case wire.DATA:
		e.handleData(port, f)
	case wire.PING:
		e.handlePing(now, port, f)
	default:
		e.log.Warn().Uint8("type", uint8(f.Type)).Msg("dropping frame of unknown type")
	}
}

func (e *Engine) handleSTP(now time.Time, port int, f *wire.Frame) {
	p, err := wire.DecodeSTP(f.Payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping malformed STP frame")
		return
	}
	d := e.stp.Receive(now, port, p)
	if d.BroadcastPorts != nil {
		e.broadcastSTP(d.BroadcastPorts)
	}
	// The root's own LSA origination is gated exclusively by Tick's
	// rootHelloCount == 2 check (spec §4.7): d.KeepAlive can spuriously go
	// true at the root from a bounced-back frame that re-enters carrying
	// Root == self, which must not trigger an early origination here.
	if !e.IsRoot() && !e.lsa.Originated() && d.KeepAlive {
		e.originateLSA()
	}
}

func (e *Engine) broadcastSTP(ports []int) {
	payload := e.stp.Payload()
	encoded := wire.EncodeSTP(payload)
	for _, port := range ports {
		e.send(port, &wire.Frame{SrcAddress: e.cfg.Self, DstAddress: 0, Type: wire.STP, Payload: encoded})
	}
}

func (e *Engine) handleFlood(port int) {
	if port == e.cfg.UserPort() {
		port = flood.UserPort
	}
	if !e.flood.Accept(port) {
		return
	}
	if e.flood.DeliverLocally(port) {
		e.send(e.cfg.UserPort(), &wire.Frame{SrcAddress: e.cfg.Self, DstAddress: 0, Type: wire.FLOOD})
		if e.metrics != nil {
			e.metrics.FloodDeliveries.Inc()
		}
	}
	for _, out := range e.flood.Relay(port) {
		e.send(out, &wire.Frame{SrcAddress: e.cfg.Self, DstAddress: 0, Type: wire.FLOOD})
	}
}

func (e *Engine) handleLSA(port int, f *wire.Frame) {
	p, err := wire.DecodeLSA(f.Payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping malformed LSA frame")
		return
	}
	d := e.lsa.Receive(port, p)
	if d.RouteChanged {
		e.graph.Recompute(e.cfg.Self)
		if e.metrics != nil {
			e.metrics.RouteRecomputes.Inc()
		}
	}
	if d.OriginateNow {
		e.originateLSA()
	}
	if d.Forward {
		encoded := wire.EncodeLSA(p)
		for _, out := range d.ForwardPorts {
			e.send(out, &wire.Frame{SrcAddress: e.cfg.Self, DstAddress: 0, Type: wire.LSA, Payload: encoded})
		}
	}
}

func (e *Engine) originateLSA() {
	payload, ports := e.lsa.Originate()
	encoded := wire.EncodeLSA(payload)
	for _, port := range ports {
		e.send(port, &wire.Frame{SrcAddress: e.cfg.Self, DstAddress: 0, Type: wire.LSA, Payload: encoded})
	}
}

func (e *Engine) handleData(port int, f *wire.Frame) {
	if f.DstAddress == e.cfg.Self {
		e.send(e.cfg.UserPort(), f)
		return
	}
	out, result, err := e.dataping.ForwardData(f)
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping data frame with no route")
		return
	}
	if result.Deliver {
		e.send(e.cfg.UserPort(), out)
		return
	}
	e.stashOrSend(out, result.Port, false)
}

func (e *Engine) handlePing(now time.Time, port int, f *wire.Frame) {
	if f.DstAddress != e.cfg.Self {
		out, result, err := e.dataping.ForwardPing(f)
		if err != nil {
			e.log.Debug().Err(err).Msg("dropping ping frame with no route")
			return
		}
		e.send(result.Port, out)
		return
	}
	_, arrival, err := e.dataping.ForwardPing(f)
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping malformed ping frame")
		return
	}
	if arrival.Deliver {
		if e.metrics != nil {
			if p, err := wire.DecodePing(f.Payload); err == nil && p.Direction == wire.PingResponse {
				rtt := now.UnixMicro() - int64(p.SendTimeUs)
				if rtt >= 0 {
					e.metrics.ObservePingRTT(time.Duration(rtt) * time.Microsecond)
				}
			}
		}
		e.send(e.cfg.UserPort(), f)
	}
	if arrival.Forward {
		e.send(arrival.Port, arrival.Response)
	}
}

// OriginateData submits a user-plane datagram for delivery to dst (spec
// §4.8 origin mode), going through the mix buffer if batching is enabled.
func (e *Engine) OriginateData(dst uint16, message []byte) error {
	frame, port, err := e.dataping.OriginateData(dst, message)
	if err != nil {
		return err
	}
	e.stashOrSend(frame, port, true)
	return nil
}

// OriginatePing submits an RTT probe to dst (spec §4.9), with
// sendTimeUs normally the caller's current monotonic clock reading in
// microseconds.
func (e *Engine) OriginatePing(dst uint16, sendTimeUs uint64) error {
	frame, port, err := e.dataping.OriginatePing(dst, sendTimeUs)
	if err != nil {
		return err
	}
	e.send(port, frame)
	return nil
}

// stashOrSend implements spec §4.8's mixing-factor branch: when batching
// is enabled the frame is stashed and only released on a flush; otherwise
// it is sent immediately.
func (e *Engine) stashOrSend(frame *wire.Frame, port int, source bool) {
	if e.cfg.MixingFactor > 1 {
		if source {
			e.mix.StashSource(frame)
			e.sourcePorts = append(e.sourcePorts, port)
		} else {
			e.mix.StashForward(frame)
			e.forwardPorts = append(e.forwardPorts, port)
		}
		return
	}
	e.send(port, frame)
}

func (e *Engine) flushMixBuffer() {
	frames := e.mix.Flush() // source frames first, then forward frames, matching ports' order below
	ports := append(e.sourcePorts, e.forwardPorts...)
	e.sourcePorts = nil
	e.forwardPorts = nil
	for i, f := range frames {
		if i < len(ports) {
			e.send(ports[i], f)
		}
	}
	if e.metrics != nil {
		e.metrics.MixBufferFlushes.Inc()
	}
}

// send implements spec §4.10: transport errors are logged and swallowed,
// never propagated to the caller. errors.Wrap attaches the port/type
// context lost once the error leaves transport.Send, so the logged line
// is self-contained without the caller threading it through by hand.
func (e *Engine) send(port int, f *wire.Frame) {
	if err := e.transport.Send(port, f); err != nil {
		wrapped := errors.Wrapf(err, "send %s frame on port %d", f.Type, port)
		e.log.Debug().Err(wrapped).Msg("send failed, dropping")
		return
	}
	e.transcript.Info().Str("dir", "out").Int("port", port).Str("type", f.Type.String()).
		Uint16("src", f.SrcAddress).Uint16("dst", f.DstAddress).Msg("frame")
	if e.metrics != nil {
		e.metrics.ObserveSent(f.Type)
	}
}
