// Package flood implements split-horizon flooding of user-originated
// broadcast frames (spec §4.6): a frame entering from the user port goes
// out every open neighbor port; a frame entering from a neighbor port is
// relayed to every other open neighbor port, never back the way it came.
package flood

import (
	"github.com/rs/zerolog"

	"github.com/relaymesh/mixnet/porttable"
)

// UserPort is the sentinel origin used by Relay to mean "the frame
// originated at this node", as opposed to arriving on a neighbor port.
const UserPort = -1

// Engine tracks nothing beyond the port table it floods over; flood
// dissemination has no belief state of its own (spec §4.6).
type Engine struct {
	ports *porttable.Table
	log   zerolog.Logger
}

// New constructs a flood Engine over the given port table.
func New(ports *porttable.Table, log zerolog.Logger) *Engine {
	return &Engine{ports: ports, log: log.With().Str("component", "flood").Logger()}
}

// Relay computes which currently-open ports a flood frame should be
// emitted on. fromPort is UserPort for locally-originated frames, or the
// receiving neighbor port otherwise; split-horizon excludes that port
// from the result (temporarily "blocked" for the duration of the emit,
// per spec §4.6, without actually mutating port state).
func (e *Engine) Relay(fromPort int) []int {
	ports := make([]int, 0, e.ports.NumPorts())
	for i := 0; i < e.ports.NumPorts(); i++ {
		if i == fromPort {
			continue
		}
		if e.ports.IsOpen(i) {
			ports = append(ports, i)
		}
	}
	e.log.Debug().Int("from_port", fromPort).Ints("to_ports", ports).Msg("flood relay")
	return ports
}

// Accept reports whether a flood frame received on fromPort should be
// processed at all: frames arriving on a blocked port are silently
// discarded (spec §4.6). fromPort == UserPort is always accepted.
func (e *Engine) Accept(fromPort int) bool {
	if fromPort == UserPort {
		return true
	}
	return e.ports.IsOpen(fromPort)
}

// DeliverLocally reports whether a flood frame received on a neighbor
// port should also be delivered up to the user port: exactly once, for
// any accepted neighbor-originated flood frame.
func (e *Engine) DeliverLocally(fromPort int) bool {
	return fromPort != UserPort
}
