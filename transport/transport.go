// Package transport defines the engine's boundary to the substrate that
// moves frames between neighbors (spec §6, out of scope for the engine
// itself) and ships one in-memory implementation for tests and the demo
// CLI.
package transport

import "github.com/relaymesh/mixnet/wire"

// Transport is the non-blocking receive/send boundary consumed by
// node.Engine (spec §6 "Transport API"). Port indices in
// [0, num_neighbors) are neighbor ports; num_neighbors is the user port.
type Transport interface {
	// Recv attempts one non-blocking receive. ok is false if no frame is
	// currently available.
	Recv() (port int, frame *wire.Frame, ok bool)
	// Send transmits frame on port. Once Send returns, the caller must not
	// read or mutate frame again (spec §6 ownership rule).
	Send(port int, frame *wire.Frame) error
}
