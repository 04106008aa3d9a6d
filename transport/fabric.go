package transport

import (
	"fmt"
	"reflect"

	"github.com/relaymesh/mixnet/wire"
)

// defaultCapacity is the per-edge channel depth used when Fabric.AddNode
// isn't given one explicitly.
const defaultCapacity = 16

// ErrChannelFull is returned by Send when the destination edge's buffer
// is saturated; per spec §4.10 this is a transient, swallowed error.
type ErrChannelFull struct {
	Port int
}

func (e ErrChannelFull) Error() string {
	return fmt.Sprintf("transport: channel for port %d is full", e.Port)
}

// NodeHandle is the Transport a single node sees: one inbound channel per
// neighbor port, one outbound channel per neighbor port (each a bounded
// per-edge FIFO, spec §5), and a separate pair of channels standing in
// for the user port (spec §6: "a logical port equal in index to
// num_neighbors" — origination events flow in, delivery events flow out).
type NodeHandle struct {
	self      uint16
	neighbors []uint16
	userPort  int

	inbound  []chan *wire.Frame // neighbor ports only, index 0..len(neighbors)-1
	outbound []chan *wire.Frame // wired to each neighbor's corresponding inbound slot

	userOriginate  chan *wire.Frame // local application -> this node
	userDeliveries chan *wire.Frame // this node -> local application

	selectCases []reflect.SelectCase
}

// Send implements Transport.
func (h *NodeHandle) Send(port int, frame *wire.Frame) error {
	if port == h.userPort {
		select {
		case h.userDeliveries <- frame:
			return nil
		default:
			return ErrChannelFull{Port: port}
		}
	}
	if port < 0 || port >= len(h.outbound) {
		return fmt.Errorf("transport: port %d out of range", port)
	}
	select {
	case h.outbound[port] <- frame:
		return nil
	default:
		return ErrChannelFull{Port: port}
	}
}

// Recv implements Transport: a single non-blocking fan-in read across
// every neighbor port's inbound channel plus the user port's origination
// channel. reflect.Select is the idiomatic way to fan-in over a
// dynamically-sized, per-node port set without hand-writing one select
// arm per possible neighbor count.
func (h *NodeHandle) Recv() (int, *wire.Frame, bool) {
	chosen, value, ok := reflect.Select(h.selectCases)
	if !ok || chosen == len(h.selectCases)-1 { // default case, or a closed channel
		return 0, nil, false
	}
	return chosen, value.Interface().(*wire.Frame), true
}

// Originate injects a frame as if submitted by the locally-attached
// application on the user port (spec §6 "frames received on it from
// above are origination events").
func (h *NodeHandle) Originate(frame *wire.Frame) {
	h.userOriginate <- frame
}

// Deliveries returns the channel a test harness or demo CLI reads
// user-port delivery events from (spec §6 "frames sent to it are
// delivery events").
func (h *NodeHandle) Deliveries() <-chan *wire.Frame {
	return h.userDeliveries
}

// Fabric wires a static graph of NodeHandles together: AddNode once per
// node, then Wire to connect each node's outbound edges to its
// neighbors' inbound slots. Grounded on the teacher's one-off
// `Controller`/`chan interface{}` pairing in controller.go and node.go,
// generalized to an arbitrary N-node graph carrying wire.Frame instead of
// interface{}.
type Fabric struct {
	handles map[uint16]*NodeHandle
}

// NewFabric returns an empty Fabric.
func NewFabric() *Fabric {
	return &Fabric{handles: make(map[uint16]*NodeHandle)}
}

// AddNode registers a node's neighbor list and allocates its channels.
// Call Wire once every node in the topology has been added.
func (f *Fabric) AddNode(self uint16, neighbors []uint16, capacity int) *NodeHandle {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	h := &NodeHandle{
		self:      self,
		neighbors: append([]uint16(nil), neighbors...),
		userPort:  len(neighbors),
	}
	h.inbound = make([]chan *wire.Frame, len(neighbors))
	for i := range h.inbound {
		h.inbound[i] = make(chan *wire.Frame, capacity)
	}
	h.userOriginate = make(chan *wire.Frame, capacity)
	h.userDeliveries = make(chan *wire.Frame, capacity)
	f.handles[self] = h
	return h
}

// Wire connects every node's outbound edges to the matching inbound slot
// on its neighbor. Every neighbor reference must itself list self back
// (an undirected edge), and every referenced neighbor must have been
// added via AddNode.
func (f *Fabric) Wire() error {
	for addr, h := range f.handles {
		h.outbound = make([]chan *wire.Frame, len(h.neighbors))
		for i, n := range h.neighbors {
			peer, ok := f.handles[n]
			if !ok {
				return fmt.Errorf("transport: neighbor %d of node %d was never added to the fabric", n, addr)
			}
			backPort, ok := portForAddress(peer.neighbors, addr)
			if !ok {
				return fmt.Errorf("transport: node %d does not list %d back as a neighbor", n, addr)
			}
			h.outbound[i] = peer.inbound[backPort]
		}
	}
	for _, h := range f.handles {
		h.selectCases = make([]reflect.SelectCase, 0, len(h.inbound)+2)
		for _, ch := range h.inbound {
			h.selectCases = append(h.selectCases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)})
		}
		h.selectCases = append(h.selectCases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(h.userOriginate)})
		h.selectCases = append(h.selectCases, reflect.SelectCase{Dir: reflect.SelectDefault})
	}
	return nil
}

func portForAddress(neighbors []uint16, addr uint16) (int, bool) {
	for i, n := range neighbors {
		if n == addr {
			return i, true
		}
	}
	return 0, false
}
