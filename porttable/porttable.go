// Package porttable tracks per-neighbor forwarding state for the active
// spanning tree (spec §4.2). A port is either open (frames cross) or
// blocked (frames are silently dropped).
package porttable

// State is whether a port currently forwards frames.
type State bool

const (
	Open    State = true
	Blocked State = false
)

// Table is a fixed-length vector, one slot per neighbor in configuration
// order. Lookup from address to port is linear over the neighbor list,
// matching the teacher's preference for scanning small, static neighbor
// sets rather than maintaining a reverse index.
type Table struct {
	neighbors []uint16
	ports     []State

	// parent is the neighbor address toward the root; hasParent is false
	// if this node currently believes itself to be root.
	parent       uint16
	hasParent    bool
	parentLength uint16
}

// New builds a Table for the given ordered neighbor list. All ports begin
// open, matching STP initialization (spec §4.5): a node starts believing
// itself root with every port available.
func New(neighbors []uint16) *Table {
	t := &Table{
		neighbors: append([]uint16(nil), neighbors...),
		ports:     make([]State, len(neighbors)),
	}
	t.ActivateAll()
	return t
}

// NumPorts returns the number of neighbor ports (excludes the user port).
func (t *Table) NumPorts() int {
	return len(t.neighbors)
}

// Neighbor returns the neighbor address bound to port, or false if port is
// out of range.
func (t *Table) Neighbor(port int) (uint16, bool) {
	if port < 0 || port >= len(t.neighbors) {
		return 0, false
	}
	return t.neighbors[port], true
}

// PortForAddress returns the port index whose neighbor equals addr.
func (t *Table) PortForAddress(addr uint16) (int, bool) {
	for i, n := range t.neighbors {
		if n == addr {
			return i, true
		}
	}
	return 0, false
}

// IsOpen reports whether port is currently open. An out-of-range port is
// reported closed, matching spec §4.10's "malformed/invalid index" drop
// policy at call sites.
func (t *Table) IsOpen(port int) bool {
	if port < 0 || port >= len(t.ports) {
		return false
	}
	return t.ports[port] == Open
}

// Set changes port's state. Out-of-range ports are a no-op.
func (t *Table) Set(port int, state State) {
	if port < 0 || port >= len(t.ports) {
		return
	}
	t.ports[port] = state
}

// SetByAddress is a no-op if addr is not a configured neighbor (spec §4.2).
func (t *Table) SetByAddress(addr uint16, state State) {
	if port, ok := t.PortForAddress(addr); ok {
		t.Set(port, state)
	}
}

// ActivateAll opens every port.
func (t *Table) ActivateAll() {
	for i := range t.ports {
		t.ports[i] = Open
	}
}

// DeactivateAll blocks every port.
func (t *Table) DeactivateAll() {
	for i := range t.ports {
		t.ports[i] = Blocked
	}
}

// OpenPorts returns the neighbor addresses whose port is currently open,
// in neighbor-list order.
func (t *Table) OpenPorts() []uint16 {
	open := make([]uint16, 0, len(t.neighbors))
	for i, n := range t.neighbors {
		if t.ports[i] == Open {
			open = append(open, n)
		}
	}
	return open
}

// SetParent records the current parent address and the path length it
// advertised, or clears it via ClearParent.
func (t *Table) SetParent(addr uint16, parentPathLength uint16) {
	t.parent = addr
	t.hasParent = true
	t.parentLength = parentPathLength
}

// ClearParent marks this node as having no parent (it believes itself root).
func (t *Table) ClearParent() {
	t.parent = 0
	t.hasParent = false
	t.parentLength = 0
}

// Parent returns the current parent address and whether one is set.
func (t *Table) Parent() (uint16, bool) {
	return t.parent, t.hasParent
}

// ParentPathLength returns the path length the current parent advertised.
func (t *Table) ParentPathLength() (uint16, bool) {
	return t.parentLength, t.hasParent
}
