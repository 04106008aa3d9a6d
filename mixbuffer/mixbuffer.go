// Package mixbuffer implements the fixed-size batching buffer that
// releases pending outbound data frames once a node-configured mixing
// factor worth of frames has accumulated (spec §4.4).
package mixbuffer

import "github.com/relaymesh/mixnet/wire"

// Buffer holds source-originated and forwarded frames awaiting a flush.
// A mixing factor of 1 means the buffer is bypassed entirely by callers;
// Buffer itself stays correct regardless (Flush with zero stashed frames
// is simply a no-op).
type Buffer struct {
	factor  int
	source  []*wire.Frame
	forward []*wire.Frame
}

// New creates a Buffer for the given mixing factor (spec §3: a positive
// integer batch size; 1 disables batching).
func New(factor int) *Buffer {
	return &Buffer{factor: factor}
}

// Factor returns the configured mixing factor.
func (b *Buffer) Factor() int {
	return b.factor
}

// Pending is the count of received-but-unsent data frames.
func (b *Buffer) Pending() int {
	return len(b.source) + len(b.forward)
}

// Ready reports whether the buffer has accumulated exactly as many frames
// as the mixing factor and is due for a flush.
func (b *Buffer) Ready() bool {
	return b.factor > 1 && b.Pending() == b.factor
}

// StashSource stages a source-originated frame.
func (b *Buffer) StashSource(f *wire.Frame) {
	b.source = append(b.source, f)
}

// StashForward stages a forwarded (transit) frame.
func (b *Buffer) StashForward(f *wire.Frame) {
	b.forward = append(b.forward, f)
}

// Flush returns every stashed frame — source frames first in insertion
// order, then forward frames in insertion order — and resets the buffer.
// Flushes are all-or-nothing: there is no partial drain.
func (b *Buffer) Flush() []*wire.Frame {
	out := make([]*wire.Frame, 0, len(b.source)+len(b.forward))
	out = append(out, b.source...)
	out = append(out, b.forward...)
	b.source = nil
	b.forward = nil
	return out
}
