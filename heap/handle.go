// Package heap implements the reference-counted, generationally-indexed
// cell store described by the value-ownership subsystem: a chunked,
// pointer-stable slab of slots threaded by a free list, where every slot
// carries a generation bumped on each free/reallocate cycle so stale
// handles can always be detected.
//
// The layout is ported from the original Rune runtime's Slots type
// (runestick/src/vm/slots.rs): slot capacity doubles chunk-by-chunk so the
// slab never needs to move already-issued entries, and removed slots are
// threaded into a singly-linked free list via the Vacant tombstone. The Go
// port drops the unsafe pointer arithmetic used there (each slot is an
// individually heap-allocated *cell so growing the outer index never moves
// a live cell) but keeps the chunk-doubling/free-list/generation behavior.
package heap

// Handle is a compact, generation-tagged reference to a cell. It is cheap
// to copy; cloning a handle is the caller's responsibility (see
// Store.CloneHandle) because only the store knows whether this duplication
// should bump the strong reference count.
type Handle struct {
	index      uint32
	generation uint32
}

// Zero reports whether h is the zero Handle (never produced by Allocate,
// since slot generations start at 1).
func (h Handle) Zero() bool { return h.index == 0 && h.generation == 0 }

// Index exposes the slot position, primarily for debug rendering.
func (h Handle) Index() uint32 { return h.index }

// Generation exposes the slot generation, primarily for debug rendering.
func (h Handle) Generation() uint32 { return h.generation }
