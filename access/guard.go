// Package access implements the access-token guards described in spec
// §4.2: scoped objects that convert a cell's borrow counter transition
// into a typed pointer for native-function argument binding, and release
// that borrow when the guard is dropped.
//
// The split between heap.Store (owns the counter and the free/reclaim
// logic) and this package (owns the scoped Ref/Mut wrapper a native
// function actually touches) mirrors the original Rune runtime's
// vm/access.rs, where Access is private to the slot and Ref/Mut/RawRefGuard
// are the public borrow types built on top of it.
package access

import (
	"fmt"

	"github.com/wudi/rnvm/heap"
	"github.com/wudi/rnvm/vmerrors"
)

// Cells is the minimal surface a guard needs from the store: acquire/
// release transitions and payload access. It is satisfied by *heap.Store.
type Cells interface {
	AcquireShared(h heap.Handle) bool
	AcquireExclusive(h heap.Handle) bool
	ReleaseShared(h heap.Handle)
	ReleaseExclusive(h heap.Handle)
	Payload(h heap.Handle) (interface{}, bool)
}

// Shared is a live shared borrow on a cell. Dropping it (Release) restores
// the access counter. A zero Shared is not valid; always obtain one via
// BorrowShared.
type Shared struct {
	store  Cells
	handle heap.Handle
	live   bool
}

// BorrowShared acquires a shared borrow on h, returning
// NotAccessibleShared if an exclusive borrow is already live.
func BorrowShared(store Cells, h heap.Handle) (*Shared, error) {
	if !store.AcquireShared(h) {
		return nil, &vmerrors.NotAccessibleShared{Slot: uint64(h.Index())}
	}
	return &Shared{store: store, handle: h, live: true}, nil
}

// Payload returns the cell's current payload. Panics if called after
// Release, since the guard's entire purpose is to bound how long the
// payload may be observed.
func (g *Shared) Payload() interface{} {
	if !g.live {
		panic("access: Payload called on a released Shared guard")
	}
	v, _ := g.store.Payload(g.handle)
	return v
}

// Release ends the borrow. Safe to call at most once; a second call
// panics, matching the debug assertion in spec §4.2 that guards are not
// double-released.
func (g *Shared) Release() {
	if !g.live {
		panic("access: Shared guard released twice")
	}
	g.live = false
	g.store.ReleaseShared(g.handle)
}

// Exclusive is a live exclusive (mutable) borrow on a cell.
type Exclusive struct {
	store  Cells
	handle heap.Handle
	live   bool
}

// BorrowExclusive acquires an exclusive borrow on h, returning
// NotAccessibleExclusive if any borrow is already live.
func BorrowExclusive(store Cells, h heap.Handle) (*Exclusive, error) {
	if !store.AcquireExclusive(h) {
		return nil, &vmerrors.NotAccessibleExclusive{Slot: uint64(h.Index())}
	}
	return &Exclusive{store: store, handle: h, live: true}, nil
}

func (g *Exclusive) Payload() interface{} {
	if !g.live {
		panic("access: Payload called on a released Exclusive guard")
	}
	v, _ := g.store.Payload(g.handle)
	return v
}

func (g *Exclusive) Release() {
	if !g.live {
		panic("access: Exclusive guard released twice")
	}
	g.live = false
	g.store.ReleaseExclusive(g.handle)
}

// RawGuard is the "raw pointer extraction" escape hatch from spec §4.2:
// an explicit operation yielding a payload plus a release obligation whose
// lifetime is the caller's responsibility (needed so a native async
// function's guards can survive across a suspension point).
type RawGuard struct {
	release func()
	live    bool
}

// Release runs the deferred release transition. Safe to call at most once.
func (g *RawGuard) Release() {
	if !g.live {
		panic("access: RawGuard released twice")
	}
	g.live = false
	g.release()
}

// IntoRaw converts a live Shared guard into a payload + RawGuard pair,
// consuming the Shared guard (it must not be used again).
func (g *Shared) IntoRaw() (interface{}, *RawGuard) {
	if !g.live {
		panic("access: IntoRaw called on a released Shared guard")
	}
	payload, _ := g.store.Payload(g.handle)
	g.live = false
	return payload, &RawGuard{release: func() { g.store.ReleaseShared(g.handle) }, live: true}
}

// IntoRaw converts a live Exclusive guard into a payload + RawGuard pair.
func (g *Exclusive) IntoRaw() (interface{}, *RawGuard) {
	if !g.live {
		panic("access: IntoRaw called on a released Exclusive guard")
	}
	payload, _ := g.store.Payload(g.handle)
	g.live = false
	return payload, &RawGuard{release: func() { g.store.ReleaseExclusive(g.handle) }, live: true}
}

// String renders a guard for debug/trace logging.
func (g *Shared) String() string    { return fmt.Sprintf("Shared(%d)", g.handle.Index()) }
func (g *Exclusive) String() string { return fmt.Sprintf("Exclusive(%d)", g.handle.Index()) }
