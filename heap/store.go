package heap

import "fmt"

// firstChunkSize is the slot count of the first chunk; each subsequent
// chunk doubles the previous one's size, matching the FIRST_SLOT_SIZE
// constant in the original Rune slab (see doc comment on the package).
const firstChunkSize = 16

type entryState byte

const (
	stateNone entryState = iota
	stateVacant
	stateOccupied
)

// cell is one slot in the slab. Once returned from a chunk it is never
// moved: the slab only ever grows its index of chunk pointers, and each
// cell is addressed through a stable *cell, so a live handle's backing
// memory never relocates underneath an outstanding guard.
type cell struct {
	state      entryState
	generation uint32
	nextVacant uint32 // valid when state == stateVacant

	strong  uint32
	access  access
	payload interface{}
}

// Store is the heap cell store: a chunked, pointer-stable slab with a free
// list threaded through released slots. One Store belongs to exactly one
// VM instance (spec §5); it is not safe for concurrent use from multiple
// goroutines without external synchronization.
type Store struct {
	chunks [][]*cell
	len    int
	next   uint32 // next free slot index to try (may point into unallocated territory)
}

// NewStore constructs an empty cell store.
func NewStore() *Store {
	return &Store{}
}

// Len reports the number of live (occupied) cells.
func (s *Store) Len() int { return s.len }

func chunkFor(index uint32) (chunkIdx int, offset int, size int) {
	if index < firstChunkSize {
		return 0, int(index), firstChunkSize
	}
	rel := index - firstChunkSize
	size = firstChunkSize * 2
	chunkIdx = 1
	for rel >= uint32(size) {
		rel -= uint32(size)
		size *= 2
		chunkIdx++
	}
	return chunkIdx, int(rel), size
}

func (s *Store) ensureChunk(chunkIdx, size int) []*cell {
	for len(s.chunks) <= chunkIdx {
		s.chunks = append(s.chunks, nil)
	}
	if s.chunks[chunkIdx] == nil {
		chunk := make([]*cell, size)
		for i := range chunk {
			chunk[i] = &cell{state: stateNone, generation: 1}
		}
		s.chunks[chunkIdx] = chunk
	}
	return s.chunks[chunkIdx]
}

func (s *Store) cellAt(index uint32) *cell {
	chunkIdx, offset, size := chunkFor(index)
	if chunkIdx >= len(s.chunks) || s.chunks[chunkIdx] == nil {
		return nil
	}
	if offset >= size {
		return nil
	}
	return s.chunks[chunkIdx][offset]
}

// Allocate inserts payload into a free slot, returning a fresh handle with
// strong count 1 and access 0. Allocation never fails under normal
// operation.
func (s *Store) Allocate(payload interface{}) Handle {
	index := s.next
	chunkIdx, offset, size := chunkFor(index)
	chunk := s.ensureChunk(chunkIdx, size)
	c := chunk[offset]

	switch c.state {
	case stateNone:
		s.next = index + 1
	case stateVacant:
		s.next = c.nextVacant
	default:
		panic(fmt.Sprintf("heap: corrupt free list at slot %d", index))
	}

	c.state = stateOccupied
	c.strong = 1
	c.access = 0
	c.payload = payload
	s.len++

	return Handle{index: index, generation: c.generation}
}

func (s *Store) resolve(h Handle) *cell {
	c := s.cellAt(h.index)
	if c == nil || c.state != stateOccupied || c.generation != h.generation {
		return nil
	}
	return c
}

// Payload returns the raw payload stored at h, or (nil, false) if the
// handle is stale (generation mismatch) or was never allocated.
func (s *Store) Payload(h Handle) (interface{}, bool) {
	c := s.resolve(h)
	if c == nil {
		return nil, false
	}
	return c.payload, true
}

// CloneHandle increments h's strong reference count and returns h
// unchanged (handles are themselves copyable; only the backing count
// changes). Reports false if h is stale.
func (s *Store) CloneHandle(h Handle) (Handle, bool) {
	c := s.resolve(h)
	if c == nil {
		return Handle{}, false
	}
	c.strong++
	return h, true
}

// DropHandle decrements h's strong reference count; when it reaches zero
// and the access counter is free, the cell is freed and the slot's
// generation is bumped so any other outstanding (now dangling) handle to
// this position is detectably stale. Returns the freed payload so the
// caller can run any drop glue (e.g. releasing an Any external's
// resources) and false if h was already stale.
func (s *Store) DropHandle(h Handle) (payload interface{}, freed bool, ok bool) {
	c := s.resolve(h)
	if c == nil {
		return nil, false, false
	}
	if c.strong == 0 {
		panic("heap: drop_handle on a cell with zero strong count")
	}
	c.strong--
	if c.strong > 0 {
		return c.payload, false, true
	}
	if !c.access.free() {
		// The cell cannot be reclaimed while a guard is outstanding; the
		// caller (typically a guard's Drop) is responsible for retrying
		// once the last guard releases. Strong count has already hit
		// zero so no further CloneHandle may legally observe this cell.
		return c.payload, false, true
	}
	payload = c.payload
	c.payload = nil
	c.state = stateVacant
	c.nextVacant = s.next
	c.generation++
	s.next = h.index
	s.len--
	return payload, true, true
}

// AssertFreeable panics if h's access counter is nonzero, per spec §4.2:
// "Attempting to free a cell whose access counter is nonzero is a bug; the
// implementation must assert this at debug-time." Callers invoke this only
// in debug builds / tests guarding internal invariants, never on the
// normal drop path (which instead defers the free, see DropHandle).
func (s *Store) AssertFreeable(h Handle) {
	c := s.resolve(h)
	if c == nil {
		return
	}
	if !c.access.free() {
		panic(fmt.Sprintf("heap: cell %d has outstanding access %d at free time", h.index, c.access))
	}
}

// AcquireShared attempts a shared borrow, returning false if an exclusive
// borrow is already live.
func (s *Store) AcquireShared(h Handle) bool {
	c := s.resolve(h)
	if c == nil {
		return false
	}
	return c.access.acquireShared()
}

// AcquireExclusive attempts an exclusive borrow, returning false if any
// borrow is already live.
func (s *Store) AcquireExclusive(h Handle) bool {
	c := s.resolve(h)
	if c == nil {
		return false
	}
	return c.access.acquireExclusive()
}

// ReleaseShared releases one shared borrow previously acquired on h. It
// reclaims the cell immediately if its strong count had already dropped to
// zero while the borrow was outstanding.
func (s *Store) ReleaseShared(h Handle) {
	c := s.resolve(h)
	if c == nil {
		return
	}
	c.access.releaseShared()
	s.reclaimIfOrphaned(h, c)
}

// ReleaseExclusive releases the exclusive borrow on h.
func (s *Store) ReleaseExclusive(h Handle) {
	c := s.resolve(h)
	if c == nil {
		return
	}
	c.access.releaseExclusive()
	s.reclaimIfOrphaned(h, c)
}

// reclaimIfOrphaned frees a cell whose strong count reached zero while a
// guard was still outstanding, now that the last guard has released.
func (s *Store) reclaimIfOrphaned(h Handle, c *cell) {
	if c.strong != 0 || !c.access.free() {
		return
	}
	c.payload = nil
	c.state = stateVacant
	c.nextVacant = s.next
	c.generation++
	s.next = h.index
	s.len--
}
