package heap

// access is the three-region borrow counter described in spec §3.3:
//
//	 0  - free to borrow shared or exclusive
//	< 0  - -N live shared borrows
//	> 0  - exactly one (1) live exclusive borrow
//
// It is a plain signed int rather than an atomic because the cell store is
// owned by exactly one VM instance and never shared across threads (see
// spec §5); this mirrors the original Rune `Access(Cell<isize>)` in
// runestick/src/vm/access.rs, minus the unsafe-cell wrapper Go doesn't need.
type access int32

func (a *access) acquireShared() bool {
	b := *a - 1
	if b >= 0 {
		return false
	}
	*a = b
	return true
}

func (a *access) acquireExclusive() bool {
	b := *a + 1
	if b != 1 {
		return false
	}
	*a = b
	return true
}

func (a *access) releaseShared() {
	b := *a + 1
	if b > 0 {
		panic("heap: release_shared unbalanced")
	}
	*a = b
}

func (a *access) releaseExclusive() {
	b := *a - 1
	if b != 0 {
		panic("heap: release_exclusive unbalanced")
	}
	*a = b
}

func (a access) free() bool { return a == 0 }
