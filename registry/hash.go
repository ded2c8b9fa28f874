// Package registry implements the Runtime Context (spec §3.7): the
// embedder-populated, read-only-after-construction registry of native
// function handlers, instance method handlers, type RTTI, and protocol
// handlers that glue a compiled Unit to host code.
//
// The Function/Class-table shape is carried over from the teacher's
// registry/types.go (a Registry keyed by name, with a BuiltinImplementation
// function signature for native functions); this package generalizes it
// from PHP-specific functions/classes to hash-keyed native handlers and
// protocol dispatch per spec §3.7, §4.5, §6.3.
package registry

import (
	"hash/fnv"
)

// Hash is a 64-bit function/type/protocol hash, derived deterministically
// from a name (spec §6.3). Collisions are the compiler's responsibility to
// avoid; the runtime never mitigates them.
type Hash = uint64

// HashName derives the hash for a fully-qualified, slash-joined name path,
// such as "mymodule/MyType/method". It runs FNV-1a 64 over the UTF-8 bytes
// and finishes with a splitmix64-style bit mixer so that hashes of
// similar-looking names (which FNV alone spreads unevenly across its low
// bits) avalanche fully. This is the "fixed, documented bit-mixing
// function" spec §6.3 asks implementers to pick; it replaces the original
// Rune runtime's vendored xxhash (original_source/crates/st/src/hash.rs)
// with a stdlib-only equivalent.
func HashName(name string) Hash {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return finalizeMix(h.Sum64())
}

// HashNameArity derives a hash for a name with an arity modifier, used
// when the same name is overloaded by argument count.
func HashNameArity(name string, arity int) Hash {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{byte(arity), byte(arity >> 8)})
	return finalizeMix(h.Sum64())
}

// InstanceHash combines a receiver type hash and a method-name hash into
// the single hash the call and protocol dispatchers key instance lookups
// by (spec §4.4 "Instance dispatch", §4.5): hash_combine(type, method).
func InstanceHash(typeHash, methodHash Hash) Hash {
	return finalizeMix(typeHash ^ (methodHash + 0x9e3779b97f4a7c15 + (typeHash << 6) + (typeHash >> 2)))
}

// finalizeMix is the splitmix64 finalizer, a small fixed bit-mixer with
// good avalanche properties and no external dependency.
func finalizeMix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
