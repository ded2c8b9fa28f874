package registry

import (
	"fmt"
	"sync"

	"github.com/wudi/rnvm/values"
)

// NativeEntry is one registered native function: the uniform handler plus
// the arity the dispatch loop checks before invoking it (spec §4.4 step
// 2).
type NativeEntry struct {
	Name    string
	Arity   int
	Handler values.NativeHandler
}

// Context is the embedder-populated Runtime Context (spec §3.7). It is
// built up via the Register* methods and then treated as read-only once
// handed to a Vm; this mirrors the teacher's registry.Registry (a
// BuiltinImplementation table keyed by name, mutated during extension
// registration and read-only during execution) generalized from
// name-keyed PHP builtins to hash-keyed native/instance/protocol entries.
type Context struct {
	mu sync.RWMutex

	functions         map[Hash]*NativeEntry
	instanceFunctions map[Hash]*NativeEntry // keyed by InstanceHash(type, method)
	typeRTTI          map[uint64]*values.RTTI
	protocolHandlers  map[Hash]*NativeEntry // keyed by InstanceHash(type, protocol.Hash())
	sealed            bool
}

// NewContext constructs an empty Runtime Context.
func NewContext() *Context {
	return &Context{
		functions:         make(map[Hash]*NativeEntry),
		instanceFunctions: make(map[Hash]*NativeEntry),
		typeRTTI:          make(map[uint64]*values.RTTI),
		protocolHandlers:  make(map[Hash]*NativeEntry),
	}
}

// Seal marks the context read-only; subsequent Register* calls panic. The
// embedder calls this once registration is done (vm.New and driver.New do
// not call it), enforcing spec §5's "immutable after construction" rule in
// code rather than only in documentation.
func (c *Context) Seal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
}

func (c *Context) checkMutable() {
	if c.sealed {
		panic("registry: Context is sealed and can no longer be mutated")
	}
}

// RegisterFunction registers a native free function under its fully
// qualified name; the function hash is derived via HashName.
func (c *Context) RegisterFunction(name string, arity int, handler values.NativeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkMutable()
	c.functions[HashName(name)] = &NativeEntry{Name: name, Arity: arity, Handler: handler}
}

// RegisterInstanceFunction registers a native method for a type hash.
func (c *Context) RegisterInstanceFunction(typeHash Hash, methodName string, arity int, handler values.NativeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkMutable()
	key := InstanceHash(typeHash, HashName(methodName))
	c.instanceFunctions[key] = &NativeEntry{Name: methodName, Arity: arity, Handler: handler}
}

// RegisterProtocol registers (or overrides) the handler for a protocol on
// a given type hash.
func (c *Context) RegisterProtocol(typeHash Hash, p Protocol, arity int, handler values.NativeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkMutable()
	key := InstanceHash(typeHash, p.Hash())
	c.protocolHandlers[key] = &NativeEntry{Name: string(p), Arity: arity, Handler: handler}
}

// RegisterFieldProtocol registers (or overrides) the handler for a
// protocol scoped to one named field of a type, e.g. a custom GET/SET on
// a single struct field rather than the whole value.
func (c *Context) RegisterFieldProtocol(typeHash Hash, fieldName string, p Protocol, arity int, handler values.NativeHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkMutable()
	key := fieldProtocolKey(typeHash, HashName(fieldName), p)
	c.protocolHandlers[key] = &NativeEntry{Name: fieldName + "/" + string(p), Arity: arity, Handler: handler}
}

// RegisterType registers RTTI for an externally-defined type.
func (c *Context) RegisterType(rtti *values.RTTI) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkMutable()
	c.typeRTTI[rtti.TypeHash] = rtti
}

// LookupFunction finds a native free function by hash.
func (c *Context) LookupFunction(hash Hash) (*NativeEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.functions[hash]
	return e, ok
}

// LookupInstanceFunction finds a native instance method by its already-
// combined instance hash.
func (c *Context) LookupInstanceFunction(instanceHash Hash) (*NativeEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.instanceFunctions[instanceHash]
	return e, ok
}

// LookupProtocol finds the handler registered for protocol p on typeHash.
func (c *Context) LookupProtocol(typeHash Hash, p Protocol) (*NativeEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.protocolHandlers[InstanceHash(typeHash, p.Hash())]
	return e, ok
}

// LookupFieldProtocol finds the handler registered for protocol p on a
// single named field (by its hash) of typeHash.
func (c *Context) LookupFieldProtocol(typeHash, fieldHash Hash, p Protocol) (*NativeEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.protocolHandlers[fieldProtocolKey(typeHash, fieldHash, p)]
	return e, ok
}

func fieldProtocolKey(typeHash, fieldHash Hash, p Protocol) Hash {
	return InstanceHash(typeHash, InstanceHash(fieldHash, p.Hash()))
}

// LookupType finds registered RTTI for an external type hash.
func (c *Context) LookupType(typeHash Hash) (*values.RTTI, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.typeRTTI[typeHash]
	return r, ok
}

// Extension is an installable bundle of native functions/types, mirroring
// the teacher's Extension interface (runtime/extension.go: GetName/
// Register/Unregister) generalized from PHP builtins to this VM's native
// module surface. See nativemodule/{db,crypto,ids} for concrete
// extensions.
type Extension interface {
	Name() string
	Register(ctx *Context) error
}

// Install registers one or more extensions into ctx, stopping at (and
// returning) the first error.
func Install(ctx *Context, extensions ...Extension) error {
	for _, ext := range extensions {
		if err := ext.Register(ctx); err != nil {
			return fmt.Errorf("registry: installing extension %q: %w", ext.Name(), err)
		}
	}
	return nil
}
