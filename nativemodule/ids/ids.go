// Package ids registers the native `ids` module (spec SPEC_FULL §4.8): a
// single script-callable ids.new() function minting a stable identifier via
// github.com/google/uuid, plus NewID for Go callers. The runtime itself
// does not tag Future/Generator/Any cells with these identifiers.
package ids

import (
	"github.com/google/uuid"

	"github.com/wudi/rnvm/nativemodule/internal"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/stack"
)

// Extension bundles the ids.new native function into a registry.Extension.
type Extension struct{}

// New constructs the ids module extension.
func New() *Extension { return &Extension{} }

func (*Extension) Name() string { return "ids" }

func (*Extension) Register(ctx *registry.Context) error {
	ctx.RegisterFunction("ids/new", 0, newHandler)
	return nil
}

func newHandler(vmStack interface{}, argc int) error {
	s := vmStack.(*stack.Stack)
	_, store, err := internal.Args(s, argc)
	if err != nil {
		return err
	}
	internal.PushString(store, s, uuid.NewString())
	return nil
}

// NewID mints an identifier directly, for use outside a running VM.
func NewID() string { return uuid.NewString() }
