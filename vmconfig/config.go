// Package vmconfig loads embedder-supplied VM tuning (initial stack size,
// cooperative budget, max call depth) from a YAML document via
// gopkg.in/yaml.v3, mirroring the teacher's pkg/fpm/config pattern of a
// typed config struct hydrated from a file with documented defaults —
// adapted here from that package's hand-rolled INI scanner to a plain
// yaml.Unmarshal, since the VM's tuning surface is a flat, non-sectioned
// document rather than FPM's repeated [pool] blocks.
package vmconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the embedder-facing VM tuning surface (spec §4.6 budgeting,
// §3.4 stack sizing).
type Config struct {
	// InitialStackCapacity sizes the operand stack's backing slice before
	// it must grow (spec §3.4); purely a performance hint.
	InitialStackCapacity int `yaml:"initial_stack_capacity"`

	// CooperativeBudget is the instruction count a single dispatch-loop
	// Run call executes before returning HaltLimited (spec §4.6). Set to
	// 0 to disable budgeting (run to completion or a real suspension).
	CooperativeBudget int `yaml:"cooperative_budget"`

	// MaxCallDepth bounds how many nested call frames (spec §3.5) an
	// execution may push before the driver aborts it with a stack-
	// overflow error, guarding against unbounded script recursion.
	MaxCallDepth int `yaml:"max_call_depth"`

	// ExecutionTimeout bounds how long a single Execute/Call/AsyncCall may
	// run before its context is cancelled by the driver, independent of
	// any context the embedder itself passed in. Zero means no timeout.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`
}

// Default returns the documented default tuning: an 8-slot initial stack,
// a 65536-instruction cooperative budget (matching the driver package's
// own defaultBudget), a call depth of 1024, and no execution timeout.
func Default() Config {
	return Config{
		InitialStackCapacity: 8,
		CooperativeBudget:    1 << 16,
		MaxCallDepth:         1024,
		ExecutionTimeout:     0,
	}
}

// Load reads and parses a YAML config document at path, filling any field
// the document omits with Default()'s value.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("vmconfig: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load's in-memory counterpart, used by the demo host to embed a
// canned config document without a filesystem round-trip.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("vmconfig: parse: %w", err)
	}
	if cfg.InitialStackCapacity <= 0 {
		return Config{}, fmt.Errorf("vmconfig: initial_stack_capacity must be positive, got %d", cfg.InitialStackCapacity)
	}
	if cfg.MaxCallDepth <= 0 {
		return Config{}, fmt.Errorf("vmconfig: max_call_depth must be positive, got %d", cfg.MaxCallDepth)
	}
	return cfg, nil
}
