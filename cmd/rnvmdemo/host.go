package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/wudi/rnvm/driver"
	"github.com/wudi/rnvm/internal/telemetry"
	"github.com/wudi/rnvm/nativemodule/crypto"
	"github.com/wudi/rnvm/nativemodule/db"
	"github.com/wudi/rnvm/nativemodule/ids"
	"github.com/wudi/rnvm/registry"
	"github.com/wudi/rnvm/values"
	"github.com/wudi/rnvm/vmconfig"
)

// buildContext assembles the Runtime Context every scenario runs against:
// the three nativemodule extensions installed and the context sealed, the
// same sequence a real embedder follows per spec §3.7/§5 ("immutable
// after construction").
func buildContext() (*registry.Context, error) {
	ctx := registry.NewContext()
	if err := registry.Install(ctx, db.New(), crypto.New(), ids.New()); err != nil {
		return nil, fmt.Errorf("rnvmdemo: installing native modules: %w", err)
	}
	ctx.Seal()
	return ctx, nil
}

// runScenario drives s to completion through the driver package, the same
// embedder entry point (driver.Vm.Call) a real host uses, and returns the
// telemetry recorder bound to the run so callers can print it on request.
func runScenario(ctx context.Context, s scenario, cfg vmconfig.Config) (values.Value, *telemetry.Recorder, error) {
	rt, err := buildContext()
	if err != nil {
		return values.Value{}, nil, err
	}
	d := driver.New(s.Unit, rt)
	d.BindConfig(cfg)
	rec := telemetry.NewRecorder()
	d.BindTelemetry(rec)

	val, err := d.Call(ctx, s.Entrypoint, s.Args)
	return val, rec, err
}

// describeValue renders an inline-kind value directly and falls back to
// printing the kind name for handle-carrying kinds, since dereferencing
// those needs the heap store runScenario's driver.Vm keeps private to
// itself once the call returns.
func describeValue(val values.Value) string {
	switch val.Kind {
	case values.KindUnit:
		return "()"
	case values.KindBool:
		b, _ := val.AsBool()
		return fmt.Sprintf("%v", b)
	case values.KindByte:
		return fmt.Sprintf("%v", val.Data)
	case values.KindChar:
		return fmt.Sprintf("%c", val.Data)
	case values.KindInteger:
		i, _ := val.AsInteger()
		return fmt.Sprintf("%d", i)
	case values.KindFloat:
		f, _ := val.AsFloat()
		return fmt.Sprintf("%g", f)
	default:
		return fmt.Sprintf("<%s>", val.Kind)
	}
}

// terminalWidth picks a reasonable column width for disasm output: wider
// when stdout is an interactive terminal, a conservative default when
// piped to a file or another program.
func terminalWidth() int {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return 100
	}
	return 80
}

// newLineScanner wraps r for the piped (non-TTY) REPL fallback, where
// chzyer/readline's terminal control sequences would otherwise corrupt
// output that isn't going to a real terminal.
func newLineScanner(r io.Reader) *bufio.Scanner {
	return bufio.NewScanner(r)
}
