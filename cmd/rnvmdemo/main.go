// Command rnvmdemo is the embedder demo host (spec SPEC_FULL §4.9): a
// small CLI that assembles a Runtime Context over the nativemodule/{db,
// crypto,ids} extensions, hand-builds a handful of canned Units (no
// compiler exists in this repo, per spec §1) and drives them through
// driver.Vm, the same embedder-facing surface a real host would call.
//
// The Command/sub-Command layout with one *cli.Command variable per verb
// mirrors the teacher's cmd/hey main.go and tools.go; the TTY-aware REPL
// (readline when attached to a terminal, a plain line scanner otherwise)
// follows that file's runInteractiveShell, adapted to detect the terminal
// with github.com/mattn/go-isatty instead of assuming one.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/wudi/rnvm/debuginfo"
	"github.com/wudi/rnvm/version"
	"github.com/wudi/rnvm/vmconfig"
)

func main() {
	app := &cli.Command{
		Name:    "rnvmdemo",
		Usage:   "demo embedder host for the rnvm scripting VM core",
		Version: version.Version(),
		Commands: []*cli.Command{
			listCommand,
			runCommand,
			disasmCommand,
			replCommand,
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "rnvmdemo: %v\n", err)
		os.Exit(1)
	}
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "list the canned scenarios this host can run",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		for _, s := range scenarios() {
			fmt.Printf("%-14s %s\n", s.Name, s.Description)
		}
		return nil
	},
}

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "execute a canned scenario to completion",
	ArgsUsage: "<scenario>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to a vmconfig YAML document (defaults used when omitted)",
		},
		&cli.BoolFlag{
			Name:  "telemetry",
			Usage: "print dispatch-loop telemetry after execution",
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		name := cmd.Args().First()
		if name == "" {
			return fmt.Errorf("rnvmdemo run: a scenario name is required (see 'rnvmdemo list')")
		}
		s, err := findScenario(name)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd.String("config"))
		if err != nil {
			return err
		}

		val, rec, err := runScenario(ctx, s, cfg)
		if err != nil {
			return fmt.Errorf("rnvmdemo run %s: %w", name, err)
		}
		fmt.Println(describeValue(val))
		if cmd.Bool("telemetry") {
			fmt.Println(rec.Render())
		}
		return nil
	},
}

var disasmCommand = &cli.Command{
	Name:      "disasm",
	Usage:     "print a scenario's instruction stream and type tables",
	ArgsUsage: "<scenario>",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		name := cmd.Args().First()
		if name == "" {
			return fmt.Errorf("rnvmdemo disasm: a scenario name is required (see 'rnvmdemo list')")
		}
		s, err := findScenario(name)
		if err != nil {
			return err
		}
		width := terminalWidth()
		fmt.Println(strings.Repeat("-", width))
		fmt.Print(debuginfo.Disassemble(s.Unit))
		if types := debuginfo.DumpTypes(s.Unit); types != "" {
			fmt.Println(strings.Repeat("-", width))
			fmt.Print(types)
		}
		return nil
	},
}

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "interactively run scenarios by name",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		return runREPL(ctx)
	},
}

func loadConfig(path string) (vmconfig.Config, error) {
	if path == "" {
		return vmconfig.Default(), nil
	}
	return vmconfig.Load(path)
}

// runREPL drives an interactive loop that runs a named scenario per
// input line. When stdin is a terminal it uses chzyer/readline for
// history and line editing; otherwise (a pipe, a CI harness) it falls
// back to a bare line reader, since readline's terminal control sequences
// would otherwise corrupt non-interactive output.
func runREPL(ctx context.Context) error {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return runPipedREPL(ctx)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rnvm> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("rnvmdemo: init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("rnvm demo REPL. Type a scenario name (see 'list'), or 'quit'.")
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		if !handleREPLLine(ctx, line) {
			return nil
		}
	}
}

func runPipedREPL(ctx context.Context) error {
	scanner := newLineScanner(os.Stdin)
	for scanner.Scan() {
		if !handleREPLLine(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// handleREPLLine runs one REPL command; its bool return tells the caller
// whether to keep looping.
func handleREPLLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return true
	case "quit", "exit":
		return false
	case "list":
		for _, s := range scenarios() {
			fmt.Printf("%-14s %s\n", s.Name, s.Description)
		}
		return true
	}

	s, err := findScenario(line)
	if err != nil {
		fmt.Println(err)
		return true
	}
	val, _, err := runScenario(ctx, s, vmconfig.Default())
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return true
	}
	fmt.Println(describeValue(val))
	return true
}
