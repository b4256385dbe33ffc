// Stackowey CLI - runs Stackowey playfields from files
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/chazu/stackowey/manifest"
	"github.com/chazu/stackowey/server"
	"github.com/chazu/stackowey/vm"
	"github.com/chazu/stackowey/vm/trace"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("stackowey")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	debug       bool
	maxSteps    int
	lenient     bool
	interactive bool
	input       string
	traceOut    string
	dumpTrace   string
	disasm      bool
	lsp         bool
	initConfig  bool
	verbosity   int

	set map[string]bool // flags given explicitly
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	fs := flag.NewFlagSet("stackowey", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.BoolVar(&o.debug, "d", false, "Debug: trace every step and print the trace log to stderr")
	fs.IntVar(&o.maxSteps, "n", -1, "Maximum number of steps (-1 for no limit)")
	fs.BoolVar(&o.lenient, "lenient", false, "Pad short rows instead of rejecting ragged playfields")
	fs.BoolVar(&o.interactive, "i", false, "Read input from stdin when the queue runs dry")
	fs.StringVar(&o.input, "input", "", "Input text queued before running (lines separated by \\n)")
	fs.StringVar(&o.traceOut, "trace-out", "", "Write a CBOR trace record to this path")
	fs.StringVar(&o.dumpTrace, "dump-trace", "", "Print the CBOR trace record at this path and exit")
	fs.BoolVar(&o.disasm, "disasm", false, "Print the playfield listing and exit")
	fs.BoolVar(&o.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&o.initConfig, "init", false, "Write a default "+manifest.FileName+" in the current directory")
	fs.IntVar(&o.verbosity, "v", 0, "Log verbosity (-4 to 2)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: stackowey [options] [file]\n\n")
		fmt.Fprintf(stderr, "Runs a Stackowey playfield. Without a file, the program named in\n")
		fmt.Fprintf(stderr, "%s is used.\n\n", manifest.FileName)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  stackowey hello.sw                  # Run a program\n")
		fmt.Fprintf(stderr, "  stackowey -i cat.sw                 # Feed stdin to ? as it is needed\n")
		fmt.Fprintf(stderr, "  stackowey -d -n 100 loop.sw         # Trace the first 100 steps\n")
		fmt.Fprintf(stderr, "  stackowey -trace-out run.cbor a.sw  # Record the run\n")
		fmt.Fprintf(stderr, "  stackowey -dump-trace run.cbor      # Inspect a recorded run\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	o.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, fs.Args(), nil
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, paths, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	commonlog.Configure(o.verbosity, nil)

	switch {
	case o.initConfig:
		if err := manifest.Write(".", manifest.Default()); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	case o.dumpTrace != "":
		return dumpTrace(o.dumpTrace, stdout, stderr)
	case o.lsp:
		return serveLSP(o)
	}

	m, path, err := resolveProgram(paths)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg := merge(m, o)

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	opts := []vm.Option{
		vm.WithLenient(cfg.Run.Lenient),
		vm.WithTrace(cfg.Trace.Enabled),
		vm.WithPrompt(cfg.Run.Prompt),
	}
	if cfg.Run.Echo {
		opts = append(opts, vm.WithEcho(stdout))
	}
	if cfg.Run.Interactive {
		reader, release := newLineReader(stdin)
		defer release()
		opts = append(opts, vm.WithLineReader(reader))
	}

	interp, err := vm.New(string(source), opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return exitCode(err)
	}

	if o.disasm {
		fmt.Fprint(stdout, interp.Playfield().Disassemble())
		return 0
	}

	if text := cfg.InputText(); text != "" {
		interp.QueueInput(text)
	}
	if o.input != "" {
		interp.QueueInput(o.input)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Infof("running %s (max steps %d)", path, cfg.Run.MaxSteps)
	steps, runErr := interp.RunContext(ctx, cfg.Run.MaxSteps)
	log.Infof("stopped after %d steps, halted=%t", steps, interp.Halted())

	if !cfg.Run.Echo {
		fmt.Fprint(stdout, interp.TakeOutput())
	}
	if o.debug {
		fmt.Fprintln(stderr, interp.TraceLog())
	}
	if out := cfg.TraceOutputPath(); out != "" {
		if err := writeTrace(out, interp); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			if runErr == nil {
				return 1
			}
		}
	}

	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return exitCode(runErr)
	}
	if !interp.Halted() {
		log.Noticef("step limit reached before the program halted")
	}
	return 0
}

// resolveProgram finds the program to run and the manifest that applies to
// it. With no path argument the manifest's program is used.
func resolveProgram(paths []string) (*manifest.Manifest, string, error) {
	switch len(paths) {
	case 0:
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			return nil, "", err
		}
		if m == nil || m.ProgramPath() == "" {
			return nil, "", fmt.Errorf("no program given and no run.program in %s", manifest.FileName)
		}
		return m, m.ProgramPath(), nil
	case 1:
		m, err := manifest.FindAndLoad(filepath.Dir(paths[0]))
		if err != nil {
			return nil, "", err
		}
		if m == nil {
			m = manifest.Default()
		}
		return m, paths[0], nil
	default:
		return nil, "", fmt.Errorf("expected one program, got %d", len(paths))
	}
}

// merge applies explicitly given flags on top of the manifest.
func merge(m *manifest.Manifest, o *options) *manifest.Manifest {
	cfg := *m
	if o.set["n"] {
		cfg.Run.MaxSteps = o.maxSteps
	}
	if o.set["lenient"] {
		cfg.Run.Lenient = o.lenient
	}
	if o.set["i"] {
		cfg.Run.Interactive = o.interactive
	}
	if o.debug {
		cfg.Trace.Enabled = true
	}
	if o.traceOut != "" {
		abs, err := filepath.Abs(o.traceOut)
		if err != nil {
			abs = o.traceOut
		}
		cfg.Trace.Output = abs
	}
	return &cfg
}

func writeTrace(path string, interp *vm.Interpreter) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create trace file: %w", err)
	}
	if err := trace.Write(f, trace.NewRecord(interp)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func dumpTrace(path string, stdout, stderr io.Writer) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	r, err := trace.Read(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
		return 1
	}
	fmt.Fprint(stdout, trace.Format(r))
	return 0
}

func serveLSP(o *options) int {
	interp, err := vm.New(vm.DefaultProgram)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	maxSteps := -1
	if o.set["n"] {
		maxSteps = o.maxSteps
	}
	if err := server.NewLSP(interp, maxSteps).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Language server error: %v\n", err)
		return 1
	}
	return 0
}

// exitCode maps an error to the process exit status: 130 for an interrupt,
// the interpreter error code when there is one, and 1 otherwise. Ctrl-C at
// the liner prompt arrives as a read error wrapping ErrPromptAborted.
func exitCode(err error) int {
	var verr *vm.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, liner.ErrPromptAborted):
		return 130
	case errors.As(err, &verr):
		return verr.Kind.Code()
	default:
		return 1
	}
}
