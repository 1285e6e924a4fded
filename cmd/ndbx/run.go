package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/ndbx/cache"
	"github.com/chazu/ndbx/pkg/bytecode"
	"github.com/chazu/ndbx/pkg/network"
	"github.com/chazu/ndbx/pkg/svg"
	"github.com/chazu/ndbx/pkg/value"
)

// errReported marks a failure whose details were already written to the
// runner's output.
var errReported = errors.New("run failed")

// ProgramExt is the file extension of serialized programs.
const ProgramExt = ".ndbc"

type options struct {
	input    string
	svgPath  string
	outPath  string
	disasm   bool
	frame    int32
	maxSteps int
	trace    bool
	history  int
}

// runner carries one CLI invocation through load, compile and run. It is
// reused across runs in watch mode.
type runner struct {
	opts  options
	out   io.Writer
	cache *cache.Cache // nil when caching is off
}

func (r *runner) run(ctx context.Context) error {
	var (
		program *bytecode.CompiledNetwork
		name    string
		hash    [32]byte
		hashed  bool
		labels  map[string]int
		err     error
	)

	if strings.EqualFold(filepath.Ext(r.opts.input), ProgramExt) {
		data, err := os.ReadFile(r.opts.input)
		if err != nil {
			return fmt.Errorf("cannot read %s: %w", r.opts.input, err)
		}
		if program, err = bytecode.Deserialize(data); err != nil {
			return fmt.Errorf("%s: %w", r.opts.input, err)
		}
		name = filepath.Base(r.opts.input)
	} else {
		n, err := network.Load(r.opts.input)
		if err != nil {
			return err
		}
		if err := n.Validate(); err != nil {
			return fmt.Errorf("invalid network %s:\n%w", r.opts.input, err)
		}
		name = n.Name

		if r.opts.svgPath != "" {
			if err := writeFile(r.opts.svgPath, []byte(svg.Document(n))); err != nil {
				return err
			}
			log.Infof("wrote %s", r.opts.svgPath)
		}

		if hash, err = n.Hash(); err != nil {
			return err
		}
		hashed = true
		if program, labels, err = r.compile(ctx, n, hash); err != nil {
			return err
		}
	}

	if r.opts.disasm {
		fmt.Fprint(r.out, program.DisassembleWithLabels(name, labels))
		fmt.Fprintln(r.out)
	}

	if r.opts.outPath != "" {
		data, err := program.Serialize()
		if err != nil {
			return err
		}
		if err := writeFile(r.opts.outPath, data); err != nil {
			return err
		}
		log.Infof("wrote %s (%d bytes)", r.opts.outPath, len(data))
	}

	vm := bytecode.NewVMFromProgram(program)
	vm.Frame = r.opts.frame
	vm.MaxSteps = r.opts.maxSteps
	vm.Trace = r.opts.trace

	runErr := vm.Run()
	stack := vm.Stack()

	if r.cache != nil && hashed {
		if _, err := r.cache.RecordRun(ctx, hash, stack, runErr); err != nil {
			log.Warningf("cannot record run: %v", err)
		}
	}

	if runErr != nil {
		fmt.Fprintf(r.out, "error: %v\n", runErr)
		printStack(r.out, "partial stack", stack)
		err = errReported
	} else {
		printStack(r.out, "stack", stack)
		if top, ok := vm.Top(); ok {
			fmt.Fprintf(r.out, "result: %s\n", top)
		}
	}

	if r.opts.history > 0 && r.cache != nil && hashed {
		if herr := r.printHistory(ctx, hash); herr != nil {
			log.Warningf("cannot read run history: %v", herr)
		}
	}

	return err
}

// compile returns the program for n, from the cache when possible. Labels
// are only known for freshly compiled programs.
func (r *runner) compile(ctx context.Context, n *network.Network, hash [32]byte) (*bytecode.CompiledNetwork, map[string]int, error) {
	if r.cache != nil {
		program, found, err := r.cache.Get(ctx, hash)
		if err != nil {
			log.Warningf("cache lookup failed: %v", err)
		} else if found {
			log.Debugf("cache hit for %q (%s)", n.Name, hex.EncodeToString(hash[:6]))
			return program, nil, nil
		}
	}

	c := bytecode.NewCompiler(n)
	program, err := c.Compile()
	if err != nil {
		return nil, nil, err
	}

	if r.cache != nil {
		if err := r.cache.Put(ctx, hash, n.Name, program); err != nil {
			log.Warningf("cannot cache program: %v", err)
		}
	}
	return program, c.Labels(), nil
}

func (r *runner) printHistory(ctx context.Context, hash [32]byte) error {
	runs, err := r.cache.Runs(ctx, hash, r.opts.history)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "history (%d):\n", len(runs))
	for _, run := range runs {
		outcome := "ok"
		if run.Error != "" {
			outcome = run.Error
		}
		top := "-"
		if len(run.Stack) > 0 {
			top = run.Stack[len(run.Stack)-1].String()
		}
		fmt.Fprintf(r.out, "  %s  %s  %s  %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"), run.ID, top, outcome)
	}
	return nil
}

func printStack(w io.Writer, label string, stack []value.Value) {
	if len(stack) == 0 {
		fmt.Fprintf(w, "%s: empty\n", label)
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", label, len(stack))
	for i, v := range stack {
		fmt.Fprintf(w, "  [%d] %s\n", i, v)
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cannot create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}
