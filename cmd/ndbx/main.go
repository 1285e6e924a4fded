// ndbx CLI - compiles node networks to bytecode and runs them
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tliron/commonlog"

	"github.com/chazu/ndbx/cache"
	"github.com/chazu/ndbx/manifest"
	"github.com/chazu/ndbx/watch"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("ndbx")

func main() {
	dir := flag.String("C", ".", "Project directory (searched upwards for ndbx.toml)")
	svgOut := flag.String("svg", "", "Write an SVG diagram of the network to this file")
	disasm := flag.Bool("disasm", false, "Print the compiled bytecode")
	progOut := flag.String("o", "", "Write the compiled program (.ndbc) to this file")
	frame := flag.Int("frame", int(manifest.DefaultFrame), "Frame number reported by Frame nodes")
	maxSteps := flag.Int("max-steps", 0, "Abort after this many instructions (0 = no limit)")
	trace := flag.Bool("trace", false, "Log every executed instruction (needs -v 2)")
	noCache := flag.Bool("no-cache", false, "Compile without reading or writing the program cache")
	history := flag.Int("history", 0, "Print the last N recorded runs of the network")
	watchMode := flag.Bool("watch", false, "Re-run whenever the network file changes")
	verbosity := flag.Int("v", 0, "Log verbosity, added to [log] verbosity")
	initProject := flag.Bool("init", false, "Write a default ndbx.toml into the project directory and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: ndbx [options] [network.json|network.yaml|program.ndbc]\n\n")
		fmt.Fprintf(os.Stderr, "Compiles a node network to bytecode, runs it and prints the final stack.\n")
		fmt.Fprintf(os.Stderr, "Without an argument the network named in ndbx.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  ndbx graph.json                 # Compile and run\n")
		fmt.Fprintf(os.Stderr, "  ndbx -disasm -o out.ndbc g.yaml # Show bytecode and save the program\n")
		fmt.Fprintf(os.Stderr, "  ndbx out.ndbc                   # Run a saved program\n")
		fmt.Fprintf(os.Stderr, "  ndbx -svg g.svg -watch g.json   # Redraw and re-run on every save\n")
	}
	flag.Parse()

	if *initProject {
		if err := writeDefaultManifest(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	m, err := loadManifest(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	configureLogging(m, *verbosity)

	// Manifest values, overridden by flags given on the command line
	opts := options{
		input:    m.NetworkPath(),
		svgPath:  m.SVGPath(),
		outPath:  m.ProgramPath(),
		frame:    m.VM.Frame,
		maxSteps: m.VM.MaxSteps,
		trace:    m.VM.Trace,
		disasm:   *disasm,
		history:  *history,
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "svg":
			opts.svgPath = *svgOut
		case "o":
			opts.outPath = *progOut
		case "frame":
			opts.frame = int32(*frame)
		case "max-steps":
			opts.maxSteps = *maxSteps
		case "trace":
			opts.trace = *trace
		}
	})
	if flag.NArg() > 0 {
		opts.input = flag.Arg(0)
	}
	if opts.input == "" {
		flag.Usage()
		os.Exit(2)
	}

	r := &runner{opts: opts, out: os.Stdout}

	if path := m.CachePath(); path != "" && !*noCache {
		c, err := cache.Open(path)
		if err != nil {
			log.Warningf("program cache disabled: %v", err)
		} else {
			defer c.Close()
			r.cache = c
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*watchMode {
		if err := r.run(ctx); err != nil {
			if !errors.Is(err, errReported) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			stop()
			os.Exit(1)
		}
		return
	}

	// Watch mode: errors are reported and the next change retried
	rerun := func(string) {
		if err := r.run(ctx); err != nil && !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	rerun(opts.input)

	paths := []string{opts.input}
	if m.Dir != "" {
		if manifestPath := filepath.Join(m.Dir, manifest.FileName); fileExists(manifestPath) {
			paths = append(paths, manifestPath)
		}
	}
	if err := watch.New(rerun, paths...).Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadManifest finds ndbx.toml at or above dir, falling back to defaults
// rooted at dir.
func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(dir)
	}
	return m, nil
}

func writeDefaultManifest(dir string) error {
	if fileExists(filepath.Join(dir, manifest.FileName)) {
		return fmt.Errorf("%s already exists in %s", manifest.FileName, dir)
	}
	m, err := manifest.Default(dir)
	if err != nil {
		return err
	}
	m.Project.Name = filepath.Base(m.Dir)
	if err := m.Write(dir); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", filepath.Join(m.Dir, manifest.FileName))
	return nil
}

func configureLogging(m *manifest.Manifest, extra int) {
	var path *string
	if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(m.Log.Verbosity+extra, path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
