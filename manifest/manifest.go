// Package manifest handles ndbx.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked up in a project directory.
const FileName = "ndbx.toml"

// DefaultFrame is the frame number reported by Frame nodes when [vm] does
// not set one.
const DefaultFrame int32 = 42

// DefaultCachePath is the cache database location, relative to the
// manifest directory.
const DefaultCachePath = ".ndbx/cache.db"

// Manifest represents an ndbx.toml project configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	Network NetworkInput `toml:"network"`
	Output  Output       `toml:"output"`
	VM      VMConfig     `toml:"vm"`
	Cache   CacheConfig  `toml:"cache"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the ndbx.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// NetworkInput names the network file to compile.
type NetworkInput struct {
	Path string `toml:"path"`
}

// Output configures generated artifacts. Empty paths disable the output.
type Output struct {
	SVG     string `toml:"svg"`
	Program string `toml:"program"`
}

// VMConfig configures execution.
type VMConfig struct {
	Frame    int32 `toml:"frame"`
	MaxSteps int   `toml:"max-steps"`
	Trace    bool  `toml:"trace"`
}

// CacheConfig configures the compiled program cache.
type CacheConfig struct {
	Path     string `toml:"path"`
	Disabled bool   `toml:"disabled"`
}

// LogConfig configures the log backend.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no ndbx.toml exists,
// rooted at dir.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return &Manifest{
		VM:    VMConfig{Frame: DefaultFrame},
		Cache: CacheConfig{Path: DefaultCachePath},
		Dir:   abs,
	}, nil
}

// Load parses an ndbx.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Default(dir)
	if err != nil {
		return nil, err
	}
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	// Defaults
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if m.VM.MaxSteps < 0 {
		return nil, fmt.Errorf("%s: vm.max-steps must not be negative, got %d", path, m.VM.MaxSteps)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find an ndbx.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// resolve returns p relative to the manifest directory. Empty and
// absolute paths are returned unchanged.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// NetworkPath returns the absolute path of the network file, or "".
func (m *Manifest) NetworkPath() string {
	return m.resolve(m.Network.Path)
}

// SVGPath returns the absolute path of the SVG output, or "".
func (m *Manifest) SVGPath() string {
	return m.resolve(m.Output.SVG)
}

// ProgramPath returns the absolute path of the .ndbc output, or "".
func (m *Manifest) ProgramPath() string {
	return m.resolve(m.Output.Program)
}

// CachePath returns the cache database path, or "" when caching is
// disabled. ":memory:" is passed through.
func (m *Manifest) CachePath() string {
	if m.Cache.Disabled {
		return ""
	}
	if m.Cache.Path == ":memory:" {
		return m.Cache.Path
	}
	return m.resolve(m.Cache.Path)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	return m.resolve(m.Log.File)
}

// Write encodes m as TOML to dir/ndbx.toml, replacing any existing file.
func (m *Manifest) Write(dir string) error {
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}
