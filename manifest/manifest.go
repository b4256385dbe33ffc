// Package manifest handles stackowey.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/stackowey/vm"
)

// FileName is the name of the project configuration file.
const FileName = "stackowey.toml"

// Manifest represents a stackowey.toml project configuration.
type Manifest struct {
	Run   RunConfig   `toml:"run"`
	Trace TraceConfig `toml:"trace"`
	Input InputConfig `toml:"input"`

	// Dir is the directory containing the stackowey.toml file (set at load time).
	Dir string `toml:"-"`
}

// RunConfig controls how programs are loaded and executed.
type RunConfig struct {
	Program     string `toml:"program"`
	MaxSteps    int    `toml:"max-steps"`
	Lenient     bool   `toml:"lenient"`
	Interactive bool   `toml:"interactive"`
	Prompt      string `toml:"prompt"`
	Echo        bool   `toml:"echo"`
}

// TraceConfig controls per-step tracing and trace export.
type TraceConfig struct {
	Enabled bool   `toml:"enabled"`
	Output  string `toml:"output"`
}

// InputConfig holds input lines queued before the program starts.
type InputConfig struct {
	Lines []string `toml:"lines"`
}

// Default returns the configuration used when no stackowey.toml exists.
func Default() *Manifest {
	return &Manifest{
		Run: RunConfig{
			MaxSteps: -1,
			Prompt:   vm.DefaultPrompt,
			Echo:     true,
		},
	}
}

// Load parses a stackowey.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	md, err := toml.Decode(string(data), m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if m.Run.MaxSteps < -1 {
		return nil, fmt.Errorf("%s: run.max-steps must be -1 or more, got %d", path, m.Run.MaxSteps)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a stackowey.toml file,
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
			return nil, nil
		}
		dir = parent
	}
}

// Write encodes m as stackowey.toml in dir. An existing file is left alone.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot encode %s: %w", path, err)
	}
	return f.Close()
}

// ProgramPath returns the absolute path of the configured program, or ""
// when none is set.
func (m *Manifest) ProgramPath() string {
	return m.resolve(m.Run.Program)
}

// TraceOutputPath returns the absolute path for trace export, or "" when
// none is set.
func (m *Manifest) TraceOutputPath() string {
	return m.resolve(m.Trace.Output)
}

// InputText returns the configured input lines as one newline-separated
// block, ready to be queued on an interpreter.
func (m *Manifest) InputText() string {
	return strings.Join(m.Input.Lines, "\n")
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
