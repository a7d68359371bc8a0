// Package manifest handles lamb.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/chazu/lamb/vm"
)

// FileName is the manifest file looked up in project directories.
const FileName = "lamb.toml"

// SourceExt is the extension of Lamb source files.
const SourceExt = ".lamb"

// Manifest represents a lamb.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	Source  Source    `toml:"source"`
	VM      VMConfig  `toml:"vm"`
	Build   Build     `toml:"build"`
	Log     LogConfig `toml:"log"`

	// Dir is the directory containing the lamb.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations. Files, when set, are compiled
// in the listed order; otherwise every .lamb file in Dirs is, sorted by
// path.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

// VMConfig tunes the virtual machine.
type VMConfig struct {
	GCThreshold int  `toml:"gc-threshold"`
	StackLimit  int  `toml:"stack-limit"`
	Trace       bool `toml:"trace"`
}

// Build configures compiled output.
type Build struct {
	Output string `toml:"output"`
	Cache  string `toml:"cache"` // SQLite compile cache; empty disables it
}

// LogConfig configures logging verbosity and destination.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a lamb.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if m.VM.GCThreshold == 0 {
		m.VM.GCThreshold = vm.DefaultGCThreshold
	}
	if m.VM.StackLimit == 0 {
		m.VM.StackLimit = vm.DefaultStackLimit
	}
	if m.Build.Output == "" {
		name := m.Project.Name
		if name == "" {
			name = filepath.Base(m.Dir)
		}
		m.Build.Output = name + ".lambc"
	}
}

func (m *Manifest) validate() error {
	if m.VM.GCThreshold < 0 {
		return fmt.Errorf("vm.gc-threshold must be positive, got %d", m.VM.GCThreshold)
	}
	if m.VM.StackLimit < 0 {
		return fmt.Errorf("vm.stack-limit must be positive, got %d", m.VM.StackLimit)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a lamb.toml file,
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

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// SourceFiles returns the absolute paths of the project's source files in
// compilation order.
func (m *Manifest) SourceFiles() ([]string, error) {
	if len(m.Source.Files) > 0 {
		files := make([]string, len(m.Source.Files))
		for i, f := range m.Source.Files {
			files[i] = filepath.Join(m.Dir, f)
		}
		return files, nil
	}

	var files []string
	for _, dir := range m.SourceDirPaths() {
		matches, err := filepath.Glob(filepath.Join(dir, "*"+SourceExt))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// OutputPath returns the absolute path of the bundle written by build.
func (m *Manifest) OutputPath() string {
	return m.resolve(m.Build.Output)
}

// CachePath returns the absolute path of the compile cache, or "" when the
// cache is disabled.
func (m *Manifest) CachePath() string {
	if m.Build.Cache == "" {
		return ""
	}
	return m.resolve(m.Build.Cache)
}

// LogFile returns the absolute log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.resolve(m.Log.File)
	return &path
}

// VMOptions converts the [vm] table to VM options.
func (m *Manifest) VMOptions() vm.Options {
	return vm.Options{
		GCThreshold: m.VM.GCThreshold,
		StackLimit:  m.VM.StackLimit,
		Trace:       m.VM.Trace,
	}
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
