// Package manifest handles xmr.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/xmr/vm"
)

// FileName is the name of the project file.
const FileName = "xmr.toml"

// Manifest represents an xmr.toml project configuration.
type Manifest struct {
	Project Project   `toml:"project"`
	Limits  vm.Config `toml:"limits"`
	Cache   Cache     `toml:"cache"`
	Log     Log       `toml:"log"`
	Build   Build     `toml:"build"`

	// Dir is the directory containing the xmr.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`

	// Sources lists script files, directories (every *.lsl inside) or
	// glob patterns, relative to Dir.
	Sources []string `toml:"sources"`
}

// Cache configures the compiled-object cache.
type Cache struct {
	Path    string `toml:"path"`
	Enabled bool   `toml:"enabled"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Build configures compilation.
type Build struct {
	Jobs   int    `toml:"jobs"`
	Output string `toml:"output"`
}

// Default returns the configuration used when no xmr.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	def := vm.DefaultConfig()
	if m.Limits.StackSize <= 0 {
		m.Limits.StackSize = def.StackSize
	}
	if m.Limits.MaxFrames <= 0 {
		m.Limits.MaxFrames = def.MaxFrames
	}
	if m.Limits.MaxQueue <= 0 {
		m.Limits.MaxQueue = def.MaxQueue
	}
	if len(m.Project.Sources) == 0 {
		m.Project.Sources = []string{"."}
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".xmr", "cache.db")
	}
	if m.Build.Jobs <= 0 {
		m.Build.Jobs = 4
	}
	if m.Build.Output == "" {
		m.Build.Output = "."
	}
}

// Load parses an xmr.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an xmr.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
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

// VMConfig returns the instance limits.
func (m *Manifest) VMConfig() vm.Config {
	return m.Limits
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.abs(m.Cache.Path)
}

// OutputDir returns the absolute directory object files are written to.
func (m *Manifest) OutputDir() string {
	return m.abs(m.Build.Output)
}

// LogFile returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	if m.Log.File == "" {
		return ""
	}
	return m.abs(m.Log.File)
}

func (m *Manifest) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
