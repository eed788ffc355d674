// Package config loads gfxprep.toml, searched upward from a start directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest looked up by Find.
const FileName = "gfxprep.toml"

// Manifest is a decoded config file and the directory it lives in.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config mirrors the sections of gfxprep.toml.
type Config struct {
	Shaders ShadersConfig `toml:"shaders"`
	Depth   DepthConfig   `toml:"depth"`
}

// ShadersConfig holds defaults for `gfxprep shaders`.
type ShadersConfig struct {
	Dir              string   `toml:"dir"`
	VersionDirective string   `toml:"version_directive"`
	Extensions       []string `toml:"extensions"`
	Jobs             int      `toml:"jobs"`
	Cache            bool     `toml:"cache"`
}

// DepthConfig holds defaults for `gfxprep depth`.
type DepthConfig struct {
	Input   string  `toml:"input"`
	Output  string  `toml:"output"`
	Channel string  `toml:"channel"`
	Epsilon float64 `toml:"epsilon"`
}

// Find walks from startDir towards the filesystem root looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load finds and decodes the manifest for startDir. The bool is false when
// no manifest exists, which is not an error.
func Load(startDir string) (*Manifest, bool, error) {
	path, ok, err := Find(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	m, err := LoadFile(path)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// LoadFile decodes the manifest at path. Unknown keys are rejected.
func LoadFile(path string) (*Manifest, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if cfg.Shaders.Jobs < 0 {
		return nil, fmt.Errorf("%s: [shaders].jobs must not be negative", path)
	}
	if cfg.Depth.Epsilon < 0 {
		return nil, fmt.Errorf("%s: [depth].epsilon must not be negative", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &Manifest{Path: abs, Root: filepath.Dir(abs), Config: cfg}, nil
}

// Resolve makes a manifest-relative path absolute. Empty stays empty.
func (m *Manifest) Resolve(p string) string {
	if m == nil || p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, filepath.FromSlash(p))
}
