// Package config loads harness.toml, the optional per-project manifest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest looked up from the working directory upwards.
const FileName = "harness.toml"

// Manifest is a loaded harness.toml.
type Manifest struct {
	Path   string
	Root   string
	Config Config
}

// Config is the effective configuration. Zero value is the default.
type Config struct {
	Run    RunConfig    `toml:"run"`
	Report ReportConfig `toml:"report"`
}

type RunConfig struct {
	Timeout  Duration `toml:"timeout"`
	Isolate  bool     `toml:"isolate"`
	FailFast bool     `toml:"fail_fast"`
	Filter   []string `toml:"filter"`
}

type ReportConfig struct {
	Store bool   `toml:"store"`
	Dir   string `toml:"dir"`
}

// Duration decodes "30s"-style strings. "" and "0" mean no timeout.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" || s == "0" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %q", s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used without a manifest.
func Default() Config {
	return Config{Report: ReportConfig{Store: true}}
}

// Find walks up from startDir looking for harness.toml.
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

// Load finds and loads the manifest for startDir. The bool is false when no
// manifest exists; the returned manifest then carries Default().
func Load(startDir string) (*Manifest, bool, error) {
	p, ok, err := Find(startDir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return &Manifest{Config: Default()}, false, nil
	}
	m, err := LoadFile(p)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// LoadFile decodes and validates the manifest at p.
func LoadFile(p string) (*Manifest, error) {
	// #nosec G304 -- the manifest path is chosen by the user
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	root := filepath.Dir(p)
	cfg, err := Parse(data, root)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return &Manifest{Path: p, Root: root, Config: cfg}, nil
}

// Parse decodes manifest bytes on top of Default(). Relative paths are
// resolved against root.
func Parse(data []byte, root string) (Config, error) {
	cfg := Default()
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if meta.IsDefined("run", "filter") {
		for _, pat := range cfg.Run.Filter {
			if _, err := path.Match(pat, ""); err != nil {
				return Config{}, fmt.Errorf("[run].filter: bad pattern %q: %w", pat, err)
			}
		}
	}
	if meta.IsDefined("report", "dir") && cfg.Report.Dir != "" && !filepath.IsAbs(cfg.Report.Dir) {
		cfg.Report.Dir = filepath.Join(root, filepath.FromSlash(cfg.Report.Dir))
	}
	return cfg, nil
}
