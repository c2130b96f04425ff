// Package config loads the optional .lexiscope.toml project file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jward/lexiscope/internal/highlight"
)

// FileName is the name of the project configuration file.
const FileName = ".lexiscope.toml"

// Config is the decoded project configuration.
type Config struct {
	// Path is the file the configuration was read from, "" for defaults.
	Path string `toml:"-"`

	Index       IndexConfig       `toml:"index"`
	Highlight   HighlightConfig   `toml:"highlight"`
	Descriptors DescriptorsConfig `toml:"descriptors"`
}

// IndexConfig is the [index] table.
type IndexConfig struct {
	DB        string   `toml:"db"`
	Languages []string `toml:"languages"`
	Workers   int      `toml:"workers"`
	Parallel  bool     `toml:"parallel"`
}

// HighlightConfig is the [highlight] table.
type HighlightConfig struct {
	// NamedReturns is a policy accepted by highlight.ParseNamedReturns.
	NamedReturns string `toml:"named_returns"`
	// Color is nil when the file leaves it unset, meaning "detect".
	Color *bool `toml:"color"`
}

// DescriptorsConfig is the [descriptors] table.
type DescriptorsConfig struct {
	Dir string `toml:"dir"`
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		Index: IndexConfig{
			DB:       ".lexiscope.db",
			Parallel: true,
		},
		Highlight: HighlightConfig{
			NamedReturns: string(highlight.NamedReturnsLocal),
		},
	}
}

// Find looks for FileName in startDir and its parents.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("config: resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("config: stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Discover loads the nearest configuration file above startDir, or the
// defaults if there is none.
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Load decodes path over the defaults. Relative paths in the file are taken
// relative to the file's directory.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("index", "db") && strings.TrimSpace(cfg.Index.DB) == "" {
		return Config{}, fmt.Errorf("%s: [index].db must not be empty", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	cfg.Path = path
	root := filepath.Dir(path)
	if !filepath.IsAbs(cfg.Index.DB) {
		cfg.Index.DB = filepath.Join(root, cfg.Index.DB)
	}
	if meta.IsDefined("descriptors", "dir") && cfg.Descriptors.Dir != "" && !filepath.IsAbs(cfg.Descriptors.Dir) {
		cfg.Descriptors.Dir = filepath.Join(root, cfg.Descriptors.Dir)
	}
	return cfg, nil
}

// Validate checks values that decoding alone cannot.
func (c Config) Validate() error {
	if _, err := highlight.ParseNamedReturns(c.Highlight.NamedReturns); err != nil {
		return fmt.Errorf("[highlight].named_returns: %w", err)
	}
	if c.Index.Workers < 0 {
		return fmt.Errorf("[index].workers must not be negative, got %d", c.Index.Workers)
	}
	return nil
}
