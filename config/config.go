// Package config loads the settings of the upgrade tooling from a TOML or
// YAML file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/andreyvit/infolist/archive"
	"github.com/andreyvit/infolist/upgrade"
)

type Config struct {
	// DataDir holds the upgrade files.
	DataDir string `toml:"data-dir" yaml:"data-dir"`

	// Name is the default upgrade file name, without the suffix.
	Name string `toml:"name" yaml:"name"`

	Sync      bool   `toml:"sync" yaml:"sync"`
	Mmap      bool   `toml:"mmap" yaml:"mmap"`
	Signature string `toml:"signature" yaml:"signature"`

	Archive Archive `toml:"archive" yaml:"archive"`
	Log     Log     `toml:"log" yaml:"log"`
}

type Archive struct {
	// Path of the bbolt database; archiving is off when empty.
	Path string `toml:"path" yaml:"path"`
	Keep int    `toml:"keep" yaml:"keep"`
}

type Log struct {
	Level  string `toml:"level" yaml:"level"`   // debug, info, warn or error
	Format string `toml:"format" yaml:"format"` // text or json
}

func Default() *Config {
	return &Config{
		DataDir: ".",
		Name:    "core",
		Archive: Archive{Keep: 10},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load reads the file at path on top of Default, picking the syntax by
// extension (.toml, .yaml or .yml).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	if c.Name == "" || strings.ContainsAny(c.Name, `/\`) {
		return fmt.Errorf("invalid name %q", c.Name)
	}
	if c.Archive.Keep < 0 {
		return fmt.Errorf("archive.keep must not be negative, got %d", c.Archive.Keep)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return lvl, nil
}

// Logger builds a logger writing to w. An invalid level falls back to info.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	lvl, _ := c.level()
	opt := &slog.HandlerOptions{Level: lvl}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opt))
	}
	return slog.New(slog.NewTextHandler(w, opt))
}

// UpgradePath returns the path of the default upgrade file.
func (c *Config) UpgradePath() string {
	return upgrade.FileName(c.DataDir, c.Name)
}

func (c *Config) UpgradeOptions(logger *slog.Logger) upgrade.Options {
	return upgrade.Options{
		Logger:    logger,
		Signature: c.Signature,
		Sync:      c.Sync,
		Mmap:      c.Mmap,
	}
}

func (c *Config) ArchiveOptions(logger *slog.Logger) archive.Options {
	return archive.Options{
		Keep:   c.Archive.Keep,
		Logger: logger,
	}
}
