// Package config loads the YAML build configuration used by the carfob tool.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/carfob/carfob-go/pkg/layout"
	"github.com/carfob/carfob-go/pkg/persistence"
)

// ErrInvalidConfig is returned by Validate and Load for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the settings for a build invocation.
type Config struct {
	// FillByte is written to every unpopulated image byte.
	FillByte FillByte `yaml:"fill_byte"`

	// SecretsDir holds the raw and PEM key files.
	SecretsDir string `yaml:"secrets_dir"`

	// OutputDir is where images are written when an output path is relative.
	OutputDir string `yaml:"output_dir"`

	// Registry is the SQLite registry path. Empty disables the registry.
	Registry string `yaml:"registry"`

	// AuditLog is the CBOR audit log path. Empty disables the audit file.
	AuditLog string `yaml:"audit_log"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		FillByte:   FillByte(layout.DefaultFillByte),
		SecretsDir: "secrets",
		OutputDir:  ".",
		LogLevel:   "info",
	}
}

// Load reads a YAML file over the defaults. An empty path returns Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return persistence.WriteFileAtomic(path, data, 0644)
}

// Validate checks that all fields are usable.
func (c *Config) Validate() error {
	if c.SecretsDir == "" {
		return fmt.Errorf("%w: secrets_dir is empty", ErrInvalidConfig)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level. Invalid levels map to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// OutputPath resolves name against OutputDir unless it is absolute.
func (c *Config) OutputPath(name string) string {
	if filepath.IsAbs(name) || c.OutputDir == "" {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
}

// FillByte is a byte that accepts either an integer or a hex string in YAML.
type FillByte byte

// ParseFillByte parses "0xFF", "ff", or a decimal integer 0-255.
func ParseFillByte(s string) (FillByte, error) {
	s = strings.TrimSpace(s)
	base := 10
	if t, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		s, base = t, 16
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: fill_byte %q", ErrInvalidConfig, s)
	}
	return FillByte(v), nil
}

// Byte returns the fill value.
func (f FillByte) Byte() byte { return byte(f) }

// String returns the value as 0xNN.
func (f FillByte) String() string { return fmt.Sprintf("0x%02X", byte(f)) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FillByte) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: fill_byte must be a scalar", ErrInvalidConfig)
	}
	v, err := ParseFillByte(value.Value)
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f FillByte) MarshalYAML() (any, error) {
	return f.String(), nil
}
