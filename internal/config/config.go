// Package config loads tool configuration from the YAML config file and
// TSAR_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OutputFormat selects how graph commands emit their result by default.
type OutputFormat string

const (
	FormatText    OutputFormat = "text"
	FormatJSON    OutputFormat = "json"
	FormatDOT     OutputFormat = "dot"
	FormatMsgpack OutputFormat = "msgpack"
)

// Config holds all configuration for the analyzer CLI.
type Config struct {
	// Output format recorded by the init command. The graph commands do
	// not read it; they choose their output from their own flags.
	Format OutputFormat `yaml:"format" env:"TSAR_FORMAT"`

	// Output directory kept in the config file. The graph commands do not
	// read it; without --out they write to stdout.
	OutputDir string `yaml:"output_dir" env:"TSAR_OUTPUT_DIR"`

	// PDG construction switches.
	SolveReachability bool `yaml:"solve_reachability" env:"TSAR_SOLVE_REACHABILITY"`
	Simplify          bool `yaml:"simplify" env:"TSAR_SIMPLIFY"`
	PiBlocks          bool `yaml:"pi_blocks" env:"TSAR_PI_BLOCKS"`

	// Logging.
	Verbose bool `yaml:"verbose" env:"TSAR_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Format:            FormatText,
		OutputDir:         ".",
		SolveReachability: true,
		Simplify:          true,
		PiBlocks:          true,
		Verbose:           false,
	}
}

// configFilePath returns the default config file path
func configFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tsar/config.yaml"
	}
	return filepath.Join(home, ".tsar", "config.yaml")
}

// Load reads configuration from the YAML file and applies environment
// variable overrides.
func Load() (*Config, error) {
	cfg := DefaultConfig()
	if data, err := os.ReadFile(configFilePath()); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFilePath(), err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the default config file path.
func (c *Config) Save() (string, error) {
	path := configFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing config file %s: %w", path, err)
	}
	return path, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TSAR_FORMAT"); v != "" {
		cfg.Format = OutputFormat(v)
	}
	if v := os.Getenv("TSAR_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("TSAR_SOLVE_REACHABILITY"); v != "" {
		cfg.SolveReachability = isTrue(v)
	}
	if v := os.Getenv("TSAR_SIMPLIFY"); v != "" {
		cfg.Simplify = isTrue(v)
	}
	if v := os.Getenv("TSAR_PI_BLOCKS"); v != "" {
		cfg.PiBlocks = isTrue(v)
	}
	if v := os.Getenv("TSAR_VERBOSE"); v != "" {
		cfg.Verbose = isTrue(v)
	}
}

func isTrue(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}

// Validate checks that the configuration has valid required fields
func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON, FormatDOT, FormatMsgpack:
		// Valid
	default:
		return fmt.Errorf("invalid format: %s (must be text, json, dot or msgpack)", c.Format)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	return nil
}
