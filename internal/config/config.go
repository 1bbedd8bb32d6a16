// Package config loads the optional volley.yml configuration file.
//
// Everything in it has a sensible default, so the file only exists for runs
// that want different party names, a different module, or a longer rally.
// Connection parameters (host, port) are deliberately not part of the file;
// they come from command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory
// when no --config flag is given.
const DefaultFile = "volley.yml"

// Config represents the top-level volley.yml configuration.
type Config struct {
	// Ledger is the ledger namespace all keys and channels live under.
	Ledger string `yaml:"ledger,omitempty"`

	// ApplicationID scopes command submissions.
	ApplicationID string `yaml:"application_id,omitempty"`

	// Parties are the two rally participants. The first party seeds toward
	// the second and vice versa.
	Parties []string `yaml:"parties,omitempty"`

	// Module is the dotted name of the module defining Ping and Pong,
	// e.g. "PingPong" or "Examples.PingPong".
	Module string `yaml:"module,omitempty"`

	// InitialContracts is how many Ping contracts each party seeds.
	InitialContracts int `yaml:"initial_contracts,omitempty"`

	// RunFor is how long the rally runs before the process exits,
	// as a Go duration string ("5s", "2m").
	RunFor string `yaml:"run_for,omitempty"`
}

// Default returns the configuration the original example hard-coded:
// parties Alice and Bob, application id PingPongApp, module PingPong,
// 10 initial contracts each, a 5 second run.
func Default() *Config {
	return &Config{
		Ledger:           "sandbox",
		ApplicationID:    "PingPongApp",
		Parties:          []string{"Alice", "Bob"},
		Module:           "PingPong",
		InitialContracts: 10,
		RunFor:           "5s",
	}
}

// Load reads a config file and fills in defaults for omitted fields.
// With an empty path, the default file is used if present and pure defaults
// otherwise. An explicit path that doesn't exist is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Ledger == "" {
		c.Ledger = d.Ledger
	}
	if c.ApplicationID == "" {
		c.ApplicationID = d.ApplicationID
	}
	if len(c.Parties) == 0 {
		c.Parties = d.Parties
	}
	if c.Module == "" {
		c.Module = d.Module
	}
	if c.InitialContracts == 0 {
		c.InitialContracts = d.InitialContracts
	}
	if c.RunFor == "" {
		c.RunFor = d.RunFor
	}
}

// Validate performs strict validation on the configuration.
func (c *Config) Validate() error {
	if len(c.Parties) != 2 {
		return fmt.Errorf("exactly two parties are required, got %d", len(c.Parties))
	}
	for i, p := range c.Parties {
		if p == "" {
			return fmt.Errorf("party %d has an empty name", i)
		}
	}
	if c.Parties[0] == c.Parties[1] {
		return fmt.Errorf("parties must be distinct, both are %q", c.Parties[0])
	}

	for _, seg := range c.ModuleName() {
		if seg == "" {
			return fmt.Errorf("module name %q has an empty segment", c.Module)
		}
	}

	if c.InitialContracts < 0 {
		return fmt.Errorf("initial_contracts must be >= 0, got %d", c.InitialContracts)
	}

	if _, err := c.RunDuration(); err != nil {
		return err
	}

	return nil
}

// ModuleName returns the module's dotted name split into segments.
func (c *Config) ModuleName() []string {
	return strings.Split(c.Module, ".")
}

// RunDuration parses the run_for field.
func (c *Config) RunDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.RunFor)
	if err != nil {
		return 0, fmt.Errorf("invalid run_for %q: %w", c.RunFor, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("run_for must be positive, got %s", c.RunFor)
	}
	return d, nil
}
