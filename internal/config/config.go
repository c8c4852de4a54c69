// Package config loads the driver configuration from TOML.
//
//	[target]
//	name = "x64-linux"
//	version = "^1.0"
//
//	[optimize]
//	passes = ["localopt", "algsimp", "tdce"]
//
//	[codegen]
//	parallelism = 4
//	verify = true
//	dump_ir = false
//
//	[log]
//	level = "info"
package config

import (
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/opt"
)

// Config is the whole driver configuration.
type Config struct {
	Target   TargetConfig   `toml:"target"`
	Optimize OptimizeConfig `toml:"optimize"`
	Codegen  CodegenConfig  `toml:"codegen"`
	Log      LogConfig      `toml:"log"`
}

type TargetConfig struct {
	// Name is "arch-system", see ir.ParseTarget.
	Name string `toml:"name"`
	// Version is a semver constraint on the backend version. Empty picks
	// the newest registered backend.
	Version string `toml:"version"`
}

type OptimizeConfig struct {
	// Passes run in order. An empty list disables optimization.
	Passes []string `toml:"passes"`
}

type CodegenConfig struct {
	Parallelism int  `toml:"parallelism"`
	Verify      bool `toml:"verify"`
	DumpIR      bool `toml:"dump_ir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

var levels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true,
	"error": true, "fatal": true, "panic": true,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Target:   TargetConfig{Name: "xr17032-none"},
		Optimize: OptimizeConfig{Passes: append([]string(nil), opt.DefaultSequence...)},
		Codegen:  CodegenConfig{Verify: true},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads and validates the file at path. Keys missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config")
	}

	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}

	return c, nil
}

// Parse decodes and validates TOML text on top of Default.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Validate checks every field that names something: the target, the
// version constraint, the passes and the log level.
func (c *Config) Validate() error {
	if _, err := c.ParsedTarget(); err != nil {
		return err
	}

	if c.Target.Version != "" {
		if _, err := semver.NewConstraint(c.Target.Version); err != nil {
			return errors.InvalidConfig("target.version", "%v", err)
		}
	}

	known := make(map[string]bool)
	for _, n := range opt.Names() {
		known[n] = true
	}

	for _, p := range c.Optimize.Passes {
		if !known[p] {
			return errors.InvalidConfig("optimize.passes", "unknown pass %q", p)
		}
	}

	if c.Codegen.Parallelism < 0 {
		return errors.InvalidConfig("codegen.parallelism", "must not be negative, got %d", c.Codegen.Parallelism)
	}

	if !levels[c.Log.Level] {
		return errors.InvalidConfig("log.level", "unknown level %q", c.Log.Level)
	}

	return nil
}

// ParsedTarget returns the target descriptor named by the configuration.
func (c *Config) ParsedTarget() (ir.Target, error) {
	t, err := ir.ParseTarget(c.Target.Name)
	if err != nil {
		return ir.Target{}, errors.Wrap(err, "target.name")
	}

	return t, nil
}

// String renders the configuration back to TOML.
func (c *Config) String() string {
	b, err := toml.Marshal(c)
	if err != nil {
		return err.Error()
	}

	return string(b)
}
