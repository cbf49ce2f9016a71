// Package config loads fixtura settings from TOML. Every field has a usable
// default, so a config file only needs the values it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/chazu/fixtura/pkg/csg"
	"github.com/chazu/fixtura/pkg/kernel"
	"github.com/chazu/fixtura/pkg/kernel/sdfx"
	"github.com/chazu/fixtura/pkg/support"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "fixtura.toml"

// Shaper names accepted in [kernel].shaper.
const (
	ShaperLoft = "loft"
	ShaperSDFX = "sdfx"
)

// Config is the complete settings tree.
type Config struct {
	Kernel  Kernel          `toml:"kernel"`
	Support support.Options `toml:"support"`
	Script  Script          `toml:"script"`
	Log     Log             `toml:"log"`
}

// Kernel selects the boolean evaluators and primitive generator.
type Kernel struct {
	Name     string `toml:"name"`
	Fallback string `toml:"fallback"`
	Workers  int    `toml:"workers"`
	// Shaper generates cones and rounded cutout primitives: "loft" uses the
	// built-in loft and flat-faced boxes, "sdfx" uses marching cubes.
	Shaper      string  `toml:"shaper"`
	ShaperCells int     `toml:"shaper_cells"`
	ShaperRound float64 `toml:"shaper_round"`
}

// Script bounds fixture script evaluation.
type Script struct {
	Timeout string `toml:"timeout"`
}

// Log configures the global zerolog logger.
type Log struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Kernel: Kernel{
			Name:        "bsp",
			Fallback:    "bsp",
			Shaper:      ShaperLoft,
			ShaperCells: sdfx.DefaultMeshCells,
		},
		Support: support.DefaultOptions(),
		Script:  Script{Timeout: "5s"},
		Log:     Log{Level: "info", Pretty: true},
	}
}

// Load reads path over the defaults. A missing DefaultFile is not an error.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML from r over the defaults. Unknown keys are rejected
// so that typos do not silently fall back to defaults.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Kernel.Name == "" {
		errs = append(errs, errors.New("kernel.name is empty"))
	}
	if c.Kernel.Workers < 0 {
		errs = append(errs, fmt.Errorf("kernel.workers %d is negative", c.Kernel.Workers))
	}
	switch c.Kernel.Shaper {
	case "", ShaperLoft, ShaperSDFX:
	default:
		errs = append(errs, fmt.Errorf("kernel.shaper %q: want %q or %q", c.Kernel.Shaper, ShaperLoft, ShaperSDFX))
	}
	if c.Kernel.ShaperCells < 0 {
		errs = append(errs, fmt.Errorf("kernel.shaper_cells %d is negative", c.Kernel.ShaperCells))
	}
	if c.Support.FilletSegments < 2 {
		errs = append(errs, fmt.Errorf("support.fillet_segments %d: want at least 2", c.Support.FilletSegments))
	}
	if !(c.Support.StripLength > 0) {
		errs = append(errs, fmt.Errorf("support.strip_length %g: want > 0", c.Support.StripLength))
	}
	if !(c.Support.CornerStep > 0) {
		errs = append(errs, fmt.Errorf("support.corner_step %g: want > 0", c.Support.CornerStep))
	}
	if !(c.Support.WeldTolerance > 0) {
		errs = append(errs, fmt.Errorf("support.weld_tolerance %g: want > 0", c.Support.WeldTolerance))
	}
	if _, err := c.ScriptTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ScriptTimeout parses Script.Timeout. Empty means no limit.
func (c Config) ScriptTimeout() (time.Duration, error) {
	if c.Script.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Script.Timeout)
	if err != nil {
		return 0, fmt.Errorf("script.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("script.timeout %s is negative", d)
	}
	return d, nil
}

// Level parses Log.Level. Empty means info.
func (c Config) Level() (zerolog.Level, error) {
	if c.Log.Level == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Shaper returns the configured primitive generator, or nil for the
// built-in loft.
func (c Config) Shaper() kernel.Shaper {
	if c.Kernel.Shaper != ShaperSDFX {
		return nil
	}
	return sdfx.New(c.Kernel.ShaperCells, c.Kernel.ShaperRound)
}

// SupportOptions returns the tessellation options with the configured
// shaper attached.
func (c Config) SupportOptions() support.Options {
	o := c.Support
	o.Shaper = c.Shaper()
	return o
}

// Orchestrator opens the configured kernels and returns orchestrator
// options. An empty fallback disables the synchronous retry.
func (c Config) Orchestrator(l csg.Listener) (csg.Options, error) {
	primary, err := kernel.Open(c.Kernel.Name)
	if err != nil {
		return csg.Options{}, fmt.Errorf("config: kernel.name: %w", err)
	}
	opts := csg.Options{Kernel: primary, Workers: c.Kernel.Workers, Listener: l}
	if c.Kernel.Fallback != "" {
		fb, err := kernel.Open(c.Kernel.Fallback)
		if err != nil {
			return csg.Options{}, fmt.Errorf("config: kernel.fallback: %w", err)
		}
		opts.Fallback = fb
	}
	return opts, nil
}
