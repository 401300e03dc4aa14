package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// EnvOr returns $key, or def when unset or empty.
func EnvOr(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func EnvIntOr(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return def
}

func EnvDurationOr(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return def
}

// Overrides applies flags that were set explicitly on the command line on
// top of a loaded config. Unset flags leave the file values alone.
type Overrides struct {
	fs  *flag.FlagSet
	set []func(*Config)
}

func NewOverrides(fs *flag.FlagSet) *Overrides {
	return &Overrides{fs: fs}
}

// Int registers an int flag bound to a config field.
func (o *Overrides) Int(name, usage string, field func(*Config) *int) {
	v := o.fs.Int(name, 0, usage)
	o.set = append(o.set, func(c *Config) {
		if o.isSet(name) {
			*field(c) = *v
		}
	})
}

func (o *Overrides) Int64(name, usage string, field func(*Config) *int64) {
	v := o.fs.Int64(name, 0, usage)
	o.set = append(o.set, func(c *Config) {
		if o.isSet(name) {
			*field(c) = *v
		}
	})
}

func (o *Overrides) String(name, usage string, field func(*Config) *string) {
	v := o.fs.String(name, "", usage)
	o.set = append(o.set, func(c *Config) {
		if o.isSet(name) {
			*field(c) = *v
		}
	})
}

func (o *Overrides) Bool(name, usage string, field func(*Config) *bool) {
	v := o.fs.Bool(name, false, usage)
	o.set = append(o.set, func(c *Config) {
		if o.isSet(name) {
			*field(c) = *v
		}
	})
}

func (o *Overrides) Float64(name, usage string, field func(*Config) *float64) {
	v := o.fs.Float64(name, 0, usage)
	o.set = append(o.set, func(c *Config) {
		if o.isSet(name) {
			*field(c) = *v
		}
	})
}

func (o *Overrides) isSet(name string) bool {
	found := false
	o.fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// Apply writes the explicitly set flags into c, revalidates and recomputes
// derived values.
func (o *Overrides) Apply(c *Config) error {
	for _, fn := range o.set {
		fn(c)
	}
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// LoadWithFlags loads path and applies the overrides in one go.
func LoadWithFlags(path string, o *Overrides) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return cfg, nil
	}
	if err := o.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CommonFlags registers the overrides every binary shares.
func CommonFlags(o *Overrides) {
	o.Int("width", "Grid width in cells", func(c *Config) *int { return &c.Grid.Width })
	o.Int("height", "Grid height in cells", func(c *Config) *int { return &c.Grid.Height })
	o.Int("block-size", "Pixels per cell", func(c *Config) *int { return &c.Grid.BlockSize })
	o.Int64("seed", "RNG seed (0 = clock)", func(c *Config) *int64 { return &c.Run.Seed })
	o.Bool("ignore-reversal", "Drop actions that reverse into the neck", func(c *Config) *bool { return &c.Rules.IgnoreReversal })
	o.String("log-format", "Log format: text, json or pretty", func(c *Config) *string { return &c.Log.Format })
	o.String("log-level", "Log level: debug, info, warn or error", func(c *Config) *string { return &c.Log.Level })
}
