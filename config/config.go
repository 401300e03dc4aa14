// Package config loads simulator settings from YAML.
//
// Embedded defaults are parsed first; a user file then overwrites only the
// keys it sets.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brensch/snekenv/game"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Grid   GridConfig   `yaml:"grid"`
	Rules  RulesConfig  `yaml:"rules"`
	Run    RunConfig    `yaml:"run"`
	Policy PolicyConfig `yaml:"policy"`
	Output OutputConfig `yaml:"output"`
	Log    LogConfig    `yaml:"log"`

	Derived DerivedConfig `yaml:"-"`
}

type GridConfig struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	BlockSize int `yaml:"block_size"`
}

type RulesConfig struct {
	SurvivalReward  int  `yaml:"survival_reward"`
	FoodReward      int  `yaml:"food_reward"`
	TimeoutFactor   int  `yaml:"timeout_factor"`
	IgnoreReversal  bool `yaml:"ignore_reversal"`
	MaxFoodAttempts int  `yaml:"max_food_attempts"`
}

type RunConfig struct {
	Seed     int64 `yaml:"seed"`
	TickRate int   `yaml:"tick_rate"`
	Episodes int   `yaml:"episodes"`
	Workers  int   `yaml:"workers"`
}

type PolicyConfig struct {
	Kind      string  `yaml:"kind"`
	Safe      bool    `yaml:"safe"`
	Epsilon   float64 `yaml:"epsilon"`
	ModelPath string  `yaml:"model_path"`
	Sessions  int     `yaml:"sessions"`
	BatchSize int     `yaml:"batch_size"`
}

type OutputConfig struct {
	Dir             string `yaml:"dir"`
	GamesPerFlush   int    `yaml:"games_per_flush"`
	Stream          bool   `yaml:"stream"`
	CSV             string `yaml:"csv"`
	EpisodesParquet string `yaml:"episodes_parquet"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// DerivedConfig holds values computed after loading.
type DerivedConfig struct {
	TickInterval time.Duration
	Cells        int
}

// Policy kinds.
const (
	PolicyRandom = "random"
	PolicyModel  = "model"
)

// Load parses the embedded defaults, overlays path if set, then validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Defaults returns the embedded configuration.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("embedded defaults: %v", err))
	}
	return cfg
}

func (c *Config) Validate() error {
	g := c.Grid
	switch {
	case g.BlockSize < 1:
		return fmt.Errorf("%w: grid.block_size %d < 1", ErrInvalid, g.BlockSize)
	case g.Width < 4:
		return fmt.Errorf("%w: grid.width %d < 4", ErrInvalid, g.Width)
	case g.Height < 1:
		return fmt.Errorf("%w: grid.height %d < 1", ErrInvalid, g.Height)
	case c.Rules.TimeoutFactor < 1:
		return fmt.Errorf("%w: rules.timeout_factor %d < 1", ErrInvalid, c.Rules.TimeoutFactor)
	case c.Rules.MaxFoodAttempts < 0:
		return fmt.Errorf("%w: rules.max_food_attempts %d < 0", ErrInvalid, c.Rules.MaxFoodAttempts)
	case c.Run.TickRate < 1:
		return fmt.Errorf("%w: run.tick_rate %d < 1", ErrInvalid, c.Run.TickRate)
	case c.Run.Episodes < 0:
		return fmt.Errorf("%w: run.episodes %d < 0", ErrInvalid, c.Run.Episodes)
	case c.Run.Workers < 1:
		return fmt.Errorf("%w: run.workers %d < 1", ErrInvalid, c.Run.Workers)
	case c.Policy.Epsilon < 0 || c.Policy.Epsilon > 1:
		return fmt.Errorf("%w: policy.epsilon %v outside [0,1]", ErrInvalid, c.Policy.Epsilon)
	case c.Output.GamesPerFlush < 1:
		return fmt.Errorf("%w: output.games_per_flush %d < 1", ErrInvalid, c.Output.GamesPerFlush)
	}

	switch c.Policy.Kind {
	case PolicyRandom:
	case PolicyModel:
		if c.Policy.ModelPath == "" {
			return fmt.Errorf("%w: policy.model_path required for kind %q", ErrInvalid, PolicyModel)
		}
	default:
		return fmt.Errorf("%w: policy.kind %q", ErrInvalid, c.Policy.Kind)
	}
	return nil
}

func (c *Config) computeDerived() {
	c.Derived.TickInterval = time.Second / time.Duration(c.Run.TickRate)
	c.Derived.Cells = c.Grid.Width * c.Grid.Height
}

// GameGrid converts the grid section.
func (c *Config) GameGrid() game.Grid {
	return game.Grid{Width: c.Grid.Width, Height: c.Grid.Height, BlockSize: c.Grid.BlockSize}
}

// GameSettings converts the rules section.
func (c *Config) GameSettings() game.Settings {
	return game.Settings{
		SurvivalReward:  c.Rules.SurvivalReward,
		FoodReward:      c.Rules.FoodReward,
		TimeoutFactor:   c.Rules.TimeoutFactor,
		IgnoreReversal:  c.Rules.IgnoreReversal,
		MaxFoodAttempts: c.Rules.MaxFoodAttempts,
	}
}

// WriteYAML saves the effective configuration.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
