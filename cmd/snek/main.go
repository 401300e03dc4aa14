// Command snek plays the simulator in the terminal.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brensch/snekenv/config"
	"github.com/brensch/snekenv/logging"
	"github.com/brensch/snekenv/rules"
	"github.com/brensch/snekenv/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "snek:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.EnvOr("SNEKENV_CONFIG", ""), "YAML config file")
	logPath := flag.String("log-path", config.EnvOr("SNEK_LOG", "snek.log"), "Log file (the terminal is owned by the UI)")
	autoRestart := flag.Bool("auto-restart", false, "Start a new episode as soon as one ends")

	o := config.NewOverrides(flag.CommandLine)
	config.CommonFlags(o)
	o.Int("tick-rate", "Ticks per second", func(c *config.Config) *int { return &c.Run.TickRate })
	flag.Parse()

	cfg, err := config.LoadWithFlags(*configPath, o)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(*logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(f, cfg.Log.Format, level)
	if err != nil {
		return err
	}

	opts := []rules.Option{rules.WithLogger(logger)}
	if cfg.Run.Seed != 0 {
		opts = append(opts, rules.WithSeed(cfg.Run.Seed))
	}
	eng, err := rules.NewEngine(cfg.GameGrid(), cfg.GameSettings(), opts...)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(eng, cfg.Derived.TickInterval, *autoRestart), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	logger.Info("session ended", "score", eng.Score(), "frames", eng.FrameIteration())
	return nil
}
