// Command debuggame plays one seeded episode headless and prints every
// frame, the final board and the feature vector at the end.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/brensch/snekenv/config"
	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/executor/policy"
	"github.com/brensch/snekenv/executor/selfplay"
	"github.com/brensch/snekenv/logging"
	"github.com/brensch/snekenv/render"
	"github.com/brensch/snekenv/rules"
	"github.com/brensch/snekenv/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "debuggame:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", config.EnvOr("SNEKENV_CONFIG", ""), "YAML config file")
	quietFrames := flag.Bool("quiet", false, "Only print the final board")
	safe := flag.Bool("safe", true, "Random policy avoids immediately fatal moves")
	out := flag.String("out", "", "Write the episode's transitions to this parquet file")

	o := config.NewOverrides(flag.CommandLine)
	config.CommonFlags(o)
	flag.Parse()

	cfg, err := config.LoadWithFlags(*configPath, o)
	if err != nil {
		return err
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Format, level)
	if err != nil {
		return err
	}

	seed := cfg.Run.Seed
	if seed == 0 {
		seed = 1
	}

	var sink *render.Writer
	opts := []rules.Option{rules.WithSeed(seed), rules.WithLogger(logger)}
	if !*quietFrames {
		sink = render.NewWriter(os.Stdout)
		opts = append(opts, rules.WithSink(sink))
	}
	eng, err := rules.NewEngine(cfg.GameGrid(), cfg.GameSettings(), opts...)
	if err != nil {
		return err
	}

	res, rows, err := selfplay.PlayEpisode(context.Background(), eng, policy.NewRandom(seed, *safe), selfplay.PlayOptions{
		Source: "debuggame",
		Seed:   seed,
		Record: *out != "",
		Logger: logger,
	})
	if err != nil {
		return err
	}
	if sink != nil && sink.Err() != nil {
		return fmt.Errorf("draw: %w", sink.Err())
	}

	final := eng.Snapshot()
	fmt.Print(render.Board(final))
	obs := convert.Encode(final)
	for i, v := range obs {
		fmt.Printf("%-14s %6.3f\n", convert.FeatureNames[i], v)
	}
	fmt.Printf("episode=%s seed=%d ticks=%d score=%d food=%d cause=%s\n",
		res.EpisodeID, seed, res.Ticks, res.Score, res.FoodEaten, res.Cause)

	if *out != "" {
		if err := store.WriteTransitionsParquet(*out, rows); err != nil {
			return err
		}
		logger.Info("wrote transitions", "path", *out, "rows", len(rows))
	}
	return nil
}
