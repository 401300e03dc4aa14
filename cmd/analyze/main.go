// Command analyze summarises self-play parquet batches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/brensch/snekenv/config"
	"github.com/brensch/snekenv/dataset"
	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		os.Exit(1)
	}
}

func run() error {
	roots := flag.String("roots", config.EnvOr("DATA_ROOTS", "data/episodes"), "Comma separated directories of parquet batches")
	top := flag.Int("top", config.EnvIntOr("ANALYZE_TOP", 10), "Number of best episodes to list")
	timeout := flag.Duration("timeout", config.EnvDurationOr("ANALYZE_TIMEOUT", time.Minute), "Query timeout")
	logLevel := flag.String("log-level", config.EnvOr("LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger, err := logging.New(os.Stderr, logging.FormatText, level)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	ds, err := dataset.Open(strings.Split(*roots, ",")...)
	if err != nil {
		return err
	}
	defer ds.Close()

	tot, err := ds.Totals(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("files=%d episodes=%d rows=%d\n", tot.Files, tot.Episodes, tot.Rows)
	fmt.Printf("score mean=%.2f max=%d  ticks mean=%.1f\n", tot.MeanScore, tot.MaxScore, tot.MeanTicks)

	causes, err := ds.CauseCounts(ctx)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(causes))
	for c := range causes {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)
	fmt.Println("causes:")
	for _, k := range keys {
		fmt.Printf("  %-16s %d\n", k, causes[game.DeathCause(k)])
	}

	actions, err := ds.ActionCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Println("actions:")
	for a, n := range actions {
		fmt.Printf("  %-6s %d\n", game.Action(a), n)
	}

	best, err := ds.TopEpisodes(ctx, *top)
	if err != nil {
		return err
	}
	fmt.Println("top episodes:")
	for _, e := range best {
		fmt.Printf("  %s score=%d ticks=%d food=%d %s\n", e.EpisodeID, e.Score, e.Ticks, e.FoodEaten, e.Cause)
	}

	logger.Debug("analysis done", "elapsed", time.Since(start))
	return nil
}
