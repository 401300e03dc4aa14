package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/brensch/snekenv/config"
	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/executor/inference"
	"github.com/brensch/snekenv/executor/policy"
	"github.com/brensch/snekenv/executor/selfplay"
	"github.com/brensch/snekenv/logging"
	"github.com/brensch/snekenv/store"
	"github.com/brensch/snekenv/telemetry"
)

var totalTicks atomic.Int64
var totalInferences atomic.Int64
var totalEpisodes atomic.Int64

type instrumentedPredictor struct {
	policy.Predictor
}

func (p *instrumentedPredictor) Predict(obs convert.Observation) ([]float32, error) {
	totalInferences.Add(1)
	return p.Predictor.Predict(obs)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "selfplay:", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.CommandLine
	configPath := fs.String("config", config.EnvOr("SNEKENV_CONFIG", ""), "YAML config file (defaults are embedded)")
	trace := fs.Bool("trace", false, "Log worker 0's board every tick at debug level")
	showDashboard := fs.Bool("dashboard", false, "Show a live terminal dashboard instead of periodic stats logs")
	statsEvery := fs.Duration("stats-every", config.EnvDurationOr("STATS_EVERY", 5*time.Second), "Interval between stats log lines")
	onnxBatchTimeout := fs.Duration("onnx-batch-timeout", inference.DefaultBatchTimeout, "Max time to wait for filling an ONNX batch")

	o := config.NewOverrides(fs)
	config.CommonFlags(o)
	o.Int("workers", "Number of self-play workers", func(c *config.Config) *int { return &c.Run.Workers })
	o.Int("episodes", "Episodes to play (0 = until interrupted)", func(c *config.Config) *int { return &c.Run.Episodes })
	o.String("policy", "Policy: random or model", func(c *config.Config) *string { return &c.Policy.Kind })
	o.String("model", "ONNX model path for -policy=model", func(c *config.Config) *string { return &c.Policy.ModelPath })
	o.Float64("epsilon", "Exploration rate for the model policy", func(c *config.Config) *float64 { return &c.Policy.Epsilon })
	o.Int("onnx-sessions", "Number of ONNX Runtime sessions", func(c *config.Config) *int { return &c.Policy.Sessions })
	o.Int("onnx-batch-size", "ONNX inference batch size", func(c *config.Config) *int { return &c.Policy.BatchSize })
	o.String("out-dir", "Output directory for transition parquet batches (empty disables)", func(c *config.Config) *string { return &c.Output.Dir })
	o.Int("games-per-flush", "Episodes to buffer per parquet flush", func(c *config.Config) *int { return &c.Output.GamesPerFlush })
	o.Bool("stream", "Stream rows into the open parquet batch instead of buffering them in memory", func(c *config.Config) *bool { return &c.Output.Stream })
	o.String("csv", "Per-episode CSV path (empty disables)", func(c *config.Config) *string { return &c.Output.CSV })
	o.String("episodes-parquet", "Per-episode summary parquet path (empty disables)", func(c *config.Config) *string { return &c.Output.EpisodesParquet })
	flag.Parse()

	cfg, err := config.LoadWithFlags(*configPath, o)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logOut := os.Stderr
	if *showDashboard {
		// Keep log lines from tearing the dashboard.
		f, err := os.OpenFile("selfplay.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New(logOut, cfg.Log.Format, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seed := cfg.Run.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := uuid.NewString()
	logger = logger.With("run", runID)

	newPolicy, closePolicy, err := buildPolicy(cfg, *onnxBatchTimeout, logger)
	if err != nil {
		return err
	}
	defer closePolicy()

	csvOut, err := telemetry.CreateCSV(cfg.Output.CSV)
	if err != nil {
		return err
	}
	defer csvOut.Close()

	writeReqs := make(chan episodeWriteRequest, cfg.Run.Workers*4)
	writerDone := make(chan struct{})
	go func() {
		if cfg.Output.Stream {
			parquetWriterLoop(logger, cfg.Output.Dir, cfg.Output.GamesPerFlush, writeReqs)
		} else {
			bufferedWriterLoop(logger, cfg.Output.Dir, cfg.Output.GamesPerFlush, writeReqs)
		}
		close(writerDone)
	}()

	updates := make(chan EpisodeUpdate, cfg.Run.Workers)
	runDone := make(chan struct{})

	var (
		statsMu  sync.Mutex
		episodes []telemetry.EpisodeStats
		summary  []store.EpisodeRow
	)

	onDone := func(c selfplay.Completed) error {
		totalTicks.Add(int64(c.Result.Ticks))
		totalEpisodes.Add(1)

		st := telemetry.EpisodeStats{
			RunID:      runID,
			EpisodeID:  c.Result.EpisodeID,
			Worker:     c.WorkerID,
			Seed:       c.Result.Seed,
			Ticks:      c.Result.Ticks,
			Score:      c.Result.Score,
			Length:     c.Result.Length,
			FoodEaten:  c.Result.FoodEaten,
			Cause:      string(c.Result.Cause),
			DurationMs: float64(c.Result.Duration.Microseconds()) / 1000,
		}
		if err := csvOut.Write(st); err != nil {
			return err
		}

		statsMu.Lock()
		episodes = append(episodes, st)
		summary = append(summary, store.EpisodeRow{
			RunID:     runID,
			EpisodeID: c.Result.EpisodeID,
			Seed:      c.Result.Seed,
			Ticks:     int32(c.Result.Ticks),
			Score:     int32(c.Result.Score),
			Length:    int32(c.Result.Length),
			FoodEaten: int32(c.Result.FoodEaten),
			Cause:     string(c.Result.Cause),
			Policy:    cfg.Policy.Kind,
		})
		statsMu.Unlock()

		if len(c.Rows) > 0 {
			writeReqs <- episodeWriteRequest{rows: c.Rows}
		}

		// Avoid blocking workers if nobody reads updates.
		select {
		case updates <- EpisodeUpdate{WorkerID: c.WorkerID, Result: c.Result, Rows: len(c.Rows)}:
		default:
		}
		return nil
	}

	wcfg := selfplay.WorkerConfig{
		RunID:    runID,
		Source:   cfg.Policy.Kind,
		Workers:  cfg.Run.Workers,
		Episodes: cfg.Run.Episodes,
		BaseSeed: seed,
		Grid:     cfg.GameGrid(),
		Settings: cfg.GameSettings(),
		Record:   cfg.Output.Dir != "",
		Trace:    *trace,
		Logger:   logger,
	}

	logger.Info("starting self-play",
		"workers", cfg.Run.Workers,
		"episodes", cfg.Run.Episodes,
		"seed", seed,
		"policy", cfg.Policy.Kind,
		"grid", fmt.Sprintf("%dx%d", cfg.Grid.Width, cfg.Grid.Height),
		"cells", cfg.Derived.Cells,
		"stream", cfg.Output.Stream,
	)

	startTime := time.Now()
	var runErr error
	go func() {
		runErr = selfplay.RunWorkers(sigCtx, wcfg, newPolicy, onDone)
		close(runDone)
	}()

	if *showDashboard {
		p := tea.NewProgram(newDashboard(updates, runDone), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			logger.Error("dashboard failed", "err", err)
		}
		stop()
		<-runDone
	} else {
		ticker := time.NewTicker(*statsEvery)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-runDone:
				break loop
			case u := <-updates:
				logger.Debug("episode finished",
					"worker", u.WorkerID,
					"score", u.Result.Score,
					"ticks", u.Result.Ticks,
					"cause", string(u.Result.Cause),
				)
			case <-ticker.C:
				secs := time.Since(startTime).Seconds()
				logger.Info("stats",
					"episodes", totalEpisodes.Load(),
					"ticks_per_sec", float64(totalTicks.Load())/secs,
					"inferences", totalInferences.Load(),
				)
			}
		}
	}

	close(writeReqs)
	<-writerDone

	statsMu.Lock()
	defer statsMu.Unlock()
	if cfg.Output.EpisodesParquet != "" && len(summary) > 0 {
		if err := store.WriteEpisodesParquet(cfg.Output.EpisodesParquet, summary); err != nil {
			logger.Error("episode summary write failed", "err", err)
		}
	}

	s := telemetry.Summarize(episodes)
	logger.Info("self-play finished",
		"episodes", s.Episodes,
		"mean_score", s.MeanScore,
		"std_score", s.StdScore,
		"median_score", s.MedianScore,
		"max_score", s.MaxScore,
		"mean_ticks", s.MeanTicks,
		"causes", s.Causes,
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// buildPolicy returns a per-episode policy factory and a cleanup func.
func buildPolicy(cfg *config.Config, batchTimeout time.Duration, logger *slog.Logger) (selfplay.PolicyFactory, func(), error) {
	switch cfg.Policy.Kind {
	case config.PolicyModel:
		pool, err := inference.NewOnnxClientPool(cfg.Policy.ModelPath, cfg.Policy.Sessions, inference.OnnxClientConfig{
			BatchSize:    cfg.Policy.BatchSize,
			BatchTimeout: batchTimeout,
			Logger:       logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create onnx pool: %w", err)
		}
		pred := &instrumentedPredictor{Predictor: pool}
		factory := func(_ int, seed int64) (policy.Policy, error) {
			return &policy.Model{Predictor: pred, Epsilon: cfg.Policy.Epsilon, Rng: rand.New(rand.NewSource(seed))}, nil
		}
		closeFn := func() {
			st := pool.Stats()
			logger.Info("onnx stats", "batches", st.TotalBatches, "avg_batch", st.AvgBatchSize, "avg_run_ms", st.AvgRunMs)
			_ = pool.Close()
		}
		return factory, closeFn, nil
	default:
		factory := func(_ int, seed int64) (policy.Policy, error) {
			return policy.NewRandom(seed, cfg.Policy.Safe), nil
		}
		return factory, func() {}, nil
	}
}
