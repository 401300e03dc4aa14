package selfplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/executor/policy"
	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/rules"
	"github.com/brensch/snekenv/store"
)

// ErrAborted is returned when an episode is cut short by its context.
var ErrAborted = errors.New("episode aborted")

type EpisodeResult struct {
	EpisodeID string
	Seed      int64
	Ticks     int
	Score     int
	Length    int
	FoodEaten int
	Cause     game.DeathCause
	Duration  time.Duration
}

type PlayOptions struct {
	RunID     string
	EpisodeID string // generated when empty
	Source    string
	Seed      int64

	// Record keeps one TransitionRow per tick.
	Record bool
	// Trace logs the board every tick at debug level.
	Trace  bool
	Logger *slog.Logger
	OnStep func()
}

// PlayEpisode resets eng and drives it with pol until the episode ends.
// The engine is left in its terminal state.
func PlayEpisode(ctx context.Context, eng *rules.Engine, pol policy.Policy, opts PlayOptions) (EpisodeResult, []store.TransitionRow, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	episodeID := opts.EpisodeID
	if episodeID == "" {
		episodeID = uuid.NewString()
	}

	start := time.Now()
	eng.Reset()
	grid := eng.Grid()

	var rows []store.TransitionRow
	if opts.Record {
		rows = make([]store.TransitionRow, 0, 256)
	}

	res := EpisodeResult{EpisodeID: episodeID, Seed: opts.Seed}
	for {
		if err := ctx.Err(); err != nil {
			return res, nil, fmt.Errorf("%w after %d ticks: %w", ErrAborted, res.Ticks, err)
		}

		state := eng.Snapshot()
		if opts.Trace {
			TraceState(logger, state)
		}

		obs := eng.Observe()
		action, err := pol.Act(obs, state)
		if err != nil {
			return res, nil, fmt.Errorf("episode %s tick %d: %w", episodeID, res.Ticks+1, err)
		}

		before := eng.Score()
		lenBefore := eng.Length()
		terminal, score := eng.Step(action)
		res.Ticks++
		ate := !terminal && eng.Length() > lenBefore
		if ate {
			res.FoodEaten++
		}
		if opts.OnStep != nil {
			opts.OnStep()
		}

		if opts.Record {
			feats := obs.ToFloat32()
			features := make([]float32, len(*feats))
			copy(features, *feats)
			convert.PutFloatBuffer(feats)

			rows = append(rows, store.TransitionRow{
				RunID:     opts.RunID,
				EpisodeID: episodeID,
				Tick:      int32(res.Ticks),
				Width:     int32(grid.Width),
				Height:    int32(grid.Height),
				Features:  features,
				Action:    int32(action),
				Reward:    int32(score - before),
				Score:     int32(score),
				Length:    int32(eng.Length()),
				Ate:       ate,
				Terminal:  terminal,
				Cause:     string(eng.Cause()),
				Source:    opts.Source,
			})
		}

		if terminal {
			res.Score = score
			res.Length = eng.Length()
			res.Cause = eng.Cause()
			res.Duration = time.Since(start)
			if opts.Trace {
				TraceState(logger, eng.Snapshot())
			}
			return res, rows, nil
		}
	}
}

// WorkerConfig controls RunWorkers.
type WorkerConfig struct {
	RunID    string
	Source   string
	Workers  int
	Episodes int   // 0 runs until ctx is cancelled
	BaseSeed int64 // episode i uses BaseSeed+i
	Grid     game.Grid
	Settings game.Settings
	Record   bool
	Trace    bool // trace worker 0 only
	Logger   *slog.Logger
}

// Completed is one finished episode handed to the sink of RunWorkers.
type Completed struct {
	WorkerID int
	Index    int
	Result   EpisodeResult
	Rows     []store.TransitionRow
}

// PolicyFactory builds the policy for one episode.
type PolicyFactory func(workerID int, seed int64) (policy.Policy, error)

// RunWorkers plays episodes on cfg.Workers goroutines, each with its own
// engine, and calls onDone for every finished episode. onDone may be called
// concurrently. The first error cancels the other workers; context
// cancellation ends the run without error.
func RunWorkers(ctx context.Context, cfg WorkerConfig, newPolicy PolicyFactory, onDone func(Completed) error) error {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := rules.ValidateGrid(cfg.Grid); err != nil {
		return err
	}

	var next atomic.Int64
	claim := func() (int, bool) {
		i := int(next.Add(1) - 1)
		if cfg.Episodes > 0 && i >= cfg.Episodes {
			return 0, false
		}
		return i, true
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		workerID := w
		g.Go(func() error {
			wlog := logger.With("worker", workerID)
			wlog.Debug("worker started")
			for {
				if gctx.Err() != nil {
					return nil
				}
				idx, ok := claim()
				if !ok {
					return nil
				}
				seed := cfg.BaseSeed + int64(idx)

				pol, err := newPolicy(workerID, seed)
				if err != nil {
					return fmt.Errorf("worker %d: policy: %w", workerID, err)
				}
				eng, err := rules.NewEngine(cfg.Grid, cfg.Settings, rules.WithSeed(seed), rules.WithLogger(wlog))
				if err != nil {
					return err
				}

				res, rows, err := PlayEpisode(gctx, eng, pol, PlayOptions{
					RunID:  cfg.RunID,
					Source: cfg.Source,
					Seed:   seed,
					Record: cfg.Record,
					Trace:  cfg.Trace && workerID == 0,
					Logger: wlog,
				})
				if errors.Is(err, ErrAborted) {
					wlog.Debug("episode aborted", "index", idx, "ticks", res.Ticks)
					return nil
				}
				if err != nil {
					return fmt.Errorf("worker %d: %w", workerID, err)
				}

				if err := onDone(Completed{WorkerID: workerID, Index: idx, Result: res, Rows: rows}); err != nil {
					return fmt.Errorf("worker %d: %w", workerID, err)
				}
			}
		})
	}
	return g.Wait()
}
