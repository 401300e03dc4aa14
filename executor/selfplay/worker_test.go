package selfplay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brensch/snekenv/convert"
	"github.com/brensch/snekenv/executor/policy"
	"github.com/brensch/snekenv/game"
	"github.com/brensch/snekenv/rules"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixedPolicy struct {
	action game.Action
	err    error
}

func (p fixedPolicy) Act(convert.Observation, *game.GameState) (game.Action, error) {
	return p.action, p.err
}

func newEngine(t *testing.T, seed int64) *rules.Engine {
	t.Helper()
	e, err := rules.NewEngine(game.Grid{Width: 8, Height: 8, BlockSize: 1}, game.DefaultSettings,
		rules.WithSeed(seed), rules.WithLogger(quiet))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestPlayEpisode_StraightIntoWall(t *testing.T) {
	e := newEngine(t, 1)
	res, rows, err := PlayEpisode(context.Background(), e, fixedPolicy{action: game.ActionRight}, PlayOptions{
		RunID: "run", Source: "test", Record: true, Logger: quiet,
	})
	if err != nil {
		t.Fatalf("PlayEpisode: %v", err)
	}

	// Head starts at x=4 on an 8 wide board: three moves then the wall.
	if res.Ticks != 4 || res.Cause != game.CauseWallCollision {
		t.Fatalf("ticks=%d cause=%q want 4 wall-collision", res.Ticks, res.Cause)
	}
	if want := 3*2 + res.FoodEaten*10; res.Score != want {
		t.Fatalf("score=%d want=%d (food=%d)", res.Score, want, res.FoodEaten)
	}
	if len(rows) != res.Ticks {
		t.Fatalf("rows=%d want=%d", len(rows), res.Ticks)
	}

	sum := 0
	for i, r := range rows {
		if int(r.Tick) != i+1 || r.EpisodeID != res.EpisodeID || r.RunID != "run" {
			t.Fatalf("row %d=%+v", i, r)
		}
		if len(r.Features) != convert.NumFeatures {
			t.Fatalf("row %d features=%d", i, len(r.Features))
		}
		if r.Action != int32(game.ActionRight) {
			t.Fatalf("row %d action=%d", i, r.Action)
		}
		sum += int(r.Reward)
	}
	if sum != res.Score {
		t.Fatalf("reward sum=%d score=%d", sum, res.Score)
	}
	last := rows[len(rows)-1]
	if !last.Terminal || last.Reward != 0 || last.Cause != string(game.CauseWallCollision) {
		t.Fatalf("last row=%+v", last)
	}
	if !e.Terminal() {
		t.Fatalf("engine should be left terminal")
	}
}

func TestPlayEpisode_NoRecord(t *testing.T) {
	steps := 0
	res, rows, err := PlayEpisode(context.Background(), newEngine(t, 2), policy.NewRandom(2, true), PlayOptions{
		Logger: quiet,
		OnStep: func() { steps++ },
	})
	if err != nil {
		t.Fatalf("PlayEpisode: %v", err)
	}
	if rows != nil {
		t.Fatalf("rows recorded without Record")
	}
	if steps != res.Ticks || res.EpisodeID == "" {
		t.Fatalf("steps=%d ticks=%d id=%q", steps, res.Ticks, res.EpisodeID)
	}
}

func TestPlayEpisode_Deterministic(t *testing.T) {
	play := func() EpisodeResult {
		res, _, err := PlayEpisode(context.Background(), newEngine(t, 42), policy.NewRandom(42, true), PlayOptions{EpisodeID: "x", Logger: quiet})
		if err != nil {
			t.Fatalf("PlayEpisode: %v", err)
		}
		res.Duration = 0
		return res
	}
	a, b := play(), play()
	if a != b {
		t.Fatalf("same seed differs:\n%+v\n%+v", a, b)
	}
}

func TestPlayEpisode_Errors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := PlayEpisode(ctx, newEngine(t, 1), fixedPolicy{}, PlayOptions{Logger: quiet}); !errors.Is(err, ErrAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want ErrAborted wrapping context.Canceled", err)
	}

	boom := errors.New("boom")
	if _, _, err := PlayEpisode(context.Background(), newEngine(t, 1), fixedPolicy{err: boom}, PlayOptions{Logger: quiet}); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}

func TestPlayEpisode_Trace(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if _, _, err := PlayEpisode(context.Background(), newEngine(t, 5), fixedPolicy{action: game.ActionUp}, PlayOptions{Trace: true, Logger: logger}); err != nil {
		t.Fatalf("PlayEpisode: %v", err)
	}
}

func workerConfig(episodes int) WorkerConfig {
	return WorkerConfig{
		RunID:    "r",
		Workers:  3,
		Episodes: episodes,
		BaseSeed: 100,
		Grid:     game.Grid{Width: 10, Height: 10, BlockSize: 1},
		Settings: game.DefaultSettings,
		Record:   true,
		Logger:   quiet,
	}
}

func randomFactory(_ int, seed int64) (policy.Policy, error) {
	return policy.NewRandom(seed, true), nil
}

func TestRunWorkers_AllEpisodesOnce(t *testing.T) {
	run := func() map[int]EpisodeResult {
		var mu sync.Mutex
		got := map[int]EpisodeResult{}
		err := RunWorkers(context.Background(), workerConfig(10), randomFactory, func(c Completed) error {
			mu.Lock()
			defer mu.Unlock()
			if _, dup := got[c.Index]; dup {
				t.Errorf("episode %d delivered twice", c.Index)
			}
			if len(c.Rows) != c.Result.Ticks {
				t.Errorf("episode %d rows=%d ticks=%d", c.Index, len(c.Rows), c.Result.Ticks)
			}
			if c.Result.Seed != 100+int64(c.Index) {
				t.Errorf("episode %d seed=%d", c.Index, c.Result.Seed)
			}
			got[c.Index] = c.Result
			return nil
		})
		if err != nil {
			t.Fatalf("RunWorkers: %v", err)
		}
		return got
	}

	a := run()
	if len(a) != 10 {
		t.Fatalf("episodes=%d want 10", len(a))
	}
	b := run()
	for i := 0; i < 10; i++ {
		if a[i].Score != b[i].Score || a[i].Ticks != b[i].Ticks || a[i].Cause != b[i].Cause {
			t.Fatalf("episode %d not reproducible: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRunWorkers_SinkErrorStops(t *testing.T) {
	boom := errors.New("write failed")
	err := RunWorkers(context.Background(), workerConfig(0), randomFactory, func(Completed) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}

func TestRunWorkers_CancelEndsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	n := 0
	err := RunWorkers(ctx, workerConfig(0), randomFactory, func(Completed) error {
		mu.Lock()
		defer mu.Unlock()
		n++
		if n == 5 {
			cancel()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunWorkers: %v", err)
	}
	if n < 5 {
		t.Fatalf("completed=%d want >= 5", n)
	}
}

func TestRunWorkers_BadGrid(t *testing.T) {
	cfg := workerConfig(1)
	cfg.Grid.Width = 2
	if err := RunWorkers(context.Background(), cfg, randomFactory, func(Completed) error { return nil }); !errors.Is(err, rules.ErrInvalidGrid) {
		t.Fatalf("err=%v want ErrInvalidGrid", err)
	}
}
