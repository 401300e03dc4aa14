package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/brensch/snekenv/store"
)

func episodeRows(episode string, n int) []store.TransitionRow {
	rows := make([]store.TransitionRow, n)
	for i := range rows {
		rows[i] = store.TransitionRow{
			RunID:     "run",
			EpisodeID: episode,
			Tick:      int32(i + 1),
			Width:     8,
			Height:    8,
			Features:  make([]float32, 11),
			Reward:    2,
			Source:    "random",
		}
	}
	rows[n-1].Terminal = true
	rows[n-1].Reward = 0
	rows[n-1].Cause = "wall-collision"
	return rows
}

func batchFiles(t *testing.T, dir string) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	sort.Strings(files)
	return files
}

func runLoop(loop func(*slog.Logger, string, int, <-chan episodeWriteRequest), dir string, perFlush int, eps ...[]store.TransitionRow) {
	in := make(chan episodeWriteRequest, len(eps))
	for _, rows := range eps {
		in <- episodeWriteRequest{rows: rows}
	}
	close(in)
	loop(slog.New(slog.NewTextHandler(io.Discard, nil)), dir, perFlush, in)
}

func TestWriterLoops_FlushEveryN(t *testing.T) {
	loops := map[string]func(*slog.Logger, string, int, <-chan episodeWriteRequest){
		"stream":   parquetWriterLoop,
		"buffered": bufferedWriterLoop,
	}
	for name, loop := range loops {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			runLoop(loop, dir, 2, episodeRows("a", 3), episodeRows("b", 2), episodeRows("c", 4))

			files := batchFiles(t, dir)
			if len(files) != 2 {
				t.Fatalf("files=%d want 2 (one full batch, one final)", len(files))
			}
			total := 0
			for _, f := range files {
				rows, err := parquet.ReadFile[store.TransitionRow](f)
				if err != nil {
					t.Fatalf("ReadFile %s: %v", f, err)
				}
				total += len(rows)
			}
			if total != 9 {
				t.Fatalf("rows=%d want 9", total)
			}
			if entries, _ := os.ReadDir(filepath.Join(dir, "tmp")); len(entries) != 0 {
				t.Fatalf("tmp dir holds %d leftover files", len(entries))
			}
		})
	}
}
