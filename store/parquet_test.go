package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

func sampleRows(episode string, n int) []TransitionRow {
	rows := make([]TransitionRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, TransitionRow{
			RunID:     "run",
			EpisodeID: episode,
			Tick:      int32(i + 1),
			Width:     20,
			Height:    20,
			Features:  []float32{0.5, 0.5, 0.1, 0.2, 0.5, 0.5, 0.5, 0, 0, 0, 0.0075},
			Action:    int32(i % 4),
			Reward:    2,
			Score:     int32(2 * (i + 1)),
			Length:    3,
			Terminal:  i == n-1,
			Source:    "test",
		})
	}
	rows[n-1].Reward = 0
	rows[n-1].Cause = "wall-collision"
	return rows
}

func TestWriteBatchParquetAtomic(t *testing.T) {
	dir := t.TempDir()
	rows := sampleRows("ep1", 5)

	path, err := WriteBatchParquetAtomic(dir, rows)
	if err != nil {
		t.Fatalf("WriteBatchParquetAtomic: %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Fatalf("path=%s not in %s", path, dir)
	}
	if entries, _ := os.ReadDir(filepath.Join(dir, "tmp")); len(entries) != 0 {
		t.Fatalf("tmp dir not empty: %d entries", len(entries))
	}

	got, err := parquet.ReadFile[TransitionRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("rows=%d want=%d", len(got), len(rows))
	}
	last := got[len(got)-1]
	if !last.Terminal || last.Cause != "wall-collision" || len(last.Features) != 11 {
		t.Fatalf("last row=%+v", last)
	}
}

func TestBatchWriter_Finalize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	if err := w.WriteEpisode(sampleRows("a", 3)); err != nil {
		t.Fatalf("WriteEpisode: %v", err)
	}
	if err := w.WriteEpisode(sampleRows("b", 4)); err != nil {
		t.Fatalf("WriteEpisode: %v", err)
	}
	if w.BufferedEpisodes() != 2 || w.BufferedRows() != 7 {
		t.Fatalf("buffered episodes=%d rows=%d", w.BufferedEpisodes(), w.BufferedRows())
	}

	path, rows, episodes, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if rows != 7 || episodes != 2 {
		t.Fatalf("rows=%d episodes=%d", rows, episodes)
	}
	got, err := parquet.ReadFile[TransitionRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 7 || got[3].EpisodeID != "b" {
		t.Fatalf("read back %d rows, row 3 episode=%q", len(got), got[3].EpisodeID)
	}

	if err := w.WriteEpisode(sampleRows("c", 1)); err == nil {
		t.Fatalf("write after finalize should fail")
	}
}

func TestBatchWriter_EmptyFinalize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewBatchWriter(dir)
	if err != nil {
		t.Fatalf("NewBatchWriter: %v", err)
	}
	path, rows, _, err := w.Finalize()
	if err != nil || path != "" || rows != 0 {
		t.Fatalf("empty finalize: path=%q rows=%d err=%v", path, rows, err)
	}
	if _, err := os.Stat(w.TmpPath()); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestWriteEpisodesParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes", "run.parquet")
	rows := []EpisodeRow{
		{RunID: "r", EpisodeID: "e1", Seed: 1, Ticks: 40, Score: 92, Length: 4, FoodEaten: 1, Cause: "self-collision", Policy: "random"},
		{RunID: "r", EpisodeID: "e2", Seed: 2, Ticks: 11, Score: 20, Length: 3, Cause: "wall-collision", Policy: "random"},
	}
	if err := WriteEpisodesParquet(path, rows); err != nil {
		t.Fatalf("WriteEpisodesParquet: %v", err)
	}
	got, err := parquet.ReadFile[EpisodeRow](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(got) != 2 || got[0] != rows[0] {
		t.Fatalf("got %+v", got)
	}
}
