package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// TransitionRow is one (observation, action, result) sample from an episode.
//
// Features is the 11-value observation the policy saw before acting.
// Action is the code it chose: 0=Left, 1=Right, 2=Up, 3=Down.
// Reward is the score delta of the tick; terminal ticks carry 0.
type TransitionRow struct {
	RunID     string    `parquet:"run_id,dict"`
	EpisodeID string    `parquet:"episode_id,dict"`
	Tick      int32     `parquet:"tick"`
	Width     int32     `parquet:"width"`
	Height    int32     `parquet:"height"`
	Features  []float32 `parquet:"features"`
	Action    int32     `parquet:"action"`
	Reward    int32     `parquet:"reward"`
	Score     int32     `parquet:"score"`
	Length    int32     `parquet:"length"`
	Ate       bool      `parquet:"ate"`
	Terminal  bool      `parquet:"terminal"`
	Cause     string    `parquet:"cause,dict,optional"`
	Source    string    `parquet:"source,dict"`
}

// EpisodeRow summarises one finished episode.
type EpisodeRow struct {
	RunID     string `parquet:"run_id,dict"`
	EpisodeID string `parquet:"episode_id,dict"`
	Seed      int64  `parquet:"seed"`
	Ticks     int32  `parquet:"ticks"`
	Score     int32  `parquet:"score"`
	Length    int32  `parquet:"length"`
	FoodEaten int32  `parquet:"food_eaten"`
	Cause     string `parquet:"cause,dict"`
	Policy    string `parquet:"policy,dict"`
}

const transitionSchema = "transition_row_v1"

// WriteTransitionsParquet writes rows to outPath via a temp file and rename.
func WriteTransitionsParquet(outPath string, rows []TransitionRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("features"),
		parquet.KeyValueMetadata("schema", transitionSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteBatchParquetAtomic writes a Parquet file into outDir/tmp and then
// atomically moves it into outDir, so readers never see partial files.
// The returned path is the final parquet file path.
func WriteBatchParquetAtomic(outDir string, rows []TransitionRow) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := fmt.Sprintf("batch_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.SkipPageBounds("features"),
		parquet.KeyValueMetadata("schema", transitionSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}

	return finalPath, nil
}

// WriteEpisodesParquet writes episode summaries to outPath.
func WriteEpisodesParquet(outPath string, rows []EpisodeRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := parquet.WriteFile(outPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "episode_row_v1"),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	return nil
}
