package main

import (
	"log/slog"
	"path/filepath"

	"github.com/brensch/snekenv/store"
)

type episodeWriteRequest struct {
	rows []store.TransitionRow
}

// parquetWriterLoop streams each episode into an open batch file and rolls
// the file every gamesPerFlush episodes.
func parquetWriterLoop(logger *slog.Logger, outDir string, gamesPerFlush int, in <-chan episodeWriteRequest) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	var w *store.BatchWriter
	flush := func(final bool) {
		if w == nil {
			return
		}
		outPath, rows, eps, err := w.Finalize()
		w = nil
		if err != nil {
			logger.Error("parquet flush failed", "final", final, "err", err)
			return
		}
		if outPath != "" {
			logger.Info("parquet flush ok", "path", filepath.Base(outPath), "episodes", eps, "rows", rows, "final", final)
		}
	}

	for req := range in {
		if outDir == "" || len(req.rows) == 0 {
			continue
		}
		if w == nil {
			var err error
			if w, err = store.NewBatchWriter(outDir); err != nil {
				logger.Error("open parquet batch failed", "err", err)
				continue
			}
		}
		if err := w.WriteEpisode(req.rows); err != nil {
			logger.Error("parquet write failed", "rows", len(req.rows), "err", err)
			continue
		}
		if w.BufferedEpisodes() >= gamesPerFlush {
			flush(false)
		}
	}
	flush(true)
}

// bufferedWriterLoop holds gamesPerFlush episodes in memory and writes each
// batch with a single atomic parquet write.
func bufferedWriterLoop(logger *slog.Logger, outDir string, gamesPerFlush int, in <-chan episodeWriteRequest) {
	if gamesPerFlush <= 0 {
		gamesPerFlush = 50
	}

	var (
		buf      []store.TransitionRow
		episodes int
	)
	flush := func(final bool) {
		if len(buf) == 0 {
			return
		}
		outPath, err := store.WriteBatchParquetAtomic(outDir, buf)
		if err != nil {
			logger.Error("parquet flush failed", "final", final, "rows", len(buf), "err", err)
		} else {
			logger.Info("parquet flush ok", "path", filepath.Base(outPath), "episodes", episodes, "rows", len(buf), "final", final)
		}
		buf = nil
		episodes = 0
	}

	for req := range in {
		if outDir == "" || len(req.rows) == 0 {
			continue
		}
		buf = append(buf, req.rows...)
		episodes++
		if episodes >= gamesPerFlush {
			flush(false)
		}
	}
	flush(true)
}
