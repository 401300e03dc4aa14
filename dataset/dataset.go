// Package dataset queries self-play parquet output with DuckDB.
//
// Every *.parquet file directly under each root is exposed as one view,
// transitions. Files still being written live under root/tmp and are
// never matched.
package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/brensch/snekenv/game"
)

var ErrNoRoots = errors.New("no dataset roots")

type Dataset struct {
	db *sql.DB
}

// Open builds an in-memory DuckDB with a transitions view over roots.
func Open(roots ...string) (*Dataset, error) {
	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "*.parquet")
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	if len(globs) == 0 {
		return nil, ErrNoRoots
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// Ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	sqlText := `CREATE OR REPLACE VIEW transitions AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create transitions view: %w", err)
	}
	return &Dataset{db: db}, nil
}

func (d *Dataset) Close() error {
	return d.db.Close()
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Totals is the dataset at a glance.
type Totals struct {
	Files     int64
	Episodes  int64
	Rows      int64
	MeanScore float64
	MaxScore  int64
	MeanTicks float64
}

func (d *Dataset) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT filename),
			COUNT(DISTINCT episode_id),
			COUNT(*)
		FROM transitions`).Scan(&t.Files, &t.Episodes, &t.Rows)
	if err != nil {
		return t, fmt.Errorf("query totals: %w", err)
	}
	if t.Episodes == 0 {
		return t, nil
	}

	err = d.db.QueryRowContext(ctx, `
		SELECT
			AVG(score)::DOUBLE,
			MAX(score)::BIGINT,
			AVG(tick)::DOUBLE
		FROM transitions
		WHERE terminal`).Scan(&t.MeanScore, &t.MaxScore, &t.MeanTicks)
	if err != nil {
		return t, fmt.Errorf("query terminal totals: %w", err)
	}
	return t, nil
}

// CauseCounts counts finished episodes per death cause.
func (d *Dataset) CauseCounts(ctx context.Context) (map[game.DeathCause]int64, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT COALESCE(cause, ''), COUNT(*)
		FROM transitions
		WHERE terminal
		GROUP BY 1
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("query causes: %w", err)
	}
	defer rows.Close()

	out := map[game.DeathCause]int64{}
	for rows.Next() {
		var cause string
		var n int64
		if err := rows.Scan(&cause, &n); err != nil {
			return nil, err
		}
		out[game.DeathCause(cause)] = n
	}
	return out, rows.Err()
}

// ActionCounts counts how often each action code was taken.
func (d *Dataset) ActionCounts(ctx context.Context) ([game.NumActions]int64, error) {
	var out [game.NumActions]int64
	rows, err := d.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM transitions
		GROUP BY 1`)
	if err != nil {
		return out, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var action int32
		var n int64
		if err := rows.Scan(&action, &n); err != nil {
			return out, err
		}
		if action >= 0 && int(action) < game.NumActions {
			out[action] = n
		}
	}
	return out, rows.Err()
}

// EpisodeSummary is one finished episode reconstructed from its rows.
type EpisodeSummary struct {
	EpisodeID string
	Ticks     int64
	Score     int64
	FoodEaten int64
	Cause     game.DeathCause
}

// TopEpisodes returns the highest scoring finished episodes.
func (d *Dataset) TopEpisodes(ctx context.Context, limit int) ([]EpisodeSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT
			episode_id,
			MAX(tick)::BIGINT AS ticks,
			MAX(score)::BIGINT AS final_score,
			SUM(CASE WHEN ate THEN 1 ELSE 0 END)::BIGINT AS food,
			COALESCE(MAX(cause), '') AS cause
		FROM transitions
		GROUP BY episode_id
		HAVING BOOL_OR(terminal)
		ORDER BY final_score DESC, episode_id
		LIMIT `+strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("query top episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeSummary
	for rows.Next() {
		var e EpisodeSummary
		var cause string
		if err := rows.Scan(&e.EpisodeID, &e.Ticks, &e.Score, &e.FoodEaten, &cause); err != nil {
			return nil, err
		}
		e.Cause = game.DeathCause(cause)
		out = append(out, e)
	}
	return out, rows.Err()
}
