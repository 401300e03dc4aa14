// Package telemetry records per-episode results and summarises them.
package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"
)

// EpisodeStats is one finished episode as written to CSV.
type EpisodeStats struct {
	RunID      string  `csv:"run_id"`
	EpisodeID  string  `csv:"episode_id"`
	Worker     int     `csv:"worker"`
	Seed       int64   `csv:"seed"`
	Ticks      int     `csv:"ticks"`
	Score      int     `csv:"score"`
	Length     int     `csv:"length"`
	FoodEaten  int     `csv:"food_eaten"`
	Cause      string  `csv:"cause"`
	DurationMs float64 `csv:"duration_ms"`
}

// CSVWriter appends EpisodeStats rows, writing the header once.
// A nil *CSVWriter discards everything.
type CSVWriter struct {
	mu            sync.Mutex
	w             io.Writer
	closer        io.Closer
	headerWritten bool
}

// NewCSVWriter writes to w. The caller keeps ownership of w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: w}
}

// CreateCSV truncates path and returns a writer for it.
// Returns nil when path is empty.
func CreateCSV(path string) (*CSVWriter, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating csv dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return &CSVWriter{w: f, closer: f}, nil
}

func (c *CSVWriter) Write(stats ...EpisodeStats) error {
	if c == nil || len(stats) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.headerWritten {
		if err := gocsv.Marshal(stats, c.w); err != nil {
			return fmt.Errorf("writing episodes: %w", err)
		}
		c.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(stats, c.w); err != nil {
		return fmt.Errorf("writing episodes: %w", err)
	}
	return nil
}

func (c *CSVWriter) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ReadCSV parses a file produced by CSVWriter.
func ReadCSV(r io.Reader) ([]EpisodeStats, error) {
	var out []EpisodeStats
	if err := gocsv.Unmarshal(r, &out); err != nil {
		return nil, fmt.Errorf("reading episodes: %w", err)
	}
	return out, nil
}

// Summary aggregates a set of episodes.
type Summary struct {
	Episodes    int
	MeanScore   float64
	StdScore    float64
	MedianScore float64
	MaxScore    int
	MeanTicks   float64
	MeanLength  float64
	Causes      map[string]int
}

// Summarize computes score and length statistics. Empty input yields a zero
// Summary with an empty Causes map.
func Summarize(eps []EpisodeStats) Summary {
	s := Summary{Episodes: len(eps), Causes: map[string]int{}}
	if len(eps) == 0 {
		return s
	}

	scores := make([]float64, len(eps))
	ticks := make([]float64, len(eps))
	lengths := make([]float64, len(eps))
	for i, e := range eps {
		scores[i] = float64(e.Score)
		ticks[i] = float64(e.Ticks)
		lengths[i] = float64(e.Length)
		if e.Score > s.MaxScore || i == 0 {
			s.MaxScore = e.Score
		}
		s.Causes[e.Cause]++
	}

	s.MeanScore, s.StdScore = stat.MeanStdDev(scores, nil)
	if len(scores) < 2 {
		s.StdScore = 0
	}
	s.MeanTicks = stat.Mean(ticks, nil)
	s.MeanLength = stat.Mean(lengths, nil)

	sort.Float64s(scores)
	s.MedianScore = stat.Quantile(0.5, stat.Empirical, scores, nil)
	return s
}
