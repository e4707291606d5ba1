package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/danielolaszy/flowstats/internal/aggregate"
)

// Chart ids, also used as file name suffixes.
const (
	ChartTimeByColumn  = "time_by_column"
	ChartForwardMoves  = "forward_moves"
	ChartBackwardMoves = "backward_moves"
)

// Series is one line or bar group of a chart. A nil value is a column with
// no data and is written as null.
type Series struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

func value(v float64) *float64 {
	return &v
}

// Chart is the data of one chart, with one value per label in each series.
type Chart struct {
	ID     string   `json:"id"`
	Title  string   `json:"title"`
	Board  string   `json:"board"`
	Labels []string `json:"labels"`
	Series []Series `json:"series"`
}

// Charts builds the per-column charts of a board: average time, standard
// deviation and forward/backward movements.
func Charts(s *aggregate.BoardStats, namer *Namer) []Chart {
	summaries := s.ColumnSummaries()
	labels := make([]string, len(summaries))
	avg := make([]*float64, len(summaries))
	stdDev := make([]*float64, len(summaries))
	forward := make([]*float64, len(summaries))
	backward := make([]*float64, len(summaries))

	for i, summary := range summaries {
		labels[i] = namer.Column(summary.Column)
		if !summary.Dwell.NoData() {
			avg[i] = value(summary.Dwell.Avg)
			stdDev[i] = value(summary.Dwell.StdDev)
		}
		forward[i] = value(float64(summary.ForwardMoves))
		backward[i] = value(float64(summary.BackwardMoves))
	}

	board := namer.Board(s.Board)
	return []Chart{
		{
			ID:     ChartTimeByColumn,
			Title:  "Average time per column (h)",
			Board:  board,
			Labels: labels,
			Series: []Series{{Name: "avg", Values: avg}, {Name: "std_dev", Values: stdDev}},
		},
		{
			ID:     ChartForwardMoves,
			Title:  "Forward movements from each column",
			Board:  board,
			Labels: labels,
			Series: []Series{{Name: "forward", Values: forward}},
		},
		{
			ID:     ChartBackwardMoves,
			Title:  "Backward movements from each column",
			Board:  board,
			Labels: labels,
			Series: []Series{{Name: "backward", Values: backward}},
		},
	}
}

// WriteCharts writes each chart to <dir>/<base>-<chart id>.json and returns
// the written paths.
func WriteCharts(dir, base string, charts []Chart) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}

	paths := make([]string, 0, len(charts))
	for _, chart := range charts {
		data, err := json.MarshalIndent(chart, "", "  ")
		if err != nil {
			return paths, fmt.Errorf("failed to encode chart %s: %w", chart.ID, err)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s-%s.json", base, chart.ID))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write chart %s: %w", chart.ID, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
