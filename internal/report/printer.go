package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gosimple/slug"

	"github.com/danielolaszy/flowstats/internal/aggregate"
	"github.com/danielolaszy/flowstats/internal/logging"
)

const fileTimestampLayout = "20060102-150405"

// Printer prints a board report to an output stream and saves a copy, with
// the chart data, in an output directory.
type Printer struct {
	Out       io.Writer
	OutputDir string
	Options   Options
}

// Output lists the files a Printer wrote.
type Output struct {
	Report string
	Charts []string
}

// BaseName is the file name prefix of a board's outputs: the slugified board
// name followed by the generation time.
func BaseName(boardName string, generatedAt time.Time) string {
	name := slug.Make(boardName)
	if name == "" {
		name = "board"
	}
	return fmt.Sprintf("%s-%s", name, generatedAt.UTC().Format(fileTimestampLayout))
}

// Print writes the report of s.
func (p *Printer) Print(s *aggregate.BoardStats) (Output, error) {
	if err := Write(p.Out, s, p.Options); err != nil {
		return Output{}, fmt.Errorf("failed to print report: %w", err)
	}

	if err := os.MkdirAll(p.OutputDir, 0o755); err != nil {
		return Output{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	namer := NewNamer(s, p.Options.Censored)
	base := BaseName(namer.Board(s.Board), s.GeneratedAt)

	path := filepath.Join(p.OutputDir, base+".txt")
	file, err := os.Create(path)
	if err != nil {
		return Output{}, fmt.Errorf("failed to create report file: %w", err)
	}
	if err := Write(file, s, p.Options); err != nil {
		file.Close()
		return Output{}, fmt.Errorf("failed to write report file: %w", err)
	}
	if err := file.Close(); err != nil {
		return Output{}, fmt.Errorf("failed to close report file: %w", err)
	}

	charts, err := WriteCharts(p.OutputDir, base, Charts(s, namer))
	if err != nil {
		return Output{}, err
	}

	logging.Info("report saved", "report", path, "charts", len(charts))
	return Output{Report: path, Charts: charts}, nil
}
