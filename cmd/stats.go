package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/danielolaszy/flowstats/internal/aggregate"
	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/report"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// statsCmd computes and reports the statistics of every configured board.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute workflow statistics of one or more boards",
	Long: `Compute workflow statistics of the boards described by board configuration files.

The --config flag takes a single configuration file, or a directory whose
*.conf.yaml and *.conf.yml files are processed one board at a time, in name order.

For every board this command:

1. Fetches the board columns, members, labels and cards with their movement history
2. Resolves how long each card spent in each column
3. Prints the report to stdout and saves it in the board's output_dir
4. Writes the chart data (time by column, forward and backward moves) as JSON

Credentials are read from TRELLO_API_KEY, TRELLO_TOKEN, JIRA_URL, JIRA_USERNAME,
JIRA_TOKEN, GITHUB_TOKEN and GITHUB_DOMAIN.

Example:
  flowstats stats -c boards/
  flowstats stats -c team.conf.yaml --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("config flag is required")
		}

		r := &statsRunner{
			out:         cmd.OutOrStdout(),
			credentials: config.LoadCredentials(),
			openSource:  openSource,
			now:         time.Now,
		}
		return r.run(cmd.Context(), path)
	},
}

type statsRunner struct {
	out         io.Writer
	credentials *config.Credentials
	openSource  SourceFactory
	now         func() time.Time
}

// run processes every board configuration found at path. A failing board does
// not stop the others; all failures are returned together.
func (r *statsRunner) run(ctx context.Context, path string) error {
	boards, loadErr := config.LoadBoardConfigs(path)
	if len(boards) == 0 {
		return loadErr
	}

	errs := loadErr
	for _, cfg := range boards {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := r.runBoard(ctx, cfg); err != nil {
			logging.Error("board analysis failed", "board", cfg.DisplayName(), "config", cfg.Path, "error", err)
			errs = multierr.Append(errs, fmt.Errorf("board %q: %w", cfg.DisplayName(), err))
		}
	}
	return errs
}

func (r *statsRunner) runBoard(ctx context.Context, cfg *config.BoardConfig) error {
	restore := logging.With("run_id", uuid.NewString(), "board", cfg.DisplayName())
	defer restore()

	logging.Info("starting board analysis", "source", cfg.Source, "config", cfg.Path)
	started := r.now()

	src, err := r.openSource(cfg.Source, cfg.Repository, r.credentials)
	if err != nil {
		return err
	}

	spec := cfg.AnalysisSpec()
	spec.Now = r.now

	var settings *aggregate.Settings
	snap, err := snapshot.Load(ctx, src, cfg.BoardRef(), snapshot.Options{
		Workers:  cfg.Workers,
		Comments: cfg.TracksTime(),
		Now:      r.now,
		Bind: func(columns []models.Column, labels []models.Label) error {
			bound, err := aggregate.Bind(spec, columns, labels)
			if err != nil {
				return err
			}
			settings = bound
			return nil
		},
	})
	if err != nil {
		return err
	}

	stats := aggregate.New(settings).Run(snap)

	printer := &report.Printer{
		Out:       r.out,
		OutputDir: cfg.OutputDir,
		Options: report.Options{
			Censored: cfg.Censored,
			Location: cfg.Location(),
		},
	}
	if _, err := printer.Print(stats); err != nil {
		return err
	}

	logging.Info("board analysis finished",
		"cards", len(snap.Cards),
		"error_cards", len(stats.ErrorCards),
		"elapsed", r.now().Sub(started).String())
	return nil
}
