// Package cmd provides the command-line interface for the flowstats CLI tool.
package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/flowstats/internal/logging"
)

var logCloser io.Closer

var rootCmd = &cobra.Command{
	Use:   "flowstats",
	Short: "Flowstats computes workflow statistics of kanban boards",
	Long: `Flowstats is a CLI tool that reads the card history of a kanban board
(Trello, JIRA or GitHub projects) and reports how long cards spend in each
column, how they move between columns, cycle and lead times, throughput and
the time members booked in card comments.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := logging.OptionsFromEnv()
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			opts.Level = logging.LogLevel(level)
		}

		closer, err := logging.Configure(cmd.ErrOrStderr(), opts)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The log file opened for the command is closed whether or not it fails.
func Execute(ctx context.Context) error {
	defer closeLog()
	return rootCmd.ExecuteContext(ctx)
}

func closeLog() {
	if logCloser == nil {
		return
	}
	if err := logCloser.Close(); err != nil {
		logging.Warn("failed to close log file", "error", err)
	}
	logCloser = nil
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringP("config", "c", "", "Board configuration file, or a directory of *.conf.yaml files")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(boardsCmd)
	rootCmd.AddCommand(configCmd)
}
