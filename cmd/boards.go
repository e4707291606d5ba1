package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/snapshot"
)

// boardsCmd lists the boards visible to the configured credentials.
var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List the boards accessible with the configured credentials",
	Long: `List the boards accessible with the configured credentials, with the id
and name to use as board_id or board_name in a board configuration file.

For the github source, --repository selects the repository whose projects are listed.

Example:
  flowstats boards --source trello
  flowstats boards --source github --repository owner/repo`,
	RunE: func(cmd *cobra.Command, args []string) error {
		source, err := cmd.Flags().GetString("source")
		if err != nil {
			return err
		}
		repository, err := cmd.Flags().GetString("repository")
		if err != nil {
			return err
		}

		src, err := openSource(source, repository, config.LoadCredentials())
		if err != nil {
			return err
		}
		return listBoards(cmd.Context(), cmd.OutOrStdout(), src)
	},
}

func listBoards(ctx context.Context, out io.Writer, src snapshot.Source) error {
	lister, ok := src.(snapshot.BoardLister)
	if !ok {
		return fmt.Errorf("source cannot list boards")
	}

	boards, err := lister.ListBoards(ctx)
	if err != nil {
		return fmt.Errorf("failed to list boards: %w", err)
	}
	logging.Debug("boards listed", "count", len(boards))

	if len(boards) == 0 {
		_, err := fmt.Fprintln(out, "No boards found")
		return err
	}

	width := 0
	for _, b := range boards {
		if w := lipgloss.Width(b.ID); w > width {
			width = w
		}
	}
	for _, b := range boards {
		if _, err := fmt.Fprintf(out, "%-*s  %s\n", width, b.ID, b.Name); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	boardsCmd.Flags().StringP("source", "s", config.SourceTrello, "Board source (trello, jira, github)")
	boardsCmd.Flags().StringP("repository", "r", "", "GitHub repository name (e.g., 'owner/repo')")
}
