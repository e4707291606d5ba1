package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Board configuration commands",
}

// configShowCmd prints the resolved board configuration, environment
// defaults included, with masked credentials.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved board configuration",
	Long: `Print the board configuration as flowstats resolves it: file values, FLOWSTATS_*
environment defaults and built-in defaults, followed by the credentials found in
the environment. Tokens are masked.

Example:
  flowstats config show -c team.conf.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString("config")
		if err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("config flag is required")
		}

		boards, err := config.LoadBoardConfigs(path)
		if err != nil {
			return err
		}
		return showConfig(cmd.OutOrStdout(), boards, config.LoadCredentials())
	},
}

type shownConfig struct {
	Path        string              `yaml:"path"`
	Board       *config.BoardConfig `yaml:"board"`
	Credentials config.Credentials  `yaml:"credentials"`
}

func maskCredentials(c *config.Credentials) config.Credentials {
	masked := *c
	masked.Trello.APIKey = logging.MaskSensitive(c.Trello.APIKey)
	masked.Trello.Token = logging.MaskSensitive(c.Trello.Token)
	masked.Jira.Token = logging.MaskSensitive(c.Jira.Token)
	masked.GitHub.Token = logging.MaskSensitive(c.GitHub.Token)
	return masked
}

func showConfig(out io.Writer, boards []*config.BoardConfig, creds *config.Credentials) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	masked := maskCredentials(creds)
	for _, b := range boards {
		if err := enc.Encode(shownConfig{Path: b.Path, Board: b, Credentials: masked}); err != nil {
			return fmt.Errorf("failed to encode configuration %s: %w", b.Path, err)
		}
	}
	return enc.Close()
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
