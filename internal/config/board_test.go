package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/danielolaszy/flowstats/internal/aggregate"
	"github.com/danielolaszy/flowstats/internal/history"
	"github.com/danielolaszy/flowstats/internal/workflow"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const fullConfig = `
source: trello
board_name: Team board
development_list: Doing
done_list: Done
timezone: Europe/Madrid
active_cards:
  strategy: with_labels
  labels: [bug, feature]
comment_spent_estimated_regex: PLUS_FOR_TRELLO
card_action_filter:
  start: 2024-01-01
  end: "2024-03-31T18:00:00+02:00"
custom_workflows:
  - name: delivery
    lists: [Doing, Review]
    done_lists: [Done]
output_dir: out
censored: true
workers: 8
`

func TestLoadBoardConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "team.conf.yaml", fullConfig)

	cfg, err := LoadBoardConfig(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, SourceTrello, cfg.Source)
	assert.Equal(t, "Team board", cfg.BoardName)
	assert.Equal(t, "Team board", cfg.DisplayName())
	assert.Equal(t, "Doing", cfg.DevelopmentList)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.True(t, cfg.Censored)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.TracksTime())
	assert.Equal(t, []WorkflowConfig{{Name: "delivery", Lists: []string{"Doing", "Review"}, DoneLists: []string{"Done"}}}, cfg.Workflows)

	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	assert.Equal(t, madrid.String(), cfg.Location().String())

	window := cfg.HistoryWindow()
	require.NotNil(t, window.Start)
	require.NotNil(t, window.End)
	assert.True(t, window.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, madrid)), "dates are read in the board timezone")
	assert.True(t, window.End.Equal(time.Date(2024, 3, 31, 16, 0, 0, 0, time.UTC)))

	spec := cfg.AnalysisSpec()
	assert.Equal(t, "Doing", spec.DevelopmentList)
	assert.Equal(t, "Done", spec.DoneList)
	assert.Equal(t, aggregate.ActiveSpec{Strategy: "with_labels", Labels: []string{"bug", "feature"}}, spec.Active)
	assert.Equal(t, []workflow.Definition{{Name: "delivery", ListNames: []string{"Doing", "Review"}, DoneListNames: []string{"Done"}}}, spec.Workflows)
	assert.Equal(t, "PLUS_FOR_TRELLO", spec.CommentPattern)
	assert.Equal(t, 8, spec.Workers)
	assert.Equal(t, window, spec.Window)
}

func TestLoadBoardConfigDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "b.conf.yaml", "board_id: abc123\ndevelopment_list: Doing\n")

	cfg, err := LoadBoardConfig(path)
	require.NoError(t, err)

	assert.Equal(t, SourceTrello, cfg.Source)
	assert.Equal(t, defaultWorkers, cfg.Workers)
	assert.Equal(t, defaultOutputDir, cfg.OutputDir)
	assert.Equal(t, "", cfg.DoneList, "an empty done list means the last column")
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, cfg.HistoryWindow().IsZero())
	assert.False(t, cfg.TracksTime())
	assert.Equal(t, "abc123", cfg.BoardRef().ID)
	assert.Equal(t, "abc123", cfg.DisplayName())
}

func TestLoadBoardConfigEnvironmentDefaults(t *testing.T) {
	t.Setenv("FLOWSTATS_DEVELOPMENT_LIST", "In progress")
	t.Setenv("FLOWSTATS_DONE_LIST", "Shipped")
	t.Setenv("FLOWSTATS_WORKERS", "2")

	path := writeFile(t, t.TempDir(), "b.conf.yaml", "board_name: Team\ndone_list: Done\n")

	cfg, err := LoadBoardConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "In progress", cfg.DevelopmentList)
	assert.Equal(t, "Done", cfg.DoneList, "the file overrides the environment")
	assert.Equal(t, 2, cfg.Workers)
}

func TestLoadBoardConfigCollectsAllErrors(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.conf.yaml", `
source: asana
timezone: Mars/Olympus
active_cards:
  strategy: recent
comment_spent_estimated_regex: "(?P<spent>\\d+)"
card_action_filter:
  start: 2024-05-01
  end: 2024-04-01
custom_workflows:
  - name: ""
workers: 0
`)

	_, err := LoadBoardConfig(path)
	require.Error(t, err)

	msg := err.Error()
	for _, want := range []string{
		"source \"asana\"",
		"board_name or board_id is required",
		"development_list is required",
		"active_cards.strategy \"recent\"",
		"timezone \"Mars/Olympus\"",
		"comment_spent_estimated_regex",
		"card_action_filter",
		"custom_workflows[0]: name is required",
		"workers \"0\"",
	} {
		assert.Contains(t, msg, want)
	}
	assert.True(t, errors.Is(err, history.ErrInvalidWindow))
}

func TestValidateGitHubNeedsRepository(t *testing.T) {
	cfg := &BoardConfig{Source: SourceGitHub, BoardName: "Roadmap", DevelopmentList: "Doing", Workers: 1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repository is required")

	cfg.Repository = "owner/repo"
	assert.NoError(t, cfg.Validate())
}

func TestLoadBoardConfigs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.conf.yml", "board_name: B\ndevelopment_list: Doing\n")
	writeFile(t, dir, "a.conf.yaml", "board_name: A\ndevelopment_list: Doing\n")
	writeFile(t, dir, "notes.yaml", "board_name: ignored\n")

	configs, err := LoadBoardConfigs(dir)
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "A", configs[0].BoardName)
	assert.Equal(t, "B", configs[1].BoardName)

	single, err := LoadBoardConfigs(filepath.Join(dir, "a.conf.yaml"))
	require.NoError(t, err)
	require.Len(t, single, 1)
}

func TestLoadBoardConfigsReportsEveryBadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.conf.yaml", "board_name: A\n")
	writeFile(t, dir, "b.conf.yaml", "board_name: B\ndevelopment_list: Doing\n")
	writeFile(t, dir, "c.conf.yaml", "development_list: Doing\n")

	configs, err := LoadBoardConfigs(dir)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	require.Len(t, configs, 1)
	assert.Equal(t, "B", configs[0].BoardName)
}

func TestLoadBoardConfigsErrors(t *testing.T) {
	_, err := LoadBoardConfigs(filepath.Join(t.TempDir(), "missing.conf.yaml"))
	assert.Error(t, err)

	_, err = LoadBoardConfigs(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no board configuration")
}
