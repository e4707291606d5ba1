package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/pkg/models"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func at(hours float64) time.Time {
	return t0.Add(time.Duration(hours * float64(time.Hour)))
}

type fakeSource struct {
	FindBoardFunc   func(ctx context.Context, ref snapshot.BoardRef) (models.Board, error)
	ListColumnsFunc func(ctx context.Context, board models.Board) ([]models.Column, error)
	ListCardsFunc   func(ctx context.Context, board models.Board) ([]models.Card, error)
	MoveEventsFunc  func(ctx context.Context, board models.Board, card models.Card) ([]models.MoveEvent, error)
	CommentsFunc    func(ctx context.Context, board models.Board, card models.Card) ([]models.Comment, error)
}

func (f *fakeSource) FindBoard(ctx context.Context, ref snapshot.BoardRef) (models.Board, error) {
	return f.FindBoardFunc(ctx, ref)
}

func (f *fakeSource) ListColumns(ctx context.Context, board models.Board) ([]models.Column, error) {
	return f.ListColumnsFunc(ctx, board)
}

func (f *fakeSource) ListMembers(context.Context, models.Board) ([]models.Member, error) {
	return []models.Member{{ID: "m1", Username: "alice"}}, nil
}

func (f *fakeSource) ListLabels(context.Context, models.Board) ([]models.Label, error) {
	return nil, nil
}

func (f *fakeSource) ListCards(ctx context.Context, board models.Board) ([]models.Card, error) {
	return f.ListCardsFunc(ctx, board)
}

func (f *fakeSource) MoveEvents(ctx context.Context, board models.Board, card models.Card) ([]models.MoveEvent, error) {
	return f.MoveEventsFunc(ctx, board, card)
}

func (f *fakeSource) Comments(ctx context.Context, board models.Board, card models.Card) ([]models.Comment, error) {
	return f.CommentsFunc(ctx, board, card)
}

type fakeLister struct {
	fakeSource
	ListBoardsFunc func(ctx context.Context) ([]models.Board, error)
}

func (f *fakeLister) ListBoards(ctx context.Context) ([]models.Board, error) {
	return f.ListBoardsFunc(ctx)
}

// newTeamBoard serves one board named "Team Board" with a single done card.
func newTeamBoard(t *testing.T) *fakeSource {
	return &fakeSource{
		FindBoardFunc: func(_ context.Context, ref snapshot.BoardRef) (models.Board, error) {
			if ref.Name != "Team Board" {
				return models.Board{}, snapshot.ErrBoardNotFound
			}
			return models.Board{ID: "b1", Name: "Team Board"}, nil
		},
		ListColumnsFunc: func(context.Context, models.Board) ([]models.Column, error) {
			return []models.Column{{ID: "todo", Name: "Todo"}, {ID: "doing", Name: "Doing"}, {ID: "done", Name: "Done"}}, nil
		},
		ListCardsFunc: func(context.Context, models.Board) ([]models.Card, error) {
			return []models.Card{{
				ID:             "c1",
				Name:           "Fix login",
				ColumnID:       "done",
				CreatedAt:      t0,
				LastActivityAt: at(5),
				MemberIDs:      []string{"m1"},
			}}, nil
		},
		MoveEventsFunc: func(context.Context, models.Board, models.Card) ([]models.MoveEvent, error) {
			// out of order on purpose, the loader sorts them
			return []models.MoveEvent{
				{Timestamp: at(5), FromColumnID: "doing", ToColumnID: "done"},
				{Timestamp: t0, ToColumnID: "todo"},
				{Timestamp: at(2), FromColumnID: "todo", ToColumnID: "doing"},
			}, nil
		},
		CommentsFunc: func(context.Context, models.Board, models.Card) ([]models.Comment, error) {
			t.Error("comments fetched without a comment pattern")
			return nil, nil
		},
	}
}

func boardConfig(name, developmentList, outputDir string) string {
	return fmt.Sprintf(`
source: trello
board_name: %s
development_list: %s
done_list: Done
output_dir: %s
workers: 2
`, name, developmentList, outputDir)
}

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newRunner(out *bytes.Buffer, src snapshot.Source, opened *[]string) *statsRunner {
	return &statsRunner{
		out:         out,
		credentials: &config.Credentials{},
		openSource: func(source, repository string, _ *config.Credentials) (snapshot.Source, error) {
			if opened != nil {
				*opened = append(*opened, source)
			}
			return src, nil
		},
		now: func() time.Time { return at(24) },
	}
}

func TestStatsRunnerSingleBoard(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "reports")
	path := writeConfig(t, dir, "team.conf.yaml", boardConfig("Team Board", "Doing", outputDir))

	var out bytes.Buffer
	var opened []string
	r := newRunner(&out, newTeamBoard(t), &opened)

	require.NoError(t, r.run(context.Background(), path))

	assert.Equal(t, []string{config.SourceTrello}, opened)
	assert.Contains(t, out.String(), "Board Team Board")
	assert.Contains(t, out.String(), "Lead time: avg: 5.00 h, std_dev: 0.00")
	assert.Contains(t, out.String(), "Cycle time (Doing > Done): avg: 3.00 h, std_dev: 0.00")

	saved, err := os.ReadFile(filepath.Join(outputDir, "team-board-20240305-090000.txt"))
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(saved))

	_, err = os.Stat(filepath.Join(outputDir, "team-board-20240305-090000-time_by_column.json"))
	assert.NoError(t, err)
}

func TestStatsRunnerContinuesAfterFailedBoard(t *testing.T) {
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "reports")
	writeConfig(t, dir, "a.conf.yaml", boardConfig("Missing", "Doing", outputDir))
	writeConfig(t, dir, "b.conf.yaml", boardConfig("Team Board", "Doing", outputDir))
	writeConfig(t, dir, "notes.yaml", "not a board configuration")

	var out bytes.Buffer
	r := newRunner(&out, newTeamBoard(t), nil)

	err := r.run(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrBoardNotFound))
	assert.Contains(t, err.Error(), `board "Missing"`)

	assert.Contains(t, out.String(), "Board Team Board", "the second board is still reported")
}

func TestStatsRunnerBindErrorSkipsCards(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "team.conf.yaml", boardConfig("Team Board", "Review", filepath.Join(dir, "reports")))

	src := newTeamBoard(t)
	src.ListCardsFunc = func(context.Context, models.Board) ([]models.Card, error) {
		t.Error("cards listed after a configuration error")
		return nil, nil
	}

	var out bytes.Buffer
	err := newRunner(&out, src, nil).run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "development_list")
	assert.Contains(t, err.Error(), "Review")
	assert.Empty(t, out.String())
}

func TestStatsRunnerInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "team.conf.yaml", "source: trello\nworkers: 0\n")

	var opened []string
	err := newRunner(&bytes.Buffer{}, newTeamBoard(t), &opened).run(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "development_list is required")
	assert.Empty(t, opened, "no source is opened for an invalid configuration")
}

func TestOpenSourceErrors(t *testing.T) {
	testCases := []struct {
		name       string
		source     string
		repository string
		wantErr    string
	}{
		{name: "Unknown source", source: "asana", wantErr: `unknown source "asana"`},
		{name: "Trello without credentials", source: "trello", wantErr: "TRELLO_API_KEY"},
		{name: "Jira without credentials", source: "JIRA", wantErr: "JIRA_URL"},
		{name: "GitHub without credentials", source: "github", repository: "org/repo", wantErr: "GITHUB_TOKEN"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src, err := openSource(tc.source, tc.repository, &config.Credentials{})
			require.Error(t, err)
			assert.Nil(t, src)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestListBoards(t *testing.T) {
	src := &fakeLister{
		ListBoardsFunc: func(context.Context) ([]models.Board, error) {
			return []models.Board{{ID: "5f1", Name: "Team Board"}, {ID: "65e58e30", Name: "Ops"}}, nil
		},
	}

	var out bytes.Buffer
	require.NoError(t, listBoards(context.Background(), &out, src))
	assert.Equal(t, "5f1       Team Board\n65e58e30  Ops\n", out.String())
}

func TestListBoardsEmptyAndErrors(t *testing.T) {
	var out bytes.Buffer
	empty := &fakeLister{ListBoardsFunc: func(context.Context) ([]models.Board, error) { return nil, nil }}
	require.NoError(t, listBoards(context.Background(), &out, empty))
	assert.Equal(t, "No boards found\n", out.String())

	failing := &fakeLister{ListBoardsFunc: func(context.Context) ([]models.Board, error) {
		return nil, errors.New("401 unauthorized")
	}}
	err := listBoards(context.Background(), &out, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 unauthorized")

	err = listBoards(context.Background(), &out, &fakeSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot list boards")
}

func TestShowConfigMasksCredentials(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "team.conf.yaml", boardConfig("Team Board", "Doing", "reports"))
	boards, err := config.LoadBoardConfigs(path)
	require.NoError(t, err)

	creds := &config.Credentials{
		Trello: config.TrelloConfig{APIKey: "0123456789abcdef", Token: "fedcba9876543210"},
		Jira:   config.JiraConfig{URL: "https://jira.example.com", Username: "alice"},
	}

	var out bytes.Buffer
	require.NoError(t, showConfig(&out, boards, creds))

	shown := out.String()
	assert.Contains(t, shown, "board_name: Team Board")
	assert.Contains(t, shown, "development_list: Doing")
	assert.Contains(t, shown, "workers: 2")
	assert.Contains(t, shown, "api_key: 0123...***")
	assert.Contains(t, shown, "url: https://jira.example.com")
	assert.Contains(t, shown, "token: <not set>")
	assert.NotContains(t, shown, "0123456789abcdef")
	assert.NotContains(t, shown, "fedcba9876543210")

	assert.Equal(t, "0123456789abcdef", creds.Trello.APIKey, "credentials are not modified")
}

func TestExecuteClosesLogFileWhenCommandFails(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, "team.conf.yaml", boardConfig("Team Board", "Doing", filepath.Join(dir, "reports")))
	logPath := filepath.Join(dir, "logs", "flowstats.log")

	t.Setenv("LOG_FILE", logPath)
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("TRELLO_API_KEY", "")
	t.Setenv("TRELLO_TOKEN", "")

	var stderr bytes.Buffer
	rootCmd.SetArgs([]string{"stats", "--config", configPath})
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&stderr)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		logging.SetupLogger(os.Stderr, logging.LevelInfo)
	})

	err := Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRELLO_API_KEY")
	assert.Nil(t, logCloser, "log file is closed after a failed command")

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "board analysis failed")
}
