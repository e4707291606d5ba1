// Package jira reads agile boards from Jira. Board columns come from the board
// configuration and card moves from the status changes in issue changelogs.
package jira

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// timeLayout is the format of changelog and comment timestamps.
const timeLayout = "2006-01-02T15:04:05.000-0700"

const pageSize = 100

var issueFields = []string{"summary", "status", "created", "updated", "labels", "assignee", "comment"}

// Client handles interactions with the JIRA API
type Client struct {
	client *jira.Client

	mu     sync.Mutex
	boards map[string]*boardData
}

// boardData is what the client learns about a board on first use.
type boardData struct {
	columns      []models.Column
	statusColumn map[string]string
	filterID     string

	issues   []jira.Issue
	fetched  bool
	byKey    map[string]*jira.Issue
	members  []models.Member
	labelIDs []string
}

// NewClient creates a new JIRA client
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create JIRA client: %w", err)
	}

	logging.Debug("jira configuration",
		"url", cfg.URL,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client: client,
		boards: make(map[string]*boardData),
	}, nil
}

// ListBoards returns every agile board visible to the user.
func (c *Client) ListBoards(ctx context.Context) ([]models.Board, error) {
	boards, err := c.searchBoards(ctx, "")
	if err != nil {
		return nil, err
	}

	result := make([]models.Board, 0, len(boards))
	for _, b := range boards {
		result = append(result, models.Board{ID: strconv.Itoa(b.ID), Name: b.Name})
	}
	return result, nil
}

// FindBoard looks a board up by numeric id or by name.
func (c *Client) FindBoard(ctx context.Context, ref snapshot.BoardRef) (models.Board, error) {
	if ref.ID != "" {
		id, err := strconv.Atoi(ref.ID)
		if err != nil {
			return models.Board{}, fmt.Errorf("invalid JIRA board id %q: %w", ref.ID, err)
		}
		board, resp, err := c.client.Board.GetBoardWithContext(ctx, id)
		if err != nil {
			return models.Board{}, fmt.Errorf("failed to fetch JIRA board %d: %w (status: %d)", id, err, statusCode(resp))
		}
		return models.Board{ID: strconv.Itoa(board.ID), Name: board.Name}, nil
	}

	boards, err := c.searchBoards(ctx, ref.Name)
	if err != nil {
		return models.Board{}, err
	}
	for _, b := range boards {
		if strings.EqualFold(b.Name, ref.Name) {
			return models.Board{ID: strconv.Itoa(b.ID), Name: b.Name}, nil
		}
	}

	return models.Board{}, fmt.Errorf("jira board '%s': %w", ref.Name, snapshot.ErrBoardNotFound)
}

// ListColumns returns the board columns. Column ids are the column names.
func (c *Client) ListColumns(ctx context.Context, b models.Board) ([]models.Column, error) {
	data, err := c.configuration(ctx, b)
	if err != nil {
		return nil, err
	}
	return data.columns, nil
}

// ListLabels returns the labels used by the board issues.
func (c *Client) ListLabels(ctx context.Context, b models.Board) ([]models.Label, error) {
	data, err := c.fetchIssues(ctx, b)
	if err != nil {
		return nil, err
	}

	labels := make([]models.Label, len(data.labelIDs))
	for i, name := range data.labelIDs {
		labels[i] = models.Label{ID: name, Name: name}
	}
	return labels, nil
}

// ListMembers returns the assignees of the board issues.
func (c *Client) ListMembers(ctx context.Context, b models.Board) ([]models.Member, error) {
	data, err := c.fetchIssues(ctx, b)
	if err != nil {
		return nil, err
	}
	return data.members, nil
}

// ListCards returns the board issues whose status is mapped to a column.
func (c *Client) ListCards(ctx context.Context, b models.Board) ([]models.Card, error) {
	data, err := c.fetchIssues(ctx, b)
	if err != nil {
		return nil, err
	}

	cards := make([]models.Card, 0, len(data.issues))
	for i := range data.issues {
		card, ok := toCard(&data.issues[i], data.statusColumn)
		if !ok {
			logging.Debug("skipping issue outside board columns", "issue", data.issues[i].Key)
			continue
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// MoveEvents returns the column changes of an issue.
func (c *Client) MoveEvents(ctx context.Context, b models.Board, card models.Card) ([]models.MoveEvent, error) {
	data, issue, err := c.issue(ctx, b, card.ID)
	if err != nil {
		return nil, err
	}
	return toMoves(issue, data.statusColumn), nil
}

// Comments returns the comments of an issue.
func (c *Client) Comments(ctx context.Context, b models.Board, card models.Card) ([]models.Comment, error) {
	_, issue, err := c.issue(ctx, b, card.ID)
	if err != nil {
		return nil, err
	}
	return toComments(issue), nil
}

func (c *Client) searchBoards(ctx context.Context, name string) ([]jira.Board, error) {
	opts := &jira.BoardListOptions{
		Name:          name,
		SearchOptions: jira.SearchOptions{MaxResults: pageSize},
	}

	var boards []jira.Board
	for {
		page, resp, err := c.client.Board.GetAllBoardsWithContext(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch JIRA boards: %w (status: %d)", err, statusCode(resp))
		}
		boards = append(boards, page.Values...)
		if page.IsLast || len(page.Values) == 0 {
			break
		}
		opts.StartAt += len(page.Values)
	}
	return boards, nil
}

func (c *Client) configuration(ctx context.Context, b models.Board) (*boardData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.boards[b.ID]; ok {
		return data, nil
	}

	id, err := strconv.Atoi(b.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid JIRA board id %q: %w", b.ID, err)
	}

	cfg, resp, err := c.client.Board.GetBoardConfigurationWithContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch configuration of JIRA board '%s': %w (status: %d)", b.Name, err, statusCode(resp))
	}

	columns, statusColumn := toColumns(cfg)
	data := &boardData{
		columns:      columns,
		statusColumn: statusColumn,
		filterID:     cfg.Filter.ID,
	}
	c.boards[b.ID] = data
	return data, nil
}

func (c *Client) fetchIssues(ctx context.Context, b models.Board) (*boardData, error) {
	data, err := c.configuration(ctx, b)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if data.fetched {
		return data, nil
	}

	jql := fmt.Sprintf("filter = %s ORDER BY created ASC", data.filterID)
	opts := &jira.SearchOptions{
		MaxResults: pageSize,
		Expand:     "changelog",
		Fields:     issueFields,
	}

	var issues []jira.Issue
	for {
		page, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to search JIRA issues: %w (status: %d)", err, statusCode(resp))
		}
		issues = append(issues, page...)
		if len(page) == 0 || resp == nil || opts.StartAt+len(page) >= resp.Total {
			break
		}
		opts.StartAt += len(page)
	}

	data.issues = issues
	data.byKey = make(map[string]*jira.Issue, len(issues))
	for i := range issues {
		data.byKey[issues[i].Key] = &data.issues[i]
	}
	data.members, data.labelIDs = collectMembersAndLabels(issues)
	data.fetched = true

	logging.Debug("fetched jira issues", "board", b.Name, "count", len(issues))
	return data, nil
}

func (c *Client) issue(ctx context.Context, b models.Board, key string) (*boardData, *jira.Issue, error) {
	data, err := c.fetchIssues(ctx, b)
	if err != nil {
		return nil, nil, err
	}

	c.mu.Lock()
	issue, ok := data.byKey[key]
	c.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("issue %s is not on board '%s'", key, b.Name)
	}
	return data, issue, nil
}

func statusCode(resp *jira.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}

func toColumns(cfg *jira.BoardConfiguration) ([]models.Column, map[string]string) {
	columns := make([]models.Column, 0, len(cfg.ColumnConfig.Columns))
	statusColumn := make(map[string]string)
	for i, col := range cfg.ColumnConfig.Columns {
		columns = append(columns, models.Column{ID: col.Name, Name: col.Name, Order: i + 1})
		for _, status := range col.Status {
			statusColumn[status.ID] = col.Name
		}
	}
	return columns, statusColumn
}

func userID(u *jira.User) string {
	if u == nil {
		return ""
	}
	if u.AccountID != "" {
		return u.AccountID
	}
	return u.Name
}

func toCard(issue *jira.Issue, statusColumn map[string]string) (models.Card, bool) {
	if issue.Fields == nil || issue.Fields.Status == nil {
		return models.Card{}, false
	}
	column, ok := statusColumn[issue.Fields.Status.ID]
	if !ok {
		return models.Card{}, false
	}

	card := models.Card{
		ID:             issue.Key,
		Name:           issue.Fields.Summary,
		ColumnID:       column,
		CreatedAt:      time.Time(issue.Fields.Created),
		LastActivityAt: time.Time(issue.Fields.Updated),
		LabelIDs:       issue.Fields.Labels,
	}
	if id := userID(issue.Fields.Assignee); id != "" {
		card.MemberIDs = []string{id}
	}
	return card, true
}

// changeValue renders a changelog from/to value, which the API sends as a
// string, a number or null.
func changeValue(v interface{}) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// toMoves turns status changes into column moves. A change from a status
// outside the board is an arrival; a change to one is ignored.
func toMoves(issue *jira.Issue, statusColumn map[string]string) []models.MoveEvent {
	if issue.Changelog == nil {
		return nil
	}

	var moves []models.MoveEvent
	for _, history := range issue.Changelog.Histories {
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}

			to, ok := statusColumn[changeValue(item.To)]
			if !ok {
				continue
			}
			moves = append(moves, models.MoveEvent{
				Timestamp:    parseTime(history.Created),
				FromColumnID: statusColumn[changeValue(item.From)],
				ToColumnID:   to,
				ActorID:      history.Author.AccountID,
			})
		}
	}
	return moves
}

func toComments(issue *jira.Issue) []models.Comment {
	if issue.Fields == nil || issue.Fields.Comments == nil {
		return nil
	}

	comments := make([]models.Comment, 0, len(issue.Fields.Comments.Comments))
	for _, comment := range issue.Fields.Comments.Comments {
		if comment == nil {
			continue
		}
		comments = append(comments, models.Comment{
			AuthorID:  userID(&comment.Author),
			CreatedAt: parseTime(comment.Created),
			Text:      comment.Body,
		})
	}
	return comments
}

func collectMembersAndLabels(issues []jira.Issue) ([]models.Member, []string) {
	var members []models.Member
	var labels []string
	seenMembers := make(map[string]bool)
	seenLabels := make(map[string]bool)

	for _, issue := range issues {
		if issue.Fields == nil {
			continue
		}
		if a := issue.Fields.Assignee; a != nil {
			if id := userID(a); id != "" && !seenMembers[id] {
				seenMembers[id] = true
				members = append(members, models.Member{ID: id, Username: a.DisplayName})
			}
		}
		for _, label := range issue.Fields.Labels {
			if !seenLabels[label] {
				seenLabels[label] = true
				labels = append(labels, label)
			}
		}
	}
	return members, labels
}

// parseTime returns the zero time for timestamps it cannot read, so the card
// is reported instead of silently misplaced.
func parseTime(value string) time.Time {
	for _, layout := range []string{timeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	logging.Debug("unparseable jira timestamp", "value", value)
	return time.Time{}
}
