// Package github reads classic GitHub projects as boards: project columns are
// the board columns and issue timeline events are the card moves.
package github

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/pkg/models"
)

const perPage = 100

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
	owner  string
	repo   string

	mu sync.Mutex
	// issue number of each issue card, by card id
	issues map[string]int
}

// NewClient creates a GitHub client for the projects of one repository, in
// the format "owner/repo". The API base URL is derived from the configured
// domain, github.com by default.
func NewClient(cfg config.GitHubConfig, repository string) (*Client, error) {
	if err := config.ValidateGitHubConfig(cfg); err != nil {
		return nil, err
	}

	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "github.com"
	}

	logging.Debug("github configuration",
		"domain", domain,
		"api_url", apiURL(domain),
		"repository", repository,
		"token", logging.MaskSensitive(cfg.Token))

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(tc)

	// GitHub Enterprise serves the API under /api/v3/
	if domain != "github.com" {
		parsedURL, err := url.Parse(apiURL(domain))
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	return &Client{
		client: client,
		owner:  owner,
		repo:   repo,
		issues: make(map[string]int),
	}, nil
}

func apiURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// ListBoards returns the classic projects of the repository.
func (c *Client) ListBoards(ctx context.Context) ([]models.Board, error) {
	projects, err := c.projects(ctx)
	if err != nil {
		return nil, err
	}

	boards := make([]models.Board, 0, len(projects))
	for _, p := range projects {
		boards = append(boards, toBoard(p))
	}
	return boards, nil
}

// FindBoard looks a project up by id, or by case-insensitive name.
func (c *Client) FindBoard(ctx context.Context, ref snapshot.BoardRef) (models.Board, error) {
	if ref.ID != "" {
		id, err := strconv.ParseInt(ref.ID, 10, 64)
		if err != nil {
			return models.Board{}, fmt.Errorf("invalid project id %q: %w", ref.ID, err)
		}
		project, _, err := c.client.Projects.GetProject(ctx, id)
		if err != nil {
			return models.Board{}, fmt.Errorf("failed to get GitHub project %d: %w", id, err)
		}
		return toBoard(project), nil
	}

	projects, err := c.projects(ctx)
	if err != nil {
		return models.Board{}, err
	}
	for _, p := range projects {
		if strings.EqualFold(p.GetName(), ref.Name) {
			return toBoard(p), nil
		}
	}

	return models.Board{}, fmt.Errorf("github project '%s' in %s/%s: %w", ref.Name, c.owner, c.repo, snapshot.ErrBoardNotFound)
}

// ListColumns returns the project columns in display order.
func (c *Client) ListColumns(ctx context.Context, b models.Board) ([]models.Column, error) {
	projectID, err := parseID(b.ID)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: perPage}
	var columns []models.Column
	for {
		page, resp, err := c.client.Projects.ListProjectColumns(ctx, projectID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch columns of project '%s': %w", b.Name, err)
		}
		for _, col := range page {
			columns = append(columns, models.Column{
				ID:    strconv.FormatInt(col.GetID(), 10),
				Name:  col.GetName(),
				Order: len(columns) + 1,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return columns, nil
}

// ListMembers returns the users issues can be assigned to.
func (c *Client) ListMembers(ctx context.Context, _ models.Board) ([]models.Member, error) {
	opts := &github.ListOptions{PerPage: perPage}
	var members []models.Member
	for {
		users, resp, err := c.client.Issues.ListAssignees(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch assignees of %s/%s: %w", c.owner, c.repo, err)
		}
		for _, u := range users {
			members = append(members, models.Member{ID: u.GetLogin(), Username: u.GetLogin()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return members, nil
}

// ListLabels returns the repository labels. Label ids are the label names.
func (c *Client) ListLabels(ctx context.Context, _ models.Board) ([]models.Label, error) {
	opts := &github.ListOptions{PerPage: perPage}
	var labels []models.Label
	for {
		page, resp, err := c.client.Issues.ListLabels(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch labels of %s/%s: %w", c.owner, c.repo, err)
		}
		for _, l := range page {
			labels = append(labels, models.Label{ID: l.GetName(), Name: l.GetName()})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return labels, nil
}

// ListCards returns the cards of every project column, archived ones
// included. Issue cards take their title, labels and assignees from the
// issue.
func (c *Client) ListCards(ctx context.Context, b models.Board) ([]models.Card, error) {
	columns, err := c.ListColumns(ctx, b)
	if err != nil {
		return nil, err
	}

	var cards []models.Card
	for _, col := range columns {
		projectCards, err := c.columnCards(ctx, col)
		if err != nil {
			return nil, err
		}

		for _, pc := range projectCards {
			card := toCard(pc, col.ID)

			number, ok := issueNumber(pc.GetContentURL())
			if ok {
				issue, _, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
				if err != nil {
					return nil, fmt.Errorf("failed to get GitHub issue #%d: %w", number, err)
				}
				enrichCard(&card, issue)

				c.mu.Lock()
				c.issues[card.ID] = number
				c.mu.Unlock()
			}

			cards = append(cards, card)
		}
	}

	logging.Debug("fetched github project cards", "project", b.Name, "count", len(cards))
	return cards, nil
}

func (c *Client) columnCards(ctx context.Context, col models.Column) ([]*github.ProjectCard, error) {
	columnID, err := parseID(col.ID)
	if err != nil {
		return nil, err
	}

	opts := &github.ProjectCardListOptions{
		ArchivedState: github.String("all"),
		ListOptions:   github.ListOptions{PerPage: perPage},
	}

	var cards []*github.ProjectCard
	for {
		page, resp, err := c.client.Projects.ListProjectCards(ctx, columnID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cards of column '%s': %w", col.Name, err)
		}
		cards = append(cards, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return cards, nil
}

// MoveEvents returns the project column changes of an issue card. Note cards
// have no history.
func (c *Client) MoveEvents(ctx context.Context, b models.Board, card models.Card) ([]models.MoveEvent, error) {
	number, ok := c.issueNumber(card.ID)
	if !ok {
		return nil, nil
	}

	projectID, err := parseID(b.ID)
	if err != nil {
		return nil, err
	}
	columns, err := c.ListColumns(ctx, b)
	if err != nil {
		return nil, err
	}

	opts := &github.ListOptions{PerPage: perPage}
	var events []*github.Timeline
	for {
		page, resp, err := c.client.Issues.ListIssueTimeline(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch timeline of issue #%d: %w", number, err)
		}
		events = append(events, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return toMoves(events, projectID, columnIDsByName(columns)), nil
}

// Comments returns the comments of an issue card.
func (c *Client) Comments(ctx context.Context, _ models.Board, card models.Card) ([]models.Comment, error) {
	number, ok := c.issueNumber(card.ID)
	if !ok {
		return nil, nil
	}

	opts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	var comments []models.Comment
	for {
		page, resp, err := c.client.Issues.ListComments(ctx, c.owner, c.repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch comments of issue #%d: %w", number, err)
		}
		for _, comment := range page {
			comments = append(comments, models.Comment{
				AuthorID:  comment.GetUser().GetLogin(),
				CreatedAt: comment.GetCreatedAt(),
				Text:      comment.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return comments, nil
}

func (c *Client) projects(ctx context.Context) ([]*github.Project, error) {
	opts := &github.ProjectListOptions{State: "all", ListOptions: github.ListOptions{PerPage: perPage}}

	var projects []*github.Project
	for {
		page, resp, err := c.client.Repositories.ListProjects(ctx, c.owner, c.repo, opts)
		if err != nil {
			logging.Error("failed to fetch github projects", "repository", c.owner+"/"+c.repo, "error", err)
			return nil, fmt.Errorf("failed to fetch GitHub projects: %w", err)
		}
		projects = append(projects, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return projects, nil
}

func (c *Client) issueNumber(cardID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	number, ok := c.issues[cardID]
	return number, ok
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid GitHub id %q: %w", id, err)
	}
	return n, nil
}

func toBoard(p *github.Project) models.Board {
	return models.Board{ID: strconv.FormatInt(p.GetID(), 10), Name: p.GetName()}
}

// issueNumber extracts the number from a card content URL such as
// https://api.github.com/repos/owner/repo/issues/42.
func issueNumber(contentURL string) (int, bool) {
	if contentURL == "" {
		return 0, false
	}
	u, err := url.Parse(contentURL)
	if err != nil {
		return 0, false
	}
	dir, last := path.Split(strings.TrimSuffix(u.Path, "/"))
	if path.Base(dir) != "issues" {
		return 0, false
	}
	number, err := strconv.Atoi(last)
	if err != nil {
		return 0, false
	}
	return number, true
}

func toCard(pc *github.ProjectCard, columnID string) models.Card {
	return models.Card{
		ID:             strconv.FormatInt(pc.GetID(), 10),
		Name:           pc.GetNote(),
		ColumnID:       columnID,
		CreatedAt:      pc.GetCreatedAt().Time,
		LastActivityAt: pc.GetUpdatedAt().Time,
		Closed:         pc.GetArchived(),
	}
}

func enrichCard(card *models.Card, issue *github.Issue) {
	card.Name = issue.GetTitle()
	for _, l := range issue.Labels {
		card.LabelIDs = append(card.LabelIDs, l.GetName())
	}
	for _, u := range issue.Assignees {
		card.MemberIDs = append(card.MemberIDs, u.GetLogin())
	}
}

func columnIDsByName(columns []models.Column) map[string]string {
	ids := make(map[string]string, len(columns))
	for _, col := range columns {
		ids[col.Name] = col.ID
	}
	return ids
}

// toMoves keeps the timeline events of one project. Columns are named in
// timeline events; names no longer on the project map to no column.
func toMoves(events []*github.Timeline, projectID int64, columnIDs map[string]string) []models.MoveEvent {
	var moves []models.MoveEvent
	for _, ev := range events {
		pc := ev.GetProjectCard()
		if pc == nil || pc.GetProjectID() != projectID {
			continue
		}

		to, ok := columnIDs[pc.GetColumnName()]
		if !ok {
			continue
		}

		switch ev.GetEvent() {
		case "added_to_project":
			moves = append(moves, models.MoveEvent{
				Timestamp:  ev.GetCreatedAt(),
				ToColumnID: to,
				ActorID:    ev.GetActor().GetLogin(),
			})
		case "moved_columns_in_project":
			moves = append(moves, models.MoveEvent{
				Timestamp:    ev.GetCreatedAt(),
				FromColumnID: columnIDs[pc.GetPreviousColumnName()],
				ToColumnID:   to,
				ActorID:      ev.GetActor().GetLogin(),
			})
		}
	}
	return moves
}
