// Package trello reads boards, lists, cards and card actions from Trello.
package trello

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/adlio/trello"

	"github.com/danielolaszy/flowstats/internal/config"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/snapshot"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// Action types that put a card on a list without a source list.
var arrivalActions = []string{"createCard", "copyCard", "convertToCardFromCheckItem", "moveCardToBoard"}

const (
	moveActionFilter    = "createCard,copyCard,convertToCardFromCheckItem,moveCardToBoard,updateCard:idList"
	commentActionFilter = "commentCard"
	actionPageLimit     = "1000"
)

// Client handles interactions with the Trello API
type Client struct {
	client *trello.Client

	mu     sync.Mutex
	boards map[string]*trello.Board
}

// NewClient creates a new Trello client
func NewClient(cfg config.TrelloConfig) (*Client, error) {
	if err := config.ValidateTrelloConfig(cfg); err != nil {
		return nil, err
	}

	logging.Debug("trello configuration",
		"api_key", logging.MaskSensitive(cfg.APIKey),
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client: trello.NewClient(cfg.APIKey, cfg.Token),
		boards: make(map[string]*trello.Board),
	}, nil
}

// ListBoards returns the boards of the authenticated member.
func (c *Client) ListBoards(ctx context.Context) ([]models.Board, error) {
	boards, err := c.memberBoards(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]models.Board, 0, len(boards))
	for _, b := range boards {
		result = append(result, models.Board{ID: b.ID, Name: b.Name})
	}
	return result, nil
}

// FindBoard looks a board up by id, or by case-insensitive name.
func (c *Client) FindBoard(ctx context.Context, ref snapshot.BoardRef) (models.Board, error) {
	if err := ctx.Err(); err != nil {
		return models.Board{}, err
	}

	if ref.ID != "" {
		board, err := c.client.GetBoard(ref.ID, trello.Defaults())
		if err != nil {
			return models.Board{}, fmt.Errorf("failed to fetch Trello board %s: %w", ref.ID, err)
		}
		c.remember(board)
		return models.Board{ID: board.ID, Name: board.Name}, nil
	}

	boards, err := c.memberBoards(ctx)
	if err != nil {
		return models.Board{}, err
	}
	for _, b := range boards {
		if strings.EqualFold(b.Name, ref.Name) {
			c.remember(b)
			return models.Board{ID: b.ID, Name: b.Name}, nil
		}
	}

	return models.Board{}, fmt.Errorf("trello board '%s': %w", ref.Name, snapshot.ErrBoardNotFound)
}

// ListColumns returns the open lists of the board in display order.
func (c *Client) ListColumns(ctx context.Context, b models.Board) ([]models.Column, error) {
	board, err := c.board(ctx, b)
	if err != nil {
		return nil, err
	}

	lists, err := board.GetLists(trello.Arguments{"filter": "open"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch lists for board '%s': %w", b.Name, err)
	}

	return toColumns(lists), nil
}

// ListMembers returns the board members.
func (c *Client) ListMembers(ctx context.Context, b models.Board) ([]models.Member, error) {
	board, err := c.board(ctx, b)
	if err != nil {
		return nil, err
	}

	members, err := board.GetMembers(trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch members for board '%s': %w", b.Name, err)
	}

	result := make([]models.Member, 0, len(members))
	for _, m := range members {
		result = append(result, models.Member{ID: m.ID, Username: m.Username})
	}
	return result, nil
}

// ListLabels returns the board labels.
func (c *Client) ListLabels(ctx context.Context, b models.Board) ([]models.Label, error) {
	board, err := c.board(ctx, b)
	if err != nil {
		return nil, err
	}

	labels, err := board.GetLabels(trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch labels for board '%s': %w", b.Name, err)
	}

	result := make([]models.Label, 0, len(labels))
	for _, l := range labels {
		result = append(result, models.Label{ID: l.ID, Name: l.Name})
	}
	return result, nil
}

// ListCards returns every card of the board, archived ones included.
func (c *Client) ListCards(ctx context.Context, b models.Board) ([]models.Card, error) {
	board, err := c.board(ctx, b)
	if err != nil {
		return nil, err
	}

	cards, err := board.GetCards(trello.Arguments{"filter": "all"})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cards for board '%s': %w", b.Name, err)
	}

	result := make([]models.Card, 0, len(cards))
	for _, card := range cards {
		result = append(result, toCard(card))
	}

	logging.Debug("fetched trello cards", "board", b.Name, "count", len(result))
	return result, nil
}

// MoveEvents returns the list changes of a card, oldest first.
func (c *Client) MoveEvents(ctx context.Context, _ models.Board, card models.Card) ([]models.MoveEvent, error) {
	actions, err := c.cardActions(ctx, card.ID, moveActionFilter)
	if err != nil {
		return nil, err
	}
	return toMoves(actions), nil
}

// Comments returns the comments of a card, oldest first.
func (c *Client) Comments(ctx context.Context, _ models.Board, card models.Card) ([]models.Comment, error) {
	actions, err := c.cardActions(ctx, card.ID, commentActionFilter)
	if err != nil {
		return nil, err
	}
	return toComments(actions), nil
}

func (c *Client) cardActions(ctx context.Context, cardID, filter string) ([]*trello.Action, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []*trello.Action
	args := trello.Arguments{"filter": filter, "limit": actionPageLimit}
	if err := c.client.Get("cards/"+cardID+"/actions", args, &actions); err != nil {
		return nil, fmt.Errorf("failed to fetch actions for card %s: %w", cardID, err)
	}

	// Trello returns newest first
	for i, j := 0, len(actions)-1; i < j; i, j = i+1, j-1 {
		actions[i], actions[j] = actions[j], actions[i]
	}
	return actions, nil
}

func (c *Client) memberBoards(ctx context.Context) ([]*trello.Board, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	member, err := c.client.GetMember("me", trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Trello member: %w", err)
	}

	boards, err := member.GetBoards(trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Trello boards: %w", err)
	}
	return boards, nil
}

func (c *Client) remember(board *trello.Board) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[board.ID] = board
}

func (c *Client) board(ctx context.Context, b models.Board) (*trello.Board, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	board, ok := c.boards[b.ID]
	c.mu.Unlock()
	if ok {
		return board, nil
	}

	board, err := c.client.GetBoard(b.ID, trello.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch Trello board %s: %w", b.ID, err)
	}
	c.remember(board)
	return board, nil
}

func toColumns(lists []*trello.List) []models.Column {
	sorted := make([]*trello.List, 0, len(lists))
	for _, l := range lists {
		if !l.Closed {
			sorted = append(sorted, l)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Pos < sorted[j].Pos
	})

	columns := make([]models.Column, len(sorted))
	for i, l := range sorted {
		columns[i] = models.Column{ID: l.ID, Name: l.Name, Order: i + 1}
	}
	return columns
}

func toCard(card *trello.Card) models.Card {
	// zero when the id is not a Trello object id; the resolver reports it
	created, err := trello.IDToTime(card.ID)
	if err != nil {
		logging.Warn("cannot derive card creation time", "card_id", card.ID, "error", err)
	}

	result := models.Card{
		ID:        card.ID,
		Name:      card.Name,
		ColumnID:  card.IDList,
		CreatedAt: created,
		Closed:    card.Closed,
		MemberIDs: card.IDMembers,
		LabelIDs:  card.IDLabels,
	}
	if card.DateLastActivity != nil {
		result.LastActivityAt = *card.DateLastActivity
	}
	return result
}

func isArrival(actionType string) bool {
	for _, t := range arrivalActions {
		if t == actionType {
			return true
		}
	}
	return false
}

func toMoves(actions []*trello.Action) []models.MoveEvent {
	moves := make([]models.MoveEvent, 0, len(actions))
	for _, a := range actions {
		if a.Data == nil {
			continue
		}

		switch {
		case isArrival(a.Type) && a.Data.List != nil:
			moves = append(moves, models.MoveEvent{
				Timestamp:  a.Date,
				ToColumnID: a.Data.List.ID,
				ActorID:    a.IDMemberCreator,
			})
		case a.Type == "updateCard" && a.Data.ListBefore != nil && a.Data.ListAfter != nil:
			moves = append(moves, models.MoveEvent{
				Timestamp:    a.Date,
				FromColumnID: a.Data.ListBefore.ID,
				ToColumnID:   a.Data.ListAfter.ID,
				ActorID:      a.IDMemberCreator,
			})
		}
	}
	return moves
}

func toComments(actions []*trello.Action) []models.Comment {
	comments := make([]models.Comment, 0, len(actions))
	for _, a := range actions {
		if a.Type != "commentCard" || a.Data == nil {
			continue
		}
		comments = append(comments, models.Comment{
			AuthorID:  a.IDMemberCreator,
			CreatedAt: a.Date,
			Text:      a.Data.Text,
		})
	}
	return comments
}
