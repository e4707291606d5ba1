// Package snapshot loads an immutable picture of a board from a board data
// source: its columns, members, labels and cards with their move events and
// comments.
package snapshot

import (
	"context"
	"errors"

	"github.com/danielolaszy/flowstats/pkg/models"
)

// ErrBoardNotFound is returned by sources when no board matches a reference.
var ErrBoardNotFound = errors.New("board not found")

// BoardRef identifies a board by id or, when the id is empty, by name.
type BoardRef struct {
	ID   string
	Name string
}

func (r BoardRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// Source is a board data source. Columns must be returned in board display
// order. Move events may be returned in any order.
type Source interface {
	FindBoard(ctx context.Context, ref BoardRef) (models.Board, error)
	ListColumns(ctx context.Context, board models.Board) ([]models.Column, error)
	ListMembers(ctx context.Context, board models.Board) ([]models.Member, error)
	ListLabels(ctx context.Context, board models.Board) ([]models.Label, error)
	ListCards(ctx context.Context, board models.Board) ([]models.Card, error)
	MoveEvents(ctx context.Context, board models.Board, card models.Card) ([]models.MoveEvent, error)
	Comments(ctx context.Context, board models.Board, card models.Card) ([]models.Comment, error)
}

// BoardLister is implemented by sources that can enumerate the boards visible
// to their credentials.
type BoardLister interface {
	ListBoards(ctx context.Context) ([]models.Board, error)
}
