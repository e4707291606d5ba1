// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// Board identifies a board on the remote service.
type Board struct {
	// ID is the identifier used by the remote service
	ID string

	// Name is the board's display name
	Name string
}

// Column represents a list (stage) of a board.
type Column struct {
	// ID is the identifier of the list on the remote service
	ID string

	// Name is the list's display name
	Name string

	// Order is the 1-based position of the list in the board's display order.
	// It is assigned when the board's column sequence is read.
	Order int
}

// MoveEvent is a single entry of a card's list-movement history.
type MoveEvent struct {
	// Timestamp is when the card arrived in ToColumnID
	Timestamp time.Time

	// FromColumnID is the list the card left. It is empty for arrival events
	// (creation, copy, move from another board).
	FromColumnID string

	// ToColumnID is the list the card arrived in
	ToColumnID string

	// ActorID is the member who performed the move, if known
	ActorID string
}

// IsArrival reports whether the event has no source column.
func (e MoveEvent) IsArrival() bool {
	return e.FromColumnID == ""
}

// Comment is a free-text comment left on a card.
type Comment struct {
	// AuthorID is the member who wrote the comment
	AuthorID string

	// CreatedAt is when the comment was written
	CreatedAt time.Time

	// Text is the raw comment body
	Text string
}

// Card represents a card (task) of a board as fetched at the start of a run.
type Card struct {
	// ID is the card identifier on the remote service
	ID string

	// Name is the card title
	Name string

	// ColumnID is the list the card currently sits in
	ColumnID string

	// CreatedAt is the card's creation timestamp
	CreatedAt time.Time

	// LastActivityAt is the last time anything happened to the card
	LastActivityAt time.Time

	// Closed is true for archived cards
	Closed bool

	// MemberIDs are the members assigned to the card
	MemberIDs []string

	// LabelIDs are the labels attached to the card
	LabelIDs []string

	// Moves is the card's chronologically ordered movement history
	Moves []MoveEvent

	// Comments are the card comments, only fetched when time tracking is enabled
	Comments []Comment
}

// HasLabel reports whether the card carries the given label.
func (c Card) HasLabel(labelID string) bool {
	for _, id := range c.LabelIDs {
		if id == labelID {
			return true
		}
	}
	return false
}

// Member is a board member.
type Member struct {
	ID       string
	Username string
}

// Label is a board label.
type Label struct {
	ID   string
	Name string
}

// BoardSnapshot holds everything fetched for one analysis run. It is treated
// as immutable once loaded.
type BoardSnapshot struct {
	Board   Board
	Columns []Column
	Members []Member
	Labels  []Label
	Cards   []Card

	// FetchedAt is when loading finished
	FetchedAt time.Time
}
