// Package history reconstructs how long a card stayed in each column from its
// movement log.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielolaszy/flowstats/internal/board"
	"github.com/danielolaszy/flowstats/pkg/models"
)

var (
	// ErrMalformedTimestamp is returned for zero creation or event timestamps.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrUnorderedEvents is returned when an event predates the previous one.
	ErrUnorderedEvents = errors.New("move events out of chronological order")
)

// UnknownColumnError is returned when a card or one of its moves references a
// column that is not part of the board.
type UnknownColumnError struct {
	ColumnID string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column id %q", e.ColumnID)
}

// ColumnStats is what a card did in one column.
type ColumnStats struct {
	DwellHours    float64
	ForwardMoves  int
	BackwardMoves int
}

// History is the resolved movement history of one card.
type History struct {
	CardID string

	// ByColumn has an entry for every board column, visited or not
	ByColumn map[string]ColumnStats

	// ObservedFrom and ObservedTo delimit the span the dwell times cover
	ObservedFrom time.Time
	ObservedTo   time.Time
}

// TotalDwell is the sum of the dwell time over all columns, in hours.
func (h History) TotalDwell() float64 {
	total := 0.0
	for _, s := range h.ByColumn {
		total += s.DwellHours
	}
	return total
}

// SumDwell is the sum of the dwell time over the given columns, in hours.
func (h History) SumDwell(columnIDs []string) float64 {
	total := 0.0
	for _, id := range columnIDs {
		total += h.ByColumn[id].DwellHours
	}
	return total
}

// Moves returns the card's total forward and backward moves.
func (h History) Moves() (forward, backward int) {
	for _, s := range h.ByColumn {
		forward += s.ForwardMoves
		backward += s.BackwardMoves
	}
	return forward, backward
}

// Resolver turns move logs into per-column histories for one board.
type Resolver struct {
	columns      *board.Columns
	doneColumnID string
	window       Window
	now          func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWindow restricts resolution to a time window.
func WithWindow(w Window) Option {
	return func(r *Resolver) {
		r.window = w
	}
}

// WithClock replaces time.Now, used to close the last interval.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver. Cards sitting in doneColumnID stop
// accumulating time when they arrive there.
func NewResolver(columns *board.Columns, doneColumnID string, opts ...Option) *Resolver {
	r := &Resolver{
		columns:      columns,
		doneColumnID: doneColumnID,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the dwell time and forward/backward moves of a card in
// every column.
//
// The card is assumed to arrive at creation in the first column its log knows
// about. Each interval between consecutive events is charged to the column the
// card left at the end of it. The final interval runs until now (or the window
// end) and is charged to the current column, unless that column is the done
// column. Moves are counted on their source column. Events before the window
// start only establish where the card was; events after the window end are
// ignored.
func (r *Resolver) Resolve(card models.Card) (History, error) {
	if err := r.validate(card); err != nil {
		return History{}, err
	}

	byColumn := make(map[string]ColumnStats, r.columns.Len())
	for _, col := range r.columns.All() {
		byColumn[col.ID] = ColumnStats{}
	}

	events := card.Moves
	start := card.CreatedAt
	column := card.ColumnID
	if len(events) > 0 {
		if events[0].Timestamp.Before(start) {
			start = events[0].Timestamp
		}
		if events[0].IsArrival() {
			column = events[0].ToColumnID
			events = events[1:]
		} else {
			column = events[0].FromColumnID
		}
	}

	cursor := start
	truncated := false
	for i, e := range events {
		if e.Timestamp.Before(cursor) {
			return History{}, fmt.Errorf("%w: event %d at %s precedes %s", ErrUnorderedEvents,
				i, e.Timestamp.Format(time.RFC3339), cursor.Format(time.RFC3339))
		}
		if r.window.End != nil && e.Timestamp.After(*r.window.End) {
			truncated = true
			break
		}

		source := column
		if !e.IsArrival() {
			source = e.FromColumnID
		}
		r.addDwell(byColumn, source, cursor, e.Timestamp)

		if !e.IsArrival() && r.window.Contains(e.Timestamp) {
			direction, err := r.columns.Compare(e.FromColumnID, e.ToColumnID)
			if err != nil {
				return History{}, err
			}
			stats := byColumn[e.FromColumnID]
			switch direction {
			case board.Forward:
				stats.ForwardMoves++
			case board.Backward:
				stats.BackwardMoves++
			}
			byColumn[e.FromColumnID] = stats
		}

		column = e.ToColumnID
		cursor = e.Timestamp
	}

	final := card.ColumnID
	if truncated {
		final = column
	}

	last := cursor
	end := r.now()
	if r.window.End != nil && r.window.End.Before(end) {
		end = *r.window.End
	}
	if final != r.doneColumnID && end.After(cursor) {
		r.addDwell(byColumn, final, cursor, end)
		last = end
	}

	from, to, ok := r.window.clip(start, last)
	if !ok {
		to = from
	}

	return History{
		CardID:       card.ID,
		ByColumn:     byColumn,
		ObservedFrom: from,
		ObservedTo:   to,
	}, nil
}

func (r *Resolver) addDwell(byColumn map[string]ColumnStats, columnID string, from, to time.Time) {
	from, to, ok := r.window.clip(from, to)
	if !ok {
		return
	}
	stats := byColumn[columnID]
	stats.DwellHours += to.Sub(from).Hours()
	byColumn[columnID] = stats
}

func (r *Resolver) validate(card models.Card) error {
	if card.CreatedAt.IsZero() {
		return fmt.Errorf("%w: card creation time", ErrMalformedTimestamp)
	}
	if !r.columns.Has(card.ColumnID) {
		return &UnknownColumnError{ColumnID: card.ColumnID}
	}

	for i, e := range card.Moves {
		if e.Timestamp.IsZero() {
			return fmt.Errorf("%w: event %d", ErrMalformedTimestamp, i)
		}
		if !r.columns.Has(e.ToColumnID) {
			return &UnknownColumnError{ColumnID: e.ToColumnID}
		}
		if !e.IsArrival() && !r.columns.Has(e.FromColumnID) {
			return &UnknownColumnError{ColumnID: e.FromColumnID}
		}
	}

	return nil
}
