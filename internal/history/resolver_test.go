package history

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/flowstats/internal/board"
	"github.com/danielolaszy/flowstats/pkg/models"
)

var t0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func at(hours float64) time.Time {
	return t0.Add(time.Duration(hours * float64(time.Hour)))
}

func ptr(t time.Time) *time.Time {
	return &t
}

func threeColumns() *board.Columns {
	return board.Order([]models.Column{
		{ID: "todo", Name: "Todo"},
		{ID: "doing", Name: "Doing"},
		{ID: "done", Name: "Done"},
	})
}

func newTestResolver(now time.Time, opts ...Option) *Resolver {
	opts = append([]Option{WithClock(func() time.Time { return now })}, opts...)
	return NewResolver(threeColumns(), "done", opts...)
}

func move(hours float64, from, to string) models.MoveEvent {
	return models.MoveEvent{Timestamp: at(hours), FromColumnID: from, ToColumnID: to}
}

func doneCard() models.Card {
	return models.Card{
		ID:        "c1",
		ColumnID:  "done",
		CreatedAt: t0,
		Moves: []models.MoveEvent{
			{Timestamp: t0, ToColumnID: "todo"},
			move(2, "todo", "doing"),
			move(5, "doing", "done"),
		},
	}
}

func reworkedCard() models.Card {
	card := doneCard()
	card.Moves = append(card.Moves, move(6, "done", "doing"), move(8, "doing", "done"))
	return card
}

func TestResolveStraightThroughCard(t *testing.T) {
	h, err := newTestResolver(at(24)).Resolve(doneCard())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, h.ByColumn["todo"].DwellHours, 1e-9)
	assert.InDelta(t, 3.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.InDelta(t, 0.0, h.ByColumn["done"].DwellHours, 1e-9)
	assert.Equal(t, 1, h.ByColumn["todo"].ForwardMoves)
	assert.Equal(t, 1, h.ByColumn["doing"].ForwardMoves)
	assert.Equal(t, 0, h.ByColumn["done"].BackwardMoves)
	assert.InDelta(t, 5.0, h.TotalDwell(), 1e-9)
	assert.InDelta(t, 3.0, h.SumDwell([]string{"doing", "done"}), 1e-9)
}

func TestResolveCardThatLeftAndReturned(t *testing.T) {
	h, err := newTestResolver(at(24)).Resolve(reworkedCard())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, h.ByColumn["todo"].DwellHours, 1e-9)
	assert.InDelta(t, 5.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.InDelta(t, 1.0, h.ByColumn["done"].DwellHours, 1e-9)
	assert.Equal(t, 1, h.ByColumn["done"].BackwardMoves)
	assert.Equal(t, 2, h.ByColumn["doing"].ForwardMoves)
	assert.InDelta(t, 8.0, h.TotalDwell(), 1e-9)

	forward, backward := h.Moves()
	assert.Equal(t, 3, forward)
	assert.Equal(t, 1, backward)
}

func TestResolveCardWithoutMoves(t *testing.T) {
	card := models.Card{ID: "c2", ColumnID: "doing", CreatedAt: t0}

	h, err := newTestResolver(at(10)).Resolve(card)
	require.NoError(t, err)

	assert.InDelta(t, 10.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.InDelta(t, 10.0, h.TotalDwell(), 1e-9)
	assert.Len(t, h.ByColumn, 3, "unvisited columns must have zero entries")
	assert.Zero(t, h.ByColumn["todo"].DwellHours)
}

func TestResolveOpenCardRunsUntilNow(t *testing.T) {
	card := models.Card{
		ID:        "c3",
		ColumnID:  "doing",
		CreatedAt: t0,
		Moves:     []models.MoveEvent{move(1, "todo", "doing")},
	}

	h, err := newTestResolver(at(4)).Resolve(card)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, h.ByColumn["todo"].DwellHours, 1e-9)
	assert.InDelta(t, 3.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.Equal(t, t0, h.ObservedFrom)
	assert.Equal(t, at(4), h.ObservedTo)
}

func TestResolveLogNotReachingCreation(t *testing.T) {
	card := models.Card{
		ID:        "c4",
		ColumnID:  "done",
		CreatedAt: t0,
		Moves:     []models.MoveEvent{move(5, "doing", "done")},
	}

	h, err := newTestResolver(at(24)).Resolve(card)
	require.NoError(t, err)

	assert.InDelta(t, 5.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.Zero(t, h.ByColumn["todo"].DwellHours)
}

func TestResolveSelfTransition(t *testing.T) {
	card := models.Card{
		ID:        "c5",
		ColumnID:  "doing",
		CreatedAt: t0,
		Moves:     []models.MoveEvent{move(1, "todo", "doing"), move(2, "doing", "doing")},
	}

	h, err := newTestResolver(at(3)).Resolve(card)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.Zero(t, h.ByColumn["doing"].ForwardMoves)
	assert.Zero(t, h.ByColumn["doing"].BackwardMoves)
}

func TestResolveWindowStartCollapsesEarlierEvents(t *testing.T) {
	r := newTestResolver(at(24), WithWindow(Window{Start: ptr(at(3))}))

	h, err := r.Resolve(doneCard())
	require.NoError(t, err)

	assert.Zero(t, h.ByColumn["todo"].DwellHours)
	assert.InDelta(t, 2.0, h.ByColumn["doing"].DwellHours, 1e-9)
	assert.Zero(t, h.ByColumn["todo"].ForwardMoves, "move before the window is not counted")
	assert.Equal(t, 1, h.ByColumn["doing"].ForwardMoves)
	assert.Equal(t, at(3), h.ObservedFrom)
}

func TestResolveWindowEndDropsLaterEvents(t *testing.T) {
	r := newTestResolver(at(24), WithWindow(Window{End: ptr(at(4))}))

	h, err := r.Resolve(doneCard())
	require.NoError(t, err)

	assert.InDelta(t, 2.0, h.ByColumn["todo"].DwellHours, 1e-9)
	assert.InDelta(t, 2.0, h.ByColumn["doing"].DwellHours, 1e-9, "card was in Doing at the window end")
	assert.Equal(t, 1, h.ByColumn["todo"].ForwardMoves)
	assert.Zero(t, h.ByColumn["doing"].ForwardMoves)
	assert.Equal(t, at(4), h.ObservedTo)
}

func TestResolveWindowBeforeCreation(t *testing.T) {
	r := newTestResolver(at(24), WithWindow(Window{Start: ptr(at(-10)), End: ptr(at(-5))}))

	h, err := r.Resolve(doneCard())
	require.NoError(t, err)

	assert.Zero(t, h.TotalDwell())
	assert.Equal(t, h.ObservedFrom, h.ObservedTo)
}

func TestResolveEnclosingWindowMatchesNoWindow(t *testing.T) {
	now := at(30)
	window := Window{Start: ptr(at(-1)), End: ptr(at(48))}

	for _, card := range []models.Card{doneCard(), reworkedCard(), {ID: "open", ColumnID: "todo", CreatedAt: t0}} {
		plain, err := newTestResolver(now).Resolve(card)
		require.NoError(t, err)
		windowed, err := newTestResolver(now, WithWindow(window)).Resolve(card)
		require.NoError(t, err)

		assert.Equal(t, plain.ByColumn, windowed.ByColumn, card.ID)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		card    models.Card
		wantErr error
	}{
		{
			name:    "zero creation time",
			card:    models.Card{ID: "x", ColumnID: "todo"},
			wantErr: ErrMalformedTimestamp,
		},
		{
			name: "zero event time",
			card: models.Card{ID: "x", ColumnID: "doing", CreatedAt: t0,
				Moves: []models.MoveEvent{{FromColumnID: "todo", ToColumnID: "doing"}}},
			wantErr: ErrMalformedTimestamp,
		},
		{
			name: "events out of order",
			card: models.Card{ID: "x", ColumnID: "done", CreatedAt: t0,
				Moves: []models.MoveEvent{move(5, "todo", "doing"), move(2, "doing", "done")}},
			wantErr: ErrUnorderedEvents,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestResolver(at(24)).Resolve(tt.card)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestResolveUnknownColumn(t *testing.T) {
	card := models.Card{ID: "x", ColumnID: "doing", CreatedAt: t0,
		Moves: []models.MoveEvent{move(1, "archive", "doing")}}

	_, err := newTestResolver(at(24)).Resolve(card)

	var unknown *UnknownColumnError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "archive", unknown.ColumnID)

	_, err = newTestResolver(at(24)).Resolve(models.Card{ID: "y", ColumnID: "gone", CreatedAt: t0})
	assert.True(t, errors.As(err, &unknown))
}

func TestResolveDwellCoversObservedSpan(t *testing.T) {
	ids := []string{"todo", "doing", "done"}
	rng := rand.New(rand.NewSource(42))
	now := at(500)

	windows := []Window{
		{},
		{Start: ptr(at(20))},
		{End: ptr(at(100))},
		{Start: ptr(at(10)), End: ptr(at(60))},
	}

	for i := 0; i < 200; i++ {
		current := ids[rng.Intn(len(ids))]
		card := models.Card{ID: "random", CreatedAt: t0}
		hours := 0.0
		for n := rng.Intn(8); n > 0; n-- {
			hours += rng.Float64() * 30
			next := ids[rng.Intn(len(ids))]
			card.Moves = append(card.Moves, move(hours, current, next))
			current = next
		}
		card.ColumnID = current

		for _, w := range windows {
			h, err := newTestResolver(now, WithWindow(w)).Resolve(card)
			require.NoError(t, err)
			span := h.ObservedTo.Sub(h.ObservedFrom).Hours()
			assert.InDelta(t, span, h.TotalDwell(), 1e-6)
		}
	}
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{}.Validate())
	assert.NoError(t, Window{Start: ptr(at(1)), End: ptr(at(1))}.Validate())

	err := Window{Start: ptr(at(2)), End: ptr(at(1))}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidWindow))
}
