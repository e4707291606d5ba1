package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// BindFunc validates the configuration against the board columns and labels
// before any card is fetched.
type BindFunc func(columns []models.Column, labels []models.Label) error

// Options tune Load.
type Options struct {
	// Workers bounds concurrent per-card fetches. Values below 1 mean 1.
	Workers int

	// Comments enables fetching card comments
	Comments bool

	Bind BindFunc

	// Now replaces time.Now for FetchedAt
	Now func() time.Time
}

// Load fetches a board snapshot. Per-card move events and comments are
// fetched concurrently and stored at the card's index, so the snapshot keeps
// the source's card order. The first fetch error cancels the load.
func Load(ctx context.Context, src Source, ref BoardRef, opts Options) (models.BoardSnapshot, error) {
	board, err := src.FindBoard(ctx, ref)
	if err != nil {
		return models.BoardSnapshot{}, fmt.Errorf("failed to find board %q: %w", ref, err)
	}
	logging.Debug("board found", "board_id", board.ID, "board_name", board.Name)

	columns, err := src.ListColumns(ctx, board)
	if err != nil {
		return models.BoardSnapshot{}, fmt.Errorf("failed to list columns of board %q: %w", board.Name, err)
	}
	labels, err := src.ListLabels(ctx, board)
	if err != nil {
		return models.BoardSnapshot{}, fmt.Errorf("failed to list labels of board %q: %w", board.Name, err)
	}

	if opts.Bind != nil {
		if err := opts.Bind(columns, labels); err != nil {
			return models.BoardSnapshot{}, err
		}
	}

	members, err := src.ListMembers(ctx, board)
	if err != nil {
		return models.BoardSnapshot{}, fmt.Errorf("failed to list members of board %q: %w", board.Name, err)
	}

	cards, err := src.ListCards(ctx, board)
	if err != nil {
		return models.BoardSnapshot{}, fmt.Errorf("failed to list cards of board %q: %w", board.Name, err)
	}
	logging.Info("fetching card histories",
		"board", board.Name,
		"cards", len(cards),
		"comments", opts.Comments)

	if err := fetchCardDetails(ctx, src, board, cards, opts); err != nil {
		return models.BoardSnapshot{}, err
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	return models.BoardSnapshot{
		Board:     board,
		Columns:   columns,
		Members:   members,
		Labels:    labels,
		Cards:     cards,
		FetchedAt: now(),
	}, nil
}

func fetchCardDetails(ctx context.Context, src Source, board models.Board, cards []models.Card, opts Options) error {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(workers).
		WithCancelOnError().
		WithFirstError()

	for i := range cards {
		i := i // per-iteration copy; module targets go 1.21 loop semantics
		p.Go(func(ctx context.Context) error {
			card := &cards[i]

			moves, err := src.MoveEvents(ctx, board, *card)
			if err != nil {
				return fmt.Errorf("failed to fetch moves of card %s: %w", card.ID, err)
			}
			sort.SliceStable(moves, func(a, b int) bool {
				return moves[a].Timestamp.Before(moves[b].Timestamp)
			})
			card.Moves = moves

			if opts.Comments {
				comments, err := src.Comments(ctx, board, *card)
				if err != nil {
					return fmt.Errorf("failed to fetch comments of card %s: %w", card.ID, err)
				}
				card.Comments = comments
			}

			return nil
		})
	}

	return p.Wait()
}
