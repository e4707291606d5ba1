package aggregate

import (
	"fmt"

	"github.com/danielolaszy/flowstats/internal/board"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// ActivePredicate decides whether a card is analyzed.
type ActivePredicate func(models.Card) bool

// Active-card strategies selectable from the configuration.
const (
	StrategyNotArchived  = "not_archived"
	StrategyAll          = "all"
	StrategyInColumns    = "in_columns"
	StrategyNotInColumns = "not_in_columns"
	StrategyWithLabels   = "with_labels"
)

// Strategies lists the accepted strategy names.
var Strategies = []string{StrategyNotArchived, StrategyAll, StrategyInColumns, StrategyNotInColumns, StrategyWithLabels}

// ActiveSpec selects an active-card strategy by name. Columns and Labels are
// names, used by the column and label strategies. Archived cards are never
// active except with the "all" strategy.
type ActiveSpec struct {
	Strategy string
	Columns  []string
	Labels   []string
}

// NotArchived is the default predicate.
func NotArchived(card models.Card) bool {
	return !card.Closed
}

// Bind resolves the spec against the board columns and labels.
func (s ActiveSpec) Bind(columns *board.Columns, labels []models.Label) (ActivePredicate, error) {
	switch s.Strategy {
	case "", StrategyNotArchived:
		return NotArchived, nil

	case StrategyAll:
		return func(models.Card) bool { return true }, nil

	case StrategyInColumns, StrategyNotInColumns:
		if len(s.Columns) == 0 {
			return nil, fmt.Errorf("strategy %q needs at least one column", s.Strategy)
		}
		cols, err := columns.ByNames(s.Columns)
		if err != nil {
			return nil, err
		}
		ids := make(map[string]bool, len(cols))
		for _, col := range cols {
			ids[col.ID] = true
		}
		want := s.Strategy == StrategyInColumns
		return func(card models.Card) bool {
			return !card.Closed && ids[card.ColumnID] == want
		}, nil

	case StrategyWithLabels:
		if len(s.Labels) == 0 {
			return nil, fmt.Errorf("strategy %q needs at least one label", s.Strategy)
		}
		byName := make(map[string]string, len(labels))
		for _, l := range labels {
			byName[l.Name] = l.ID
		}
		ids := make([]string, 0, len(s.Labels))
		for _, name := range s.Labels {
			id, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("label %q not found on board", name)
			}
			ids = append(ids, id)
		}
		return func(card models.Card) bool {
			if card.Closed {
				return false
			}
			for _, id := range ids {
				if card.HasLabel(id) {
					return true
				}
			}
			return false
		}, nil

	default:
		return nil, fmt.Errorf("unknown active card strategy %q (expected one of %v)", s.Strategy, Strategies)
	}
}
