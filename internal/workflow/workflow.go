// Package workflow implements custom workflows: alternate column subsets with
// their own done columns, measured in parallel with the main board flow.
package workflow

import (
	"fmt"

	"github.com/danielolaszy/flowstats/internal/board"
	"github.com/danielolaszy/flowstats/internal/history"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// Definition is a workflow as written in the configuration.
type Definition struct {
	Name          string
	ListNames     []string
	DoneListNames []string
}

// Workflow is a Definition bound to the columns of a board.
type Workflow struct {
	name      string
	columns   []models.Column
	doneLists []models.Column
	done      map[string]bool
}

// Bind resolves every column name of the definition against the board. It
// fails with a *board.ColumnNotFoundError when a name is missing.
func Bind(def Definition, columns *board.Columns) (*Workflow, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if len(def.ListNames) == 0 {
		return nil, fmt.Errorf("workflow %q: at least one list is required", def.Name)
	}
	if len(def.DoneListNames) == 0 {
		return nil, fmt.Errorf("workflow %q: at least one done list is required", def.Name)
	}

	lists, err := columns.ByNames(def.ListNames)
	if err != nil {
		return nil, fmt.Errorf("workflow %q lists: %w", def.Name, err)
	}
	doneLists, err := columns.ByNames(def.DoneListNames)
	if err != nil {
		return nil, fmt.Errorf("workflow %q done lists: %w", def.Name, err)
	}

	done := make(map[string]bool, len(doneLists))
	for _, col := range doneLists {
		done[col.ID] = true
	}

	return &Workflow{
		name:      def.Name,
		columns:   lists,
		doneLists: doneLists,
		done:      done,
	}, nil
}

// BindAll binds every definition, stopping at the first error.
func BindAll(defs []Definition, columns *board.Columns) ([]*Workflow, error) {
	workflows := make([]*Workflow, 0, len(defs))
	for _, def := range defs {
		w, err := Bind(def, columns)
		if err != nil {
			return nil, err
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}

// Name returns the workflow name.
func (w *Workflow) Name() string {
	return w.name
}

// Columns returns the workflow columns in workflow order.
func (w *Workflow) Columns() []models.Column {
	return w.columns
}

// DoneColumns returns the columns that complete the workflow.
func (w *Workflow) DoneColumns() []models.Column {
	return w.doneLists
}

// IsDone reports whether a card sitting in columnID completed the workflow.
func (w *Workflow) IsDone(columnID string) bool {
	return w.done[columnID]
}

// TimeFor returns the hours the card spent in the workflow columns. ok is
// false when the card is not in one of the workflow's done columns, in which
// case the time is undefined.
func (w *Workflow) TimeFor(card models.Card, h history.History) (hours float64, ok bool) {
	if !w.IsDone(card.ColumnID) {
		return 0, false
	}

	ids := make([]string, len(w.columns))
	for i, col := range w.columns {
		ids[i] = col.ID
	}
	return h.SumDwell(ids), true
}
