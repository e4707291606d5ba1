package aggregate

import (
	"fmt"
	"time"

	"github.com/danielolaszy/flowstats/internal/board"
	"github.com/danielolaszy/flowstats/internal/history"
	"github.com/danielolaszy/flowstats/internal/timetracking"
	"github.com/danielolaszy/flowstats/internal/workflow"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// SettingError is a configuration error tied to one setting.
type SettingError struct {
	Setting string
	Value   string
	Err     error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Setting, e.Value, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}

// Spec is the analysis configuration expressed with names, before the
// board's columns are known.
type Spec struct {
	// DevelopmentList is the column where the cycle starts
	DevelopmentList string

	// DoneList is the terminal column. Empty means the board's last column.
	DoneList string

	Active         ActiveSpec
	Workflows      []workflow.Definition
	Window         history.Window
	CommentPattern string

	// Location is used for period buckets. Defaults to UTC.
	Location *time.Location

	// Workers bounds the number of cards analyzed concurrently
	Workers int

	// Now replaces time.Now
	Now func() time.Time
}

// Settings is a Spec bound to a board.
type Settings struct {
	Columns   *board.Columns
	Done      models.Column
	Cycle     []models.Column
	IsActive  ActivePredicate
	Workflows []*workflow.Workflow
	Window    history.Window
	Parser    *timetracking.Parser
	Location  *time.Location
	Workers   int
	Now       func() time.Time
}

// Bind resolves every name of the spec against the board columns and labels.
// Any problem is a configuration error and is returned before cards are
// looked at.
func Bind(spec Spec, columns []models.Column, labels []models.Label) (*Settings, error) {
	cols := board.Order(columns)
	if cols.Len() == 0 {
		return nil, fmt.Errorf("board has no columns")
	}

	if err := spec.Window.Validate(); err != nil {
		return nil, &SettingError{Setting: "card_action_filter", Value: windowString(spec.Window), Err: err}
	}

	done, _ := cols.Last()
	if spec.DoneList != "" {
		var err error
		done, err = cols.ByName(spec.DoneList)
		if err != nil {
			return nil, &SettingError{Setting: "done_list", Value: spec.DoneList, Err: err}
		}
	}

	if spec.DevelopmentList == "" {
		return nil, &SettingError{Setting: "development_list", Err: fmt.Errorf("is required")}
	}
	development, err := cols.ByName(spec.DevelopmentList)
	if err != nil {
		return nil, &SettingError{Setting: "development_list", Value: spec.DevelopmentList, Err: err}
	}

	var cycle []models.Column
	for _, col := range cols.All() {
		if col.Order >= development.Order && col.Order <= done.Order {
			cycle = append(cycle, col)
		}
	}
	if len(cycle) < 2 {
		return nil, &SettingError{
			Setting: "development_list",
			Value:   spec.DevelopmentList,
			Err:     fmt.Errorf("must come before done list %q, cycle range has %d column(s)", done.Name, len(cycle)),
		}
	}

	workflows, err := workflow.BindAll(spec.Workflows, cols)
	if err != nil {
		return nil, &SettingError{Setting: "custom_workflows", Value: workflowNames(spec.Workflows), Err: err}
	}

	isActive, err := spec.Active.Bind(cols, labels)
	if err != nil {
		return nil, &SettingError{Setting: "active_cards", Value: spec.Active.Strategy, Err: err}
	}

	loc := spec.Location
	if loc == nil {
		loc = time.UTC
	}

	parser, err := timetracking.NewParser(spec.CommentPattern, loc)
	if err != nil {
		return nil, &SettingError{Setting: "comment_spent_estimated_regex", Value: spec.CommentPattern, Err: err}
	}

	workers := spec.Workers
	if workers < 1 {
		workers = 1
	}

	now := spec.Now
	if now == nil {
		now = time.Now
	}

	return &Settings{
		Columns:   cols,
		Done:      done,
		Cycle:     cycle,
		IsActive:  isActive,
		Workflows: workflows,
		Window:    spec.Window,
		Parser:    parser,
		Location:  loc,
		Workers:   workers,
		Now:       now,
	}, nil
}

func windowString(w history.Window) string {
	format := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s, %s]", format(w.Start), format(w.End))
}

func workflowNames(defs []workflow.Definition) string {
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return fmt.Sprint(names)
}
