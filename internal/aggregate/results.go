package aggregate

import (
	"time"

	"github.com/danielolaszy/flowstats/internal/history"
	"github.com/danielolaszy/flowstats/internal/period"
	"github.com/danielolaszy/flowstats/internal/stats"
	"github.com/danielolaszy/flowstats/internal/timetracking"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// CardResult is the analysis of one active card.
type CardResult struct {
	Card    models.Card
	History history.History

	// Done is true when the card sits in the done column
	Done bool

	// LeadTime and CycleTime are nil unless the card is done
	LeadTime  *float64
	CycleTime *float64

	// WorkflowTimes only has entries for workflows the card completed
	WorkflowTimes map[string]float64

	TimeTracking timetracking.Result
}

// CardError is an active card whose history could not be resolved.
type CardError struct {
	Card models.Card
	Err  error
}

// ColumnSummary aggregates every active card in one column.
type ColumnSummary struct {
	Column        models.Column
	Dwell         stats.Summary
	ForwardMoves  int
	BackwardMoves int
}

// MemberStats aggregates the cards assigned to a member and the time the
// member booked in comments.
type MemberStats struct {
	Member        models.Member
	Cards         int
	ForwardMoves  int
	BackwardMoves int

	// Time is nil when the member booked no time
	Time *timetracking.Breakdown
}

// WorkflowStats holds the times of the cards that completed a workflow.
type WorkflowStats struct {
	Name    string
	Times   map[string]float64
	Summary stats.Summary
}

// BoardStats is the finished statistics of a board, consumed by the report
// and the chart data writer.
type BoardStats struct {
	Board        models.Board
	Columns      []models.Column
	Labels       []models.Label
	DoneColumn   models.Column
	CycleColumns []models.Column
	Window       history.Window

	// ByColumn is keyed by column id
	ByColumn map[string]ColumnSummary

	// Cards are the active cards, in board card order
	Cards      []CardResult
	ErrorCards []CardError

	InactiveCards     []models.Card
	DoneInactiveCards []models.Card
	ClosedCards       []models.Card
	ClosedDoneCards   []models.Card
	DoneCards         []models.Card

	LeadTime  stats.Summary
	CycleTime stats.Summary

	// Members are ordered as on the board, then unknown ids sorted
	Members      []*MemberStats
	TimeTracking *timetracking.Ledger

	// LabelCreation counts active cards by label and creation period:
	// kind -> label id -> period key -> cards
	LabelCreation map[period.Kind]map[string]map[string]int

	Workflows []WorkflowStats

	Rates                 stats.Rates
	FirstCardCreation     time.Time
	LastCardCreation      time.Time
	LastBoardActivity     time.Time
	SinceLastCardCreation time.Duration
	GeneratedAt           time.Time
}

// ColumnSummaries returns the column summaries in board order.
func (s *BoardStats) ColumnSummaries() []ColumnSummary {
	out := make([]ColumnSummary, 0, len(s.Columns))
	for _, col := range s.Columns {
		out = append(out, s.ByColumn[col.ID])
	}
	return out
}

// Card returns the result of an active card.
func (s *BoardStats) Card(id string) (CardResult, bool) {
	for _, c := range s.Cards {
		if c.Card.ID == id {
			return c, true
		}
	}
	return CardResult{}, false
}
