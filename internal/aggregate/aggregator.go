// Package aggregate computes the board-wide workflow statistics: per-column
// dwell times and movements, lead and cycle times, custom workflow times,
// per-member and per-label tallies.
package aggregate

import (
	"sort"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/danielolaszy/flowstats/internal/history"
	"github.com/danielolaszy/flowstats/internal/logging"
	"github.com/danielolaszy/flowstats/internal/period"
	"github.com/danielolaszy/flowstats/internal/stats"
	"github.com/danielolaszy/flowstats/internal/timetracking"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// Aggregator runs the analysis of a board snapshot.
type Aggregator struct {
	settings *Settings
	resolver *history.Resolver
	cycleIDs []string
}

// New creates an Aggregator for bound settings.
func New(settings *Settings) *Aggregator {
	cycleIDs := make([]string, len(settings.Cycle))
	for i, col := range settings.Cycle {
		cycleIDs[i] = col.ID
	}

	return &Aggregator{
		settings: settings,
		resolver: history.NewResolver(settings.Columns, settings.Done.ID,
			history.WithWindow(settings.Window),
			history.WithClock(settings.Now)),
		cycleIDs: cycleIDs,
	}
}

// outcome is the per-card partial result, merged in card order.
type outcome struct {
	active bool
	result CardResult
	err    error
}

// Run analyzes every card of the snapshot. Cards are analyzed independently,
// possibly concurrently, and merged in card order. A card whose history
// cannot be resolved is reported in ErrorCards and left out of every
// aggregate.
func (a *Aggregator) Run(snapshot models.BoardSnapshot) *BoardStats {
	now := a.settings.Now()

	mapper := iter.Mapper[models.Card, outcome]{MaxGoroutines: a.settings.Workers}
	outcomes := mapper.Map(snapshot.Cards, a.analyze)

	acc := newAccumulator(a.settings, snapshot)
	for i, o := range outcomes {
		acc.add(snapshot.Cards[i], o)
	}

	result := acc.finish(now)
	logging.Info("board analyzed",
		"board", snapshot.Board.Name,
		"cards", len(snapshot.Cards),
		"active", len(result.Cards),
		"done", len(result.DoneCards),
		"errors", len(result.ErrorCards))
	return result
}

func (a *Aggregator) analyze(card *models.Card) outcome {
	if !a.settings.IsActive(*card) {
		return outcome{}
	}

	h, err := a.resolver.Resolve(*card)
	if err != nil {
		logging.Warn("skipping card with unresolvable history",
			"card_id", card.ID,
			"error", err)
		return outcome{active: true, err: err}
	}

	result := CardResult{
		Card:          *card,
		History:       h,
		Done:          card.ColumnID == a.settings.Done.ID,
		WorkflowTimes: make(map[string]float64),
		TimeTracking:  a.settings.Parser.Parse(card.Comments),
	}

	if result.Done {
		lead := h.TotalDwell()
		cycle := h.SumDwell(a.cycleIDs)
		result.LeadTime = &lead
		result.CycleTime = &cycle
	}

	for _, w := range a.settings.Workflows {
		if hours, ok := w.TimeFor(*card, h); ok {
			result.WorkflowTimes[w.Name()] = hours
		}
	}

	logging.Debug("card analyzed",
		"card_id", card.ID,
		"done", result.Done,
		"dwell_hours", h.TotalDwell())
	return outcome{active: true, result: result}
}

type accumulator struct {
	settings *Settings
	stats    *BoardStats

	dwellSamples  map[string][]float64
	leadSamples   []float64
	cycleSamples  []float64
	workflowTimes map[string]map[string]float64

	members      map[string]*MemberStats
	memberOrder  []string
	boardMembers int

	creations []time.Time
}

func newAccumulator(settings *Settings, snapshot models.BoardSnapshot) *accumulator {
	acc := &accumulator{
		settings: settings,
		stats: &BoardStats{
			Board:        snapshot.Board,
			Columns:      settings.Columns.All(),
			Labels:       snapshot.Labels,
			DoneColumn:   settings.Done,
			CycleColumns: settings.Cycle,
			Window:       settings.Window,
			ByColumn:     make(map[string]ColumnSummary, settings.Columns.Len()),
			TimeTracking: timetracking.NewLedger(),
			LabelCreation: map[period.Kind]map[string]map[string]int{
				period.Week:  {},
				period.Month: {},
			},
		},
		dwellSamples:  make(map[string][]float64, settings.Columns.Len()),
		workflowTimes: make(map[string]map[string]float64, len(settings.Workflows)),
		members:       make(map[string]*MemberStats, len(snapshot.Members)),
	}

	for _, col := range settings.Columns.All() {
		acc.stats.ByColumn[col.ID] = ColumnSummary{Column: col}
		acc.dwellSamples[col.ID] = []float64{}
	}
	for _, w := range settings.Workflows {
		acc.workflowTimes[w.Name()] = make(map[string]float64)
	}
	for _, m := range snapshot.Members {
		acc.member(m.ID).Member = m
	}
	acc.boardMembers = len(acc.memberOrder)

	return acc
}

func (acc *accumulator) member(id string) *MemberStats {
	m, ok := acc.members[id]
	if !ok {
		m = &MemberStats{Member: models.Member{ID: id}}
		acc.members[id] = m
		acc.memberOrder = append(acc.memberOrder, id)
	}
	return m
}

func (acc *accumulator) add(card models.Card, o outcome) {
	s := acc.stats
	done := card.ColumnID == acc.settings.Done.ID

	if card.Closed {
		s.ClosedCards = append(s.ClosedCards, card)
		if done {
			s.ClosedDoneCards = append(s.ClosedDoneCards, card)
		}
	}

	if !o.active {
		s.InactiveCards = append(s.InactiveCards, card)
		if done {
			s.DoneInactiveCards = append(s.DoneInactiveCards, card)
		}
		return
	}

	if o.err != nil {
		s.ErrorCards = append(s.ErrorCards, CardError{Card: card, Err: o.err})
		return
	}

	r := o.result
	s.Cards = append(s.Cards, r)

	for id, colStats := range r.History.ByColumn {
		acc.dwellSamples[id] = append(acc.dwellSamples[id], colStats.DwellHours)
		summary := s.ByColumn[id]
		summary.ForwardMoves += colStats.ForwardMoves
		summary.BackwardMoves += colStats.BackwardMoves
		s.ByColumn[id] = summary
	}

	if r.Done {
		s.DoneCards = append(s.DoneCards, card)
		acc.leadSamples = append(acc.leadSamples, *r.LeadTime)
		acc.cycleSamples = append(acc.cycleSamples, *r.CycleTime)
	}

	for name, hours := range r.WorkflowTimes {
		acc.workflowTimes[name][card.ID] = hours
	}

	forward, backward := r.History.Moves()
	for _, id := range card.MemberIDs {
		m := acc.member(id)
		m.Cards++
		m.ForwardMoves += forward
		m.BackwardMoves += backward
	}

	s.TimeTracking.Add(r.TimeTracking)

	for kind, byLabel := range s.LabelCreation {
		key := period.Key(kind, card.CreatedAt, acc.settings.Location)
		for _, labelID := range card.LabelIDs {
			if byLabel[labelID] == nil {
				byLabel[labelID] = make(map[string]int)
			}
			byLabel[labelID][key]++
		}
	}

	acc.creations = append(acc.creations, card.CreatedAt)
	if card.LastActivityAt.After(s.LastBoardActivity) {
		s.LastBoardActivity = card.LastActivityAt
	}
}

func (acc *accumulator) finish(now time.Time) *BoardStats {
	s := acc.stats

	for id, samples := range acc.dwellSamples {
		summary := s.ByColumn[id]
		summary.Dwell = stats.Summarize(samples)
		s.ByColumn[id] = summary
	}

	s.LeadTime = stats.Summarize(acc.leadSamples)
	s.CycleTime = stats.Summarize(acc.cycleSamples)

	for _, w := range acc.settings.Workflows {
		times := acc.workflowTimes[w.Name()]
		samples := make([]float64, 0, len(times))
		for _, hours := range times {
			samples = append(samples, hours)
		}
		s.Workflows = append(s.Workflows, WorkflowStats{
			Name:    w.Name(),
			Times:   times,
			Summary: stats.Summarize(samples),
		})
	}

	for memberID, breakdown := range s.TimeTracking.ByMember {
		acc.member(memberID).Time = breakdown
	}
	s.Members = acc.orderedMembers()

	for _, created := range acc.creations {
		if s.FirstCardCreation.IsZero() || created.Before(s.FirstCardCreation) {
			s.FirstCardCreation = created
		}
		if created.After(s.LastCardCreation) {
			s.LastCardCreation = created
		}
	}
	if !s.LastCardCreation.IsZero() {
		s.SinceLastCardCreation = now.Sub(s.LastCardCreation)
	}

	s.Rates = stats.BoardRates(len(s.DoneCards), s.FirstCardCreation, s.LastBoardActivity)
	s.GeneratedAt = now
	return s
}

// orderedMembers keeps board members first, in board order, followed by ids
// only seen on cards or comments.
func (acc *accumulator) orderedMembers() []*MemberStats {
	known := acc.boardMembers
	unknown := append([]string(nil), acc.memberOrder[known:]...)
	sort.Strings(unknown)

	out := make([]*MemberStats, 0, len(acc.memberOrder))
	for _, id := range acc.memberOrder[:known] {
		out = append(out, acc.members[id])
	}
	for _, id := range unknown {
		out = append(out, acc.members[id])
	}
	return out
}
