// Package report renders board statistics as a text report and as chart data
// for the external chart renderer.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/danielolaszy/flowstats/internal/aggregate"
	"github.com/danielolaszy/flowstats/internal/period"
	"github.com/danielolaszy/flowstats/internal/stats"
	"github.com/danielolaszy/flowstats/internal/timetracking"
)

const dateTimeLayout = "2006-01-02 15:04 MST"

// Options tune the text report.
type Options struct {
	Censored bool

	// Location is used for printed dates. Defaults to UTC.
	Location *time.Location
}

type writer struct {
	w       io.Writer
	err     error
	heading lipgloss.Style
	muted   lipgloss.Style
	namer   *Namer
	loc     *time.Location
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

func (w *writer) section(title string) {
	w.printf("\n%s\n", w.heading.Render(title))
}

func (w *writer) date(t time.Time) string {
	if t.IsZero() {
		return stats.NoData
	}
	return t.In(w.loc).Format(dateTimeLayout)
}

// Write renders the text report of a board. Styling is only emitted when w
// is a terminal.
func Write(out io.Writer, s *aggregate.BoardStats, opts Options) error {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	renderer := lipgloss.NewRenderer(out)
	w := &writer{
		w:       out,
		heading: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		muted:   renderer.NewStyle().Foreground(lipgloss.Color("246")),
		namer:   NewNamer(s, opts.Censored),
		loc:     loc,
	}

	w.header(s)
	w.columnTimes(s)
	w.movements(s)
	w.leadAndCycle(s)
	w.workflows(s)
	w.rates(s)
	w.cardClasses(s)
	w.activity(s)
	w.timeTracking(s)
	w.members(s)
	w.labels(s)
	w.errorCards(s)

	return w.err
}

func (w *writer) header(s *aggregate.BoardStats) {
	w.printf("%s\n", w.heading.Render("Board "+w.namer.Board(s.Board)))
	w.printf("%s\n", w.muted.Render("Generated "+w.date(s.GeneratedAt)))

	if s.Window.Start != nil || s.Window.End != nil {
		start, end := "-", "-"
		if s.Window.Start != nil {
			start = w.date(*s.Window.Start)
		}
		if s.Window.End != nil {
			end = w.date(*s.Window.End)
		}
		w.printf("Card actions between %s and %s\n", start, end)
	}
}

func nameWidth(names []string) int {
	width := 0
	for _, n := range names {
		if l := lipgloss.Width(n); l > width {
			width = l
		}
	}
	return width
}

func (w *writer) columnNames(s *aggregate.BoardStats) ([]string, int) {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = w.namer.Column(col)
	}
	return names, nameWidth(names)
}

func (w *writer) columnTimes(s *aggregate.BoardStats) {
	w.section("Average time per column")
	names, width := w.columnNames(s)
	for i, summary := range s.ColumnSummaries() {
		w.printf("- %-*s  %s\n", width, names[i], summary.Dwell)
	}
}

func (w *writer) movements(s *aggregate.BoardStats) {
	w.section("Movements from each column")
	names, width := w.columnNames(s)
	for i, summary := range s.ColumnSummaries() {
		w.printf("- %-*s  forward: %d, backward: %d\n", width, names[i], summary.ForwardMoves, summary.BackwardMoves)
	}
}

func (w *writer) leadAndCycle(s *aggregate.BoardStats) {
	w.section("Cycle and lead time")

	var cycle []string
	for _, col := range s.CycleColumns {
		cycle = append(cycle, w.namer.Column(col))
	}
	w.printf("Cycle time (%s): %s\n", strings.Join(cycle, " > "), s.CycleTime)
	w.printf("Lead time: %s\n", s.LeadTime)
}

func (w *writer) workflows(s *aggregate.BoardStats) {
	if len(s.Workflows) == 0 {
		return
	}

	w.section("Custom workflows")
	for _, wf := range s.Workflows {
		w.printf("- %s: %s\n", wf.Name, wf.Summary)
	}
}

func (w *writer) rates(s *aggregate.BoardStats) {
	w.section("Throughput")
	if !s.Rates.HasData() {
		w.printf("%s\n", stats.NoData)
		return
	}
	w.printf("Board life time: %.2f days\n", s.Rates.LifeTime.Hours()/24)
	w.printf("Done cards: %d\n", s.Rates.DoneCards)
	w.printf("Done cards per hour: %.4f\n", s.Rates.DoneCardsPerHour)
	w.printf("Done cards per day: %.4f\n", s.Rates.DoneCardsPerDay)
}

func (w *writer) cardClasses(s *aggregate.BoardStats) {
	w.section("Cards")
	w.printf("Active: %d\n", len(s.Cards))
	w.printf("Done: %d\n", len(s.DoneCards))
	w.printf("Inactive: %d (done: %d)\n", len(s.InactiveCards), len(s.DoneInactiveCards))
	w.printf("Archived: %d (done: %d)\n", len(s.ClosedCards), len(s.ClosedDoneCards))
	w.printf("With errors: %d\n", len(s.ErrorCards))
}

func (w *writer) activity(s *aggregate.BoardStats) {
	w.section("Activity")
	w.printf("First card created: %s\n", w.date(s.FirstCardCreation))
	w.printf("Last card created: %s\n", w.date(s.LastCardCreation))
	w.printf("Last board activity: %s\n", w.date(s.LastBoardActivity))
	if !s.LastCardCreation.IsZero() {
		w.printf("Time since last card creation: %s\n", s.SinceLastCardCreation.Round(time.Minute))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func amount(a timetracking.Amount) string {
	return fmt.Sprintf("spent %.2f, estimated %.2f", a.Spent, a.Estimated)
}

func (w *writer) timeTracking(s *aggregate.BoardStats) {
	if s.TimeTracking == nil || !s.TimeTracking.Tracked {
		return
	}

	w.section("Spent and estimated times")
	w.printf("Board: %s\n", amount(s.TimeTracking.Total))

	for _, card := range s.Cards {
		if card.TimeTracking.Matches == 0 {
			continue
		}
		w.printf("- %s: %s\n", w.namer.Card(card.Card), amount(card.TimeTracking.Total))
	}
}

func (w *writer) members(s *aggregate.BoardStats) {
	if len(s.Members) == 0 {
		return
	}

	w.section("Members")
	for _, m := range s.Members {
		w.printf("- %s: %d card(s), forward: %d, backward: %d\n",
			w.namer.Member(m.Member.ID), m.Cards, m.ForwardMoves, m.BackwardMoves)
		if m.Time == nil {
			continue
		}
		w.printf("    total: %s\n", amount(m.Time.Total))
		for _, kind := range []period.Kind{period.Week, period.Month} {
			buckets := m.Time.ByPeriod[kind]
			for _, key := range sortedKeys(buckets) {
				w.printf("    %s: %s\n", key, amount(buckets[key]))
			}
		}
	}
}

func (w *writer) labels(s *aggregate.BoardStats) {
	byLabel := s.LabelCreation[period.Month]
	if len(byLabel) == 0 {
		return
	}

	w.section("Cards created per label and month")
	names := make(map[string]string, len(byLabel))
	ids := sortedKeys(byLabel)
	for _, id := range ids {
		names[id] = w.namer.Label(id)
	}
	sort.SliceStable(ids, func(i, j int) bool { return names[ids[i]] < names[ids[j]] })

	for _, id := range ids {
		months := byLabel[id]
		parts := make([]string, 0, len(months))
		for _, month := range sortedKeys(months) {
			parts = append(parts, fmt.Sprintf("%s: %d", month, months[month]))
		}
		w.printf("- %s: %s\n", names[id], strings.Join(parts, ", "))
	}
}

func (w *writer) errorCards(s *aggregate.BoardStats) {
	if len(s.ErrorCards) == 0 {
		return
	}

	w.section("Cards with errors")
	for _, e := range s.ErrorCards {
		w.printf("- %s: %v\n", w.namer.Card(e.Card), e.Err)
	}
}
