// Package timetracking extracts spent and estimated times written in card
// comments (e.g. "plus! 2/3" from Plus for Trello).
package timetracking

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/danielolaszy/flowstats/internal/period"
	"github.com/danielolaszy/flowstats/pkg/models"
)

const (
	// PlusForTrelloAlias can be used in the configuration instead of the
	// Plus for Trello pattern itself.
	PlusForTrelloAlias = "PLUS_FOR_TRELLO"

	// PlusForTrelloPattern matches Plus for Trello comments.
	PlusForTrelloPattern = `^plus!\s(?P<spent>(\-)?\d+(\.\d+)?)/(?P<estimated>(\-)?\d+(\.\d+)?)`
)

// Amount is a spent/estimated pair.
type Amount struct {
	Spent     float64
	Estimated float64
}

// Add accumulates other into a.
func (a *Amount) Add(other Amount) {
	a.Spent += other.Spent
	a.Estimated += other.Estimated
}

// Breakdown holds a contributor's totals, overall and per period.
type Breakdown struct {
	Total    Amount
	ByPeriod map[period.Kind]map[string]Amount
}

func newBreakdown() *Breakdown {
	b := &Breakdown{ByPeriod: make(map[period.Kind]map[string]Amount, len(period.Kinds))}
	for _, kind := range period.Kinds {
		b.ByPeriod[kind] = make(map[string]Amount)
	}
	return b
}

func (b *Breakdown) add(amount Amount, at time.Time, loc *time.Location) {
	b.Total.Add(amount)
	for _, kind := range period.Kinds {
		key := period.Key(kind, at, loc)
		bucket := b.ByPeriod[kind][key]
		bucket.Add(amount)
		b.ByPeriod[kind][key] = bucket
	}
}

func (b *Breakdown) merge(other *Breakdown) {
	b.Total.Add(other.Total)
	for kind, buckets := range other.ByPeriod {
		for key, amount := range buckets {
			bucket := b.ByPeriod[kind][key]
			bucket.Add(amount)
			b.ByPeriod[kind][key] = bucket
		}
	}
}

// Period returns the amount booked in one bucket.
func (b *Breakdown) Period(kind period.Kind, key string) Amount {
	return b.ByPeriod[kind][key]
}

// Result is what the comments of one card contain.
type Result struct {
	// Tracked is false when no pattern is configured
	Tracked bool

	// Matches is the number of matching comments
	Matches int

	Total    Amount
	ByMember map[string]*Breakdown
}

// Parser scans comments with a pattern that has "spent" and "estimated"
// named groups. The pattern is matched at the start of the comment text.
type Parser struct {
	re           *regexp.Regexp
	spentIdx     int
	estimatedIdx int
	loc          *time.Location
}

// NewParser compiles pattern. An empty pattern gives a parser that tracks
// nothing. loc is used to bucket comments by day, week and month.
func NewParser(pattern string, loc *time.Location) (*Parser, error) {
	if loc == nil {
		loc = time.UTC
	}
	if pattern == "" {
		return &Parser{loc: loc}, nil
	}
	if pattern == PlusForTrelloAlias {
		pattern = PlusForTrelloPattern
	}

	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return nil, fmt.Errorf("invalid comment pattern %q: %w", pattern, err)
	}

	spentIdx := re.SubexpIndex("spent")
	estimatedIdx := re.SubexpIndex("estimated")
	if spentIdx < 0 || estimatedIdx < 0 {
		return nil, fmt.Errorf("comment pattern %q must have named groups 'spent' and 'estimated'", pattern)
	}

	return &Parser{re: re, spentIdx: spentIdx, estimatedIdx: estimatedIdx, loc: loc}, nil
}

// Enabled reports whether a pattern is configured.
func (p *Parser) Enabled() bool {
	return p != nil && p.re != nil
}

// Parse sums the spent and estimated times of every matching comment.
// Comments that do not match contribute nothing.
func (p *Parser) Parse(comments []models.Comment) Result {
	if !p.Enabled() {
		return Result{}
	}

	result := Result{Tracked: true, ByMember: make(map[string]*Breakdown)}
	for _, comment := range comments {
		amount, ok := p.match(comment.Text)
		if !ok {
			continue
		}

		result.Matches++
		result.Total.Add(amount)

		breakdown, exists := result.ByMember[comment.AuthorID]
		if !exists {
			breakdown = newBreakdown()
			result.ByMember[comment.AuthorID] = breakdown
		}
		breakdown.add(amount, comment.CreatedAt, p.loc)
	}

	return result
}

func (p *Parser) match(text string) (Amount, bool) {
	groups := p.re.FindStringSubmatch(text)
	if groups == nil {
		return Amount{}, false
	}

	spent, err := strconv.ParseFloat(groups[p.spentIdx], 64)
	if err != nil {
		return Amount{}, false
	}
	estimated, err := strconv.ParseFloat(groups[p.estimatedIdx], 64)
	if err != nil {
		return Amount{}, false
	}

	return Amount{Spent: spent, Estimated: estimated}, true
}

// Ledger accumulates results across the cards of a board.
type Ledger struct {
	Tracked  bool
	Total    Amount
	ByMember map[string]*Breakdown
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{ByMember: make(map[string]*Breakdown)}
}

// Add merges a card result into the ledger.
func (l *Ledger) Add(r Result) {
	if !r.Tracked {
		return
	}

	l.Tracked = true
	l.Total.Add(r.Total)
	for memberID, breakdown := range r.ByMember {
		existing, ok := l.ByMember[memberID]
		if !ok {
			existing = newBreakdown()
			l.ByMember[memberID] = existing
		}
		existing.merge(breakdown)
	}
}
