package report

import (
	"github.com/danielolaszy/flowstats/internal/aggregate"
	"github.com/danielolaszy/flowstats/pkg/models"
)

// Namer names board entities in the report. A censored namer prints ids
// instead of board, card, member and label names. Column names are always
// printed.
type Namer struct {
	censored bool
	members  map[string]string
	labels   map[string]string
}

// NewNamer builds a Namer for the entities of a board.
func NewNamer(stats *aggregate.BoardStats, censored bool) *Namer {
	n := &Namer{
		censored: censored,
		members:  make(map[string]string, len(stats.Members)),
		labels:   make(map[string]string, len(stats.Labels)),
	}
	for _, m := range stats.Members {
		if m.Member.Username != "" {
			n.members[m.Member.ID] = m.Member.Username
		}
	}
	for _, l := range stats.Labels {
		if l.Name != "" {
			n.labels[l.ID] = l.Name
		}
	}
	return n
}

func (n *Namer) pick(id, name string) string {
	if n.censored || name == "" {
		return id
	}
	return name
}

// Board names the board.
func (n *Namer) Board(b models.Board) string {
	return n.pick(b.ID, b.Name)
}

// Card names a card.
func (n *Namer) Card(c models.Card) string {
	return n.pick(c.ID, c.Name)
}

// Member names a member id.
func (n *Namer) Member(id string) string {
	return n.pick(id, n.members[id])
}

// Label names a label id.
func (n *Namer) Label(id string) string {
	return n.pick(id, n.labels[id])
}

// Column names a column.
func (n *Namer) Column(c models.Column) string {
	return c.Name
}
