// Package board models the ordered column sequence of a board.
package board

import (
	"fmt"

	"github.com/danielolaszy/flowstats/pkg/models"
)

// Direction is the direction of a card movement between two columns.
type Direction int

const (
	// Same means the source and destination columns are the same.
	Same Direction = iota
	// Forward means the destination comes later in the board order.
	Forward
	// Backward means the destination comes earlier in the board order.
	Backward
)

// String returns the lowercase name of the direction.
func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "same"
	}
}

// ColumnNotFoundError is returned when a configured column name does not
// exist on the board.
type ColumnNotFoundError struct {
	Name string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found on board", e.Name)
}

// Columns is a board's column sequence with a dense 1..N order.
type Columns struct {
	list   []models.Column
	byID   map[string]int
	byName map[string]int
}

// Order assigns orders 1..N to the columns in the sequence they are given.
// The sequence is not re-sorted: display order is the workflow order.
// Duplicate ids keep their first position.
func Order(columns []models.Column) *Columns {
	c := &Columns{
		list:   make([]models.Column, 0, len(columns)),
		byID:   make(map[string]int, len(columns)),
		byName: make(map[string]int, len(columns)),
	}

	for _, col := range columns {
		if _, exists := c.byID[col.ID]; exists {
			continue
		}
		col.Order = len(c.list) + 1
		c.byID[col.ID] = len(c.list)
		if _, exists := c.byName[col.Name]; !exists {
			c.byName[col.Name] = len(c.list)
		}
		c.list = append(c.list, col)
	}

	return c
}

// All returns the columns in board order.
func (c *Columns) All() []models.Column {
	out := make([]models.Column, len(c.list))
	copy(out, c.list)
	return out
}

// Len returns the number of columns.
func (c *Columns) Len() int {
	return len(c.list)
}

// Last returns the last column of the board.
func (c *Columns) Last() (models.Column, bool) {
	if len(c.list) == 0 {
		return models.Column{}, false
	}
	return c.list[len(c.list)-1], true
}

// ByID looks up a column by its id.
func (c *Columns) ByID(id string) (models.Column, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Column{}, false
	}
	return c.list[i], true
}

// Has reports whether the column id belongs to the board.
func (c *Columns) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// ByName looks up a column by its display name. When several columns share a
// name the first one wins.
func (c *Columns) ByName(name string) (models.Column, error) {
	i, ok := c.byName[name]
	if !ok {
		return models.Column{}, &ColumnNotFoundError{Name: name}
	}
	return c.list[i], nil
}

// ByNames resolves every name, failing on the first missing one.
func (c *Columns) ByNames(names []string) ([]models.Column, error) {
	out := make([]models.Column, 0, len(names))
	for _, name := range names {
		col, err := c.ByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, col)
	}
	return out, nil
}

// Compare classifies a move from column a to column b.
func (c *Columns) Compare(a, b string) (Direction, error) {
	from, ok := c.ByID(a)
	if !ok {
		return Same, fmt.Errorf("unknown column id %q", a)
	}
	to, ok := c.ByID(b)
	if !ok {
		return Same, fmt.Errorf("unknown column id %q", b)
	}

	switch {
	case to.Order > from.Order:
		return Forward, nil
	case to.Order < from.Order:
		return Backward, nil
	default:
		return Same, nil
	}
}

// Range returns the columns from the column named from through the column
// named to, both inclusive. It is empty when from comes after to.
func (c *Columns) Range(from, to string) ([]models.Column, error) {
	start, err := c.ByName(from)
	if err != nil {
		return nil, err
	}
	end, err := c.ByName(to)
	if err != nil {
		return nil, err
	}

	var out []models.Column
	for _, col := range c.list {
		if col.Order >= start.Order && col.Order <= end.Order {
			out = append(out, col)
		}
	}
	return out, nil
}
