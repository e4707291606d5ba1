package history

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window starts after it ends.
var ErrInvalidWindow = errors.New("window start is after window end")

// Window restricts the movement history taken into account. Both bounds are
// inclusive and either may be nil.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Validate checks that the window is well formed.
func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.Start.After(*w.End) {
		return fmt.Errorf("%w: %s > %s", ErrInvalidWindow,
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// IsZero reports whether the window has no bounds.
func (w Window) IsZero() bool {
	return w.Start == nil && w.End == nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// clip intersects [from, to] with the window. ok is false when the
// intersection is empty.
func (w Window) clip(from, to time.Time) (time.Time, time.Time, bool) {
	if w.Start != nil && from.Before(*w.Start) {
		from = *w.Start
	}
	if w.End != nil && to.After(*w.End) {
		to = *w.End
	}
	if !to.After(from) {
		return from, from, false
	}
	return from, to, true
}
