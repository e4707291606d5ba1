// Package period buckets timestamps into calendar days, ISO weeks and months.
package period

import (
	"fmt"
	"time"
)

// Kind is a bucket granularity.
type Kind string

const (
	Day   Kind = "day"
	Week  Kind = "week"
	Month Kind = "month"
)

// Kinds lists every granularity, finest first.
var Kinds = []Kind{Day, Week, Month}

// Key returns the bucket key of t in loc: "2006-01-02" for days,
// "2006-W01" for ISO weeks and "2006-01" for months.
func Key(kind Kind, t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}

	switch kind {
	case Day:
		return t.Format("2006-01-02")
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return t.Format("2006-01")
	}
}
