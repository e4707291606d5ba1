package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	tests := []struct {
		name string
		kind Kind
		at   time.Time
		loc  *time.Location
		want string
	}{
		{name: "day", kind: Day, at: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), want: "2024-03-04"},
		{name: "day shifted by location", kind: Day, at: time.Date(2024, 3, 4, 23, 30, 0, 0, time.UTC), loc: madrid, want: "2024-03-05"},
		{name: "iso week", kind: Week, at: time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC), want: "2024-W10"},
		{name: "iso week belongs to previous year", kind: Week, at: time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC), want: "2020-W53"},
		{name: "month", kind: Month, at: time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), want: "2024-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.kind, tt.at, tt.loc))
		})
	}
}
