package academic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func TestSchoolYearForDate(t *testing.T) {
	tests := []struct {
		date time.Time
		want string
	}{
		{date(2025, time.September, 1), "2025-2026"},
		{date(2025, time.December, 31), "2025-2026"},
		{date(2026, time.January, 1), "2025-2026"},
		{date(2026, time.August, 31), "2025-2026"},
		{date(2026, time.September, 1), "2026-2027"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SchoolYearForDate(tt.date), "date %s", tt.date.Format("2006-01-02"))
	}
}

func TestTermForDate(t *testing.T) {
	tests := []struct {
		date time.Time
		want int
	}{
		{date(2025, time.September, 1), 1},
		{date(2025, time.December, 31), 1},
		{date(2026, time.January, 1), 2},
		{date(2026, time.March, 31), 2},
		{date(2026, time.April, 1), 3},
		{date(2026, time.August, 31), 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TermForDate(tt.date), "date %s", tt.date.Format("2006-01-02"))
	}
}

func TestTermStart(t *testing.T) {
	assert.Equal(t, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), TermStart(2025, 1))
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), TermStart(2025, 2))
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), TermStart(2025, 3))
}
