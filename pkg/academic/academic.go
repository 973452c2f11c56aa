// Package academic provides school calendar helpers. The school year runs
// September through August and splits into three trimesters. Used by the CLI
// to default the year/term flags to "now".
package academic

import (
	"fmt"
	"time"
)

// Trimester boundaries, by month. Term 1 runs September-December, term 2
// January-March, term 3 April-August.
const (
	schoolYearStartMonth = time.September
	term2StartMonth      = time.January
	term3StartMonth      = time.April
)

// SchoolYearForDate returns the school year containing t, in "YYYY-YYYY" form.
func SchoolYearForDate(t time.Time) string {
	start := t.Year()
	if t.Month() < schoolYearStartMonth {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// CurrentSchoolYear returns the school year containing the current date.
func CurrentSchoolYear() string {
	return SchoolYearForDate(time.Now())
}

// TermForDate returns the trimester (1 to 3) containing t.
func TermForDate(t time.Time) int {
	switch {
	case t.Month() >= schoolYearStartMonth:
		return 1
	case t.Month() < term3StartMonth:
		return 2
	default:
		return 3
	}
}

// CurrentTerm returns the trimester containing the current date.
func CurrentTerm() int {
	return TermForDate(time.Now())
}

// TermStart returns the first day of a trimester within a school year that
// starts in startYear.
func TermStart(startYear, term int) time.Time {
	switch term {
	case 2:
		return time.Date(startYear+1, term2StartMonth, 1, 0, 0, 0, 0, time.UTC)
	case 3:
		return time.Date(startYear+1, term3StartMonth, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(startYear, schoolYearStartMonth, 1, 0, 0, 0, 0, time.UTC)
	}
}
