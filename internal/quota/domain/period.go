package domain

import (
	"fmt"
	"time"
)

// Period identifies one UTC calendar month, formatted YYYYMM.
type Period string

func (p Period) String() string { return string(p) }

// PeriodOf derives the accounting period for the given instant.
func PeriodOf(now time.Time) Period {
	now = now.UTC()
	return Period(fmt.Sprintf("%04d%02d", now.Year(), int(now.Month())))
}

// NextReset returns the first instant of the next UTC month.
func NextReset(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
