package shared

import (
	"context"
	"time"
)

// Clock returns the current time. Ledgers take one so tests can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// DayKey returns the calendar day of t in loc as YYYY-MM-DD
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(time.DateOnly)
}

// ChangeListener is notified after a ledger mutation has been persisted
type ChangeListener func(ctx context.Context)
