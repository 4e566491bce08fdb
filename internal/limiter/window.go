// Package limiter enforces per-user governance limits: the daily token
// budget, the manual override quota, and request rate limiting.
//
// Purpose:
//   Daily windows are derived from persisted rows, not mutable counters.
//   A budget check sums committed records since UTC midnight, so limits
//   reset implicitly at the day boundary and survive process restarts.
package limiter

import "time"

// dayStart returns UTC midnight of the day containing t.
func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
