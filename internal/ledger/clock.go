package ledger

import "time"

// PeriodsElapsed returns how many whole periods fit between anchor and now.
// It returns 0 when now precedes anchor or less than one period has passed.
func PeriodsElapsed(anchor, now time.Time, period time.Duration) int {
	if period <= 0 {
		return 0
	}
	elapsed := now.Sub(anchor)
	if elapsed < period {
		return 0
	}
	return int(elapsed / period)
}

// AdvanceAnchor moves anchor forward by whole periods. The result lands on a
// period boundary, never on "now", so repeated checks do not drift.
func AdvanceAnchor(anchor time.Time, periods int, period time.Duration) time.Time {
	return anchor.Add(time.Duration(periods) * period)
}
