package outbox

import "time"

// RetryDelay returns how long to wait before retrying an entry after its
// k-th failed attempt (0-indexed): 1s, 2s, 4s, 8s, 16s for attempts 0–4.
func RetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 4 {
		attempt = 4
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

// readyForRetry reports whether an entry's backoff window has elapsed at now.
// Entries that have never been attempted are always ready.
func readyForRetry(op *Operation, now time.Time) bool {
	if op.AttemptCount == 0 || op.LastAttemptAt == nil {
		return true
	}
	return !now.Before(op.LastAttemptAt.Add(RetryDelay(op.AttemptCount - 1)))
}
