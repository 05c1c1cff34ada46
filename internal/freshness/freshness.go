// Package freshness centralizes the time-window checks behind the staleness gates.
package freshness

import "time"

// Fresh reports whether t falls within the given window of now. A zero
// timestamp is never fresh, so missing data always triggers recomputation.
func Fresh(t time.Time, window time.Duration, now time.Time) bool {
	if t.IsZero() || window <= 0 {
		return false
	}
	return now.Sub(t) < window
}

// FreshString parses a stored RFC 3339 timestamp and applies Fresh. Parse
// failure reports not fresh: a corrupt timestamp must trigger recomputation,
// never serve a stale cache entry indefinitely.
func FreshString(ts string, window time.Duration, now time.Time) bool {
	if ts == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return false
	}
	return Fresh(t, window, now)
}
