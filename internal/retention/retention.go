// Package retention decides when a saved evaluation may be removed.
//
// Evaluations are protected for a fixed window after they are written. The
// window is measured as elapsed time, so a record saved at 23:59 becomes
// deletable exactly 14×24h later regardless of calendar boundaries or DST.
package retention

import "time"

// Window is how long a record stays protected after creation.
const Window = 14 * 24 * time.Hour

// IsProtected reports whether a record created at ts is still inside the
// protection window at now.
func IsProtected(ts, now time.Time) bool {
	return now.Sub(ts) < Window
}

// CanDelete is the complement of IsProtected.
func CanDelete(ts, now time.Time) bool {
	return !IsProtected(ts, now)
}

// DeletableAt returns the first instant at which a record created at ts may
// be deleted.
func DeletableAt(ts time.Time) time.Time {
	return ts.Add(Window)
}

// Summary counts records by protection status.
type Summary struct {
	Deletable int `json:"deletable"`
	Protected int `json:"protected"`
}

// Summarize classifies each timestamp against now.
func Summarize(timestamps []time.Time, now time.Time) Summary {
	var s Summary
	for _, ts := range timestamps {
		if IsProtected(ts, now) {
			s.Protected++
		} else {
			s.Deletable++
		}
	}
	return s
}
