// Package ptr provides pointer and date helpers for tests.
package ptr

import "time"

// Float64 returns a pointer to the given float64 value.
func Float64(v float64) *float64 { return &v }

// Date returns a UTC time for the given year, month, and day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
