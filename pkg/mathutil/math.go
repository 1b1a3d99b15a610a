package mathutil

import "time"

// AbsDuration returns the absolute value of a duration
func AbsDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// MillisToSeconds converts integer milliseconds to float seconds
func MillisToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
