package appcreds

import "time"

const secondsPerDay = 24 * 60 * 60

// DaysUntil returns the signed, fractional number of days from now until
// expiry. Expired entries give a negative value.
func DaysUntil(expiry, now time.Time) float64 {
	// Whole seconds and the nanosecond remainder are kept apart so far-future
	// dates do not saturate time.Duration.
	secs := float64(expiry.Unix() - now.Unix())
	nanos := float64(expiry.Nanosecond()-now.Nanosecond()) / 1e9
	return (secs + nanos) / secondsPerDay
}
