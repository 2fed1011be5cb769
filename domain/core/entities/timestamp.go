package entities

import "time"

// StampPrecision is the finest resolution a stored updatedAt carries.
// PostgreSQL timestamptz keeps microseconds, so every backend stamps at that
// resolution and a value round-trips through any store unchanged.
const StampPrecision = time.Microsecond

// Clock returns the current time. Tests replace it to force equal readings.
var Clock = time.Now

// Now returns the current instant normalized to storage precision.
func Now() time.Time {
	return Normalize(Clock())
}

// Normalize converts t to UTC at storage precision.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(StampPrecision)
}

// NextStamp returns a stamp strictly after prev.
func NextStamp(prev time.Time) time.Time {
	now := Now()
	if !now.After(prev) {
		return Normalize(prev).Add(StampPrecision)
	}
	return now
}
