package timex

import "time"

// Stamp normalizes t to UTC with millisecond precision. All lastModified,
// check-in and check-out values pass through it so that comparisons are
// deterministic across the device and the server.
func Stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Next returns a stamp strictly after prev: now when it is already later,
// otherwise prev plus one millisecond.
func Next(prev, now time.Time) time.Time {
	now = Stamp(now)
	if prev.IsZero() || now.After(prev) {
		return now
	}
	return Stamp(prev).Add(time.Millisecond)
}

// ToMillis converts a stamp to unix milliseconds for storage.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds back to a UTC stamp.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
