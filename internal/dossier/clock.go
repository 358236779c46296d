package dossier

import "time"

// TimeLayout is the ISO-8601 form used for every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Clock returns the current time.
type Clock func() time.Time

// SystemClock reads the wall clock.
func SystemClock() time.Time { return time.Now() }

// FormatTime renders t in UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. Any RFC 3339 form is accepted.
func ParseTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Touch stamps d.UpdatedAt with now. The stored value never moves backwards:
// if the current stamp is later than now it is kept.
func Touch(d *Dossier, now time.Time) string {
	stamp := FormatTime(now)
	if prev, ok := ParseTime(d.UpdatedAt); ok && prev.After(now) {
		stamp = FormatTime(prev)
	}
	d.UpdatedAt = stamp
	return stamp
}
