package model

import "time"

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval is non-empty.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps reports whether iv and o share at least one instant.  An
// interval ending exactly where the other starts does not overlap it.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Interval returns the blocked range of u.
func (u Unavailability) Interval() Interval {
	return Interval{Start: u.StartDatetime, End: u.EndDatetime}
}
