package calendar

import "time"

// Day returns the bounds [midnight, next midnight) of the calendar day
// containing t in loc.
func Day(t time.Time, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1)
	return start, end
}

// DaysAgo is the instant n*24h before t, the way "two days ago" is counted
// for the recent gallery.
func DaysAgo(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, -n)
}
