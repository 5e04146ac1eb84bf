// Package civil converts instants to calendar dates in a fixed timezone.
package civil

import "time"

const dayFormat = "2006-01-02"

// Day returns the calendar date of the instant as observed in loc.
// The conversion honours DST transitions, so the result can differ from
// the UTC date by one day in either direction.
func Day(instant time.Time, loc *time.Location) string {
	return instant.In(loc).Format(dayFormat)
}

// Days returns the yesterday/today pair for the instant in loc.
// Yesterday is the civil date 24 hours earlier, which is correct even
// across DST boundaries because the subtraction happens on the instant.
func Days(instant time.Time, loc *time.Location) (yesterday, today string) {
	return Day(instant.Add(-24*time.Hour), loc), Day(instant, loc)
}
