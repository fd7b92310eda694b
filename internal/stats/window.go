package stats

import "time"

// DayStart returns midnight of t's day in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// WeekStart returns midnight of the Monday on or before t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	d := DayStart(t, loc)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthStart returns midnight of the first day of t's month, in loc.
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}
