package activity

import "time"

// Weeks start on Sunday. Week 1 of a year is the first Sunday-start week with
// at least four days in that year, so a week always belongs to the year of its
// Wednesday. The week-numbering year can therefore differ from the calendar
// year for the first and last few days of January and December.

// SundayWeek returns the week-numbering year and week (1-53) of t's wall-clock date
func SundayWeek(t time.Time) (year, week int) {
	wed := WeekStart(t).AddDate(0, 0, 3)
	return wed.Year(), (wed.YearDay()-1)/7 + 1
}

// WeekStart returns the Sunday that opens the week containing t
func WeekStart(t time.Time) time.Time {
	d := civilDate(t)
	return d.AddDate(0, 0, -int(d.Weekday()))
}

// FirstDayOfWeek returns the Sunday that opens the given week of a
// week-numbering year
func FirstDayOfWeek(year, week int) time.Time {
	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	firstWed := jan1.AddDate(0, 0, (int(time.Wednesday)-int(jan1.Weekday())+7)%7)
	return firstWed.AddDate(0, 0, 7*(week-1)-3)
}

// MondayWeekday maps t's weekday to 0=Monday … 6=Sunday
func MondayWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
