package domain

import "time"

// Filter is the user's time-of-day and weekday preference.
//
// The hour window is inclusive-low, exclusive-high: EarliestHour=18,
// LatestHour=22 admits 18:00..21:59.
type Filter struct {
	EarliestHour int
	LatestHour   int
	WeekdaysOK   bool
	WeekendsOK   bool
}

// AllowAll admits every slot.
func AllowAll() Filter {
	return Filter{EarliestHour: 0, LatestHour: 24, WeekdaysOK: true, WeekendsOK: true}
}

func IsWeekend(d time.Weekday) bool { return d == time.Saturday || d == time.Sunday }

// Allow reports whether a slot starting at start (HH:MM) on weekday passes.
// A start that is not valid HH:MM never passes.
func (f Filter) Allow(weekday time.Weekday, start string) bool {
	if IsWeekend(weekday) {
		if !f.WeekendsOK {
			return false
		}
	} else if !f.WeekdaysOK {
		return false
	}
	hh, ok := ClockHour(start)
	if !ok {
		return false
	}
	return f.EarliestHour <= hh && hh < f.LatestHour
}
