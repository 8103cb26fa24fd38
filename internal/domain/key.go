package domain

import (
	"fmt"
	"strings"
)

// KeyFunc maps a slot to the notification key its ceiling is counted under.
type KeyFunc func(Slot) string

// Granularity names a KeyFunc in configuration.
type Granularity string

const (
	PerSlot Granularity = "slot"
	PerDate Granularity = "date"
)

// KeyBySlot counts alerts per "<date>|<HH:MM>".
func KeyBySlot(s Slot) string { return s.ID() }

// KeyByDate counts alerts per "<date>", so one alert covers the whole day.
func KeyByDate(s Slot) string { return s.Date.String() }

func KeyFuncFor(g Granularity) (KeyFunc, error) {
	switch Granularity(strings.ToLower(strings.TrimSpace(string(g)))) {
	case "", PerSlot:
		return KeyBySlot, nil
	case PerDate:
		return KeyByDate, nil
	default:
		return nil, fmt.Errorf("unknown notify granularity %q (use slot or date)", g)
	}
}

// ValidKey reports whether k has either key shape. Used when loading stored
// counters so a corrupted key is dropped instead of matching nothing forever.
func ValidKey(k string) bool {
	date, clock, hasClock := strings.Cut(k, "|")
	if _, err := ParseDate(date); err != nil {
		return false
	}
	if strings.Contains(date, "/") {
		return false
	}
	if !hasClock {
		return true
	}
	c, err := ParseClock(clock)
	return err == nil && c == clock
}

// KeyDate returns the date component of a key.
func KeyDate(k string) (Date, bool) {
	date, _, _ := strings.Cut(k, "|")
	d, err := ParseDate(date)
	return d, err == nil
}
