package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date is a civil calendar date without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

var reDate = regexp.MustCompile(`^(\d{4})[-/](\d{2})[-/](\d{2})$`)

// ParseDate accepts YYYY-MM-DD and YYYY/MM/DD. The separators must match and
// the date must exist on the calendar (2025-02-30 is rejected).
func ParseDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	m := reDate.FindStringSubmatch(s)
	if m == nil || s[4] != s[7] {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or YYYY/MM/DD)", raw)
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return Date{}, fmt.Errorf("invalid date %q (no such day)", raw)
	}
	return Date{Year: y, Month: time.Month(mo), Day: d}, nil
}

// MustDate is ParseDate for literals in tests and defaults.
func MustDate(raw string) Date {
	d, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

func (d Date) String() string { return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day) }

func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

func (d Date) AddDays(n int) Date { return DateOf(d.time().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Format renders the date with a Go time layout.
func (d Date) Format(layout string) string { return d.time().Format(layout) }

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

var reClock = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// ParseClock validates a local start time and returns it in canonical HH:MM
// form. A single-digit hour ("9:05") is padded; anything outside 00:00..23:59
// is an error and must be discarded by the caller.
func ParseClock(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	m := reClock.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	h, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d:%s", h, m[2]), nil
}

// ClockHour returns the hour of a canonical HH:MM value.
func ClockHour(hhmm string) (int, bool) {
	if len(hhmm) != 5 || hhmm[2] != ':' {
		return 0, false
	}
	h, err := strconv.Atoi(hhmm[:2])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
