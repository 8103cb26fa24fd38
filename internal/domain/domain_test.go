package domain

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{raw: "2025-08-29", want: "2025-08-29", ok: true},
		{raw: "2025/09/01", want: "2025-09-01", ok: true},
		{raw: " 2024-02-29 ", want: "2024-02-29", ok: true},
		{raw: "2025-02-29"},
		{raw: "2025-13-01"},
		{raw: "2025/09-01"},
		{raw: "notadate"},
		{raw: "25-09-01"},
		{raw: ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDate(tt.raw)
			if !tt.ok {
				if err == nil {
					t.Fatalf("ParseDate(%q) = %s, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error: %v", tt.raw, err)
			}
			if got.String() != tt.want {
				t.Fatalf("ParseDate(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()
	good := map[string]string{"18:00": "18:00", "9:05": "09:05", "00:00": "00:00", "23:59": "23:59"}
	for in, want := range good {
		got, err := ParseClock(in)
		if err != nil || got != want {
			t.Fatalf("ParseClock(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"24:00", "18:60", "1800", "18:0", "x8:00", ""} {
		if got, err := ParseClock(in); err == nil {
			t.Fatalf("ParseClock(%q) = %q, want error", in, got)
		}
	}
}

func TestFilterAllow(t *testing.T) {
	t.Parallel()
	sat := MustDate("2025-06-07")
	if sat.Weekday() != time.Saturday {
		t.Fatalf("fixture is %v, want Saturday", sat.Weekday())
	}

	strict := Filter{EarliestHour: 18, LatestHour: 22, WeekdaysOK: true, WeekendsOK: false}
	if strict.Allow(sat.Weekday(), "14:30") {
		t.Fatal("14:30 Saturday passed a weekday-only 18-22 filter")
	}

	open := Filter{EarliestHour: 0, LatestHour: 24, WeekdaysOK: true, WeekendsOK: true}
	if !open.Allow(sat.Weekday(), "14:30") {
		t.Fatal("14:30 Saturday rejected by an open filter")
	}

	window := Filter{EarliestHour: 18, LatestHour: 22, WeekdaysOK: true, WeekendsOK: true}
	cases := map[string]bool{"17:59": false, "18:00": true, "21:59": true, "22:00": false, "bad": false}
	for start, want := range cases {
		if got := window.Allow(time.Monday, start); got != want {
			t.Fatalf("Allow(Monday, %s) = %v, want %v", start, got, want)
		}
	}
	if (Filter{EarliestHour: 0, LatestHour: 24, WeekendsOK: true}).Allow(time.Tuesday, "10:00") {
		t.Fatal("weekday passed with WeekdaysOK=false")
	}
}

func TestDedupSlots(t *testing.T) {
	t.Parallel()
	d := MustDate("2025-06-01")
	a, _ := NewSlot(d, "18:00", "", "https://example.test/a")
	b, _ := NewSlot(d, "18:00", "Padel", "https://example.test/b")
	c, _ := NewSlot(d, "19:00", "", "")

	got := DedupSlots([]Slot{a, b, c})
	if len(got) != 2 {
		t.Fatalf("got %d slots, want 2", len(got))
	}
	if got[0].Link != "https://example.test/a" {
		t.Fatalf("first occurrence not kept: %+v", got[0])
	}
}

func TestSortSlots(t *testing.T) {
	t.Parallel()
	mk := func(date, start string) Slot {
		s, ok := NewSlot(MustDate(date), start, "", "")
		if !ok {
			t.Fatalf("NewSlot(%s, %s) rejected", date, start)
		}
		return s
	}
	slots := []Slot{mk("2025-06-02", "09:00"), mk("2025-06-01", "20:00"), mk("2025-06-01", "18:00")}
	SortSlots(slots)
	want := []string{"2025-06-01|18:00", "2025-06-01|20:00", "2025-06-02|09:00"}
	for i, s := range slots {
		if s.ID() != want[i] {
			t.Fatalf("slots[%d] = %s, want %s", i, s.ID(), want[i])
		}
	}
}

func TestNewSlotRejectsMalformedTime(t *testing.T) {
	t.Parallel()
	if _, ok := NewSlot(MustDate("2025-06-01"), "25:00", "", ""); ok {
		t.Fatal("25:00 accepted")
	}
	s, ok := NewSlot(MustDate("2025-06-01"), "7:30", "", "")
	if !ok || s.Start != "07:30" || s.Activity != DefaultActivity {
		t.Fatalf("unexpected slot: %+v ok=%v", s, ok)
	}
}

func TestTargetSetPrune(t *testing.T) {
	t.Parallel()
	ts := NewTargetSet(MustDate("2024-01-01"), MustDate("2099-12-31"))
	removed := ts.Prune(MustDate("2025-01-01"))
	if len(removed) != 1 || removed[0].String() != "2024-01-01" {
		t.Fatalf("removed = %v, want [2024-01-01]", removed)
	}
	got := ts.Strings()
	if len(got) != 1 || got[0] != "2099-12-31" {
		t.Fatalf("remaining = %v, want [2099-12-31]", got)
	}
	if len(ts.Prune(MustDate("2025-01-01"))) != 0 {
		t.Fatal("second prune removed something")
	}
	// today itself is kept
	today := NewTargetSet(MustDate("2025-01-01"))
	if len(today.Prune(MustDate("2025-01-01"))) != 0 {
		t.Fatal("today was pruned")
	}
}

func TestCursorAdvance(t *testing.T) {
	t.Parallel()
	c := UnsetCursor()
	if c.IsSet() {
		t.Fatal("zero cursor reports set")
	}
	c = c.Advance(0)
	if !c.IsSet() || c.ID() != 0 {
		t.Fatalf("Advance(0) on unset = %s", c)
	}
	c = c.Advance(10).Advance(7)
	if c.ID() != 10 {
		t.Fatalf("cursor moved backwards: %s", c)
	}
}

func TestKeys(t *testing.T) {
	t.Parallel()
	s, _ := NewSlot(MustDate("2025-06-01"), "18:00", "", "")
	if got := KeyBySlot(s); got != "2025-06-01|18:00" {
		t.Fatalf("KeyBySlot = %q", got)
	}
	if got := KeyByDate(s); got != "2025-06-01" {
		t.Fatalf("KeyByDate = %q", got)
	}
	if _, err := KeyFuncFor("week"); err == nil {
		t.Fatal("unknown granularity accepted")
	}
	for k, want := range map[string]bool{
		"2025-06-01":       true,
		"2025-06-01|18:00": true,
		"2025-06-01|8:00":  false,
		"2025/06/01":       false,
		"junk":             false,
		"2025-06-01|25:00": false,
	} {
		if got := ValidKey(k); got != want {
			t.Fatalf("ValidKey(%q) = %v, want %v", k, got, want)
		}
	}
}

func TestCountersResetDate(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := Counters{}
	c.Increment("2025-06-01|18:00", now)
	c.Increment("2025-06-01|19:00", now)
	c.Increment("2025-06-01", now)
	c.Increment("2025-06-02|18:00", now)
	if n := c.ResetDate(MustDate("2025-06-01")); n != 3 {
		t.Fatalf("ResetDate removed %d, want 3", n)
	}
	if len(c) != 1 || c.Count("2025-06-02|18:00") != 1 {
		t.Fatalf("unexpected counters: %v", c)
	}
}
