package domain

import (
	"sort"
	"time"
)

// DefaultActivity labels a slot when the page does not name the activity.
const DefaultActivity = "Padel"

// Slot is one bookable session on a specific date. Slots are produced fresh
// by every scan and never persisted.
type Slot struct {
	Date     Date
	Weekday  time.Weekday
	Start    string // canonical HH:MM
	Activity string
	Link     string
}

// NewSlot validates start and fills the derived weekday. An invalid start
// time yields ok=false; callers drop the record.
func NewSlot(date Date, start, activity, link string) (Slot, bool) {
	hhmm, err := ParseClock(start)
	if err != nil || date.IsZero() {
		return Slot{}, false
	}
	if activity == "" {
		activity = DefaultActivity
	}
	return Slot{Date: date, Weekday: date.Weekday(), Start: hhmm, Activity: activity, Link: link}, true
}

// ID is the slot identity: "<ISO-date>|<HH:MM>".
func (s Slot) ID() string { return s.Date.String() + "|" + s.Start }

func lessSlot(a, b Slot) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	return a.Start < b.Start
}

// SortSlots orders by (date, start) in place.
func SortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool { return lessSlot(slots[i], slots[j]) })
}

// DedupSlots drops later records with an identity already seen, keeping order.
func DedupSlots(slots []Slot) []Slot {
	if len(slots) == 0 {
		return slots
	}
	seen := make(map[string]struct{}, len(slots))
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		id := s.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, s)
	}
	return out
}

// FilterByTargets keeps slots on watched dates. An empty set keeps everything.
func FilterByTargets(slots []Slot, targets *TargetSet) []Slot {
	if targets == nil || targets.Len() == 0 {
		return slots
	}
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if targets.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out
}
