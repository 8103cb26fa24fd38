package domain

import "sort"

// TargetSet is the set of dates users asked to watch.
// The zero value is an empty, usable set.
type TargetSet struct {
	m map[Date]struct{}
}

func NewTargetSet(dates ...Date) *TargetSet {
	t := &TargetSet{}
	for _, d := range dates {
		t.Add(d)
	}
	return t
}

func (t *TargetSet) Len() int { return len(t.m) }

func (t *TargetSet) Contains(d Date) bool {
	_, ok := t.m[d]
	return ok
}

// Add inserts d and reports whether the set changed.
func (t *TargetSet) Add(d Date) bool {
	if d.IsZero() || t.Contains(d) {
		return false
	}
	if t.m == nil {
		t.m = map[Date]struct{}{}
	}
	t.m[d] = struct{}{}
	return true
}

// Remove deletes d and reports whether it was present.
func (t *TargetSet) Remove(d Date) bool {
	if !t.Contains(d) {
		return false
	}
	delete(t.m, d)
	return true
}

func (t *TargetSet) Clear() { t.m = nil }

// Prune removes every date strictly before today and returns them in order.
func (t *TargetSet) Prune(today Date) []Date {
	var removed []Date
	for d := range t.m {
		if d.Before(today) {
			removed = append(removed, d)
		}
	}
	for _, d := range removed {
		delete(t.m, d)
	}
	sortDates(removed)
	return removed
}

// Dates returns the members in ascending order.
func (t *TargetSet) Dates() []Date {
	out := make([]Date, 0, len(t.m))
	for d := range t.m {
		out = append(out, d)
	}
	sortDates(out)
	return out
}

func (t *TargetSet) Strings() []string {
	ds := t.Dates()
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}

func (t *TargetSet) Clone() *TargetSet { return NewTargetSet(t.Dates()...) }

func sortDates(ds []Date) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].Before(ds[j]) })
}
