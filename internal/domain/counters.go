package domain

import (
	"sort"
	"time"
)

// Counter tracks how many confirmed alerts went out for one key.
type Counter struct {
	Count    int       `json:"count"`
	LastSent time.Time `json:"last_sent,omitempty"`
}

// Counters maps notification keys to send counts. Counts only grow through
// Increment, which callers invoke after a confirmed delivery; they only drop
// through the explicit reset methods.
type Counters map[string]Counter

func (c Counters) Get(key string) Counter { return c[key] }

func (c Counters) Count(key string) int { return c[key].Count }

// Eligible reports whether key is still under limit.
func (c Counters) Eligible(key string, limit int) bool { return c.Count(key) < limit }

func (c Counters) Increment(key string, at time.Time) {
	cur := c[key]
	cur.Count++
	cur.LastSent = at
	c[key] = cur
}

// Reset zeroes every counter.
func (c Counters) Reset() {
	for k := range c {
		delete(c, k)
	}
}

// ResetDate zeroes the date key and every per-slot key on that date.
// It returns how many entries were removed.
func (c Counters) ResetDate(d Date) int {
	n := 0
	for k := range c {
		kd, ok := KeyDate(k)
		if ok && kd == d {
			delete(c, k)
			n++
		}
	}
	return n
}

func (c Counters) Keys() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c Counters) Clone() Counters {
	out := make(Counters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
