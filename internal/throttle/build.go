// Package throttle turns scanned slots into size-bounded alert messages and
// enforces the per-key alert ceiling.
package throttle

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"slotwatch/internal/domain"
	logx "slotwatch/pkg/logx"
)

const (
	headerEmoji    = "🎾"
	continuedMark  = " (continued)"
	dateLayout     = "Mon 02 Jan 2006"
	defaultMaxChar = 3500
)

// BuildOptions controls message layout and eligibility.
type BuildOptions struct {
	// Activity overrides the per-slot label in headers.
	Activity string
	Limit    int
	Key      domain.KeyFunc
	// MaxChars bounds every message, in runes.
	MaxChars int
	// MaxLinesPerDate caps listed slots per date; 0 lists all.
	MaxLinesPerDate int
}

// Message is one outbound alert. Keys are the notification keys of the
// slots actually listed in Text.
type Message struct {
	Text string
	Keys []string
}

// Eligible returns the slots whose key is still under the ceiling.
func Eligible(slots []domain.Slot, c domain.Counters, limit int, key domain.KeyFunc) []domain.Slot {
	if key == nil {
		key = domain.KeyBySlot
	}
	var out []domain.Slot
	for _, s := range slots {
		if c.Eligible(key(s), limit) {
			out = append(out, s)
		}
	}
	return out
}

// Build groups eligible slots by date and lays them out into messages.
// It has no side effects.
func Build(slots []domain.Slot, c domain.Counters, opts BuildOptions) []Message {
	if opts.Key == nil {
		opts.Key = domain.KeyBySlot
	}
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = defaultMaxChar
	}

	eligible := Eligible(domain.DedupSlots(slots), c, opts.Limit, opts.Key)
	domain.SortSlots(eligible)

	b := &builder{max: opts.MaxChars}
	for start := 0; start < len(eligible); {
		end := start
		for end < len(eligible) && eligible[end].Date == eligible[start].Date {
			end++
		}
		b.addDate(eligible[start:end], opts)
		start = end
	}
	b.flush()
	return b.out
}

type builder struct {
	max int

	out   []Message
	lines []string
	size  int
	keys  []string
	seen  map[string]struct{}
}

func (b *builder) flush() {
	if len(b.lines) == 0 {
		return
	}
	b.out = append(b.out, Message{Text: strings.Join(b.lines, "\n"), Keys: b.keys})
	b.lines, b.size, b.keys, b.seen = nil, 0, nil, nil
}

// fits reports whether the extra lines can join the current message.
func (b *builder) fits(extra ...string) bool {
	n := b.size
	for _, l := range extra {
		if n > 0 {
			n++
		}
		n += utf8.RuneCountInString(l)
	}
	return n <= b.max
}

func (b *builder) push(line string) {
	if b.size > 0 {
		b.size++
	}
	b.size += utf8.RuneCountInString(line)
	b.lines = append(b.lines, line)
}

func (b *builder) addKey(k string) {
	if k == "" {
		return
	}
	if b.seen == nil {
		b.seen = map[string]struct{}{}
	}
	if _, ok := b.seen[k]; ok {
		return
	}
	b.seen[k] = struct{}{}
	b.keys = append(b.keys, k)
}

// fitLine shortens a line that cannot fit even in a fresh message under its
// header.
func (b *builder) fitLine(header, line string) string {
	room := b.max - utf8.RuneCountInString(header) - 1
	if room < 1 {
		return ""
	}
	return logx.Bound(line, room)
}

func (b *builder) addDate(day []domain.Slot, opts BuildOptions) {
	activity := opts.Activity
	if activity == "" {
		activity = day[0].Activity
	}
	header := dateHeader(activity, day[0].Date)
	contHeader := header + continuedMark

	shown := day
	hidden := 0
	if opts.MaxLinesPerDate > 0 && len(day) > opts.MaxLinesPerDate {
		shown = day[:opts.MaxLinesPerDate]
		hidden = len(day) - opts.MaxLinesPerDate
	}

	first := b.fitLine(contHeader, slotLine(shown[0]))
	if b.size > 0 && !b.fits("", header, first) {
		b.flush()
	}
	if b.size > 0 {
		b.push("")
	}
	b.push(header)

	for _, s := range shown {
		line := b.fitLine(contHeader, slotLine(s))
		if !b.fits(line) {
			b.flush()
			b.push(contHeader)
		}
		b.push(line)
		b.addKey(opts.Key(s))
	}
	if hidden > 0 {
		more := fmt.Sprintf("…and %d more", hidden)
		if !b.fits(more) {
			b.flush()
			b.push(contHeader)
		}
		b.push(more)
	}
}

func dateHeader(activity string, d domain.Date) string {
	return fmt.Sprintf("%s %s — %s (%s)", headerEmoji, activity, d.Format(dateLayout), d.String())
}

func slotLine(s domain.Slot) string {
	line := "• " + s.Start + " " + s.Activity
	if s.Link != "" {
		line += " " + s.Link
	}
	return line
}
