package commands

import (
	"fmt"
	"strings"

	"slotwatch/internal/domain"
)

func helpText() string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range vocabulary {
		b.WriteString("/")
		b.WriteString(c.Name)
		if c.Args != "" {
			b.WriteString(" ")
			b.WriteString(c.Args)
		}
		if len(c.Aliases) > 0 {
			b.WriteString(" (also /")
			b.WriteString(strings.Join(c.Aliases, ", /"))
			b.WriteString(")")
		}
		b.WriteString(" - ")
		b.WriteString(c.Summary)
		b.WriteString("\n")
	}
	b.WriteString("\nWith no watched dates, every date in range is reported.")
	return b.String()
}

func watchList(t *domain.TargetSet) string {
	if t.Len() == 0 {
		return "Watching: none (all dates in range)"
	}
	return "Watching: " + strings.Join(t.Strings(), ", ")
}

func joinDates(ds []domain.Date) string {
	s := make([]string, len(ds))
	for i, d := range ds {
		s[i] = d.String()
	}
	return strings.Join(s, ", ")
}

func usage(word, args string) string {
	return fmt.Sprintf("Usage: /%s %s\nExample: /%s 2025-06-01 2025/06/02", word, args, word)
}

// dateArgs sorts raw tokens into valid dates and rejects.
func dateArgs(args []string) (dates []domain.Date, invalid []string) {
	for _, a := range args {
		for _, tok := range strings.Split(a, ",") {
			if tok == "" {
				continue
			}
			d, err := domain.ParseDate(tok)
			if err != nil {
				invalid = append(invalid, tok)
				continue
			}
			dates = append(dates, d)
		}
	}
	return dates, invalid
}

func countersText(c domain.Counters, limit int, g domain.Granularity) string {
	unit := "slot"
	if g == domain.PerDate {
		unit = "date"
	}
	if len(c) == 0 {
		return fmt.Sprintf("No alerts sent yet (limit %d per %s).", limit, unit)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Alerts sent (limit %d per %s):\n", limit, unit)
	for _, k := range c.Keys() {
		e := c.Get(k)
		fmt.Fprintf(&b, "• %s: %d/%d", k, e.Count, limit)
		if !e.LastSent.IsZero() {
			fmt.Fprintf(&b, " (last %s)", e.LastSent.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
