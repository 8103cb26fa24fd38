package throttle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"slotwatch/internal/domain"
	kit "slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

func slot(t *testing.T, date, start string) domain.Slot {
	t.Helper()
	s, ok := domain.NewSlot(domain.MustDate(date), start, "Padel", "https://cal.test/book/"+date+"/"+start)
	if !ok {
		t.Fatalf("bad slot %s %s", date, start)
	}
	return s
}

type flakySender struct {
	failing bool
	failTo  map[kit.ChatID]bool
	texts   []string
}

func (f *flakySender) SendMessage(_ context.Context, to kit.ChatID, text string) error {
	if f.failing || f.failTo[to] {
		return errors.New("transport down")
	}
	f.texts = append(f.texts, text)
	return nil
}

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestBuildChunksWithinBudget(t *testing.T) {
	t.Parallel()
	var slots []domain.Slot
	for i := 0; i < 50; i++ {
		slots = append(slots, slot(t, "2025-06-01", fmt.Sprintf("%02d:%02d", i*15/60, i*15%60)))
	}

	msgs := Build(slots, domain.Counters{}, BuildOptions{Limit: 1, MaxChars: 500})
	if len(msgs) < 2 {
		t.Fatalf("messages = %d", len(msgs))
	}
	seen := map[string]int{}
	for i, m := range msgs {
		if n := utf8.RuneCountInString(m.Text); n > 500 {
			t.Fatalf("message %d has %d runes", i, n)
		}
		if i > 0 && !strings.Contains(m.Text, "(continued)") {
			t.Fatalf("message %d lacks continuation header: %q", i, m.Text)
		}
		for _, line := range strings.Split(m.Text, "\n") {
			if strings.HasPrefix(line, "• ") {
				seen[strings.Fields(line)[1]]++
			}
		}
	}
	if len(seen) != 50 {
		t.Fatalf("slots listed = %d", len(seen))
	}
	for start, n := range seen {
		if n != 1 {
			t.Fatalf("slot %s listed %d times", start, n)
		}
	}
}

func TestBuildLayout(t *testing.T) {
	t.Parallel()
	slots := []domain.Slot{
		slot(t, "2025-06-02", "19:00"),
		slot(t, "2025-06-01", "21:00"),
		slot(t, "2025-06-01", "18:00"),
		slot(t, "2025-06-01", "18:00"),
	}
	msgs := Build(slots, domain.Counters{}, BuildOptions{Limit: 1})
	if len(msgs) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}
	want := strings.Join([]string{
		"🎾 Padel — Sun 01 Jun 2025 (2025-06-01)",
		"• 18:00 Padel https://cal.test/book/2025-06-01/18:00",
		"• 21:00 Padel https://cal.test/book/2025-06-01/21:00",
		"",
		"🎾 Padel — Mon 02 Jun 2025 (2025-06-02)",
		"• 19:00 Padel https://cal.test/book/2025-06-02/19:00",
	}, "\n")
	if msgs[0].Text != want {
		t.Fatalf("text =\n%s\nwant\n%s", msgs[0].Text, want)
	}
	if strings.Join(msgs[0].Keys, ",") != "2025-06-01|18:00,2025-06-01|21:00,2025-06-02|19:00" {
		t.Fatalf("keys = %v", msgs[0].Keys)
	}
}

func TestBuildCapsLinesPerDate(t *testing.T) {
	t.Parallel()
	var slots []domain.Slot
	for _, s := range []string{"17:00", "18:00", "19:00", "20:00", "21:00"} {
		slots = append(slots, slot(t, "2025-06-01", s))
	}
	msgs := Build(slots, domain.Counters{}, BuildOptions{Limit: 1, MaxLinesPerDate: 2})
	if len(msgs) != 1 || !strings.HasSuffix(msgs[0].Text, "…and 3 more") {
		t.Fatalf("messages = %+v", msgs)
	}
	if len(msgs[0].Keys) != 2 {
		t.Fatalf("hidden slots carried keys: %v", msgs[0].Keys)
	}
}

func TestBuildSkipsSpentKeysAndGroupsByDate(t *testing.T) {
	t.Parallel()
	c := domain.Counters{}
	c.Increment("2025-06-02", fixedNow())
	slots := []domain.Slot{
		slot(t, "2025-06-01", "18:00"),
		slot(t, "2025-06-01", "19:00"),
		slot(t, "2025-06-02", "18:00"),
	}
	msgs := Build(slots, c, BuildOptions{Limit: 1, Key: domain.KeyByDate})
	if len(msgs) != 1 || strings.Contains(msgs[0].Text, "2025-06-02") {
		t.Fatalf("messages = %+v", msgs)
	}
	if len(msgs[0].Keys) != 1 || msgs[0].Keys[0] != "2025-06-01" {
		t.Fatalf("keys = %v", msgs[0].Keys)
	}
}

func TestNotifyIsIdempotentUpToLimit(t *testing.T) {
	t.Parallel()
	const limit = 3
	slots := []domain.Slot{slot(t, "2025-06-01", "18:00")}
	c := domain.Counters{}
	s := &flakySender{}
	th := New(s, Options{BuildOptions: BuildOptions{Limit: limit}, Now: fixedNow}, logx.Nop())

	for n := 1; n <= 6; n++ {
		if _, err := th.Notify(context.Background(), slots, c, []kit.ChatID{1}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if got, want := c.Count("2025-06-01|18:00"), min(n, limit); got != want {
			t.Fatalf("after %d runs count = %d, want %d", n, got, want)
		}
	}
	if len(s.texts) != limit {
		t.Fatalf("delivered %d alerts, want %d", len(s.texts), limit)
	}
}

func TestNotifyFailureDoesNotPreIncrement(t *testing.T) {
	t.Parallel()
	slots := []domain.Slot{slot(t, "2025-06-01", "18:00")}
	c := domain.Counters{}
	s := &flakySender{failing: true}
	th := New(s, Options{BuildOptions: BuildOptions{Limit: 2}, Now: fixedNow}, logx.Nop())

	for i := 0; i < 3; i++ {
		out, err := th.Notify(context.Background(), slots, c, []kit.ChatID{1})
		if err != nil {
			t.Fatalf("Notify: %v", err)
		}
		if out.CountersChanged() || len(c) != 0 {
			t.Fatalf("failed send changed counters: %v", c)
		}
	}
	s.failing = false
	if _, err := th.Notify(context.Background(), slots, c, []kit.ChatID{1}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if got := c.Count("2025-06-01|18:00"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
	if !c.Get("2025-06-01|18:00").LastSent.Equal(fixedNow()) {
		t.Fatalf("last sent = %v", c.Get("2025-06-01|18:00").LastSent)
	}
}

func TestNotifyOneRecipientIsEnough(t *testing.T) {
	t.Parallel()
	slots := []domain.Slot{slot(t, "2025-06-01", "18:00")}
	c := domain.Counters{}
	s := &flakySender{failTo: map[kit.ChatID]bool{1: true}}
	th := New(s, Options{BuildOptions: BuildOptions{Limit: 1}, Now: fixedNow}, logx.Nop())

	out, err := th.Notify(context.Background(), slots, c, []kit.ChatID{1, 2})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if out.Delivered != 1 || out.SendFailures != 1 || c.Count("2025-06-01|18:00") != 1 {
		t.Fatalf("outcome = %+v counters = %v", out, c)
	}
}

func TestNotifyKeyIncrementedOncePerCall(t *testing.T) {
	t.Parallel()
	var slots []domain.Slot
	for i := 0; i < 40; i++ {
		slots = append(slots, slot(t, "2025-06-01", fmt.Sprintf("%02d:%02d", 8+i/4, i%4*15)))
	}
	c := domain.Counters{}
	th := New(&flakySender{}, Options{BuildOptions: BuildOptions{Limit: 5, Key: domain.KeyByDate, MaxChars: 300}, Now: fixedNow}, logx.Nop())
	out, err := th.Notify(context.Background(), slots, c, []kit.ChatID{1})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if out.Messages < 2 || c.Count("2025-06-01") != 1 {
		t.Fatalf("outcome = %+v counters = %v", out, c)
	}
}

func TestNotifyWithoutRecipients(t *testing.T) {
	t.Parallel()
	c := domain.Counters{}
	th := New(&flakySender{}, Options{Now: fixedNow}, logx.Nop())
	out, err := th.Notify(context.Background(), []domain.Slot{slot(t, "2025-06-01", "18:00")}, c, nil)
	if err != nil || out.Sends != 0 || len(c) != 0 {
		t.Fatalf("out = %+v err = %v", out, err)
	}
}
