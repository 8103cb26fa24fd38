package throttle

import (
	"context"
	"sort"
	"time"

	"slotwatch/internal/domain"
	kit "slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

type Options struct {
	BuildOptions
	Now func() time.Time
}

// Outcome reports one Notify pass.
type Outcome struct {
	Eligible     int
	Messages     int
	Delivered    int
	Sends        int
	SendFailures int
	// Keys incremented this pass, sorted.
	Keys []string
}

func (o Outcome) CountersChanged() bool { return len(o.Keys) > 0 }

type Throttler struct {
	sender kit.Sender
	opts   Options
	log    logx.Logger
}

func New(sender kit.Sender, opts Options, log logx.Logger) *Throttler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if opts.Key == nil {
		opts.Key = domain.KeyBySlot
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Throttler{sender: sender, opts: opts, log: log.With(logx.String("comp", "throttle"))}
}

// Notify sends the alert messages for slots to every recipient and
// increments counters for keys in messages that reached at least one chat.
// Each key is incremented at most once per call. A send failure never
// touches counters. The only returned error is context cancellation; counter
// increments for messages delivered before it are kept.
func (t *Throttler) Notify(ctx context.Context, slots []domain.Slot, counters domain.Counters, recipients []kit.ChatID) (Outcome, error) {
	var out Outcome
	out.Eligible = len(Eligible(domain.DedupSlots(slots), counters, t.opts.Limit, t.opts.Key))
	if out.Eligible == 0 {
		return out, nil
	}
	if len(recipients) == 0 {
		t.log.Warn("eligible slots but no recipients", logx.Int("eligible", out.Eligible))
		return out, nil
	}

	msgs := Build(slots, counters, t.opts.BuildOptions)
	out.Messages = len(msgs)

	done := map[string]struct{}{}
	for i, m := range msgs {
		ok := 0
		for _, to := range recipients {
			if err := ctx.Err(); err != nil {
				t.commit(counters, done, &out)
				return out, err
			}
			out.Sends++
			if err := t.sender.SendMessage(ctx, to, m.Text); err != nil {
				out.SendFailures++
				t.log.Warn("alert send failed",
					logx.Int("message", i+1),
					logx.String("chat_id", to.String()),
					logx.Err(err),
				)
				continue
			}
			ok++
		}
		if ok == 0 {
			continue
		}
		out.Delivered++
		for _, k := range m.Keys {
			done[k] = struct{}{}
		}
	}
	t.commit(counters, done, &out)

	t.log.Info("alerts sent",
		logx.Int("eligible", out.Eligible),
		logx.Int("messages", out.Messages),
		logx.Int("delivered", out.Delivered),
		logx.Int("send_failures", out.SendFailures),
	)
	return out, nil
}

func (t *Throttler) commit(counters domain.Counters, done map[string]struct{}, out *Outcome) {
	now := t.opts.Now()
	keys := make([]string, 0, len(done))
	for k := range done {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		counters.Increment(k, now)
		delete(done, k)
	}
	out.Keys = append(out.Keys, keys...)
}
