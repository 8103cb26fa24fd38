// Package commands interprets the inbound chat vocabulary against the
// watched-date state.
package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"slotwatch/internal/domain"
	"slotwatch/internal/storage"
	kit "slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

type Options struct {
	// BotUsername, when set, must match any "@name" suffix on a command.
	BotUsername string
	Limit       int
	Granularity domain.Granularity
	Location    *time.Location
	Now         func() time.Time
}

// Outcome summarizes one pass over the inbound stream.
type Outcome struct {
	// Recipients are chats that issued a recognized command.
	Recipients      []kit.ChatID
	Processed       int
	Ignored         int
	TargetsChanged  bool
	CountersChanged bool
	FastForwarded   bool
	Cursor          domain.Cursor
	ReplyFailures   int
	PersistFailures int
}

type Processor struct {
	msgr  kit.Messenger
	store storage.Store
	opts  Options
	log   logx.Logger
}

func NewProcessor(msgr kit.Messenger, store storage.Store, opts Options, log logx.Logger) *Processor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Limit <= 0 {
		opts.Limit = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Processor{msgr: msgr, store: store, opts: opts, log: log.With(logx.String("comp", "commands"))}
}

func (p *Processor) today() domain.Date {
	return domain.DateOf(p.opts.Now().In(p.opts.Location))
}

// Process consumes updates after state.Cursor and mutates state in place.
// A fetch error is returned before anything changes. Once updates are in
// hand, reply and persist failures are logged and counted; the cursor still
// moves past every update seen.
func (p *Processor) Process(ctx context.Context, state *storage.State) (Outcome, error) {
	out := Outcome{Cursor: state.Cursor}
	if state.Targets == nil {
		state.Targets = domain.NewTargetSet()
	}
	if state.Counters == nil {
		state.Counters = domain.Counters{}
	}

	ups, err := p.msgr.GetUpdates(ctx, state.Cursor)
	if err != nil {
		return out, fmt.Errorf("fetch updates: %w", err)
	}
	sort.Slice(ups, func(i, j int) bool { return ups[i].ID < ups[j].ID })

	if !state.Cursor.IsSet() {
		return p.fastForward(ctx, state, ups), nil
	}

	recipients := map[kit.ChatID]struct{}{}
	cursor := state.Cursor
	for _, u := range ups {
		if cursor.IsSet() && u.ID <= cursor.ID() {
			continue
		}
		cursor = cursor.Advance(u.ID)

		recognized, tc, cc := p.handleSafe(ctx, state, u, &out)
		if !recognized {
			out.Ignored++
			continue
		}
		out.Processed++
		out.TargetsChanged = out.TargetsChanged || tc
		out.CountersChanged = out.CountersChanged || cc
		if u.ChatID != 0 {
			recipients[u.ChatID] = struct{}{}
		}
	}

	for id := range recipients {
		out.Recipients = append(out.Recipients, id)
	}
	out.Recipients = kit.MergeRecipients(out.Recipients)

	// State before cursor: a crash in between replays commands, which are
	// idempotent, instead of losing them.
	if out.TargetsChanged {
		if err := p.store.SaveTargets(ctx, state.Targets); err != nil {
			out.PersistFailures++
			p.log.Error("persist targets failed", logx.Err(err))
		}
	}
	if out.CountersChanged {
		if err := p.store.SaveCounters(ctx, state.Counters); err != nil {
			out.PersistFailures++
			p.log.Error("persist counters failed", logx.Err(err))
		}
	}
	if cursor != state.Cursor {
		state.Cursor = cursor
		p.commitCursor(ctx, cursor, &out)
	}
	out.Cursor = state.Cursor
	return out, nil
}

// fastForward remembers the stream head without replying or mutating state.
func (p *Processor) fastForward(ctx context.Context, state *storage.State, ups []kit.Update) Outcome {
	var head int64
	for _, u := range ups {
		if u.ID > head {
			head = u.ID
		}
	}
	out := Outcome{FastForwarded: true}
	state.Cursor = domain.CursorAt(head)
	p.commitCursor(ctx, state.Cursor, &out)
	out.Cursor = state.Cursor
	p.log.Info("inbound cursor initialized", logx.Int64("head", head), logx.Int("skipped", len(ups)))
	return out
}

func (p *Processor) commitCursor(ctx context.Context, c domain.Cursor, out *Outcome) {
	if err := p.store.SaveCursor(ctx, c); err != nil {
		out.PersistFailures++
		p.log.Error("persist cursor failed", logx.Err(err), logx.String("cursor", c.String()))
	}
	if c.ID() <= 0 {
		return
	}
	if err := p.msgr.AckUpdates(ctx, c.ID()); err != nil {
		p.log.Warn("ack updates failed", logx.Err(err), logx.Int64("through", c.ID()))
	}
}

func (p *Processor) handleSafe(ctx context.Context, state *storage.State, u kit.Update, out *Outcome) (recognized, targets, counters bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("command panicked",
				logx.Int64("update_id", u.ID),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
		}
	}()
	return p.handle(ctx, state, u, out)
}

func (p *Processor) handle(ctx context.Context, state *storage.State, u kit.Update, out *Outcome) (recognized, targets, counters bool) {
	cmd, ok := parse(u.Text, p.opts.BotUsername)
	if !ok {
		return false, false, false
	}
	log := p.log.With(logx.Int64("update_id", u.ID), logx.String("chat_id", u.ChatID.String()), logx.String("cmd", cmd.word))

	var reply string
	switch cmd.kind {
	case cmdWant:
		reply, targets = p.want(state.Targets, cmd)
	case cmdRemove:
		reply, targets = p.remove(state.Targets, cmd)
	case cmdClear:
		targets = state.Targets.Len() > 0
		state.Targets.Clear()
		reply = "Cleared. " + watchList(state.Targets)
	case cmdList:
		reply = watchList(state.Targets)
	case cmdHelp:
		reply = helpText()
	case cmdNotified:
		reply = countersText(state.Counters, p.opts.Limit, p.opts.Granularity)
	case cmdForgetAll:
		n := len(state.Counters)
		state.Counters.Reset()
		counters = n > 0
		reply = fmt.Sprintf("Alert counters reset (%d cleared).", n)
	case cmdForget:
		reply, counters = p.forget(state.Counters, cmd)
	default:
		p.reply(ctx, log, u.ChatID, "Unknown command. Send /help for the list.", out)
		return false, false, false
	}

	log.Info("command handled", logx.Bool("targets_changed", targets), logx.Bool("counters_changed", counters))
	p.reply(ctx, log, u.ChatID, reply, out)
	return true, targets, counters
}

func (p *Processor) reply(ctx context.Context, log logx.Logger, to kit.ChatID, text string, out *Outcome) {
	if to == 0 || text == "" {
		return
	}
	if err := p.msgr.SendMessage(ctx, to, text); err != nil {
		out.ReplyFailures++
		log.Warn("reply failed", logx.Err(err))
	}
}

func (p *Processor) want(t *domain.TargetSet, cmd parsed) (string, bool) {
	dates, invalid := dateArgs(cmd.args)
	if len(dates) == 0 {
		return usageWithRejects(cmd.word, "<dates...>", invalid), false
	}
	today := p.today()
	var added, already, past []domain.Date
	for _, d := range dates {
		switch {
		case d.Before(today):
			past = append(past, d)
		case t.Add(d):
			added = append(added, d)
		default:
			already = append(already, d)
		}
	}

	var lines []string
	if len(added) > 0 {
		lines = append(lines, "Added: "+joinDates(added))
	}
	if len(already) > 0 {
		lines = append(lines, "Already watching: "+joinDates(already))
	}
	if len(past) > 0 {
		lines = append(lines, "Skipped (in the past): "+joinDates(past))
	}
	if len(invalid) > 0 {
		lines = append(lines, "Ignored (not a date): "+strings.Join(invalid, ", "))
	}
	lines = append(lines, watchList(t))
	return strings.Join(lines, "\n"), len(added) > 0
}

func (p *Processor) remove(t *domain.TargetSet, cmd parsed) (string, bool) {
	dates, invalid := dateArgs(cmd.args)
	if len(dates) == 0 {
		return usageWithRejects(cmd.word, "<dates...>", invalid), false
	}
	var removed, missing []domain.Date
	for _, d := range dates {
		if t.Remove(d) {
			removed = append(removed, d)
		} else {
			missing = append(missing, d)
		}
	}
	var lines []string
	if len(removed) > 0 {
		lines = append(lines, "Removed: "+joinDates(removed))
	}
	if len(missing) > 0 {
		lines = append(lines, "Not watched: "+joinDates(missing))
	}
	if len(invalid) > 0 {
		lines = append(lines, "Ignored (not a date): "+strings.Join(invalid, ", "))
	}
	lines = append(lines, watchList(t))
	return strings.Join(lines, "\n"), len(removed) > 0
}

func (p *Processor) forget(c domain.Counters, cmd parsed) (string, bool) {
	dates, invalid := dateArgs(cmd.args)
	if len(dates) == 0 {
		return usageWithRejects(cmd.word, "<dates...>", invalid), false
	}
	n := 0
	for _, d := range dates {
		n += c.ResetDate(d)
	}
	reply := fmt.Sprintf("Alert counters reset for %s (%d cleared).", joinDates(dates), n)
	if len(invalid) > 0 {
		reply += "\nIgnored (not a date): " + strings.Join(invalid, ", ")
	}
	return reply, n > 0
}

func usageWithRejects(word, args string, invalid []string) string {
	u := usage(word, args)
	if len(invalid) > 0 {
		u = "Not a date: " + strings.Join(invalid, ", ") + "\n" + u
	}
	return u
}
