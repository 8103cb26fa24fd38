package app

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"slotwatch/internal/commands"
	"slotwatch/internal/domain"
	"slotwatch/internal/metrics"
	"slotwatch/internal/scanner"
	"slotwatch/internal/storage"
	"slotwatch/internal/throttle"
	kit "slotwatch/internal/transport"
	logx "slotwatch/pkg/logx"
)

// PageOpener starts a calendar page for one scan. release frees it.
type PageOpener func(ctx context.Context) (page scanner.Page, release func(), err error)

type Deps struct {
	Messenger kit.Messenger
	Store     storage.Store
	OpenPage  PageOpener
	Metrics   *metrics.Metrics
	Pusher    *metrics.Pusher
	Now       func() time.Time
}

// Runner performs one invocation: commands, prune, scan, filter, notify.
type Runner struct {
	deps Deps
	opts Options
	log  logx.Logger
}

func NewRunner(deps Deps, opts Options, log logx.Logger) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{deps: deps, opts: opts, log: log}
}

func (r *Runner) today() domain.Date {
	return domain.DateOf(r.deps.Now().In(r.opts.Location))
}

// Run executes the pipeline once. Partial progress is never rolled back:
// state persisted by an earlier stage stays persisted when a later stage
// fails. A state that cannot be loaded ends the run before any stage. A
// panic is recovered and returned as an error.
func (r *Runner) Run(ctx context.Context) (rep Report, err error) {
	rep.RunID = ulid.Make().String()
	rep.Started = r.deps.Now()
	log := r.log.With(logx.String("run_id", rep.RunID))

	defer func() {
		if p := recover(); p != nil {
			log.Error("run panicked", logx.Any("panic", p), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("run panicked: %v", p)
		}
		rep.Duration = r.deps.Now().Sub(rep.Started)
		r.finish(ctx, log, rep, err)
	}()

	log.Info("run started", logx.String("today", r.today().String()), logx.Int("days_ahead", r.opts.DaysAhead))

	// Without the stored counters and cursor every save below would replace
	// good state with this run's partial view, so nothing runs.
	st, lerr := r.deps.Store.Load(ctx)
	if lerr != nil {
		rep.PersistErrors++
		return rep, fmt.Errorf("load state: %w", lerr)
	}

	recipients := r.processCommands(ctx, log, &st, &rep)
	r.prune(ctx, log, &st, recipients, &rep)

	slots, err := r.scan(ctx, log, &rep)
	if err != nil {
		return rep, err
	}

	matched := domain.FilterByTargets(slots, st.Targets)
	rep.Matched = len(matched)
	if err := r.notify(ctx, log, matched, &st, recipients, &rep); err != nil {
		return rep, err
	}
	return rep, nil
}

func (r *Runner) stage(name string, start time.Time) {
	r.deps.Metrics.ObserveStage(name, r.deps.Now().Sub(start))
}

func (r *Runner) processCommands(ctx context.Context, log logx.Logger, st *storage.State, rep *Report) []kit.ChatID {
	recipients := kit.MergeRecipients(r.opts.Recipients)
	if r.deps.Messenger == nil {
		rep.Recipients = len(recipients)
		return recipients
	}
	defer r.stage("commands", r.deps.Now())

	opts := r.opts.Commands
	opts.Now = r.deps.Now
	if opts.Location == nil {
		opts.Location = r.opts.Location
	}
	proc := commands.NewProcessor(r.deps.Messenger, r.deps.Store, opts, log)
	out, err := proc.Process(ctx, st)
	if err != nil {
		rep.CommandErrors++
		log.Warn("command processing failed", logx.Err(err))
	}
	rep.Commands = out.Processed
	rep.FastForwarded = out.FastForwarded
	rep.PersistErrors += out.PersistFailures
	rep.SendFailures += out.ReplyFailures

	recipients = kit.MergeRecipients(recipients, out.Recipients)
	rep.Recipients = len(recipients)
	return recipients
}

func (r *Runner) prune(ctx context.Context, log logx.Logger, st *storage.State, recipients []kit.ChatID, rep *Report) {
	removed := st.Targets.Prune(r.today())
	if len(removed) == 0 {
		return
	}
	rep.Pruned = removed
	if err := r.deps.Store.SaveTargets(ctx, st.Targets); err != nil {
		rep.PersistErrors++
		log.Error("persist pruned targets failed", logx.Err(err))
	}
	notice := PruneNotice(removed, st.Targets)
	log.Info("pruned past target dates", logx.Int("removed", len(removed)))
	if r.deps.Messenger == nil {
		return
	}
	for _, to := range recipients {
		if err := r.deps.Messenger.SendMessage(ctx, to, notice); err != nil {
			rep.SendFailures++
			log.Warn("prune notice failed", logx.String("chat_id", to.String()), logx.Err(err))
		}
	}
}

// PruneNotice tells chats which past dates left the watch list.
func PruneNotice(removed []domain.Date, remaining *domain.TargetSet) string {
	ds := make([]string, len(removed))
	for i, d := range removed {
		ds[i] = d.String()
	}
	var b strings.Builder
	b.WriteString("Removed past dates from the watch list: ")
	b.WriteString(strings.Join(ds, ", "))
	if remaining.Len() == 0 {
		b.WriteString("\nWatching: none (all dates in range)")
	} else {
		b.WriteString("\nWatching: " + strings.Join(remaining.Strings(), ", "))
	}
	return b.String()
}

func (r *Runner) scan(ctx context.Context, log logx.Logger, rep *Report) ([]domain.Slot, error) {
	defer r.stage("scan", r.deps.Now())
	if r.deps.OpenPage == nil {
		return nil, fmt.Errorf("no calendar page configured")
	}
	page, release, err := r.deps.OpenPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open calendar page: %w", err)
	}
	if release != nil {
		defer release()
	}

	res, err := scanner.New(page, r.opts.Scan, log).Scan(ctx, r.today(), r.opts.DaysAhead)
	rep.DatesScanned = len(res.Scanned)
	rep.DatesSkipped = len(res.Skipped)
	rep.Retried = res.Retried
	rep.Slots = len(res.Slots)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return res.Slots, nil
}

func (r *Runner) notify(ctx context.Context, log logx.Logger, slots []domain.Slot, st *storage.State, recipients []kit.ChatID, rep *Report) error {
	if r.deps.Messenger == nil {
		return nil
	}
	defer r.stage("notify", r.deps.Now())

	th := throttle.New(r.deps.Messenger, throttle.Options{BuildOptions: r.opts.Notify, Now: r.deps.Now}, log)
	out, err := th.Notify(ctx, slots, st.Counters, recipients)
	rep.Eligible = out.Eligible
	rep.Messages = out.Messages
	rep.Delivered = out.Delivered
	rep.SendFailures += out.SendFailures

	if out.CountersChanged() {
		// A cancelled run still records what it delivered.
		if perr := r.deps.Store.SaveCounters(context.WithoutCancel(ctx), st.Counters); perr != nil {
			rep.PersistErrors++
			log.Error("persist counters failed", logx.Err(perr), logx.Strings("keys", out.Keys))
		}
	}
	if err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

const pushTimeout = 10 * time.Second

func (r *Runner) finish(ctx context.Context, log logx.Logger, rep Report, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m := r.deps.Metrics
	m.ObserveRun(status, rep.Duration, r.deps.Now())
	m.AddCommands(rep.Commands)
	m.AddSkippedDates(rep.DatesSkipped)
	m.AddDelivered(rep.Delivered)
	m.AddSendFailures(rep.SendFailures)
	m.SetSlots(rep.Matched)

	if r.deps.Pusher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if perr := r.deps.Pusher.Push(pctx, m.Gatherer(), map[string]string{"activity": strings.ToLower(r.opts.Activity)}); perr != nil {
			log.Warn("metrics push failed", logx.Err(perr))
		}
	}

	if err != nil {
		log.Error("run failed", append(rep.Fields(), logx.Err(err))...)
		return
	}
	log.Info("run finished", rep.Fields()...)
}
