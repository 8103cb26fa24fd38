package app

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"slotwatch/internal/config"
	logx "slotwatch/pkg/logx"
)

// ScheduleKind tells a cron expression from a fixed interval.
type ScheduleKind int

const (
	ScheduleCron ScheduleKind = iota
	ScheduleInterval
)

// ParsedSchedule is a normalized schedule string.
//
// Supported forms:
//   - cron: "*/10 * * * *", "0 */2 * * * *" (with seconds), "@hourly", "@every 10m"
//   - Go duration: "10m", "1h30m"
//   - HH:MM interval: "00:10" (ten minutes), "02:30"
//   - "every 10m" and "every:10m" for an explicit interval, "cron:" for an explicit expression
type ParsedSchedule struct {
	Kind  ScheduleKind
	Cron  string
	Every time.Duration
}

// Expr is the schedule as a cron-parser expression.
func (p ParsedSchedule) Expr() string {
	if p.Kind == ScheduleInterval {
		return "@every " + p.Every.String()
	}
	return p.Cron
}

var (
	reHHMM     = regexp.MustCompile(`^(\d{1,3}):(\d{2})$`)
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

func ParseSchedule(raw string) (ParsedSchedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSchedule{}, fmt.Errorf("schedule required")
	}
	low := strings.ToLower(s)

	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	case strings.HasPrefix(low, "every "):
		return parseInterval(s[len("every "):])
	case strings.HasPrefix(s, "@") || strings.ContainsAny(s, " \t"):
		return parseCron(s)
	}
	return parseInterval(s)
}

func parseCron(expr string) (ParsedSchedule, error) {
	if expr == "" {
		return ParsedSchedule{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return ParsedSchedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return ParsedSchedule{Kind: ScheduleCron, Cron: expr}, nil
}

func parseInterval(v string) (ParsedSchedule, error) {
	v = strings.TrimSpace(v)
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return ParsedSchedule{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		d, err = time.ParseDuration(v)
		if err != nil {
			return ParsedSchedule{}, fmt.Errorf(
				"invalid schedule %q (use cron like '*/10 * * * *', HH:MM like '00:10', or duration like '10m')", v)
		}
	}
	if d <= 0 {
		return ParsedSchedule{}, fmt.Errorf("interval must be > 0")
	}
	return ParsedSchedule{Kind: ScheduleInterval, Every: d}, nil
}

// cronLogger routes robfig/cron's own logging into logx.
type cronLogger struct{ log logx.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	if msg == "skip" {
		c.log.Warn("previous run still in progress; tick skipped", kvFields(kv)...)
		return
	}
	c.log.Debug("cron "+msg, kvFields(kv)...)
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error("cron "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}

const stopGrace = 30 * time.Second

// Schedule runs RunOnce on every tick until ctx is done. Ticks never overlap:
// a tick that fires while a run is in progress is skipped. With
// schedule.watch_config set, config file edits apply from the next tick.
func (a *App) Schedule(ctx context.Context) error {
	cfg, _ := a.current()
	loc, err := cfg.Activity.Location()
	if err != nil {
		return err
	}
	spec, err := ParseSchedule(cfg.Schedule.Spec)
	if err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}

	log := a.log.With(logx.String("comp", "schedule"))
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	job := cron.FuncJob(func() { a.tick(ctx) })
	id, err := c.AddJob(spec.Expr(), job)
	if err != nil {
		return fmt.Errorf("schedule.spec: %w", err)
	}

	if a.tg != nil {
		if err := a.tg.UpdateMenuCommands(ctx, menuCommands()); err != nil {
			log.Warn("menu commands not updated", logx.Err(err))
		}
	}

	var updates <-chan *config.Config
	if cfg.Schedule.WatchConfig && a.cfgm.Path() != "" {
		var stop func()
		updates, stop = a.cfgm.Subscribe()
		defer stop()
		go func() {
			if err := a.cfgm.Watch(ctx); err != nil {
				log.Error("config watch stopped", logx.Err(err))
			}
		}()
	}

	c.Start()
	log.Info("scheduler started", logx.String("spec", spec.Expr()), logx.String("tz", loc.String()))
	notify(log, daemon.SdNotifyReady)

	var watchdog <-chan time.Time
	if iv, err := daemon.SdWatchdogEnabled(false); err == nil && iv > 0 {
		t := time.NewTicker(iv / 2)
		defer t.Stop()
		watchdog = t.C
	}

	for {
		select {
		case <-ctx.Done():
			notify(log, daemon.SdNotifyStopping)
			stopCtx := c.Stop()
			select {
			case <-stopCtx.Done():
			case <-time.After(stopGrace):
				log.Warn("run still in progress at shutdown")
			}
			log.Info("scheduler stopped")
			return nil

		case <-watchdog:
			notify(log, daemon.SdNotifyWatchdog)

		case next, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			old, _ := a.current()
			changed, fields := config.SummarizeConfigChange(old, next)
			if err := a.apply(next); err != nil {
				log.Error("config reload rejected", logx.Err(err))
				continue
			}
			a.logs.Apply(logConfig(next.Logging))
			log.Info("config applied", append(fields, logx.Strings("changed", changed))...)

			if next.Schedule.Spec != old.Schedule.Spec {
				ns, err := ParseSchedule(next.Schedule.Spec)
				if err != nil {
					log.Error("schedule.spec unchanged", logx.Err(err))
					continue
				}
				nid, err := c.AddJob(ns.Expr(), job)
				if err != nil {
					log.Error("schedule.spec unchanged", logx.Err(err))
					continue
				}
				c.Remove(id)
				id = nid
				log.Info("schedule changed", logx.String("spec", ns.Expr()))
			}
		}
	}
}

func (a *App) tick(ctx context.Context) {
	cfg, _ := a.current()
	runCtx, cancel := context.WithTimeout(ctx, cfg.Schedule.Timeout())
	defer cancel()
	// Run logs its own result.
	_, _ = a.RunOnce(runCtx)
}

func notify(log logx.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Debug("sd_notify failed", logx.Err(err))
	}
}
