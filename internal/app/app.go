package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"slotwatch/internal/browser"
	"slotwatch/internal/config"
	"slotwatch/internal/metrics"
	"slotwatch/internal/scanner"
	"slotwatch/internal/storage"
	kit "slotwatch/internal/transport"
	"slotwatch/internal/transport/telegram"
	logx "slotwatch/pkg/logx"
)

// Settings are process-level switches that do not live in the config file.
type Settings struct {
	// DryRun keeps state in memory and prints alerts to Out instead of
	// sending them. Inbound commands are not read.
	DryRun bool
	Out    io.Writer
}

// dryRunChat stands in for the recipient list when none is configured.
const dryRunChat kit.ChatID = -1

type App struct {
	cfgm *config.ConfigManager
	set  Settings

	log  logx.Logger
	logs *logx.Service

	store storage.Store
	msgr  kit.Messenger
	tg    *telegram.Adapter

	metrics *metrics.Metrics
	pusher  *metrics.Pusher

	mu     sync.Mutex
	cfg    *config.Config
	runner *Runner
}

// New loads the config through cfgm and wires every component.
func New(ctx context.Context, cfgm *config.ConfigManager, set Settings) (*App, error) {
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	// Bootstrap logging with the chat sink off: the sink needs the transport,
	// which needs a logger first.
	bootCfg := logConfig(cfg.Logging)
	bootCfg.Chat.Enabled = false
	logs, log := logx.New(bootCfg, nil, cfg.Secrets()...)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{
		cfgm:    cfgm,
		set:     set,
		log:     log.With(logx.String("comp", "app")),
		logs:    logs,
		metrics: metrics.New(),
		cfg:     cfg,
	}

	if set.DryRun {
		out := set.Out
		if out == nil {
			out = logx.Stdout()
		}
		a.msgr = NewPrintMessenger(out)
		a.store = storage.NewMemory()
		a.log.Info("dry run: state in memory, alerts printed")
	} else {
		tg, err := telegram.New(telegramConfig(cfg.Telegram), log)
		if err != nil {
			_ = logs.Close(ctx)
			return nil, err
		}
		a.tg, a.msgr = tg, tg
		logs.SetSender(tg)
		logs.Apply(logConfig(cfg.Logging))

		st, err := storage.Open(ctx, storageConfig(cfg.State), log)
		if err != nil {
			_ = logs.Close(ctx)
			return nil, err
		}
		a.store = st
		a.log.Info("state store opened", logx.String("driver", cfg.State.Driver))
	}

	if url := cfg.Metrics.PushgatewayURL; url != "" {
		a.pusher = metrics.NewPusher(url, cfg.Metrics.Job, 0)
	}

	if err := a.apply(cfg); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}
	return a, nil
}

// apply rebuilds the runner for cfg. Store and transport are kept; changing
// them needs a restart.
func (a *App) apply(cfg *config.Config) error {
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	if a.set.DryRun && len(opts.Recipients) == 0 {
		opts.Recipients = []kit.ChatID{dryRunChat}
	}
	bcfg := browserConfig(cfg.Browser)
	deps := Deps{
		Messenger: a.msgr,
		Store:     a.store,
		OpenPage:  browserOpener(bcfg, a.log),
		Metrics:   a.metrics,
		Pusher:    a.pusher,
	}
	r := NewRunner(deps, opts, a.log.With(logx.String("comp", "run")))

	a.mu.Lock()
	a.cfg = cfg
	a.runner = r
	a.mu.Unlock()
	return nil
}

func browserOpener(cfg browser.Config, log logx.Logger) PageOpener {
	return func(ctx context.Context) (scanner.Page, func(), error) {
		p, err := browser.Open(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	}
}

func (a *App) current() (*config.Config, *Runner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg, a.runner
}

// Logger is the app's root logger.
func (a *App) Logger() logx.Logger { return a.log }

// Secrets are the configured values that must never be printed.
func (a *App) Secrets() []string {
	cfg, _ := a.current()
	return cfg.Secrets()
}

// RunOnce performs a single invocation.
func (a *App) RunOnce(ctx context.Context) (Report, error) {
	_, r := a.current()
	return r.Run(ctx)
}

// State reads the durable state without changing it.
func (a *App) State(ctx context.Context) (storage.State, error) {
	return a.store.Load(ctx)
}

// Close releases the store and flushes the log sinks.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close state store: %w", err))
		}
	}
	if a.logs != nil {
		if err := a.logs.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
