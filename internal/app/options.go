package app

import (
	"fmt"
	"time"

	"slotwatch/internal/browser"
	"slotwatch/internal/commands"
	"slotwatch/internal/config"
	"slotwatch/internal/domain"
	"slotwatch/internal/scanner"
	"slotwatch/internal/storage"
	"slotwatch/internal/throttle"
	kit "slotwatch/internal/transport"
	"slotwatch/internal/transport/telegram"
	logx "slotwatch/pkg/logx"
)

// Options is everything one run needs from configuration.
type Options struct {
	Activity   string
	DaysAhead  int
	Location   *time.Location
	Recipients []kit.ChatID

	Scan     scanner.Options
	Commands commands.Options
	Notify   throttle.BuildOptions
}

// OptionsFromConfig maps a validated config onto per-component options.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Activity.Location()
	if err != nil {
		return Options{}, fmt.Errorf("activity.timezone: %w", err)
	}
	key, err := domain.KeyFuncFor(domain.Granularity(cfg.Notify.Granularity))
	if err != nil {
		return Options{}, err
	}
	recipients := make([]kit.ChatID, 0, len(cfg.Telegram.ChatIDs))
	for _, id := range cfg.Telegram.ChatIDs {
		recipients = append(recipients, kit.ChatID(id))
	}
	ready, poll, nav := cfg.Scanner.Durations()
	filter := domain.Filter{
		EarliestHour: cfg.Filter.EarliestHour,
		LatestHour:   cfg.Filter.LatestHour,
		WeekdaysOK:   cfg.Filter.WeekdaysOK,
		WeekendsOK:   cfg.Filter.WeekendsOK,
	}

	return Options{
		Activity:   cfg.Activity.Name,
		DaysAhead:  cfg.Activity.DaysAhead,
		Location:   loc,
		Recipients: kit.MergeRecipients(recipients),
		Scan: scanner.Options{
			Activity:          cfg.Activity.Name,
			MatchActivity:     cfg.Activity.MatchName,
			CalendarURL:       cfg.Activity.CalendarURL,
			Filter:            filter,
			ReadyTimeout:      ready,
			PollInterval:      poll,
			NavigationTimeout: nav,
			AncestorDepth:     cfg.Scanner.AncestorDepth,
			RetryOnEmpty:      cfg.Scanner.RetryOnEmpty,
		},
		Commands: commands.Options{
			BotUsername: cfg.Telegram.BotUsername,
			Limit:       cfg.Notify.Limit,
			Granularity: domain.Granularity(cfg.Notify.Granularity),
			Location:    loc,
		},
		Notify: throttle.BuildOptions{
			Activity:        cfg.Activity.Name,
			Limit:           cfg.Notify.Limit,
			Key:             key,
			MaxChars:        cfg.Notify.MaxMessageChars,
			MaxLinesPerDate: cfg.Notify.MaxLinesPerDate,
		},
	}, nil
}

func logConfig(cfg config.LoggingConfig) logx.Config {
	return logx.Config{
		Level:   cfg.Level,
		Console: cfg.Console,
		File:    logx.FileConfig{Enabled: cfg.File.Enabled, Path: cfg.File.Path},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Chat.Enabled,
			ChatID:     cfg.Chat.ChatID,
			MinLevel:   cfg.Chat.MinLevel,
			RatePerSec: cfg.Chat.RatePerSec,
		},
	}
}

func storageConfig(cfg config.StateConfig) storage.Config {
	return storage.Config{
		Driver:      cfg.Driver,
		Path:        cfg.Path,
		BusyTimeout: cfg.Busy(),
		Redis: storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
	}
}

func telegramConfig(cfg config.TelegramConfig) telegram.Config {
	return telegram.Config{
		Token:        cfg.Token,
		RatePerSec:   cfg.RatePerSec,
		Timeout:      cfg.Timeout(),
		UpdatesLimit: cfg.UpdatesLimit,
	}
}

func browserConfig(cfg config.BrowserConfig) browser.Config {
	return browser.Config{
		RemoteURL:      cfg.RemoteURL,
		ExecPath:       cfg.ExecPath,
		Headless:       cfg.Headless,
		UserAgent:      cfg.UserAgent,
		DismissBanners: cfg.DismissBanners,
	}
}

// menuCommands publishes the chat vocabulary as the client command menu.
func menuCommands() []telegram.MenuCommand {
	vocab := commands.Vocabulary()
	out := make([]telegram.MenuCommand, 0, len(vocab))
	for _, c := range vocab {
		desc := c.Summary
		if c.Args != "" {
			desc = c.Args + " - " + desc
		}
		out = append(out, telegram.MenuCommand{Command: c.Name, Description: desc})
	}
	return out
}
