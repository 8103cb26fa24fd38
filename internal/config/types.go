package config

import (
	"time"
)

// Config is the full runtime configuration. It is treated as immutable once
// loaded; components receive copies of their own section.
//
// All durations are Go duration strings (e.g. "250ms", "12s", "1m").
type Config struct {
	Activity ActivityConfig `json:"activity"`
	Filter   FilterConfig   `json:"filter"`
	Scanner  ScannerConfig  `json:"scanner"`
	Browser  BrowserConfig  `json:"browser"`
	Telegram TelegramConfig `json:"telegram"`
	Notify   NotifyConfig   `json:"notify"`
	State    StateConfig    `json:"state"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
	Schedule ScheduleConfig `json:"schedule"`
}

// ActivityConfig describes the one activity at the one venue being watched.
//
// CalendarURL must contain "{date}", replaced by the ISO date of each scanned day.
type ActivityConfig struct {
	Name        string `json:"name"`
	CalendarURL string `json:"calendar_url"`
	DaysAhead   int    `json:"days_ahead"`
	Timezone    string `json:"timezone"`
	// MatchName keeps only booking controls whose card mentions Name, for
	// calendars that list every activity of a venue.
	MatchName bool `json:"match_name"`
}

// FilterConfig is the hour window [earliest, latest) plus weekday/weekend flags.
type FilterConfig struct {
	EarliestHour int  `json:"earliest_hour"`
	LatestHour   int  `json:"latest_hour"`
	WeekdaysOK   bool `json:"weekdays_ok"`
	WeekendsOK   bool `json:"weekends_ok"`
}

type ScannerConfig struct {
	ReadyTimeout      string `json:"ready_timeout"`
	PollInterval      string `json:"poll_interval"`
	NavigationTimeout string `json:"navigation_timeout"`
	AncestorDepth     int    `json:"ancestor_depth"`
	// RetryOnEmpty reloads a date once when the first parse finds nothing
	// and the page shows no explicit unavailable marker.
	RetryOnEmpty bool `json:"retry_on_empty"`
}

// BrowserConfig selects how chromedp reaches a browser.
//
// RemoteURL (a devtools websocket URL) wins over launching a local ExecPath.
type BrowserConfig struct {
	RemoteURL string `json:"remote_url,omitempty"`
	ExecPath  string `json:"exec_path,omitempty"`
	Headless  bool   `json:"headless"`
	UserAgent string `json:"user_agent,omitempty"`
	// DismissBanners clicks common cookie consent buttons after navigation.
	DismissBanners bool `json:"dismiss_banners"`
}

type TelegramConfig struct {
	Token       string  `json:"token"`
	ChatIDs     []int64 `json:"chat_ids"`
	BotUsername string  `json:"bot_username,omitempty"`
	// RatePerSec paces outbound sends.
	RatePerSec int `json:"rate_per_sec"`
	// RequestTimeout bounds each Bot API call.
	RequestTimeout string `json:"request_timeout"`
	// UpdatesLimit caps updates fetched per invocation.
	UpdatesLimit int `json:"updates_limit"`
}

type NotifyConfig struct {
	Limit           int    `json:"limit"`
	Granularity     string `json:"granularity"`
	MaxMessageChars int    `json:"max_message_chars"`
	MaxLinesPerDate int    `json:"max_lines_per_date"`
}

// StateConfig controls the durable state store.
//
// Example:
//
//	"state": { "driver": "sqlite", "path": "./state/slotwatch.db" }
type StateConfig struct {
	Driver string      `json:"driver"`
	Path   string      `json:"path"`
	Redis  RedisConfig `json:"redis"`
	// BusyTimeout is a Go duration string (sqlite).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

type MetricsConfig struct {
	PushgatewayURL string `json:"pushgateway_url,omitempty"`
	Job            string `json:"job"`
}

// ScheduleConfig drives the long-running "schedule" command.
//
// Spec accepts a cron expression, "@every <dur>", "every <dur>" or "HH:MM".
type ScheduleConfig struct {
	Spec        string `json:"spec"`
	RunTimeout  string `json:"run_timeout"`
	WatchConfig bool   `json:"watch_config"`
}

// Durations returns the scanner timings with defaults applied.
func (s ScannerConfig) Durations() (ready, poll, nav time.Duration) {
	ready = durationOr(s.ReadyTimeout, DefaultReadyTimeout)
	poll = durationOr(s.PollInterval, DefaultPollInterval)
	nav = durationOr(s.NavigationTimeout, DefaultNavigationTimeout)
	return ready, poll, nav
}

func (t TelegramConfig) Timeout() time.Duration {
	return durationOr(t.RequestTimeout, DefaultRequestTimeout)
}

func (s ScheduleConfig) Timeout() time.Duration {
	return durationOr(s.RunTimeout, DefaultRunTimeout)
}

func (s StateConfig) Busy() time.Duration {
	return durationOr(s.BusyTimeout, DefaultBusyTimeout)
}

// Location resolves the configured timezone; "Local" or empty means the
// process timezone.
func (a ActivityConfig) Location() (*time.Location, error) {
	switch a.Timezone {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

// Secrets lists config values that must never reach logs.
func (c *Config) Secrets() []string {
	out := make([]string, 0, 2)
	if c.Telegram.Token != "" {
		out = append(out, c.Telegram.Token)
	}
	if c.State.Redis.Password != "" {
		out = append(out, c.State.Redis.Password)
	}
	return out
}

func durationOr(raw string, def time.Duration) time.Duration {
	d, err := durationField("", raw, def)
	if err != nil {
		return def
	}
	return d
}
