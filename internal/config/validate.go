package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if strings.TrimSpace(c.Activity.Name) == "" {
		add("activity.name: required")
	}
	if !strings.Contains(c.Activity.CalendarURL, "{date}") {
		add("activity.calendar_url: must contain {date}")
	} else if u, err := url.Parse(strings.ReplaceAll(c.Activity.CalendarURL, "{date}", "2000-01-01")); err != nil || u.Scheme == "" || u.Host == "" {
		add("activity.calendar_url: not an absolute URL")
	}
	if c.Activity.DaysAhead < 0 {
		add("activity.days_ahead: must be >= 0")
	}
	if _, err := c.Activity.Location(); err != nil {
		add("activity.timezone: %v", err)
	}

	f := c.Filter
	if f.EarliestHour < 0 || f.EarliestHour > 24 || f.LatestHour < 0 || f.LatestHour > 24 {
		add("filter: hours must be within 0..24")
	} else if f.EarliestHour >= f.LatestHour {
		add("filter: earliest_hour (%d) must be < latest_hour (%d)", f.EarliestHour, f.LatestHour)
	}

	for path, raw := range map[string]string{
		"scanner.ready_timeout":      c.Scanner.ReadyTimeout,
		"scanner.poll_interval":      c.Scanner.PollInterval,
		"scanner.navigation_timeout": c.Scanner.NavigationTimeout,
		"telegram.request_timeout":   c.Telegram.RequestTimeout,
		"state.busy_timeout":         c.State.BusyTimeout,
		"schedule.run_timeout":       c.Schedule.RunTimeout,
	} {
		if _, err := durationField(path, raw, 0); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Scanner.AncestorDepth < 0 {
		add("scanner.ancestor_depth: must be >= 0")
	}

	if c.Notify.Limit < 1 {
		add("notify.limit: must be >= 1")
	}
	switch c.Notify.Granularity {
	case "slot", "date":
	default:
		add("notify.granularity: unknown %q (want slot or date)", c.Notify.Granularity)
	}
	if c.Notify.MaxMessageChars < MinMessageChars {
		add("notify.max_message_chars: must be >= %d", MinMessageChars)
	}
	if c.Notify.MaxLinesPerDate < 1 {
		add("notify.max_lines_per_date: must be >= 1")
	}

	switch strings.ToLower(c.State.Driver) {
	case "file", "sqlite", "memory":
		if c.State.Driver != "memory" && strings.TrimSpace(c.State.Path) == "" {
			add("state.path: required for driver %q", c.State.Driver)
		}
	case "redis":
		if strings.TrimSpace(c.State.Redis.Addr) == "" {
			add("state.redis.addr: required for driver redis")
		}
	default:
		add("state.driver: unknown %q", c.State.Driver)
	}

	if c.Telegram.RatePerSec < 0 || c.Telegram.UpdatesLimit < 0 {
		add("telegram: rate_per_sec and updates_limit must be >= 0")
	}
	if c.Logging.Chat.Enabled && c.Logging.Chat.ChatID == 0 {
		add("logging.chat.chat_id: required when chat logging is enabled")
	}
	if c.Metrics.PushgatewayURL != "" {
		if u, err := url.Parse(c.Metrics.PushgatewayURL); err != nil || u.Scheme == "" {
			add("metrics.pushgateway_url: not an absolute URL")
		}
	}

	return errors.Join(errs...)
}
