package config

import (
	"reflect"

	logx "slotwatch/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections plus safe
// structured attrs for logging. Secrets (bot token, redis password) are never
// included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Activity != newCfg.Activity {
		changed = append(changed, "activity")
		attrs = append(attrs,
			logx.String("activity.name", newCfg.Activity.Name),
			logx.Int("activity.days_ahead", newCfg.Activity.DaysAhead),
		)
	}
	if oldCfg.Filter != newCfg.Filter {
		changed = append(changed, "filter")
		attrs = append(attrs,
			logx.Int("filter.earliest_hour", newCfg.Filter.EarliestHour),
			logx.Int("filter.latest_hour", newCfg.Filter.LatestHour),
			logx.Bool("filter.weekdays_ok", newCfg.Filter.WeekdaysOK),
			logx.Bool("filter.weekends_ok", newCfg.Filter.WeekendsOK),
		)
	}
	if oldCfg.Scanner != newCfg.Scanner {
		changed = append(changed, "scanner")
	}
	if oldCfg.Browser != newCfg.Browser {
		changed = append(changed, "browser")
	}

	// Telegram (never log token)
	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		!reflect.DeepEqual(oldCfg.Telegram.ChatIDs, newCfg.Telegram.ChatIDs) ||
		oldCfg.Telegram.BotUsername != newCfg.Telegram.BotUsername ||
		oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec ||
		oldCfg.Telegram.RequestTimeout != newCfg.Telegram.RequestTimeout ||
		oldCfg.Telegram.UpdatesLimit != newCfg.Telegram.UpdatesLimit {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.chat_count", len(newCfg.Telegram.ChatIDs)),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
		)
	}
	if oldCfg.Notify != newCfg.Notify {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Int("notify.limit", newCfg.Notify.Limit),
			logx.String("notify.granularity", newCfg.Notify.Granularity),
		)
	}
	if oldCfg.State != newCfg.State {
		changed = append(changed, "state")
		attrs = append(attrs, logx.String("state.driver", newCfg.State.Driver))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs, logx.String("logging.level", newCfg.Logging.Level))
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule.spec", newCfg.Schedule.Spec))
	}
	return changed, attrs
}
