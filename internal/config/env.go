package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"slotwatch/internal/transport"
)

// DotEnvFiles are tried in order; missing files are skipped.
var DotEnvFiles = []string{".env.local", ".env"}

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set are never overridden.
func LoadDotEnv(paths ...string) ([]string, error) {
	if len(paths) == 0 {
		paths = DotEnvFiles
	}
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Unset or blank variables
// leave the current value alone.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	var errs []error
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	str := func(k string, dst *string) {
		if v, ok := get(k); ok {
			*dst = v
		}
	}
	num := func(k string, dst *int) {
		if v, ok := get(k); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", k, v))
				return
			}
			*dst = n
		}
	}
	flag := func(k string, dst *bool) {
		if v, ok := get(k); ok {
			b, err := strconv.ParseBool(strings.ToLower(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", k, v))
				return
			}
			*dst = b
		}
	}

	str("ACTIVITY_NAME", &cfg.Activity.Name)
	str("CALENDAR_URL", &cfg.Activity.CalendarURL)
	str("TIMEZONE", &cfg.Activity.Timezone)
	num("DAYS_AHEAD", &cfg.Activity.DaysAhead)

	num("EARLIEST_HOUR", &cfg.Filter.EarliestHour)
	num("LATEST_HOUR", &cfg.Filter.LatestHour)
	flag("WEEKENDS_OK", &cfg.Filter.WeekendsOK)
	flag("WEEKDAYS_OK", &cfg.Filter.WeekdaysOK)
	flag("MATCH_ACTIVITY", &cfg.Activity.MatchName)

	str("TG_TOKEN", &cfg.Telegram.Token)
	str("BOT_USERNAME", &cfg.Telegram.BotUsername)
	if v, ok := get("TG_CHAT_ID"); ok {
		ids, err := transport.ParseChatIDs(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("TG_CHAT_ID: %w", err))
		} else {
			cfg.Telegram.ChatIDs = cfg.Telegram.ChatIDs[:0]
			for _, id := range ids {
				cfg.Telegram.ChatIDs = append(cfg.Telegram.ChatIDs, int64(id))
			}
		}
	}

	num("NOTIFY_LIMIT", &cfg.Notify.Limit)
	str("NOTIFY_GRANULARITY", &cfg.Notify.Granularity)
	num("MAX_MESSAGE_CHARS", &cfg.Notify.MaxMessageChars)
	num("MAX_LINES_PER_DATE", &cfg.Notify.MaxLinesPerDate)

	str("STATE_DRIVER", &cfg.State.Driver)
	str("STATE_PATH", &cfg.State.Path)
	str("REDIS_ADDR", &cfg.State.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.State.Redis.Password)
	num("REDIS_DB", &cfg.State.Redis.DB)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("PUSHGATEWAY_URL", &cfg.Metrics.PushgatewayURL)
	str("SCHEDULE", &cfg.Schedule.Spec)
	str("BROWSER_REMOTE_URL", &cfg.Browser.RemoteURL)
	str("BROWSER_EXEC_PATH", &cfg.Browser.ExecPath)

	cfg.State.Driver = strings.ToLower(cfg.State.Driver)
	cfg.Notify.Granularity = strings.ToLower(cfg.Notify.Granularity)
	return errors.Join(errs...)
}
