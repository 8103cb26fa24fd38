package config

import "time"

const (
	DefaultActivity          = "Padel"
	DefaultCalendarURL       = "https://pfpleisure-pochub.org/LhWeb/en/Public/Bookings?date={date}"
	DefaultReadyTimeout      = 12 * time.Second
	DefaultPollInterval      = 250 * time.Millisecond
	DefaultNavigationTimeout = 30 * time.Second
	DefaultRequestTimeout    = 8 * time.Second
	DefaultRunTimeout        = 5 * time.Minute
	DefaultBusyTimeout       = 5 * time.Second
	DefaultStatePath         = "./state"
	DefaultMaxMessageChars   = 3500
	MinMessageChars          = 200
)

// Default returns the built-in configuration every other source overlays.
func Default() *Config {
	return &Config{
		Activity: ActivityConfig{
			Name:        DefaultActivity,
			CalendarURL: DefaultCalendarURL,
			DaysAhead:   2,
			Timezone:    "Local",
			MatchName:   true,
		},
		Filter: FilterConfig{
			EarliestHour: 18,
			LatestHour:   22,
			WeekdaysOK:   true,
			WeekendsOK:   true,
		},
		Scanner: ScannerConfig{
			ReadyTimeout:      DefaultReadyTimeout.String(),
			PollInterval:      DefaultPollInterval.String(),
			NavigationTimeout: DefaultNavigationTimeout.String(),
			AncestorDepth:     6,
			RetryOnEmpty:      true,
		},
		Browser: BrowserConfig{
			Headless:       true,
			DismissBanners: true,
		},
		Telegram: TelegramConfig{
			RatePerSec:     20,
			RequestTimeout: DefaultRequestTimeout.String(),
			UpdatesLimit:   100,
		},
		Notify: NotifyConfig{
			Limit:           1,
			Granularity:     "slot",
			MaxMessageChars: DefaultMaxMessageChars,
			MaxLinesPerDate: 20,
		},
		State: StateConfig{
			Driver: "file",
			Path:   DefaultStatePath,
			Redis:  RedisConfig{Addr: "127.0.0.1:6379", Prefix: "slotwatch:"},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Chat:    LoggingChat{MinLevel: "error", RatePerSec: 1},
		},
		Metrics: MetricsConfig{Job: "slotwatch"},
		Schedule: ScheduleConfig{
			Spec:       "@every 10m",
			RunTimeout: DefaultRunTimeout.String(),
		},
	}
}
