package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDefaultsValidate(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestParseYAMLThenEnv(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "slotwatch.yaml", `
activity:
  name: Tennis
  days_ahead: 5
filter:
  earliest_hour: 7
  latest_hour: 21
notify:
  granularity: date
`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(map[string]string{
		"EARLIEST_HOUR": "9",
		"WEEKENDS_OK":   "false",
		"TG_CHAT_ID":    "123; -100456",
		"TG_TOKEN":      "  ",
	}))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Activity.Name != "Tennis" || cfg.Activity.DaysAhead != 5 {
		t.Fatalf("file values lost: %+v", cfg.Activity)
	}
	if cfg.Filter.EarliestHour != 9 || cfg.Filter.LatestHour != 21 || cfg.Filter.WeekendsOK {
		t.Fatalf("env overlay wrong: %+v", cfg.Filter)
	}
	if !cfg.Filter.WeekdaysOK {
		t.Fatal("default weekdays_ok lost")
	}
	if len(cfg.Telegram.ChatIDs) != 2 || cfg.Telegram.ChatIDs[1] != -100456 {
		t.Fatalf("chat ids = %v", cfg.Telegram.ChatIDs)
	}
	if cfg.Telegram.Token != "" {
		t.Fatal("blank env var overrode token")
	}
	if cfg.Notify.Granularity != "date" {
		t.Fatalf("granularity = %q", cfg.Notify.Granularity)
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "c.json", `{"activity":{"name":"Padel","colour":"red"}}`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(nil))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "c.json", `{} {}`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(nil))
	if _, err := m.Parse(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		mut  func(c *Config)
		want string
	}{
		{name: "window inverted", mut: func(c *Config) { c.Filter.EarliestHour, c.Filter.LatestHour = 22, 18 }, want: "earliest_hour"},
		{name: "hour range", mut: func(c *Config) { c.Filter.LatestHour = 25 }, want: "0..24"},
		{name: "limit", mut: func(c *Config) { c.Notify.Limit = 0 }, want: "notify.limit"},
		{name: "budget", mut: func(c *Config) { c.Notify.MaxMessageChars = 50 }, want: "max_message_chars"},
		{name: "granularity", mut: func(c *Config) { c.Notify.Granularity = "week" }, want: "granularity"},
		{name: "driver", mut: func(c *Config) { c.State.Driver = "etcd" }, want: "state.driver"},
		{name: "url", mut: func(c *Config) { c.Activity.CalendarURL = "https://example.test/cal" }, want: "{date}"},
		{name: "duration", mut: func(c *Config) { c.Scanner.ReadyTimeout = "soon" }, want: "scanner.ready_timeout"},
		{name: "horizon", mut: func(c *Config) { c.Activity.DaysAhead = -1 }, want: "days_ahead"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := Default()
			tt.mut(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	t.Parallel()
	c := Default()
	err := ApplyEnv(c, envMap(map[string]string{"DAYS_AHEAD": "two", "WEEKDAYS_OK": "maybe", "NOTIFY_LIMIT": "3"}))
	if err == nil || !strings.Contains(err.Error(), "DAYS_AHEAD") || !strings.Contains(err.Error(), "WEEKDAYS_OK") {
		t.Fatalf("err = %v", err)
	}
	if c.Notify.Limit != 3 {
		t.Fatal("valid value skipped after an invalid one")
	}
}

func TestLoadDotEnvSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, ".env")
	if err := os.WriteFile(p, []byte("SLOTWATCH_TEST_DOTENV=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SLOTWATCH_TEST_DOTENV", "")
	os.Unsetenv("SLOTWATCH_TEST_DOTENV")

	loaded, err := LoadDotEnv(filepath.Join(dir, ".env.local"), p)
	if err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != p {
		t.Fatalf("loaded = %v", loaded)
	}
	if got := os.Getenv("SLOTWATCH_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("env = %q", got)
	}
}

func TestDurations(t *testing.T) {
	t.Parallel()
	s := ScannerConfig{ReadyTimeout: "3s"}
	ready, poll, nav := s.Durations()
	if ready != 3*time.Second || poll != DefaultPollInterval || nav != DefaultNavigationTimeout {
		t.Fatalf("durations = %v %v %v", ready, poll, nav)
	}
	if _, err := durationField("x", "-1s", 0); err == nil {
		t.Fatal("negative duration accepted")
	}
}

func TestReloadKeepsPreviousOnInvalid(t *testing.T) {
	t.Parallel()
	p := writeFile(t, "c.json", `{"notify":{"limit":2}}`)
	m := NewConfigManager(p)
	m.SetLookup(envMap(nil))
	first, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub, stop := m.Subscribe()
	defer stop()

	if m.reload() {
		t.Fatal("unchanged file published")
	}
	if err := os.WriteFile(p, []byte(`{"notify":{"limit":0}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if m.reload() || m.Get() != first {
		t.Fatal("invalid config replaced the previous one")
	}
	if err := os.WriteFile(p, []byte(`{"notify":{"limit":4}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if !m.reload() {
		t.Fatal("valid change not published")
	}
	got := <-sub
	if got.Notify.Limit != 4 {
		t.Fatalf("published limit = %d", got.Notify.Limit)
	}
	changed, _ := SummarizeConfigChange(first, got)
	if len(changed) != 1 || changed[0] != "notify" {
		t.Fatalf("changed = %v", changed)
	}
}
