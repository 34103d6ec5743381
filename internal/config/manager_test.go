package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  access_token: "tok"
  rate_per_sec: 3
data:
  dir: /srv/fbads
  first_date: "2020-01-01"
  redownload_window: 14
  target_accounts: ["100", "200"]
downloader:
  workers: 4
  retry_max: 3
  retry_base: 30s
logging:
  level: debug
  console: true
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.API.AccessToken != "tok" || cfg.API.RatePerSec != 3 {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Data.Dir != "/srv/fbads" || cfg.Data.RedownloadWindow != 14 {
		t.Errorf("data = %+v", cfg.Data)
	}
	if len(cfg.Data.TargetAccounts) != 2 {
		t.Errorf("target_accounts = %v", cfg.Data.TargetAccounts)
	}
	if cfg.Downloader.Workers != 4 || cfg.Downloader.RetryMax != 3 || cfg.Downloader.RetryBase != "30s" {
		t.Errorf("downloader = %+v", cfg.Downloader)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  access_token: "tok"
  acess_token_typo: "oops"
`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("Parse accepted an unknown field")
	}
}

func TestParseMissingFileUsesOverrides(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	m.SetOverrides(func(c *Config) {
		c.API.AccessToken = "flag-token"
		c.Downloader.Workers = 2
	})

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.API.AccessToken != "flag-token" || cfg.Downloader.Workers != 2 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Defaults fill the rest.
	if cfg.Data.Dir != "/tmp/facebook_ads" || cfg.Data.FirstDate != "2015-01-01" || cfg.Data.RedownloadWindow != 28 {
		t.Fatalf("defaults not applied: %+v", cfg.Data)
	}
}

func TestParseMissingFileWithoutTokenFails(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := m.Parse(); err == nil || !strings.Contains(err.Error(), "access_token") {
		t.Fatalf("Parse = %v, want access_token error", err)
	}
}

func TestOverridesWinOverFile(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  access_token: "file-token"
downloader:
  workers: 4
`)
	m := NewManager(path)
	m.SetOverrides(func(c *Config) { c.Downloader.Workers = 8 })

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Downloader.Workers != 8 {
		t.Fatalf("workers = %d, want the flag value 8", cfg.Downloader.Workers)
	}
	if cfg.API.AccessToken != "file-token" {
		t.Fatalf("access_token = %q", cfg.API.AccessToken)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := &Config{}
		c.API.AccessToken = "tok"
		c.ApplyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no token", func(c *Config) { c.API.AccessToken = " " }, "access_token"},
		{"bad first date", func(c *Config) { c.Data.FirstDate = "01.01.2015" }, "first_date"},
		{"bad retry base", func(c *Config) { c.Downloader.RetryBase = "soon" }, "retry_base"},
		{"negative timeout", func(c *Config) { c.API.RequestTimeout = "-5s" }, "request_timeout"},
		{"telegram without chat", func(c *Config) {
			c.Telegram = &TelegramConfig{Enabled: true, Token: "t"}
		}, "chat_id"},
		{"telegram disabled needs nothing", func(c *Config) {
			c.Telegram = &TelegramConfig{Enabled: false}
		}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want error mentioning %q", err, tc.wantErr)
			}
		})
	}
}

func TestApplyDefaultsDaemonSchedule(t *testing.T) {
	c := &Config{Daemon: &DaemonConfig{Enabled: true}}
	c.ApplyDefaults()
	if c.Daemon.Schedule != "0 5 * * *" {
		t.Fatalf("schedule = %q", c.Daemon.Schedule)
	}
}

func TestParseDurationField(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"60s", time.Minute, false},
		{"2m", 2 * time.Minute, false},
		{"later", 0, true},
		{"-1s", 0, true},
	}
	for _, tc := range tests {
		got, err := ParseDurationField("x", tc.raw)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseDurationField(%q) error = %v, wantErr %v", tc.raw, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}

	if got, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || got != time.Minute {
		t.Errorf("ParseDurationOrDefault empty = %v, %v", got, err)
	}
	if got, err := ParseDurationOrDefault("x", "5s", time.Minute); err != nil || got != 5*time.Second {
		t.Errorf("ParseDurationOrDefault 5s = %v, %v", got, err)
	}
}

func TestSubscribePublishAndUnsubscribe(t *testing.T) {
	m := NewManager("unused")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received a different config")
		}
	default:
		t.Fatal("publish did not deliver")
	}

	// A slow subscriber keeps only the newest config.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("full buffer must be drained in favor of the newest config")
	}

	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatal("Unsubscribe must close the channel")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  access_token: "tok"
downloader:
  workers: 2
`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan error, 1)
	go func() { watchDone <- m.Watch(ctx) }()

	time.Sleep(50 * time.Millisecond) // let the watcher attach
	next := `
api:
  access_token: "tok"
downloader:
  workers: 6
`
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-ch:
		if cfg.Downloader.Workers != 6 {
			t.Fatalf("reloaded workers = %d, want 6", cfg.Downloader.Workers)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published after file change")
	}

	if got := m.Get(); got.Downloader.Workers != 6 {
		t.Fatalf("Get after reload = %d workers, want 6", got.Downloader.Workers)
	}

	cancel()
	select {
	case err := <-watchDone:
		if err != nil {
			t.Fatalf("Watch = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not exit after cancellation")
	}
}
