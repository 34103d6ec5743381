// Package config loads and watches the downloader configuration.
//
// Config files are YAML or JSON; YAML is coerced to JSON so one strict
// decoder (DisallowUnknownFields) covers both. Durations are Go duration
// strings (e.g. "60s", "2m").
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	API        APIConfig        `json:"api"`
	Data       DataConfig       `json:"data"`
	Downloader DownloaderConfig `json:"downloader"`
	Logging    LoggingConfig    `json:"logging"`

	// Daemon enables the long-running mode: scheduled runs + config reload.
	// Omitted means one-shot CLI behavior.
	Daemon *DaemonConfig `json:"daemon,omitempty"`

	// Telegram enables run-summary notifications. Omitted disables them.
	Telegram *TelegramConfig `json:"telegram,omitempty"`
}

// APIConfig configures access to the Facebook Marketing API.
type APIConfig struct {
	AppID       string `json:"app_id"`
	AppSecret   string `json:"app_secret"`
	AccessToken string `json:"access_token"`

	// BaseURL overrides the Graph API endpoint; mainly for tests.
	BaseURL string `json:"base_url,omitempty"`

	// RatePerSec caps outgoing requests client-side. 0 keeps the default.
	RatePerSec float64 `json:"rate_per_sec,omitempty"`

	// RequestTimeout is a Go duration string. Insights calls for busy
	// accounts can be slow, so the default is generous.
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// DataConfig controls what is downloaded and where it lands.
type DataConfig struct {
	// Dir is the directory result data is written to.
	Dir string `json:"dir"`

	// FirstDate is the first day for which data is downloaded (YYYY-MM-DD).
	FirstDate string `json:"first_date"`

	// RedownloadWindow is the number of trailing days that are downloaded
	// again even when their file already exists; conversions keep being
	// attributed for up to 28 days.
	RedownloadWindow int `json:"redownload_window"`

	// TargetAccounts restricts the run to these account ids. Empty means
	// every account the token can read.
	TargetAccounts []string `json:"target_accounts,omitempty"`
}

// DownloaderConfig controls the scheduling run.
type DownloaderConfig struct {
	// Workers is the number of concurrent download workers (>= 1).
	Workers int `json:"workers"`

	// RetryMax is the number of additional attempts after a retryable
	// failure before the run is aborted. Default 7 (8 attempts in total).
	RetryMax int `json:"retry_max,omitempty"`

	// RetryBase is the backoff unit as a Go duration string; attempt n is
	// retried after RetryBase * 2^(n-1). Default "60s".
	RetryBase string `json:"retry_base,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DaemonConfig controls the long-running mode.
type DaemonConfig struct {
	Enabled bool `json:"enabled"`

	// Schedule is a cron spec (5 or 6 fields, or a descriptor like
	// "@daily"). Default: 05:00 every day.
	Schedule string `json:"schedule,omitempty"`

	// Timezone for the cron schedule, e.g. "Europe/Berlin". Default UTC.
	Timezone string `json:"timezone,omitempty"`
}

// TelegramConfig controls run-summary notifications.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chat_id"`
}

const (
	defaultDataDir          = "/tmp/facebook_ads"
	defaultFirstDate        = "2015-01-01"
	defaultRedownloadWindow = 28
	defaultWorkers          = 10
	defaultSchedule         = "0 5 * * *"
)

// ApplyDefaults fills zero fields in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Data.Dir) == "" {
		c.Data.Dir = defaultDataDir
	}
	if strings.TrimSpace(c.Data.FirstDate) == "" {
		c.Data.FirstDate = defaultFirstDate
	}
	if c.Data.RedownloadWindow <= 0 {
		c.Data.RedownloadWindow = defaultRedownloadWindow
	}
	if c.Downloader.Workers <= 0 {
		c.Downloader.Workers = defaultWorkers
	}
	if c.Daemon != nil && strings.TrimSpace(c.Daemon.Schedule) == "" {
		c.Daemon.Schedule = defaultSchedule
	}
}

// Validate rejects configs the downloader could not run with. Called after
// ApplyDefaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.AccessToken) == "" {
		return errors.New("api.access_token is required")
	}
	if c.Downloader.Workers < 1 {
		return errors.New("downloader.workers must be >= 1")
	}
	if _, err := c.FirstDay(); err != nil {
		return err
	}
	if _, err := ParseDurationField("downloader.retry_base", c.Downloader.RetryBase); err != nil {
		return err
	}
	if _, err := ParseDurationField("api.request_timeout", c.API.RequestTimeout); err != nil {
		return err
	}
	if c.Telegram != nil && c.Telegram.Enabled {
		if strings.TrimSpace(c.Telegram.Token) == "" || c.Telegram.ChatID == 0 {
			return errors.New("telegram.token and telegram.chat_id are required when telegram.enabled")
		}
	}
	return nil
}

// FirstDay parses data.first_date.
func (c *Config) FirstDay() (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(c.Data.FirstDate))
	if err != nil {
		return time.Time{}, fmt.Errorf("data.first_date: invalid date %q: %w", c.Data.FirstDate, err)
	}
	return t, nil
}
