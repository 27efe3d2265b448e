package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Logging  LoggingConfig   `json:"logging"`
	Calendar CalendarConfig  `json:"calendar"`
	Collect  CollectConfig   `json:"collect"`
	Analysis AnalysisConfig  `json:"analysis"`
	Report   ReportConfig    `json:"report"`
	Email    *EmailConfig    `json:"email,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Storage  StorageConfig   `json:"storage"`
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

// CalendarConfig locates the release calendar and tunes the resolver's
// underspecified offsets.
type CalendarConfig struct {
	// Path to the calendar YAML file (required).
	Path string `json:"path"`

	// FOMCIcs is an optional ICS file with explicit meeting dates,
	// consumed by external-schedule patterns.
	FOMCIcs string `json:"fomc_ics,omitempty"`

	// HorizonDays bounds next-occurrence scans. Default 400.
	HorizonDays int `json:"horizon_days,omitempty"`

	// MidMonthDay is the nominal mid-month release day. Default 15.
	MidMonthDay int `json:"mid_month_day,omitempty"`

	// QuarterOffsetDay is the Nth business day of the quarter's first
	// month used by quarterly patterns. Default 1.
	QuarterOffsetDay int `json:"quarter_offset_day,omitempty"`
}

// CollectConfig holds API credentials and polling knobs.
//
// All durations are Go duration strings (e.g. "30s", "5m").
type CollectConfig struct {
	FredAPIKey string `json:"fred_api_key"`
	BLSAPIKey  string `json:"bls_api_key"`

	// MarketInterval is the intraday market/bond refresh interval.
	// Default "5m".
	MarketInterval string `json:"market_interval,omitempty"`

	// Timeout is the per-request HTTP timeout. Default "30s".
	Timeout string `json:"timeout,omitempty"`

	// RetryMax is the number of retries for transient HTTP failures
	// (5xx). Default 3.
	RetryMax int `json:"retry_max,omitempty"`

	// RetryBase is the backoff base between retries. Default "300ms".
	RetryBase string `json:"retry_base,omitempty"`

	// RatePerSec caps outbound API requests per second. Default 4.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// AnalysisConfig holds scoring thresholds.
type AnalysisConfig struct {
	VIXLow      float64 `json:"vix_low,omitempty"`      // default 15
	VIXElevated float64 `json:"vix_elevated,omitempty"` // default 25
	VIXHigh     float64 `json:"vix_high,omitempty"`     // default 35

	// SurpriseThreshold below which a release is classified neutral.
	// Default 0.5.
	SurpriseThreshold float64 `json:"surprise_threshold,omitempty"`
}

// ReportConfig controls the daily newsletter.
type ReportConfig struct {
	// SendAt is the local wall-clock send time, "H:MM" or "HH:MM".
	SendAt string `json:"send_at"`

	// Timezone is an IANA name (e.g. "America/New_York"). Default UTC.
	Timezone string `json:"timezone,omitempty"`

	// MinImportance filters which releases make the report:
	// "low" | "medium" | "high". Default "medium".
	MinImportance string `json:"min_importance,omitempty"`
}

type EmailConfig struct {
	Enabled    bool     `json:"enabled"`
	SMTPHost   string   `json:"smtp_host"`
	SMTPPort   int      `json:"smtp_port"`
	Sender     string   `json:"sender"`
	Password   string   `json:"password"` // do not log
	Recipients []string `json:"recipients"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"` // do not log
	ChatID  int64  `json:"chat_id"`
}

type StorageConfig struct {
	// Path to the sqlite database file. Default "./macromon.db".
	Path string `json:"path,omitempty"`

	// BusyTimeout is a Go duration string (sqlite busy_timeout pragma).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// Validate checks cross-field requirements that the strict decoder can't
// express. It normalizes nothing; defaults are resolved by the readers.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Calendar.Path) == "" {
		return errors.New("calendar.path is required")
	}
	if strings.TrimSpace(c.Report.SendAt) != "" {
		if _, _, err := parseHHMM(c.Report.SendAt); err != nil {
			return fmt.Errorf("report.send_at: %w", err)
		}
	}
	if tz := strings.TrimSpace(c.Report.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("report.timezone: %w", err)
		}
	}
	if c.Email != nil && c.Email.Enabled {
		if c.Email.SMTPHost == "" || c.Email.Sender == "" || len(c.Email.Recipients) == 0 {
			return errors.New("email: smtp_host, sender and recipients are required when enabled")
		}
	}
	if c.Telegram != nil && c.Telegram.Enabled {
		if c.Telegram.Token == "" || c.Telegram.ChatID == 0 {
			return errors.New("telegram: token and chat_id are required when enabled")
		}
	}
	for _, f := range []struct{ path, raw string }{
		{"collect.market_interval", c.Collect.MarketInterval},
		{"collect.timeout", c.Collect.Timeout},
		{"collect.retry_base", c.Collect.RetryBase},
		{"storage.busy_timeout", c.Storage.BusyTimeout},
	} {
		if err := checkDuration(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}

// ReportLocation resolves the configured report timezone (UTC fallback).
func (c *Config) ReportLocation() *time.Location {
	tz := strings.TrimSpace(c.Report.Timezone)
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReportSendAt returns the configured send hour/minute (default 7:00).
func (c *Config) ReportSendAt() (hour, minute int) {
	h, m, err := parseHHMM(c.Report.SendAt)
	if err != nil {
		return 7, 0
	}
	return h, m
}

func parseHHMM(raw string) (int, int, error) {
	s := strings.TrimSpace(raw)
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", raw)
	}
	return h, m, nil
}
