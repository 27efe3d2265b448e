package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults for the optional duration knobs. Empty fields resolve to
// these; Validate rejects anything else that does not parse.
const (
	defaultMarketInterval = 5 * time.Minute
	defaultHTTPTimeout    = 30 * time.Second
	defaultRetryBase      = 300 * time.Millisecond
	defaultBusyTimeout    = 5 * time.Second
)

// MarketInterval is the resolved intraday market refresh interval.
func (c *Config) MarketInterval() time.Duration {
	return durationOr(c.Collect.MarketInterval, defaultMarketInterval)
}

// CollectTimeout is the resolved per-request HTTP timeout.
func (c *Config) CollectTimeout() time.Duration {
	return durationOr(c.Collect.Timeout, defaultHTTPTimeout)
}

// CollectRetryBase is the resolved backoff base between retries.
func (c *Config) CollectRetryBase() time.Duration {
	return durationOr(c.Collect.RetryBase, defaultRetryBase)
}

// StorageBusyTimeout is the resolved sqlite busy_timeout value.
func (c *Config) StorageBusyTimeout() time.Duration {
	return durationOr(c.Storage.BusyTimeout, defaultBusyTimeout)
}

// checkDuration validates one duration field; empty is allowed and
// means "use the default".
func checkDuration(path, raw string) error {
	if _, err := parseDuration(raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return d, nil
}

// durationOr resolves a field, falling back to the default when it is
// empty, zero or malformed.
func durationOr(raw string, def time.Duration) time.Duration {
	d, err := parseDuration(raw)
	if err != nil || d == 0 {
		return def
	}
	return d
}
