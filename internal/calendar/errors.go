package calendar

import "fmt"

// ConfigError reports a malformed calendar configuration. It is produced
// only at load time; a store that loaded successfully never yields one.
type ConfigError struct {
	ID     string // offending indicator id, if known
	Reason string
}

func (e *ConfigError) Error() string {
	if e.ID == "" {
		return "calendar config: " + e.Reason
	}
	return fmt.Sprintf("calendar config: indicator %q: %s", e.ID, e.Reason)
}

func configErrf(id, format string, args ...any) *ConfigError {
	return &ConfigError{ID: id, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a lookup of an indicator id that is not in the
// store. Callers typically skip and log.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("calendar: indicator %q not found", e.ID)
}
