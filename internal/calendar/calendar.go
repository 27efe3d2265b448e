package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Importance is the coarse priority tier of an indicator.
//
// The feed data only uses medium/high today, but low is part of the
// type so filters can express "everything".
type Importance int

const (
	ImportanceLow Importance = iota
	ImportanceMedium
	ImportanceHigh
)

func (i Importance) String() string {
	switch i {
	case ImportanceLow:
		return "low"
	case ImportanceMedium:
		return "medium"
	case ImportanceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseImportance parses "low" | "medium" | "high" (case-insensitive).
func ParseImportance(s string) (Importance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ImportanceLow, nil
	case "medium":
		return ImportanceMedium, nil
	case "high":
		return ImportanceHigh, nil
	default:
		return 0, fmt.Errorf("unknown importance %q", s)
	}
}

// ClockTime is a wall-clock release time (hour:minute, 24h, no date).
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime accepts "H:MM" or "HH:MM" (24-hour).
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 || len(parts[1]) != 2 {
		return ClockTime{}, fmt.Errorf("invalid release time %q (want H:MM or HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in release time %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return ClockTime{}, fmt.Errorf("invalid minute in release time %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (t ClockTime) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// Minutes returns minutes since midnight; used for ordering.
func (t ClockTime) Minutes() int { return t.Hour*60 + t.Minute }

// On anchors the clock time onto a calendar date in the given location.
func (t ClockTime) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour, t.Minute, 0, 0, loc)
}

// Descriptor is the static metadata of one tracked indicator.
//
// Descriptors are immutable after Load: the store hands out pointers,
// callers must not mutate them.
type Descriptor struct {
	ID       string
	Name     string
	Source   string // issuing agency code (BLS, FRED, Census, FED, ...)
	SeriesID string // external series identifier, opaque to the resolver

	Pattern     Pattern
	RawPattern  string // as written in the calendar file
	ReleaseTime ClockTime
	Importance  Importance
}

// ReleaseEvent is one resolved occurrence of an indicator release.
//
// Events are freshly allocated per query and owned by the caller.
type ReleaseEvent struct {
	IndicatorID string
	Date        time.Time // midnight UTC civil date
	Time        ClockTime
	Importance  Importance
	Descriptor  *Descriptor
}

// Day truncates t to a midnight-UTC civil date. All calendar math in this
// package operates on such values.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
