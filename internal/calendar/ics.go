package calendar

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ICSProvider is a DateProvider backed by an iCalendar file, typically
// an exported FOMC meeting calendar.
//
// Events are matched to indicators by SUMMARY: an event belongs to
// indicator id X when its summary contains X (case-insensitive). For
// multi-day events (FOMC meetings span two days) every covered day is
// reported, since the statement date is the final day and callers filter
// with their own pattern logic.
type ICSProvider struct {
	byID map[string][]time.Time
}

// LoadICSFile parses an ICS file into a provider.
func LoadICSFile(path string, indicatorIDs []string) (*ICSProvider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ics file: %w", err)
	}
	return ParseICS(b, indicatorIDs)
}

// ParseICS builds a provider from raw ICS bytes. Only events whose
// summary mentions one of the given indicator ids are kept.
func ParseICS(data []byte, indicatorIDs []string) (*ICSProvider, error) {
	cal, err := ical.ParseCalendar(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	p := &ICSProvider{byID: make(map[string][]time.Time)}

	for _, ev := range cal.Events() {
		summary := ""
		if prop := ev.GetProperty(ical.ComponentPropertySummary); prop != nil {
			summary = prop.Value
		}
		id := matchIndicator(summary, indicatorIDs)
		if id == "" {
			continue
		}

		start, err := ev.GetStartAt()
		if err != nil {
			start, err = ev.GetAllDayStartAt()
		}
		if err != nil {
			continue // skip events without a usable DTSTART
		}
		end, eerr := ev.GetEndAt()
		if eerr != nil {
			end, eerr = ev.GetAllDayEndAt()
		}

		day := Day(start)
		p.byID[id] = append(p.byID[id], day)
		if eerr == nil {
			// DTEND is exclusive for all-day events; cover intermediate days.
			for next := day.AddDate(0, 0, 1); next.Before(Day(end)); next = next.AddDate(0, 0, 1) {
				p.byID[id] = append(p.byID[id], next)
			}
		}
	}

	for id := range p.byID {
		dates := p.byID[id]
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		p.byID[id] = dedupeDates(dates)
	}
	return p, nil
}

func matchIndicator(summary string, ids []string) string {
	up := strings.ToUpper(summary)
	for _, id := range ids {
		if id != "" && strings.Contains(up, strings.ToUpper(id)) {
			return id
		}
	}
	return ""
}

func dedupeDates(dates []time.Time) []time.Time {
	out := dates[:0]
	for i, d := range dates {
		if i == 0 || !sameDay(d, dates[i-1]) {
			out = append(out, d)
		}
	}
	return out
}

// DatesFor returns the known explicit dates for the indicator, sorted
// ascending. The returned slice is shared; callers must not mutate it.
func (p *ICSProvider) DatesFor(indicatorID string) []time.Time {
	if p == nil {
		return nil
	}
	return p.byID[indicatorID]
}
