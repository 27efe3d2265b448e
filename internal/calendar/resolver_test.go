package calendar

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mustLoad(t *testing.T, src string) *Store {
	t.Helper()
	st, err := Load([]byte(src))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return st
}

func indicatorYAML(id, pattern, releaseTime, importance string) string {
	return id + ":\n" +
		"  name: " + id + "\n" +
		"  source: TEST\n" +
		"  series_id: S_" + id + "\n" +
		"  release_pattern: " + pattern + "\n" +
		"  release_time: \"" + releaseTime + "\"\n" +
		"  importance: " + importance + "\n"
}

// January 2025 has Fridays on the 3rd, 10th, 17th, 24th and 31st.
func TestFirstFridayFiresOnlyOnce(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("NFP", "1st friday", "8:30", "high"))
	r := NewResolver(st)

	for dom := 1; dom <= 31; dom++ {
		evs := r.DueOn(date(2025, time.January, dom))
		want := 0
		if dom == 3 {
			want = 1
		}
		if len(evs) != want {
			t.Fatalf("DueOn(2025-01-%02d) = %d events, want %d", dom, len(evs), want)
		}
	}
}

// March 2025: the first Friday is the 7th, so wed_before_nfp must fire
// on Wednesday the 5th.
func TestRelativeAnchorsToReferencedIndicator(t *testing.T) {
	t.Parallel()
	st := mustLoad(t,
		indicatorYAML("NFP", "1st friday", "8:30", "high")+
			indicatorYAML("ADP", "wed_before_nfp", "8:15", "medium"))
	r := NewResolver(st)

	evs := r.DueOn(date(2025, time.March, 5))
	if len(evs) != 1 || evs[0].IndicatorID != "ADP" {
		t.Fatalf("DueOn(2025-03-05) = %+v, want ADP only", evs)
	}
	if !sameDay(evs[0].Date, date(2025, time.March, 5)) {
		t.Fatalf("scheduled date = %v", evs[0].Date)
	}

	// The Wednesday after NFP must not fire.
	if evs := r.DueOn(date(2025, time.March, 12)); len(evs) != 0 {
		t.Fatalf("DueOn(2025-03-12) = %+v, want none", evs)
	}
}

func TestNextOccurrenceWeekly(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("JOBLESS", "thursday", "8:30", "medium"))
	r := NewResolver(st)

	after := date(2025, time.June, 5) // a Thursday itself; scan is exclusive
	ev, ok, err := r.NextOccurrence("JOBLESS", after)
	if err != nil || !ok {
		t.Fatalf("NextOccurrence error: ok=%v err=%v", ok, err)
	}
	if ev.Date.Weekday() != time.Thursday {
		t.Fatalf("next occurrence is a %v", ev.Date.Weekday())
	}
	if !ev.Date.After(after) {
		t.Fatalf("next occurrence %v not after %v", ev.Date, after)
	}
	if !sameDay(ev.Date, date(2025, time.June, 12)) {
		t.Fatalf("next occurrence = %v, want 2025-06-12", ev.Date)
	}
}

func TestNextOccurrenceUnknownID(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("NFP", "1st friday", "8:30", "high"))
	r := NewResolver(st)
	_, _, err := r.NextOccurrence("GDP", date(2025, time.June, 1))
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *NotFoundError", err)
	}
}

// An external pattern with no injected date provider can never fire;
// exhausting the horizon is a value result, not an error.
func TestNextOccurrenceHorizonExhausted(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("FOMC", "fomc_schedule", "14:00", "high"))
	r := NewResolver(st, WithOptions(Options{HorizonDays: 30}))

	ev, ok, err := r.NextOccurrence("FOMC", date(2025, time.June, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected exhaustion, got %+v", ev)
	}
}

// 2025-01-03 is both the first Friday of January and inside the first
// 7-day block, so NFP and JOLTS both fire; NFP (8:30) sorts before
// JOLTS (10:00).
func TestDueOnOrderingScenario(t *testing.T) {
	t.Parallel()
	st := mustLoad(t,
		indicatorYAML("NFP", "1st friday", "8:30", "high")+
			indicatorYAML("JOLTS", "1st week", "10:00", "medium"))
	r := NewResolver(st)

	evs := r.DueOn(date(2025, time.January, 3))
	if len(evs) != 2 {
		t.Fatalf("DueOn = %d events, want 2", len(evs))
	}
	if evs[0].IndicatorID != "NFP" || evs[1].IndicatorID != "JOLTS" {
		t.Fatalf("order = %s, %s", evs[0].IndicatorID, evs[1].IndicatorID)
	}
}

func TestDueOnTieBreaks(t *testing.T) {
	t.Parallel()
	// Same weekday, same release time: importance decides; then id.
	st := mustLoad(t,
		indicatorYAML("ZZZ", "monday", "9:00", "high")+
			indicatorYAML("BBB", "monday", "9:00", "medium")+
			indicatorYAML("AAA", "monday", "9:00", "medium"))
	r := NewResolver(st)

	evs := r.DueOn(date(2025, time.June, 2)) // a Monday
	if len(evs) != 3 {
		t.Fatalf("DueOn = %d events, want 3", len(evs))
	}
	want := []string{"ZZZ", "AAA", "BBB"}
	for i, id := range want {
		if evs[i].IndicatorID != id {
			t.Fatalf("position %d = %s, want %s", i, evs[i].IndicatorID, id)
		}
	}
}

func TestSignificantOnFilters(t *testing.T) {
	t.Parallel()
	st := mustLoad(t,
		indicatorYAML("HIGH", "monday", "9:00", "high")+
			indicatorYAML("MED", "monday", "9:30", "medium")+
			indicatorYAML("LOW", "monday", "10:00", "low"))
	r := NewResolver(st)

	monday := date(2025, time.June, 2)
	if evs := r.SignificantOn(monday, ImportanceLow); len(evs) != 3 {
		t.Fatalf("min=low: %d events, want 3", len(evs))
	}
	if evs := r.SignificantOn(monday, ImportanceMedium); len(evs) != 2 {
		t.Fatalf("min=medium: %d events, want 2", len(evs))
	}
	evs := r.SignificantOn(monday, ImportanceHigh)
	if len(evs) != 1 || evs[0].IndicatorID != "HIGH" {
		t.Fatalf("min=high: %+v", evs)
	}
}

func TestBusinessDayPatterns(t *testing.T) {
	t.Parallel()
	st := mustLoad(t,
		indicatorYAML("ISM", "1st_business_day", "10:00", "high")+
			indicatorYAML("PPI", "3rd_business_day", "8:30", "medium"))
	r := NewResolver(st)

	// September 2025 starts on a Monday.
	if evs := r.DueOn(date(2025, time.September, 1)); len(evs) != 1 || evs[0].IndicatorID != "ISM" {
		t.Fatalf("2025-09-01: %+v", evs)
	}
	if evs := r.DueOn(date(2025, time.September, 3)); len(evs) != 1 || evs[0].IndicatorID != "PPI" {
		t.Fatalf("2025-09-03: %+v", evs)
	}

	// August 2025 starts on a Friday: business days 1 (Fri), 4 (Mon), 5 (Tue).
	if evs := r.DueOn(date(2025, time.August, 1)); len(evs) != 1 || evs[0].IndicatorID != "ISM" {
		t.Fatalf("2025-08-01: %+v", evs)
	}
	if evs := r.DueOn(date(2025, time.August, 5)); len(evs) != 1 || evs[0].IndicatorID != "PPI" {
		t.Fatalf("2025-08-05: %+v", evs)
	}
}

func TestMidMonthWeekendAdjustment(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("CPI", "mid_month", "8:30", "high"))
	r := NewResolver(st)

	// June 15th 2025 is a Sunday; the release moves to Monday the 16th.
	if evs := r.DueOn(date(2025, time.June, 15)); len(evs) != 0 {
		t.Fatalf("2025-06-15: %+v, want none", evs)
	}
	if evs := r.DueOn(date(2025, time.June, 16)); len(evs) != 1 {
		t.Fatalf("2025-06-16: %+v, want CPI", evs)
	}

	// July 15th 2025 is a Tuesday; no adjustment.
	if evs := r.DueOn(date(2025, time.July, 15)); len(evs) != 1 {
		t.Fatalf("2025-07-15: %+v, want CPI", evs)
	}
}

func TestEndOfMonth(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("PCE", "end_of_month", "8:30", "high"))
	r := NewResolver(st)

	// August 2025 ends on a Sunday; the last business day is Friday the 29th.
	if evs := r.DueOn(date(2025, time.August, 29)); len(evs) != 1 {
		t.Fatalf("2025-08-29: %+v, want PCE", evs)
	}
	if evs := r.DueOn(date(2025, time.August, 31)); len(evs) != 0 {
		t.Fatalf("2025-08-31: %+v, want none", evs)
	}
}

func TestQuarterlyWithHolidayCalendar(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("GDP", "quarterly", "8:30", "high"))

	// Without a holiday calendar the first business day of January 2025
	// is Wednesday the 1st.
	r := NewResolver(st)
	if evs := r.DueOn(date(2025, time.January, 1)); len(evs) != 1 {
		t.Fatalf("2025-01-01: %+v, want GDP", evs)
	}
	// Only the first month of each quarter fires.
	if evs := r.DueOn(date(2025, time.February, 3)); len(evs) != 0 {
		t.Fatalf("2025-02-03: %+v, want none", evs)
	}

	// With New Year's Day marked as a holiday it slides to the 2nd.
	rh := NewResolver(st, WithHolidayCalendar(holidayFunc(func(d time.Time) bool {
		return d.Month() == time.January && d.Day() == 1
	})))
	if evs := rh.DueOn(date(2025, time.January, 1)); len(evs) != 0 {
		t.Fatalf("holiday 2025-01-01: %+v, want none", evs)
	}
	if evs := rh.DueOn(date(2025, time.January, 2)); len(evs) != 1 {
		t.Fatalf("holiday 2025-01-02: %+v, want GDP", evs)
	}
}

type holidayFunc func(time.Time) bool

func (f holidayFunc) IsHoliday(d time.Time) bool { return f(d) }

func TestExternalScheduleProvider(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("FOMC", "fomc_schedule", "14:00", "high"))
	provider := staticDates{"FOMC": {date(2025, time.June, 18), date(2025, time.July, 30)}}
	r := NewResolver(st, WithDateProvider(provider))

	if evs := r.DueOn(date(2025, time.June, 18)); len(evs) != 1 {
		t.Fatalf("2025-06-18: %+v, want FOMC", evs)
	}
	if evs := r.DueOn(date(2025, time.June, 19)); len(evs) != 0 {
		t.Fatalf("2025-06-19: %+v, want none", evs)
	}

	ev, ok, err := r.NextOccurrence("FOMC", date(2025, time.June, 18))
	if err != nil || !ok {
		t.Fatalf("NextOccurrence: ok=%v err=%v", ok, err)
	}
	if !sameDay(ev.Date, date(2025, time.July, 30)) {
		t.Fatalf("next FOMC = %v, want 2025-07-30", ev.Date)
	}
}

type staticDates map[string][]time.Time

func (s staticDates) DatesFor(id string) []time.Time { return s[id] }

func TestLastWeekdayPattern(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("X", "last thursday", "10:00", "low"))
	r := NewResolver(st)

	// July 2025: Thursdays fall on 3, 10, 17, 24, 31.
	if evs := r.DueOn(date(2025, time.July, 31)); len(evs) != 1 {
		t.Fatalf("2025-07-31: %+v, want X", evs)
	}
	if evs := r.DueOn(date(2025, time.July, 24)); len(evs) != 0 {
		t.Fatalf("2025-07-24: %+v, want none", evs)
	}
}

func TestWeekOfMonthFourthBlockAbsorbsTail(t *testing.T) {
	t.Parallel()
	st := mustLoad(t, indicatorYAML("X", "4th week", "9:00", "low"))
	r := NewResolver(st)

	if evs := r.DueOn(date(2025, time.January, 31)); len(evs) != 1 {
		t.Fatalf("2025-01-31: %+v, want X (day 31 is in the 4th block)", evs)
	}
	if evs := r.DueOn(date(2025, time.January, 21)); len(evs) != 0 {
		t.Fatalf("2025-01-21: %+v, want none", evs)
	}
}
