package calendar

import "time"

// fireOn decides whether descriptor d's release falls on the given civil
// date. The returned time is the scheduled date when it fires (equal to
// the query date; the second value distinguishes fire from no-fire).
//
// This function is total: the store validated every pattern at load
// time, so there is no error path here.
func (r *Resolver) fireOn(d *Descriptor, day time.Time) (time.Time, bool) {
	p := d.Pattern
	switch p.Kind {
	case KindOrdinalWeekday:
		if day.Weekday() != p.Weekday {
			return time.Time{}, false
		}
		ord := (day.Day()-1)/7 + 1
		if p.N == -1 {
			// Last occurrence: no same weekday later in the month.
			if day.Day()+7 <= daysInMonth(day.Year(), day.Month()) {
				return time.Time{}, false
			}
			return day, true
		}
		if ord != p.N {
			return time.Time{}, false
		}
		return day, true

	case KindWeekly:
		if day.Weekday() == p.Weekday {
			return day, true
		}
		return time.Time{}, false

	case KindWeekOfMonth:
		block := (day.Day()-1)/7 + 1
		if block > 4 {
			block = 4 // the 4th block absorbs days 29-31
		}
		if block == p.N {
			return day, true
		}
		return time.Time{}, false

	case KindMidMonth:
		nominal := time.Date(day.Year(), day.Month(), r.opts.MidMonthDay, 0, 0, 0, 0, time.UTC)
		if sameDay(day, r.nextBusinessDayFrom(nominal)) {
			return day, true
		}
		return time.Time{}, false

	case KindEndOfMonth:
		last := time.Date(day.Year(), day.Month(), daysInMonth(day.Year(), day.Month()), 0, 0, 0, 0, time.UTC)
		for !r.isBusinessDay(last) {
			last = last.AddDate(0, 0, -1)
		}
		if sameDay(day, last) {
			return day, true
		}
		return time.Time{}, false

	case KindQuarterly:
		m := day.Month()
		if m != time.January && m != time.April && m != time.July && m != time.October {
			return time.Time{}, false
		}
		if day.Day() == r.nthBusinessDayOfMonth(day.Year(), m, r.opts.QuarterOffsetDay) {
			return day, true
		}
		return time.Time{}, false

	case KindBusinessDay:
		if day.Day() == r.nthBusinessDayOfMonth(day.Year(), day.Month(), p.N) {
			return day, true
		}
		return time.Time{}, false

	case KindRelative:
		anchor, ok := r.relativeAnchor(p, day.Year(), day.Month())
		if !ok {
			return time.Time{}, false
		}
		if sameDay(day, anchor) {
			return day, true
		}
		return time.Time{}, false

	case KindExternal:
		if r.dates == nil {
			return time.Time{}, false
		}
		for _, dt := range r.dates.DatesFor(d.ID) {
			if sameDay(dt, day) {
				return day, true
			}
		}
		return time.Time{}, false
	}

	return time.Time{}, false
}

// relativeAnchor resolves a relative pattern for a given month: find the
// referenced indicator's date in that month, then step back to the
// nearest strictly-earlier occurrence of the pattern's weekday. If the
// step crosses into the previous month, the pattern does not fire.
//
// The store's load-time cycle check guarantees the reference chain is
// finite, so the recursion through fireOn terminates.
func (r *Resolver) relativeAnchor(p Pattern, year int, month time.Month) (time.Time, bool) {
	ref, err := r.store.Get(p.Ref)
	if err != nil {
		return time.Time{}, false // unreachable after a successful Load
	}

	refDate, ok := r.firstInMonth(ref, year, month)
	if !ok {
		return time.Time{}, false
	}

	anchor := refDate.AddDate(0, 0, -1)
	for anchor.Weekday() != p.Weekday {
		anchor = anchor.AddDate(0, 0, -1)
	}
	if anchor.Month() != month {
		return time.Time{}, false
	}
	return anchor, true
}

// firstInMonth finds the first date within the month on which d fires.
func (r *Resolver) firstInMonth(d *Descriptor, year int, month time.Month) (time.Time, bool) {
	last := daysInMonth(year, month)
	for dom := 1; dom <= last; dom++ {
		day := time.Date(year, month, dom, 0, 0, 0, 0, time.UTC)
		if fired, ok := r.fireOn(d, day); ok {
			return fired, true
		}
	}
	return time.Time{}, false
}

func (r *Resolver) isBusinessDay(day time.Time) bool {
	wd := day.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if r.holidays != nil && r.holidays.IsHoliday(day) {
		return false
	}
	return true
}

// nextBusinessDayFrom returns day itself when it is a business day, or
// the next business day after it.
func (r *Resolver) nextBusinessDayFrom(day time.Time) time.Time {
	for !r.isBusinessDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

// nthBusinessDayOfMonth returns the day-of-month of the nth (1-indexed)
// business day, or 0 when the month has fewer business days than n.
func (r *Resolver) nthBusinessDayOfMonth(year int, month time.Month, n int) int {
	count := 0
	last := daysInMonth(year, month)
	for dom := 1; dom <= last; dom++ {
		if r.isBusinessDay(time.Date(year, month, dom, 0, 0, 0, 0, time.UTC)) {
			count++
			if count == n {
				return dom
			}
		}
	}
	return 0
}
