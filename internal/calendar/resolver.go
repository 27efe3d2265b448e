package calendar

import (
	"sort"
	"time"
)

// DateProvider supplies explicit release dates for indicators whose
// pattern is an external schedule (e.g. the FOMC meeting calendar).
// Implementations return the known dates for the indicator, in any
// order; an empty result means "no known dates".
type DateProvider interface {
	DatesFor(indicatorID string) []time.Time
}

// HolidayCalendar marks public holidays for business-day counting.
// When no calendar is injected, business days are plain Monday-Friday.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// DefaultHorizonDays bounds NextOccurrence's forward scan.
const DefaultHorizonDays = 400

// Options tunes the underspecified pattern offsets. Zero values select
// the defaults documented on each field.
type Options struct {
	// MidMonthDay is the nominal day for mid-month patterns (default 15).
	// It is pushed forward to the next business day when it lands on a
	// weekend or holiday.
	MidMonthDay int

	// QuarterOffsetDay selects the Nth business day of the quarter's
	// first month for quarterly patterns (default 1).
	QuarterOffsetDay int

	// HorizonDays bounds the NextOccurrence scan (default 400).
	HorizonDays int
}

func (o Options) withDefaults() Options {
	if o.MidMonthDay <= 0 {
		o.MidMonthDay = 15
	}
	if o.QuarterOffsetDay <= 0 {
		o.QuarterOffsetDay = 1
	}
	if o.HorizonDays <= 0 {
		o.HorizonDays = DefaultHorizonDays
	}
	return o
}

// Resolver answers schedule queries against an immutable Store.
//
// All methods are pure reads; the resolver holds no mutable state and is
// safe for concurrent use.
type Resolver struct {
	store    *Store
	dates    DateProvider
	holidays HolidayCalendar
	opts     Options
}

type ResolverOption func(*Resolver)

// WithDateProvider injects the explicit-date schedule source used by
// external patterns. Without one, external patterns never fire.
func WithDateProvider(p DateProvider) ResolverOption {
	return func(r *Resolver) { r.dates = p }
}

// WithHolidayCalendar injects a holiday calendar for business-day
// counting.
func WithHolidayCalendar(h HolidayCalendar) ResolverOption {
	return func(r *Resolver) { r.holidays = h }
}

func WithOptions(o Options) ResolverOption {
	return func(r *Resolver) { r.opts = o }
}

func NewResolver(store *Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store}
	for _, o := range opts {
		o(r)
	}
	r.opts = r.opts.withDefaults()
	return r
}

// Store returns the underlying calendar store.
func (r *Resolver) Store() *Store { return r.store }

// DueOn returns every indicator that fires on the given date, ordered by
// release time ascending, then importance descending, then id ascending.
func (r *Resolver) DueOn(date time.Time) []ReleaseEvent {
	day := Day(date)
	var out []ReleaseEvent
	for _, d := range r.store.All() {
		if fired, ok := r.fireOn(d, day); ok {
			out = append(out, ReleaseEvent{
				IndicatorID: d.ID,
				Date:        fired,
				Time:        d.ReleaseTime,
				Importance:  d.Importance,
				Descriptor:  d,
			})
		}
	}
	sortEvents(out)
	return out
}

// SignificantOn is DueOn filtered to importance >= min.
func (r *Resolver) SignificantOn(date time.Time, min Importance) []ReleaseEvent {
	all := r.DueOn(date)
	out := all[:0]
	for _, ev := range all {
		if ev.Importance >= min {
			out = append(out, ev)
		}
	}
	return out
}

// NextOccurrence scans forward from after (exclusive) for the next date
// on which the indicator fires, up to the configured horizon.
//
// The boolean is false when no occurrence exists within the horizon;
// that is an expected outcome, not an error. The error is non-nil only
// for an unknown indicator id.
func (r *Resolver) NextOccurrence(indicatorID string, after time.Time) (ReleaseEvent, bool, error) {
	d, err := r.store.Get(indicatorID)
	if err != nil {
		return ReleaseEvent{}, false, err
	}

	day := Day(after)
	for i := 0; i < r.opts.HorizonDays; i++ {
		day = day.AddDate(0, 0, 1)
		if fired, ok := r.fireOn(d, day); ok {
			return ReleaseEvent{
				IndicatorID: d.ID,
				Date:        fired,
				Time:        d.ReleaseTime,
				Importance:  d.Importance,
				Descriptor:  d,
			}, true, nil
		}
	}
	return ReleaseEvent{}, false, nil
}

func sortEvents(evs []ReleaseEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if a, b := evs[i].Time.Minutes(), evs[j].Time.Minutes(); a != b {
			return a < b
		}
		if evs[i].Importance != evs[j].Importance {
			return evs[i].Importance > evs[j].Importance
		}
		return evs[i].IndicatorID < evs[j].IndicatorID
	})
}
