package calendar

import (
	"fmt"
	"strings"
	"time"
)

// PatternKind enumerates the closed set of release pattern rules.
//
// Pattern strings are parsed exactly once, at store load time, so that
// evaluation is a total function over a closed type. Anything that does
// not parse into one of these kinds is a load-time ConfigError.
type PatternKind int

const (
	// KindOrdinalWeekday fires on the Nth occurrence of a weekday within
	// the month ("1st friday"), or the last occurrence ("last thursday",
	// N = -1). If the month has no Nth occurrence the pattern simply
	// never fires that month; there is no clamping.
	KindOrdinalWeekday PatternKind = iota

	// KindWeekly fires on every occurrence of a weekday ("thursday").
	KindWeekly

	// KindRelative fires on the given weekday immediately preceding the
	// resolved date of another indicator in the same month
	// ("wed_before_nfp").
	KindRelative

	// KindWeekOfMonth fires on every day of the Nth 7-day block of the
	// month ("1st week", "3rd week"). Days 1-7 are week 1; the 4th block
	// runs to the end of the month.
	KindWeekOfMonth

	// KindMidMonth fires once per month on a configured day (default the
	// 15th), pushed forward to the next business day when it lands on a
	// weekend or holiday.
	KindMidMonth

	// KindEndOfMonth fires on the last business day of the month.
	KindEndOfMonth

	// KindQuarterly fires once per calendar quarter, on a configured
	// business-day offset into the quarter's first month.
	KindQuarterly

	// KindBusinessDay fires on the Nth business day of the month
	// ("1st_business_day", "3rd_business_day"). Business days are
	// Monday-Friday minus whatever the holiday calendar excludes.
	KindBusinessDay

	// KindExternal delegates to an injected explicit-date list
	// ("fomc_schedule"). The evaluator treats this as a lookup, not a
	// rule.
	KindExternal
)

func (k PatternKind) String() string {
	switch k {
	case KindOrdinalWeekday:
		return "ordinal-weekday"
	case KindWeekly:
		return "weekly"
	case KindRelative:
		return "relative"
	case KindWeekOfMonth:
		return "week-of-month"
	case KindMidMonth:
		return "mid-month"
	case KindEndOfMonth:
		return "end-of-month"
	case KindQuarterly:
		return "quarterly"
	case KindBusinessDay:
		return "business-day"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Pattern is the parsed, tagged form of a release_pattern string.
type Pattern struct {
	Kind    PatternKind
	N       int          // ordinal for OrdinalWeekday / WeekOfMonth / BusinessDay (1-indexed)
	Weekday time.Weekday // for OrdinalWeekday / Weekly / Relative
	Ref     string       // referenced indicator id (Relative) or schedule name (External)
}

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var ordinalNames = map[string]int{
	"1st": 1, "2nd": 2, "3rd": 3, "4th": 4, "5th": 5,
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"last": -1,
}

// ParsePattern parses a release_pattern string into its tagged form.
//
// Accepted forms (case-insensitive, '_' and ' ' interchangeable):
//
//	"1st friday"            ordinal weekday
//	"thursday"              weekly
//	"wed_before_nfp"        relative to another indicator
//	"1st week"              week-of-month window
//	"mid_month"             mid-month
//	"end_of_month"          end-of-month
//	"quarterly"             quarterly
//	"3rd_business_day"      Nth business day
//	"fomc_schedule"         external explicit-date schedule
func ParsePattern(raw string) (Pattern, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return Pattern{}, fmt.Errorf("empty pattern")
	}

	switch s {
	case "mid month", "midmonth":
		return Pattern{Kind: KindMidMonth}, nil
	case "end of month", "end month", "eom":
		return Pattern{Kind: KindEndOfMonth}, nil
	case "quarterly":
		return Pattern{Kind: KindQuarterly}, nil
	}

	fields := strings.Fields(s)

	// "<name> schedule" -> external lookup.
	if len(fields) == 2 && fields[1] == "schedule" {
		return Pattern{Kind: KindExternal, Ref: fields[0]}, nil
	}

	// "<weekday> before <id>" -> relative.
	if len(fields) == 3 && fields[1] == "before" {
		wd, ok := weekdayNames[fields[0]]
		if !ok {
			return Pattern{}, fmt.Errorf("unknown weekday %q in pattern %q", fields[0], raw)
		}
		return Pattern{Kind: KindRelative, Weekday: wd, Ref: strings.ToUpper(fields[2])}, nil
	}

	// Bare weekday -> weekly.
	if len(fields) == 1 {
		if wd, ok := weekdayNames[fields[0]]; ok {
			return Pattern{Kind: KindWeekly, Weekday: wd}, nil
		}
		return Pattern{}, fmt.Errorf("unrecognized pattern %q", raw)
	}

	// Remaining forms start with an ordinal.
	n, ok := ordinalNames[fields[0]]
	if !ok {
		return Pattern{}, fmt.Errorf("unrecognized pattern %q", raw)
	}

	switch {
	case len(fields) == 2 && fields[1] == "week":
		if n < 1 {
			return Pattern{}, fmt.Errorf("week ordinal must be positive in pattern %q", raw)
		}
		return Pattern{Kind: KindWeekOfMonth, N: n}, nil
	case len(fields) == 3 && fields[1] == "business" && fields[2] == "day":
		if n < 1 {
			return Pattern{}, fmt.Errorf("business-day ordinal must be positive in pattern %q", raw)
		}
		return Pattern{Kind: KindBusinessDay, N: n}, nil
	case len(fields) == 2:
		// "1st friday" .. "5th friday", or "last thursday" (N = -1).
		wd, ok := weekdayNames[fields[1]]
		if !ok {
			return Pattern{}, fmt.Errorf("unknown weekday %q in pattern %q", fields[1], raw)
		}
		return Pattern{Kind: KindOrdinalWeekday, N: n, Weekday: wd}, nil
	}

	return Pattern{}, fmt.Errorf("unrecognized pattern %q", raw)
}
