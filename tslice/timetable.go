package tslice

// Timetable is a disjunction of TimeTableElements.
type Timetable struct {
	Elements []TimeTableElement
}

// DateInterval is a closed [Start, End] calendar window, in days since
// the Unix epoch.
type DateInterval struct {
	StartDay, EndDay int32
}

func (d DateInterval) Contains(day int32) bool { return day >= d.StartDay && day <= d.EndDay }

// WeekdayMask is a bitmask over Sunday(0)..Saturday(6).
type WeekdayMask uint8

const AllWeekdays WeekdayMask = 0x7F

func (m WeekdayMask) Has(weekday int) bool { return m&(1<<uint(weekday)) != 0 }

// SpecialDayKind names one of the special-day patterns.
type SpecialDayKind uint8

const (
	SpecialDayNone SpecialDayKind = iota
	SpecialDayHOL
	SpecialDayAfterHOL
	SpecialDayBeforeHOL
	SpecialDayBusyFriday
)

// TimePattern is one weekday/time-of-day or special-day rule.
type TimePattern struct {
	Weekdays    WeekdayMask
	Special     SpecialDayKind
	StartMinute int16 // minute of day, inclusive
	EndMinute   int16 // minute of day, exclusive
	Exclude     bool  // subtract this pattern rather than add it
}

// TimeTableElement is a date window plus an optional sum of TimePatterns;
// a nil/empty Patterns list means "all day, every day" within DateRange.
type TimeTableElement struct {
	DateRange DateRange
	Patterns  []TimePattern
}

// DateRange pairs a DateInterval with an Exclude flag mirroring the
// textual form's optional "exclude" modifier.
type DateRange struct {
	Interval DateInterval
	Exclude  bool
}

// SpecialDayResolver answers whether a given day (days since epoch) is a
// holiday / day-after-holiday / day-before-holiday / "busy Friday",
// backed by the store's SpecialDate objects. Passed in rather than
// looked up globally so Timetable stays free of store dependencies.
type SpecialDayResolver interface {
	Is(day int32, kind SpecialDayKind) bool
}

// Contains evaluates the timetable at an absolute instant: dayNumber
// (days since epoch, for date-range and special-day matching) and
// minuteOfDay (local minute of day, for time-of-day matching).
func (tt Timetable) Contains(dayNumber int32, weekday int, minuteOfDay int16, sd SpecialDayResolver) bool {
	for _, el := range tt.Elements {
		if el.DateRange.Interval.Contains(dayNumber) == el.DateRange.Exclude {
			continue
		}
		if len(el.Patterns) == 0 {
			return true
		}
		if el.matches(dayNumber, weekday, minuteOfDay, sd) {
			return true
		}
	}
	return false
}

func (el TimeTableElement) matches(day int32, weekday int, minute int16, sd SpecialDayResolver) bool {
	included := false
	for _, p := range el.Patterns {
		hit := p.matchesOne(day, weekday, minute, sd)
		if p.Exclude {
			if hit {
				included = false
			}
		} else if hit {
			included = true
		}
	}
	return included
}

func (p TimePattern) matchesOne(day int32, weekday int, minute int16, sd SpecialDayResolver) bool {
	if p.Special != SpecialDayNone {
		if sd == nil || !sd.Is(day, p.Special) {
			return false
		}
	} else if !p.Weekdays.Has(weekday) {
		return false
	}
	return minute >= p.StartMinute && minute < p.EndMinute
}

// IsNever reports whether the timetable can statically be determined to
// never hold, without reference to a SpecialDayResolver: true only when
// there are no elements at all, or every element's date range covers no
// day (for an excluded range: its interval spans all days).
func (tt Timetable) IsNever() bool {
	for _, el := range tt.Elements {
		iv := el.DateRange.Interval
		if el.DateRange.Exclude {
			if iv.StartDay > minDay || iv.EndDay < maxDay {
				return false
			}
		} else if iv.EndDay >= iv.StartDay {
			return false
		}
	}
	return true
}

// IsAlways reports whether the timetable can statically be determined to
// always hold: a single element, no exclusion, spanning all dates, with
// no restricting patterns.
func (tt Timetable) IsAlways() bool {
	if len(tt.Elements) != 1 {
		return false
	}
	el := tt.Elements[0]
	return !el.DateRange.Exclude &&
		el.DateRange.Interval.StartDay == minDay &&
		el.DateRange.Interval.EndDay == maxDay &&
		len(el.Patterns) == 0
}

const (
	minDay = -1 << 30
	maxDay = 1<<30 - 1
)

// Simplify reduces the timetable against a target evaluation interval
// [fromDay, toDay]: elements wholly outside the interval are dropped,
// and elements wholly covering it with no patterns collapse to a single
// "always" element. The result is equivalent to the original *for any
// instant inside the target interval*, though not necessarily outside
// it.
func (tt Timetable) Simplify(fromDay, toDay int32) Timetable {
	var out Timetable
	for _, el := range tt.Elements {
		lo, hi := el.DateRange.Interval.StartDay, el.DateRange.Interval.EndDay
		if !el.DateRange.Exclude && (hi < fromDay || lo > toDay) {
			continue
		}
		if !el.DateRange.Exclude && lo <= fromDay && hi >= toDay && len(el.Patterns) == 0 {
			return Timetable{Elements: []TimeTableElement{{
				DateRange: DateRange{Interval: DateInterval{StartDay: minDay, EndDay: maxDay}},
			}}}
		}
		out.Elements = append(out.Elements, el)
	}
	return out
}
