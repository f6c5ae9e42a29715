package tslice

import "testing"

type fixedResolver struct{ holidays map[int32]bool }

func (r fixedResolver) Is(day int32, kind SpecialDayKind) bool {
	if kind != SpecialDayHOL {
		return false
	}
	return r.holidays[day]
}

func TestTimetableContainsDateRange(t *testing.T) {
	tt := Timetable{Elements: []TimeTableElement{
		{DateRange: DateRange{Interval: DateInterval{StartDay: 100, EndDay: 200}}},
	}}
	if !tt.Contains(150, 2, 600, nil) {
		t.Fatal("day within range with no patterns should always match")
	}
	if tt.Contains(500, 2, 600, nil) {
		t.Fatal("day outside range should not match")
	}
}

func TestTimetableWeekdayAndTimeOfDay(t *testing.T) {
	tt := Timetable{Elements: []TimeTableElement{{
		DateRange: DateRange{Interval: DateInterval{StartDay: 0, EndDay: 10000}},
		Patterns: []TimePattern{
			{Weekdays: 1 << 1, StartMinute: 8 * 60, EndMinute: 17 * 60}, // Monday 08:00-17:00
		},
	}}}
	if !tt.Contains(100, 1, 9*60, nil) {
		t.Fatal("Monday at 09:00 should match")
	}
	if tt.Contains(100, 1, 18*60, nil) {
		t.Fatal("Monday at 18:00 should not match (after end)")
	}
	if tt.Contains(100, 2, 9*60, nil) {
		t.Fatal("Tuesday should not match a Monday-only pattern")
	}
}

func TestTimetableExcludePattern(t *testing.T) {
	tt := Timetable{Elements: []TimeTableElement{{
		DateRange: DateRange{Interval: DateInterval{StartDay: 0, EndDay: 10000}},
		Patterns: []TimePattern{
			{Weekdays: AllWeekdays, StartMinute: 0, EndMinute: 24 * 60},
			{Weekdays: AllWeekdays, StartMinute: 12 * 60, EndMinute: 13 * 60, Exclude: true},
		},
	}}}
	if tt.Contains(1, 3, 12*60+30, nil) {
		t.Fatal("excluded lunch window should not match")
	}
	if !tt.Contains(1, 3, 9*60, nil) {
		t.Fatal("time outside the excluded window should match")
	}
}

func TestTimetableSpecialDay(t *testing.T) {
	resolver := fixedResolver{holidays: map[int32]bool{500: true}}
	tt := Timetable{Elements: []TimeTableElement{{
		DateRange: DateRange{Interval: DateInterval{StartDay: 0, EndDay: 10000}},
		Patterns:  []TimePattern{{Special: SpecialDayHOL, StartMinute: 0, EndMinute: 24 * 60}},
	}}}
	if !tt.Contains(500, 3, 60, resolver) {
		t.Fatal("a recognised holiday should match a HOL pattern")
	}
	if tt.Contains(501, 3, 60, resolver) {
		t.Fatal("a non-holiday day should not match a HOL-only pattern")
	}
}

func TestTimetableIsNeverAndIsAlways(t *testing.T) {
	var empty Timetable
	if !empty.IsNever() {
		t.Fatal("an empty timetable should always report IsNever")
	}
	always := Timetable{Elements: []TimeTableElement{{
		DateRange: DateRange{Interval: DateInterval{StartDay: minDay, EndDay: maxDay}},
	}}}
	if !always.IsAlways() {
		t.Fatal("a single all-dates, no-pattern element should report IsAlways")
	}
	if always.IsNever() {
		t.Fatal("an always-true timetable should not report IsNever")
	}
}

func TestTimetableSimplifyDropsOutOfRangeAndCollapsesAlways(t *testing.T) {
	tt := Timetable{Elements: []TimeTableElement{
		{DateRange: DateRange{Interval: DateInterval{StartDay: 0, EndDay: 10}}},     // wholly before target
		{DateRange: DateRange{Interval: DateInterval{StartDay: 50, EndDay: 5000}}},  // wholly covers target, no patterns
		{DateRange: DateRange{Interval: DateInterval{StartDay: 9000, EndDay: 9999}}}, // wholly after target
	}}
	simplified := tt.Simplify(100, 200)
	if len(simplified.Elements) != 1 {
		t.Fatalf("expected the covering element to collapse to one always-element, got %d elements", len(simplified.Elements))
	}
	if !simplified.IsAlways() {
		t.Fatalf("collapsed element should report IsAlways, got %+v", simplified)
	}
	// Equivalent within the target interval: both must agree at every
	// instant inside [100,200].
	if tt.Contains(150, 3, 600, nil) != simplified.Contains(150, 3, 600, nil) {
		t.Fatal("simplified timetable should be equivalent to the original inside the target interval")
	}
}
