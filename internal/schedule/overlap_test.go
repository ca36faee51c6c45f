package schedule

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func utcDetector() *Detector {
	return NewDetector(time.UTC)
}

func oneTime(date time.Time, startMin, endMin int) *Schedule {
	d := DateOnly(date)
	return &Schedule{
		ID:        uuid.New(),
		Type:      TypeOneTime,
		StartDate: &d,
		StartMin:  startMin,
		EndMin:    endMin,
		Timezone:  "UTC",
	}
}

func pattern(typ ScheduleType, days []int, start, end *time.Time, startMin, endMin int) *Schedule {
	return &Schedule{
		ID:         uuid.New(),
		Type:       typ,
		DaysOfWeek: days,
		StartDate:  start,
		EndDate:    end,
		StartMin:   startMin,
		EndMin:     endMin,
		Timezone:   "UTC",
	}
}

func TestConflictsOneTimePairs(t *testing.T) {
	det := utcDetector()
	dec10 := NewDate(2025, time.December, 10)

	cases := []struct {
		name string
		a, b *Schedule
		want bool
	}{
		{
			name: "same date overlapping times",
			a:    oneTime(dec10, 9*60, 10*60),
			b:    oneTime(dec10, 9*60+30, 10*60+30),
			want: true,
		},
		{
			name: "same date touching ranges do not overlap",
			a:    oneTime(dec10, 9*60, 10*60),
			b:    oneTime(dec10, 10*60, 11*60),
			want: false,
		},
		{
			name: "different dates",
			a:    oneTime(dec10, 9*60, 10*60),
			b:    oneTime(dec10.AddDate(0, 0, 1), 9*60, 10*60),
			want: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := det.Conflicts(c.a, c.b); got != c.want {
				t.Errorf("Conflicts = %t, want %t", got, c.want)
			}
		})
	}
}

func TestConflictsOneTimeVsPattern(t *testing.T) {
	det := utcDetector()

	janStart := datePtr(2025, time.January, 1)
	janEnd := datePtr(2025, time.January, 31)
	mondaysInJan := pattern(TypeTemporary, []int{1}, janStart, janEnd, 9*60, 12*60)

	cases := []struct {
		name string
		once *Schedule
		want bool
	}{
		{
			// 2025-01-06 is a Monday inside January.
			name: "monday inside bounds with overlapping hours",
			once: oneTime(NewDate(2025, time.January, 6), 10*60, 11*60),
			want: true,
		},
		{
			// 2025-03-03 is a Monday but past the January bound.
			name: "monday outside bounds",
			once: oneTime(NewDate(2025, time.March, 3), 10*60, 11*60),
			want: false,
		},
		{
			// 2025-01-07 is a Tuesday.
			name: "wrong weekday inside bounds",
			once: oneTime(NewDate(2025, time.January, 7), 10*60, 11*60),
			want: false,
		},
		{
			name: "right day, disjoint hours",
			once: oneTime(NewDate(2025, time.January, 6), 13*60, 14*60),
			want: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := det.Conflicts(c.once, mondaysInJan); got != c.want {
				t.Errorf("Conflicts = %t, want %t", got, c.want)
			}
		})
	}

	// Open-ended recurring: the bound check only applies at the start.
	openMondays := pattern(TypeRecurring, []int{1}, janStart, nil, 9*60, 12*60)
	farFuture := oneTime(NewDate(2026, time.June, 1), 10*60, 11*60) // a Monday
	if !det.Conflicts(farFuture, openMondays) {
		t.Error("expected conflict with open-ended recurring schedule")
	}
}

func TestConflictsPatternPairs(t *testing.T) {
	det := utcDetector()

	janStart := datePtr(2025, time.January, 1)
	janEnd := datePtr(2025, time.January, 31)
	febStart := datePtr(2025, time.February, 1)

	cases := []struct {
		name string
		a, b *Schedule
		want bool
	}{
		{
			name: "same weekday same hours same range",
			a:    pattern(TypeRecurring, []int{1}, janStart, nil, 9*60, 10*60),
			b:    pattern(TypeTemporary, []int{1, 2}, janStart, janEnd, 9*60+30, 11*60),
			want: true,
		},
		{
			name: "disjoint weekdays",
			a:    pattern(TypeRecurring, []int{1}, janStart, nil, 9*60, 10*60),
			b:    pattern(TypeRecurring, []int{2, 4}, janStart, nil, 9*60, 10*60),
			want: false,
		},
		{
			name: "disjoint date ranges",
			a:    pattern(TypeTemporary, []int{1}, janStart, janEnd, 9*60, 10*60),
			b:    pattern(TypeRecurring, []int{1}, febStart, nil, 9*60, 10*60),
			want: false,
		},
		{
			name: "disjoint hours",
			a:    pattern(TypeRecurring, []int{1}, janStart, nil, 9*60, 10*60),
			b:    pattern(TypeRecurring, []int{1}, janStart, nil, 14*60, 16*60),
			want: false,
		},
		{
			name: "both open ended same weekday",
			a:    pattern(TypeRecurring, []int{5}, janStart, nil, 9*60, 10*60),
			b:    pattern(TypeRecurring, []int{5}, febStart, nil, 9*60, 10*60),
			want: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := det.Conflicts(c.a, c.b); got != c.want {
				t.Errorf("Conflicts = %t, want %t", got, c.want)
			}
		})
	}
}

// Conflict detection must not depend on submission order.
func TestConflictsSymmetric(t *testing.T) {
	det := utcDetector()

	janStart := datePtr(2025, time.January, 1)
	janEnd := datePtr(2025, time.January, 31)

	schedules := []*Schedule{
		oneTime(NewDate(2025, time.January, 6), 9*60, 10*60),
		oneTime(NewDate(2025, time.January, 6), 9*60+30, 10*60+30),
		pattern(TypeTemporary, []int{1}, janStart, janEnd, 9*60, 12*60),
		pattern(TypeRecurring, []int{1, 3}, janStart, nil, 11*60, 13*60),
		pattern(TypeRecurring, []int{0, 6}, janStart, nil, 9*60, 17*60),
	}

	for i, a := range schedules {
		for j, b := range schedules {
			if i == j {
				continue
			}
			if det.Conflicts(a, b) != det.Conflicts(b, a) {
				t.Errorf("asymmetric result for pair (%d, %d)", i, j)
			}
		}
	}
}

// Two schedules in different timezones overlap on the reference clock even
// though their local wall-clock numbers are disjoint.
func TestConflictsAcrossTimezones(t *testing.T) {
	det := utcDetector()
	janStart := datePtr(2025, time.January, 6)

	utc := pattern(TypeRecurring, []int{1}, janStart, nil, 9*60, 10*60)

	berlin := pattern(TypeRecurring, []int{1}, janStart, nil, 10*60, 11*60)
	berlin.Timezone = "Europe/Berlin" // UTC+1 in January: 10:00 local is 09:00 UTC

	if !det.Conflicts(utc, berlin) {
		t.Error("expected conflict after timezone normalization")
	}

	disjoint := pattern(TypeRecurring, []int{1}, janStart, nil, 9*60, 10*60)
	disjoint.Timezone = "Europe/Berlin" // 09:00 local is 08:00 UTC
	if det.Conflicts(utc, disjoint) {
		t.Error("expected no conflict for ranges disjoint on the reference clock")
	}
}
