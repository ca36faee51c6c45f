package schedule

import (
	"time"
)

// Materialize produces the slot spans a schedule yields on target, a
// calendar date. A date the schedule does not work on yields an empty
// result; callers rely on that to skip non-working days without
// special-casing. Pure: same inputs, same output, no clock reads.
func Materialize(s *Schedule, target time.Time) ([]SlotSpan, error) {
	target = DateOnly(target)
	if !EligibleOn(s, target) {
		return nil, nil
	}

	loc, err := s.Location()
	if err != nil {
		return nil, err
	}

	var spans []SlotSpan
	// A trailing remainder shorter than one slot is dropped, never truncated.
	for m := s.StartMin; m+s.DurationMin <= s.EndMin; m += s.DurationMin {
		// Both boundaries are built from wall-clock minutes so a DST
		// transition on target keeps patient-facing local-time semantics.
		start := atMinutes(target, m, loc)
		end := atMinutes(target, m+s.DurationMin, loc)
		spans = append(spans, SlotSpan{
			Date:    target,
			StartAt: start.UTC(),
			EndAt:   end.UTC(),
		})
	}
	return spans, nil
}

// MaterializeRange materializes every eligible date in [from, to].
func MaterializeRange(s *Schedule, from, to time.Time) ([]SlotSpan, error) {
	from = DateOnly(from)
	to = DateOnly(to)

	var spans []SlotSpan
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		daily, err := Materialize(s, d)
		if err != nil {
			return nil, err
		}
		spans = append(spans, daily...)
	}
	return spans, nil
}

// EligibleOn reports whether the schedule works on the given calendar date:
// the one-time date itself, or a declared weekday inside the date bounds.
func EligibleOn(s *Schedule, date time.Time) bool {
	date = DateOnly(date)

	if s.Type == TypeOneTime {
		return s.StartDate != nil && date.Equal(DateOnly(*s.StartDate))
	}

	if !s.HasWeekday(int(date.Weekday())) {
		return false
	}
	if s.StartDate != nil && date.Before(DateOnly(*s.StartDate)) {
		return false
	}
	if s.EndDate != nil && date.After(DateOnly(*s.EndDate)) {
		return false
	}
	return true
}
