package schedule

import (
	"fmt"
	"time"
)

// Validation rule identifiers, carried on ValidationError so callers can
// render the precise violation.
const (
	RuleInvalidDayOfWeek   = "invalid_day_of_week"
	RuleMissingStartDate   = "missing_start_date"
	RuleMissingEndDate     = "missing_end_date"
	RuleInvalidDateOrder   = "invalid_date_order"
	RuleWeekdayNotInRange  = "weekday_not_in_range"
	RuleWeekdayNotUpcoming = "weekday_not_upcoming"
	RuleInvalidTimezone    = "invalid_timezone"
	RuleMissingDaysOfWeek  = "missing_days_of_week"
	RuleInvalidTimeOrder   = "invalid_time_order"
	RuleInvalidDuration    = "invalid_slot_duration"
	RuleInvalidType        = "invalid_schedule_type"
	RuleImmutableOwner     = "immutable_owner"
)

// ValidationError reports a user-correctable calendar inconsistency.
type ValidationError struct {
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schedule validation failed (%s): %s", e.Rule, e.Message)
}

func validationErrf(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// ValidateCalendar checks that a {daysOfWeek, startDate, endDate, timezone}
// combination describes at least one realizable occurrence. Pure; no I/O.
func ValidateCalendar(daysOfWeek []int, startDate, endDate *time.Time, timezone string) error {
	for _, d := range daysOfWeek {
		if d < 0 || d > 6 {
			return validationErrf(RuleInvalidDayOfWeek, "day of week %d is outside 0..6", d)
		}
	}

	if _, err := time.LoadLocation(timezone); err != nil {
		return validationErrf(RuleInvalidTimezone, "unknown timezone %q", timezone)
	}

	if endDate != nil && startDate == nil {
		return validationErrf(RuleMissingStartDate, "end date given without a start date")
	}

	if startDate == nil {
		// Pure weekday pattern, anchored later at approval time.
		return nil
	}

	start := DateOnly(*startDate)

	if endDate != nil {
		end := DateOnly(*endDate)
		if end.Before(start) {
			return validationErrf(RuleInvalidDateOrder, "end date %s precedes start date %s",
				end.Format("2006-01-02"), start.Format("2006-01-02"))
		}
		for _, d := range daysOfWeek {
			first := firstOccurrence(start, d)
			if first.After(end) {
				return validationErrf(RuleWeekdayNotInRange,
					"weekday %d never occurs between %s and %s",
					d, start.Format("2006-01-02"), end.Format("2006-01-02"))
			}
		}
		return nil
	}

	if len(daysOfWeek) > 0 {
		horizon := start.AddDate(0, 0, 7)
		upcoming := false
		for _, d := range daysOfWeek {
			first := firstOccurrence(start, d)
			if !first.After(horizon) {
				upcoming = true
				break
			}
		}
		if !upcoming {
			return validationErrf(RuleWeekdayNotUpcoming,
				"no declared weekday occurs within a week of %s", start.Format("2006-01-02"))
		}
	}

	return nil
}

// ValidateDraft runs the calendar check plus the shape invariants of the
// draft's schedule type.
func ValidateDraft(d *Draft) error {
	switch d.Type {
	case TypeOneTime:
		if d.StartDate == nil {
			return validationErrf(RuleMissingStartDate, "one-time schedule requires a start date")
		}
	case TypeTemporary, TypeRecurring:
		if len(d.DaysOfWeek) == 0 {
			return validationErrf(RuleMissingDaysOfWeek, "%s schedule requires at least one weekday", d.Type)
		}
		if d.Type == TypeTemporary && d.EndDate == nil {
			return validationErrf(RuleMissingEndDate, "temporary schedule requires an end date")
		}
	default:
		return validationErrf(RuleInvalidType, "unknown schedule type %q", d.Type)
	}

	if d.StartMin >= d.EndMin {
		return validationErrf(RuleInvalidTimeOrder, "start time %s is not before end time %s",
			FormatClock(d.StartMin), FormatClock(d.EndMin))
	}
	if d.DurationMin <= 0 {
		return validationErrf(RuleInvalidDuration, "slot duration must be positive, got %d", d.DurationMin)
	}
	if d.EndMin-d.StartMin < d.DurationMin {
		return validationErrf(RuleInvalidDuration,
			"slot duration %dm exceeds the %s-%s working window",
			d.DurationMin, FormatClock(d.StartMin), FormatClock(d.EndMin))
	}

	days := d.DaysOfWeek
	if d.Type == TypeOneTime {
		// One-time schedules derive their single date from StartDate; any
		// weekday pattern on the draft is ignored.
		days = nil
	}

	return ValidateCalendar(days, d.StartDate, d.EndDate, d.Timezone)
}

// firstOccurrence returns the first date on or after start that falls on
// weekday d (0=Sunday). ISO numbering: Monday=1 .. Sunday=7.
func firstOccurrence(start time.Time, d int) time.Time {
	target := d
	if target == 0 {
		target = 7
	}
	current := isoWeekday(start)
	diff := (target - current + 7) % 7
	return start.AddDate(0, 0, diff)
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
