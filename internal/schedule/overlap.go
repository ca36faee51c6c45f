package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictError reports the first approved schedule found to overlap a
// candidate. Fail-fast: detection stops at the first conflict.
type ConflictError struct {
	ConflictingID   uuid.UUID
	ConflictingName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflicts with %q (%s)", e.ConflictingName, e.ConflictingID)
}

// Detector decides whether two schedules for the same doctor can both hold.
// Wall-clock ranges from schedules in different timezones are normalized to
// the hospital's reference clock before comparison.
type Detector struct {
	refLoc *time.Location
}

func NewDetector(refLoc *time.Location) *Detector {
	return &Detector{refLoc: refLoc}
}

// Conflicts reports whether candidate and existing can produce slots at the
// same moment. The test is symmetric in its arguments.
func (d *Detector) Conflicts(candidate, existing *Schedule) bool {
	switch {
	case candidate.Type == TypeOneTime && existing.Type == TypeOneTime:
		return d.oneTimeVsOneTime(candidate, existing)
	case candidate.Type == TypeOneTime:
		return d.oneTimeVsPattern(candidate, existing)
	case existing.Type == TypeOneTime:
		return d.oneTimeVsPattern(existing, candidate)
	default:
		return d.patternVsPattern(candidate, existing)
	}
}

func (d *Detector) oneTimeVsOneTime(a, b *Schedule) bool {
	if a.StartDate == nil || b.StartDate == nil {
		return false
	}
	if !DateOnly(*a.StartDate).Equal(DateOnly(*b.StartDate)) {
		return false
	}
	return d.timesIntersect(a, b, DateOnly(*a.StartDate))
}

// oneTimeVsPattern checks a one-time schedule against a temporary or
// recurring one: the single date must land on one of the pattern's weekdays,
// inside the pattern's bounds, with intersecting working hours.
func (d *Detector) oneTimeVsPattern(once, pattern *Schedule) bool {
	if once.StartDate == nil {
		return false
	}
	date := DateOnly(*once.StartDate)

	if !pattern.HasWeekday(int(date.Weekday())) {
		return false
	}
	if pattern.StartDate != nil && date.Before(DateOnly(*pattern.StartDate)) {
		return false
	}
	if pattern.EndDate != nil && date.After(DateOnly(*pattern.EndDate)) {
		return false
	}
	return d.timesIntersect(once, pattern, date)
}

func (d *Detector) patternVsPattern(a, b *Schedule) bool {
	if !dateRangesIntersect(a, b) {
		return false
	}
	if !weekdaysIntersect(a.DaysOfWeek, b.DaysOfWeek) {
		return false
	}
	return d.timesIntersect(a, b, anchorDate(a, b))
}

// timesIntersect compares the two working windows on the hospital's
// reference clock, using onDate to resolve each timezone's offset.
func (d *Detector) timesIntersect(a, b *Schedule, onDate time.Time) bool {
	aStart, aEnd := d.referenceMinutes(a, onDate)
	bStart, bEnd := d.referenceMinutes(b, onDate)
	return aStart < bEnd && aEnd > bStart
}

// referenceMinutes converts a schedule's local working window into minutes
// on the reference clock for the given date.
func (d *Detector) referenceMinutes(s *Schedule, onDate time.Time) (int, int) {
	loc, err := s.Location()
	if err != nil {
		loc = time.UTC
	}

	start := atMinutes(onDate, s.StartMin, loc).In(d.refLoc)
	end := atMinutes(onDate, s.EndMin, loc).In(d.refLoc)

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if endMin <= startMin {
		// Window crosses the reference midnight; extend past 24h so the
		// interval stays ordered.
		endMin += 24 * 60
	}
	return startMin, endMin
}

// dateRangesIntersect treats a missing end date as unbounded and a missing
// start date as already started.
func dateRangesIntersect(a, b *Schedule) bool {
	if a.StartDate != nil && b.EndDate != nil &&
		DateOnly(*a.StartDate).After(DateOnly(*b.EndDate)) {
		return false
	}
	if b.StartDate != nil && a.EndDate != nil &&
		DateOnly(*b.StartDate).After(DateOnly(*a.EndDate)) {
		return false
	}
	return true
}

func weekdaysIntersect(a, b []int) bool {
	for _, da := range a {
		for _, db := range b {
			if da == db {
				return true
			}
		}
	}
	return false
}

// anchorDate picks a concrete date for offset resolution when comparing two
// patterns: the later of the two start dates, or today if neither is set.
func anchorDate(a, b *Schedule) time.Time {
	switch {
	case a.StartDate == nil && b.StartDate == nil:
		return DateOnly(time.Now())
	case a.StartDate == nil:
		return DateOnly(*b.StartDate)
	case b.StartDate == nil:
		return DateOnly(*a.StartDate)
	}
	as := DateOnly(*a.StartDate)
	bs := DateOnly(*b.StartDate)
	if bs.After(as) {
		return bs
	}
	return as
}
