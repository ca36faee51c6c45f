package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ScheduleType string

const (
	TypeOneTime   ScheduleType = "one_time"
	TypeTemporary ScheduleType = "temporary"
	TypeRecurring ScheduleType = "recurring"
)

type ScheduleStatus string

const (
	StatusPending  ScheduleStatus = "pending"
	StatusApproved ScheduleStatus = "approved"
	StatusRejected ScheduleStatus = "rejected"
)

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotCancelled SlotStatus = "cancelled"
	SlotExpired   SlotStatus = "expired"
)

// Schedule is a doctor's declared availability pattern. Dates are calendar
// dates at midnight UTC; StartMin/EndMin are local wall-clock minutes since
// midnight, interpreted in Timezone.
type Schedule struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	HospitalID  uuid.UUID
	Name        string
	Type        ScheduleType
	DaysOfWeek  []int // 0=Sunday .. 6=Saturday
	StartDate   *time.Time
	EndDate     *time.Time
	StartMin    int
	EndMin      int
	Timezone    string
	DurationMin int
	Status      ScheduleStatus
	Deactivated bool
	Expired     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Slot is one bookable unit of time produced from a Schedule. Date is the
// local calendar date the slot belongs to; StartAt/EndAt are absolute.
type Slot struct {
	ID         uuid.UUID
	ScheduleID uuid.UUID
	Date       time.Time
	StartAt    time.Time
	EndAt      time.Time
	Status     SlotStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SlotSpan is a materialized but not yet persisted slot.
type SlotSpan struct {
	Date    time.Time
	StartAt time.Time
	EndAt   time.Time
}

// Draft is a schedule submission before persistence.
type Draft struct {
	DoctorID    uuid.UUID
	HospitalID  uuid.UUID
	Name        string
	Type        ScheduleType
	DaysOfWeek  []int
	StartDate   *time.Time
	EndDate     *time.Time
	StartMin    int
	EndMin      int
	Timezone    string
	DurationMin int
}

// HasWeekday reports whether day (0=Sunday) is in the schedule's pattern.
func (s *Schedule) HasWeekday(day int) bool {
	for _, d := range s.DaysOfWeek {
		if d == day {
			return true
		}
	}
	return false
}

// Location resolves the schedule's IANA timezone. Validation happens at
// submission, so a failure here means data corruption.
func (s *Schedule) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule %s has invalid timezone %q: %w", s.ID, s.Timezone, err)
	}
	return loc, nil
}

// LastValidInstant computes the final moment the schedule can produce a slot.
// Open-ended recurring schedules have none (ok=false).
func (s *Schedule) LastValidInstant() (time.Time, bool) {
	var last *time.Time
	switch s.Type {
	case TypeOneTime:
		last = s.StartDate
	default:
		last = s.EndDate
	}
	if last == nil {
		return time.Time{}, false
	}

	loc, err := s.Location()
	if err != nil {
		loc = time.UTC
	}
	return atMinutes(*last, s.EndMin, loc), true
}

// DateOnly normalizes t to its calendar date at midnight UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NewDate builds a calendar date at midnight UTC.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// atMinutes places a wall-clock time (minutes since midnight) on a calendar
// date in loc. Built with time.Date so DST days keep local-time semantics.
func atMinutes(date time.Time, minutes int, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseClock parses HH:MM into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
