package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrSlotNotFound     = errors.New("slot not found")
)

// Repository contains all DB interactions needed by the engine.
type Repository interface {
	CreateSchedule(ctx context.Context, s *Schedule) error
	UpdateScheduleDefinition(ctx context.Context, s *Schedule) error
	GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error)

	// For overlap checks: the universe of schedules that can conflict.
	ListApprovedByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error)

	// Guarded transitions
	UpdateScheduleStatus(ctx context.Context, id uuid.UUID, from, to ScheduleStatus) (*Schedule, error)
	SetDeactivated(ctx context.Context, id uuid.UUID, deactivated bool) (*Schedule, error)

	// MarkExpired sets the expired flag exactly once; the bool reports
	// whether this call was the one that flipped it.
	MarkExpired(ctx context.Context, id uuid.UUID) (bool, error)

	// Daily backfill trigger
	ListBackfillable(ctx context.Context) ([]Schedule, error)

	// Slot generation: insert if absent on (schedule_id, date, start_at),
	// never touching an existing row. The bool reports whether a row was
	// actually inserted.
	InsertSlotIfAbsent(ctx context.Context, slot *Slot) (bool, error)

	// Slot lifecycle
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]Slot, error)
	UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error)
	ExpireAvailableSlots(ctx context.Context, scheduleID uuid.UUID, from time.Time) (int64, error)

	// ExpireElapsedSlots retires available slots, across all schedules,
	// whose window ended at or before the given instant.
	ExpireElapsedSlots(ctx context.Context, before time.Time) (int64, error)
}
