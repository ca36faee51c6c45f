package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrSlotNotAvailable  = errors.New("slot is not available")
	ErrSlotNotBooked     = errors.New("slot is not booked")
	ErrInvalidTransition = errors.New("invalid schedule status transition")
)

// Service runs the synchronous half of the engine: validation and overlap
// detection on the request path, lifecycle transitions, and handing work to
// the queue on approval.
type Service struct {
	repo     Repository
	q        Enqueuer
	detector *Detector

	dedupBackfillDaily bool

	log zerolog.Logger
	now func() time.Time
}

func NewService(repo Repository, q Enqueuer, detector *Detector, dedupBackfillDaily bool, log zerolog.Logger) *Service {
	return &Service{
		repo:               repo,
		q:                  q,
		detector:           detector,
		dedupBackfillDaily: dedupBackfillDaily,
		log:                log,
		now:                time.Now,
	}
}

// Submit validates a draft, checks it against the doctor's approved
// schedules, and persists it as pending. Both checks run inline so a
// schedule that can never produce a slot is rejected at submission time.
func (s *Service) Submit(ctx context.Context, draft *Draft) (*Schedule, error) {
	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}

	candidate := draftToSchedule(draft)
	if err := s.ensureNoOverlap(ctx, draft.DoctorID, candidate, uuid.Nil); err != nil {
		return nil, err
	}

	candidate.ID = uuid.New()
	candidate.Status = StatusPending
	if err := s.repo.CreateSchedule(ctx, candidate); err != nil {
		return nil, fmt.Errorf("persist schedule: %w", err)
	}

	s.log.Info().
		Str("schedule_id", candidate.ID.String()).
		Str("doctor_id", draft.DoctorID.String()).
		Str("type", string(draft.Type)).
		Msg("schedule submitted")

	return candidate, nil
}

// Update re-runs the submission checks against all other approved schedules
// and, for an approved schedule, re-arms the expiry timer and enqueues a
// backfill so the slot horizon reflects the new definition.
func (s *Service) Update(ctx context.Context, id uuid.UUID, draft *Draft) (*Schedule, error) {
	existing, err := s.repo.GetScheduleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := ValidateDraft(draft); err != nil {
		return nil, err
	}
	if draft.DoctorID != existing.DoctorID || draft.HospitalID != existing.HospitalID {
		// Ownership is fixed at submission; an edit only reshapes the window.
		return nil, validationErrf(RuleImmutableOwner, "doctor and hospital cannot change on edit")
	}

	candidate := draftToSchedule(draft)
	if err := s.ensureNoOverlap(ctx, draft.DoctorID, candidate, id); err != nil {
		return nil, err
	}

	candidate.ID = id
	candidate.Status = existing.Status
	if err := s.repo.UpdateScheduleDefinition(ctx, candidate); err != nil {
		return nil, err
	}

	if existing.Status == StatusApproved {
		if err := s.armExpiry(ctx, candidate); err != nil {
			return nil, err
		}
		at := s.now()
		if err := EnqueueBackfill(ctx, s.q, id, at, s.dedupBackfillDaily); err != nil {
			return nil, fmt.Errorf("enqueue backfill after edit: %w", err)
		}
	}

	s.log.Info().Str("schedule_id", id.String()).Msg("schedule updated")
	return s.repo.GetScheduleByID(ctx, id)
}

// Approve transitions pending→approved, kicks off initial slot generation
// and arms the expiry timer. Generation is asynchronous so approval latency
// does not depend on the size of the slot batch.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	sch, err := s.repo.UpdateScheduleStatus(ctx, id, StatusPending, StatusApproved)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, s.explainTransition(ctx, id, StatusApproved)
		}
		return nil, err
	}

	if err := EnqueueInitial(ctx, s.q, id); err != nil {
		return nil, fmt.Errorf("enqueue initial generation: %w", err)
	}
	if err := s.armExpiry(ctx, sch); err != nil {
		return nil, err
	}

	s.log.Info().Str("schedule_id", id.String()).Msg("schedule approved")
	return sch, nil
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	sch, err := s.repo.UpdateScheduleStatus(ctx, id, StatusPending, StatusRejected)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, s.explainTransition(ctx, id, StatusRejected)
		}
		return nil, err
	}

	s.log.Info().Str("schedule_id", id.String()).Msg("schedule rejected")
	return sch, nil
}

// Deactivate pauses future backfill without touching already-generated
// slots. Admin-reversible via Reactivate.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.repo.SetDeactivated(ctx, id, true)
}

func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	sch, err := s.repo.SetDeactivated(ctx, id, false)
	if err != nil {
		return nil, err
	}

	// Catch up immediately rather than waiting for the next daily run.
	if sch.Status == StatusApproved && !sch.Expired && sch.Type != TypeOneTime {
		if err := EnqueueBackfill(ctx, s.q, id, s.now(), s.dedupBackfillDaily); err != nil {
			return nil, fmt.Errorf("enqueue backfill on reactivation: %w", err)
		}
	}
	return sch, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.repo.GetScheduleByID(ctx, id)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error) {
	return s.repo.ListSchedulesByDoctor(ctx, doctorID)
}

func (s *Service) ListSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]Slot, error) {
	if _, err := s.repo.GetScheduleByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.repo.ListSlots(ctx, scheduleID, DateOnly(from), DateOnly(to))
}

// BookSlot is the hook the appointment system calls to claim a slot.
func (s *Service) BookSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot.Status != SlotAvailable {
		return nil, ErrSlotNotAvailable
	}

	updated, err := s.repo.UpdateSlotStatus(ctx, id, SlotAvailable, SlotBooked)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			// Lost the race to another booking.
			return nil, ErrSlotNotAvailable
		}
		return nil, err
	}
	return updated, nil
}

// ReleaseSlot reverts a booked slot to available on cancellation.
func (s *Service) ReleaseSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, err := s.repo.GetSlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if slot.Status != SlotBooked {
		return nil, ErrSlotNotBooked
	}

	updated, err := s.repo.UpdateSlotStatus(ctx, id, SlotBooked, SlotAvailable)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return nil, ErrSlotNotBooked
		}
		return nil, err
	}
	return updated, nil
}

// ensureNoOverlap loads the doctor's approved schedules and fails fast on
// the first conflict. excludeID skips the schedule being edited.
func (s *Service) ensureNoOverlap(ctx context.Context, doctorID uuid.UUID, candidate *Schedule, excludeID uuid.UUID) error {
	existing, err := s.repo.ListApprovedByDoctor(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("load approved schedules: %w", err)
	}

	for i := range existing {
		other := &existing[i]
		if other.ID == excludeID {
			continue
		}
		if s.detector.Conflicts(candidate, other) {
			return &ConflictError{ConflictingID: other.ID, ConflictingName: other.Name}
		}
	}
	return nil
}

// armExpiry schedules (or re-schedules) the one-shot expiry job at the
// schedule's last valid instant. Open-ended recurring schedules never expire
// on a timer.
func (s *Service) armExpiry(ctx context.Context, sch *Schedule) error {
	last, ok := sch.LastValidInstant()
	if !ok {
		// An edit can lift the end date; a previously armed timer must not
		// stay pending for a schedule that no longer expires.
		if err := CancelExpire(ctx, s.q, sch.ID); err != nil {
			return fmt.Errorf("cancel expiry job: %w", err)
		}
		return nil
	}
	delay := last.Sub(s.now())
	if err := ScheduleExpire(ctx, s.q, sch.ID, delay); err != nil {
		return fmt.Errorf("schedule expiry job: %w", err)
	}
	return nil
}

// explainTransition turns the guarded-update miss into a precise error: the
// schedule either does not exist or is not pending.
func (s *Service) explainTransition(ctx context.Context, id uuid.UUID, to ScheduleStatus) error {
	if _, err := s.repo.GetScheduleByID(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("%w: schedule %s cannot move to %s", ErrInvalidTransition, id, to)
}

func draftToSchedule(d *Draft) *Schedule {
	days := d.DaysOfWeek
	if d.Type == TypeOneTime {
		days = nil
	}

	var startDate, endDate *time.Time
	if d.StartDate != nil {
		v := DateOnly(*d.StartDate)
		startDate = &v
	}
	if d.EndDate != nil {
		v := DateOnly(*d.EndDate)
		endDate = &v
	}

	return &Schedule{
		DoctorID:    d.DoctorID,
		HospitalID:  d.HospitalID,
		Name:        d.Name,
		Type:        d.Type,
		DaysOfWeek:  days,
		StartDate:   startDate,
		EndDate:     endDate,
		StartMin:    d.StartMin,
		EndMin:      d.EndMin,
		Timezone:    d.Timezone,
		DurationMin: d.DurationMin,
	}
}
