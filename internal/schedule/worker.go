package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/schedule-engine/internal/queue"
)

// GenerationWorker holds the asynchronous half of the engine: the handlers
// the queue worker dispatches to. Every handler is idempotent under
// at-least-once delivery; persistence failures bubble up so the queue can
// retry and eventually dead-letter.
type GenerationWorker struct {
	repo        Repository
	q           Enqueuer
	horizonDays int

	log zerolog.Logger
	now func() time.Time
}

func NewGenerationWorker(repo Repository, q Enqueuer, horizonDays int, log zerolog.Logger) *GenerationWorker {
	return &GenerationWorker{
		repo:        repo,
		q:           q,
		horizonDays: horizonDays,
		log:         log,
		now:         time.Now,
	}
}

// Register wires the handlers into a queue worker by job name.
func (w *GenerationWorker) Register(qw *queue.Worker) {
	qw.Handle(JobGenerateInitial, w.HandleGenerateInitial)
	qw.Handle(JobBackfill, w.HandleBackfill)
	qw.Handle(JobExpire, w.HandleExpire)
}

// HandleGenerateInitial materializes the full horizon of a newly approved
// schedule: startDate through endDate if bounded, startDate plus the
// configured horizon otherwise.
func (w *GenerationWorker) HandleGenerateInitial(ctx context.Context, payload []byte) error {
	sch, err := w.loadTarget(ctx, payload)
	if err != nil || sch == nil {
		return err
	}

	from := DateOnly(w.now())
	if sch.StartDate != nil {
		from = DateOnly(*sch.StartDate)
	}
	// A horizon of N days covers [from, from+N-1].
	to := from.AddDate(0, 0, w.horizonDays-1)
	if sch.EndDate != nil {
		to = DateOnly(*sch.EndDate)
	}

	return w.generate(ctx, sch, from, to)
}

// HandleBackfill recomputes the rolling horizon relative to now and fills
// any dates not yet covered. Safe to re-run: generation is an upsert.
func (w *GenerationWorker) HandleBackfill(ctx context.Context, payload []byte) error {
	sch, err := w.loadTarget(ctx, payload)
	if err != nil || sch == nil {
		return err
	}

	from := DateOnly(w.now())
	if sch.StartDate != nil && DateOnly(*sch.StartDate).After(from) {
		from = DateOnly(*sch.StartDate)
	}
	to := from.AddDate(0, 0, w.horizonDays-1)
	if sch.EndDate != nil && DateOnly(*sch.EndDate).Before(to) {
		to = DateOnly(*sch.EndDate)
	}
	if to.Before(from) {
		return nil
	}

	return w.generate(ctx, sch, from, to)
}

// HandleExpire fires at the schedule's last valid instant: flips the
// expired flag once and retires the schedule's remaining available slots.
// The instant is recomputed against the current definition, so a timer that
// predates an edit is dropped or re-armed instead of expiring a schedule
// that is still live.
func (w *GenerationWorker) HandleExpire(ctx context.Context, payload []byte) error {
	var p GenerationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("%w: bad expiry payload: %v", queue.ErrDropJob, err)
	}

	sch, err := w.repo.GetScheduleByID(ctx, p.ScheduleID)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return fmt.Errorf("%w: schedule %s no longer exists", queue.ErrDropJob, p.ScheduleID)
		}
		return fmt.Errorf("load schedule for expiry: %w", err)
	}

	if sch.Expired {
		// Duplicate delivery, or a retry after the slot cascade failed. The
		// flag flips exactly once; the cascade still has to finish.
		_, err := w.repo.ExpireAvailableSlots(ctx, p.ScheduleID, w.now())
		return err
	}

	last, ok := sch.LastValidInstant()
	if !ok {
		w.log.Warn().
			Str("schedule_id", p.ScheduleID.String()).
			Msg("dropping stale expiry timer for open-ended schedule")
		return nil
	}
	if now := w.now(); last.After(now) {
		// The end date moved later since this timer was armed.
		return ScheduleExpire(ctx, w.q, p.ScheduleID, last.Sub(now))
	}

	flipped, err := w.repo.MarkExpired(ctx, p.ScheduleID)
	if err != nil {
		return err
	}

	expired, err := w.repo.ExpireAvailableSlots(ctx, p.ScheduleID, w.now())
	if err != nil {
		return err
	}

	w.log.Info().
		Str("schedule_id", p.ScheduleID.String()).
		Bool("flipped", flipped).
		Int64("slots_expired", expired).
		Msg("schedule expired")
	return nil
}

// loadTarget resolves a generation payload to a schedule that should still
// produce slots. A nil schedule with nil error means skip quietly: the
// schedule was rejected, deactivated or expired after the job was enqueued.
func (w *GenerationWorker) loadTarget(ctx context.Context, payload []byte) (*Schedule, error) {
	var p GenerationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: bad generation payload: %v", queue.ErrDropJob, err)
	}

	sch, err := w.repo.GetScheduleByID(ctx, p.ScheduleID)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, fmt.Errorf("%w: schedule %s no longer exists", queue.ErrDropJob, p.ScheduleID)
		}
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	if sch.Status != StatusApproved || sch.Expired || sch.Deactivated {
		w.log.Debug().
			Str("schedule_id", sch.ID.String()).
			Str("status", string(sch.Status)).
			Bool("expired", sch.Expired).
			Bool("deactivated", sch.Deactivated).
			Msg("skipping generation for inactive schedule")
		return nil, nil
	}
	return sch, nil
}

func (w *GenerationWorker) generate(ctx context.Context, sch *Schedule, from, to time.Time) error {
	spans, err := MaterializeRange(sch, from, to)
	if err != nil {
		return fmt.Errorf("%w: %v", queue.ErrDropJob, err)
	}

	created := 0
	for _, span := range spans {
		inserted, err := w.repo.InsertSlotIfAbsent(ctx, &Slot{
			ScheduleID: sch.ID,
			Date:       span.Date,
			StartAt:    span.StartAt,
			EndAt:      span.EndAt,
			Status:     SlotAvailable,
		})
		if err != nil {
			// Fail the whole job; the queue retries and the upsert makes the
			// re-run harmless.
			return fmt.Errorf("persist slot: %w", err)
		}
		if inserted {
			created++
		}
	}

	w.log.Info().
		Str("schedule_id", sch.ID.String()).
		Str("from", from.Format("2006-01-02")).
		Str("to", to.Format("2006-01-02")).
		Int("materialized", len(spans)).
		Int("created", created).
		Msg("slots generated")
	return nil
}
