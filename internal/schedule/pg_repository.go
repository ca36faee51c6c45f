package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const scheduleColumns = `
	id, doctor_id, hospital_id, name, type, days_of_week,
	start_date, end_date, start_min, end_min, timezone, duration_min,
	status, deactivated, expired, created_at, updated_at`

const slotColumns = `
	id, schedule_id, date, start_at, end_at, status, created_at, updated_at`

// Helpers

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var days []int32
	var startDate, endDate *time.Time

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.HospitalID,
		&s.Name,
		&s.Type,
		&days,
		&startDate,
		&endDate,
		&s.StartMin,
		&s.EndMin,
		&s.Timezone,
		&s.DurationMin,
		&s.Status,
		&s.Deactivated,
		&s.Expired,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.DaysOfWeek = make([]int, len(days))
	for i, d := range days {
		s.DaysOfWeek[i] = int(d)
	}
	s.StartDate = startDate
	s.EndDate = endDate
	return &s, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var sl Slot

	err := row.Scan(
		&sl.ID,
		&sl.ScheduleID,
		&sl.Date,
		&sl.StartAt,
		&sl.EndAt,
		&sl.Status,
		&sl.CreatedAt,
		&sl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &sl, nil
}

func daysToInt32(days []int) []int32 {
	out := make([]int32, len(days))
	for i, d := range days {
		out[i] = int32(d)
	}
	return out
}

func collectSchedules(rows pgx.Rows) ([]Schedule, error) {
	defer rows.Close()

	var result []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) CreateSchedule(ctx context.Context, s *Schedule) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedules (
			id, doctor_id, hospital_id, name, type, days_of_week,
			start_date, end_date, start_min, end_min, timezone, duration_min,
			status, deactivated, expired, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, false, false, now(), now())
	`, s.ID, s.DoctorID, s.HospitalID, s.Name, s.Type, daysToInt32(s.DaysOfWeek),
		s.StartDate, s.EndDate, s.StartMin, s.EndMin, s.Timezone, s.DurationMin, s.Status)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// UpdateScheduleDefinition rewrites the window and pattern columns only.
// doctor_id and hospital_id are immutable after submission; the service
// rejects drafts that try to change them.
func (r *PgRepository) UpdateScheduleDefinition(ctx context.Context, s *Schedule) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET name = $2,
		    type = $3,
		    days_of_week = $4,
		    start_date = $5,
		    end_date = $6,
		    start_min = $7,
		    end_min = $8,
		    timezone = $9,
		    duration_min = $10,
		    updated_at = now()
		WHERE id = $1
	`, s.ID, s.Name, s.Type, daysToInt32(s.DaysOfWeek), s.StartDate, s.EndDate,
		s.StartMin, s.EndMin, s.Timezone, s.DurationMin)
	if err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (r *PgRepository) GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE id = $1
	`, id)
	return scanSchedule(row)
}

func (r *PgRepository) ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

func (r *PgRepository) ListApprovedByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE doctor_id = $1
		  AND status = 'approved'
		  AND NOT expired
	`, doctorID)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

func (r *PgRepository) UpdateScheduleStatus(ctx context.Context, id uuid.UUID, from, to ScheduleStatus) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+scheduleColumns+`
	`, id, to, from)
	return scanSchedule(row)
}

func (r *PgRepository) SetDeactivated(ctx context.Context, id uuid.UUID, deactivated bool) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedules
		SET deactivated = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+scheduleColumns+`
	`, id, deactivated)
	return scanSchedule(row)
}

func (r *PgRepository) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE schedules
		SET expired = true,
		    updated_at = now()
		WHERE id = $1
		  AND NOT expired
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark schedule expired: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) ListBackfillable(ctx context.Context) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM schedules
		WHERE status = 'approved'
		  AND NOT deactivated
		  AND NOT expired
		  AND type != 'one_time'
	`)
	if err != nil {
		return nil, err
	}
	return collectSchedules(rows)
}

// InsertSlotIfAbsent is the idempotency point of generation: the unique
// index on (schedule_id, date, start_at) makes insert-if-absent correct even
// when two workers race.
func (r *PgRepository) InsertSlotIfAbsent(ctx context.Context, slot *Slot) (bool, error) {
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, schedule_id, date, start_at, end_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (schedule_id, date, start_at) DO NOTHING
	`, slot.ID, slot.ScheduleID, slot.Date, slot.StartAt, slot.EndAt, slot.Status)
	if err != nil {
		return false, fmt.Errorf("insert slot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE schedule_id = $1
		  AND date >= $2
		  AND date <= $3
		ORDER BY start_at
	`, scheduleID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		sl, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+slotColumns+`
	`, id, to, from)
	return scanSlot(row)
}

// ExpireAvailableSlots marks only still-available future slots; booked slots
// are left to the appointment lifecycle to resolve.
func (r *PgRepository) ExpireAvailableSlots(ctx context.Context, scheduleID uuid.UUID, from time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET status = 'expired',
		    updated_at = now()
		WHERE schedule_id = $1
		  AND status = 'available'
		  AND start_at >= $2
	`, scheduleID, from)
	if err != nil {
		return 0, fmt.Errorf("expire slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireElapsedSlots retires available slots whose window has fully elapsed,
// regardless of schedule. Run daily by the backfill trigger so open-ended
// schedules do not accumulate bookable slots in the past.
func (r *PgRepository) ExpireElapsedSlots(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET status = 'expired',
		    updated_at = now()
		WHERE status = 'available'
		  AND end_at <= $1
	`, before)
	if err != nil {
		return 0, fmt.Errorf("expire elapsed slots: %w", err)
	}
	return tag.RowsAffected(), nil
}
