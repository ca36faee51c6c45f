package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue wire contract. Initial generation dedupes by schedule so a rapid
// re-approval cannot start two generations; backfill keys carry the run day
// so the daily trigger never collapses across days, while same-day
// re-triggers coalesce (or stay distinct with timestamp keys, see
// BackfillJobKey).
const (
	JobGenerateInitial = "generate-initial-slots"
	JobBackfill        = "fill-missing-slots"
	JobExpire          = "scheduleExpire"
)

// GenerationPayload is the body of every engine job.
type GenerationPayload struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
}

// Enqueuer is the slice of the queue the engine needs.
type Enqueuer interface {
	// Enqueue schedules a job unless one with the same key is pending.
	Enqueue(ctx context.Context, name, key string, payload any, delay time.Duration) error
	// Replace schedules a job, overwriting a pending one with the same key.
	Replace(ctx context.Context, name, key string, payload any, delay time.Duration) error
	// Remove drops a pending job by key; unknown keys are a no-op.
	Remove(ctx context.Context, key string) error
}

func InitialJobKey(scheduleID uuid.UUID) string {
	return fmt.Sprintf("initialSlot-%s", scheduleID)
}

// BackfillJobKey derives the backfill dedup key. With dedupDaily the key is
// date-suffixed so same-day re-triggers are a no-op; otherwise it is
// timestamp-suffixed and every trigger becomes its own job.
func BackfillJobKey(scheduleID uuid.UUID, at time.Time, dedupDaily bool) string {
	if dedupDaily {
		return fmt.Sprintf("fill-%s-%s", scheduleID, at.Format("20060102"))
	}
	return fmt.Sprintf("fill-%s-%d", scheduleID, at.UnixMilli())
}

func ExpireJobKey(scheduleID uuid.UUID) string {
	return fmt.Sprintf("expire-schedule%s", scheduleID)
}

func EnqueueInitial(ctx context.Context, q Enqueuer, scheduleID uuid.UUID) error {
	return q.Enqueue(ctx, JobGenerateInitial, InitialJobKey(scheduleID),
		GenerationPayload{ScheduleID: scheduleID}, 0)
}

func EnqueueBackfill(ctx context.Context, q Enqueuer, scheduleID uuid.UUID, at time.Time, dedupDaily bool) error {
	return q.Enqueue(ctx, JobBackfill, BackfillJobKey(scheduleID, at, dedupDaily),
		GenerationPayload{ScheduleID: scheduleID}, 0)
}

// ScheduleExpire arms the one-shot expiry timer. Re-invoking replaces the
// pending timer, which is how schedule edits move the expiry instant.
func ScheduleExpire(ctx context.Context, q Enqueuer, scheduleID uuid.UUID, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return q.Replace(ctx, JobExpire, ExpireJobKey(scheduleID),
		GenerationPayload{ScheduleID: scheduleID}, delay)
}

// CancelExpire drops a pending expiry timer. Needed when an edit lifts the
// end date and the schedule no longer has a last valid instant.
func CancelExpire(ctx context.Context, q Enqueuer, scheduleID uuid.UUID) error {
	return q.Remove(ctx, ExpireJobKey(scheduleID))
}
