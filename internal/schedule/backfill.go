package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// BackfillTrigger enqueues one backfill job per active non-one-time schedule
// once per calendar day at a fixed local wall-clock time. It keeps no "last
// run" state: a missed run is caught up by the next one because the workers
// recompute the horizon from scratch.
type BackfillTrigger struct {
	repo       Repository
	q          Enqueuer
	runAtMin   int // minutes since local midnight
	loc        *time.Location
	dedupDaily bool

	log zerolog.Logger
	now func() time.Time
}

func NewBackfillTrigger(repo Repository, q Enqueuer, runAt string, loc *time.Location, dedupDaily bool, log zerolog.Logger) (*BackfillTrigger, error) {
	runAtMin, err := ParseClock(runAt)
	if err != nil {
		return nil, err
	}
	return &BackfillTrigger{
		repo:       repo,
		q:          q,
		runAtMin:   runAtMin,
		loc:        loc,
		dedupDaily: dedupDaily,
		log:        log,
		now:        time.Now,
	}, nil
}

// Run blocks until ctx is cancelled, firing once per day.
func (t *BackfillTrigger) Run(ctx context.Context) {
	t.log.Info().
		Str("run_at", FormatClock(t.runAtMin)).
		Str("timezone", t.loc.String()).
		Msg("daily backfill trigger started")

	for {
		next := t.nextRun(t.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			t.log.Info().Msg("daily backfill trigger stopped")
			return
		case <-timer.C:
		}

		t.runOnce(ctx)
	}
}

// nextRun computes the next occurrence of the configured wall-clock time in
// the trigger's timezone, strictly after now.
func (t *BackfillTrigger) nextRun(now time.Time) time.Time {
	local := now.In(t.loc)
	run := time.Date(local.Year(), local.Month(), local.Day(),
		t.runAtMin/60, t.runAtMin%60, 0, 0, t.loc)
	if !run.After(local) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

func (t *BackfillTrigger) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	start := t.now()

	// Sweep slots whose window has fully elapsed. Schedule expiry only
	// covers schedules that end; this catches everything else.
	swept, err := t.repo.ExpireElapsedSlots(runCtx, start)
	if err != nil {
		t.log.Error().Err(err).Msg("expire elapsed slots")
	}

	schedules, err := t.repo.ListBackfillable(runCtx)
	if err != nil {
		t.log.Error().Err(err).Msg("list backfillable schedules")
		return
	}

	enqueued := 0
	for _, sch := range schedules {
		if err := EnqueueBackfill(runCtx, t.q, sch.ID, start, t.dedupDaily); err != nil {
			t.log.Error().Err(err).Str("schedule_id", sch.ID.String()).Msg("enqueue backfill")
			continue
		}
		enqueued++
	}

	t.log.Info().
		Int("schedules", len(schedules)).
		Int("enqueued", enqueued).
		Int64("slots_swept", swept).
		Dur("duration", time.Since(start)).
		Msg("daily backfill run complete")
}
