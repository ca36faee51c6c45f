package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/careslot/schedule-engine/internal/redis"
)

// ErrDropJob tells the worker to discard the job without retrying. Handlers
// return it for failures that cannot succeed later, like a deleted schedule.
var ErrDropJob = errors.New("drop job")

// HandlerFunc processes one job payload. A nil return completes the job; any
// other error schedules a retry until the attempt budget runs out.
type HandlerFunc func(ctx context.Context, payload []byte) error

type WorkerConfig struct {
	Concurrency  int
	PollInterval time.Duration
	JobTimeout   time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Worker polls a Queue for due jobs and dispatches them to named handlers.
// A per-key processing lock keeps two workers off the same job; everything
// else relies on handlers being idempotent under at-least-once delivery.
type Worker struct {
	queue    *Queue
	locker   redisclient.Locker
	cfg      WorkerConfig
	log      zerolog.Logger
	handlers map[string]HandlerFunc
}

func NewWorker(q *Queue, locker redisclient.Locker, cfg WorkerConfig, log zerolog.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		queue:    q,
		locker:   locker,
		cfg:      cfg,
		log:      log.With().Str("queue", q.name).Logger(),
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for a job name. Not safe to call after Run.
func (w *Worker) Handle(name string, fn HandlerFunc) {
	w.handlers[name] = fn
}

// Run polls until ctx is cancelled and waits for in-flight jobs to finish.
func (w *Worker) Run(ctx context.Context) {
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info().Int("concurrency", w.cfg.Concurrency).Msg("queue worker started")

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			w.log.Info().Msg("queue worker stopped")
			return
		case <-ticker.C:
		}

		claimedAt := time.Now()
		keys, err := w.queue.due(ctx, claimedAt, int64(w.cfg.Concurrency))
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error().Err(err).Msg("poll due jobs")
			}
			continue
		}

		for _, key := range keys {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return
			}

			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				defer func() { <-sem }()
				w.process(ctx, key, claimedAt)
			}(key)
		}
	}
}

func (w *Worker) process(ctx context.Context, key string, claimedAt time.Time) {
	err := w.locker.WithLock(ctx, w.queue.processingKey(key), func(lockCtx context.Context) error {
		return w.runLocked(lockCtx, key, claimedAt)
	})
	if err != nil && !errors.Is(err, redisclient.ErrLockNotAcquired) && ctx.Err() == nil {
		w.log.Error().Err(err).Str("job_key", key).Msg("process job")
	}
}

func (w *Worker) runLocked(ctx context.Context, key string, claimedAt time.Time) error {
	job, err := w.queue.load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			// Body gone, most likely completed by another worker between the
			// poll and the lock. Drop the stale member if it lingers.
			return w.queue.complete(ctx, key, claimedAt)
		}
		return err
	}

	handler, ok := w.handlers[job.Name]
	if !ok {
		w.log.Error().Str("job", job.Name).Str("job_key", key).Msg("no handler registered, dead-lettering")
		return w.queue.deadLetter(ctx, job, fmt.Errorf("no handler for job %q", job.Name))
	}

	jobCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	handlerErr := handler(jobCtx, job.Payload)

	switch {
	case handlerErr == nil:
		w.log.Info().
			Str("job", job.Name).
			Str("job_key", key).
			Dur("duration", time.Since(start)).
			Msg("job complete")
		return w.queue.complete(ctx, key, claimedAt)

	case errors.Is(handlerErr, ErrDropJob):
		w.log.Warn().
			Str("job", job.Name).
			Str("job_key", key).
			Err(handlerErr).
			Msg("job dropped")
		return w.queue.complete(ctx, key, claimedAt)

	case job.Attempts+1 >= w.cfg.MaxAttempts:
		w.log.Error().
			Str("job", job.Name).
			Str("job_key", key).
			Int("attempts", job.Attempts+1).
			Err(handlerErr).
			Msg("job failed, dead-lettering")
		return w.queue.deadLetter(ctx, job, handlerErr)

	default:
		backoff := w.cfg.RetryBackoff * time.Duration(job.Attempts+1)
		w.log.Warn().
			Str("job", job.Name).
			Str("job_key", key).
			Int("attempt", job.Attempts+1).
			Dur("backoff", backoff).
			Err(handlerErr).
			Msg("job failed, retrying")
		return w.queue.retry(ctx, job, backoff)
	}
}
