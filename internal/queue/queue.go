package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrJobNotFound = errors.New("job not found")
)

// Queue is a durable, at-least-once work queue on Redis. Due jobs live in a
// sorted set scored by their run-at instant; the job body lives in a hash per
// job key. Deduplication and timer replacement are both expressed through the
// job key.
type Queue struct {
	client *redis.Client
	name   string
}

// Job is the unit of work carried by the queue.
type Job struct {
	Key        string    `json:"key"`
	Name       string    `json:"name"`
	Payload    []byte    `json:"payload"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeadJob is what lands on the dead-letter list after retries are exhausted.
type DeadJob struct {
	Job
	LastError string    `json:"last_error"`
	DiedAt    time.Time `json:"died_at"`
}

func New(client *redis.Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

func (q *Queue) scheduledKey() string     { return fmt.Sprintf("queue:%s:scheduled", q.name) }
func (q *Queue) jobKey(key string) string { return fmt.Sprintf("queue:%s:job:%s", q.name, key) }
func (q *Queue) deadKey() string          { return fmt.Sprintf("queue:%s:dead", q.name) }

func (q *Queue) processingKey(key string) string {
	return fmt.Sprintf("queue:%s:processing:%s", q.name, key)
}

// Enqueue schedules a job to run after delay. If a job with the same key is
// already pending, the call is a no-op: the key is the deduplication unit.
func (q *Queue) Enqueue(ctx context.Context, name, key string, payload any, delay time.Duration) error {
	return q.enqueue(ctx, name, key, payload, delay, false)
}

// Replace schedules a job to run after delay, overwriting any pending job
// with the same key. Used for one-shot timers whose fire instant can move.
func (q *Queue) Replace(ctx context.Context, name, key string, payload any, delay time.Duration) error {
	return q.enqueue(ctx, name, key, payload, delay, true)
}

func (q *Queue) enqueue(ctx context.Context, name, key string, payload any, delay time.Duration, replace bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	now := time.Now()
	score := float64(now.Add(delay).UnixMilli())
	member := redis.Z{Score: score, Member: key}

	if !replace {
		added, err := q.client.ZAddNX(ctx, q.scheduledKey(), member).Result()
		if err != nil {
			return fmt.Errorf("enqueue %s/%s: %w", name, key, err)
		}
		if added == 0 {
			// Same key already pending. Dedup: nothing to do.
			return nil
		}
	} else {
		if err := q.client.ZAdd(ctx, q.scheduledKey(), member).Err(); err != nil {
			return fmt.Errorf("enqueue %s/%s: %w", name, key, err)
		}
	}

	err = q.client.HSet(ctx, q.jobKey(key), map[string]any{
		"name":        name,
		"payload":     string(body),
		"attempts":    0,
		"enqueued_at": now.UnixMilli(),
	}).Err()
	if err != nil {
		return fmt.Errorf("store job body %s/%s: %w", name, key, err)
	}

	return nil
}

// Remove drops a pending job by key. Removing a key with no pending job is
// a no-op.
func (q *Queue) Remove(ctx context.Context, key string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.scheduledKey(), key)
	pipe.Del(ctx, q.jobKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove job %s: %w", key, err)
	}
	return nil
}

// due returns keys of jobs whose run-at instant has passed, oldest first.
func (q *Queue) due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	keys, err := q.client.ZRangeByScore(ctx, q.scheduledKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("range due jobs: %w", err)
	}
	return keys, nil
}

func (q *Queue) load(ctx context.Context, key string) (*Job, error) {
	fields, err := q.client.HGetAll(ctx, q.jobKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", key, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	job := &Job{
		Key:     key,
		Name:    fields["name"],
		Payload: []byte(fields["payload"]),
	}
	if v, ok := fields["attempts"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			job.Attempts = n
		}
	}
	if v, ok := fields["enqueued_at"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			job.EnqueuedAt = time.UnixMilli(ms)
		}
	}
	return job, nil
}

// completeScript removes a job only if its timer has not been replaced with
// a later run since the worker claimed it. A missing timer with a lingering
// body is stale state and gets cleaned up.
var completeScript = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[1], ARGV[1])
if not score then
	redis.call("DEL", KEYS[2])
	return 0
end
if tonumber(score) > tonumber(ARGV[2]) then
	return 0
end
redis.call("ZREM", KEYS[1], ARGV[1])
redis.call("DEL", KEYS[2])
return 1
`)

// complete removes a finished job from the queue, unless the timer was
// re-armed for a future run while the worker was processing it.
func (q *Queue) complete(ctx context.Context, key string, claimedAt time.Time) error {
	keys := []string{q.scheduledKey(), q.jobKey(key)}
	err := completeScript.Run(ctx, q.client, keys, key, claimedAt.UnixMilli()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("complete job %s: %w", key, err)
	}
	return nil
}

// retry pushes the job's run-at instant into the future and bumps attempts.
func (q *Queue) retry(ctx context.Context, job *Job, backoff time.Duration) error {
	attempts := job.Attempts + 1
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.jobKey(job.Key), "attempts", attempts)
	pipe.ZAdd(ctx, q.scheduledKey(), redis.Z{
		Score:  float64(time.Now().Add(backoff).UnixMilli()),
		Member: job.Key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("retry job %s: %w", job.Key, err)
	}
	return nil
}

// deadLetter parks the job for operator attention and removes it from the
// live queue. Dead jobs are never retried automatically.
func (q *Queue) deadLetter(ctx context.Context, job *Job, cause error) error {
	dead := DeadJob{
		Job:       *job,
		LastError: cause.Error(),
		DiedAt:    time.Now(),
	}
	dead.Attempts = job.Attempts + 1

	record, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("marshal dead job %s: %w", job.Key, err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.deadKey(), record)
	pipe.ZRem(ctx, q.scheduledKey(), job.Key)
	pipe.Del(ctx, q.jobKey(job.Key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("dead-letter job %s: %w", job.Key, err)
	}
	return nil
}

// DeadJobs returns up to limit parked jobs, newest first.
func (q *Queue) DeadJobs(ctx context.Context, limit int64) ([]DeadJob, error) {
	raw, err := q.client.LRange(ctx, q.deadKey(), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list dead jobs: %w", err)
	}

	jobs := make([]DeadJob, 0, len(raw))
	for _, r := range raw {
		var d DeadJob
		if err := json.Unmarshal([]byte(r), &d); err != nil {
			continue
		}
		jobs = append(jobs, d)
	}
	return jobs, nil
}

// PendingCount reports how many jobs are waiting or scheduled.
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.scheduledKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count pending jobs: %w", err)
	}
	return n, nil
}
