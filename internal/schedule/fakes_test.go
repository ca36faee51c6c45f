package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory Repository for service and worker tests.
type fakeRepo struct {
	mu        sync.Mutex
	schedules map[uuid.UUID]*Schedule
	slots     map[uuid.UUID]*Slot

	failInserts bool // simulate a storage outage during generation
	failExpire  bool // simulate a transient failure expiring slots
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		schedules: make(map[uuid.UUID]*Schedule),
		slots:     make(map[uuid.UUID]*Slot),
	}
}

func (r *fakeRepo) put(s *Schedule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.schedules[s.ID] = &cp
}

func (r *fakeRepo) CreateSchedule(ctx context.Context, s *Schedule) error {
	r.put(s)
	return nil
}

func (r *fakeRepo) UpdateScheduleDefinition(ctx context.Context, s *Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.schedules[s.ID]
	if !ok {
		return ErrScheduleNotFound
	}
	cp := *s
	cp.Status = existing.Status
	cp.Deactivated = existing.Deactivated
	cp.Expired = existing.Expired
	r.schedules[s.ID] = &cp
	return nil
}

func (r *fakeRepo) GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Schedule
	for _, s := range r.schedules {
		if s.DoctorID == doctorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListApprovedByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Schedule
	for _, s := range r.schedules {
		if s.DoctorID == doctorID && s.Status == StatusApproved && !s.Expired {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateScheduleStatus(ctx context.Context, id uuid.UUID, from, to ScheduleStatus) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.Status != from {
		return nil, ErrScheduleNotFound
	}
	s.Status = to
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) SetDeactivated(ctx context.Context, id uuid.UUID, deactivated bool) (*Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	s.Deactivated = deactivated
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) MarkExpired(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok {
		return false, ErrScheduleNotFound
	}
	if s.Expired {
		return false, nil
	}
	s.Expired = true
	return true, nil
}

func (r *fakeRepo) ListBackfillable(ctx context.Context) ([]Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Schedule
	for _, s := range r.schedules {
		if s.Status == StatusApproved && !s.Deactivated && !s.Expired && s.Type != TypeOneTime {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertSlotIfAbsent(ctx context.Context, slot *Slot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failInserts {
		return false, fmt.Errorf("storage unavailable")
	}
	for _, existing := range r.slots {
		if existing.ScheduleID == slot.ScheduleID &&
			existing.Date.Equal(slot.Date) &&
			existing.StartAt.Equal(slot.StartAt) {
			return false, nil
		}
	}
	if slot.ID == uuid.Nil {
		slot.ID = uuid.New()
	}
	cp := *slot
	r.slots[slot.ID] = &cp
	return true, nil
}

func (r *fakeRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *sl
	return &cp, nil
}

func (r *fakeRepo) ListSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, sl := range r.slots {
		if sl.ScheduleID == scheduleID && !sl.Date.Before(from) && !sl.Date.After(to) {
			out = append(out, *sl)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateSlotStatus(ctx context.Context, id uuid.UUID, from, to SlotStatus) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sl, ok := r.slots[id]
	if !ok || sl.Status != from {
		return nil, ErrSlotNotFound
	}
	sl.Status = to
	cp := *sl
	return &cp, nil
}

func (r *fakeRepo) ExpireAvailableSlots(ctx context.Context, scheduleID uuid.UUID, from time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failExpire {
		return 0, fmt.Errorf("storage unavailable")
	}
	var n int64
	for _, sl := range r.slots {
		if sl.ScheduleID == scheduleID && sl.Status == SlotAvailable && !sl.StartAt.Before(from) {
			sl.Status = SlotExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) ExpireElapsedSlots(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, sl := range r.slots {
		if sl.Status == SlotAvailable && !sl.EndAt.After(before) {
			sl.Status = SlotExpired
			n++
		}
	}
	return n, nil
}

func (r *fakeRepo) slotsFor(scheduleID uuid.UUID) []Slot {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Slot
	for _, sl := range r.slots {
		if sl.ScheduleID == scheduleID {
			out = append(out, *sl)
		}
	}
	return out
}

// fakeQueue records enqueue calls instead of talking to Redis.
type enqueuedJob struct {
	Name    string
	Key     string
	Delay   time.Duration
	Replace bool
}

type fakeQueue struct {
	mu   sync.Mutex
	jobs []enqueuedJob
}

func (q *fakeQueue) Enqueue(ctx context.Context, name, key string, payload any, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.Key == key {
			// Same dedup behaviour as the real queue.
			return nil
		}
	}
	q.jobs = append(q.jobs, enqueuedJob{Name: name, Key: key, Delay: delay})
	return nil
}

func (q *fakeQueue) Replace(ctx context.Context, name, key string, payload any, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.jobs {
		if j.Key == key {
			q.jobs[i] = enqueuedJob{Name: name, Key: key, Delay: delay, Replace: true}
			return nil
		}
	}
	q.jobs = append(q.jobs, enqueuedJob{Name: name, Key: key, Delay: delay, Replace: true})
	return nil
}

func (q *fakeQueue) Remove(ctx context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, j := range q.jobs {
		if j.Key == key {
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *fakeQueue) byName(name string) []enqueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []enqueuedJob
	for _, j := range q.jobs {
		if j.Name == name {
			out = append(out, j)
		}
	}
	return out
}
