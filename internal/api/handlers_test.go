package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careslot/schedule-engine/internal/schedule"
)

// fakeService returns canned results so handler tests cover decoding, routing
// and error mapping without a database.
type fakeService struct {
	submitFn    func(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error)
	approveFn   func(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	bookFn      func(ctx context.Context, id uuid.UUID) (*schedule.Slot, error)
	listSlotsFn func(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]schedule.Slot, error)
}

func (f *fakeService) Submit(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error) {
	return f.submitFn(ctx, draft)
}

func (f *fakeService) Update(ctx context.Context, id uuid.UUID, draft *schedule.Draft) (*schedule.Schedule, error) {
	return nil, schedule.ErrScheduleNotFound
}

func (f *fakeService) Approve(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	return f.approveFn(ctx, id)
}

func (f *fakeService) Reject(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	return nil, schedule.ErrScheduleNotFound
}

func (f *fakeService) Deactivate(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	return nil, schedule.ErrScheduleNotFound
}

func (f *fakeService) Reactivate(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	return nil, schedule.ErrScheduleNotFound
}

func (f *fakeService) Get(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	return nil, schedule.ErrScheduleNotFound
}

func (f *fakeService) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]schedule.Schedule, error) {
	return nil, nil
}

func (f *fakeService) ListSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]schedule.Slot, error) {
	return f.listSlotsFn(ctx, scheduleID, from, to)
}

func (f *fakeService) BookSlot(ctx context.Context, id uuid.UUID) (*schedule.Slot, error) {
	return f.bookFn(ctx, id)
}

func (f *fakeService) ReleaseSlot(ctx context.Context, id uuid.UUID) (*schedule.Slot, error) {
	return nil, schedule.ErrSlotNotBooked
}

func testRouter(svc ScheduleService) http.Handler {
	return NewRouter(RouterConfig{
		Service: svc,
		Logger:  zerolog.Nop(),
		Env:     "test",
		Version: "test",
	})
}

const validBody = `{
	"doctor_id":   "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
	"hospital_id": "6ba7b811-9dad-11d1-80b4-00c04fd430c8",
	"name":        "Morning clinic",
	"type":        "recurring",
	"days_of_week": [1, 3],
	"start_date":  "2025-12-01",
	"start_time":  "09:00",
	"end_time":    "10:00",
	"timezone":    "UTC",
	"slot_duration": 30
}`

func TestSubmitScheduleCreated(t *testing.T) {
	var gotDraft *schedule.Draft
	svc := &fakeService{
		submitFn: func(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error) {
			gotDraft = draft
			sch := &schedule.Schedule{
				ID:          uuid.New(),
				DoctorID:    draft.DoctorID,
				HospitalID:  draft.HospitalID,
				Name:        draft.Name,
				Type:        draft.Type,
				DaysOfWeek:  draft.DaysOfWeek,
				StartDate:   draft.StartDate,
				StartMin:    draft.StartMin,
				EndMin:      draft.EndMin,
				Timezone:    draft.Timezone,
				DurationMin: draft.DurationMin,
				Status:      schedule.StatusPending,
			}
			return sch, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(validBody))
	rec := httptest.NewRecorder()
	testRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}

	if gotDraft.StartMin != 9*60 || gotDraft.EndMin != 10*60 {
		t.Errorf("clock parsing: got %d-%d minutes", gotDraft.StartMin, gotDraft.EndMin)
	}
	if gotDraft.StartDate == nil || gotDraft.StartDate.Format("2006-01-02") != "2025-12-01" {
		t.Errorf("start date parsing: got %v", gotDraft.StartDate)
	}

	var resp ScheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "pending" {
		t.Errorf("response status %q", resp.Status)
	}
	if resp.StartTime != "09:00" || resp.EndTime != "10:00" {
		t.Errorf("response times %s-%s", resp.StartTime, resp.EndTime)
	}
}

func TestSubmitScheduleBadRequests(t *testing.T) {
	svc := &fakeService{
		submitFn: func(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error) {
			t.Fatal("service must not be called for malformed requests")
			return nil, nil
		},
	}
	router := testRouter(svc)

	cases := []struct {
		name string
		body string
	}{
		{"not json", "{nope"},
		{"bad doctor id", strings.Replace(validBody, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", "nope", 1)},
		{"bad clock", strings.Replace(validBody, `"09:00"`, `"9am"`, 1)},
		{"bad date", strings.Replace(validBody, `"2025-12-01"`, `"01/12/2025"`, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400; body %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestSubmitScheduleValidationError(t *testing.T) {
	svc := &fakeService{
		submitFn: func(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error) {
			return nil, &schedule.ValidationError{
				Rule:    schedule.RuleWeekdayNotInRange,
				Message: "weekday 1 never occurs between 2025-12-02 and 2025-12-07",
			}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(validBody))
	rec := httptest.NewRecorder()
	testRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d, want 422", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != schedule.RuleWeekdayNotInRange {
		t.Errorf("error code %q, want %q", resp.Error, schedule.RuleWeekdayNotInRange)
	}
}

func TestSubmitScheduleConflict(t *testing.T) {
	conflictID := uuid.New()
	svc := &fakeService{
		submitFn: func(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error) {
			return nil, &schedule.ConflictError{ConflictingID: conflictID, ConflictingName: "Wednesday cover"}
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/schedules", strings.NewReader(validBody))
	rec := httptest.NewRecorder()
	testRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["conflicting_schedule"] != conflictID.String() {
		t.Errorf("conflicting_schedule %q, want %q", resp["conflicting_schedule"], conflictID)
	}
	if resp["conflicting_name"] != "Wednesday cover" {
		t.Errorf("conflicting_name %q", resp["conflicting_name"])
	}
}

func TestApproveRoutes(t *testing.T) {
	id := uuid.New()
	svc := &fakeService{
		approveFn: func(ctx context.Context, got uuid.UUID) (*schedule.Schedule, error) {
			if got != id {
				t.Errorf("approve called with %s, want %s", got, id)
			}
			return &schedule.Schedule{ID: got, Status: schedule.StatusApproved, Type: schedule.TypeRecurring, Timezone: "UTC"}, nil
		},
	}
	router := testRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/schedules/"+id.String()+"/approve", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}

	// Non-UUID path parameter is rejected before the service runs.
	req = httptest.NewRequest(http.MethodPost, "/schedules/not-a-uuid/approve", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestBookSlotConflict(t *testing.T) {
	svc := &fakeService{
		bookFn: func(ctx context.Context, id uuid.UUID) (*schedule.Slot, error) {
			return nil, schedule.ErrSlotNotAvailable
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/slots/"+uuid.NewString()+"/book", nil)
	rec := httptest.NewRecorder()
	testRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d, want 409", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "slot_not_available" {
		t.Errorf("error code %q", resp.Error)
	}
}

func TestListSlotsRange(t *testing.T) {
	scheduleID := uuid.New()
	var gotFrom, gotTo time.Time
	svc := &fakeService{
		listSlotsFn: func(ctx context.Context, id uuid.UUID, from, to time.Time) ([]schedule.Slot, error) {
			gotFrom, gotTo = from, to
			return []schedule.Slot{{
				ID:         uuid.New(),
				ScheduleID: id,
				Date:       schedule.NewDate(2025, time.December, 3),
				StartAt:    time.Date(2025, time.December, 3, 9, 0, 0, 0, time.UTC),
				EndAt:      time.Date(2025, time.December, 3, 9, 30, 0, 0, time.UTC),
				Status:     schedule.SlotAvailable,
			}}, nil
		},
	}

	url := "/schedules/" + scheduleID.String() + "/slots?from=2025-12-01&to=2025-12-07"
	req := httptest.NewRequest(http.MethodGet, url, nil)
	rec := httptest.NewRecorder()
	testRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body)
	}
	if gotFrom.Format(dateLayout) != "2025-12-01" || gotTo.Format(dateLayout) != "2025-12-07" {
		t.Errorf("range %s..%s", gotFrom, gotTo)
	}

	var resp []SlotResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 1 || resp[0].Date != "2025-12-03" {
		t.Errorf("unexpected slot listing: %+v", resp)
	}
}
