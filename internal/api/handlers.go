package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/schedule-engine/internal/schedule"
)

// ScheduleService is the surface the handlers need from the engine.
type ScheduleService interface {
	Submit(ctx context.Context, draft *schedule.Draft) (*schedule.Schedule, error)
	Update(ctx context.Context, id uuid.UUID, draft *schedule.Draft) (*schedule.Schedule, error)
	Approve(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	Reject(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	Reactivate(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	Get(ctx context.Context, id uuid.UUID) (*schedule.Schedule, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]schedule.Schedule, error)
	ListSlots(ctx context.Context, scheduleID uuid.UUID, from, to time.Time) ([]schedule.Slot, error)
	BookSlot(ctx context.Context, id uuid.UUID) (*schedule.Slot, error)
	ReleaseSlot(ctx context.Context, id uuid.UUID) (*schedule.Slot, error)
}

func submitScheduleHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		draft, err := req.toDraft()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		sch, err := svc.Submit(r.Context(), draft)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, scheduleResponse(sch))
	}
}

func updateScheduleHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		draft, err := req.toDraft()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		sch, err := svc.Update(r.Context(), id, draft)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, scheduleResponse(sch))
	}
}

func transitionHandler(fn func(context.Context, uuid.UUID) (*schedule.Schedule, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		sch, err := fn(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, scheduleResponse(sch))
	}
}

func getScheduleHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		sch, err := svc.Get(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, scheduleResponse(sch))
	}
}

func listSchedulesHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(r.URL.Query().Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		schedules, err := svc.ListByDoctor(r.Context(), doctorID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]ScheduleResponse, 0, len(schedules))
		for i := range schedules {
			resp = append(resp, scheduleResponse(&schedules[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		now := time.Now()
		from := now
		to := now.AddDate(0, 0, 30)

		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			from = t
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
			to = t
		}

		slots, err := svc.ListSlots(r.Context(), id, from, to)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for i := range slots {
			resp = append(resp, slotResponse(&slots[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func slotTransitionHandler(fn func(context.Context, uuid.UUID) (*schedule.Slot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		slot, err := fn(r.Context(), id)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slotResponse(slot))
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func handleScheduleError(w http.ResponseWriter, err error) {
	var validationErr *schedule.ValidationError
	var conflictErr *schedule.ConflictError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusUnprocessableEntity, validationErr.Rule, validationErr.Message)
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":                "schedule_conflict",
			"details":              err.Error(),
			"conflicting_schedule": conflictErr.ConflictingID.String(),
			"conflicting_name":     conflictErr.ConflictingName,
		})
	case errors.Is(err, schedule.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, schedule.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrSlotNotAvailable):
		writeError(w, http.StatusConflict, "slot_not_available", err.Error())
	case errors.Is(err, schedule.ErrSlotNotBooked):
		writeError(w, http.StatusConflict, "slot_not_booked", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
