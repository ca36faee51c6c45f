package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/schedule-engine/internal/schedule"
)

const dateLayout = "2006-01-02"

type ScheduleRequest struct {
	DoctorID     string `json:"doctor_id"`
	HospitalID   string `json:"hospital_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	DaysOfWeek   []int  `json:"days_of_week,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	EndDate      string `json:"end_date,omitempty"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	Timezone     string `json:"timezone"`
	SlotDuration int    `json:"slot_duration"`
}

type ScheduleResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	HospitalID   uuid.UUID `json:"hospital_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	DaysOfWeek   []int     `json:"days_of_week,omitempty"`
	StartDate    string    `json:"start_date,omitempty"`
	EndDate      string    `json:"end_date,omitempty"`
	StartTime    string    `json:"start_time"`
	EndTime      string    `json:"end_time"`
	Timezone     string    `json:"timezone"`
	SlotDuration int       `json:"slot_duration"`
	Status       string    `json:"status"`
	Deactivated  bool      `json:"deactivated"`
	Expired      bool      `json:"expired"`
}

type SlotResponse struct {
	ID         uuid.UUID `json:"id"`
	ScheduleID uuid.UUID `json:"schedule_id"`
	Date       string    `json:"date"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Status     string    `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (r *ScheduleRequest) toDraft() (*schedule.Draft, error) {
	doctorID, err := uuid.Parse(r.DoctorID)
	if err != nil {
		return nil, fmt.Errorf("doctor_id must be a valid UUID")
	}
	hospitalID, err := uuid.Parse(r.HospitalID)
	if err != nil {
		return nil, fmt.Errorf("hospital_id must be a valid UUID")
	}

	startMin, err := schedule.ParseClock(r.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time must be HH:MM")
	}
	endMin, err := schedule.ParseClock(r.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time must be HH:MM")
	}

	startDate, err := parseDate(r.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date must be YYYY-MM-DD")
	}
	endDate, err := parseDate(r.EndDate)
	if err != nil {
		return nil, fmt.Errorf("end_date must be YYYY-MM-DD")
	}

	return &schedule.Draft{
		DoctorID:    doctorID,
		HospitalID:  hospitalID,
		Name:        r.Name,
		Type:        schedule.ScheduleType(r.Type),
		DaysOfWeek:  r.DaysOfWeek,
		StartDate:   startDate,
		EndDate:     endDate,
		StartMin:    startMin,
		EndMin:      endMin,
		Timezone:    r.Timezone,
		DurationMin: r.SlotDuration,
	}, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	d := schedule.DateOnly(t)
	return &d, nil
}

func scheduleResponse(s *schedule.Schedule) ScheduleResponse {
	resp := ScheduleResponse{
		ID:           s.ID,
		DoctorID:     s.DoctorID,
		HospitalID:   s.HospitalID,
		Name:         s.Name,
		Type:         string(s.Type),
		DaysOfWeek:   s.DaysOfWeek,
		StartTime:    schedule.FormatClock(s.StartMin),
		EndTime:      schedule.FormatClock(s.EndMin),
		Timezone:     s.Timezone,
		SlotDuration: s.DurationMin,
		Status:       string(s.Status),
		Deactivated:  s.Deactivated,
		Expired:      s.Expired,
	}
	if s.StartDate != nil {
		resp.StartDate = s.StartDate.Format(dateLayout)
	}
	if s.EndDate != nil {
		resp.EndDate = s.EndDate.Format(dateLayout)
	}
	return resp
}

func slotResponse(sl *schedule.Slot) SlotResponse {
	return SlotResponse{
		ID:         sl.ID,
		ScheduleID: sl.ScheduleID,
		Date:       sl.Date.Format(dateLayout),
		StartAt:    sl.StartAt,
		EndAt:      sl.EndAt,
		Status:     string(sl.Status),
	}
}
