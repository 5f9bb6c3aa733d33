package dto

import (
	"time"

	"workflow/backend/internal/model"
)

// ── timetable ──

// TimeSlot wire form of one slot
type TimeSlot struct {
	DayOfWeek string `json:"dayOfWeek" binding:"required,weekday"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime"   binding:"required"`
	Subject   string `json:"subject"   binding:"max=200"`
	IsFree    bool   `json:"isFree"`
}

// ReplaceTimetableRequest full replacement; an empty list clears the timetable
type ReplaceTimetableRequest struct {
	Slots []TimeSlot `json:"slots" binding:"dive"`
}

// TimetableResponse
type TimetableResponse struct {
	Slots []TimeSlot `json:"slots"`
}

// ToModels converts wire slots for the service layer.
func ToModels(slots []TimeSlot) []model.TimeSlot {
	out := make([]model.TimeSlot, len(slots))
	for i, s := range slots {
		out[i] = model.TimeSlot{
			DayOfWeek: s.DayOfWeek,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Subject:   s.Subject,
			IsFree:    s.IsFree,
		}
	}
	return out
}

// NewTimetableResponse
func NewTimetableResponse(slots []model.TimeSlot) TimetableResponse {
	out := TimetableResponse{Slots: make([]TimeSlot, len(slots))}
	for i, s := range slots {
		out.Slots[i] = TimeSlot{
			DayOfWeek: s.DayOfWeek,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Subject:   s.Subject,
			IsFree:    s.IsFree,
		}
	}
	return out
}

// ── direct upload handshake ──

// PresignRequest
type PresignRequest struct {
	FileName string `json:"fileName" binding:"required,max=200"`
}

// PresignResponse
type PresignResponse struct {
	URL        string    `json:"url"`
	ObjectName string    `json:"objectName"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// NotifyRequest
type NotifyRequest struct {
	ObjectName string `json:"objectName" binding:"required"`
}
