package model

import (
	"fmt"
	"strings"
	"time"

	apperrors "workflow/backend/pkg/errors"
)

// Weekdays in timetable order, Monday first.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayIndex returns the position of day in Weekdays (case-insensitive), or -1.
func WeekdayIndex(day string) int {
	for i, d := range Weekdays {
		if strings.EqualFold(d, strings.TrimSpace(day)) {
			return i
		}
	}
	return -1
}

// WeekdayName maps time.Weekday to the timetable name.
func WeekdayName(d time.Weekday) string {
	return Weekdays[(int(d)+6)%7]
}

// TimeSlot one timetable entry, table timetable_slots
type TimeSlot struct {
	ID        uint   `gorm:"primaryKey"                      json:"-"`
	UserID    uint   `gorm:"not null;index"                  json:"-"`
	DayOfWeek string `gorm:"type:varchar(10);not null"       json:"dayOfWeek"`
	StartTime string `gorm:"type:varchar(5);not null"        json:"startTime"` // HH:MM
	EndTime   string `gorm:"type:varchar(5);not null"        json:"endTime"`   // HH:MM
	Subject   string `gorm:"type:varchar(200);not null;default:''" json:"subject"`
	IsFree    bool   `gorm:"not null;default:false"          json:"isFree"`
	BaseModel
}

// TableName timetable_slots
func (TimeSlot) TableName() string { return "timetable_slots" }

// ParseClock accepts HH:MM or HH:MM:SS and returns minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04", "15:04:05", "3:04PM", "3:04 PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}
	return 0, fmt.Errorf("invalid time %q", s)
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ValidateSlots checks every slot and normalizes the valid ones in place:
// canonical weekday names, HH:MM times, and no subject on free slots.
// Nothing is normalized when any slot is rejected.
func ValidateSlots(slots []TimeSlot) error {
	var errs apperrors.ValidationErrors
	normalized := make([]TimeSlot, len(slots))
	for i, s := range slots {
		field := fmt.Sprintf("slots[%d]", i)
		n := s

		idx := WeekdayIndex(s.DayOfWeek)
		if idx < 0 {
			errs.Add(field+".dayOfWeek", "unknown weekday", s.DayOfWeek, "weekday")
		} else {
			n.DayOfWeek = Weekdays[idx]
		}

		start, serr := ParseClock(s.StartTime)
		if serr != nil {
			errs.Add(field+".startTime", "must be HH:MM", s.StartTime, "time")
		}
		end, eerr := ParseClock(s.EndTime)
		if eerr != nil {
			errs.Add(field+".endTime", "must be HH:MM", s.EndTime, "time")
		}
		if serr == nil && eerr == nil {
			if start >= end {
				errs.Add(field+".endTime", "must be after startTime", s.EndTime, "order")
			}
			n.StartTime = FormatClock(start)
			n.EndTime = FormatClock(end)
		}

		n.Subject = strings.TrimSpace(s.Subject)
		if n.IsFree {
			n.Subject = ""
		}
		normalized[i] = n
	}
	if err := errs.OrNil(); err != nil {
		return err
	}
	copy(slots, normalized)
	return nil
}

// SortKey orders slots by weekday then start time.
func (s TimeSlot) SortKey() string {
	return fmt.Sprintf("%d-%s", WeekdayIndex(s.DayOfWeek), s.StartTime)
}
