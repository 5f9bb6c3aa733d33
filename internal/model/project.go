package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "workflow/backend/pkg/errors"
)

// ProjectStatus is the lifecycle label of a project.
type ProjectStatus string

const (
	StatusNotStarted ProjectStatus = "NOT_STARTED"
	StatusInProcess  ProjectStatus = "IN_PROCESS"
	StatusTest       ProjectStatus = "TEST"
	StatusReview     ProjectStatus = "REVIEW"
	StatusDone       ProjectStatus = "DONE"
	StatusHelp       ProjectStatus = "HELP"
)

// ProjectStatuses in lifecycle order.
var ProjectStatuses = []ProjectStatus{
	StatusNotStarted, StatusInProcess, StatusTest, StatusReview, StatusDone, StatusHelp,
}

// ErrInvalidStatus rejects any status literal outside ProjectStatuses.
var ErrInvalidStatus = apperrors.New(apperrors.ErrValidation, "invalid project status")

// ParseProjectStatus maps a wire string to a status. Matching is exact after trimming.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	st := ProjectStatus(strings.TrimSpace(s))
	if st.Label() == "" {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// Label returns the display label, or "" for an unknown status.
func (s ProjectStatus) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusInProcess:
		return "In process"
	case StatusTest:
		return "Testing"
	case StatusReview:
		return "In review"
	case StatusDone:
		return "Done"
	case StatusHelp:
		return "Needs help"
	}
	return ""
}

const (
	MinDifficulty = 1
	MaxDifficulty = 5
)

// Project, table projects
type Project struct {
	ID              uint           `gorm:"primaryKey"                                   json:"id"`
	ProjectName     string         `gorm:"type:varchar(200);not null"                   json:"projectName"`
	DifficultyLevel int            `gorm:"type:smallint;not null"                       json:"difficultyLevel"`
	DurationDays    int            `gorm:"not null"                                     json:"durationDays"`
	Status          ProjectStatus  `gorm:"type:varchar(20);not null;default:'NOT_STARTED'" json:"status"`
	StartDate       datatypes.Date `gorm:"not null"                                     json:"startDate"`
	Deadline        datatypes.Date `gorm:"not null;index"                               json:"deadline"`
	PMUserID        *uint          `gorm:"index"                                        json:"pmUserId,omitempty"`
	BaseModel

	PMUser  *User           `gorm:"foreignKey:PMUserID"  json:"pmUser,omitempty"`
	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
}

// TableName projects
func (Project) TableName() string { return "projects" }

// BeforeSave keeps Deadline derived from StartDate and DurationDays on every write.
func (p *Project) BeforeSave(tx *gorm.DB) error {
	p.Deadline = datatypes.Date(ComputeDeadline(time.Time(p.StartDate), p.DurationDays))
	return nil
}

// ProjectMember membership row, table project_members
type ProjectMember struct {
	ID        uint      `gorm:"primaryKey"                                  json:"-"`
	ProjectID uint      `gorm:"not null;uniqueIndex:uk_project_member_user" json:"projectId"`
	UserID    uint      `gorm:"not null;uniqueIndex:uk_project_member_user;index" json:"userId"`
	JoinedAt  time.Time `gorm:"autoCreateTime"                              json:"joinedAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName project_members
func (ProjectMember) TableName() string { return "project_members" }

// ComputeDeadline returns start plus days calendar days, as a date.
func ComputeDeadline(start time.Time, days int) time.Time {
	return CalendarDate(start).AddDate(0, 0, days)
}

// DaysUntilDeadline counts whole calendar days from now's date to deadline.
// Negative means overdue. The time of day of now is ignored.
func DaysUntilDeadline(deadline, now time.Time) int {
	d := CalendarDate(deadline)
	n := CalendarDate(now)
	return int(d.Sub(n).Hours() / 24)
}

// DaysLeft is DaysUntilDeadline for p.
func (p *Project) DaysLeft(now time.Time) int {
	return DaysUntilDeadline(time.Time(p.Deadline), now)
}

// IsManagedBy reports whether userID is the project's PM.
func (p *Project) IsManagedBy(userID uint) bool {
	return p.PMUserID != nil && *p.PMUserID == userID
}

// HasMember reports whether userID holds a membership row.
func (p *Project) HasMember(userID uint) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ValidateProjectFields checks the scalar invariants shared by create and update.
func ValidateProjectFields(name string, difficulty, duration int) error {
	var errs apperrors.ValidationErrors
	if strings.TrimSpace(name) == "" {
		errs.Add("projectName", "must not be empty", name, "required")
	}
	if difficulty < MinDifficulty || difficulty > MaxDifficulty {
		errs.Add("difficultyLevel", "must be between 1 and 5", difficulty, "range")
	}
	if duration < 1 {
		errs.Add("durationDays", "must be at least 1", duration, "min")
	}
	return errs.OrNil()
}
