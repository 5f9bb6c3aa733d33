package dto

import (
	"time"

	"workflow/backend/internal/model"
)

// ── projects ──

// CreateProjectRequest
type CreateProjectRequest struct {
	ProjectName     string  `json:"projectName"     binding:"required,max=200"`
	DifficultyLevel int     `json:"difficultyLevel"`
	DurationDays    int     `json:"durationDays"`
	PMUserID        *uint   `json:"pmUserId"`
	StartDate       *string `json:"startDate"` // YYYY-MM-DD, defaults to today
}

// UpdateProjectRequest nil fields are left unchanged; pmUserId 0 clears the PM
type UpdateProjectRequest struct {
	ProjectName     *string `json:"projectName" binding:"omitempty,max=200"`
	DifficultyLevel *int    `json:"difficultyLevel"`
	DurationDays    *int    `json:"durationDays"`
	PMUserID        *uint   `json:"pmUserId"`
	StartDate       *string `json:"startDate"`
}

// PmInfo
type PmInfo struct {
	ID        uint   `json:"id"`
	CustomID  string `json:"customId"`
	FirstName string `json:"firstName"`
	Username  string `json:"username"`
}

// MemberInfo
type MemberInfo struct {
	ID        uint   `json:"id"`
	CustomID  string `json:"customId"`
	FirstName string `json:"firstName"`
	Specialty string `json:"specialty"`
}

// ProjectResponse
type ProjectResponse struct {
	ID              uint         `json:"id"`
	ProjectName     string       `json:"projectName"`
	DifficultyLevel int          `json:"difficultyLevel"`
	DurationDays    int          `json:"durationDays"`
	Status          string       `json:"status"`
	StartDate       string       `json:"startDate"`
	Deadline        string       `json:"deadline"`
	DaysLeft        int          `json:"daysLeft"`
	PMUser          *PmInfo      `json:"pmUser"`
	Members         []MemberInfo `json:"members"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// NewProjectResponse renders p as seen at now.
func NewProjectResponse(p *model.Project, now time.Time) ProjectResponse {
	resp := ProjectResponse{
		ID:              p.ID,
		ProjectName:     p.ProjectName,
		DifficultyLevel: p.DifficultyLevel,
		DurationDays:    p.DurationDays,
		Status:          string(p.Status),
		StartDate:       model.FormatDate(p.StartDate),
		Deadline:        model.FormatDate(p.Deadline),
		DaysLeft:        p.DaysLeft(now),
		Members:         make([]MemberInfo, 0, len(p.Members)),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.PMUser != nil {
		resp.PMUser = &PmInfo{
			ID:        p.PMUser.ID,
			CustomID:  p.PMUser.CustomID,
			FirstName: p.PMUser.FirstName,
			Username:  p.PMUser.Username,
		}
	}
	for _, m := range p.Members {
		info := MemberInfo{ID: m.UserID}
		if m.User != nil {
			info.CustomID = m.User.CustomID
			info.FirstName = m.User.FirstName
			info.Specialty = m.User.Specialty
		}
		resp.Members = append(resp.Members, info)
	}
	return resp
}

// NewProjectList
func NewProjectList(projects []model.Project, now time.Time) []ProjectResponse {
	out := make([]ProjectResponse, len(projects))
	for i := range projects {
		out[i] = NewProjectResponse(&projects[i], now)
	}
	return out
}

// ProjectStatusOverview monitoring aggregate
type ProjectStatusOverview struct {
	AllProjects         []ProjectResponse `json:"allProjects"`
	ProjectsDueSoon     []ProjectResponse `json:"projectsDueSoon"`
	OverdueProjects     []ProjectResponse `json:"overdueProjects"`
	ProjectsNeedingHelp []ProjectResponse `json:"projectsNeedingHelp"`
}
