package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/model"
)

// ── any role ──

// Me returns the caller's account.
func (c *Client) Me(ctx context.Context, sess *Session) (*dto.UserResponse, error) {
	var out dto.UserResponse
	if err := c.do(ctx, sess, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── profile ──

// profilePath picks /pm/profile or /student/profile from the session role.
func profilePath(sess *Session) string {
	if sess != nil && sess.User.Role == string(model.RolePM) {
		return "/pm/profile"
	}
	return "/student/profile"
}

// Profile reads the caller's profile.
func (c *Client) Profile(ctx context.Context, sess *Session) (*dto.UserResponse, error) {
	var out dto.UserResponse
	if err := c.do(ctx, sess, http.MethodGet, profilePath(sess), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile edits the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, sess *Session, req dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	if req.Specialty != nil && *req.Specialty != "" {
		if _, err := model.ParseSpecialty(*req.Specialty); err != nil {
			return nil, err
		}
	}
	var out dto.UserResponse
	if err := c.do(ctx, sess, http.MethodPut, profilePath(sess), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── student ──

// Timetable returns the caller's slots; empty when none were uploaded.
func (c *Client) Timetable(ctx context.Context, sess *Session) (*dto.TimetableResponse, error) {
	var out dto.TimetableResponse
	if err := c.do(ctx, sess, http.MethodGet, "/student/timetable", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceTimetable replaces the caller's timetable. Slots are validated
// locally first; an invalid slot fails the whole call before any request.
func (c *Client) ReplaceTimetable(ctx context.Context, sess *Session, slots []dto.TimeSlot) (*dto.TimetableResponse, error) {
	if err := model.ValidateSlots(dto.ToModels(slots)); err != nil {
		return nil, err
	}
	var out dto.TimetableResponse
	if err := c.do(ctx, sess, http.MethodPut, "/student/timetable", dto.ReplaceTimetableRequest{Slots: slots}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyProjects lists the projects the caller is a member of.
func (c *Client) MyProjects(ctx context.Context, sess *Session) ([]dto.ProjectResponse, error) {
	var out []dto.ProjectResponse
	err := c.do(ctx, sess, http.MethodGet, "/student/projects", nil, &out)
	return out, err
}

// ── project manager ──

// ManagedProjects lists projects the caller manages.
func (c *Client) ManagedProjects(ctx context.Context, sess *Session) ([]dto.ProjectResponse, error) {
	var out []dto.ProjectResponse
	err := c.do(ctx, sess, http.MethodGet, "/pm/projects", nil, &out)
	return out, err
}

// Students lists active students, optionally by specialty.
func (c *Client) Students(ctx context.Context, sess *Session, specialty string) ([]dto.UserResponse, error) {
	path := "/pm/students"
	if specialty != "" {
		sp, err := model.ParseSpecialty(specialty)
		if err != nil {
			return nil, err
		}
		path += "/specialty/" + url.PathEscape(string(sp))
	}
	var out []dto.UserResponse
	err := c.do(ctx, sess, http.MethodGet, path, nil, &out)
	return out, err
}

// StudentTimetable reads another user's timetable (PM or admin).
func (c *Client) StudentTimetable(ctx context.Context, sess *Session, userID uint) (*dto.TimetableResponse, error) {
	path := fmt.Sprintf("/pm/students/%d/timetable", userID)
	if sess != nil && sess.User.Role == string(model.RoleAdmin) {
		path = fmt.Sprintf("/admin/users/%d/timetable", userID)
	}
	var out dto.TimetableResponse
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── projects (admin or managing PM) ──

// rolePrefix is where project mutations live for the session's role.
func rolePrefix(sess *Session) string {
	if sess != nil && sess.User.Role == string(model.RoleAdmin) {
		return "/admin"
	}
	return "/pm"
}

// Project reads one project.
func (c *Client) Project(ctx context.Context, sess *Session, id uint) (*dto.ProjectResponse, error) {
	var out dto.ProjectResponse
	if err := c.do(ctx, sess, http.MethodGet, fmt.Sprintf("%s/projects/%d", rolePrefix(sess), id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetProjectStatus changes status. Unknown literals fail locally.
func (c *Client) SetProjectStatus(ctx context.Context, sess *Session, id uint, status string) (*dto.ProjectResponse, error) {
	st, err := model.ParseProjectStatus(status)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("%s/projects/%d/status?status=%s", rolePrefix(sess), id, url.QueryEscape(string(st)))
	var out dto.ProjectResponse
	if err := c.do(ctx, sess, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddMember adds a student to a project.
func (c *Client) AddMember(ctx context.Context, sess *Session, projectID, userID uint) (*dto.ProjectResponse, error) {
	var out dto.ProjectResponse
	path := fmt.Sprintf("%s/projects/%d/members/%d", rolePrefix(sess), projectID, userID)
	if err := c.do(ctx, sess, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RemoveMember removes a member. Removing a non-member is NotFound.
func (c *Client) RemoveMember(ctx context.Context, sess *Session, projectID, userID uint) (*dto.ProjectResponse, error) {
	var out dto.ProjectResponse
	path := fmt.Sprintf("%s/projects/%d/members/%d", rolePrefix(sess), projectID, userID)
	if err := c.do(ctx, sess, http.MethodDelete, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ── admin ──

// Projects lists every project.
func (c *Client) Projects(ctx context.Context, sess *Session) ([]dto.ProjectResponse, error) {
	var out []dto.ProjectResponse
	err := c.do(ctx, sess, http.MethodGet, "/admin/projects", nil, &out)
	return out, err
}

// CreateProject validates the fields locally and creates the project.
func (c *Client) CreateProject(ctx context.Context, sess *Session, req dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	if err := model.ValidateProjectFields(req.ProjectName, req.DifficultyLevel, req.DurationDays); err != nil {
		return nil, err
	}
	var out dto.ProjectResponse
	if err := c.do(ctx, sess, http.MethodPost, "/admin/projects", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject edits a project; nil fields are left unchanged.
func (c *Client) UpdateProject(ctx context.Context, sess *Session, id uint, req dto.UpdateProjectRequest) (*dto.ProjectResponse, error) {
	var out dto.ProjectResponse
	if err := c.do(ctx, sess, http.MethodPut, fmt.Sprintf("/admin/projects/%d", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project and its memberships.
func (c *Client) DeleteProject(ctx context.Context, sess *Session, id uint) error {
	return c.do(ctx, sess, http.MethodDelete, fmt.Sprintf("/admin/projects/%d", id), nil, nil)
}

// Overview returns the monitoring aggregate (admin: all projects, PM: managed).
func (c *Client) Overview(ctx context.Context, sess *Session) (*dto.ProjectStatusOverview, error) {
	path := "/pm/projects/overview"
	if sess != nil && sess.User.Role == string(model.RoleAdmin) {
		path = "/admin/projects/status/overview"
	}
	var out dto.ProjectStatusOverview
	if err := c.do(ctx, sess, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DueSoon lists projects due within days; 0 uses the server default.
func (c *Client) DueSoon(ctx context.Context, sess *Session, days int) ([]dto.ProjectResponse, error) {
	path := "/admin/projects/due-soon"
	if days > 0 {
		path += "?days=" + strconv.Itoa(days)
	}
	var out []dto.ProjectResponse
	err := c.do(ctx, sess, http.MethodGet, path, nil, &out)
	return out, err
}

// Users lists accounts, optionally filtered by role.
func (c *Client) Users(ctx context.Context, sess *Session, role string) ([]dto.UserResponse, error) {
	path := "/admin/users"
	if role != "" {
		r, err := model.ParseRole(role)
		if err != nil {
			return nil, err
		}
		path += "?role=" + url.QueryEscape(string(r))
	}
	var out []dto.UserResponse
	err := c.do(ctx, sess, http.MethodGet, path, nil, &out)
	return out, err
}

// AssignRole changes a user's role.
func (c *Client) AssignRole(ctx context.Context, sess *Session, userID uint, role string) (*dto.UserResponse, error) {
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}
	var out dto.UserResponse
	path := fmt.Sprintf("/admin/users/%d/role?role=%s", userID, url.QueryEscape(string(r)))
	if err := c.do(ctx, sess, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, sess *Session, userID uint) error {
	return c.do(ctx, sess, http.MethodDelete, fmt.Sprintf("/admin/users/%d", userID), nil, nil)
}
