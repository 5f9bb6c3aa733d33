package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/service"
	"workflow/backend/pkg/response"
)

// ProjectHandler project lifecycle, membership and overview views
type ProjectHandler struct {
	projectSvc  service.ProjectService
	overviewSvc service.OverviewService
}

// NewProjectHandler
func NewProjectHandler(projectSvc service.ProjectService, overviewSvc service.OverviewService) *ProjectHandler {
	return &ProjectHandler{projectSvc: projectSvc, overviewSvc: overviewSvc}
}

// ── CRUD ──

// Create
// POST /api/v1/admin/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.projectSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.Created(c, resp)
}

// List every project
// GET /api/v1/admin/projects
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.projectSvc.List(c.Request.Context(), actor)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}

// Get
// GET /api/v1/{admin,pm}/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := h.projectSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, resp)
}

// Update
// PUT /api/v1/admin/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.projectSvc.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, resp)
}

// Delete
// DELETE /api/v1/admin/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.projectSvc.Delete(c.Request.Context(), actor, id); err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── status & membership ──

// SetStatus
// PUT /api/v1/{admin,pm}/projects/:id/status?status=IN_PROCESS
func (h *ProjectHandler) SetStatus(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := h.projectSvc.SetStatus(c.Request.Context(), actor, id, c.Query("status"))
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, resp)
}

// AddMember
// POST /api/v1/{admin,pm}/projects/:id/members/:userId
func (h *ProjectHandler) AddMember(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	resp, err := h.projectSvc.AddMember(c.Request.Context(), actor, id, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, resp)
}

// RemoveMember
// DELETE /api/v1/{admin,pm}/projects/:id/members/:userId
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userId")
	if !ok {
		return
	}

	resp, err := h.projectSvc.RemoveMember(c.Request.Context(), actor, id, userID)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── scoped lists ──

// ListByStatus
// GET /api/v1/admin/projects/status/:status
func (h *ProjectHandler) ListByStatus(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.projectSvc.ListByStatus(c.Request.Context(), actor, c.Param("status"))
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}

// ListManaged projects the calling PM manages
// GET /api/v1/pm/projects
func (h *ProjectHandler) ListManaged(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.projectSvc.ListManaged(c.Request.Context(), actor)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}

// ListJoined projects the calling student belongs to
// GET /api/v1/student/projects
func (h *ProjectHandler) ListJoined(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.projectSvc.ListJoined(c.Request.Context(), actor)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}

// ── overview ──

// Overview counts by status plus the attention lists
// GET /api/v1/admin/projects/status/overview
// GET /api/v1/pm/projects/overview
func (h *ProjectHandler) Overview(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	resp, err := h.overviewSvc.Overview(c.Request.Context(), actor)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, resp)
}

// DueSoon
// GET /api/v1/admin/projects/due-soon?days=7
func (h *ProjectHandler) DueSoon(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	days := 0
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.BadRequest(c, response.CodeInvalidParams, "days must be a non-negative integer")
			return
		}
		days = n
	}

	list, err := h.overviewSvc.DueSoon(c.Request.Context(), actor, days)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}

// Overdue
// GET /api/v1/admin/projects/overdue
func (h *ProjectHandler) Overdue(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.overviewSvc.Overdue(c.Request.Context(), actor)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}

// NeedingHelp
// GET /api/v1/admin/projects/help
func (h *ProjectHandler) NeedingHelp(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.overviewSvc.NeedingHelp(c.Request.Context(), actor)
	if err != nil {
		handleProjectError(c, err)
		return
	}
	response.OK(c, list)
}
