package handler

import (
	"github.com/gin-gonic/gin"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/model"
	"workflow/backend/internal/repository"
	"workflow/backend/internal/service"
	"workflow/backend/pkg/response"
)

// UserHandler admin user management, profiles and the PM student pool
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// ── admin ──

// List
// GET /api/v1/admin/users?role=&specialty=
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	filter := repository.UserFilter{Specialty: c.Query("specialty")}
	if raw := c.Query("role"); raw != "" {
		role, err := model.ParseRole(raw)
		if err != nil {
			handleUserError(c, err)
			return
		}
		filter.Role = role
	}

	users, err := h.userSvc.List(c.Request.Context(), actor, filter)
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserList(users))
}

// Get
// GET /api/v1/admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userSvc.Get(c.Request.Context(), actor, id)
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}

// Update
// PUT /api/v1/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userSvc.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}

// AssignRole
// PUT /api/v1/admin/users/:id/role?role=PM
func (h *UserHandler) AssignRole(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := h.userSvc.AssignRole(c.Request.Context(), actor, id, c.Query("role"))
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}

// Delete
// DELETE /api/v1/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.userSvc.Delete(c.Request.Context(), actor, id); err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── profile ──

// GetProfile
// GET /api/v1/{pm,student}/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	user, err := h.userSvc.GetProfile(c.Request.Context(), actor)
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}

// UpdateProfile
// PUT /api/v1/{pm,student}/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userSvc.UpdateProfile(c.Request.Context(), actor, &req)
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}

// ── student pool ──

// ListStudents active students, optionally by specialty
// GET /api/v1/pm/students
// GET /api/v1/pm/students/specialty/:specialty
func (h *UserHandler) ListStudents(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	users, err := h.userSvc.ListStudents(c.Request.Context(), actor, c.Param("specialty"))
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserList(users))
}
