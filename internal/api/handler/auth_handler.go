package handler

import (
	"github.com/gin-gonic/gin"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/service"
	"workflow/backend/pkg/response"
)

// AuthHandler registration, login, logout
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register self-registration, always a student
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	response.Created(c, resp)
}

// Login
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleAuthError(c, err)
		return
	}
	response.OK(c, resp)
}

// Logout revokes the presented token
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	jti, remaining := tokenRemaining(c)
	if err := h.authSvc.Logout(c.Request.Context(), jti, remaining); err != nil {
		handleAuthError(c, err)
		return
	}
	response.OK(c, nil)
}

// Me
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	user, err := h.authSvc.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		handleUserError(c, err)
		return
	}
	response.OK(c, dto.NewUserResponse(user))
}
