package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/internal/service"
	apperrors "workflow/backend/pkg/errors"
	"workflow/backend/pkg/response"
)

// ── request binding ──

// fieldError is the wire form of one rejected field.
type fieldError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Rule    string      `json:"rule,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

// bindError answers a failed ShouldBind*.
func bindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeBodyTooLarge, "request body too large")
		return
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, fieldError{
				Field:   jsonPath(fe.Namespace()),
				Message: fmt.Sprintf("failed on %q", fe.Tag()),
				Rule:    fe.Tag(),
			})
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParams, "validation failed", details)
		return
	}
	response.BadRequest(c, response.CodeInvalidParams, "malformed request body")
}

// jsonPath turns "ReplaceTimetableRequest.Slots[0].DayOfWeek" into "slots[0].dayOfWeek".
func jsonPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

// ── service errors ──

// handleError maps by error kind. Module handlers try their own sentinels first.
func handleError(c *gin.Context, err error) {
	var verrs apperrors.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]fieldError, 0, len(verrs))
		for _, v := range verrs {
			details = append(details, fieldError{Field: v.Field, Message: v.Message, Rule: v.Rule, Value: v.Value})
		}
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeInvalidParams, "validation failed", details)
		return
	}

	switch apperrors.Kind(err) {
	case apperrors.ErrValidation:
		response.BadRequest(c, response.CodeInvalidParams, err.Error())
	case apperrors.ErrNotFound:
		response.NotFound(c, response.CodeNotFound, err.Error())
	case apperrors.ErrConflict:
		response.Conflict(c, response.CodeConflict, err.Error())
	case apperrors.ErrForbidden:
		response.Forbidden(c, response.CodeForbidden, err.Error())
	case apperrors.ErrUpstream:
		_ = c.Error(err)
		response.BadGateway(c, "upstream service unavailable")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

func handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "invalid username or password")
	case errors.Is(err, service.ErrAccountDisabled):
		response.Forbidden(c, 11002, "account is disabled")
	case errors.Is(err, service.ErrUsernameTaken):
		response.Conflict(c, 11003, "username already taken")
	default:
		handleError(c, err)
	}
}

func handleUserError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, policy.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, "permission denied")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "user not found")
	case errors.Is(err, service.ErrUsernameTaken):
		response.Conflict(c, 12002, "username already taken")
	case errors.Is(err, model.ErrInvalidRole):
		response.BadRequest(c, 12003, "invalid role")
	default:
		handleError(c, err)
	}
}

func handleProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, policy.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, "permission denied")
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 13001, "project not found")
	case errors.Is(err, service.ErrPMUserNotFound):
		response.NotFound(c, 13002, "project manager not found")
	case errors.Is(err, service.ErrNotAPM):
		response.BadRequest(c, 13003, "user is not a project manager")
	case errors.Is(err, service.ErrPMInactive):
		response.BadRequest(c, 13009, "project manager account is disabled")
	case errors.Is(err, service.ErrAlreadyMember):
		response.Conflict(c, 13004, "user is already a member of this project")
	case errors.Is(err, service.ErrNotMember):
		response.NotFound(c, 13005, "user is not a member of this project")
	case errors.Is(err, service.ErrMemberNotStudent):
		response.BadRequest(c, 13006, "only students can join a project")
	case errors.Is(err, model.ErrInvalidStatus):
		response.BadRequest(c, 13007, "invalid project status")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 13008, "user not found")
	default:
		handleError(c, err)
	}
}

func handleTimetableError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, policy.ErrForbidden):
		response.Forbidden(c, response.CodeForbidden, "permission denied")
	case errors.Is(err, service.ErrUnsupportedFormat):
		response.BadRequest(c, 14001, "unsupported timetable format")
	case errors.Is(err, service.ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, 14002, "timetable file exceeds the size limit")
	case errors.Is(err, service.ErrMissingColumns), errors.Is(err, service.ErrMalformedTimetable):
		response.BadRequest(c, 14003, err.Error())
	case errors.Is(err, service.ErrUploadNotFound):
		response.NotFound(c, 14004, "upload not found or expired")
	case errors.Is(err, service.ErrUploadForeign):
		response.Forbidden(c, 14005, "upload belongs to another user")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 14006, "user not found")
	case errors.Is(err, service.ErrStorageUnavailable):
		response.BadGateway(c, "object storage unavailable")
	default:
		handleError(c, err)
	}
}
