package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/service"
	"workflow/backend/pkg/response"
)

// TimetableHandler timetables and the upload handshake
type TimetableHandler struct {
	svc    service.TimetableService
	upload service.UploadService
	logger *zap.Logger
}

// NewTimetableHandler
func NewTimetableHandler(svc service.TimetableService, upload service.UploadService, logger *zap.Logger) *TimetableHandler {
	return &TimetableHandler{svc: svc, upload: upload, logger: logger}
}

// GetMine
// GET /api/v1/student/timetable
func (h *TimetableHandler) GetMine(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), actor, actor.UserID)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// GetForUser another user's timetable
// GET /api/v1/admin/users/:id/timetable
// GET /api/v1/pm/students/:id/timetable
func (h *TimetableHandler) GetForUser(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	resp, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// Replace the caller's whole timetable
// PUT /api/v1/student/timetable
func (h *TimetableHandler) Replace(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.ReplaceTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.svc.Replace(c.Request.Context(), actor, actor.UserID, dto.ToModels(req.Slots))
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// ── upload ──

// Presign step one of the direct upload
// POST /api/v1/student/timetable/presign
func (h *TimetableHandler) Presign(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.upload.Presign(c.Request.Context(), actor, req.FileName)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// Notify finalizes a direct upload
// POST /api/v1/student/timetable/notify
func (h *TimetableHandler) Notify(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	var req dto.NotifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	resp, err := h.upload.Notify(c.Request.Context(), actor, req.ObjectName)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}

// Upload multipart fallback, field "file"
// POST /api/v1/student/timetable/upload
func (h *TimetableHandler) Upload(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		response.BadRequest(c, response.CodeInvalidParams, "multipart field \"file\" is required")
		return
	}
	if err != nil {
		bindError(c, err)
		return
	}
	defer file.Close()

	h.logger.Debug("timetable multipart upload",
		zap.Uint("user_id", actor.UserID),
		zap.String("file", header.Filename),
		zap.Int64("size", header.Size),
	)

	resp, err := h.upload.Upload(c.Request.Context(), actor, header.Filename, file)
	if err != nil {
		handleTimetableError(c, err)
		return
	}
	response.OK(c, resp)
}
