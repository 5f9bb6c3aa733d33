package handler

import (
	"go.uber.org/zap"

	"workflow/backend/internal/service"
)

// Handler aggregates every handler.
type Handler struct {
	Auth      *AuthHandler
	User      *UserHandler
	Project   *ProjectHandler
	Timetable *TimetableHandler
	Export    *ExportHandler
}

// NewHandler builds the handlers over svc.
func NewHandler(svc *service.Service, logger *zap.Logger) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth),
		User:      NewUserHandler(svc.User),
		Project:   NewProjectHandler(svc.Project, svc.Overview),
		Timetable: NewTimetableHandler(svc.Timetable, svc.Upload, logger),
		Export:    NewExportHandler(svc.Export),
	}
}
