package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"workflow/backend/config"
	"workflow/backend/internal/repository"
	"workflow/backend/pkg/event"
	"workflow/backend/pkg/jwt"
	"workflow/backend/pkg/redis"
	"workflow/backend/pkg/storage"
)

// Service aggregates every service.
type Service struct {
	Auth      AuthService
	User      UserService
	Project   ProjectService
	Overview  OverviewService
	Timetable TimetableService
	Upload    UploadService
	Export    ExportService
}

// TokenBlacklist revokes session tokens before they expire.
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// PendingUploads remembers presigned uploads until they are finalized.
type PendingUploads interface {
	PutPendingUpload(ctx context.Context, objectName string, userID uint, ttl time.Duration) error
	TakePendingUpload(ctx context.Context, objectName string) (uint, error)
}

// Clock returns the current instant; tests pin it.
type Clock func() time.Time

// NewService wires every service. rdb and store may be nil: features that
// need them degrade instead of failing startup.
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	store storage.ObjectStore,
	events event.Publisher,
	logger *zap.Logger,
) *Service {
	var (
		blacklist TokenBlacklist
		pending   PendingUploads
	)
	if rdb != nil {
		blacklist = rdb
		pending = rdb
	}

	clock := Clock(time.Now)
	timetable := NewTimetableService(cfg, repo, events, logger)

	return &Service{
		Auth:      NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		User:      NewUserService(cfg, repo, events, logger),
		Project:   NewProjectService(repo, events, clock, cfg.Timetable.Location(), logger),
		Overview:  NewOverviewService(repo, clock, cfg.Timetable.Location(), cfg.Timetable.DueSoonDays, logger),
		Timetable: timetable,
		Upload:    NewUploadService(cfg, store, pending, timetable, logger),
		Export:    NewExportService(repo, clock, cfg.Timetable.Location(), logger),
	}
}
