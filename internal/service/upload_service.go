package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"workflow/backend/config"
	"workflow/backend/internal/dto"
	"workflow/backend/internal/policy"
	apperrors "workflow/backend/pkg/errors"
	"workflow/backend/pkg/redis"
	"workflow/backend/pkg/storage"
)

var (
	ErrStorageUnavailable = apperrors.New(apperrors.ErrUpstream, "object storage unavailable")
	ErrUploadNotFound     = apperrors.New(apperrors.ErrNotFound, "upload not found or expired")
	ErrUploadForeign      = apperrors.New(apperrors.ErrForbidden, "upload belongs to another user")
)

// UploadService direct-to-storage timetable uploads: presign, then notify.
// Upload is the multipart path clients use when presign is unavailable.
type UploadService interface {
	Presign(ctx context.Context, actor policy.Actor, fileName string) (*dto.PresignResponse, error)
	Notify(ctx context.Context, actor policy.Actor, objectName string) (*dto.TimetableResponse, error)
	Upload(ctx context.Context, actor policy.Actor, fileName string, r io.Reader) (*dto.TimetableResponse, error)
}

type uploadService struct {
	cfg       *config.Config
	store     storage.ObjectStore
	pending   PendingUploads
	timetable TimetableService
	now       Clock
	logger    *zap.Logger
}

// NewUploadService creates the UploadService. store and pending may be nil.
func NewUploadService(cfg *config.Config, store storage.ObjectStore, pending PendingUploads, timetable TimetableService, logger *zap.Logger) UploadService {
	return &uploadService{
		cfg:       cfg,
		store:     store,
		pending:   pending,
		timetable: timetable,
		now:       time.Now,
		logger:    logger,
	}
}

func (s *uploadService) Presign(ctx context.Context, actor policy.Actor, fileName string) (*dto.PresignResponse, error) {
	if err := policy.Authorize(actor, policy.TimetableReplace, policy.OwnedBy(actor.UserID)); err != nil {
		return nil, err
	}
	if !SupportedTimetableExt(fileName) {
		return nil, ErrUnsupportedFormat
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	ttl := s.cfg.Storage.PresignTTL
	objectName := fmt.Sprintf("%s%s-%s", userPrefix(actor.UserID), uuid.NewString(), sanitizeFileName(fileName))

	url, err := s.store.PresignPut(ctx, objectName, ttl)
	if err != nil {
		s.logger.Warn("presign failed", zap.String("object", objectName), zap.Error(err))
		return nil, apperrors.Upstream("presign upload", err)
	}

	if s.pending != nil {
		if err := s.pending.PutPendingUpload(ctx, objectName, actor.UserID, ttl); err != nil {
			s.logger.Warn("record pending upload failed", zap.String("object", objectName), zap.Error(err))
			return nil, apperrors.Upstream("record pending upload", err)
		}
	}

	return &dto.PresignResponse{
		URL:        url,
		ObjectName: objectName,
		ExpiresAt:  s.now().Add(ttl).UTC(),
	}, nil
}

func (s *uploadService) Notify(ctx context.Context, actor policy.Actor, objectName string) (*dto.TimetableResponse, error) {
	if !strings.HasPrefix(objectName, userPrefix(actor.UserID)) || strings.Contains(objectName, "..") {
		return nil, ErrUploadForeign
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	if s.pending != nil {
		owner, err := s.pending.TakePendingUpload(ctx, objectName)
		switch {
		case errors.Is(err, redis.ErrNoPendingUpload):
			return nil, ErrUploadNotFound
		case err != nil:
			s.logger.Warn("read pending upload failed", zap.String("object", objectName), zap.Error(err))
			return nil, apperrors.Upstream("read pending upload", err)
		case owner != actor.UserID:
			return nil, ErrUploadForeign
		}
	}

	data, err := s.store.Get(ctx, objectName, s.cfg.Timetable.MaxFileBytes)
	if err != nil {
		switch {
		case storage.IsNotFound(err):
			return nil, ErrUploadNotFound
		case errors.Is(err, storage.ErrTooLarge):
			return nil, ErrFileTooLarge
		}
		s.logger.Warn("fetch uploaded object failed", zap.String("object", objectName), zap.Error(err))
		return nil, apperrors.Upstream("fetch uploaded timetable", err)
	}

	return s.timetable.Import(ctx, actor, actor.UserID, objectName, bytes.NewReader(data))
}

func (s *uploadService) Upload(ctx context.Context, actor policy.Actor, fileName string, r io.Reader) (*dto.TimetableResponse, error) {
	return s.timetable.Import(ctx, actor, actor.UserID, fileName, r)
}

// ── helpers ──

func userPrefix(userID uint) string {
	return fmt.Sprintf("timetables/%d/", userID)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeFileName keeps the base name with its extension, ASCII only.
func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := unsafeChars.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_")
	stem = strings.Trim(stem, "._")
	if stem == "" {
		stem = "timetable"
	}
	if len(stem) > 80 {
		stem = stem[:80]
	}
	return stem + ext
}
