package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"workflow/backend/config"
	"workflow/backend/internal/dto"
	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/internal/repository"
	apperrors "workflow/backend/pkg/errors"
	"workflow/backend/pkg/event"
)

// ErrFileTooLarge rejects uploads above timetable.max_file_bytes.
var ErrFileTooLarge = apperrors.New(apperrors.ErrValidation, "timetable file exceeds the size limit")

// TimetableService weekly timetables
type TimetableService interface {
	// Get returns the slots ordered by weekday then start time; empty when nothing was uploaded.
	Get(ctx context.Context, actor policy.Actor, userID uint) (*dto.TimetableResponse, error)
	// Replace swaps the whole timetable. Nothing is written when any slot is invalid.
	Replace(ctx context.Context, actor policy.Actor, userID uint, slots []model.TimeSlot) (*dto.TimetableResponse, error)
	// Import parses a schedule file and replaces the timetable with its slots.
	Import(ctx context.Context, actor policy.Actor, userID uint, fileName string, r io.Reader) (*dto.TimetableResponse, error)
}

type timetableService struct {
	cfg    *config.Config
	repo   *repository.Repository
	events event.Publisher
	logger *zap.Logger
}

// NewTimetableService creates the TimetableService.
func NewTimetableService(cfg *config.Config, repo *repository.Repository, events event.Publisher, logger *zap.Logger) TimetableService {
	return &timetableService{cfg: cfg, repo: repo, events: events, logger: logger}
}

func (s *timetableService) Get(ctx context.Context, actor policy.Actor, userID uint) (*dto.TimetableResponse, error) {
	res := policy.Resource{OwnerID: userID, OwnerRole: actor.Role}
	if userID != actor.UserID {
		// refuse before the lookup so other accounts stay invisible to students
		if !policy.CanPerform(actor, policy.TimetableRead, policy.Resource{OwnerID: userID, OwnerRole: model.RoleStudent}) {
			return nil, policy.ErrForbidden
		}
		owner, err := s.repo.User.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			s.logger.Error("load timetable owner failed", zap.Uint("user_id", userID), zap.Error(err))
			return nil, err
		}
		res = policy.UserResource(owner)
	}
	if err := policy.Authorize(actor, policy.TimetableRead, res); err != nil {
		return nil, err
	}
	return s.current(ctx, userID)
}

func (s *timetableService) Replace(ctx context.Context, actor policy.Actor, userID uint, slots []model.TimeSlot) (*dto.TimetableResponse, error) {
	if err := policy.Authorize(actor, policy.TimetableReplace, policy.OwnedBy(userID)); err != nil {
		return nil, err
	}
	if err := model.ValidateSlots(slots); err != nil {
		return nil, err
	}

	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("load timetable owner failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	if err := s.repo.Timetable.ReplaceByUser(ctx, userID, slots); err != nil {
		s.logger.Error("replace timetable failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	event.Emit(ctx, s.events, s.logger, event.Event{
		Type:       event.TimetableReplaced,
		ActorID:    actor.UserID,
		UserID:     userID,
		Attributes: map[string]string{"slots": strconv.Itoa(len(slots))},
	})
	s.logger.Info("timetable replaced", zap.Uint("user_id", userID), zap.Int("slots", len(slots)))
	return s.current(ctx, userID)
}

func (s *timetableService) Import(ctx context.Context, actor policy.Actor, userID uint, fileName string, r io.Reader) (*dto.TimetableResponse, error) {
	if err := policy.Authorize(actor, policy.TimetableReplace, policy.OwnedBy(userID)); err != nil {
		return nil, err
	}
	if !SupportedTimetableExt(fileName) {
		return nil, ErrUnsupportedFormat
	}

	limit := s.cfg.Timetable.MaxFileBytes
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}

	slots, err := ParseTimetableFile(fileName, bytes.TrimSpace(data), s.cfg.Timetable.Location())
	if err != nil {
		s.logger.Warn("timetable file rejected", zap.Uint("user_id", userID), zap.String("file", fileName), zap.Error(err))
		return nil, err
	}
	return s.Replace(ctx, actor, userID, slots)
}

func (s *timetableService) current(ctx context.Context, userID uint) (*dto.TimetableResponse, error) {
	slots, err := s.repo.Timetable.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("list timetable failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp := dto.NewTimetableResponse(slots)
	return &resp, nil
}
