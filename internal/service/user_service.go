package service

import (
	"context"
	"errors"
	"strings"

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

var ErrUserNotFound = apperrors.New(apperrors.ErrNotFound, "user not found")

// UserService admin user management, own profile and the student pool
type UserService interface {
	List(ctx context.Context, actor policy.Actor, filter repository.UserFilter) ([]model.User, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (*model.User, error)
	Update(ctx context.Context, actor policy.Actor, id uint, req *dto.UpdateUserRequest) (*model.User, error)
	AssignRole(ctx context.Context, actor policy.Actor, id uint, role string) (*model.User, error)
	// Delete removes the user and detaches them from memberships, PM links and timetable.
	Delete(ctx context.Context, actor policy.Actor, id uint) error

	GetProfile(ctx context.Context, actor policy.Actor) (*model.User, error)
	UpdateProfile(ctx context.Context, actor policy.Actor, req *dto.UpdateProfileRequest) (*model.User, error)

	// ListStudents returns active students, optionally narrowed to one specialty.
	ListStudents(ctx context.Context, actor policy.Actor, specialty string) ([]model.User, error)
}

type userService struct {
	cfg    *config.Config
	repo   *repository.Repository
	events event.Publisher
	logger *zap.Logger
}

// NewUserService creates the UserService.
func NewUserService(cfg *config.Config, repo *repository.Repository, events event.Publisher, logger *zap.Logger) UserService {
	return &userService{cfg: cfg, repo: repo, events: events, logger: logger}
}

func (s *userService) List(ctx context.Context, actor policy.Actor, filter repository.UserFilter) ([]model.User, error) {
	if err := policy.Authorize(actor, policy.UserList, policy.None); err != nil {
		return nil, err
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, model.ErrInvalidRole
	}
	users, err := s.repo.User.List(ctx, filter)
	if err != nil {
		s.logger.Error("list users failed", zap.Error(err))
		return nil, err
	}
	return users, nil
}

func (s *userService) Get(ctx context.Context, actor policy.Actor, id uint) (*model.User, error) {
	if err := policy.Authorize(actor, policy.UserRead, policy.OwnedBy(id)); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *userService) Update(ctx context.Context, actor policy.Actor, id uint, req *dto.UpdateUserRequest) (*model.User, error) {
	if err := policy.Authorize(actor, policy.UserUpdate, policy.OwnedBy(id)); err != nil {
		return nil, err
	}
	return s.apply(ctx, id, req)
}

func (s *userService) AssignRole(ctx context.Context, actor policy.Actor, id uint, role string) (*model.User, error) {
	if err := policy.Authorize(actor, policy.UserAssignRole, policy.OwnedBy(id)); err != nil {
		return nil, err
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == r {
		return user, nil
	}
	previous := user.Role
	if err := s.repo.User.ChangeRole(ctx, id, previous, r); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("update role failed", zap.Uint("user_id", id), zap.Error(err))
		return nil, err
	}
	user.Role = r

	event.Emit(ctx, s.events, s.logger, event.Event{
		Type:       event.UserRoleChanged,
		ActorID:    actor.UserID,
		UserID:     id,
		Attributes: map[string]string{"from": string(previous), "to": string(r)},
	})
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Authorize(actor, policy.UserDelete, policy.OwnedBy(id)); err != nil {
		return err
	}
	if err := s.repo.User.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		s.logger.Error("delete user failed", zap.Uint("user_id", id), zap.Error(err))
		return err
	}

	event.Emit(ctx, s.events, s.logger, event.Event{Type: event.UserDeleted, ActorID: actor.UserID, UserID: id})
	return nil
}

func (s *userService) GetProfile(ctx context.Context, actor policy.Actor) (*model.User, error) {
	if err := policy.Authorize(actor, policy.ProfileRead, policy.OwnedBy(actor.UserID)); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.UserID)
}

func (s *userService) UpdateProfile(ctx context.Context, actor policy.Actor, req *dto.UpdateProfileRequest) (*model.User, error) {
	if err := policy.Authorize(actor, policy.ProfileUpdate, policy.OwnedBy(actor.UserID)); err != nil {
		return nil, err
	}
	return s.apply(ctx, actor.UserID, req.AsUserUpdate())
}

func (s *userService) ListStudents(ctx context.Context, actor policy.Actor, specialty string) ([]model.User, error) {
	if err := policy.Authorize(actor, policy.StudentPool, policy.None); err != nil {
		return nil, err
	}
	filter := repository.UserFilter{Role: model.RoleStudent, ActiveOnly: true}
	if specialty != "" {
		sp, err := model.ParseSpecialty(specialty)
		if err != nil {
			return nil, err
		}
		filter.Specialty = string(sp)
	}
	users, err := s.repo.User.List(ctx, filter)
	if err != nil {
		s.logger.Error("list students failed", zap.Error(err))
		return nil, err
	}
	return users, nil
}

// ── helpers ──

func (s *userService) load(ctx context.Context, id uint) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("load user failed", zap.Uint("user_id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}

// apply validates every field before touching the stored user.
func (s *userService) apply(ctx context.Context, id uint, req *dto.UpdateUserRequest) (*model.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var errs apperrors.ValidationErrors
	if req.FirstName != nil {
		if name := strings.TrimSpace(*req.FirstName); name == "" {
			errs.Add("firstName", "must not be empty", *req.FirstName, "required")
		} else {
			user.FirstName = name
		}
	}
	if req.YearLevel != nil {
		user.YearLevel = strings.TrimSpace(*req.YearLevel)
	}
	if req.Specialty != nil {
		if *req.Specialty == "" {
			user.Specialty = ""
		} else if sp, err := model.ParseSpecialty(*req.Specialty); err != nil {
			errs.Add("specialty", "unknown specialty", *req.Specialty, "oneof")
		} else {
			user.Specialty = string(sp)
		}
	}
	if req.Username != nil {
		if name := strings.TrimSpace(*req.Username); name == "" {
			errs.Add("username", "must not be empty", *req.Username, "required")
		} else {
			user.Username = name
		}
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	if req.Username != nil {
		taken, err := s.repo.User.ExistsByUsername(ctx, user.Username, user.ID)
		if err != nil {
			s.logger.Error("check username failed", zap.Error(err))
			return nil, err
		}
		if taken {
			return nil, ErrUsernameTaken
		}
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password, s.cfg.Auth.BcryptCost)
		if err != nil {
			s.logger.Error("hash password failed", zap.Error(err))
			return nil, err
		}
		user.PasswordHash = hash
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.User.Update(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		s.logger.Error("update user failed", zap.Uint("user_id", id), zap.Error(err))
		return nil, err
	}
	return user, nil
}
