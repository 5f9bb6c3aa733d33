package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"workflow/backend/config"
	"workflow/backend/internal/dto"
	"workflow/backend/internal/model"
	"workflow/backend/internal/repository"
	apperrors "workflow/backend/pkg/errors"
	"workflow/backend/pkg/jwt"
)

var (
	ErrInvalidCredentials = apperrors.New(apperrors.ErrForbidden, "invalid username or password")
	ErrAccountDisabled    = apperrors.New(apperrors.ErrForbidden, "account is disabled")
	ErrUsernameTaken      = apperrors.New(apperrors.ErrConflict, "username already taken")
)

// AuthService registration, login and logout
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	// Logout revokes the token id for the rest of its lifetime.
	Logout(ctx context.Context, jti string, remaining time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Me(ctx context.Context, userID uint) (*model.User, error)
}

type authService struct {
	cfg       *config.Config
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
}

// NewAuthService creates the AuthService. blacklist may be nil.
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	username := strings.TrimSpace(req.Username)

	var errs apperrors.ValidationErrors
	if username == "" {
		errs.Add("username", "must not be empty", req.Username, "required")
	}
	if strings.TrimSpace(req.FirstName) == "" {
		errs.Add("firstName", "must not be empty", req.FirstName, "required")
	}
	specialty := ""
	if req.Specialty != "" {
		sp, err := model.ParseSpecialty(req.Specialty)
		if err != nil {
			errs.Add("specialty", "unknown specialty", req.Specialty, "oneof")
		}
		specialty = string(sp)
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	taken, err := s.repo.User.ExistsByUsername(ctx, username, 0)
	if err != nil {
		s.logger.Error("check username failed", zap.Error(err))
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := hashPassword(req.Password, s.cfg.Auth.BcryptCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return nil, err
	}

	// self-registration always yields a student
	user := &model.User{
		CustomID:     model.NewCustomID(),
		FirstName:    strings.TrimSpace(req.FirstName),
		YearLevel:    strings.TrimSpace(req.YearLevel),
		Specialty:    specialty,
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleStudent,
		IsActive:     true,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		s.logger.Error("create user failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.repo.User.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("load user failed", zap.Error(err))
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.issue(user)
}

func (s *authService) Logout(ctx context.Context, jti string, remaining time.Duration) error {
	if s.blacklist == nil {
		s.logger.Warn("token blacklist unavailable, logout is client-side only", zap.String("jti", jti))
		return nil
	}
	if err := s.blacklist.BlacklistToken(ctx, jti, remaining); err != nil {
		s.logger.Error("blacklist token failed", zap.Error(err))
		return apperrors.Upstream("blacklist token", err)
	}
	return nil
}

func (s *authService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.blacklist == nil {
		return false, nil
	}
	return s.blacklist.IsBlacklisted(ctx, jti)
}

func (s *authService) Me(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("load user failed", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (s *authService) issue(user *model.User) (*dto.AuthResponse, error) {
	token, claims, err := s.jwtMgr.Generate(user.ID, user.Username, string(user.Role))
	if err != nil {
		s.logger.Error("sign token failed", zap.Error(err))
		return nil, err
	}
	return &dto.AuthResponse{
		Token:     token,
		Type:      "Bearer",
		ID:        user.ID,
		CustomID:  user.CustomID,
		Username:  user.Username,
		FirstName: user.FirstName,
		Role:      string(user.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func hashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
