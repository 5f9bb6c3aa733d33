package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/internal/repository"
	apperrors "workflow/backend/pkg/errors"
	"workflow/backend/pkg/event"
)

var (
	ErrProjectNotFound  = apperrors.New(apperrors.ErrNotFound, "project not found")
	ErrPMUserNotFound   = apperrors.New(apperrors.ErrNotFound, "project manager not found")
	ErrNotAPM           = apperrors.New(apperrors.ErrValidation, "user is not a project manager")
	ErrPMInactive       = apperrors.New(apperrors.ErrValidation, "project manager account is disabled")
	ErrAlreadyMember    = apperrors.New(apperrors.ErrConflict, "user is already a member of this project")
	ErrNotMember        = apperrors.New(apperrors.ErrNotFound, "user is not a member of this project")
	ErrMemberNotStudent = apperrors.New(apperrors.ErrValidation, "only students can join a project")
)

// ProjectService project lifecycle and membership
type ProjectService interface {
	Create(ctx context.Context, actor policy.Actor, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error)
	Update(ctx context.Context, actor policy.Actor, id uint, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error)
	Get(ctx context.Context, actor policy.Actor, id uint) (*dto.ProjectResponse, error)
	Delete(ctx context.Context, actor policy.Actor, id uint) error

	List(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error)
	ListByStatus(ctx context.Context, actor policy.Actor, status string) ([]dto.ProjectResponse, error)
	ListManaged(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error)
	ListJoined(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error)

	// SetStatus overwrites the status; every transition is allowed.
	SetStatus(ctx context.Context, actor policy.Actor, id uint, status string) (*dto.ProjectResponse, error)
	AddMember(ctx context.Context, actor policy.Actor, projectID, userID uint) (*dto.ProjectResponse, error)
	// RemoveMember fails with ErrNotMember when there is nothing to remove.
	RemoveMember(ctx context.Context, actor policy.Actor, projectID, userID uint) (*dto.ProjectResponse, error)
}

type projectService struct {
	repo   *repository.Repository
	events event.Publisher
	clock  Clock
	loc    *time.Location
	logger *zap.Logger
}

// NewProjectService creates the ProjectService. "Today" is evaluated in loc.
func NewProjectService(repo *repository.Repository, events event.Publisher, clock Clock, loc *time.Location, logger *zap.Logger) ProjectService {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &projectService{repo: repo, events: events, clock: clock, loc: loc, logger: logger}
}

func (s *projectService) now() time.Time { return s.clock().In(s.loc) }

// ═══════════════════════════════════════════════════════════
// CRUD
// ═══════════════════════════════════════════════════════════

func (s *projectService) Create(ctx context.Context, actor policy.Actor, req *dto.CreateProjectRequest) (*dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectCreate, policy.None); err != nil {
		return nil, err
	}

	start := model.CalendarDate(s.now())
	var errs apperrors.ValidationErrors
	if err := model.ValidateProjectFields(req.ProjectName, req.DifficultyLevel, req.DurationDays); err != nil {
		var verrs apperrors.ValidationErrors
		if errors.As(err, &verrs) {
			errs = append(errs, verrs...)
		}
	}
	if req.StartDate != nil && *req.StartDate != "" {
		d, err := model.ParseDate(*req.StartDate)
		if err != nil {
			errs.Add("startDate", "must be YYYY-MM-DD", *req.StartDate, "date")
		}
		start = d
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	project := &model.Project{
		ProjectName:     strings.TrimSpace(req.ProjectName),
		DifficultyLevel: req.DifficultyLevel,
		DurationDays:    req.DurationDays,
		Status:          model.StatusNotStarted,
		StartDate:       datatypes.Date(start),
	}
	if req.PMUserID != nil && *req.PMUserID != 0 {
		if err := s.checkPM(ctx, *req.PMUserID); err != nil {
			return nil, err
		}
		pm := *req.PMUserID
		project.PMUserID = &pm
	}

	if err := s.repo.Project.Create(ctx, project); err != nil {
		s.logger.Error("create project failed", zap.Error(err))
		return nil, err
	}

	s.emit(ctx, event.ProjectCreated, actor, project.ID, 0, nil)
	s.logger.Info("project created", zap.Uint("project_id", project.ID), zap.Uint("actor", actor.UserID))
	return s.reload(ctx, project.ID)
}

func (s *projectService) Update(ctx context.Context, actor policy.Actor, id uint, req *dto.UpdateProjectRequest) (*dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectUpdate, policy.None); err != nil {
		return nil, err
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	name, difficulty, duration := project.ProjectName, project.DifficultyLevel, project.DurationDays
	if req.ProjectName != nil {
		name = *req.ProjectName
	}
	if req.DifficultyLevel != nil {
		difficulty = *req.DifficultyLevel
	}
	if req.DurationDays != nil {
		duration = *req.DurationDays
	}

	var errs apperrors.ValidationErrors
	if err := model.ValidateProjectFields(name, difficulty, duration); err != nil {
		var verrs apperrors.ValidationErrors
		if errors.As(err, &verrs) {
			errs = append(errs, verrs...)
		}
	}
	start := time.Time(project.StartDate)
	if req.StartDate != nil {
		d, err := model.ParseDate(*req.StartDate)
		if err != nil {
			errs.Add("startDate", "must be YYYY-MM-DD", *req.StartDate, "date")
		}
		start = d
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	if req.PMUserID != nil {
		if *req.PMUserID == 0 {
			project.PMUserID = nil
		} else {
			if err := s.checkPM(ctx, *req.PMUserID); err != nil {
				return nil, err
			}
			pm := *req.PMUserID
			project.PMUserID = &pm
		}
	}

	project.ProjectName = strings.TrimSpace(name)
	project.DifficultyLevel = difficulty
	project.DurationDays = duration
	project.StartDate = datatypes.Date(start)
	// stale association would otherwise shadow the new PMUserID in the response
	project.PMUser = nil

	if err := s.repo.Project.Update(ctx, project); err != nil {
		s.logger.Error("update project failed", zap.Uint("project_id", id), zap.Error(err))
		return nil, err
	}

	s.emit(ctx, event.ProjectUpdated, actor, id, 0, nil)
	return s.reload(ctx, id)
}

func (s *projectService) Get(ctx context.Context, actor policy.Actor, id uint) (*dto.ProjectResponse, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ProjectRead, policy.ProjectResource(project)); err != nil {
		return nil, err
	}
	resp := dto.NewProjectResponse(project, s.now())
	return &resp, nil
}

func (s *projectService) Delete(ctx context.Context, actor policy.Actor, id uint) error {
	if err := policy.Authorize(actor, policy.ProjectDelete, policy.None); err != nil {
		return err
	}
	if err := s.repo.Project.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		s.logger.Error("delete project failed", zap.Uint("project_id", id), zap.Error(err))
		return err
	}

	s.emit(ctx, event.ProjectDeleted, actor, id, 0, nil)
	return nil
}

// ═══════════════════════════════════════════════════════════
// Listing
// ═══════════════════════════════════════════════════════════

func (s *projectService) List(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectList, policy.None); err != nil {
		return nil, err
	}
	return s.list(ctx, repository.ProjectFilter{})
}

func (s *projectService) ListByStatus(ctx context.Context, actor policy.Actor, status string) ([]dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectList, policy.None); err != nil {
		return nil, err
	}
	st, err := model.ParseProjectStatus(status)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, repository.ProjectFilter{Status: &st})
}

func (s *projectService) ListManaged(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectListManaged, policy.None); err != nil {
		return nil, err
	}
	pm := actor.UserID
	return s.list(ctx, repository.ProjectFilter{PMUserID: &pm})
}

func (s *projectService) ListJoined(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectListJoined, policy.None); err != nil {
		return nil, err
	}
	member := actor.UserID
	return s.list(ctx, repository.ProjectFilter{MemberID: &member})
}

// ═══════════════════════════════════════════════════════════
// Status & membership
// ═══════════════════════════════════════════════════════════

func (s *projectService) SetStatus(ctx context.Context, actor policy.Actor, id uint, status string) (*dto.ProjectResponse, error) {
	st, err := model.ParseProjectStatus(status)
	if err != nil {
		return nil, err
	}
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ProjectSetStatus, policy.ProjectResource(project)); err != nil {
		return nil, err
	}

	previous := project.Status
	if err := s.repo.Project.UpdateStatus(ctx, id, st); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("update status failed", zap.Uint("project_id", id), zap.Error(err))
		return nil, err
	}

	s.emit(ctx, event.ProjectStatusChanged, actor, id, 0, map[string]string{
		"from": string(previous),
		"to":   string(st),
	})
	return s.reload(ctx, id)
}

func (s *projectService) AddMember(ctx context.Context, actor policy.Actor, projectID, userID uint) (*dto.ProjectResponse, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ProjectAddMember, policy.ProjectResource(project)); err != nil {
		return nil, err
	}

	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("load member failed", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}
	if user.Role != model.RoleStudent {
		return nil, ErrMemberNotStudent
	}
	if project.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	if err := s.repo.Project.AddMember(ctx, &model.ProjectMember{ProjectID: projectID, UserID: userID}); err != nil {
		// lost a race against a concurrent add
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyMember
		}
		s.logger.Error("add member failed", zap.Uint("project_id", projectID), zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	s.emit(ctx, event.MemberAdded, actor, projectID, userID, nil)
	return s.reload(ctx, projectID)
}

func (s *projectService) RemoveMember(ctx context.Context, actor policy.Actor, projectID, userID uint) (*dto.ProjectResponse, error) {
	project, err := s.load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, policy.ProjectRemoveMember, policy.ProjectResource(project)); err != nil {
		return nil, err
	}

	removed, err := s.repo.Project.RemoveMember(ctx, projectID, userID)
	if err != nil {
		s.logger.Error("remove member failed", zap.Uint("project_id", projectID), zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}
	if removed == 0 {
		return nil, ErrNotMember
	}

	s.emit(ctx, event.MemberRemoved, actor, projectID, userID, nil)
	return s.reload(ctx, projectID)
}

// ── helpers ──

func (s *projectService) load(ctx context.Context, id uint) (*model.Project, error) {
	project, err := s.repo.Project.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("load project failed", zap.Uint("project_id", id), zap.Error(err))
		return nil, err
	}
	return project, nil
}

func (s *projectService) reload(ctx context.Context, id uint) (*dto.ProjectResponse, error) {
	project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := dto.NewProjectResponse(project, s.now())
	return &resp, nil
}

func (s *projectService) list(ctx context.Context, filter repository.ProjectFilter) ([]dto.ProjectResponse, error) {
	projects, err := s.repo.Project.List(ctx, filter)
	if err != nil {
		s.logger.Error("list projects failed", zap.Error(err))
		return nil, err
	}
	return dto.NewProjectList(projects, s.now()), nil
}

func (s *projectService) checkPM(ctx context.Context, userID uint) error {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPMUserNotFound
		}
		s.logger.Error("load pm failed", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}
	if user.Role != model.RolePM {
		return ErrNotAPM
	}
	if !user.IsActive {
		return ErrPMInactive
	}
	return nil
}

func (s *projectService) emit(ctx context.Context, typ event.Type, actor policy.Actor, projectID, userID uint, attrs map[string]string) {
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["actorRole"] = string(actor.Role)
	if userID != 0 {
		attrs["member"] = strconv.FormatUint(uint64(userID), 10)
	}
	event.Emit(ctx, s.events, s.logger, event.Event{
		Type:       typ,
		ActorID:    actor.UserID,
		ProjectID:  projectID,
		UserID:     userID,
		Attributes: attrs,
	})
}
