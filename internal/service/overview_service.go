package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"workflow/backend/internal/dto"
	"workflow/backend/internal/model"
	"workflow/backend/internal/policy"
	"workflow/backend/internal/repository"
)

// OverviewService monitoring views over a fresh project snapshot
type OverviewService interface {
	// Overview covers every project for admins and the managed ones for PMs.
	Overview(ctx context.Context, actor policy.Actor) (*dto.ProjectStatusOverview, error)
	DueSoon(ctx context.Context, actor policy.Actor, days int) ([]dto.ProjectResponse, error)
	Overdue(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error)
	NeedingHelp(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error)
}

type overviewService struct {
	repo    *repository.Repository
	clock   Clock
	loc     *time.Location
	// horizon applies to the overview and to DueSoon calls without a window
	horizon int
	logger  *zap.Logger
}

// NewOverviewService creates the OverviewService.
func NewOverviewService(repo *repository.Repository, clock Clock, loc *time.Location, horizon int, logger *zap.Logger) OverviewService {
	if clock == nil {
		clock = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	if horizon <= 0 {
		horizon = DefaultDueSoonDays
	}
	return &overviewService{repo: repo, clock: clock, loc: loc, horizon: horizon, logger: logger}
}

func (s *overviewService) Overview(ctx context.Context, actor policy.Actor) (*dto.ProjectStatusOverview, error) {
	var filter repository.ProjectFilter
	switch {
	case policy.CanPerform(actor, policy.ProjectOverview, policy.None):
	case policy.CanPerform(actor, policy.ProjectListManaged, policy.None):
		pm := actor.UserID
		filter.PMUserID = &pm
	default:
		return nil, policy.ErrForbidden
	}

	projects, err := s.snapshot(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.clock().In(s.loc)
	return &dto.ProjectStatusOverview{
		AllProjects:         dto.NewProjectList(projects, now),
		ProjectsDueSoon:     dto.NewProjectList(ProjectsDueSoon(projects, now, s.horizon), now),
		OverdueProjects:     dto.NewProjectList(OverdueProjects(projects, now), now),
		ProjectsNeedingHelp: dto.NewProjectList(ProjectsNeedingHelp(projects), now),
	}, nil
}

func (s *overviewService) DueSoon(ctx context.Context, actor policy.Actor, days int) ([]dto.ProjectResponse, error) {
	if days <= 0 {
		days = s.horizon
	}
	return s.view(ctx, actor, func(ps []model.Project, now time.Time) []model.Project {
		return ProjectsDueSoon(ps, now, days)
	})
}

func (s *overviewService) Overdue(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error) {
	return s.view(ctx, actor, OverdueProjects)
}

func (s *overviewService) NeedingHelp(ctx context.Context, actor policy.Actor) ([]dto.ProjectResponse, error) {
	return s.view(ctx, actor, func(ps []model.Project, _ time.Time) []model.Project {
		return ProjectsNeedingHelp(ps)
	})
}

// ── helpers ──

func (s *overviewService) view(ctx context.Context, actor policy.Actor, pick func([]model.Project, time.Time) []model.Project) ([]dto.ProjectResponse, error) {
	if err := policy.Authorize(actor, policy.ProjectOverview, policy.None); err != nil {
		return nil, err
	}
	projects, err := s.snapshot(ctx, repository.ProjectFilter{})
	if err != nil {
		return nil, err
	}
	now := s.clock().In(s.loc)
	return dto.NewProjectList(pick(projects, now), now), nil
}

func (s *overviewService) snapshot(ctx context.Context, filter repository.ProjectFilter) ([]model.Project, error) {
	projects, err := s.repo.Project.List(ctx, filter)
	if err != nil {
		s.logger.Error("load project snapshot failed", zap.Error(err))
		return nil, err
	}
	return projects, nil
}
