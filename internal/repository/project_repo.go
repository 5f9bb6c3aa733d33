package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workflow/backend/internal/model"
)

// ProjectFilter narrows List. Nil fields mean "any".
type ProjectFilter struct {
	Status   *model.ProjectStatus
	PMUserID *uint
	MemberID *uint
}

// ProjectRepository project and membership data access
type ProjectRepository interface {
	Create(ctx context.Context, p *model.Project) error
	GetByID(ctx context.Context, id uint) (*model.Project, error)
	// Update writes the project's own columns; associations are left untouched.
	Update(ctx context.Context, p *model.Project) error
	UpdateStatus(ctx context.Context, id uint, status model.ProjectStatus) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter ProjectFilter) ([]model.Project, error)

	AddMember(ctx context.Context, m *model.ProjectMember) error
	// RemoveMember returns the number of membership rows deleted.
	RemoveMember(ctx context.Context, projectID, userID uint) (int64, error)
	IsMember(ctx context.Context, projectID, userID uint) (bool, error)
}

type projectRepo struct {
	db *gorm.DB
}

// NewProjectRepo creates the GORM ProjectRepository.
func NewProjectRepo(db *gorm.DB) ProjectRepository {
	return &projectRepo{db: db}
}

// withRelations preloads the PM and members in insertion order.
func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("PMUser").
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("project_members.id ASC")
		}).
		Preload("Members.User")
}

func (r *projectRepo) Create(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

func (r *projectRepo) GetByID(ctx context.Context, id uint) (*model.Project, error) {
	var p model.Project
	if err := withRelations(r.db.WithContext(ctx)).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *projectRepo) Update(ctx context.Context, p *model.Project) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error
}

func (r *projectRepo) UpdateStatus(ctx context.Context, id uint, status model.ProjectStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{"status": status, "updated_at": gorm.Expr("CURRENT_TIMESTAMP")})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *projectRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Project{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

func (r *projectRepo) List(ctx context.Context, filter ProjectFilter) ([]model.Project, error) {
	var projects []model.Project
	db := withRelations(r.db.WithContext(ctx).Model(&model.Project{}))
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.PMUserID != nil {
		db = db.Where("pm_user_id = ?", *filter.PMUserID)
	}
	if filter.MemberID != nil {
		db = db.Where("id IN (?)",
			r.db.Model(&model.ProjectMember{}).Select("project_id").Where("user_id = ?", *filter.MemberID))
	}
	err := db.Order("deadline ASC, id ASC").Find(&projects).Error
	return projects, err
}

func (r *projectRepo) AddMember(ctx context.Context, m *model.ProjectMember) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(m).Error
}

func (r *projectRepo) RemoveMember(ctx context.Context, projectID, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectMember{})
	return res.RowsAffected, res.Error
}

func (r *projectRepo) IsMember(ctx context.Context, projectID, userID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&n).Error
	return n > 0, err
}
