package repository

import (
	"context"

	"gorm.io/gorm"

	"workflow/backend/internal/model"
)

// UserFilter narrows List. Zero values mean "any".
type UserFilter struct {
	Role       model.Role
	Specialty  string
	ActiveOnly bool
}

// UserRepository user data access
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error)
	Update(ctx context.Context, user *model.User) error
	List(ctx context.Context, filter UserFilter) ([]model.User, error)
	// ChangeRole sets the role and drops the links the new role may not hold:
	// PM links when leaving PM, memberships when leaving STUDENT.
	ChangeRole(ctx context.Context, id uint, from, to model.Role) error
	// Delete removes the user together with memberships, PM links and timetable.
	Delete(ctx context.Context, id uint) error
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates the GORM UserRepository.
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("username = ? AND id <> ?", username, excludeID).
		Count(&n).Error
	return n > 0, err
}

func (r *userRepo) Update(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepo) List(ctx context.Context, filter UserFilter) ([]model.User, error) {
	var users []model.User
	db := r.db.WithContext(ctx).Model(&model.User{})
	if filter.Role != "" {
		db = db.Where("role = ?", filter.Role)
	}
	if filter.Specialty != "" {
		db = db.Where("specialty = ?", filter.Specialty)
	}
	if filter.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	err := db.Order("id ASC").Find(&users).Error
	return users, err
}

func (r *userRepo) ChangeRole(ctx context.Context, id uint, from, to model.Role) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.User{}).Where("id = ?", id).Update("role", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if from == model.RolePM && to != model.RolePM {
			if err := tx.Model(&model.Project{}).
				Where("pm_user_id = ?", id).
				UpdateColumn("pm_user_id", nil).Error; err != nil {
				return err
			}
		}
		if from == model.RoleStudent && to != model.RoleStudent {
			if err := tx.Where("user_id = ?", id).Delete(&model.ProjectMember{}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.ProjectMember{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Project{}).
			Where("pm_user_id = ?", id).
			UpdateColumn("pm_user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.TimeSlot{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
