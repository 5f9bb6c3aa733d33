package repository

import (
	"context"

	"gorm.io/gorm"

	"workflow/backend/internal/model"
)

// TimetableRepository timetable slot data access
type TimetableRepository interface {
	ListByUser(ctx context.Context, userID uint) ([]model.TimeSlot, error)
	// ReplaceByUser swaps the whole timetable in one transaction: delete old rows, insert new.
	ReplaceByUser(ctx context.Context, userID uint, slots []model.TimeSlot) error
	DeleteByUser(ctx context.Context, userID uint) error
}

type timetableRepo struct {
	db *gorm.DB
}

// NewTimetableRepo creates the GORM TimetableRepository.
func NewTimetableRepo(db *gorm.DB) TimetableRepository {
	return &timetableRepo{db: db}
}

// weekdayOrder sorts by calendar position rather than alphabetically.
const weekdayOrder = `CASE day_of_week
	WHEN 'Monday' THEN 1 WHEN 'Tuesday' THEN 2 WHEN 'Wednesday' THEN 3
	WHEN 'Thursday' THEN 4 WHEN 'Friday' THEN 5 WHEN 'Saturday' THEN 6
	ELSE 7 END`

func (r *timetableRepo) ListByUser(ctx context.Context, userID uint) ([]model.TimeSlot, error) {
	slots := []model.TimeSlot{}
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(weekdayOrder + ", start_time ASC, id ASC").
		Find(&slots).Error
	return slots, err
}

func (r *timetableRepo) ReplaceByUser(ctx context.Context, userID uint, slots []model.TimeSlot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&model.TimeSlot{}).Error; err != nil {
			return err
		}
		if len(slots) == 0 {
			return nil
		}
		rows := make([]model.TimeSlot, len(slots))
		for i, s := range slots {
			s.ID = 0
			s.UserID = userID
			rows[i] = s
		}
		return tx.Create(&rows).Error
	})
}

func (r *timetableRepo) DeleteByUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.TimeSlot{}).Error
}
