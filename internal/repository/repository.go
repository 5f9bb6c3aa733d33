package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregates every repository.
type Repository struct {
	db *gorm.DB

	User      UserRepository
	Project   ProjectRepository
	Timetable TimetableRepository
}

// NewRepository builds the aggregate on one connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:        db,
		User:      NewUserRepo(db),
		Project:   NewProjectRepo(db),
		Timetable: NewTimetableRepo(db),
	}
}

// Transaction runs fn with an aggregate bound to one database transaction.
// fn's error rolls everything back.
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
