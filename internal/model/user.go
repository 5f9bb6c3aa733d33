package model

import (
	"strings"

	"github.com/google/uuid"

	apperrors "workflow/backend/pkg/errors"
)

// Role is the single role a user holds.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RolePM      Role = "PM"
	RoleAdmin   Role = "ADMIN"
)

// ErrInvalidRole rejects any role literal outside the three known ones.
var ErrInvalidRole = apperrors.New(apperrors.ErrValidation, "invalid role")

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RolePM, RoleAdmin:
		return true
	}
	return false
}

// ParseRole maps a wire string to a Role. Matching is exact after trimming.
func ParseRole(s string) (Role, error) {
	r := Role(strings.TrimSpace(s))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Specialty is a student's discipline.
type Specialty string

const (
	SpecialtyFrontend Specialty = "Frontend"
	SpecialtyBackend  Specialty = "Backend"
	SpecialtyML       Specialty = "ML Engineer"
	SpecialtyUXUI     Specialty = "UX/UI"
	SpecialtyQA       Specialty = "QA"
	SpecialtyDevOps   Specialty = "DevOps"
)

// Specialties lists the vocabulary in display order.
var Specialties = []Specialty{
	SpecialtyFrontend, SpecialtyBackend, SpecialtyML, SpecialtyUXUI, SpecialtyQA, SpecialtyDevOps,
}

// ParseSpecialty accepts a specialty case-insensitively and returns its canonical form.
func ParseSpecialty(s string) (Specialty, error) {
	s = strings.TrimSpace(s)
	for _, sp := range Specialties {
		if strings.EqualFold(string(sp), s) {
			return sp, nil
		}
	}
	return "", apperrors.Invalid("specialty", "unknown specialty", s)
}

// User account, table users
type User struct {
	ID           uint   `gorm:"primaryKey"                               json:"id"`
	CustomID     string `gorm:"type:varchar(20);not null;uniqueIndex"     json:"customId"`
	FirstName    string `gorm:"type:varchar(100);not null"               json:"firstName"`
	YearLevel    string `gorm:"type:varchar(20);not null;default:''"      json:"yearLevel"` // free text, e.g. "Year 3"
	Specialty    string `gorm:"type:varchar(30);not null;default:''"      json:"specialty"`
	Username     string `gorm:"type:varchar(50);not null;uniqueIndex"     json:"username"`
	PasswordHash string `gorm:"type:varchar(255);not null"               json:"-"`
	Role         Role   `gorm:"type:varchar(10);not null;default:'STUDENT'" json:"role"`
	IsActive     bool   `gorm:"not null;default:true"                    json:"isActive"`
	BaseModel
}

// TableName users
func (User) TableName() string { return "users" }

// NewCustomID generates the public identifier assigned once at creation.
func NewCustomID() string {
	return "USR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
