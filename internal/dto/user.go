package dto

import (
	"time"

	"workflow/backend/internal/model"
)

// ── users ──

// UserResponse public view of a user
type UserResponse struct {
	ID        uint      `json:"id"`
	CustomID  string    `json:"customId"`
	FirstName string    `json:"firstName"`
	YearLevel string    `json:"yearLevel"`
	Specialty string    `json:"specialty"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewUserResponse
func NewUserResponse(u *model.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		CustomID:  u.CustomID,
		FirstName: u.FirstName,
		YearLevel: u.YearLevel,
		Specialty: u.Specialty,
		Username:  u.Username,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUserList
func NewUserList(users []model.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = NewUserResponse(&users[i])
	}
	return out
}

// UpdateUserRequest admin edit; nil fields are left unchanged
type UpdateUserRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	YearLevel *string `json:"yearLevel" binding:"omitempty,max=20"`
	Specialty *string `json:"specialty"`
	Username  *string `json:"username"  binding:"omitempty,min=3,max=50"`
	Password  *string `json:"password"  binding:"omitempty,min=6,max=72"`
	IsActive  *bool   `json:"isActive"`
}

// UpdateProfileRequest self edit; role, username and status are not editable here
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" binding:"omitempty,max=100"`
	YearLevel *string `json:"yearLevel" binding:"omitempty,max=20"`
	Specialty *string `json:"specialty"`
	Password  *string `json:"password"  binding:"omitempty,min=6,max=72"`
}

// AsUserUpdate widens a profile edit to the admin shape.
func (r *UpdateProfileRequest) AsUserUpdate() *UpdateUserRequest {
	return &UpdateUserRequest{
		FirstName: r.FirstName,
		YearLevel: r.YearLevel,
		Specialty: r.Specialty,
		Password:  r.Password,
	}
}
