package dto

import "time"

// ── auth ──

// RegisterRequest self-registration; the account is always a student
type RegisterRequest struct {
	FirstName string `json:"firstName" binding:"required,max=100"`
	YearLevel string `json:"yearLevel" binding:"max=20"`
	Specialty string `json:"specialty"`
	Username  string `json:"username"  binding:"required,min=3,max=50"`
	Password  string `json:"password"  binding:"required,min=6,max=72"`
}

// LoginRequest
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse issued session
type AuthResponse struct {
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	ID        uint      `json:"id"`
	CustomID  string    `json:"customId"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}
