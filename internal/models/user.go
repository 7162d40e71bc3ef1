package models

import (
	"strings"
	"time"
)

// GuestFirstName is used for accounts created implicitly at checkout.
const GuestFirstName = "Tourist"

// User represents a user in the system
type User struct {
	ID                 int64     `json:"id" db:"id"`
	Email              string    `json:"email" db:"email"`
	PasswordHash       string    `json:"-" db:"password_hash"`
	FirstName          string    `json:"first_name" db:"first_name"`
	PhoneNumber        string    `json:"phone_number,omitempty" db:"phone_number"`
	IsActive           bool      `json:"is_active" db:"is_active"`
	NeedsPasswordReset bool      `json:"needs_password_reset" db:"needs_password_reset"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// NewUser holds the fields needed to insert a user
type NewUser struct {
	Email              string
	PasswordHash       string
	FirstName          string
	PhoneNumber        string
	NeedsPasswordReset bool
}

// RegisterRequest represents the data needed to create a new account
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" validate:"required,max=100"`
}

// Validate validates registration data
func (req *RegisterRequest) Validate() error {
	req.Email = NormalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	return validateStruct(req)
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Validate validates login data
func (req *LoginRequest) Validate() error {
	req.Email = NormalizeEmail(req.Email)
	return validateStruct(req)
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Validate validates the refresh request
func (req *RefreshRequest) Validate() error {
	return validateStruct(req)
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
