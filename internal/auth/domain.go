package auth

import (
	"net/http"
	"time"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// User represents a registered account.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	FullName     string      `json:"full_name"`
	Phone        string      `json:"phone,omitempty"`
	PasswordHash string      `json:"-"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// PendingRegistration is held in Redis until the OTP is verified.
type PendingRegistration struct {
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"password_hash"`
	CodeHash     string    `json:"code_hash"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// Session is returned after login or verification.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

var (
	// ErrEmailExists reports a registration for a taken email.
	ErrEmailExists = shared.NewError(1004, http.StatusConflict, "email already exists")
	// ErrInvalidOTP reports a wrong verification code.
	ErrInvalidOTP = shared.NewError(1006, http.StatusBadRequest, "invalid otp")
	// ErrOTPExpired reports a missing or expired pending registration.
	ErrOTPExpired = shared.NewError(1007, http.StatusGone, "otp expired")
	// ErrEmailSendFailed reports a delivery failure of the OTP mail.
	ErrEmailSendFailed = shared.NewError(1008, http.StatusBadGateway, "email send failed")
	// ErrTooManyAttempts reports an OTP locked after repeated failures.
	ErrTooManyAttempts = shared.NewError(1009, http.StatusTooManyRequests, "too many otp attempts")
)
