package http

import (
	"time"

	"github.com/karmakanban/karmakanban-backend/internal/domain"
)

// ErrorResponse represents a generic error payload.
type ErrorResponse struct {
	Error  string `json:"error" example:"invalid credentials"`
	Reason string `json:"reason,omitempty" example:"expired"`
}

// AuthRole models the role information included in auth responses.
type AuthRole struct {
	ID          string    `json:"id" example:"f4bb0e02-5f91-4ce0-a6c0-7f63f3a8d5e2"`
	RoleName    string    `json:"role_name" example:"admin"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" example:"2024-01-01T12:00:00Z"`
	UpdatedAt   time.Time `json:"updated_at" example:"2024-01-01T12:00:00Z"`
}

// AuthUser models the sanitized user representation returned by auth endpoints.
type AuthUser struct {
	ID          string     `json:"id" example:"9fd13fd2-63c5-4f29-a210-4a1a8e285f74"`
	Email       string     `json:"email" example:"user@example.com"`
	DisplayName *string    `json:"display_name,omitempty" example:"Kanban Kid"`
	KarmaPoints int64      `json:"karma_points" example:"42"`
	Roles       []AuthRole `json:"roles,omitempty"`
	CreatedAt   time.Time  `json:"created_at" example:"2024-01-01T12:00:00Z"`
	UpdatedAt   time.Time  `json:"updated_at" example:"2024-01-02T09:30:00Z"`
}

// AuthTokenResponse is returned by endpoints that issue JWT tokens.
type AuthTokenResponse struct {
	Token     string   `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt string   `json:"expires_at" example:"2024-01-02T09:30:00Z"`
	User      AuthUser `json:"user"`
}

// AuthUserResponse wraps a user object.
type AuthUserResponse struct {
	User AuthUser `json:"user"`
}

// SuccessResponse denotes a simple success flag.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
}

// UsersMeta describes pagination metadata for user listings.
type UsersMeta struct {
	Limit  int `json:"limit" example:"20"`
	Offset int `json:"offset" example:"0"`
	Count  int `json:"count" example:"2"`
}

// UsersListResponse is returned by the users listing endpoint.
type UsersListResponse struct {
	Users []AuthUser `json:"users"`
	Meta  UsersMeta  `json:"meta"`
}

// RegisterRequest carries email registration fields.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required" example:"StrongPass!234"`
}

// LoginRequest carries email login fields.
type LoginRequest struct {
	Email    string `json:"email" validate:"required" example:"user@example.com"`
	Password string `json:"password" validate:"required" example:"StrongPass!234"`
}

// ChangePasswordRequest captures the payload for password updates.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" example:"OldPass!2345"`
	NewPassword     string `json:"new_password" validate:"required" example:"NewPass!45678"`
}

// PasswordResetRequest captures the payload for requesting or resending a reset code.
type PasswordResetRequest struct {
	Email string `json:"email" example:"user@example.com"`
}

// PasswordResetVerifyRequest exchanges a mailed code for a reset token.
type PasswordResetVerifyRequest struct {
	Email string `json:"email" validate:"required" example:"user@example.com"`
	OTP   string `json:"otp" validate:"required" example:"123456"`
}

// PasswordResetVerifyResponse carries the token that authorizes the final step.
type PasswordResetVerifyResponse struct {
	ResetToken string    `json:"reset_token" example:"qWbRtYuIoPaSdFgHjKlZxCvBnMqWeRtY"`
	ExpiresAt  time.Time `json:"expires_at" example:"2024-01-02T09:30:00Z"`
}

// PasswordResetMismatchResponse is returned when the code was wrong but attempts remain.
type PasswordResetMismatchResponse struct {
	Error             string `json:"error" example:"verification code does not match"`
	Reason            string `json:"reason" example:"mismatch"`
	RemainingAttempts int    `json:"remaining_attempts" example:"4"`
}

// PasswordResetTokenRequest carries a reset token to inspect.
type PasswordResetTokenRequest struct {
	Token string `json:"token" validate:"required" example:"qWbRtYuIoPaSdFgHjKlZxCvBnMqWeRtY"`
}

// PasswordResetValidateResponse reports whether a reset token is still usable.
type PasswordResetValidateResponse struct {
	Valid bool   `json:"valid" example:"true"`
	Email string `json:"email" example:"user@example.com"`
}

// PasswordResetConfirmRequest spends a reset token on a new password.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" validate:"required" example:"qWbRtYuIoPaSdFgHjKlZxCvBnMqWeRtY"`
	NewPassword string `json:"new_password" validate:"required" example:"NewPass!45678"`
}

// SweepResponse reports how many expired reset tokens were deleted.
type SweepResponse struct {
	Deleted int64 `json:"deleted" example:"3"`
}

func toAuthUser(u *domain.User) AuthUser {
	out := AuthUser{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		KarmaPoints: u.KarmaPoints,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
	for _, r := range u.Roles {
		out.Roles = append(out.Roles, AuthRole{
			ID:          r.ID.String(),
			RoleName:    r.Name,
			Description: r.Description,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out
}
