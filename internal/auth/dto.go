// AngelaMos | 2026
// dto.go

package auth

import (
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/merge"
)

type LoginRequest struct {
	Email    string `json:"email"              validate:"required,email,max=255"`
	Password string `json:"password"           validate:"required,min=8,max=128"`
	DeviceID string `json:"deviceId,omitempty" validate:"omitempty,min=8,max=128"`
}

type RegisterRequest struct {
	Email    string `json:"email"              validate:"required,email,max=255"`
	Password string `json:"password"           validate:"required,min=8,max=128"`
	DeviceID string `json:"deviceId,omitempty" validate:"omitempty,min=8,max=128"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword"     validate:"required,min=8,max=128"`
}

type TokenResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresIn   int       `json:"expiresIn"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type UserResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	ReferralCode string `json:"referralCode,omitempty"`
}

type AuthResponse struct {
	User   UserResponse  `json:"user"`
	Tokens TokenResponse `json:"tokens"`
	Merge  *merge.Report `json:"merge,omitempty"`
}
