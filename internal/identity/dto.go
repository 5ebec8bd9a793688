// AngelaMos | 2026
// dto.go

package identity

import (
	"time"
)

type DeviceRequest struct {
	DeviceID string `json:"deviceId" validate:"required,min=8,max=128"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

type DeviceResponse struct {
	DeviceID string `json:"deviceId"`
	UserID   string `json:"userId"`
	Guest    bool   `json:"guest"`
}

type UserResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	Role         string    `json:"role"`
	ReferralCode string    `json:"referralCode"`
	TrialUsed    bool      `json:"trialUsed"`
	CreatedAt    time.Time `json:"createdAt"`
}

func ToUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.EmailOrEmpty(),
		Role:         u.Role,
		ReferralCode: u.ReferralCode,
		TrialUsed:    u.TrialUsed,
		CreatedAt:    u.CreatedAt,
	}
}
