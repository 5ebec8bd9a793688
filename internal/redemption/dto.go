// AngelaMos | 2026
// dto.go

package redemption

import (
	"time"
)

type RedeemRequest struct {
	Code     string `json:"code"     validate:"required,max=64"`
	DeviceID string `json:"deviceId" validate:"required,min=8,max=128"`
}

type GenerateRequest struct {
	Plan           string `json:"plan"                     validate:"required,oneof=match weekly monthly yearly"`
	Count          int    `json:"count"                    validate:"required,min=1,max=500"`
	DurationDays   int    `json:"durationDays,omitempty"   validate:"omitempty,min=1,max=3650"`
	MaxDevices     int    `json:"maxDevices,omitempty"     validate:"omitempty,min=1,max=20"`
	TrialHours     int    `json:"trialHours,omitempty"     validate:"omitempty,oneof=1 2 4"`
	TrialContentID string `json:"trialContentId,omitempty" validate:"required_with=TrialHours,max=512"`
	TrialTitle     string `json:"trialTitle,omitempty"     validate:"max=255"`
	ExpiresInDays  int    `json:"expiresInDays,omitempty"  validate:"omitempty,min=1,max=3650"`
	Source         string `json:"source,omitempty"         validate:"omitempty,oneof=admin whatsapp"`
}

type SubscriptionResponse struct {
	ID         string `json:"id"`
	Plan       string `json:"plan"`
	MaxDevices int    `json:"maxDevices"`
	Status     string `json:"status"`
	ExpiresAt  int64  `json:"expiresAt"`
}

type TrialResponse struct {
	ContentID string `json:"contentId"`
	Title     string `json:"title,omitempty"`
	Hours     int    `json:"hours"`
	ExpiresAt int64  `json:"expiresAt"`
}

type RedeemResponse struct {
	Success      bool                  `json:"success"`
	Kind         string                `json:"kind"`
	Plan         string                `json:"plan"`
	DurationDays int                   `json:"durationDays,omitempty"`
	ExpiresAt    int64                 `json:"expiresAt"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
	Trial        *TrialResponse        `json:"trial,omitempty"`
}

func toRedeemResponse(r *Result) RedeemResponse {
	resp := RedeemResponse{
		Success:   true,
		Kind:      r.Kind,
		Plan:      string(r.Code.Plan),
		ExpiresAt: r.ExpiresAt().UnixMilli(),
	}

	if r.Subscription != nil {
		resp.DurationDays = r.Subscription.DurationDays
		resp.Subscription = &SubscriptionResponse{
			ID:         r.Subscription.ID,
			Plan:       string(r.Subscription.Plan),
			MaxDevices: r.Subscription.MaxDevices,
			Status:     r.Subscription.Status,
			ExpiresAt:  r.Subscription.ExpiresAt.UnixMilli(),
		}
	}

	if r.Trial != nil {
		resp.Trial = &TrialResponse{
			ContentID: r.Trial.ContentID,
			Title:     r.Code.TrialTitle,
			Hours:     r.Trial.TrialHours,
			ExpiresAt: r.Trial.ExpiresAt.UnixMilli(),
		}
	}

	return resp
}

type TrialAccessResponse struct {
	TrialStatus
	ExpiresAt int64 `json:"expiresAt"`
}

type CodeResponse struct {
	ID             string     `json:"id"`
	Code           string     `json:"code"`
	Plan           string     `json:"plan"`
	DurationDays   int        `json:"durationDays"`
	MaxDevices     int        `json:"maxDevices"`
	TrialHours     int        `json:"trialHours,omitempty"`
	TrialContentID string     `json:"trialContentId,omitempty"`
	Source         string     `json:"source"`
	UsedByUserID   *string    `json:"usedByUserId,omitempty"`
	UsedAt         *time.Time `json:"usedAt,omitempty"`
	RevokedAt      *time.Time `json:"revokedAt,omitempty"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

func toCodeResponse(c Code) CodeResponse {
	return CodeResponse{
		ID:             c.ID,
		Code:           c.Code,
		Plan:           string(c.Plan),
		DurationDays:   c.DurationDays,
		MaxDevices:     c.MaxDevices,
		TrialHours:     c.TrialHours,
		TrialContentID: c.TrialContentID,
		Source:         c.Source,
		UsedByUserID:   c.UsedByUserID,
		UsedAt:         c.UsedAt,
		RevokedAt:      c.RevokedAt,
		ExpiresAt:      c.ExpiresAt,
		CreatedAt:      c.CreatedAt,
	}
}
