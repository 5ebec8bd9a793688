// AngelaMos | 2026
// dto.go

package payment

import (
	"strconv"
	"time"
)

type CheckoutRequest struct {
	Plan           string `json:"plan"                     validate:"required,oneof=match weekly monthly yearly"`
	DeviceID       string `json:"deviceId"                 validate:"required,min=8,max=128"`
	Gateway        string `json:"gateway,omitempty"        validate:"omitempty,oneof=stripe sifalo"`
	OfferBonusDays int    `json:"offerBonusDays,omitempty" validate:"omitempty,min=0,max=30"`
	OfferCode      string `json:"offerCode,omitempty"      validate:"omitempty,max=64"`
}

type CheckoutResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	OrderID     string `json:"orderId"`
	Gateway     string `json:"gateway"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Country     string `json:"country,omitempty"`
}

type VerifyRequest struct {
	SID      string `json:"sid,omitempty"     validate:"omitempty,max=128"`
	OrderID  string `json:"orderId,omitempty" validate:"required_without=SID,max=128"`
	DeviceID string `json:"deviceId"          validate:"required,min=8,max=128"`
}

type VerifyResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status,omitempty"`
	Plan      string `json:"plan,omitempty"`
	ExpiresIn string `json:"expiresIn,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Manual    bool   `json:"manual,omitempty"`
}

func toVerifyResponse(r *VerifyResult) VerifyResponse {
	resp := VerifyResponse{
		Success: r.Status == VerifySuccess,
		Plan:    string(r.Plan),
		Code:    r.AccessCode,
		Message: r.Message,
		Manual:  r.Manual,
	}
	if !resp.Success {
		resp.Status = string(r.Status)
	}
	if r.DurationDays > 0 {
		resp.ExpiresIn = strconv.Itoa(r.DurationDays) + " days"
	}
	if r.ExpiresAt != nil {
		resp.ExpiresAt = r.ExpiresAt.UnixMilli()
	}
	return resp
}

type HistoryItem struct {
	OrderID     string     `json:"orderId"`
	Plan        string     `json:"plan"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Gateway     string     `json:"gateway"`
	Status      string     `json:"status"`
	BonusDays   int        `json:"bonusDays,omitempty"`
	AccessCode  string     `json:"accessCode,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func toHistoryItem(p Payment) HistoryItem {
	item := HistoryItem{
		OrderID:     p.OrderID,
		Plan:        string(p.Plan),
		Amount:      p.Amount.StringFixed(2),
		Currency:    p.Currency,
		Gateway:     p.Gateway,
		Status:      p.Status,
		BonusDays:   p.BonusDays,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
	if p.AccessCode != nil {
		item.AccessCode = *p.AccessCode
	}
	return item
}

type ManualSubmitRequest struct {
	Plan           string `json:"plan"                     validate:"required,oneof=match weekly monthly yearly"`
	DeviceID       string `json:"deviceId"                 validate:"required,min=8,max=128"`
	TxID           string `json:"txId"                     validate:"required,min=6,max=64"`
	OfferBonusDays int    `json:"offerBonusDays,omitempty" validate:"omitempty,min=0,max=30"`
	OfferCode      string `json:"offerCode,omitempty"      validate:"omitempty,max=64"`
}

type ManualSubmitResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderId"`
	Status   string `json:"status"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// SifaloCallbackRequest mirrors the gateway's callback body. Unknown
// fields are tolerated.
type SifaloCallbackRequest struct {
	SID     string `json:"sid"`
	OrderID string `json:"order_id"`
	Key     string `json:"key"`
	Status  string `json:"status"`
}

type RejectRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=255"`
}

type ApproveResponse struct {
	Success   bool   `json:"success"`
	OrderID   string `json:"orderId"`
	Plan      string `json:"plan"`
	Code      string `json:"code,omitempty"`
	ExpiresAt int64  `json:"expiresAt,omitempty"`
	Replayed  bool   `json:"replayed"`
}

type PendingManualItem struct {
	OrderID   string    `json:"orderId"`
	Gateway   string    `json:"gateway"`
	TxID      string    `json:"txId"`
	DeviceID  string    `json:"deviceId"`
	Plan      string    `json:"plan"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"createdAt"`
}

func toPendingManualItem(p Payment) PendingManualItem {
	item := PendingManualItem{
		OrderID:   p.OrderID,
		Gateway:   p.Gateway,
		DeviceID:  p.DeviceID,
		Plan:      string(p.Plan),
		Amount:    p.Amount.StringFixed(2),
		Currency:  p.Currency,
		CreatedAt: p.CreatedAt,
	}
	if p.ManualTxID != nil {
		item.TxID = *p.ManualTxID
	}
	return item
}
