// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"
)

const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusRevoked = "revoked"
)

type Subscription struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	Plan           Plan      `db:"plan"`
	MaxDevices     int       `db:"max_devices"`
	DurationDays   int       `db:"duration_days"`
	Status         string    `db:"status"`
	ExpiresAt      time.Time `db:"expires_at"`
	CodeID         *string   `db:"code_id"`
	PaymentOrderID *string   `db:"payment_order_id"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.Status == StatusActive && s.ExpiresAt.After(now)
}

type Stats struct {
	Active  int            `json:"active"`
	Expired int            `json:"expired"`
	Revoked int            `json:"revoked"`
	ByPlan  map[string]int `json:"byPlan"`
}
