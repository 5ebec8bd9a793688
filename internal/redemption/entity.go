// AngelaMos | 2026
// entity.go

package redemption

import (
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

var (
	ErrCodeNotFound     = fmt.Errorf("redemption code not found: %w", core.ErrNotFound)
	ErrAlreadyUsed      = fmt.Errorf("code already used: %w", core.ErrConflict)
	ErrCodeExpired      = fmt.Errorf("code expired: %w", core.ErrExpired)
	ErrTrialAlreadyUsed = fmt.Errorf("trial already used: %w", core.ErrConflict)
)

const (
	SourceAdmin       = "admin"
	SourceWhatsApp    = "whatsapp"
	SourceAutoPayment = "auto_payment"
)

const (
	codeAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength          = 8
	maxGenerateAttempts = 10
)

type Code struct {
	ID             string            `db:"id"`
	Code           string            `db:"code"`
	Plan           subscription.Plan `db:"plan"`
	DurationDays   int               `db:"duration_days"`
	MaxDevices     int               `db:"max_devices"`
	TrialHours     int               `db:"trial_hours"`
	TrialContentID string            `db:"trial_content_id"`
	TrialTitle     string            `db:"trial_title"`
	Source         string            `db:"source"`
	PaymentOrderID *string           `db:"payment_order_id"`
	RevokedAt      *time.Time        `db:"revoked_at"`
	UsedByUserID   *string           `db:"used_by_user_id"`
	UsedAt         *time.Time        `db:"used_at"`
	ExpiresAt      *time.Time        `db:"expires_at"`
	CreatedAt      time.Time         `db:"created_at"`
}

func (c *Code) IsTrial() bool {
	return c.TrialHours > 0
}

func (c *Code) IsUsed() bool {
	return c.UsedByUserID != nil
}

// Check classifies why a code cannot be redeemed at now. Trial codes are
// campaign codes and never count as used.
func (c *Code) Check(now time.Time) error {
	switch {
	case c.RevokedAt != nil:
		return ErrCodeNotFound
	case c.IsUsed() && !c.IsTrial():
		return ErrAlreadyUsed
	case c.ExpiresAt != nil && !c.ExpiresAt.After(now):
		return ErrCodeExpired
	default:
		return nil
	}
}

func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

type TrialGrant struct {
	ID         string           `db:"id"`
	UserID     string           `db:"user_id"`
	DeviceID   string           `db:"device_id"`
	ContentID  string           `db:"content_id"`
	Aliases    core.StringArray `db:"aliases"`
	Code       string           `db:"code"`
	TrialHours int              `db:"trial_hours"`
	GrantedAt  time.Time        `db:"granted_at"`
	ExpiresAt  time.Time        `db:"expires_at"`
}

type Stats struct {
	Total     int            `json:"total"`
	Used      int            `json:"used"`
	Revoked   int            `json:"revoked"`
	Available int            `json:"available"`
	ByPlan    map[string]int `json:"byPlan"`
}

type ListFilter struct {
	Plan    string
	Used    *bool
	Revoked *bool
	Limit   int
}
