// AngelaMos | 2026
// entity.go

package identity

import (
	"time"
)

type User struct {
	ID           string    `db:"id"`
	Email        *string   `db:"email"`
	PasswordHash string    `db:"password_hash"`
	ReferralCode string    `db:"referral_code"`
	Role         string    `db:"role"`
	TrialUsed    bool      `db:"trial_used"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsGuest() bool {
	return u.Email == nil
}

func (u *User) EmailOrEmpty() string {
	if u.Email == nil {
		return ""
	}
	return *u.Email
}

type Device struct {
	DeviceID   string    `db:"device_id"`
	UserID     *string   `db:"user_id"`
	UserAgent  string    `db:"user_agent"`
	LastSeenAt time.Time `db:"last_seen_at"`
	CreatedAt  time.Time `db:"created_at"`
}

func (d *Device) BoundTo(userID string) bool {
	return d.UserID != nil && *d.UserID == userID
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralLength   = 6
)
