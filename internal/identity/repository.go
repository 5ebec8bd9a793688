// AngelaMos | 2026
// repository.go

package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id, role string) error
	MarkTrialUsed(ctx context.Context, id string) error

	TouchDevice(ctx context.Context, deviceID, userAgent string) (*Device, error)
	GetDevice(ctx context.Context, deviceID string) (*Device, error)
	ClaimDevice(ctx context.Context, deviceID, userID string) (bool, error)
	RebindDevice(ctx context.Context, deviceID, userID string) error
	CountDevices(ctx context.Context, userID string) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `id, email, password_hash, referral_code, role, trial_used,
		       created_at, updated_at`

func (r *repository) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, referral_code, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING created_at, updated_at, trial_used`

	err := core.Conn(ctx, r.db).GetContext(ctx, user, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.ReferralCode,
		user.Role,
	)
	if errors.Is(err, sql.ErrNoRows) || core.IsDuplicateKeyError(err) {
		return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user User
	err := core.Conn(ctx, r.db).GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user User
	err := core.Conn(ctx, r.db).GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}

	return &user, nil
}

func (r *repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update password", query, id, passwordHash)
}

func (r *repository) UpdateRole(ctx context.Context, id, role string) error {
	query := `
		UPDATE users
		SET role = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "update role", query, id, role)
}

func (r *repository) MarkTrialUsed(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET trial_used = TRUE, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "mark trial used", query, id)
}

func (r *repository) TouchDevice(
	ctx context.Context,
	deviceID, userAgent string,
) (*Device, error) {
	query := `
		INSERT INTO devices (device_id, user_agent)
		VALUES ($1, $2)
		ON CONFLICT (device_id) DO UPDATE
		SET last_seen_at = NOW(),
		    user_agent = COALESCE(NULLIF(EXCLUDED.user_agent, ''), devices.user_agent)
		RETURNING device_id, user_id, user_agent, last_seen_at, created_at`

	var d Device
	if err := core.Conn(ctx, r.db).GetContext(ctx, &d, query, deviceID, userAgent); err != nil {
		return nil, fmt.Errorf("touch device: %w", err)
	}

	return &d, nil
}

func (r *repository) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	query := `
		SELECT device_id, user_id, user_agent, last_seen_at, created_at
		FROM devices
		WHERE device_id = $1`

	var d Device
	err := core.Conn(ctx, r.db).GetContext(ctx, &d, query, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get device: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	return &d, nil
}

// ClaimDevice binds an unowned device. It reports false when another
// request bound the device first.
func (r *repository) ClaimDevice(
	ctx context.Context,
	deviceID, userID string,
) (bool, error) {
	query := `
		UPDATE devices
		SET user_id = $2, last_seen_at = NOW()
		WHERE device_id = $1 AND user_id IS NULL`

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, deviceID, userID)
	if err != nil {
		return false, fmt.Errorf("claim device: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim device: %w", err)
	}

	return rows == 1, nil
}

func (r *repository) RebindDevice(ctx context.Context, deviceID, userID string) error {
	query := `
		UPDATE devices
		SET user_id = $2, last_seen_at = NOW()
		WHERE device_id = $1`

	return r.execOne(ctx, "rebind device", query, deviceID, userID)
}

func (r *repository) CountDevices(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM devices WHERE user_id = $1`

	var n int
	if err := core.Conn(ctx, r.db).GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("count devices: %w", err)
	}

	return n, nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
