// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id string) (*Subscription, error)
	Active(ctx context.Context, userID string, now time.Time) (*Subscription, error)
	LatestActiveForUpdate(ctx context.Context, userID string) (*Subscription, error)
	SetStatus(ctx context.Context, id, status string) error
	Reassign(ctx context.Context, id, userID string) error
	ExpireActiveForUser(ctx context.Context, userID string) (int, error)
	// ExpireOthers expires every active row of userID except keepID.
	ExpireOthers(ctx context.Context, userID, keepID string) (int, error)
	ReassignAll(ctx context.Context, fromUserID, toUserID string) (int, error)
	ExpireDue(ctx context.Context, now time.Time) (int, error)
	RevokeByCode(ctx context.Context, codeID string) (int, error)
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const columns = `id, user_id, plan, max_devices, duration_days, status, expires_at,
		       code_id, payment_order_id, created_at, updated_at`

func (r *repository) Create(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan, max_devices, duration_days,
		                           status, expires_at, code_id, payment_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Plan,
		sub.MaxDevices,
		sub.DurationDays,
		sub.Status,
		sub.ExpiresAt,
		sub.CodeID,
		sub.PaymentOrderID,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Subscription, error) {
	query := `SELECT ` + columns + ` FROM subscriptions WHERE id = $1`

	return r.getOne(ctx, "get subscription", query, id)
}

// Active returns the gating subscription: the unexpired active one with
// the latest expiry.
func (r *repository) Active(
	ctx context.Context,
	userID string,
	now time.Time,
) (*Subscription, error) {
	query := `
		SELECT ` + columns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active' AND expires_at > $2
		ORDER BY expires_at DESC
		LIMIT 1`

	return r.getOne(ctx, "active subscription", query, userID, now)
}

func (r *repository) LatestActiveForUpdate(
	ctx context.Context,
	userID string,
) (*Subscription, error) {
	query := `
		SELECT ` + columns + `
		FROM subscriptions
		WHERE user_id = $1 AND status = 'active'
		ORDER BY expires_at DESC
		LIMIT 1
		FOR UPDATE`

	return r.getOne(ctx, "latest active subscription", query, userID)
}

func (r *repository) SetStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "set subscription status", query, id, status)
}

func (r *repository) Reassign(ctx context.Context, id, userID string) error {
	query := `
		UPDATE subscriptions
		SET user_id = $2, updated_at = NOW()
		WHERE id = $1`

	return r.execOne(ctx, "reassign subscription", query, id, userID)
}

func (r *repository) ExpireActiveForUser(ctx context.Context, userID string) (int, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE user_id = $1 AND status = 'active'`

	return r.execCount(ctx, "expire user subscriptions", query, userID)
}

func (r *repository) ExpireOthers(ctx context.Context, userID, keepID string) (int, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE user_id = $1 AND status = 'active' AND id <> $2`

	return r.execCount(ctx, "expire superseded subscriptions", query, userID, keepID)
}

func (r *repository) ReassignAll(
	ctx context.Context,
	fromUserID, toUserID string,
) (int, error) {
	query := `
		UPDATE subscriptions
		SET user_id = $2, updated_at = NOW()
		WHERE user_id = $1`

	return r.execCount(ctx, "reassign subscriptions", query, fromUserID, toUserID)
}

func (r *repository) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE subscriptions
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expires_at <= $1`

	return r.execCount(ctx, "expire due subscriptions", query, now)
}

func (r *repository) RevokeByCode(ctx context.Context, codeID string) (int, error) {
	query := `
		UPDATE subscriptions
		SET status = 'revoked', updated_at = NOW()
		WHERE code_id = $1 AND status = 'active'`

	return r.execCount(ctx, "revoke subscriptions", query, codeID)
}

func (r *repository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	query := `
		SELECT plan,
		       CASE WHEN status = 'active' AND expires_at <= $1 THEN 'expired'
		            ELSE status END AS effective_status,
		       COUNT(*)
		FROM subscriptions
		GROUP BY 1, 2`

	rows, err := core.Conn(ctx, r.db).QueryxContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("subscription stats: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	stats := &Stats{ByPlan: make(map[string]int)}
	for rows.Next() {
		var (
			plan, status string
			n            int
		)
		if err := rows.Scan(&plan, &status, &n); err != nil {
			return nil, fmt.Errorf("subscription stats: %w", err)
		}

		switch status {
		case StatusActive:
			stats.Active += n
			stats.ByPlan[plan] += n
		case StatusExpired:
			stats.Expired += n
		case StatusRevoked:
			stats.Revoked += n
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subscription stats: %w", err)
	}

	return stats, nil
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Subscription, error) {
	var sub Subscription
	err := core.Conn(ctx, r.db).GetContext(ctx, &sub, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sub, nil
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	n, err := r.execCount(ctx, op, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return nil
}

func (r *repository) execCount(ctx context.Context, op, query string, args ...any) (int, error) {
	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return int(rows), nil
}
