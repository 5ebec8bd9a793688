// AngelaMos | 2026
// repository.go

package redemption

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Repository interface {
	Create(ctx context.Context, code *Code) error
	GetByID(ctx context.Context, id string) (*Code, error)
	GetByCode(ctx context.Context, code string) (*Code, error)
	GetByPaymentOrder(ctx context.Context, orderID string) (*Code, error)
	List(ctx context.Context, filter ListFilter) ([]Code, error)
	Claim(ctx context.Context, code, userID string, now time.Time) (bool, error)
	AttachToUser(ctx context.Context, id, userID string, now time.Time) error
	Revoke(ctx context.Context, id string, now time.Time) error
	ReassignUsage(ctx context.Context, fromUserID, toUserID string) (int, error)
	Stats(ctx context.Context) (*Stats, error)

	HasTrial(ctx context.Context, userID, deviceID string) (bool, error)
	TrialGrantFor(ctx context.Context, userID string) (*TrialGrant, error)
	InsertTrialGrant(ctx context.Context, grant *TrialGrant) (bool, error)
	ReassignTrialGrant(ctx context.Context, fromUserID, toUserID string) (int, error)
	ArchiveTrialGrant(ctx context.Context, fromUserID, toUserID string) (int, error)
	CarryTrialFlag(ctx context.Context, fromUserID, toUserID string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const codeColumns = `id, code, plan, duration_days, max_devices, trial_hours,
		       trial_content_id, trial_title, source, payment_order_id, revoked_at,
		       used_by_user_id, used_at, expires_at, created_at`

func (r *repository) Create(ctx context.Context, c *Code) error {
	query := `
		INSERT INTO redemptions (id, code, plan, duration_days, max_devices,
		                         trial_hours, trial_content_id, trial_title, source,
		                         payment_order_id, used_by_user_id, used_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
		RETURNING created_at`

	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		c.ID,
		c.Code,
		c.Plan,
		c.DurationDays,
		c.MaxDevices,
		c.TrialHours,
		c.TrialContentID,
		c.TrialTitle,
		c.Source,
		c.PaymentOrderID,
		c.UsedByUserID,
		c.UsedAt,
		c.ExpiresAt,
	).Scan(&c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) || core.IsDuplicateKeyError(err) {
		return fmt.Errorf("create code: %w", core.ErrDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("create code: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Code, error) {
	return r.getCode(ctx, `SELECT `+codeColumns+` FROM redemptions WHERE id = $1`, id)
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Code, error) {
	return r.getCode(ctx, `SELECT `+codeColumns+` FROM redemptions WHERE code = $1`, code)
}

func (r *repository) GetByPaymentOrder(ctx context.Context, orderID string) (*Code, error) {
	return r.getCode(ctx,
		`SELECT `+codeColumns+` FROM redemptions WHERE payment_order_id = $1`, orderID)
}

func (r *repository) List(ctx context.Context, f ListFilter) ([]Code, error) {
	var (
		where []string
		args  []any
	)

	if f.Plan != "" {
		args = append(args, f.Plan)
		where = append(where, fmt.Sprintf("plan = $%d", len(args)))
	}
	if f.Used != nil {
		where = append(where, nullCheck("used_by_user_id", *f.Used))
	}
	if f.Revoked != nil {
		where = append(where, nullCheck("revoked_at", *f.Revoked))
	}

	query := `SELECT ` + codeColumns + ` FROM redemptions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var codes []Code
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &codes, query, args...); err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}

	return codes, nil
}

func nullCheck(column string, set bool) string {
	if set {
		return column + " IS NOT NULL"
	}
	return column + " IS NULL"
}

// Claim consumes a code for userID. It reports false when the code was
// already used, revoked or expired by the time the row was locked.
func (r *repository) Claim(
	ctx context.Context,
	code, userID string,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE redemptions
		SET used_by_user_id = $2, used_at = $3
		WHERE code = $1
		  AND used_by_user_id IS NULL
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $3)`

	n, err := r.execCount(ctx, "claim code", query, code, userID, now)
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *repository) AttachToUser(
	ctx context.Context,
	id, userID string,
	now time.Time,
) error {
	query := `
		UPDATE redemptions
		SET used_by_user_id = $2,
		    used_at = COALESCE(used_at, $3),
		    source = CASE WHEN source = '' THEN 'auto_payment' ELSE source END
		WHERE id = $1`

	n, err := r.execCount(ctx, "attach code", query, id, userID, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("attach code: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) Revoke(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE redemptions
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1`

	n, err := r.execCount(ctx, "revoke code", query, id, now)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("revoke code: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) ReassignUsage(
	ctx context.Context,
	fromUserID, toUserID string,
) (int, error) {
	query := `
		UPDATE redemptions
		SET used_by_user_id = $2
		WHERE used_by_user_id = $1`

	return r.execCount(ctx, "reassign code usage", query, fromUserID, toUserID)
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	query := `
		SELECT plan,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE used_by_user_id IS NOT NULL) AS used,
		       COUNT(*) FILTER (WHERE revoked_at IS NOT NULL) AS revoked,
		       COUNT(*) FILTER (WHERE used_by_user_id IS NULL AND revoked_at IS NULL) AS available
		FROM redemptions
		GROUP BY plan`

	var rows []struct {
		Plan      string `db:"plan"`
		Total     int    `db:"total"`
		Used      int    `db:"used"`
		Revoked   int    `db:"revoked"`
		Available int    `db:"available"`
	}
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("code stats: %w", err)
	}

	stats := &Stats{ByPlan: make(map[string]int, len(rows))}
	for _, row := range rows {
		stats.Total += row.Total
		stats.Used += row.Used
		stats.Revoked += row.Revoked
		stats.Available += row.Available
		stats.ByPlan[row.Plan] = row.Total
	}

	return stats, nil
}

// HasTrial looks at live grants and at grants archived by a merge, for
// both the user and the device.
func (r *repository) HasTrial(ctx context.Context, userID, deviceID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM trial_grants WHERE user_id = $1 OR device_id = $2
			UNION ALL
			SELECT 1 FROM trial_grant_history WHERE user_id = $1 OR device_id = $2
		)`

	var exists bool
	if err := core.Conn(ctx, r.db).GetContext(ctx, &exists, query, userID, deviceID); err != nil {
		return false, fmt.Errorf("has trial: %w", err)
	}

	return exists, nil
}

func (r *repository) TrialGrantFor(ctx context.Context, userID string) (*TrialGrant, error) {
	query := `
		SELECT id, user_id, device_id, content_id, aliases, code, trial_hours,
		       granted_at, expires_at
		FROM trial_grants
		WHERE user_id = $1`

	var g TrialGrant
	err := core.Conn(ctx, r.db).GetContext(ctx, &g, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trial grant: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("trial grant: %w", err)
	}

	return &g, nil
}

// InsertTrialGrant reports false when the user already holds a grant.
func (r *repository) InsertTrialGrant(ctx context.Context, g *TrialGrant) (bool, error) {
	query := `
		INSERT INTO trial_grants (id, user_id, device_id, content_id, aliases, code,
		                          trial_hours, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO NOTHING`

	n, err := r.execCount(ctx, "insert trial grant", query,
		g.ID,
		g.UserID,
		g.DeviceID,
		g.ContentID,
		[]string(g.Aliases),
		g.Code,
		g.TrialHours,
		g.GrantedAt,
		g.ExpiresAt,
	)
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *repository) ReassignTrialGrant(
	ctx context.Context,
	fromUserID, toUserID string,
) (int, error) {
	query := `UPDATE trial_grants SET user_id = $2 WHERE user_id = $1`

	return r.execCount(ctx, "reassign trial grant", query, fromUserID, toUserID)
}

// ArchiveTrialGrant moves the source grant into history under the target
// so the device stays marked as having used its trial.
func (r *repository) ArchiveTrialGrant(
	ctx context.Context,
	fromUserID, toUserID string,
) (int, error) {
	insert := `
		INSERT INTO trial_grant_history (id, user_id, merged_from, device_id,
		                                 content_id, code, granted_at, expires_at)
		SELECT id, $2, user_id, device_id, content_id, code, granted_at, expires_at
		FROM trial_grants
		WHERE user_id = $1
		ON CONFLICT (id) DO NOTHING`

	n, err := r.execCount(ctx, "archive trial grant", insert, fromUserID, toUserID)
	if err != nil {
		return 0, err
	}

	if _, err := r.execCount(ctx, "archive trial grant",
		`DELETE FROM trial_grants WHERE user_id = $1`, fromUserID); err != nil {
		return 0, err
	}

	return n, nil
}

func (r *repository) CarryTrialFlag(ctx context.Context, fromUserID, toUserID string) error {
	query := `
		UPDATE users
		SET trial_used = TRUE, updated_at = NOW()
		WHERE id = $2
		  AND trial_used = FALSE
		  AND EXISTS (SELECT 1 FROM users WHERE id = $1 AND trial_used)`

	_, err := r.execCount(ctx, "carry trial flag", query, fromUserID, toUserID)
	return err
}

func (r *repository) getCode(ctx context.Context, query string, arg any) (*Code, error) {
	var c Code
	err := core.Conn(ctx, r.db).GetContext(ctx, &c, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get code: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}

	return &c, nil
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
