// AngelaMos | 2026
// repository.go

package quota

import (
	"context"
	"fmt"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Repository interface {
	// LockDay serializes consumers of one user's day until the surrounding
	// transaction ends.
	LockDay(ctx context.Context, userID, dayKey string) error
	ForDay(ctx context.Context, userID, dayKey string) ([]UsageRecord, error)
	Insert(ctx context.Context, rec UsageRecord) (bool, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) LockDay(ctx context.Context, userID, dayKey string) error {
	query := `SELECT pg_advisory_xact_lock(hashtext('preview:' || $1 || ':' || $2))`

	if _, err := core.Conn(ctx, r.db).ExecContext(ctx, query, userID, dayKey); err != nil {
		return fmt.Errorf("lock preview day: %w", err)
	}

	return nil
}

func (r *repository) ForDay(ctx context.Context, userID, dayKey string) ([]UsageRecord, error) {
	query := `
		SELECT user_id, session_id, content_id, day_key, created_at
		FROM preview_usage
		WHERE user_id = $1 AND day_key = $2
		ORDER BY created_at`

	var rows []usageRow
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &rows, query, userID, dayKey); err != nil {
		return nil, fmt.Errorf("preview usage for day: %w", err)
	}

	records := make([]UsageRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}

	return records, nil
}

// Insert reports false when the session already holds a slot for the day.
// Legacy records always insert.
func (r *repository) Insert(ctx context.Context, rec UsageRecord) (bool, error) {
	var (
		query string
		args  []any
	)

	switch u := rec.(type) {
	case KeyedUsage:
		query = `
			INSERT INTO preview_usage (user_id, session_id, content_id, day_key, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, day_key, session_id) WHERE session_id IS NOT NULL DO NOTHING`
		args = []any{u.UserID, u.SessionID, u.ContentID, u.DayKey, u.CreatedAt}
	case LegacyUsage:
		query = `
			INSERT INTO preview_usage (user_id, content_id, day_key, created_at)
			VALUES ($1, $2, $3, $4)`
		args = []any{u.UserID, u.ContentID, u.DayKey, u.CreatedAt}
	default:
		return false, fmt.Errorf("insert preview usage: %T: %w", rec, core.ErrInvalidInput)
	}

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert preview usage: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert preview usage: %w", err)
	}

	return n == 1, nil
}
