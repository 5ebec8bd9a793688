// AngelaMos | 2026
// repository.go

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Repository interface {
	ListEntries(ctx context.Context, userID string) ([]ListEntry, error)
	UpsertListEntry(ctx context.Context, e ListEntry) (bool, error)
	DeleteListEntries(ctx context.Context, userID string) (int, error)

	ProgressFor(ctx context.Context, userID string) ([]Progress, error)
	GetProgress(ctx context.Context, userID, contentType, contentID string) (*Progress, error)
	UpsertProgress(ctx context.Context, p Progress) error
	DeleteProgress(ctx context.Context, userID string) (int, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) ListEntries(ctx context.Context, userID string) ([]ListEntry, error) {
	query := `
		SELECT user_id, content_type, content_id, list_type, added_at
		FROM user_list_entries
		WHERE user_id = $1
		FOR UPDATE`

	var entries []ListEntry
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &entries, query, userID); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}

	return entries, nil
}

// UpsertListEntry reports true when a new row was written rather than an
// existing one refreshed.
func (r *repository) UpsertListEntry(ctx context.Context, e ListEntry) (bool, error) {
	query := `
		INSERT INTO user_list_entries (user_id, content_type, content_id, list_type, added_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, content_type, content_id, list_type) DO UPDATE
		SET added_at = GREATEST(user_list_entries.added_at, EXCLUDED.added_at)
		RETURNING (xmax = 0)`

	var inserted bool
	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		e.UserID,
		e.ContentType,
		e.ContentID,
		e.ListType,
		e.AddedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert list entry: %w", err)
	}

	return inserted, nil
}

func (r *repository) DeleteListEntries(ctx context.Context, userID string) (int, error) {
	return r.execCount(ctx, "delete list entries",
		`DELETE FROM user_list_entries WHERE user_id = $1`, userID)
}

func (r *repository) ProgressFor(ctx context.Context, userID string) ([]Progress, error) {
	query := `
		SELECT user_id, content_type, content_id, series_id, progress_seconds,
		       duration_seconds, is_finished, updated_at
		FROM watch_progress
		WHERE user_id = $1
		FOR UPDATE`

	var rows []Progress
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("watch progress: %w", err)
	}

	return rows, nil
}

func (r *repository) GetProgress(
	ctx context.Context,
	userID, contentType, contentID string,
) (*Progress, error) {
	query := `
		SELECT user_id, content_type, content_id, series_id, progress_seconds,
		       duration_seconds, is_finished, updated_at
		FROM watch_progress
		WHERE user_id = $1 AND content_type = $2 AND content_id = $3`

	var p Progress
	err := core.Conn(ctx, r.db).GetContext(ctx, &p, query, userID, contentType, contentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get progress: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	return &p, nil
}

func (r *repository) UpsertProgress(ctx context.Context, p Progress) error {
	query := `
		INSERT INTO watch_progress (user_id, content_type, content_id, series_id,
		                            progress_seconds, duration_seconds, is_finished, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, content_type, content_id) DO UPDATE
		SET series_id = EXCLUDED.series_id,
		    progress_seconds = EXCLUDED.progress_seconds,
		    duration_seconds = EXCLUDED.duration_seconds,
		    is_finished = EXCLUDED.is_finished,
		    updated_at = EXCLUDED.updated_at`

	_, err := core.Conn(ctx, r.db).ExecContext(ctx, query,
		p.UserID,
		p.ContentType,
		p.ContentID,
		p.SeriesID,
		p.ProgressSeconds,
		p.DurationSeconds,
		p.IsFinished,
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}

	return nil
}

func (r *repository) DeleteProgress(ctx context.Context, userID string) (int, error) {
	return r.execCount(ctx, "delete progress",
		`DELETE FROM watch_progress WHERE user_id = $1`, userID)
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
