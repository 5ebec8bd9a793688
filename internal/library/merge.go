// AngelaMos | 2026
// merge.go

package library

import (
	"context"
	"errors"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type ListMergeStep struct {
	repo Repository
}

func NewListMergeStep(repo Repository) *ListMergeStep {
	return &ListMergeStep{repo: repo}
}

func (s *ListMergeStep) Name() string {
	return "list_entries"
}

// MoveFrom unions the source's lists into the target. On a collision the
// later added_at is kept.
func (s *ListMergeStep) MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error) {
	entries, err := s.repo.ListEntries(ctx, fromUserID)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, e := range entries {
		if e.ContentType == "" || e.ContentID == "" {
			continue
		}

		e.UserID = toUserID
		e.ListType = NormalizeListType(e.ListType)

		inserted, err := s.repo.UpsertListEntry(ctx, e)
		if err != nil {
			return 0, err
		}
		if inserted {
			moved++
		}
	}

	if _, err := s.repo.DeleteListEntries(ctx, fromUserID); err != nil {
		return 0, err
	}

	return moved, nil
}

type ProgressMergeStep struct {
	repo Repository
}

func NewProgressMergeStep(repo Repository) *ProgressMergeStep {
	return &ProgressMergeStep{repo: repo}
}

func (s *ProgressMergeStep) Name() string {
	return "watch_progress"
}

func (s *ProgressMergeStep) MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error) {
	rows, err := s.repo.ProgressFor(ctx, fromUserID)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, src := range rows {
		if src.ContentType == "" || src.ContentID == "" {
			continue
		}
		src.UserID = toUserID

		existing, err := s.repo.GetProgress(ctx, toUserID, src.ContentType, src.ContentID)
		switch {
		case errors.Is(err, core.ErrNotFound):
			if err := s.repo.UpsertProgress(ctx, src); err != nil {
				return 0, err
			}
			moved++
		case err != nil:
			return 0, err
		default:
			if err := s.repo.UpsertProgress(ctx, CombineProgress(*existing, src)); err != nil {
				return 0, err
			}
		}
	}

	if _, err := s.repo.DeleteProgress(ctx, fromUserID); err != nil {
		return 0, err
	}

	return moved, nil
}
