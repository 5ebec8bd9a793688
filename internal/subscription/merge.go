// AngelaMos | 2026
// merge.go

package subscription

import (
	"context"
	"errors"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type MergeStep struct {
	repo Repository
}

func NewMergeStep(repo Repository) *MergeStep {
	return &MergeStep{repo: repo}
}

func (m *MergeStep) Name() string {
	return "subscriptions"
}

// MoveFrom keeps whichever active subscription expires later. The loser is
// expired so the target ends with at most one active row; the rest of the
// source's history follows it.
func (m *MergeStep) MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error) {
	source, err := m.latestActive(ctx, fromUserID)
	if err != nil {
		return 0, err
	}
	target, err := m.latestActive(ctx, toUserID)
	if err != nil {
		return 0, err
	}

	moved := 0

	if source != nil {
		if target == nil || source.ExpiresAt.After(target.ExpiresAt) {
			if _, err := m.repo.ExpireActiveForUser(ctx, toUserID); err != nil {
				return 0, err
			}
			if err := m.repo.Reassign(ctx, source.ID, toUserID); err != nil {
				return 0, err
			}
			moved = 1
		}
		if _, err := m.repo.ExpireActiveForUser(ctx, fromUserID); err != nil {
			return 0, err
		}
	}

	if _, err := m.repo.ReassignAll(ctx, fromUserID, toUserID); err != nil {
		return 0, err
	}

	return moved, nil
}

func (m *MergeStep) latestActive(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := m.repo.LatestActiveForUpdate(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	return sub, err
}
