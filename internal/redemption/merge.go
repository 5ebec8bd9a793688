// AngelaMos | 2026
// merge.go

package redemption

import (
	"context"
	"errors"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type TrialMergeStep struct {
	repo Repository
}

func NewTrialMergeStep(repo Repository) *TrialMergeStep {
	return &TrialMergeStep{repo: repo}
}

func (s *TrialMergeStep) Name() string {
	return "trial_grants"
}

// MoveFrom hands the source's grant to the target. When the target already
// has one, the source grant is archived under the target instead so the
// device still counts as having used its trial.
func (s *TrialMergeStep) MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error) {
	moved := 0

	_, err := s.repo.TrialGrantFor(ctx, fromUserID)
	switch {
	case errors.Is(err, core.ErrNotFound):
	case err != nil:
		return 0, err
	default:
		_, targetErr := s.repo.TrialGrantFor(ctx, toUserID)
		switch {
		case errors.Is(targetErr, core.ErrNotFound):
			n, err := s.repo.ReassignTrialGrant(ctx, fromUserID, toUserID)
			if err != nil {
				return 0, err
			}
			moved = n
		case targetErr != nil:
			return 0, targetErr
		default:
			if _, err := s.repo.ArchiveTrialGrant(ctx, fromUserID, toUserID); err != nil {
				return 0, err
			}
		}
	}

	if err := s.repo.CarryTrialFlag(ctx, fromUserID, toUserID); err != nil {
		return 0, err
	}

	return moved, nil
}

type UsageMergeStep struct {
	repo Repository
}

func NewUsageMergeStep(repo Repository) *UsageMergeStep {
	return &UsageMergeStep{repo: repo}
}

func (s *UsageMergeStep) Name() string {
	return "redemptions"
}

func (s *UsageMergeStep) MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error) {
	return s.repo.ReassignUsage(ctx, fromUserID, toUserID)
}
