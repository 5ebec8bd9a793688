// AngelaMos | 2026
// merge.go

package payment

import (
	"context"
)

type MergeStep struct {
	repo Repository
}

func NewMergeStep(repo Repository) *MergeStep {
	return &MergeStep{repo: repo}
}

func (m *MergeStep) Name() string {
	return "payments"
}

func (m *MergeStep) MoveFrom(ctx context.Context, fromUserID, toUserID string) (int, error) {
	return m.repo.ReassignUser(ctx, fromUserID, toUserID)
}
