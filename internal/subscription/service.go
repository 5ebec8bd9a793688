// AngelaMos | 2026
// service.go

package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type CreateParams struct {
	UserID         string
	Plan           PlanSpec
	BonusDays      int
	CodeID         *string
	PaymentOrderID *string
}

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Create starts a subscription now. The caller supplies the transaction
// when the subscription must commit together with a claim. Any other
// active row of the user is settled so only the later expiry stays active.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Subscription, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("create subscription: user id: %w", core.ErrInvalidInput)
	}

	days := p.Plan.DurationDays + max(p.BonusDays, 0)

	sub := &Subscription{
		ID:             uuid.New().String(),
		UserID:         p.UserID,
		Plan:           p.Plan.Plan,
		MaxDevices:     p.Plan.MaxDevices,
		DurationDays:   days,
		Status:         StatusActive,
		ExpiresAt:      s.now().UTC().Add(time.Duration(days) * 24 * time.Hour),
		CodeID:         p.CodeID,
		PaymentOrderID: p.PaymentOrderID,
	}

	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.supersede(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// supersede leaves only the user's latest expiring row active. A new row
// that ends before the one already held is expired straight away.
func (s *Service) supersede(ctx context.Context, sub *Subscription) error {
	winner, err := s.repo.LatestActiveForUpdate(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("supersede subscriptions: %w", err)
	}

	n, err := s.repo.ExpireOthers(ctx, sub.UserID, winner.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	if winner.ID != sub.ID {
		sub.Status = StatusExpired
	}

	s.logger.Info("overlapping subscriptions expired",
		"user_id", sub.UserID,
		"kept_id", winner.ID,
		"expired", n,
	)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Subscription, error) {
	return s.repo.GetByID(ctx, id)
}

// Active returns nil without error when the user has nothing active.
func (s *Service) Active(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.repo.Active(ctx, userID, s.now())
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) RevokeByCode(ctx context.Context, codeID string) (int, error) {
	return s.repo.RevokeByCode(ctx, codeID)
}

func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("subscriptions expired", "count", n)
	}

	return n, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, s.now())
}
