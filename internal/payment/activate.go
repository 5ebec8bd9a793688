// AngelaMos | 2026
// activate.go

package payment

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

type Activation struct {
	Payment      *Payment
	Subscription *subscription.Subscription
	AccessCode   string
	Replayed     bool
}

func (a *Activation) result() *VerifyResult {
	res := &VerifyResult{
		Status:     VerifySuccess,
		Plan:       a.Payment.Plan,
		AccessCode: a.AccessCode,
	}
	if a.Subscription != nil {
		res.DurationDays = a.Subscription.DurationDays
		res.ExpiresAt = &a.Subscription.ExpiresAt
	}
	return res
}

// Activate is the one path from a confirmed payment to a subscription.
// The payment row is locked for the whole transaction and only a pending
// row is flipped, so gateways may call it any number of times.
func (s *Service) Activate(ctx context.Context, orderID string, corr Correlation) (*Activation, error) {
	ctx, span := core.StartSpan(ctx, "payment.activate",
		attribute.String("payment.order_id", orderID),
		attribute.String("payment.source", corr.Source),
	)
	defer span.End()

	gateway := "unknown"
	act, err := s.activate(ctx, orderID, corr, &gateway)

	switch {
	case err != nil:
		core.PaymentActivationsTotal.WithLabelValues(gateway, "error").Inc()
		core.SetSpanError(ctx, err)
		return nil, err
	case act.Replayed:
		core.PaymentActivationsTotal.WithLabelValues(gateway, "replayed").Inc()
	default:
		core.PaymentActivationsTotal.WithLabelValues(gateway, "activated").Inc()
	}

	core.AddSpanEvent(ctx, "payment.activated",
		attribute.Bool("payment.replayed", act.Replayed),
	)

	return act, nil
}

func (s *Service) activate(
	ctx context.Context,
	orderID string,
	corr Correlation,
	gateway *string,
) (*Activation, error) {
	pay, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	*gateway = pay.Gateway

	switch pay.Status {
	case StatusSuccess:
		return s.replay(ctx, pay), nil
	case StatusFailed:
		return nil, ErrPaymentFailed
	}

	spec, bonus, err := pay.Entitlement()
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", orderID, err)
	}

	// Resolving may create a guest user in its own transaction.
	user, err := s.users.ResolveUser(ctx, pay.DeviceID, "")
	if err != nil {
		return nil, fmt.Errorf("activate %s: %w", orderID, err)
	}

	now := s.now().UTC()
	act := &Activation{}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}

		switch locked.Status {
		case StatusSuccess:
			act.Payment = locked
			act.Replayed = true
			return nil
		case StatusFailed:
			return ErrPaymentFailed
		}

		sub, err := s.subs.Create(ctx, subscription.CreateParams{
			UserID:         user.ID,
			Plan:           spec,
			BonusDays:      bonus,
			PaymentOrderID: &locked.OrderID,
		})
		if err != nil {
			return err
		}

		code, err := s.codes.GetOrCreatePaymentAccessCode(ctx, redemption.AccessCodeParams{
			OrderID: locked.OrderID,
			UserID:  user.ID,
			Plan: subscription.PlanSpec{
				Plan:         spec.Plan,
				DurationDays: spec.DurationDays + bonus,
				MaxDevices:   spec.MaxDevices,
			},
		})
		if err != nil {
			return err
		}

		locked.UserID = &user.ID
		locked.SubscriptionID = &sub.ID
		locked.AccessCode = &code
		locked.LastGatewayStatus = corr.GatewayStatus
		if corr.StripePaymentIntentID != "" {
			locked.StripePaymentIntentID = &corr.StripePaymentIntentID
		}
		if corr.SifaloSID != "" {
			locked.SifaloSID = &corr.SifaloSID
		}

		flipped, err := s.repo.MarkSuccess(ctx, locked, now)
		if err != nil {
			return err
		}
		if !flipped {
			return fmt.Errorf("activate %s: status changed under lock: %w", orderID, core.ErrConflict)
		}

		locked.Status = StatusSuccess
		locked.CompletedAt = &now
		act.Payment = locked
		act.Subscription = sub
		act.AccessCode = code
		return nil
	})
	if err != nil {
		return nil, err
	}

	if act.Replayed {
		return s.replay(ctx, act.Payment), nil
	}

	s.logger.Info("payment activated",
		"order_id", orderID,
		"gateway", pay.Gateway,
		"plan", spec.Plan,
		"bonus_days", bonus,
		"user_id", user.ID,
		"subscription_id", act.Subscription.ID,
		"source", corr.Source,
	)

	s.emit(ctx, ConversionEvent{
		Name:     EventPurchaseCompleted,
		UserID:   user.ID,
		DeviceID: pay.DeviceID,
		Plan:     string(spec.Plan),
		Source:   corr.Source,
		Metadata: map[string]any{
			"orderId":      orderID,
			"gateway":      pay.Gateway,
			"bonusDays":    bonus,
			"durationDays": act.Subscription.DurationDays,
		},
	})

	return act, nil
}

func (s *Service) replay(ctx context.Context, pay *Payment) *Activation {
	act := &Activation{Payment: pay, Replayed: true}
	if pay.AccessCode != nil {
		act.AccessCode = *pay.AccessCode
	}
	if pay.SubscriptionID != nil {
		sub, err := s.subs.Get(ctx, *pay.SubscriptionID)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			s.logger.Warn("replayed activation subscription lookup failed",
				"order_id", pay.OrderID,
				"error", err,
			)
		}
		act.Subscription = sub
	}
	return act
}

// MarkFailed fails a pending payment. Settled payments are left alone and
// no subscription is ever touched.
func (s *Service) MarkFailed(ctx context.Context, orderID, reason string) (bool, error) {
	if reason == "" {
		reason = "payment declined"
	}

	flipped, err := s.repo.MarkFailed(ctx, orderID, reason, s.now().UTC())
	if err != nil {
		return false, err
	}
	if !flipped {
		return false, nil
	}

	s.logger.Info("payment failed", "order_id", orderID, "reason", reason)

	pay, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return true, nil //nolint:nilerr // the flip already committed
	}

	s.emit(ctx, ConversionEvent{
		Name:     EventPurchaseFailed,
		DeviceID: pay.DeviceID,
		Plan:     string(pay.Plan),
		Source:   pay.Gateway,
		Metadata: map[string]any{
			"orderId": orderID,
			"reason":  reason,
		},
	})

	return true, nil
}
