// AngelaMos | 2026
// webhook.go

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type checkoutSessionEvent struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	PaymentIntent     string            `json:"payment_intent"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func (c checkoutSessionEvent) orderID() string {
	if id := strings.TrimSpace(c.Metadata["orderId"]); id != "" {
		return id
	}
	return strings.TrimSpace(c.ClientReferenceID)
}

// HandleStripeEvent applies a signature-verified Stripe event. Unknown
// orders and already settled payments are no-ops; only malformed events
// and storage failures return an error.
func (s *Service) HandleStripeEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.expired",
		"checkout.session.async_payment_failed":
	default:
		s.logger.Debug("stripe webhook ignored", "type", event.Type, "event_id", event.ID)
		return nil
	}

	var session checkoutSessionEvent
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("decode checkout session: %w", errors.Join(core.ErrInvalidInput, err))
	}

	orderID := session.orderID()
	if orderID == "" {
		return ErrMissingMetadata
	}

	fresh, err := s.repo.RecordWebhookEvent(ctx, event.ID, string(event.Type), orderID)
	if err != nil {
		s.logger.Warn("webhook event bookkeeping failed", "event_id", event.ID, "error", err)
	} else if !fresh {
		s.logger.Info("stripe webhook redelivered", "event_id", event.ID, "order_id", orderID)
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if session.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusUnpaid) {
			s.logger.Info("checkout completed awaiting async payment", "order_id", orderID)
			return nil
		}
		_, err = s.Activate(ctx, orderID, Correlation{
			StripePaymentIntentID: session.PaymentIntent,
			GatewayStatus:         session.PaymentStatus,
			Source:                "stripe_webhook",
		})
	default:
		reason := "checkout session expired"
		if event.Type == "checkout.session.async_payment_failed" {
			reason = "async payment failed"
		}
		_, err = s.MarkFailed(ctx, orderID, reason)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPaymentNotFound):
		s.logger.Warn("stripe webhook for unknown order", "order_id", orderID, "event_id", event.ID)
		return nil
	case errors.Is(err, ErrPaymentFailed):
		s.logger.Warn("stripe webhook for failed order", "order_id", orderID, "event_id", event.ID)
		return nil
	default:
		return err
	}
}
