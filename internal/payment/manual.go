// AngelaMos | 2026
// manual.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

const manualCurrency = "USD"

type ManualParams struct {
	Gateway   string
	Plan      string
	DeviceID  string
	TxID      string
	BonusDays int
	OfferCode string
	ClientIP  string
}

// SubmitManual records a payment the customer made outside any API
// (M-Pesa, PayPal send-money) and quoted back by transaction id. It stays
// pending until an admin approves it.
func (s *Service) SubmitManual(ctx context.Context, p ManualParams) (*Payment, error) {
	gateway := strings.ToLower(strings.TrimSpace(p.Gateway))
	if !IsManualGateway(gateway) {
		return nil, fmt.Errorf("manual submit: gateway %q: %w", gateway, core.ErrInvalidInput)
	}

	txID, err := NormalizeManualTxID(gateway, p.TxID)
	if err != nil {
		return nil, err
	}

	spec, base, quote, bonus, err := s.price(ctx, p.Plan, p.ClientIP, p.BonusDays)
	if err != nil {
		return nil, err
	}

	pay := &Payment{
		OrderID:       NewOrderID(gateway, spec.Plan),
		DeviceID:      p.DeviceID,
		Plan:          spec.Plan,
		Amount:        quote.Amount,
		Currency:      manualCurrency,
		BaseAmount:    base,
		GeoCountry:    quote.Country,
		GeoMultiplier: decimal.NewFromFloat(quote.Multiplier),
		Gateway:       gateway,
		ManualTxID:    &txID,
		Status:        StatusPending,
		BonusDays:     bonus,
		OfferCode:     subscription.OfferCode(p.OfferCode, bonus),
	}

	if err := s.repo.Create(ctx, pay); err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrDuplicateTxID
		}
		return nil, err
	}

	s.logger.Info("manual payment submitted",
		"order_id", pay.OrderID,
		"gateway", gateway,
		"plan", spec.Plan,
		"amount", pay.Amount.StringFixed(2),
	)

	s.emit(ctx, ConversionEvent{
		Name:     EventPurchaseStarted,
		DeviceID: p.DeviceID,
		Plan:     string(spec.Plan),
		Source:   gateway + "_manual",
		Metadata: map[string]any{
			"orderId":     pay.OrderID,
			"gateway":     gateway,
			"totalAmount": pay.Amount.StringFixed(2),
			"country":     quote.Country,
		},
	})

	return pay, nil
}

// Approve settles a manual submission through the shared activation path.
// Approving twice returns the original activation.
func (s *Service) Approve(ctx context.Context, orderID, adminID string) (*Activation, error) {
	pay, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !IsManualGateway(pay.Gateway) {
		return nil, ErrNotManual
	}

	act, err := s.Activate(ctx, orderID, Correlation{
		GatewayStatus: "manual_approved",
		Source:        "admin_approval",
	})
	if err != nil {
		return nil, err
	}

	if !act.Replayed {
		s.logger.Info("manual payment approved", "order_id", orderID, "admin_id", adminID)
	}

	return act, nil
}

// Reject fails a manual submission that could not be matched to a real
// transfer.
func (s *Service) Reject(ctx context.Context, orderID, reason, adminID string) error {
	pay, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if !IsManualGateway(pay.Gateway) {
		return ErrNotManual
	}

	if reason == "" {
		reason = "rejected by admin"
	}

	flipped, err := s.MarkFailed(ctx, orderID, reason)
	if err != nil {
		return err
	}
	if !flipped {
		current, err := s.repo.GetByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == StatusSuccess {
			return fmt.Errorf("reject %s: already approved: %w", orderID, core.ErrConflict)
		}
		return nil
	}

	s.logger.Info("manual payment rejected", "order_id", orderID, "admin_id", adminID)
	return nil
}

func (s *Service) PendingManual(ctx context.Context) ([]Payment, error) {
	return s.repo.ListPendingManual(ctx, 100)
}
