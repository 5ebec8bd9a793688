// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/geo"
	"github.com/carterperez-dev/entitlement-engine/internal/identity"
	"github.com/carterperez-dev/entitlement-engine/internal/redemption"
	"github.com/carterperez-dev/entitlement-engine/internal/settings"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

type SettingsReader interface {
	Current(ctx context.Context) (settings.Snapshot, error)
}

type Pricer interface {
	Quote(ctx context.Context, ip string, base decimal.Decimal) geo.Quote
}

type UserResolver interface {
	ResolveUser(ctx context.Context, deviceID, userAgent string) (*identity.User, error)
}

type Subscriptions interface {
	Create(ctx context.Context, p subscription.CreateParams) (*subscription.Subscription, error)
	Get(ctx context.Context, id string) (*subscription.Subscription, error)
}

type AccessCodes interface {
	GetOrCreatePaymentAccessCode(ctx context.Context, p redemption.AccessCodeParams) (string, error)
}

type Deps struct {
	Repo           Repository
	Tx             core.Transactor
	Settings       SettingsReader
	Pricer         Pricer
	Users          UserResolver
	Subscriptions  Subscriptions
	Codes          AccessCodes
	Events         EventSink
	Stripe         *StripeGateway
	Sifalo         *SifaloClient
	DefaultGateway string
	Logger         *slog.Logger
}

type Service struct {
	repo           Repository
	tx             core.Transactor
	settings       SettingsReader
	pricer         Pricer
	users          UserResolver
	subs           Subscriptions
	codes          AccessCodes
	events         EventSink
	stripe         *StripeGateway
	sifalo         *SifaloClient
	defaultGateway string
	logger         *slog.Logger
	now            func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:           d.Repo,
		tx:             d.Tx,
		settings:       d.Settings,
		pricer:         d.Pricer,
		users:          d.Users,
		subs:           d.Subscriptions,
		codes:          d.Codes,
		events:         d.Events,
		stripe:         d.Stripe,
		sifalo:         d.Sifalo,
		defaultGateway: d.DefaultGateway,
		logger:         d.Logger,
		now:            time.Now,
	}
}

type CheckoutParams struct {
	Plan      string
	DeviceID  string
	Gateway   string
	BonusDays int
	OfferCode string
	ClientIP  string
}

type CheckoutResult struct {
	CheckoutURL string
	OrderID     string
	Gateway     string
	Amount      decimal.Decimal
	Currency    string
	Country     string
}

// Checkout prices the plan for the caller's region, opens a gateway
// session and records the pending payment.
func (s *Service) Checkout(ctx context.Context, p CheckoutParams) (*CheckoutResult, error) {
	gateway := strings.ToLower(strings.TrimSpace(p.Gateway))
	if gateway == "" {
		gateway = s.defaultGateway
	}

	spec, base, quote, bonus, err := s.price(ctx, p.Plan, p.ClientIP, p.BonusDays)
	if err != nil {
		return nil, err
	}

	pay := &Payment{
		OrderID:       NewOrderID(gateway, spec.Plan),
		DeviceID:      p.DeviceID,
		Plan:          spec.Plan,
		BaseAmount:    base,
		GeoCountry:    quote.Country,
		GeoMultiplier: decimal.NewFromFloat(quote.Multiplier),
		Gateway:       gateway,
		Status:        StatusPending,
		BonusDays:     bonus,
		OfferCode:     subscription.OfferCode(p.OfferCode, bonus),
	}

	req := SessionRequest{
		OrderID:   pay.OrderID,
		Plan:      string(spec.Plan),
		DeviceID:  p.DeviceID,
		BonusDays: bonus,
		OfferCode: pay.OfferCode,
	}

	var session *Session
	switch gateway {
	case GatewayStripe:
		if !s.stripe.Enabled() {
			return nil, ErrGatewayDisabled
		}
		req.Amount = quote.Amount
		pay.Currency = s.stripe.Currency()
		session, err = s.stripe.CreateSession(ctx, req)
		if err == nil {
			pay.StripeSessionID = &session.SessionID
		}
	case GatewaySifalo:
		if !s.sifalo.Enabled() {
			return nil, ErrGatewayDisabled
		}
		req.Amount = s.sifalo.WithFee(quote.Amount)
		pay.Currency = s.sifalo.Currency()
		session, err = s.sifalo.CreateSession(ctx, req)
		if err == nil {
			pay.SifaloKey = &session.Key
			pay.SifaloToken = &session.Token
		}
	default:
		return nil, fmt.Errorf("checkout: gateway %q: %w", gateway, core.ErrInvalidInput)
	}
	if err != nil {
		s.logger.Error("gateway session failed",
			"gateway", gateway,
			"order_id", pay.OrderID,
			"error", err,
		)
		return nil, err
	}

	pay.Amount = req.Amount

	if err := s.repo.Create(ctx, pay); err != nil {
		return nil, err
	}

	s.logger.Info("checkout started",
		"order_id", pay.OrderID,
		"gateway", gateway,
		"plan", spec.Plan,
		"amount", pay.Amount.StringFixed(2),
		"country", quote.Country,
		"geo_fallback", quote.Fallback,
	)

	s.emit(ctx, ConversionEvent{
		Name:     EventPurchaseStarted,
		DeviceID: p.DeviceID,
		Plan:     string(spec.Plan),
		Source:   "checkout_api",
		Metadata: map[string]any{
			"orderId":     pay.OrderID,
			"gateway":     gateway,
			"baseAmount":  base.StringFixed(2),
			"totalAmount": pay.Amount.StringFixed(2),
			"country":     quote.Country,
			"bonusDays":   bonus,
			"offerCode":   pay.OfferCode,
		},
	})

	return &CheckoutResult{
		CheckoutURL: session.URL,
		OrderID:     pay.OrderID,
		Gateway:     gateway,
		Amount:      pay.Amount,
		Currency:    pay.Currency,
		Country:     quote.Country,
	}, nil
}

// price reads the current base price for plan and applies the caller's
// regional multiplier and the clamped bonus days.
func (s *Service) price(
	ctx context.Context,
	plan, clientIP string,
	bonusDays int,
) (subscription.PlanSpec, decimal.Decimal, geo.Quote, int, error) {
	spec, err := subscription.LookupPlan(plan)
	if err != nil {
		return subscription.PlanSpec{}, decimal.Zero, geo.Quote{}, 0, err
	}

	snap, err := s.settings.Current(ctx)
	if err != nil {
		return subscription.PlanSpec{}, decimal.Zero, geo.Quote{}, 0, fmt.Errorf("price %s: %w", plan, err)
	}

	base := snap.BasePrice(string(spec.Plan))
	if !base.IsPositive() {
		return subscription.PlanSpec{}, decimal.Zero, geo.Quote{}, 0, ErrPriceNotSet
	}

	quote := s.pricer.Quote(ctx, clientIP, base)
	return spec, base, quote, subscription.ClampBonusDays(spec.Plan, bonusDays), nil
}

type VerifyParams struct {
	SID      string
	OrderID  string
	DeviceID string
}

type VerifyResult struct {
	Status       VerifyStatus
	Plan         subscription.Plan
	DurationDays int
	AccessCode   string
	ExpiresAt    *time.Time
	Message      string
	Manual       bool
}

// Verify asks the payment's gateway for its status and activates on
// success. Gateway trouble is reported as pending so the client retries.
func (s *Service) Verify(ctx context.Context, p VerifyParams) (*VerifyResult, error) {
	pay, err := s.locate(ctx, p.OrderID, p.SID)
	if err != nil {
		return nil, err
	}

	switch pay.Status {
	case StatusSuccess:
		return s.settled(ctx, pay), nil
	case StatusFailed:
		return &VerifyResult{Status: VerifyFailed, Plan: pay.Plan, Message: pay.FailureReason}, nil
	}

	if IsManualGateway(pay.Gateway) {
		return &VerifyResult{
			Status:  VerifyPending,
			Plan:    pay.Plan,
			Message: "payment received, awaiting admin approval",
			Manual:  true,
		}, nil
	}

	check, sid, err := s.check(ctx, pay, p.SID)
	if err != nil {
		s.logger.Warn("payment verify degraded to pending",
			"order_id", pay.OrderID,
			"gateway", pay.Gateway,
			"error", err,
		)
		check = GatewayCheck{Status: VerifyPending, GatewayStatus: "unreachable"}
	}

	if check.OrderID != "" && check.OrderID != pay.OrderID {
		s.logger.Warn("gateway transaction belongs to another order",
			"order_id", pay.OrderID,
			"gateway_order_id", check.OrderID,
			"sid", sid,
		)
		check = GatewayCheck{Status: VerifyPending, GatewayStatus: "order_mismatch"}
		sid = ""
	}

	core.VerifyOutcomesTotal.WithLabelValues(pay.Gateway, string(check.Status)).Inc()

	if check.GatewayStatus != "" || sid != "" {
		if err := s.repo.RecordVerify(ctx, pay.OrderID, sid, check.GatewayStatus, s.now().UTC()); err != nil {
			return nil, err
		}
	}

	switch check.Status {
	case VerifySuccess:
		act, err := s.Activate(ctx, pay.OrderID, Correlation{
			StripePaymentIntentID: check.PaymentIntentID,
			SifaloSID:             sid,
			GatewayStatus:         check.GatewayStatus,
			Source:                "verify_api",
		})
		if err != nil {
			return nil, err
		}
		return act.result(), nil

	case VerifyFailed:
		if _, err := s.MarkFailed(ctx, pay.OrderID, check.Reason); err != nil {
			return nil, err
		}
		return &VerifyResult{Status: VerifyFailed, Plan: pay.Plan, Message: check.Reason}, nil

	default:
		return &VerifyResult{Status: VerifyPending, Plan: pay.Plan}, nil
	}
}

type SifaloCallback struct {
	SID     string
	OrderID string
	Key     string
}

// HandleSifaloCallback treats the gateway's unsigned callback as a hint:
// it finds the payment and re-polls verify. Nothing in the body is
// trusted beyond the identifiers used to look the payment up.
func (s *Service) HandleSifaloCallback(ctx context.Context, cb SifaloCallback) (*VerifyResult, error) {
	cb.SID = strings.TrimSpace(cb.SID)
	cb.OrderID = strings.TrimSpace(cb.OrderID)
	cb.Key = strings.TrimSpace(cb.Key)
	if cb.SID == "" && cb.OrderID == "" && cb.Key == "" {
		return nil, fmt.Errorf("sifalo callback: sid, order id or key: %w", core.ErrInvalidInput)
	}

	pay, err := s.locateCallback(ctx, cb)
	if err != nil {
		return nil, err
	}
	if pay.Gateway != GatewaySifalo {
		return nil, fmt.Errorf("sifalo callback for %s payment: %w", pay.Gateway, ErrPaymentNotFound)
	}

	sid := cb.SID
	if sid != "" {
		owner, err := s.repo.GetBySifaloSID(ctx, sid)
		switch {
		case err == nil && owner.OrderID != pay.OrderID:
			s.logger.Warn("sifalo callback sid already bound to another order",
				"order_id", pay.OrderID,
				"sid_order_id", owner.OrderID,
			)
			sid = ""
		case err != nil && !errors.Is(err, core.ErrNotFound):
			return nil, err
		}
	}

	s.logger.Info("sifalo callback received", "order_id", pay.OrderID, "has_sid", sid != "")

	return s.Verify(ctx, VerifyParams{OrderID: pay.OrderID, SID: sid})
}

func (s *Service) locateCallback(ctx context.Context, cb SifaloCallback) (*Payment, error) {
	if cb.OrderID != "" {
		pay, err := s.repo.GetByOrderID(ctx, cb.OrderID)
		if !errors.Is(err, core.ErrNotFound) {
			return pay, err
		}
	}
	if cb.SID != "" {
		pay, err := s.repo.GetBySifaloSID(ctx, cb.SID)
		if !errors.Is(err, core.ErrNotFound) {
			return pay, err
		}
	}
	if cb.Key != "" {
		return s.repo.GetBySifaloKey(ctx, cb.Key)
	}
	return nil, ErrPaymentNotFound
}

func (s *Service) locate(ctx context.Context, orderID, sid string) (*Payment, error) {
	orderID = strings.TrimSpace(orderID)
	sid = strings.TrimSpace(sid)
	if orderID == "" && sid == "" {
		return nil, fmt.Errorf("verify: sid or order id: %w", core.ErrInvalidInput)
	}

	if orderID != "" {
		pay, err := s.repo.GetByOrderID(ctx, orderID)
		if err == nil || !errors.Is(err, core.ErrNotFound) || sid == "" {
			return pay, err
		}
	}

	return s.repo.GetBySifaloSID(ctx, sid)
}

// check polls the gateway. It returns the transaction id it checked so
// the attempt can be recorded against it.
func (s *Service) check(ctx context.Context, pay *Payment, requestSID string) (GatewayCheck, string, error) {
	switch pay.Gateway {
	case GatewayStripe:
		if pay.StripeSessionID == nil || !s.stripe.Enabled() {
			return GatewayCheck{Status: VerifyPending}, "", nil
		}
		check, err := s.stripe.Check(ctx, *pay.StripeSessionID)
		return check, "", err

	case GatewaySifalo:
		sid := strings.TrimSpace(requestSID)
		if sid == "" && pay.SifaloSID != nil {
			sid = *pay.SifaloSID
		}
		if sid == "" || !s.sifalo.Enabled() {
			return GatewayCheck{Status: VerifyPending}, sid, nil
		}
		check, err := s.sifalo.Verify(ctx, sid)
		return check, sid, err

	default:
		return GatewayCheck{Status: VerifyPending}, "", nil
	}
}

// settled describes a payment that already succeeded without calling the
// gateway again.
func (s *Service) settled(ctx context.Context, pay *Payment) *VerifyResult {
	return s.replay(ctx, pay).result()
}

func (s *Service) History(ctx context.Context, deviceID string) ([]Payment, error) {
	user, err := s.users.ResolveUser(ctx, deviceID, "")
	if err != nil {
		return nil, err
	}
	return s.repo.ListForUser(ctx, user.ID, deviceID, 50)
}

// FailStale fails pending payments created before now-maxAge.
func (s *Service) FailStale(ctx context.Context, maxAge time.Duration) (int, error) {
	n, err := s.repo.FailStale(ctx, s.now().UTC().Add(-maxAge), "abandoned checkout")
	if err != nil {
		return 0, err
	}

	if n > 0 {
		s.logger.Info("stale payments failed", "count", n, "max_age", maxAge)
	}

	return n, nil
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

// emit records an analytics event. Failures are logged and never reach
// the caller.
func (s *Service) emit(ctx context.Context, e ConversionEvent) {
	if s.events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	if err := s.events.Record(context.WithoutCancel(ctx), e); err != nil {
		s.logger.Warn("conversion event write failed",
			"event", e.Name,
			"error", err,
		)
	}
}
