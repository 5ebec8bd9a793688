// AngelaMos | 2026
// entity.go

package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

const (
	GatewayStripe = "stripe"
	GatewaySifalo = "sifalo"
	GatewayMpesa  = "mpesa"
	GatewayPaypal = "paypal"
)

// IsManualGateway reports gateways whose payments are settled by an admin
// after checking the submitted transaction id by hand.
func IsManualGateway(gateway string) bool {
	return gateway == GatewayMpesa || gateway == GatewayPaypal
}

const minManualTxIDLength = 6

const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	ErrPaymentNotFound = fmt.Errorf("payment not found: %w", core.ErrNotFound)
	ErrPaymentFailed   = fmt.Errorf("payment already failed: %w", core.ErrConflict)
	ErrPriceNotSet     = fmt.Errorf("price not configured: %w", core.ErrInvalidInput)
	ErrGatewayDisabled = fmt.Errorf("gateway not configured: %w", core.ErrInvalidInput)
	ErrMissingMetadata = fmt.Errorf("webhook metadata missing order id: %w", core.ErrInvalidInput)
	ErrDuplicateTxID   = fmt.Errorf("transaction id already submitted: %w", core.ErrConflict)
	ErrNotManual       = fmt.Errorf("payment is not a manual submission: %w", core.ErrInvalidInput)
)

type Payment struct {
	OrderID               string            `db:"order_id"`
	DeviceID              string            `db:"device_id"`
	UserID                *string           `db:"user_id"`
	Plan                  subscription.Plan `db:"plan"`
	Amount                decimal.Decimal   `db:"amount"`
	Currency              string            `db:"currency"`
	BaseAmount            decimal.Decimal   `db:"base_amount"`
	GeoCountry            string            `db:"geo_country"`
	GeoMultiplier         decimal.Decimal   `db:"geo_multiplier"`
	Gateway               string            `db:"gateway"`
	StripeSessionID       *string           `db:"stripe_session_id"`
	StripePaymentIntentID *string           `db:"stripe_payment_intent_id"`
	SifaloSID             *string           `db:"sifalo_sid"`
	SifaloKey             *string           `db:"sifalo_key"`
	SifaloToken           *string           `db:"sifalo_token"`
	ManualTxID            *string           `db:"manual_tx_id"`
	Status                string            `db:"status"`
	BonusDays             int               `db:"bonus_days"`
	OfferCode             string            `db:"offer_code"`
	SubscriptionID        *string           `db:"subscription_id"`
	AccessCode            *string           `db:"access_code"`
	VerifyAttempts        int               `db:"verify_attempts"`
	LastGatewayStatus     string            `db:"last_gateway_status"`
	LastCheckedAt         *time.Time        `db:"last_checked_at"`
	FailureReason         string            `db:"failure_reason"`
	CreatedAt             time.Time         `db:"created_at"`
	CompletedAt           *time.Time        `db:"completed_at"`
	FailedAt              *time.Time        `db:"failed_at"`
}

// Entitlement returns the plan a successful payment buys and the bonus
// days it may add. Durations always come from the plan table.
func (p *Payment) Entitlement() (subscription.PlanSpec, int, error) {
	spec, err := subscription.LookupPlan(string(p.Plan))
	if err != nil {
		return subscription.PlanSpec{}, 0, err
	}
	return spec, subscription.ClampBonusDays(spec.Plan, p.BonusDays), nil
}

// NormalizeManualTxID cleans a hand-typed transaction id. M-Pesa codes
// are case-insensitive and stored upper-case.
func NormalizeManualTxID(gateway, raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if gateway == GatewayMpesa {
		id = strings.ToUpper(id)
	}
	if len(id) < minManualTxIDLength {
		return "", fmt.Errorf("%s transaction id too short: %w", gateway, core.ErrInvalidInput)
	}
	return id, nil
}

// NewOrderID builds FBJ-<GATEWAY>-<PLAN>-<ulid>.
func NewOrderID(gateway string, plan subscription.Plan) string {
	return fmt.Sprintf("FBJ-%s-%s-%s",
		strings.ToUpper(gateway),
		strings.ToUpper(string(plan)),
		ulid.Make().String(),
	)
}

// Correlation carries gateway-side identifiers learned at activation time.
type Correlation struct {
	StripePaymentIntentID string
	SifaloSID             string
	GatewayStatus         string
	Source                string
}

type Stats struct {
	Total   int                        `json:"total"`
	Pending int                        `json:"pending"`
	Success int                        `json:"success"`
	Failed  int                        `json:"failed"`
	Revenue map[string]decimal.Decimal `json:"revenue"`
}

const (
	EventPurchaseStarted   = "purchase_started"
	EventPurchaseCompleted = "purchase_completed"
	EventPurchaseFailed    = "purchase_failed"
)

type ConversionEvent struct {
	Name     string
	UserID   string
	DeviceID string
	Plan     string
	Source   string
	Metadata map[string]any
	At       time.Time
}

func (e ConversionEvent) DayKey() string {
	return e.At.UTC().Format(time.DateOnly)
}
