// AngelaMos | 2026
// gateway.go

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"

	"github.com/carterperez-dev/entitlement-engine/internal/config"
	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

// VerifyStatus is the tri-state answer of a gateway status check.
type VerifyStatus string

const (
	VerifySuccess VerifyStatus = "success"
	VerifyPending VerifyStatus = "pending"
	VerifyFailed  VerifyStatus = "failed"
)

type SessionRequest struct {
	OrderID   string
	Plan      string
	DeviceID  string
	Amount    decimal.Decimal
	BonusDays int
	OfferCode string
}

type Session struct {
	URL       string
	SessionID string
	Key       string
	Token     string
}

type GatewayCheck struct {
	Status          VerifyStatus
	GatewayStatus   string
	Reason          string
	PaymentIntentID string
	OrderID         string
}

type StripeGateway struct {
	cfg                   config.StripeConfig
	createCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getCheckoutSession    func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

func NewStripeGateway(cfg config.StripeConfig) *StripeGateway {
	if cfg.Enabled() {
		stripe.Key = strings.TrimSpace(cfg.SecretKey)
	}
	return &StripeGateway{
		cfg:                   cfg,
		createCheckoutSession: stripesession.New,
		getCheckoutSession:    stripesession.Get,
	}
}

func (g *StripeGateway) Enabled() bool {
	return g != nil && g.cfg.Enabled()
}

func (g *StripeGateway) Currency() string {
	return strings.ToUpper(g.cfg.Currency)
}

func (g *StripeGateway) WebhookSecret() string {
	if g == nil {
		return ""
	}
	return g.cfg.WebhookSecret
}

// CreateSession opens a hosted checkout for one plan purchase. The order
// id travels in metadata so the webhook can find the payment row.
func (g *StripeGateway) CreateSession(_ context.Context, req SessionRequest) (*Session, error) {
	successURL := strings.ReplaceAll(g.cfg.SuccessURL, "{ORDER_ID}", url.QueryEscape(req.OrderID))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(g.cfg.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(g.cfg.Currency)),
					UnitAmount: stripe.Int64(req.Amount.Shift(2).Round(0).IntPart()),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(strings.ToUpper(req.Plan[:1]) + req.Plan[1:] + " plan"),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"orderId":   req.OrderID,
			"plan":      req.Plan,
			"deviceId":  req.DeviceID,
			"bonusDays": strconv.Itoa(req.BonusDays),
			"offerCode": req.OfferCode,
		},
	}

	session, err := g.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", errors.Join(core.ErrUpstream, err))
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, fmt.Errorf("stripe checkout session: empty url: %w", core.ErrUpstream)
	}

	return &Session{URL: session.URL, SessionID: session.ID}, nil
}

// Check polls a checkout session: paid or free (a full discount) is
// success, unpaid is pending and anything else failed.
func (g *StripeGateway) Check(_ context.Context, sessionID string) (GatewayCheck, error) {
	session, err := g.getCheckoutSession(sessionID, nil)
	if err != nil || session == nil {
		return GatewayCheck{Status: VerifyPending}, fmt.Errorf(
			"stripe session %s: %w", sessionID, errors.Join(core.ErrUpstream, err),
		)
	}

	check := GatewayCheck{
		GatewayStatus: string(session.PaymentStatus),
		OrderID:       session.Metadata["orderId"],
	}
	if session.PaymentIntent != nil {
		check.PaymentIntentID = session.PaymentIntent.ID
	}

	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid,
		stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		check.Status = VerifySuccess
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		check.Status = VerifyPending
		if session.Status == stripe.CheckoutSessionStatusExpired {
			check.Status = VerifyFailed
			check.Reason = "checkout session expired"
		}
	default:
		check.Status = VerifyFailed
		check.Reason = "payment status " + string(session.PaymentStatus)
	}

	return check, nil
}

const sifaloSuccessCode = "601"

var (
	sifaloSuccessStatuses = map[string]bool{
		"success": true, "successful": true, "completed": true,
		"complete": true, "paid": true, "approved": true,
	}
	sifaloPendingStatuses = map[string]bool{
		"pending": true, "processing": true, "in_progress": true,
		"awaiting": true, "waiting": true,
	}
)

type SifaloClient struct {
	cfg    config.SifaloConfig
	client *http.Client
}

func NewSifaloClient(cfg config.SifaloConfig) *SifaloClient {
	return &SifaloClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *SifaloClient) Enabled() bool {
	return c != nil && c.cfg.Enabled()
}

func (c *SifaloClient) Currency() string {
	return strings.ToUpper(c.cfg.Currency)
}

// WithFee adds the processing fee, rounded up to the cent, so the merchant
// still receives the full price.
func (c *SifaloClient) WithFee(amount decimal.Decimal) decimal.Decimal {
	fee := amount.Mul(decimal.NewFromFloat(c.cfg.FeePercent)).Div(decimal.NewFromInt(100))
	return amount.Add(fee.RoundCeil(2)).Round(2)
}

type sifaloCheckoutRequest struct {
	Amount      string `json:"amount"`
	Gateway     string `json:"gateway"`
	Currency    string `json:"currency"`
	ReturnURL   string `json:"return_url"`
	CallbackURL string `json:"callback_url,omitempty"`
	OrderID     string `json:"order_id"`
}

type sifaloCheckoutResponse struct {
	Key   string `json:"key"`
	Token string `json:"token"`
}

func (c *SifaloClient) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	returnURL, err := url.Parse(c.cfg.ReturnURL)
	if err != nil {
		return nil, fmt.Errorf("sifalo return url: %w", err)
	}
	q := returnURL.Query()
	q.Set("order_id", req.OrderID)
	returnURL.RawQuery = q.Encode()

	var out sifaloCheckoutResponse
	err = c.post(ctx, "/", sifaloCheckoutRequest{
		Amount:      req.Amount.StringFixed(2),
		Gateway:     "checkout",
		Currency:    c.Currency(),
		ReturnURL:   returnURL.String(),
		CallbackURL: c.cfg.CallbackURL,
		OrderID:     req.OrderID,
	}, &out)
	if err != nil {
		return nil, err
	}

	if out.Key == "" || out.Token == "" {
		return nil, fmt.Errorf("sifalo checkout: missing key or token: %w", core.ErrUpstream)
	}

	checkout, err := url.Parse(c.cfg.CheckoutURL)
	if err != nil {
		return nil, fmt.Errorf("sifalo checkout url: %w", err)
	}
	cq := checkout.Query()
	cq.Set("key", out.Key)
	cq.Set("token", out.Token)
	checkout.RawQuery = cq.Encode()

	return &Session{URL: checkout.String(), Key: out.Key, Token: out.Token}, nil
}

// Verify asks the gateway about transaction sid. Transport failures and
// non-2xx answers come back as pending with the error attached.
func (c *SifaloClient) Verify(ctx context.Context, sid string) (GatewayCheck, error) {
	var body map[string]any
	if err := c.post(ctx, "/verify.php", map[string]string{"sid": sid}, &body); err != nil {
		return GatewayCheck{Status: VerifyPending}, err
	}

	return interpretSifalo(body), nil
}

func interpretSifalo(body map[string]any) GatewayCheck {
	data := asMap(body["data"])
	result := asMap(body["result"])

	var status string
	for _, v := range []any{
		body["status"], body["payment_status"], body["paymentStatus"], body["state"],
		data["status"], data["payment_status"], result["status"],
	} {
		if s := strings.ToLower(strings.TrimSpace(asString(v))); s != "" {
			status = s
			break
		}
	}

	code := firstNonEmpty(asString(body["code"]), asString(data["code"]), asString(body["resultCode"]))
	reason := firstNonEmpty(asString(body["message"]), asString(data["message"]))

	check := GatewayCheck{
		GatewayStatus: status,
		Reason:        reason,
		OrderID:       firstNonEmpty(asString(body["order_id"]), asString(data["order_id"])),
	}

	switch {
	case code == sifaloSuccessCode && (status == "" || sifaloSuccessStatuses[status]):
		check.Status = VerifySuccess
	case code == "" && sifaloSuccessStatuses[status]:
		check.Status = VerifySuccess
	case sifaloPendingStatuses[status]:
		check.Status = VerifyPending
	default:
		check.Status = VerifyFailed
		if check.Reason == "" {
			check.Reason = "payment declined"
		}
	}

	return check
}

func (c *SifaloClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode sifalo request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sifalo request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sifalo %s: %w", path, errors.Join(core.ErrUpstream, err))
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // diagnostics only
		return fmt.Errorf("sifalo %s: status %d: %s: %w",
			path, resp.StatusCode, bytes.TrimSpace(snippet), core.ErrUpstream)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode sifalo %s: %w", path, errors.Join(core.ErrUpstream, err))
	}

	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
