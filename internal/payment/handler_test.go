// AngelaMos | 2026
// handler_test.go

package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/carterperez-dev/entitlement-engine/internal/subscription"
)

func passthrough(next http.Handler) http.Handler { return next }

func newRouter(h *harness) http.Handler {
	r := chi.NewRouter()
	handler := NewHandler(h.svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	handler.RegisterRoutes(r)
	handler.RegisterAdminRoutes(r, passthrough, passthrough)
	return r
}

func checkoutEvent(eventID, eventType, orderID, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": %q,
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_status": %q,
			"payment_intent": "pi_test_1",
			"metadata": {"orderId": %q, "plan": "monthly"}
		}}
	}`, eventID, eventType, paymentStatus, orderID))
}

func signedWebhook(t *testing.T, payload []byte, secret string) *http.Request {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	req := httptest.NewRequest(http.MethodPost, "/pay/webhook", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestWebhookReplaysCreateOneSubscription(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	h.pending("FBJ-STRIPE-MONTHLY-W1", GatewayStripe, subscription.PlanMonthly, 7)
	router := newRouter(h)

	payload := checkoutEvent("evt_1", "checkout.session.completed", "FBJ-STRIPE-MONTHLY-W1", "paid")

	const deliveries = 6
	codes := make([]int, deliveries)
	var wg sync.WaitGroup
	for i := range deliveries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, signedWebhook(t, payload, testWebhookSecret))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, h.subs.Len())

	stored := h.repo.get("FBJ-STRIPE-MONTHLY-W1")
	assert.Equal(t, StatusSuccess, stored.Status)
	require.NotNil(t, stored.StripePaymentIntentID)
	assert.Equal(t, "pi_test_1", *stored.StripePaymentIntentID)

	subs := h.subs.ForUser("user-device-0001")
	require.Len(t, subs, 1)
	assert.Equal(t, 37, subs[0].DurationDays)
}

func TestWebhookRejections(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	h.pending("FBJ-STRIPE-WEEKLY-R1", GatewayStripe, subscription.PlanWeekly, 0)
	router := newRouter(h)

	t.Run("bad signature", func(t *testing.T) {
		payload := checkoutEvent("evt_sig", "checkout.session.completed", "FBJ-STRIPE-WEEKLY-R1", "paid")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedWebhook(t, payload, "whsec_wrong"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, h.subs.Len())
		assert.Equal(t, StatusPending, h.repo.get("FBJ-STRIPE-WEEKLY-R1").Status)
	})

	t.Run("missing signature header", func(t *testing.T) {
		payload := checkoutEvent("evt_nosig", "checkout.session.completed", "FBJ-STRIPE-WEEKLY-R1", "paid")
		req := httptest.NewRequest(http.MethodPost, "/pay/webhook", bytes.NewReader(payload))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing order metadata", func(t *testing.T) {
		payload := checkoutEvent("evt_meta", "checkout.session.completed", "", "paid")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedWebhook(t, payload, testWebhookSecret))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, h.subs.Len())
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		payload := checkoutEvent("evt_unknown", "checkout.session.completed", "FBJ-NOPE", "paid")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedWebhook(t, payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unrelated event type is ignored", func(t *testing.T) {
		payload := checkoutEvent("evt_other", "invoice.paid", "FBJ-STRIPE-WEEKLY-R1", "paid")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedWebhook(t, payload, testWebhookSecret))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, StatusPending, h.repo.get("FBJ-STRIPE-WEEKLY-R1").Status)
	})
}

func TestWebhookWithoutSecretIsUnavailable(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	h.stripe.cfg.WebhookSecret = ""
	router := newRouter(h)

	payload := checkoutEvent("evt_1", "checkout.session.completed", "x", "paid")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedWebhook(t, payload, testWebhookSecret))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookExpiredThenCompleted(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	h.pending("FBJ-STRIPE-MATCH-E1", GatewayStripe, subscription.PlanMatch, 0)
	router := newRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedWebhook(t,
		checkoutEvent("evt_exp", "checkout.session.expired", "FBJ-STRIPE-MATCH-E1", "unpaid"),
		testWebhookSecret,
	))
	require.Equal(t, http.StatusOK, rec.Code)

	stored := h.repo.get("FBJ-STRIPE-MATCH-E1")
	assert.Equal(t, StatusFailed, stored.Status)
	assert.Equal(t, "checkout session expired", stored.FailureReason)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, signedWebhook(t,
		checkoutEvent("evt_late", "checkout.session.completed", "FBJ-STRIPE-MATCH-E1", "paid"),
		testWebhookSecret,
	))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, h.subs.Len())
	assert.Equal(t, StatusFailed, h.repo.get("FBJ-STRIPE-MATCH-E1").Status)
	assert.Len(t, h.events.named(EventPurchaseFailed), 1)
}

func TestWebhookAsyncPaymentWaits(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	h.pending("FBJ-STRIPE-WEEKLY-A1", GatewayStripe, subscription.PlanWeekly, 0)
	router := newRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedWebhook(t,
		checkoutEvent("evt_a1", "checkout.session.completed", "FBJ-STRIPE-WEEKLY-A1", "unpaid"),
		testWebhookSecret,
	))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusPending, h.repo.get("FBJ-STRIPE-WEEKLY-A1").Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, signedWebhook(t,
		checkoutEvent("evt_a2", "checkout.session.async_payment_succeeded", "FBJ-STRIPE-WEEKLY-A1", "paid"),
		testWebhookSecret,
	))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusSuccess, h.repo.get("FBJ-STRIPE-WEEKLY-A1").Status)
	assert.Equal(t, 1, h.subs.Len())
}

func TestCheckoutHandler(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	router := newRouter(h)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"stripe monthly", `{"plan":"monthly","deviceId":"device-0001","gateway":"stripe","offerBonusDays":7}`, http.StatusOK},
		{"unknown plan", `{"plan":"forever","deviceId":"device-0001"}`, http.StatusBadRequest},
		{"short device id", `{"plan":"weekly","deviceId":"abc"}`, http.StatusBadRequest},
		{"unpriced plan", `{"plan":"yearly","deviceId":"device-0001","gateway":"stripe"}`, http.StatusBadRequest},
		{"unknown field", `{"plan":"weekly","deviceId":"device-0001","coupon":"x"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/pay/checkout", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestVerifyHandlerReportsSettledPayment(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	h.pending("FBJ-STRIPE-MONTHLY-V1", GatewayStripe, subscription.PlanMonthly, 7)
	_, err := h.svc.Activate(t.Context(), "FBJ-STRIPE-MONTHLY-V1", Correlation{Source: "test"})
	require.NoError(t, err)

	router := newRouter(h)
	req := httptest.NewRequest(http.MethodPost, "/pay/verify",
		strings.NewReader(`{"orderId":"FBJ-STRIPE-MONTHLY-V1","deviceId":"device-0001"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "monthly", resp.Plan)
	assert.Equal(t, "37 days", resp.ExpiresIn)
	assert.NotEmpty(t, resp.Code)
	assert.Positive(t, resp.ExpiresAt)

	req = httptest.NewRequest(http.MethodPost, "/pay/verify", strings.NewReader(`{"deviceId":"device-0001"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSifaloCallbackHandler(t *testing.T) {
	srv := newSifaloVerifyServer(t, map[string]string{"sid-cb": "O-CB"})
	h := newHarness(t, srv.URL)
	h.pending("O-CB", GatewaySifalo, subscription.PlanWeekly, 0)
	router := newRouter(h)

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"unknown order", `{"order_id":"O-MISSING"}`, http.StatusNotFound, ""},
		{"no identifiers", `{"status":"success"}`, http.StatusBadRequest, ""},
		{"malformed", `{"sid":`, http.StatusBadRequest, ""},
		{"extra gateway fields", `{"order_id":"O-CB","sid":"sid-cb","status":"success","amount":"1.52"}`, http.StatusOK, "success"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/pay/sifalo/callback", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.want != "" {
				var resp struct {
					Received bool   `json:"received"`
					Status   string `json:"status"`
				}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.True(t, resp.Received)
				assert.Equal(t, tt.want, resp.Status)
			}
		})
	}

	assert.Equal(t, StatusSuccess, h.repo.get("O-CB").Status)
	assert.Equal(t, 1, h.subs.Len())
}

func TestManualSubmitAndApproveHandlers(t *testing.T) {
	h := newHarness(t, "http://unused.test")
	router := newRouter(h)

	submit := func(gateway, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/pay/"+gateway+"/submit", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := submit("bitcoin", `{"plan":"weekly","deviceId":"device-0001","txId":"abcdef12"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = submit("mpesa", `{"plan":"weekly","deviceId":"device-0001","txId":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = submit("mpesa", `{"plan":"weekly","deviceId":"device-0001","txId":"qhx81k2lpa"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var submitted ManualSubmitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&submitted))
	assert.Equal(t, StatusPending, submitted.Status)
	assert.Equal(t, "4.50", submitted.Amount)

	rec = submit("mpesa", `{"plan":"weekly","deviceId":"device-0002","txId":"QHX81K2LPA"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "DUPLICATE_TRANSACTION")

	req := httptest.NewRequest(http.MethodGet, "/admin/payments/pending", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), submitted.OrderID)

	req = httptest.NewRequest(http.MethodPost, "/admin/payments/"+submitted.OrderID+"/approve", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var approved ApproveResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&approved))
	assert.True(t, approved.Success)
	assert.False(t, approved.Replayed)
	assert.NotEmpty(t, approved.Code)
	assert.Equal(t, 1, h.subs.Len())

	req = httptest.NewRequest(http.MethodPost, "/admin/payments/"+submitted.OrderID+"/reject",
		strings.NewReader(`{"reason":"late"}`))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/payments/O-NOPE/approve", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
