// AngelaMos | 2026
// handler.go

package payment

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/middleware"
)

const webhookBodyLimit = 1 << 20

type Handler struct {
	service   *Service
	validator *validator.Validate
	logger    *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pay", func(r chi.Router) {
		r.Post("/checkout", h.Checkout)
		r.Post("/webhook", h.Webhook)
		r.Post("/verify", h.Verify)
		r.Get("/history", h.History)
		r.Post("/sifalo/callback", h.SifaloCallback)
		r.Post("/{gateway}/submit", h.SubmitManual)
	})
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/payments", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.Stats)
		r.Get("/pending", h.PendingManual)
		r.Post("/{orderId}/approve", h.Approve)
		r.Post("/{orderId}/reject", h.Reject)
	})
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.Checkout(r.Context(), CheckoutParams{
		Plan:      req.Plan,
		DeviceID:  req.DeviceID,
		Gateway:   req.Gateway,
		BonusDays: req.OfferBonusDays,
		OfferCode: req.OfferCode,
		ClientIP:  middleware.ClientIP(r),
	})
	if err != nil {
		core.JSONError(w, checkoutError(err))
		return
	}

	core.OK(w, CheckoutResponse{
		CheckoutURL: res.CheckoutURL,
		OrderID:     res.OrderID,
		Gateway:     res.Gateway,
		Amount:      res.Amount.StringFixed(2),
		Currency:    res.Currency,
		Country:     res.Country,
	})
}

func checkoutError(err error) *core.AppError {
	switch {
	case errors.Is(err, ErrPriceNotSet):
		return core.NewAppError(err, "price not configured for this plan", http.StatusBadRequest, "PRICE_NOT_CONFIGURED")
	case errors.Is(err, ErrGatewayDisabled):
		return core.NewAppError(err, "payment gateway not configured", http.StatusServiceUnavailable, "GATEWAY_DISABLED")
	default:
		return core.Classify(err, "payment")
	}
}

// Webhook verifies the Stripe signature before anything else. Signature
// failures point at a misconfigured secret and are logged at error level.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		core.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		core.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	secret := strings.TrimSpace(h.service.stripe.WebhookSecret())
	if secret == "" {
		status = http.StatusServiceUnavailable
		core.JSONError(w, core.NewAppError(ErrGatewayDisabled, "webhook secret not configured", status, "GATEWAY_DISABLED"))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		core.BadRequest(w, "failed to read request body")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		status = http.StatusBadRequest
		h.logger.Error("stripe webhook signature rejected",
			"error", err,
			"has_signature", sigHeader != "",
			"remote_ip", middleware.ClientIP(r),
		)
		core.BadRequest(w, "invalid signature")
		return
	}
	eventType = string(event.Type)

	if err := h.service.HandleStripeEvent(r.Context(), &event); err != nil {
		if errors.Is(err, core.ErrInvalidInput) {
			status = http.StatusBadRequest
			h.logger.Warn("stripe webhook rejected", "event_id", event.ID, "error", err)
			core.BadRequest(w, "missing or malformed metadata")
			return
		}

		status = http.StatusInternalServerError
		h.logger.Error("stripe webhook processing failed",
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, map[string]bool{"received": true})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.Verify(r.Context(), VerifyParams(req))
	if err != nil {
		core.JSONError(w, core.Classify(err, "payment"))
		return
	}

	core.OK(w, toVerifyResponse(res))
}

// SifaloCallback answers the gateway's server-to-server notification by
// re-polling verify for the payment it names.
func (h *Handler) SifaloCallback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)

	var req SifaloCallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	res, err := h.service.HandleSifaloCallback(r.Context(), SifaloCallback{
		SID:     req.SID,
		OrderID: req.OrderID,
		Key:     req.Key,
	})
	if err != nil {
		if !errors.Is(err, core.ErrInvalidInput) && !errors.Is(err, core.ErrNotFound) {
			h.logger.Error("sifalo callback failed", "order_id", req.OrderID, "error", err)
		}
		core.JSONError(w, core.Classify(err, "payment"))
		return
	}

	core.OK(w, map[string]any{"received": true, "status": string(res.Status)})
}

func (h *Handler) SubmitManual(w http.ResponseWriter, r *http.Request) {
	gateway := chi.URLParam(r, "gateway")
	if !IsManualGateway(gateway) {
		core.JSONError(w, core.NotFoundError("gateway"))
		return
	}

	var req ManualSubmitRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	pay, err := h.service.SubmitManual(r.Context(), ManualParams{
		Gateway:   gateway,
		Plan:      req.Plan,
		DeviceID:  req.DeviceID,
		TxID:      req.TxID,
		BonusDays: req.OfferBonusDays,
		OfferCode: req.OfferCode,
		ClientIP:  middleware.ClientIP(r),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTxID) {
			core.JSONError(w, core.ConflictError("this transaction id has already been submitted", "DUPLICATE_TRANSACTION"))
			return
		}
		core.JSONError(w, checkoutError(err))
		return
	}

	core.OK(w, ManualSubmitResponse{
		Success:  true,
		OrderID:  pay.OrderID,
		Status:   pay.Status,
		Amount:   pay.Amount.StringFixed(2),
		Currency: pay.Currency,
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimSpace(r.URL.Query().Get("deviceId"))
	if deviceID == "" {
		core.BadRequest(w, "deviceId is required")
		return
	}

	payments, err := h.service.History(r.Context(), deviceID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	items := make([]HistoryItem, 0, len(payments))
	for _, p := range payments {
		items = append(items, toHistoryItem(p))
	}

	core.OK(w, items)
}

// Stats summarises payments by status with settled revenue per currency.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) PendingManual(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.PendingManual(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	items := make([]PendingManualItem, 0, len(payments))
	for _, p := range payments {
		items = append(items, toPendingManualItem(p))
	}

	core.OK(w, items)
}

// Approve activates a manual submission after an admin matched it to a
// real transfer.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	act, err := h.service.Approve(r.Context(), orderID, middleware.GetUserID(r.Context()))
	if err != nil {
		core.JSONError(w, core.Classify(err, "payment"))
		return
	}

	resp := ApproveResponse{
		Success:  true,
		OrderID:  act.Payment.OrderID,
		Plan:     string(act.Payment.Plan),
		Code:     act.AccessCode,
		Replayed: act.Replayed,
	}
	if act.Subscription != nil {
		resp.ExpiresAt = act.Subscription.ExpiresAt.UnixMilli()
	}

	core.OK(w, resp)
}

func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	var req RejectRequest
	if r.ContentLength != 0 {
		if err := core.DecodeJSON(w, r, &req); err != nil {
			core.JSONError(w, err)
			return
		}
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	orderID := chi.URLParam(r, "orderId")
	if err := h.service.Reject(r.Context(), orderID, req.Reason, middleware.GetUserID(r.Context())); err != nil {
		core.JSONError(w, core.Classify(err, "payment"))
		return
	}

	core.OK(w, map[string]any{"success": true, "orderId": orderID})
}
