// AngelaMos | 2026
// handler.go

package redemption

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/redeem", h.Redeem)
	r.Get("/trial-access", h.TrialAccess)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/codes", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.ListCodes)
		r.Post("/", h.GenerateCodes)
		r.Get("/stats", h.CodeStats)
		r.Delete("/{id}", h.RevokeCode)
	})
}

func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	result, err := h.service.Redeem(r.Context(), req.Code, req.DeviceID, r.UserAgent())
	if err != nil {
		core.JSONError(w, redeemError(err))
		return
	}

	core.OK(w, toRedeemResponse(result))
}

func redeemError(err error) *core.AppError {
	switch {
	case errors.Is(err, ErrCodeNotFound):
		return core.NewAppError(err, "invalid code", http.StatusNotFound, "INVALID_CODE")
	case errors.Is(err, ErrAlreadyUsed):
		return core.ConflictError("code already used", "CODE_USED")
	case errors.Is(err, ErrCodeExpired):
		return core.ExpiredError("code expired", "CODE_EXPIRED")
	case errors.Is(err, ErrTrialAlreadyUsed):
		return core.ConflictError("trial already used on this account or device", "TRIAL_ALREADY_USED")
	default:
		return core.Classify(err, "code")
	}
}

func (h *Handler) TrialAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	contentID := q.Get("movieId")
	if contentID == "" {
		contentID = q.Get("contentId")
	}

	userID := q.Get("userId")
	if _, err := uuid.Parse(userID); err != nil {
		core.OK(w, TrialAccessResponse{})
		return
	}

	status, err := h.service.TrialAccess(r.Context(), userID, contentID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp := TrialAccessResponse{TrialStatus: status}
	if status.Active {
		resp.ExpiresAt = status.ExpiresAt.UnixMilli()
	}

	core.OK(w, resp)
}

// GenerateCodes mints a batch of codes (admin only).
func (h *Handler) GenerateCodes(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	codes, err := h.service.GenerateCodes(r.Context(), GenerateParams(req))
	if err != nil {
		core.JSONError(w, core.Classify(err, "code"))
		return
	}

	core.Created(w, map[string]any{"codes": codes, "count": len(codes)})
}

// ListCodes returns codes filtered by plan, used and revoked (admin only).
func (h *Handler) ListCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := ListFilter{Plan: q.Get("plan")}
	filter.Used = parseBool(q.Get("used"))
	filter.Revoked = parseBool(q.Get("revoked"))
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = min(limit, 1000)
	}

	codes, err := h.service.List(r.Context(), filter)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]CodeResponse, 0, len(codes))
	for _, c := range codes {
		out = append(out, toCodeResponse(c))
	}

	core.OK(w, out)
}

func parseBool(raw string) *bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}

// CodeStats summarises the code inventory (admin only).
func (h *Handler) CodeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, stats)
}

// RevokeCode disables a code and the subscription it created (admin only).
func (h *Handler) RevokeCode(w http.ResponseWriter, r *http.Request) {
	revoked, err := h.service.RevokeCode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, core.Classify(err, "code"))
		return
	}

	core.OK(w, map[string]any{"success": true, "subscriptionsRevoked": revoked})
}
