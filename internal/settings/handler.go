// AngelaMos | 2026
// handler.go

package settings

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
	"github.com/carterperez-dev/entitlement-engine/internal/middleware"
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

type Response struct {
	Version            int64  `json:"version"`
	PriceMatch         string `json:"priceMatch"`
	PriceWeekly        string `json:"priceWeekly"`
	PriceMonthly       string `json:"priceMonthly"`
	PriceYearly        string `json:"priceYearly"`
	FreePreviewsPerDay int    `json:"freePreviewsPerDay"`
	UpdatedBy          string `json:"updatedBy,omitempty"`
}

func toResponse(s Snapshot) Response {
	return Response{
		Version:            s.Version,
		PriceMatch:         s.PriceMatch.StringFixed(2),
		PriceWeekly:        s.PriceWeekly.StringFixed(2),
		PriceMonthly:       s.PriceMonthly.StringFixed(2),
		PriceYearly:        s.PriceYearly.StringFixed(2),
		FreePreviewsPerDay: s.FreePreviewsPerDay,
		UpdatedBy:          s.UpdatedBy,
	}
}

// RegisterAdminRoutes exposes the versioned settings record to admins.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/settings", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/", h.Get)
		r.Put("/", h.Update)
	})
}

// Get returns the settings version currently in effect.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Current(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, toResponse(snap))
}

// Update appends a new settings version. Requests already in flight keep
// the version they started with.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	snap, err := h.service.Update(r.Context(), req, middleware.GetUserID(r.Context()))
	if err != nil {
		core.JSONError(w, core.Classify(err, "settings"))
		return
	}

	core.OK(w, toResponse(snap))
}
