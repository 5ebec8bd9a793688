// AngelaMos | 2026
// handler.go

package merge

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

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

type Request struct {
	FromUserID string `json:"fromUserId" validate:"required,uuid"`
	ToUserID   string `json:"toUserId"   validate:"required,uuid"`
}

// RegisterAdminRoutes exposes a manual merge for support staff.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/merge", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Post("/", h.Merge)
	})
}

// Merge moves all data owned by fromUserId onto toUserId.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	report, err := h.service.MergeIdentity(r.Context(), req.FromUserID, req.ToUserID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, report)
}
