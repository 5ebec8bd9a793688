// AngelaMos | 2026
// handler.go

package identity

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

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/devices", h.ResolveDevice)
}

func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin/users", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/{id}", h.GetUser)
		r.Put("/{id}/role", h.UpdateRole)
	})
}

func (h *Handler) ResolveDevice(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.ResolveUser(r.Context(), req.DeviceID, r.UserAgent())
	if err != nil {
		core.JSONError(w, core.Classify(err, "device"))
		return
	}

	core.OK(w, DeviceResponse{
		DeviceID: req.DeviceID,
		UserID:   user.ID,
		Guest:    user.IsGuest(),
	})
}

// GetUser returns a user by id (admin only).
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.User(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.JSONError(w, core.Classify(err, "user"))
		return
	}

	core.OK(w, ToUserResponse(user))
}

// UpdateRole changes a user's role (admin only).
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	user, err := h.service.UpdateRole(r.Context(), chi.URLParam(r, "id"), req.Role)
	if err != nil {
		core.JSONError(w, core.Classify(err, "user"))
		return
	}

	core.OK(w, ToUserResponse(user))
}
