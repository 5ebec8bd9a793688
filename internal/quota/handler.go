// AngelaMos | 2026
// handler.go

package quota

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type ConsumeRequest struct {
	UserID    string `json:"userId"              validate:"required,max=128"`
	MovieID   string `json:"movieId"             validate:"required,max=256"`
	SessionID string `json:"sessionId,omitempty" validate:"omitempty,max=128"`
}

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
	r.Get("/quota", h.Check)
	r.Post("/quota", h.Consume)
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("userId"))
	if userID == "" {
		core.BadRequest(w, "userId is required")
		return
	}

	d, err := h.service.Check(r.Context(), userID, q.Get("sessionId"))
	if err != nil {
		core.JSONError(w, core.Classify(err, "quota"))
		return
	}

	core.OK(w, d)
}

func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	var req ConsumeRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.JSONError(w, err)
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	d, err := h.service.Consume(r.Context(), req.UserID, req.SessionID, req.MovieID)
	if err != nil {
		core.JSONError(w, core.Classify(err, "quota"))
		return
	}

	core.OK(w, d)
}
