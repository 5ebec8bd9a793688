// AngelaMos | 2026
// handler.go

package entitlement

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/entitlement-engine/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/entitlement", h.Get)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	deviceID := strings.TrimSpace(q.Get("deviceId"))
	if deviceID == "" {
		core.BadRequest(w, "deviceId is required")
		return
	}

	d, err := h.service.Decide(r.Context(), deviceID, q.Get("contentId"), r.UserAgent())
	if err != nil {
		core.JSONError(w, core.Classify(err, "entitlement"))
		return
	}

	core.OK(w, d)
}
