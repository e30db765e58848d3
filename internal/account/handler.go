// AngelaMos | 2026
// handler.go

package account

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/lms-backend/internal/core"
	"github.com/carterperez-dev/templates/lms-backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/accounts", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/me", h.GetMe)
		r.Delete("/me", h.DeleteMe)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetUserID(r.Context())

	a, err := h.service.GetMe(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "Account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ToResponse(a), "Account retrieved successfully")
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetUserID(r.Context())

	if err := h.service.DeleteMe(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "Account")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, nil, "Account deleted successfully")
}
