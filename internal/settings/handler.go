package settings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bissquit/finance-admin/internal/domain"
	"github.com/bissquit/finance-admin/internal/pkg/ctxlog"
	"github.com/bissquit/finance-admin/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler serves the settings page.
type Handler struct {
	service *Service
}

// NewHandler creates a new settings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the settings routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/settings", h.Get)
	r.Put("/settings", h.Update)
}

// Get handles GET /settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.Get(r.Context())
	if err != nil {
		httputil.HandleError(w, r, err, nil)
		return
	}
	httputil.Success(w, http.StatusOK, s)
}

// Update handles PUT /settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	saved, err := h.service.Update(r.Context(), in)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			httputil.ValidationError(w, err)
			return
		}
		httputil.HandleError(w, r, err, nil)
		return
	}

	ctxlog.FromContext(r.Context()).Info("settings updated",
		"site_name", saved.SiteName,
		"maintenance_mode", saved.MaintenanceMode,
	)
	httputil.Success(w, http.StatusOK, saved)
}
