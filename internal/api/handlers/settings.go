package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/trendhub-shop/commerce-platform/internal/api/middleware"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	service "github.com/trendhub-shop/commerce-platform/internal/services"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
	"github.com/trendhub-shop/commerce-platform/internal/utils/response"
)

type SettingsHandler struct {
	settingsService service.SettingsService
	validator       *validator.Validate
}

func NewSettingsHandler(settingsService service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, validator: validator.New()}
}

func (h *SettingsHandler) GetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		settings, err := h.settingsService.Get(r.Context())
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, settings)
	}
}

// UpdateSettings is admin-only; the role guard sits in the route wiring.
func (h *SettingsHandler) UpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		var req models.UpdateSettingsRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		settings, err := h.settingsService.Update(r.Context(), &req)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Error("Failed to update settings",
				slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		middleware.LoggerFromContext(r.Context()).Info("Store settings updated")
		response.Success(w, http.StatusOK, settings)
	}
}
