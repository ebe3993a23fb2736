package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/trendhub-shop/commerce-platform/internal/api/middleware"
	"github.com/trendhub-shop/commerce-platform/internal/errors"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	service "github.com/trendhub-shop/commerce-platform/internal/services"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
	"github.com/trendhub-shop/commerce-platform/internal/utils/response"
)

type CartHandler struct {
	cartService service.CartService
	validator   *validator.Validate
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService, validator: validator.New()}
}

// requireClaims pulls the authenticated principal set by the auth middleware.
func requireClaims(w http.ResponseWriter, r *http.Request) (*models.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		middleware.LoggerFromContext(r.Context()).Warn("Unauthenticated access attempt")
		response.Error(w, errors.UnauthorizedError("Authentication required"))

		return nil, false
	}

	return claims, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		response.Error(w, errors.BadRequestError("Invalid "+name))

		return 0, false
	}

	return id, true
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.GetCart(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		productID, ok := pathID(w, r, "productId")
		if !ok {
			return
		}

		// The body is optional: no body means "add one".
		req := &models.AddCartItemRequest{}
		if r.ContentLength > 0 {
			if !utils.ParseAndValidate(r, w, req, h.validator) {
				return
			}
		}

		cart, err := h.cartService.AddItem(r.Context(), claims.UserID, productID, req)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Failed to add cart item",
				slog.Int64("productId", productID),
				slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		productID, ok := pathID(w, r, "productId")
		if !ok {
			return
		}

		cart, err := h.cartService.RemoveItem(r.Context(), claims.UserID, productID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) ApplyCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		code := r.PathValue("code")
		if code == "" || len(code) > 50 {
			response.Error(w, errors.BadRequestError("Invalid coupon code"))

			return
		}

		cart, err := h.cartService.ApplyCoupon(r.Context(), claims.UserID, code)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Failed to apply coupon",
				slog.String("code", code),
				slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) RemoveCoupon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		cart, err := h.cartService.RemoveCoupon(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, cart)
	}
}

func (h *CartHandler) ClearCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		if err := h.cartService.ClearCart(r.Context(), claims.UserID); err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
	}
}
