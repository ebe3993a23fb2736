package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/trendhub-shop/commerce-platform/internal/api/middleware"
	"github.com/trendhub-shop/commerce-platform/internal/errors"
	"github.com/trendhub-shop/commerce-platform/internal/metrics"
	"github.com/trendhub-shop/commerce-platform/internal/models"
	service "github.com/trendhub-shop/commerce-platform/internal/services"
	"github.com/trendhub-shop/commerce-platform/internal/utils"
	"github.com/trendhub-shop/commerce-platform/internal/utils/response"
)

// webhook payloads are tiny; anything bigger is not from the provider.
const maxWebhookBodyBytes = 1 << 16

type OrderHandler struct {
	orderService service.OrderService
	validator    *validator.Validate
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService, validator: validator.New()}
}

// Checkout converts the cart into an order; the payment method comes from the
// route path.
func (h *OrderHandler) Checkout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		method, ok := models.ParsePaymentMethod(r.PathValue("paymentMethod"))
		if !ok {
			response.Error(w, errors.BadRequestError("Unsupported payment method"))

			return
		}

		// The body is optional: without it the profile address is used.
		req := &models.CreateOrderRequest{}
		if r.ContentLength > 0 {
			if !utils.ParseAndValidate(r, w, req, h.validator) {
				return
			}
		}

		resp, err := h.orderService.Checkout(r.Context(), claims.UserID, method, req)
		if err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Checkout failed",
				slog.String("method", string(method)),
				slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		metrics.OrdersCreated.WithLabelValues(string(method)).Inc()

		middleware.LoggerFromContext(r.Context()).Info("Order created",
			slog.String("orderNumber", resp.Order.OrderNumber),
			slog.String("method", string(method)))
		response.Success(w, http.StatusCreated, resp)
	}
}

func (h *OrderHandler) UpdateCashStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		if _, ok := requireClaims(w, r); !ok {
			return
		}

		orderID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		var req models.UpdateCashOrderRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		order, err := h.orderService.UpdateCashOrderStatus(r.Context(), orderID, &req)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, order)
	}
}

// Webhook receives provider notifications. The raw body must be kept intact
// for signature verification, so this route never goes through the JSON
// decoding helpers.
func (h *OrderHandler) Webhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
		if err != nil {
			response.Error(w, errors.BadRequestError("Failed to read webhook payload"))

			return
		}

		signature := r.Header.Get("Stripe-Signature")

		if err := h.orderService.HandleWebhook(r.Context(), payload, signature); err != nil {
			middleware.LoggerFromContext(r.Context()).Warn("Webhook rejected",
				slog.String("error", err.Error()))
			metrics.WebhookEvents.WithLabelValues("rejected").Inc()
			response.Error(w, err)

			return
		}

		metrics.WebhookEvents.WithLabelValues("processed").Inc()
		response.Success(w, http.StatusOK, map[string]string{"received": "true"})
	}
}

func (h *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		orderID, ok := pathID(w, r, "id")
		if !ok {
			return
		}

		order, err := h.orderService.GetOrder(r.Context(), claims.UserID, orderID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, order)
	}
}

func (h *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		orders, err := h.orderService.ListOrders(r.Context(), claims.UserID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, orders)
	}
}
