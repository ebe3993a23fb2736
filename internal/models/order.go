package models

import "time"

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodCard PaymentMethod = "card"
)

// ParsePaymentMethod maps the path segment of the checkout route onto the
// closed set of payment methods.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodCash:
		return PaymentMethodCash, true
	case PaymentMethodCard:
		return PaymentMethodCard, true
	default:
		return "", false
	}
}

// OrderItem snapshots the product reference, quantity and the unit price in
// effect at checkout time, so later catalog price changes cannot drift a sale.
type OrderItem struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"order_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Order struct {
	ID                int64         `json:"id"`
	OrderNumber       string        `json:"order_number"`
	UserID            int64         `json:"user_id"`
	TaxPrice          float64       `json:"tax_price"`
	ShippingPrice     float64       `json:"shipping_price"`
	TotalOrderPrice   float64       `json:"total_order_price"`
	PaymentMethodType PaymentMethod `json:"payment_method_type"`
	IsPaid            bool          `json:"is_paid"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
	IsDelivered       bool          `json:"is_delivered"`
	DeliveredAt       *time.Time    `json:"delivered_at,omitempty"`
	ShippingAddress   string        `json:"shipping_address"`
	StripeCheckoutID  string        `json:"stripe_checkout_id,omitempty"`
	Status            OrderStatus   `json:"status"`
	Items             []OrderItem   `json:"items"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type CreateOrderRequest struct {
	ShippingAddress string `json:"shipping_address,omitempty" validate:"omitempty,max=500"`
}

type UpdateCashOrderRequest struct {
	Status string `json:"status" validate:"required,oneof=paid cancelled"`
}

// CheckoutResponse is returned for card checkouts: the caller redirects the
// customer to SessionURL to complete payment.
type CheckoutResponse struct {
	SessionURL string `json:"session_url"`
	Order      *Order `json:"order"`
}
