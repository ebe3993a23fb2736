package models

import "time"

type CartItem struct {
	ID        int64     `json:"id"`
	CartID    int64     `json:"cart_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Cart is per-user (unique user_id). TotalPriceAfterDiscount is zero when no
// coupon is attached; it is NOT clamped at zero when a fixed discount exceeds
// the subtotal.
type Cart struct {
	ID                      int64      `json:"id"`
	UserID                  int64      `json:"user_id"`
	TotalPrice              float64    `json:"total_price"`
	TotalPriceAfterDiscount float64    `json:"total_price_after_discount"`
	CouponID                *int64     `json:"coupon_id,omitempty"`
	Coupon                  *Coupon    `json:"coupon,omitempty"`
	Items                   []CartItem `json:"items"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

type AddCartItemRequest struct {
	// nil quantity means "increment by one" when the product is already in
	// the cart, and "one" when it is not.
	Quantity *int `json:"quantity,omitempty" validate:"omitempty,min=1"`
}
