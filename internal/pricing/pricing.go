// Package pricing holds the pure money computations for carts and orders.
// Nothing here touches the database or the clock.
package pricing

import "github.com/trendhub-shop/commerce-platform/internal/models"

// UnitPrice returns the discounted product price when one is set, otherwise
// the list price.
func UnitPrice(p *models.Product) float64 {
	if p.PriceAfterDiscount > 0 {
		return p.PriceAfterDiscount
	}

	return p.Price
}

// ApplyCoupon computes the cart total after the coupon discount. The result
// is intentionally not floored at zero: a fixed discount larger than the
// subtotal yields a negative total.
func ApplyCoupon(subtotal float64, coupon *models.Coupon) float64 {
	switch coupon.Type {
	case models.CouponTypeFixed:
		return subtotal - coupon.Discount
	case models.CouponTypePercentage:
		return subtotal - subtotal*coupon.Discount/100
	default:
		return subtotal
	}
}

// CartTotals recomputes the cart subtotal from its line items and, when a
// coupon is attached, the discounted total. With no coupon the discounted
// total is zero, not the subtotal.
func CartTotals(items []models.CartItem, coupon *models.Coupon) (subtotal, discounted float64) {
	for _, item := range items {
		if item.Product == nil {
			continue
		}

		subtotal += UnitPrice(item.Product) * float64(item.Quantity)
	}

	if coupon != nil {
		discounted = ApplyCoupon(subtotal, coupon)
	}

	return subtotal, discounted
}

// OrderTotals derives tax, shipping and the grand total for a checkout. Both
// tax and shipping are percentages of the cart value per store settings,
// despite the "price" naming carried by the order columns.
func OrderTotals(cartTotal float64, settings *models.Settings) (taxPrice, shippingPrice, totalOrderPrice float64) {
	if settings.TaxEnabled {
		taxPrice = cartTotal * settings.TaxRate / 100
	}

	if settings.ShippingEnabled {
		shippingPrice = cartTotal * settings.ShippingRate / 100
	}

	return taxPrice, shippingPrice, cartTotal + taxPrice + shippingPrice
}

// CheckoutTotal picks the amount a checkout starts from: the discounted
// total when a coupon produced one, otherwise the raw subtotal.
func CheckoutTotal(cart *models.Cart) float64 {
	if cart.TotalPriceAfterDiscount > 0 {
		return cart.TotalPriceAfterDiscount
	}

	return cart.TotalPrice
}
