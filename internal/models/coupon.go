package models

import "time"

type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

// Coupon usage is consumed at apply time, never given back when the coupon
// is detached from a cart.
type Coupon struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	Discount       float64    `json:"discount"`
	Type           CouponType `json:"type"`
	ExpirationDate time.Time  `json:"expiration_date"`
	MaxUsage       int        `json:"max_usage"`
	CurrentUsage   int        `json:"current_usage"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (c *Coupon) Expired(now time.Time) bool {
	return now.After(c.ExpirationDate)
}

func (c *Coupon) Exhausted() bool {
	return c.CurrentUsage >= c.MaxUsage
}
