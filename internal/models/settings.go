package models

import "time"

// Settings is the store-wide singleton row. Tax and shipping rates are
// percentages of the cart value, not flat fees.
type Settings struct {
	ID              int64     `json:"id"`
	StoreName       string    `json:"store_name"`
	StoreEmail      string    `json:"store_email"`
	StorePhone      string    `json:"store_phone"`
	StoreAddress    string    `json:"store_address"`
	StoreLogo       string    `json:"store_logo"`
	TaxRate         float64   `json:"tax_rate"`
	TaxEnabled      bool      `json:"tax_enabled"`
	ShippingRate    float64   `json:"shipping_rate"`
	ShippingEnabled bool      `json:"shipping_enabled"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type UpdateSettingsRequest struct {
	StoreName       *string  `json:"store_name,omitempty" validate:"omitempty,max=255"`
	StoreEmail      *string  `json:"store_email,omitempty" validate:"omitempty,email"`
	StorePhone      *string  `json:"store_phone,omitempty" validate:"omitempty,max=20"`
	StoreAddress    *string  `json:"store_address,omitempty" validate:"omitempty,max=255"`
	StoreLogo       *string  `json:"store_logo,omitempty" validate:"omitempty,url"`
	TaxRate         *float64 `json:"tax_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	TaxEnabled      *bool    `json:"tax_enabled,omitempty"`
	ShippingRate    *float64 `json:"shipping_rate,omitempty" validate:"omitempty,gte=0,lte=100"`
	ShippingEnabled *bool    `json:"shipping_enabled,omitempty"`
}
