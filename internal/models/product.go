package models

import "time"

type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusOutOfStock   ProductStatus = "out_of_stock"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

type Product struct {
	ID                 int64         `json:"id"`
	Name               string        `json:"name"`
	Description        string        `json:"description"`
	ImageCover         string        `json:"image_cover,omitempty"`
	Price              float64       `json:"price"`
	PriceAfterDiscount float64       `json:"price_after_discount,omitempty"`
	Quantity           int           `json:"quantity"`
	Sold               int           `json:"sold"`
	Status             ProductStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
