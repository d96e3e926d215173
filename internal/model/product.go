package model

import "time"

var ProductSizes = []string{"sm", "md", "lg", "xl", "xxl", "xxxl", "4xl"}

type ProductSize struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	Size          string `json:"size"`
	StockQuantity int    `json:"stock_quantity"`
}

type Product struct {
	ID                 int64         `json:"id"`
	Name               string        `json:"product_name"`
	Description        string        `json:"product_description"`
	OriginalPrice      float64       `json:"original_price"`
	DiscountPercentage *float64      `json:"discount_percentage"`
	DiscountedPrice    *float64      `json:"discounted_price"`
	Images             []string      `json:"images"`
	Badge              string        `json:"badge"`
	Quantity           int           `json:"quantity"`
	IsAvailable        bool          `json:"is_available"`
	Sizes              []ProductSize `json:"sizes"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}
