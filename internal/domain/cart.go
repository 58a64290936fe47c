package domain

import "github.com/shopspring/decimal"

// CartProduct is the live product data joined onto a cart line at read time.
type CartProduct struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
}

// CartRow is one cart line as seen by pricing. Product is nil when the
// referenced product no longer exists.
type CartRow struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Product   *CartProduct `json:"product"`
}

// CartItem is the shopper-facing view of a cart line.
type CartItem struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Product   Product `json:"product"`
}
