package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	ImageURL      *string         `json:"image_url"`
	StockQuantity int             `json:"stock_quantity"`
	Category      string          `json:"category"`
	IsActive      bool            `json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// ProductMedia is the record kept once the object store confirms an upload.
// The file itself never passes through this system.
type ProductMedia struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	MediaType   MediaType `json:"media_type"`
	StoragePath string    `json:"storage_path"`
	PublicURL   string    `json:"public_url"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
}
