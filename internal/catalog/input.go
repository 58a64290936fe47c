package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const defaultCategory = "Uncategorized"

type CreateRequest struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Category      string           `json:"category"`
	ImageURL      string           `json:"image_url"`
	IsActive      *bool            `json:"is_active"`
}

func (req CreateRequest) Product() (*domain.Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.Invalid("Name is required")
	}
	if req.Price == nil || req.Price.IsNegative() {
		return nil, domain.Invalid("Price must be a number")
	}
	stock := 0
	if req.StockQuantity != nil {
		stock = *req.StockQuantity
	}
	if stock < 0 {
		return nil, domain.Invalid("Stock must be a number")
	}

	category := strings.TrimSpace(req.Category)
	if category == "" {
		category = defaultCategory
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	p := &domain.Product{
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		Price:         *req.Price,
		StockQuantity: stock,
		Category:      category,
		IsActive:      isActive,
	}
	if url := strings.TrimSpace(req.ImageURL); url != "" {
		p.ImageURL = &url
	}
	return p, nil
}

// ProductPatch holds the fields an update touches. Nil means unchanged; an
// empty ImageURL clears it.
type ProductPatch struct {
	ID            string           `json:"id"`
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int             `json:"stock_quantity"`
	Category      *string          `json:"category"`
	ImageURL      *string          `json:"image_url"`
	IsActive      *bool            `json:"is_active"`
}

func (p ProductPatch) Validate() error {
	if p.ID == "" {
		return domain.Invalid("Product id is required")
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return domain.Invalid("Name is required")
	}
	if p.Price != nil && p.Price.IsNegative() {
		return domain.Invalid("Price must be a number")
	}
	if p.StockQuantity != nil && *p.StockQuantity < 0 {
		return domain.Invalid("Stock must be a number")
	}
	if p.Name == nil && p.Description == nil && p.Price == nil && p.StockQuantity == nil &&
		p.Category == nil && p.ImageURL == nil && p.IsActive == nil {
		return domain.Invalid("No fields to update")
	}
	return nil
}

func (p ProductPatch) apply(dst *domain.Product) {
	if p.Name != nil {
		dst.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		dst.Description = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.StockQuantity != nil {
		dst.StockQuantity = *p.StockQuantity
	}
	if p.Category != nil {
		dst.Category = strings.TrimSpace(*p.Category)
		if dst.Category == "" {
			dst.Category = defaultCategory
		}
	}
	if p.ImageURL != nil {
		if url := strings.TrimSpace(*p.ImageURL); url != "" {
			dst.ImageURL = &url
		} else {
			dst.ImageURL = nil
		}
	}
	if p.IsActive != nil {
		dst.IsActive = *p.IsActive
	}
}

type CommitMediaRequest struct {
	ProductID   string           `json:"product_id"`
	MediaType   domain.MediaType `json:"media_type"`
	StoragePath string           `json:"storage_path"`
	PublicURL   string           `json:"public_url"`
	SortOrder   int              `json:"sort_order"`
}

func (req CommitMediaRequest) Media() (*domain.ProductMedia, error) {
	if req.ProductID == "" {
		return nil, domain.Invalid("product_id is required")
	}
	if req.StoragePath == "" {
		return nil, domain.Invalid("storage_path is required")
	}
	if req.PublicURL == "" {
		return nil, domain.Invalid("public_url is required")
	}

	mediaType := domain.MediaTypeImage
	if req.MediaType == domain.MediaTypeVideo {
		mediaType = domain.MediaTypeVideo
	}

	return &domain.ProductMedia{
		ProductID:   req.ProductID,
		MediaType:   mediaType,
		StoragePath: req.StoragePath,
		PublicURL:   req.PublicURL,
		SortOrder:   req.SortOrder,
	}, nil
}
