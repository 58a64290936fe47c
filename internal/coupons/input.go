package coupons

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// UpsertRequest is the admin payload for creating or editing a coupon.
type UpsertRequest struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	Description    *string             `json:"description"`
	DiscountType   domain.DiscountType `json:"discount_type"`
	DiscountValue  decimal.Decimal     `json:"discount_value"`
	MinOrderAmount *decimal.Decimal    `json:"min_order_amount"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	StartsAt       *time.Time          `json:"starts_at"`
	EndsAt         *time.Time          `json:"ends_at"`
	UsageLimit     *int                `json:"usage_limit"`
	IsActive       *bool               `json:"is_active"`
}

// Coupon validates the request and returns the coupon it describes.
func (req UpsertRequest) Coupon() (*domain.Coupon, error) {
	code := domain.NormalizeCouponCode(req.Code)
	if code == "" {
		return nil, domain.Invalid("Code is required")
	}

	discountType := domain.DiscountPercent
	if req.DiscountType == domain.DiscountAmount {
		discountType = domain.DiscountAmount
	}

	if !req.DiscountValue.IsPositive() {
		return nil, domain.Invalid("Discount value must be > 0")
	}

	minOrder := decimal.Zero
	if req.MinOrderAmount != nil {
		minOrder = *req.MinOrderAmount
	}
	if minOrder.IsNegative() {
		return nil, domain.Invalid("Min order must be >= 0")
	}
	if req.MaxDiscount.Valid && req.MaxDiscount.Decimal.IsNegative() {
		return nil, domain.Invalid("Max discount must be >= 0")
	}
	if req.UsageLimit != nil && *req.UsageLimit < 0 {
		return nil, domain.Invalid("Usage limit must be >= 0")
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return nil, domain.Invalid("End date must not be before start date")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return &domain.Coupon{
		ID:             req.ID,
		Code:           code,
		Description:    req.Description,
		DiscountType:   discountType,
		DiscountValue:  req.DiscountValue,
		MinOrderAmount: minOrder,
		MaxDiscount:    req.MaxDiscount,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		UsageLimit:     req.UsageLimit,
		IsActive:       isActive,
	}, nil
}
