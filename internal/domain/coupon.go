package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

type Coupon struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	Description    *string             `json:"description"`
	DiscountType   DiscountType        `json:"discount_type"`
	DiscountValue  decimal.Decimal     `json:"discount_value"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	StartsAt       *time.Time          `json:"starts_at"`
	EndsAt         *time.Time          `json:"ends_at"`
	UsageLimit     *int                `json:"usage_limit"`
	UsedCount      int                 `json:"used_count"`
	IsActive       bool                `json:"is_active"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NormalizeCouponCode returns the canonical form of a coupon code.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CouponSummary is the subset of a coupon echoed back with a quote.
type CouponSummary struct {
	Code          string              `json:"code"`
	DiscountType  DiscountType        `json:"discount_type"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	MaxDiscount   decimal.NullDecimal `json:"max_discount"`
}

func (c *Coupon) Summary() *CouponSummary {
	return &CouponSummary{
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		MaxDiscount:   c.MaxDiscount,
	}
}

// Quote is a priced snapshot of a cart with an optional coupon.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Coupon   *CouponSummary  `json:"coupon"`

	// Rows and AppliedCoupon carry the state the quote was computed from so
	// settlement can snapshot prices and the observed used_count.
	Rows          []CartRow `json:"-"`
	AppliedCoupon *Coupon   `json:"-"`
}

type EligibleCoupon struct {
	Code           string              `json:"code"`
	Description    *string             `json:"description"`
	DiscountType   DiscountType        `json:"discount_type"`
	DiscountValue  decimal.Decimal     `json:"discount_value"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	Discount       decimal.Decimal     `json:"discount"`
	Total          decimal.Decimal     `json:"total"`
}

type EligibleCoupons struct {
	Subtotal decimal.Decimal  `json:"subtotal"`
	Coupons  []EligibleCoupon `json:"coupons"`
}
