package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the amount coupon takes off subtotal. The result is
// capped by max_discount when set and never exceeds the subtotal itself.
func Discount(coupon *domain.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	sub := decimal.Max(subtotal, decimal.Zero)

	var discount decimal.Decimal
	if coupon.DiscountType == domain.DiscountPercent {
		discount = sub.Mul(coupon.DiscountValue).Div(hundred)
	} else {
		discount = coupon.DiscountValue
	}

	if coupon.MaxDiscount.Valid {
		discount = decimal.Min(discount, coupon.MaxDiscount.Decimal)
	}

	discount = decimal.Min(discount, sub)
	discount = decimal.Max(discount, decimal.Zero)
	return discount.Round(2)
}
