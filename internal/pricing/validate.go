package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const (
	ReasonInactive     = "Coupon is not active"
	ReasonCartEmpty    = "Cart is empty"
	ReasonNotStarted   = "Coupon is not active yet"
	ReasonExpired      = "Coupon has expired"
	ReasonLimitReached = "Coupon usage limit reached"
	ReasonInvalidCode  = "Invalid coupon code"
)

// Verdict is the outcome of validating a coupon. Reason is empty when OK.
type Verdict struct {
	OK     bool
	Reason string
}

func reject(reason string) Verdict {
	return Verdict{Reason: reason}
}

func minimumOrderReason(min decimal.Decimal) string {
	return "Minimum order is ₹" + min.String()
}

// ValidateCoupon decides whether coupon applies to subtotal at now. The
// checks run in a fixed order and stop at the first failure so the reason
// shown to the shopper is stable. The validity window is inclusive at both
// ends.
func ValidateCoupon(coupon *domain.Coupon, subtotal decimal.Decimal, now time.Time) Verdict {
	if !coupon.IsActive {
		return reject(ReasonInactive)
	}
	if !subtotal.IsPositive() {
		return reject(ReasonCartEmpty)
	}
	if subtotal.LessThan(coupon.MinOrderAmount) {
		return reject(minimumOrderReason(coupon.MinOrderAmount))
	}
	if coupon.StartsAt != nil && now.Before(*coupon.StartsAt) {
		return reject(ReasonNotStarted)
	}
	if coupon.EndsAt != nil && now.After(*coupon.EndsAt) {
		return reject(ReasonExpired)
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return reject(ReasonLimitReached)
	}
	return Verdict{OK: true}
}
