package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderSettledEvent struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email,omitempty"`
	Items       []OrderLine     `json:"items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
	CouponCode  *string         `json:"coupon_code,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// EventOrderSettled identifies the OrderSettledEvent payload schema.
const EventOrderSettled = "order.settled.v1"
