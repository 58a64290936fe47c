package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type OrderLine struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	SubtotalAmount  decimal.Decimal `json:"subtotal_amount"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	CouponCode      *string         `json:"coupon_code"`
	CouponID        *string         `json:"coupon_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	PaymentID       *string         `json:"payment_id"`
	GatewayOrderID  *string         `json:"gateway_order_id"`
	PaymentStatus   *string         `json:"payment_status"`
	ShippingAddress json.RawMessage `json:"shipping_address"`
	Lines           []OrderLine     `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// PaymentUpdate carries the only order fields the asynchronous payment
// channel may change.
type PaymentUpdate struct {
	PaymentID      string
	GatewayOrderID string
	Status         string
	Currency       string
	AmountMinor    *int64
	EventID        string
	EventType      string
	EventAt        time.Time
}

type DashboardSummary struct {
	Products struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	} `json:"products"`
	Orders struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Confirmed int `json:"confirmed"`
		Shipped   int `json:"shipped"`
		Delivered int `json:"delivered"`
	} `json:"orders"`
}
