package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/payment"
)

const (
	ReasonNonPositiveTotal   = "Order total must be greater than zero"
	ReasonProductUnavailable = "A product in your cart is no longer available"
	ReasonInvalidItem        = "Your cart contains an invalid item"
	ReasonPaymentUnverified  = "Payment could not be verified"
	ReasonPaymentMismatch    = "Payment amount does not match the order total"
	ReasonPaymentReused      = "This payment has already been used for an order"
)

const defaultCurrency = "INR"

var (
	tracer = otel.Tracer("storefront/checkout")
	meter  = otel.Meter("storefront/checkout")
)

// Settlement progresses Quoted → Authorized → Settled, or ends in Failed.
const (
	stateQuoted     = "quoted"
	stateAuthorized = "authorized"
	stateSettled    = "settled"
	stateFailed     = "failed"
)

type Quoter interface {
	Quote(ctx context.Context, userID, code string) (*domain.Quote, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	InsertLines(ctx context.Context, lines []domain.OrderLine) error
}

type CartStore interface {
	Clear(ctx context.Context, userID string) error
}

// CouponUsage increments used_count only while it still equals observed and
// stays within usage_limit. A lost race returns domain.ErrConflict.
type CouponUsage interface {
	IncrementUsage(ctx context.Context, couponID string, observed int) error
}

// PaymentVerifier checks the confirmation signed by the gateway and reports
// what the referenced gateway order was opened for.
type PaymentVerifier interface {
	VerifyCheckout(gatewayOrderID, paymentID, signature string) bool
	AuthorizedAmount(ctx context.Context, gatewayOrderID string) (amountMinor int64, currency string, err error)
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type PaymentConfirmation struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Signature      string `json:"signature"`
}

type SettleRequest struct {
	UserID          string
	Email           string
	ShippingAddress json.RawMessage
	Payment         PaymentConfirmation
	CouponCode      string
}

// IncompleteError reports follow-up steps that failed after the order row
// was written. The order stands; the payment has already been taken.
type IncompleteError struct {
	OrderID string
	Err     error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("order %s settled with follow-up failures: %v", e.OrderID, e.Err)
}

func (e *IncompleteError) Unwrap() error { return e.Err }

type Service struct {
	quoter    Quoter
	orders    OrderStore
	cart      CartStore
	coupons   CouponUsage
	verifier  PaymentVerifier
	publisher Publisher
	currency  string
	logger    *slog.Logger
	now       func() time.Time

	settlements metric.Int64Counter
	conflicts   metric.Int64Counter
}

type Deps struct {
	Quoter  Quoter
	Orders  OrderStore
	Cart    CartStore
	Coupons CouponUsage
	// Verifier and Publisher are optional.
	Verifier  PaymentVerifier
	Publisher Publisher
	// Currency the gateway orders are opened in. Defaults to INR.
	Currency string
	Logger   *slog.Logger
	Clock    func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	if deps.Quoter == nil || deps.Orders == nil || deps.Cart == nil || deps.Coupons == nil {
		return nil, errors.New("checkout: quoter, orders, cart and coupons are required")
	}

	settlements, err := meter.Int64Counter("checkout.settlements",
		metric.WithDescription("Settlement attempts, by outcome"),
	)
	if err != nil {
		return nil, err
	}
	conflicts, err := meter.Int64Counter("coupon.usage.conflicts",
		metric.WithDescription("Coupon used_count increments lost to a concurrent checkout"),
	)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	return &Service{
		quoter:      deps.Quoter,
		orders:      deps.Orders,
		cart:        deps.Cart,
		coupons:     deps.Coupons,
		verifier:    deps.Verifier,
		publisher:   deps.Publisher,
		currency:    currency,
		logger:      logger,
		now:         now,
		settlements: settlements,
		conflicts:   conflicts,
	}, nil
}

// Settle turns the user's live cart into a durable order. Pricing is
// recomputed from current state; nothing from an earlier quote is trusted.
// Errors before the order row is written leave no trace. After that point the
// order is returned even when follow-up steps fail, together with an
// *IncompleteError.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "checkout.Settle", trace.WithAttributes(
		attribute.Bool("checkout.coupon", domain.NormalizeCouponCode(req.CouponCode) != ""),
	))
	defer span.End()

	order, err := s.settle(ctx, span, req)

	var incomplete *IncompleteError
	outcome := stateSettled
	switch {
	case errors.As(err, &incomplete):
		outcome = "incomplete"
		span.RecordError(err)
	case err != nil:
		outcome = stateFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("checkout.state", outcome))
	s.settlements.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	return order, err
}

func (s *Service) settle(ctx context.Context, span trace.Span, req SettleRequest) (*domain.Order, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	quote, err := s.quoter.Quote(ctx, req.UserID, req.CouponCode)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("checkout.state", stateQuoted))

	if !quote.Total.IsPositive() {
		return nil, domain.Reject(ReasonNonPositiveTotal)
	}

	lines, err := buildLines(quote.Rows)
	if err != nil {
		return nil, err
	}

	if s.verifier != nil {
		if err := s.verifyPayment(ctx, req, quote.Total); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.String("checkout.state", stateAuthorized))

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		OrderNumber:     NewOrderNumber(now),
		SubtotalAmount:  quote.Subtotal,
		DiscountAmount:  quote.Discount,
		TotalAmount:     quote.Total,
		Status:          domain.OrderStatusConfirmed,
		PaymentID:       optional(req.Payment.PaymentID),
		GatewayOrderID:  optional(req.Payment.GatewayOrderID),
		ShippingAddress: req.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if c := quote.AppliedCoupon; c != nil {
		order.CouponCode = optional(c.Code)
		order.CouponID = optional(c.ID)
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, domain.ErrPaymentReused) {
			s.logger.Warn("payment already attached to an order", "user_id", req.UserID,
				"payment_id", req.Payment.PaymentID, "gateway_order_id", req.Payment.GatewayOrderID)
			return nil, domain.Reject(ReasonPaymentReused)
		}
		s.logger.Error("failed to create order after payment", "error", err,
			"user_id", req.UserID, "payment_id", req.Payment.PaymentID)
		return nil, domain.Upstream("create order", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.String("order.number", order.OrderNumber))

	for i := range lines {
		lines[i].ID = uuid.New().String()
		lines[i].OrderID = order.ID
	}

	var problems []error

	linesRecorded := true
	if err := s.orders.InsertLines(ctx, lines); err != nil {
		linesRecorded = false
		s.logger.Error("failed to record order items", "error", err, "order_id", order.ID)
		problems = append(problems, fmt.Errorf("record order items: %w", err))
	} else {
		order.Lines = lines
	}

	// The cart is only consumed once the order and its items are durable.
	if linesRecorded {
		if err := s.cart.Clear(ctx, req.UserID); err != nil {
			s.logger.Error("failed to clear cart", "error", err, "order_id", order.ID, "user_id", req.UserID)
			problems = append(problems, fmt.Errorf("clear cart: %w", err))
		}
	}

	if c := quote.AppliedCoupon; c != nil {
		if err := s.coupons.IncrementUsage(ctx, c.ID, c.UsedCount); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				s.conflicts.Add(ctx, 1)
				s.logger.Warn("coupon usage increment lost to concurrent checkout",
					"coupon_code", c.Code, "observed_used_count", c.UsedCount, "order_id", order.ID)
			} else {
				s.logger.Error("failed to record coupon usage", "error", err, "coupon_code", c.Code, "order_id", order.ID)
				problems = append(problems, fmt.Errorf("record coupon usage: %w", err))
			}
		}
	}

	if linesRecorded {
		s.publishSettled(ctx, order, req.Email)
	}

	if len(problems) > 0 {
		return order, &IncompleteError{OrderID: order.ID, Err: errors.Join(problems...)}
	}

	s.logger.Info("order settled", "order_id", order.ID, "order_number", order.OrderNumber,
		"user_id", order.UserID, "total", order.TotalAmount.StringFixed(2))
	return order, nil
}

// verifyPayment requires a valid gateway signature and a gateway order opened
// for exactly the recomputed total.
func (s *Service) verifyPayment(ctx context.Context, req SettleRequest, total decimal.Decimal) error {
	p := req.Payment
	if !s.verifier.VerifyCheckout(p.GatewayOrderID, p.PaymentID, p.Signature) {
		s.logger.Warn("payment signature mismatch", "user_id", req.UserID, "payment_id", p.PaymentID)
		return domain.Reject(ReasonPaymentUnverified)
	}

	amount, currency, err := s.verifier.AuthorizedAmount(ctx, p.GatewayOrderID)
	if err != nil {
		s.logger.Error("failed to fetch gateway order", "error", err, "gateway_order_id", p.GatewayOrderID)
		return domain.Upstream("fetch gateway order", err)
	}

	want := payment.MinorUnits(total)
	if amount != want || !strings.EqualFold(currency, s.currency) {
		s.logger.Warn("payment amount mismatch", "user_id", req.UserID, "gateway_order_id", p.GatewayOrderID,
			"authorized_minor", amount, "authorized_currency", currency, "expected_minor", want, "expected_currency", s.currency)
		return domain.Reject(ReasonPaymentMismatch)
	}
	return nil
}

func (s *Service) publishSettled(ctx context.Context, order *domain.Order, email string) {
	if s.publisher == nil {
		return
	}
	event := domain.OrderSettledEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Email:       email,
		Items:       order.Lines,
		Subtotal:    order.SubtotalAmount,
		Discount:    order.DiscountAmount,
		Total:       order.TotalAmount,
		CouponCode:  order.CouponCode,
		Timestamp:   order.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, order.ID, event); err != nil {
		s.logger.Error("failed to publish order settled event", "error", err, "order_id", order.ID)
	}
}

func validateRequest(req SettleRequest) error {
	if req.UserID == "" {
		return domain.Invalid("user is required")
	}
	if req.Payment.PaymentID == "" {
		return domain.Invalid("payment_id is required")
	}
	addr := bytes.TrimSpace(req.ShippingAddress)
	if len(addr) == 0 || addr[0] != '{' || !json.Valid(addr) {
		return domain.Invalid("shipping_address must be an object")
	}
	return nil
}

// buildLines snapshots each cart row into an order line. Any row that cannot
// become a valid line rejects the whole settlement.
func buildLines(rows []domain.CartRow) ([]domain.OrderLine, error) {
	if len(rows) == 0 {
		return nil, domain.Reject("Cart is empty")
	}

	lines := make([]domain.OrderLine, 0, len(rows))
	for _, row := range rows {
		if row.Product == nil {
			return nil, domain.Reject(ReasonProductUnavailable)
		}
		if row.Quantity <= 0 || !row.Product.Price.IsPositive() {
			return nil, domain.Reject(ReasonInvalidItem)
		}
		lines = append(lines, domain.OrderLine{
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			UnitPrice: row.Product.Price,
			Subtotal:  row.Product.Price.Mul(decimal.NewFromInt(int64(row.Quantity))).Round(2),
		})
	}
	return lines, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
