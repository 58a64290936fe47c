package pricing

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const maxEligibleCoupons = 10

var (
	tracer = otel.Tracer("storefront/pricing")
	meter  = otel.Meter("storefront/pricing")
)

type CartReader interface {
	LoadRows(ctx context.Context, userID string) ([]domain.CartRow, error)
}

// CouponStore looks coupons up by canonical code. FindByCode returns nil, nil
// when no live coupon has that code.
type CouponStore interface {
	FindByCode(ctx context.Context, code string) (*domain.Coupon, error)
	ListActive(ctx context.Context) ([]domain.Coupon, error)
}

// Service is the single source of truth for cart pricing. Every caller that
// shows, authorizes or persists an amount goes through Quote.
type Service struct {
	cart    CartReader
	coupons CouponStore
	now     func() time.Time
	quotes  metric.Int64Counter
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(cart CartReader, coupons CouponStore, opts ...Option) (*Service, error) {
	quotes, err := meter.Int64Counter("pricing.quotes",
		metric.WithDescription("Cart quotes computed, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cart:    cart,
		coupons: coupons,
		now:     time.Now,
		quotes:  quotes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Quote prices the user's live cart, applying code when it is not blank.
func (s *Service) Quote(ctx context.Context, userID, code string) (*domain.Quote, error) {
	ctx, span := tracer.Start(ctx, "pricing.Quote")
	defer span.End()

	code = domain.NormalizeCouponCode(code)
	quote, err := s.quote(ctx, userID, code)

	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		span.RecordError(err)
	}
	s.quotes.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("coupon", code != ""),
		attribute.String("outcome", outcome),
	))
	return quote, err
}

func (s *Service) quote(ctx context.Context, userID, code string) (*domain.Quote, error) {
	rows, err := s.cart.LoadRows(ctx, userID)
	if err != nil {
		return nil, domain.Upstream("load cart", err)
	}

	subtotal := Subtotal(rows)
	if !subtotal.IsPositive() {
		return nil, domain.Reject(ReasonCartEmpty)
	}

	quote := &domain.Quote{
		Subtotal: subtotal,
		Discount: decimal.Zero,
		Total:    subtotal,
		Rows:     rows,
	}
	if code == "" {
		return quote, nil
	}

	coupon, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		return nil, domain.Upstream("find coupon", err)
	}
	if coupon == nil {
		return nil, domain.NotFound(ReasonInvalidCode)
	}

	if verdict := ValidateCoupon(coupon, subtotal, s.now()); !verdict.OK {
		return nil, domain.Reject(verdict.Reason)
	}

	discount := Discount(coupon, subtotal)
	summary := coupon.Summary()
	summary.Code = code

	quote.Discount = discount
	quote.Total = subtotal.Sub(discount).Round(2)
	quote.Coupon = summary
	quote.AppliedCoupon = coupon
	return quote, nil
}

// EligibleCoupons lists the active coupons that currently apply to the
// user's cart, best discount first. The result is advisory only.
func (s *Service) EligibleCoupons(ctx context.Context, userID string) (*domain.EligibleCoupons, error) {
	ctx, span := tracer.Start(ctx, "pricing.EligibleCoupons")
	defer span.End()

	rows, err := s.cart.LoadRows(ctx, userID)
	if err != nil {
		return nil, domain.Upstream("load cart", err)
	}
	subtotal := Subtotal(rows)

	active, err := s.coupons.ListActive(ctx)
	if err != nil {
		return nil, domain.Upstream("list coupons", err)
	}

	now := s.now()
	eligible := make([]domain.EligibleCoupon, 0, len(active))
	for i := range active {
		c := &active[i]
		if !ValidateCoupon(c, subtotal, now).OK {
			continue
		}
		discount := Discount(c, subtotal)
		eligible = append(eligible, domain.EligibleCoupon{
			Code:           c.Code,
			Description:    c.Description,
			DiscountType:   c.DiscountType,
			DiscountValue:  c.DiscountValue,
			MaxDiscount:    c.MaxDiscount,
			MinOrderAmount: c.MinOrderAmount,
			Discount:       discount,
			Total:          subtotal.Sub(discount).Round(2),
		})
	}

	slices.SortStableFunc(eligible, func(a, b domain.EligibleCoupon) int {
		return b.Discount.Cmp(a.Discount)
	})
	if len(eligible) > maxEligibleCoupons {
		eligible = eligible[:maxEligibleCoupons]
	}

	return &domain.EligibleCoupons{Subtotal: subtotal, Coupons: eligible}, nil
}
