package payment

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
)

const (
	SignatureHeader = "X-Razorpay-Signature"
	EventIDHeader   = "X-Razorpay-Event-Id"

	maxWebhookBody = 1 << 20
)

var meter = otel.Meter("storefront/payment")

type Quoter interface {
	Quote(ctx context.Context, userID, code string) (*domain.Quote, error)
}

type IntentCreator interface {
	CreateIntent(ctx context.Context, intent Intent) (*GatewayOrder, error)
}

type PaymentRecorder interface {
	ApplyPaymentUpdate(ctx context.Context, update domain.PaymentUpdate) (int64, error)
}

type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Config struct {
	KeyID         string
	Currency      string
	WebhookSecret string
}

type Handler struct {
	quoter  Quoter
	gateway IntentCreator
	orders  PaymentRecorder
	dedupe  Deduper
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
	events  metric.Int64Counter
}

// NewHandler wires the payment routes. dedupe may be nil, in which case
// every delivery is applied.
func NewHandler(quoter Quoter, gateway IntentCreator, orders PaymentRecorder, dedupe Deduper, cfg Config, logger *slog.Logger) (*Handler, error) {
	events, err := meter.Int64Counter("payment.webhook.events",
		metric.WithDescription("Payment webhook deliveries, by outcome"),
	)
	if err != nil {
		return nil, err
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}

	return &Handler{
		quoter:  quoter,
		gateway: gateway,
		orders:  orders,
		dedupe:  dedupe,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		events:  events,
	}, nil
}

type createOrderRequest struct {
	CouponCode string `json:"coupon_code"`
	Receipt    string `json:"receipt"`
}

type createOrderResponse struct {
	KeyID        string        `json:"key_id"`
	GatewayOrder *GatewayOrder `json:"gateway_order"`
	Quote        *domain.Quote `json:"quote"`
}

// MinorUnits converts a two-decimal amount to the gateway's integer unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// HandleCreateOrder opens a gateway order for the caller's live cart. Any
// amount sent by the client is ignored.
func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createOrderRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	quote, err := h.quoter.Quote(r.Context(), id.UserID, req.CouponCode)
	if err != nil {
		h.writeDomainError(w, err, "failed to price cart for payment", "user_id", id.UserID)
		return
	}
	if !quote.Total.IsPositive() {
		h.writeError(w, http.StatusBadRequest, "Order total must be greater than zero")
		return
	}

	notes := map[string]string{
		"subtotal": quote.Subtotal.StringFixed(2),
		"discount": quote.Discount.StringFixed(2),
	}
	if quote.Coupon != nil {
		notes["coupon_code"] = quote.Coupon.Code
	}

	order, err := h.gateway.CreateIntent(r.Context(), Intent{
		AmountMinor: MinorUnits(quote.Total),
		Currency:    h.cfg.Currency,
		Receipt:     req.Receipt,
		Notes:       notes,
	})
	if err != nil {
		h.writeDomainError(w, domain.Upstream("create payment intent", err), "failed to create payment intent", "user_id", id.UserID)
		return
	}

	h.logger.Info("payment intent created", "user_id", id.UserID, "gateway_order_id", order.ID, "amount_minor", order.Amount)
	h.writeJSON(w, http.StatusOK, createOrderResponse{KeyID: h.cfg.KeyID, GatewayOrder: order, Quote: quote})
}

type webhookEvent struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	CreatedAt *int64 `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity struct {
				ID       string `json:"id"`
				OrderID  string `json:"order_id"`
				Status   string `json:"status"`
				Currency string `json:"currency"`
				Amount   *int64 `json:"amount"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook applies a signed gateway notification to matching orders.
// It only ever changes payment fields and, on capture, the order status.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cfg.WebhookSecret == "" {
		h.logger.Error("webhook secret is not configured")
		h.record(ctx, "misconfigured")
		h.writeError(w, http.StatusInternalServerError, "webhook secret is not configured")
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		h.logger.Warn("webhook missing signature header")
		h.record(ctx, "unsigned")
		h.writeError(w, http.StatusBadRequest, "missing signature header")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if !VerifySignature(h.cfg.WebhookSecret, raw, signature) {
		h.logger.Warn("webhook signature mismatch")
		h.record(ctx, "bad_signature")
		h.writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		h.logger.Warn("webhook body is not valid JSON")
		h.record(ctx, "bad_json")
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eventID := event.ID
	if eventID == "" {
		eventID = r.Header.Get(EventIDHeader)
	}
	entity := event.Payload.Payment.Entity

	log := h.logger.With("event_id", eventID, "event_type", event.Event,
		"payment_id", entity.ID, "gateway_order_id", entity.OrderID, "payment_status", entity.Status)

	if entity.ID == "" && entity.OrderID == "" {
		log.Info("webhook ignored, no payment or order id")
		h.record(ctx, "ignored")
		h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if h.dedupe != nil && eventID != "" {
		first, err := h.dedupe.FirstSeen(ctx, eventID)
		switch {
		case err != nil:
			log.Warn("webhook dedupe unavailable, applying anyway", "error", err)
		case !first:
			log.Info("webhook duplicate skipped")
			h.record(ctx, "duplicate")
			h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
	}

	eventAt := h.now().UTC()
	if event.CreatedAt != nil {
		eventAt = time.Unix(*event.CreatedAt, 0).UTC()
	}

	updated, err := h.orders.ApplyPaymentUpdate(ctx, domain.PaymentUpdate{
		PaymentID:      entity.ID,
		GatewayOrderID: entity.OrderID,
		Status:         entity.Status,
		Currency:       entity.Currency,
		AmountMinor:    entity.Amount,
		EventID:        eventID,
		EventType:      event.Event,
		EventAt:        eventAt,
	})
	if err != nil {
		log.Error("failed to apply payment update", "error", err)
		if h.dedupe != nil && eventID != "" {
			if ferr := h.dedupe.Forget(ctx, eventID); ferr != nil {
				log.Warn("failed to release webhook event claim", "error", ferr)
			}
		}
		h.record(ctx, "failed")
		h.writeError(w, http.StatusInternalServerError, httperr.MessageInternal)
		return
	}

	log.Info("webhook applied", "orders_updated", updated)
	h.record(ctx, "applied")
	h.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) record(ctx context.Context, outcome string) {
	h.events.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, msg string, args ...any) {
	status, message := httperr.Status(err)
	if httperr.Logged(err) {
		h.logger.Error(msg, append([]any{"error", err}, args...)...)
	}
	h.writeError(w, status, message)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
