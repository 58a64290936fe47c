package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/httperr"
)

const (
	MessageContactSupport = "We could not record your order. If you were charged, please contact support with your payment id."
	WarningIncomplete     = "Your order was placed, but some follow-up steps are still pending. Your cart may still show the purchased items."
)

type Settler interface {
	Settle(ctx context.Context, req SettleRequest) (*domain.Order, error)
}

type Handler struct {
	settler Settler
	logger  *slog.Logger
}

func NewHandler(settler Settler, logger *slog.Logger) *Handler {
	return &Handler{
		settler: settler,
		logger:  logger,
	}
}

type checkoutRequest struct {
	ShippingAddress json.RawMessage     `json:"shipping_address"`
	Payment         PaymentConfirmation `json:"payment"`
	CouponCode      string              `json:"coupon_code"`
}

type checkoutResponse struct {
	Success  bool          `json:"success"`
	Order    *domain.Order `json:"order"`
	Warnings []string      `json:"warnings,omitempty"`
}

// HandleCheckout settles the caller's cart. Amounts always come from the
// server-side quote; the body carries only the address, the payment
// confirmation and an optional coupon code.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.settler.Settle(r.Context(), SettleRequest{
		UserID:          id.UserID,
		Email:           id.Email,
		ShippingAddress: req.ShippingAddress,
		Payment:         req.Payment,
		CouponCode:      req.CouponCode,
	})

	var incomplete *IncompleteError
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusCreated, checkoutResponse{Success: true, Order: order})
	case errors.As(err, &incomplete) && order != nil:
		h.logger.Warn("checkout completed with pending follow-ups", "error", err, "order_id", incomplete.OrderID)
		h.writeJSON(w, http.StatusCreated, checkoutResponse{Success: true, Order: order, Warnings: []string{WarningIncomplete}})
	default:
		var upstream *domain.UpstreamError
		if errors.As(err, &upstream) {
			h.logger.Error("checkout failed after payment", "error", err, "user_id", id.UserID, "payment_id", req.Payment.PaymentID)
			h.writeError(w, http.StatusBadGateway, MessageContactSupport)
			return
		}

		status, message := httperr.Status(err)
		if httperr.Logged(err) {
			h.logger.Error("checkout failed", "error", err, "user_id", id.UserID)
		}
		h.writeError(w, status, message)
	}
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
