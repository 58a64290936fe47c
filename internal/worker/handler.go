package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

type NotificationHandler struct {
	emailServiceURL string
	httpClient      *http.Client
	logger          *slog.Logger
}

func NewNotificationHandler(emailServiceURL string, client *http.Client, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		emailServiceURL: strings.TrimRight(emailServiceURL, "/"),
		httpClient:      client,
		logger:          logger,
	}
}

type emailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Handle sends the order confirmation for one settled order. Payloads that can
// never be delivered are reported as permanent so the consumer moves on.
func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderSettledEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order settled event: %w", err))
	}

	h.logger.Info("processing order settled event", "order_id", event.OrderID, "order_number", event.OrderNumber)

	if event.Email == "" {
		h.logger.Warn("no email address for settled order, skipping confirmation", "order_id", event.OrderID, "user_id", event.UserID)
		return nil
	}

	if err := h.sendEmail(ctx, confirmationEmail(event)); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send confirmation email: %w", err)
	}

	h.logger.Info("order confirmation sent", "order_id", event.OrderID)
	return nil
}

func confirmationEmail(event domain.OrderSettledEvent) emailMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your order %s.\n\n", event.OrderNumber)
	for _, line := range event.Items {
		fmt.Fprintf(&b, "  %d x %s  %s\n", line.Quantity, line.ProductID, line.Subtotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", event.Subtotal.StringFixed(2))
	if event.CouponCode != nil {
		fmt.Fprintf(&b, "Coupon %s: -%s\n", *event.CouponCode, event.Discount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: %s\n", event.Total.StringFixed(2))

	return emailMessage{
		To:      event.Email,
		Subject: "Order Confirmation: " + event.OrderNumber,
		Body:    b.String(),
	}
}

func (h *NotificationHandler) sendEmail(ctx context.Context, msg emailMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.emailServiceURL+"/send", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return messaging.Permanent(fmt.Errorf("email service rejected message with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("email service returned status %d", resp.StatusCode)
	}
}
