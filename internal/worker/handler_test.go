package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
)

func settledPayload(t *testing.T, email string, coupon *string) []byte {
	t.Helper()
	data, err := json.Marshal(domain.OrderSettledEvent{
		OrderID:     "o1",
		OrderNumber: "ORD-01J0000000000000000000000",
		UserID:      "u1",
		Email:       email,
		Items: []domain.OrderLine{
			{ProductID: "p1", Quantity: 2, UnitPrice: decimal.NewFromInt(100), Subtotal: decimal.NewFromInt(200)},
		},
		Subtotal:   decimal.NewFromInt(200),
		Discount:   decimal.NewFromInt(20),
		Total:      decimal.NewFromInt(180),
		CouponCode: coupon,
		Timestamp:  time.Now(),
	})
	require.NoError(t, err)
	return data
}

func newTestHandler(url string) *NotificationHandler {
	return NewNotificationHandler(url, http.DefaultClient, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandle_SendsConfirmation(t *testing.T) {
	var got emailMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	code := "SAVE10"
	err := newTestHandler(srv.URL+"/").Handle(context.Background(), settledPayload(t, "ada@example.com", &code))
	require.NoError(t, err)

	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "Order Confirmation: ORD-01J0000000000000000000000", got.Subject)
	assert.Contains(t, got.Body, "Coupon SAVE10: -20.00")
	assert.Contains(t, got.Body, "Total: 180.00")
	assert.Contains(t, got.Body, "2 x p1  200.00")
}

func TestHandle_WithoutCouponOrEmail(t *testing.T) {
	calls := 0
	var got emailMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	h := newTestHandler(srv.URL)

	require.NoError(t, h.Handle(context.Background(), settledPayload(t, "ada@example.com", nil)))
	assert.NotContains(t, got.Body, "Coupon")

	require.NoError(t, h.Handle(context.Background(), settledPayload(t, "", nil)))
	assert.Equal(t, 1, calls)
}

func TestHandle_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		payload   []byte
		permanent bool
	}{
		{"malformed payload", http.StatusOK, []byte(`{`), true},
		{"email rejected", http.StatusBadRequest, nil, true},
		{"email unavailable", http.StatusServiceUnavailable, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			payload := tt.payload
			if payload == nil {
				payload = settledPayload(t, "ada@example.com", nil)
			}

			err := newTestHandler(srv.URL).Handle(context.Background(), payload)
			require.Error(t, err)
			assert.Equal(t, tt.permanent, messaging.IsPermanent(err))
		})
	}
}
