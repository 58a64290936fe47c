package payment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/domain"
)

const webhookSecret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	sig := Sign(webhookSecret, body)

	assert.True(t, VerifySignature(webhookSecret, body, sig))
	assert.False(t, VerifySignature(webhookSecret, append(body, ' '), sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature(webhookSecret, body, "zz-not-hex"))
	assert.False(t, VerifySignature(webhookSecret, body, sig[:10]))
	assert.False(t, VerifySignature("", body, Sign("", body)))
}

func TestClient_VerifyCheckout(t *testing.T) {
	c := NewClient("http://gateway", "key_id", "key_secret", http.DefaultClient)
	sig := Sign("key_secret", []byte("order_123|pay_456"))

	assert.True(t, c.VerifyCheckout("order_123", "pay_456", sig))
	assert.False(t, c.VerifyCheckout("order_123", "pay_999", sig))
	assert.False(t, c.VerifyCheckout("", "pay_456", sig))
}

func TestClient_CreateIntent(t *testing.T) {
	var got Intent
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key_id" || pass != "key_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/orders" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"order_abc","amount":89999,"currency":"INR","status":"created"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL+"/", "key_id", "key_secret", server.Client())
	order, err := c.CreateIntent(context.Background(), Intent{AmountMinor: 89999, Currency: "INR", Notes: map[string]string{"coupon_code": "SAVE10"}})
	require.NoError(t, err)

	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(89999), got.AmountMinor)
	assert.Equal(t, "SAVE10", got.Notes["coupon_code"])

	bad := NewClient(server.URL, "key_id", "wrong", server.Client())
	_, err = bad.CreateIntent(context.Background(), Intent{AmountMinor: 1, Currency: "INR"})
	assert.ErrorContains(t, err, "401")
}

func TestClient_FetchOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pass, ok := r.BasicAuth(); !ok || pass != "key_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method != http.MethodGet:
			w.WriteHeader(http.StatusMethodNotAllowed)
		case r.URL.Path == "/v1/orders/order_abc":
			_, _ = io.WriteString(w, `{"id":"order_abc","amount":1000,"currency":"INR","status":"paid"}`)
		case r.URL.Path == "/v1/orders/order_other":
			_, _ = io.WriteString(w, `{"id":"order_abc","amount":1000,"currency":"INR","status":"paid"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"not found"}`)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL, "key_id", "key_secret", server.Client())

	amount, currency, err := c.AuthorizedAmount(context.Background(), "order_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), amount)
	assert.Equal(t, "INR", currency)

	_, _, err = c.AuthorizedAmount(context.Background(), "order_missing")
	assert.ErrorContains(t, err, "404")

	_, _, err = c.AuthorizedAmount(context.Background(), "order_other")
	assert.ErrorContains(t, err, "order_other")
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(89999), MinorUnits(decimal.RequireFromString("899.99")))
	assert.Equal(t, int64(100), MinorUnits(decimal.RequireFromString("1")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}

type fakeQuoter struct {
	quote *domain.Quote
	err   error
}

func (f *fakeQuoter) Quote(context.Context, string, string) (*domain.Quote, error) {
	return f.quote, f.err
}

type fakeGateway struct {
	intent Intent
	err    error
}

func (f *fakeGateway) CreateIntent(_ context.Context, intent Intent) (*GatewayOrder, error) {
	f.intent = intent
	if f.err != nil {
		return nil, f.err
	}
	return &GatewayOrder{ID: "order_1", Amount: intent.AmountMinor, Currency: intent.Currency, Status: "created"}, nil
}

type fakeRecorder struct {
	updates []domain.PaymentUpdate
	err     error
}

func (f *fakeRecorder) ApplyPaymentUpdate(_ context.Context, u domain.PaymentUpdate) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.updates = append(f.updates, u)
	return 1, nil
}

type memDeduper struct {
	seen map[string]bool
	err  error
}

func (d *memDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDeduper) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

func newHandler(t *testing.T, quoter Quoter, gateway IntentCreator, recorder PaymentRecorder, dedupe Deduper) *Handler {
	t.Helper()
	h, err := NewHandler(quoter, gateway, recorder, dedupe, Config{KeyID: "key_id", WebhookSecret: webhookSecret}, slog.Default())
	require.NoError(t, err)
	return h
}

func TestHandleCreateOrder(t *testing.T) {
	quote := &domain.Quote{
		Subtotal: decimal.RequireFromString("999.99"),
		Discount: decimal.RequireFromString("100"),
		Total:    decimal.RequireFromString("899.99"),
		Coupon:   &domain.CouponSummary{Code: "SAVE10"},
	}

	t.Run("amount comes from the live quote", func(t *testing.T) {
		gateway := &fakeGateway{}
		h := newHandler(t, &fakeQuoter{quote: quote}, gateway, &fakeRecorder{}, nil)

		req := httptest.NewRequest(http.MethodPost, "/payment/create-order", strings.NewReader(`{"coupon_code":"SAVE10","amount":1}`))
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: "u1"}))
		rec := httptest.NewRecorder()
		h.HandleCreateOrder(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(89999), gateway.intent.AmountMinor)
		assert.Equal(t, "INR", gateway.intent.Currency)
		assert.Equal(t, map[string]string{"coupon_code": "SAVE10", "subtotal": "999.99", "discount": "100.00"}, gateway.intent.Notes)
		assert.Contains(t, rec.Body.String(), `"key_id":"key_id"`)
	})

	t.Run("zero total", func(t *testing.T) {
		gateway := &fakeGateway{}
		zero := &domain.Quote{Subtotal: decimal.NewFromInt(50), Discount: decimal.NewFromInt(50), Total: decimal.Zero}
		h := newHandler(t, &fakeQuoter{quote: zero}, gateway, &fakeRecorder{}, nil)

		rec := httptest.NewRecorder()
		h.HandleCreateOrder(rec, httptest.NewRequest(http.MethodPost, "/payment/create-order", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, gateway.intent.AmountMinor)
	})

	t.Run("rejected quote", func(t *testing.T) {
		h := newHandler(t, &fakeQuoter{err: domain.Reject("Cart is empty")}, &fakeGateway{}, &fakeRecorder{}, nil)

		rec := httptest.NewRecorder()
		h.HandleCreateOrder(rec, httptest.NewRequest(http.MethodPost, "/payment/create-order", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Cart is empty")
	})

	t.Run("gateway down", func(t *testing.T) {
		h := newHandler(t, &fakeQuoter{quote: quote}, &fakeGateway{err: errors.New("tls handshake timeout")}, &fakeRecorder{}, nil)

		rec := httptest.NewRecorder()
		h.HandleCreateOrder(rec, httptest.NewRequest(http.MethodPost, "/payment/create-order", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "tls")
	})
}

func webhookRequest(body, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/payment/webhook", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	return req
}

const capturedEvent = `{
	"id": "evt_1",
	"event": "payment.captured",
	"created_at": 1767225600,
	"payload": {"payment": {"entity": {
		"id": "pay_1", "order_id": "order_1", "status": "captured", "currency": "INR", "amount": 89999
	}}}
}`

func TestHandleWebhook(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		signature string
		status    int
		updates   int
	}{
		{"captured", capturedEvent, Sign(webhookSecret, []byte(capturedEvent)), http.StatusOK, 1},
		{"missing signature", capturedEvent, "", http.StatusBadRequest, 0},
		{"wrong signature", capturedEvent, Sign("nope", []byte(capturedEvent)), http.StatusUnauthorized, 0},
		{"bad json", `{"id":`, Sign(webhookSecret, []byte(`{"id":`)), http.StatusBadRequest, 0},
		{"no ids", `{"id":"evt_2","event":"refund.created"}`, Sign(webhookSecret, []byte(`{"id":"evt_2","event":"refund.created"}`)), http.StatusOK, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			h := newHandler(t, &fakeQuoter{}, &fakeGateway{}, recorder, nil)

			rec := httptest.NewRecorder()
			h.HandleWebhook(rec, webhookRequest(tt.body, tt.signature))

			assert.Equal(t, tt.status, rec.Code)
			assert.Len(t, recorder.updates, tt.updates)
		})
	}
}

func TestHandleWebhook_PatchContents(t *testing.T) {
	recorder := &fakeRecorder{}
	h := newHandler(t, &fakeQuoter{}, &fakeGateway{}, recorder, nil)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, webhookRequest(capturedEvent, Sign(webhookSecret, []byte(capturedEvent))))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, recorder.updates, 1)

	u := recorder.updates[0]
	assert.Equal(t, "pay_1", u.PaymentID)
	assert.Equal(t, "order_1", u.GatewayOrderID)
	assert.Equal(t, "captured", u.Status)
	assert.Equal(t, "INR", u.Currency)
	require.NotNil(t, u.AmountMinor)
	assert.Equal(t, int64(89999), *u.AmountMinor)
	assert.Equal(t, "evt_1", u.EventID)
	assert.Equal(t, "payment.captured", u.EventType)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), u.EventAt)
}

func TestHandleWebhook_Dedupe(t *testing.T) {
	recorder := &fakeRecorder{}
	dedupe := &memDeduper{seen: map[string]bool{}}
	h := newHandler(t, &fakeQuoter{}, &fakeGateway{}, recorder, dedupe)
	sig := Sign(webhookSecret, []byte(capturedEvent))

	for range 3 {
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, webhookRequest(capturedEvent, sig))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Len(t, recorder.updates, 1)

	t.Run("failed apply is retried on redelivery", func(t *testing.T) {
		body := strings.Replace(capturedEvent, "evt_1", "evt_9", 1)
		sig := Sign(webhookSecret, []byte(body))
		recorder.err = errors.New("deadlock detected")

		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, webhookRequest(body, sig))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		recorder.err = nil
		rec = httptest.NewRecorder()
		h.HandleWebhook(rec, webhookRequest(body, sig))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, recorder.updates, 2)
	})

	t.Run("dedupe outage still applies", func(t *testing.T) {
		dedupe.err = errors.New("redis: connection refused")
		body := strings.Replace(capturedEvent, "evt_1", "evt_10", 1)

		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, webhookRequest(body, Sign(webhookSecret, []byte(body))))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, recorder.updates, 3)
	})
}

func TestHandleWebhook_Unconfigured(t *testing.T) {
	h, err := NewHandler(&fakeQuoter{}, &fakeGateway{}, &fakeRecorder{}, nil, Config{}, slog.Default())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, webhookRequest(capturedEvent, "abc"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
