package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/joao-fontenele/storefront/internal/auth"
)

const testSecret = "gateway-test-secret"

func newTestHandler(storefrontURL, adminURL string) *Handler {
	return NewHandler(
		NewServiceProxy(storefrontURL, http.DefaultClient),
		NewServiceProxy(adminURL, http.DefaultClient),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func issue(t *testing.T, role auth.Role) string {
	t.Helper()
	token, err := auth.NewAuthenticator(testSecret).Issue(auth.Identity{UserID: "u-" + string(role), Role: role}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestHandler_HandleStorefront(t *testing.T) {
	t.Run("strips the api prefix and keeps the query", func(t *testing.T) {
		storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/products/p1" {
				t.Errorf("expected /products/p1, got %s", r.URL.Path)
			}
			if r.URL.RawQuery != "ref=home" {
				t.Errorf("expected query ref=home, got %s", r.URL.RawQuery)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"id":"p1"}`))
		}))
		defer storefront.Close()

		rec := httptest.NewRecorder()
		newTestHandler(storefront.URL, "http://unused").HandleStorefront(rec, httptest.NewRequest(http.MethodGet, "/api/products/p1?ref=home", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Header().Get("Content-Type") != "application/json" {
			t.Errorf("expected application/json, got %s", rec.Header().Get("Content-Type"))
		}
		if rec.Body.String() != `{"id":"p1"}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("preserves downstream error status", func(t *testing.T) {
		storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Coupon not found"}`))
		}))
		defer storefront.Close()

		rec := httptest.NewRecorder()
		newTestHandler(storefront.URL, "http://unused").HandleStorefront(rec,
			httptest.NewRequest(http.MethodPost, "/api/coupons/apply", strings.NewReader(`{"coupon_code":"NOPE"}`)))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("returns 502 when storefront service unavailable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestHandler("http://localhost:99999", "http://unused").HandleStorefront(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["error"] != "service unavailable" {
			t.Errorf("expected 'service unavailable', got %s", resp["error"])
		}
	})
}

func TestHandler_Routes(t *testing.T) {
	var storefrontPaths, adminPaths []string
	storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		storefrontPaths = append(storefrontPaths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer storefront.Close()
	admin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminPaths = append(adminPaths, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer admin.Close()

	routes := newTestHandler(storefront.URL, admin.URL).Routes(auth.NewAuthenticator(testSecret), NewRateLimiter(1, 2), nil)

	send := func(method, path, token string) int {
		req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("admin paths require an admin token", func(t *testing.T) {
		if code := send(http.MethodGet, "/api/admin/orders", ""); code != http.StatusUnauthorized {
			t.Errorf("expected 401 without token, got %d", code)
		}
		if code := send(http.MethodGet, "/api/admin/orders", issue(t, auth.RoleCustomer)); code != http.StatusForbidden {
			t.Errorf("expected 403 for customer, got %d", code)
		}
		if code := send(http.MethodGet, "/api/admin/orders", "garbage"); code != http.StatusUnauthorized {
			t.Errorf("expected 401 for bad token, got %d", code)
		}
		if code := send(http.MethodGet, "/api/admin/orders", issue(t, auth.RoleAdmin)); code != http.StatusOK {
			t.Errorf("expected 200 for admin, got %d", code)
		}
		if len(adminPaths) != 1 || adminPaths[0] != "/admin/orders" {
			t.Errorf("unexpected admin paths: %v", adminPaths)
		}
	})

	t.Run("rate limits pricing routes per client", func(t *testing.T) {
		token := issue(t, auth.RoleCustomer)
		codes := []int{
			send(http.MethodPost, "/api/coupons/apply", token),
			send(http.MethodPost, "/api/coupons/apply", token),
			send(http.MethodPost, "/api/coupons/apply", token),
		}
		if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
			t.Errorf("expected 200, 200, 429, got %v", codes)
		}

		if code := send(http.MethodPost, "/api/coupons/apply", issue(t, auth.RoleAdmin)); code != http.StatusOK {
			t.Errorf("expected a separate bucket for another user, got %d", code)
		}
		for range 5 {
			if code := send(http.MethodGet, "/api/products", token); code != http.StatusOK {
				t.Errorf("expected unlimited catalog reads, got %d", code)
			}
		}
	})
}
