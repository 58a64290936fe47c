package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/auth"
)

const apiPrefix = "/api"

// RateLimitedRoutes are the storefront paths that trigger pricing or payment
// work on every call.
var RateLimitedRoutes = []string{
	"POST /api/coupons/apply",
	"POST /api/checkout",
	"POST /api/payment/create-order",
}

type Handler struct {
	storefrontProxy *ServiceProxy
	adminProxy      *ServiceProxy
	logger          *slog.Logger
}

func NewHandler(storefrontProxy, adminProxy *ServiceProxy, logger *slog.Logger) *Handler {
	return &Handler{
		storefrontProxy: storefrontProxy,
		adminProxy:      adminProxy,
		logger:          logger,
	}
}

func (h *Handler) HandleStorefront(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.storefrontProxy, strings.TrimPrefix(r.URL.Path, apiPrefix))
}

func (h *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	h.proxyRequest(w, r, h.adminProxy, strings.TrimPrefix(r.URL.Path, apiPrefix))
}

// Routes builds the public mux. Admin paths need an admin token before any
// byte reaches the admin service.
func (h *Handler) Routes(authn *auth.Authenticator, limiter *RateLimiter, wrap func(http.HandlerFunc) http.HandlerFunc) http.Handler {
	if wrap == nil {
		wrap = func(f http.HandlerFunc) http.HandlerFunc { return f }
	}

	mux := http.NewServeMux()
	for _, pattern := range RateLimitedRoutes {
		mux.HandleFunc(pattern, wrap(limiter.Middleware(h.HandleStorefront)))
	}
	mux.HandleFunc("/api/admin/", wrap(auth.RequireRole(auth.RoleAdmin, h.HandleAdmin)))
	mux.HandleFunc("/api/", wrap(h.HandleStorefront))

	return authn.Middleware(mux)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for _, key := range []string{"Content-Type", "Retry-After"} {
		if v := resp.Header.Get(key); v != "" {
			w.Header().Set(key, v)
		}
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
